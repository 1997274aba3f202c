package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeMatrix serializes an N×D matrix to little-endian float32, row-major bytes,
// matrix.bin's wire format. There is no per-row length prefix; row count and dimension
// are carried by the manifest instead.
func EncodeMatrix(matrix [][]float32, dim int) ([]byte, error) {
	buf := make([]byte, 0, len(matrix)*dim*4)
	var tmp [4]byte
	for i, row := range matrix {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, want %d", i, len(row), dim)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
			buf = append(buf, tmp[:]...)
		}
	}
	return buf, nil
}

// DecodeMatrix parses rows×dim little-endian float32 values from data.
func DecodeMatrix(data []byte, rows, dim int) ([][]float32, error) {
	want := rows * dim * 4
	if len(data) != want {
		return nil, fmt.Errorf("matrix.bin has %d bytes, want %d for %d rows of dim %d", len(data), want, rows, dim)
	}
	out := make([][]float32, rows)
	offset := 0
	for i := 0; i < rows; i++ {
		row := make([]float32, dim)
		for j := 0; j < dim; j++ {
			bits := binary.LittleEndian.Uint32(data[offset : offset+4])
			row[j] = math.Float32frombits(bits)
			offset += 4
		}
		out[i] = row
	}
	return out, nil
}
