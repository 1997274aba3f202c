package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// readLastVersion loads the version record of the most recent successful build, or an
// error when no build has been published yet.
func readLastVersion(basePath string) (VersionRecord, error) {
	data, err := os.ReadFile(filepath.Join(basePath, "model_artifacts", "versions.json"))
	if err != nil {
		return VersionRecord{}, err
	}
	var rec VersionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return VersionRecord{}, err
	}
	return rec, nil
}

// NeedsRebuild reports whether a new build is due: no prior version exists, the retrain
// interval has elapsed, or the future-event set drifted by at least the configured
// delta fraction since the last build. The returned reason is human-readable and meant
// for operator logs.
func (b *Builder) NeedsRebuild(ctx context.Context, now time.Time) (bool, string, error) {
	rec, err := readLastVersion(b.store.BasePath())
	if err != nil {
		return true, "no previous model version", nil
	}

	interval := time.Duration(b.cfg.RetrainIntervalDays) * 24 * time.Hour
	if age := now.Sub(rec.CreatedAt); age >= interval {
		return true, fmt.Sprintf("model is %s old, retrain interval is %s", age.Round(time.Hour), interval), nil
	}

	events, err := b.conn.FutureEvents(ctx)
	if err != nil {
		return false, "", err
	}
	if rec.EventCount == 0 {
		return true, "previous version had no events", nil
	}
	delta := math.Abs(float64(len(events)-rec.EventCount)) / float64(rec.EventCount)
	if delta >= b.cfg.RetrainDeltaFraction {
		return true, fmt.Sprintf("event set drifted %.0f%% since last build", delta*100), nil
	}

	return false, "model is fresh", nil
}
