package builder

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/evently-labs/recoengine/internal/logging"
)

// RefreshCoordinator makes the refresh operation idempotent: concurrent callers within
// the same in-flight build coalesce onto a single Builder.Run and all receive its
// result, rather than racing each other to publish a new version.
type RefreshCoordinator struct {
	builder *Builder
	group   singleflight.Group
	log     logging.Logger
}

func NewRefreshCoordinator(b *Builder, log logging.Logger) *RefreshCoordinator {
	if log == nil {
		log = logging.Noop()
	}
	return &RefreshCoordinator{builder: b, log: log}
}

// Refresh runs the builder, coalescing concurrent calls into one underlying run. The
// "shared" return reports whether this caller received a result computed for a
// different, concurrently overlapping call rather than one it triggered itself.
func (rc *RefreshCoordinator) Refresh(ctx context.Context) (report Report, shared bool, err error) {
	ran := false
	v, err, _ := rc.group.Do("refresh", func() (any, error) {
		ran = true
		return rc.builder.Run(ctx)
	})
	shared = !ran
	if err != nil {
		rc.log.Error("refresh: build failed", "error", err)
		return Report{}, shared, err
	}
	rc.log.Info("refresh: build complete", "shared", shared)
	return v.(Report), shared, nil
}
