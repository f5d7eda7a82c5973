package archive

import (
	"context"
	"fmt"
)

// newSource dispatches on cfg.Driver. Cloud backends are compiled in only
// under their build tag (see s3.go/gcs.go/azure.go/hdfs.go); a binary built
// without those tags returns an error naming the missing tag rather than
// failing to link, so worker_manager can run archive-free by default.
func newSource(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Driver {
	case "", "dir":
		return newDirSource(cfg.Dir), nil
	case "s3":
		return newS3Source(ctx, cfg)
	case "gcs":
		return newGCSSource(ctx, cfg)
	case "azure":
		return newAzureSource(ctx, cfg)
	case "hdfs":
		return newHDFSSource(ctx, cfg)
	default:
		return nil, fmt.Errorf("archive: unknown driver %q", cfg.Driver)
	}
}
