//go:build !gcs

package archive

import (
	"context"
	"fmt"
)

func newGCSSource(context.Context, Config) (Source, error) {
	return nil, fmt.Errorf("archive: gcs driver requires building with -tags gcs")
}
