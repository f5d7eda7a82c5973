//go:build !s3

package archive

import (
	"context"
	"fmt"
)

func newS3Source(context.Context, Config) (Source, error) {
	return nil, fmt.Errorf("archive: s3 driver requires building with -tags s3")
}
