//go:build !hdfs

package archive

import (
	"context"
	"fmt"
)

func newHDFSSource(context.Context, Config) (Source, error) {
	return nil, fmt.Errorf("archive: hdfs driver requires building with -tags hdfs")
}
