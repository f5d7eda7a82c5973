package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// dirSource reads archived packets from a local directory tree, used for
// dev/test backfills and for airgapped deployments with NFS-mounted
// archives.
type dirSource struct {
	root string
}

func newDirSource(root string) *dirSource {
	return &dirSource{root: root}
}

func (d *dirSource) List(_ context.Context, prefix string) ([]Object, error) {
	base := filepath.Join(d.root, prefix)
	var objs []Object
	err := godirwalk.Walk(base, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			fi, err := os.Stat(path)
			if err != nil {
				return nil
			}
			rel, err := filepath.Rel(d.root, path)
			if err != nil {
				rel = path
			}
			objs = append(objs, Object{Key: rel, Size: fi.Size()})
			return nil
		},
		Unsorted: false,
	})
	if err != nil {
		return nil, err
	}
	return objs, nil
}

func (d *dirSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.root, key))
}

func (d *dirSource) Close() error { return nil }
