//go:build hdfs

package archive

import (
	"context"
	"io"
	"path"

	"github.com/colinmarc/hdfs/v2"
)

// hdfsSource reads archived packets from an HDFS directory tree, for
// deployments that keep their alert archive on an on-prem cluster.
type hdfsSource struct {
	client *hdfs.Client
	root   string
}

func newHDFSSource(_ context.Context, cfg Config) (Source, error) {
	client, err := hdfs.New(cfg.Bucket) // cfg.Bucket doubles as the namenode address for this driver
	if err != nil {
		return nil, err
	}
	return &hdfsSource{client: client, root: cfg.Dir}, nil
}

func (h *hdfsSource) List(_ context.Context, prefix string) ([]Object, error) {
	dir := path.Join(h.root, prefix)
	entries, err := h.client.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	objs := make([]Object, 0, len(entries))
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		objs = append(objs, Object{Key: path.Join(prefix, fi.Name()), Size: fi.Size()})
	}
	return objs, nil
}

func (h *hdfsSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return h.client.Open(path.Join(h.root, key))
}

func (h *hdfsSource) Close() error { return h.client.Close() }
