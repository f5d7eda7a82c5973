//go:build gcs

package archive

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// gcsSource reads archived packets from a Google Cloud Storage bucket.
type gcsSource struct {
	client *storage.Client
	bucket string
}

func newGCSSource(ctx context.Context, cfg Config) (Source, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &gcsSource{client: client, bucket: cfg.Bucket}, nil
}

func (g *gcsSource) List(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		objs = append(objs, Object{Key: attrs.Name, Size: attrs.Size})
	}
	return objs, nil
}

func (g *gcsSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
}

func (g *gcsSource) Close() error { return g.client.Close() }
