// Package archive implements the backfill/replay path of the "archive/live
// feed" arrow in spec.md §2's pipeline diagram: a pluggable Source reads
// previously-archived alert packets from an object store and replays them
// onto the packet queue, the same entry point the live feed uses.
//
// Each backend lives in its own file behind a build tag, mirroring the way
// the teacher's backend providers are split (ais/backend/azure.go is
// `//go:build azure`); only the local-directory backend is always
// compiled, since it has no SDK credentials to configure.
package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/nlog"
)

// Object identifies one archived packet by its backend-relative key.
type Object struct {
	Key  string
	Size int64
}

// Source lists and opens archived packet objects under a prefix. Each
// object is expected to be an Avro Object Container File, one or more
// records long; Replay pushes the raw bytes through unmodified and lets
// the decoder on the other side of the queue sort it out.
type Source interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Close() error
}

// Config selects and configures one Source implementation.
type Config struct {
	Driver string // "s3" | "gcs" | "azure" | "hdfs" | "dir"
	Bucket string
	Prefix string
	Dir    string
}

// Replayer drains a Source's listing onto the broker's packet queue.
type Replayer struct {
	Source    Source
	Broker    broker.DAO
	QueueName string
}

// NewReplayer builds a Replayer for cfg's archive source.
func NewReplayer(ctx context.Context, cfg Config, b broker.DAO, queueName string) (*Replayer, error) {
	src, err := newSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Replayer{Source: src, Broker: b, QueueName: queueName}, nil
}

// Run lists every object under prefix and pushes each one's full
// contents onto the packet queue in listing order, then returns. It does
// not retry individual object failures — those are logged and skipped, so
// one corrupt archive entry cannot stall a backfill run.
func (r *Replayer) Run(ctx context.Context, prefix string) (int, error) {
	objs, err := r.Source.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("archive: list %s: %w", prefix, err)
	}
	pushed := 0
	for _, obj := range objs {
		rc, err := r.Source.Open(ctx, obj.Key)
		if err != nil {
			nlog.Warningf("archive: open %s failed: %v", obj.Key, err)
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			nlog.Warningf("archive: read %s failed: %v", obj.Key, err)
			continue
		}
		if err := r.Broker.PushLeft(ctx, r.QueueName, raw); err != nil {
			nlog.Warningf("archive: enqueue %s failed: %v", obj.Key, err)
			continue
		}
		pushed++
	}
	nlog.Infof("archive: replayed %d/%d objects from %s", pushed, len(objs), prefix)
	return pushed, nil
}
