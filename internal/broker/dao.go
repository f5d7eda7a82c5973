// Package broker exposes the narrow message-broker DAO named in spec.md
// §4.5: list-push/pop-block, an atomic move between two lists, stream
// append, and consumer-group create/read. The production implementation
// is backed by github.com/redis/go-redis/v9 — Redis lists and streams map
// directly onto the operations spec.md names (LPUSH/RPOPLPUSH,
// XADD/XGROUP CREATE/XREADGROUP).
package broker

import (
	"context"
	"time"
)

// StreamEntry is one entry read from a consumer-group read, carrying the
// broker-assigned entry ID (used to ACK) and its field map.
type StreamEntry struct {
	ID     string
	Fields map[string]any
}

// DAO is the narrow interface every pipeline worker uses to talk to the
// message broker, per spec.md §4.5. All operations are idempotent at the
// command level; the broker preserves insertion order within a list.
type DAO interface {
	// PushLeft pushes raw bytes onto the left (head) of the list at key.
	PushLeft(ctx context.Context, key string, payload []byte) error

	// PopRightBlocking pops one element from the right (tail) of the list
	// at key, blocking up to timeout. Returns (nil, false, nil) on
	// timeout with no error.
	PopRightBlocking(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error)

	// PopRightPushLeft atomically moves one element from the tail of src
	// to the head of dst and returns it — the packet_queue ->
	// packet_queue_temp move of spec.md §4.1.
	PopRightPushLeft(ctx context.Context, src, dst string) ([]byte, bool, error)

	// Remove deletes up to count occurrences of element from the list at
	// key — used to drop an in-flight copy from packet_queue_temp.
	Remove(ctx context.Context, key string, element []byte, count int) error

	// ListLen reports the current depth of the list at key, used for
	// AlertWorker's backpressure check (spec.md §5).
	ListLen(ctx context.Context, key string) (int64, error)

	// StreamAppend appends fields as one entry onto stream (XADD).
	StreamAppend(ctx context.Context, stream string, fields map[string]any) (string, error)

	// StreamGroupCreate creates a consumer group on stream, starting from
	// "beginning" ($ for new-entries-only is also supported via start).
	// A pre-existing group is not an error, per spec.md §4.3.
	StreamGroupCreate(ctx context.Context, stream, group, start string) error

	// StreamGroupRead reads up to count new entries from stream as
	// consumer within group (XREADGROUP).
	StreamGroupRead(ctx context.Context, stream, group, consumer string, count int64) ([]StreamEntry, error)

	// StreamAck acknowledges entries by ID within group.
	StreamAck(ctx context.Context, stream, group string, ids ...string) error

	Close() error
}
