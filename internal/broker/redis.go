package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisDAO struct {
	client *redis.Client
}

// NewRedis dials host:port and verifies connectivity (spec.md §7: broker
// unreachable at boot is fatal).
func NewRedis(ctx context.Context, host string, port, db int) (DAO, error) {
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", host, port), DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: redis ping %s:%d: %w", host, port, err)
	}
	return &redisDAO{client: client}, nil
}

const payloadField = "payload"

func (r *redisDAO) PushLeft(ctx context.Context, key string, payload []byte) error {
	return r.client.LPush(ctx, key, payload).Err()
}

func (r *redisDAO) PopRightBlocking(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error) {
	res, err := r.client.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// BRPop returns [key, value].
	if len(res) < 2 {
		return nil, false, nil
	}
	return []byte(res[1]), true, nil
}

func (r *redisDAO) PopRightPushLeft(ctx context.Context, src, dst string) ([]byte, bool, error) {
	val, err := r.client.RPopLPush(ctx, src, dst).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (r *redisDAO) Remove(ctx context.Context, key string, element []byte, count int) error {
	return r.client.LRem(ctx, key, int64(count), element).Err()
}

func (r *redisDAO) ListLen(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}

func (r *redisDAO) StreamAppend(ctx context.Context, stream string, fields map[string]any) (string, error) {
	return r.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fields}).Result()
}

func (r *redisDAO) StreamGroupCreate(ctx context.Context, stream, group, start string) error {
	if start == "" {
		start = "0"
	}
	err := r.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil // pre-existing group is not an error, per spec.md §4.3
	}
	return err
}

func (r *redisDAO) StreamGroupRead(ctx context.Context, stream, group, consumer string, count int64) ([]StreamEntry, error) {
	res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		// A negative Block omits Redis's BLOCK clause entirely rather than
		// appending "BLOCK 0", which means block forever, not "don't
		// block" — FilterWorker's sweep loop expects this call to return
		// promptly so it can move on to its next bound filter.
		Block: -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []StreamEntry
	for _, s := range res {
		for _, msg := range s.Messages {
			out = append(out, StreamEntry{ID: msg.ID, Fields: msg.Values})
		}
	}
	return out, nil
}

func (r *redisDAO) StreamAck(ctx context.Context, stream, group string, ids ...string) error {
	return r.client.XAck(ctx, stream, group, ids...).Err()
}

func (r *redisDAO) Close() error { return r.client.Close() }

// CandIDFromFields extracts the candid field written by StreamAppend back
// into an int64, tolerating the string/number round-trip go-redis performs
// over the wire.
func CandIDFromFields(fields map[string]any) (int64, bool) {
	v, ok := fields["candid"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
