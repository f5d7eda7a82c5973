package broker

import (
	"context"
	"sync"
	"time"
)

// memoryDAO is an in-process fake of DAO used by worker unit tests so they
// don't need a running Redis instance, matching the teacher's habit of
// table-driven tests against fakes (xact/xs/utils_test.go).
type memoryDAO struct {
	mu      sync.Mutex
	lists   map[string][][]byte
	streams map[string][]StreamEntry
	groups  map[string]map[string]int // stream -> group -> next unread index
	nextID  int
}

// NewMemory returns an in-memory DAO for tests.
func NewMemory() DAO {
	return &memoryDAO{
		lists:   make(map[string][][]byte),
		streams: make(map[string][]StreamEntry),
		groups:  make(map[string]map[string]int),
	}
}

func (m *memoryDAO) PushLeft(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([][]byte{payload}, m.lists[key]...)
	return nil
}

func (m *memoryDAO) PopRightBlocking(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		l := m.lists[key]
		if len(l) > 0 {
			v := l[len(l)-1]
			m.lists[key] = l[:len(l)-1]
			m.mu.Unlock()
			return v, true, nil
		}
		m.mu.Unlock()
		if timeout <= 0 || time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (m *memoryDAO) PopRightPushLeft(_ context.Context, src, dst string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[src]
	if len(l) == 0 {
		return nil, false, nil
	}
	v := l[len(l)-1]
	m.lists[src] = l[:len(l)-1]
	m.lists[dst] = append([][]byte{v}, m.lists[dst]...)
	return v, true, nil
}

func (m *memoryDAO) Remove(_ context.Context, key string, element []byte, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	out := l[:0]
	removed := 0
	for _, v := range l {
		if (count <= 0 || removed < count) && string(v) == string(element) {
			removed++
			continue
		}
		out = append(out, v)
	}
	m.lists[key] = out
	return nil
}

func (m *memoryDAO) ListLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *memoryDAO) StreamAppend(_ context.Context, stream string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := itoa(m.nextID)
	m.streams[stream] = append(m.streams[stream], StreamEntry{ID: id, Fields: fields})
	return id, nil
}

func (m *memoryDAO) StreamGroupCreate(_ context.Context, stream, group, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups[stream] == nil {
		m.groups[stream] = make(map[string]int)
	}
	if _, ok := m.groups[stream][group]; !ok {
		m.groups[stream][group] = 0
	}
	return nil
}

func (m *memoryDAO) StreamGroupRead(_ context.Context, stream, group, _ string, count int64) ([]StreamEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := m.groups[stream][group]
	entries := m.streams[stream]
	end := start + int(count)
	if end > len(entries) {
		end = len(entries)
	}
	if start >= end {
		return nil, nil
	}
	out := make([]StreamEntry, end-start)
	copy(out, entries[start:end])
	m.groups[stream][group] = end
	return out, nil
}

func (m *memoryDAO) StreamAck(context.Context, string, string, ...string) error { return nil }

func (m *memoryDAO) Close() error { return nil }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
