// Package worker implements the Scheduler/ThreadPool supervision fabric of
// spec.md §4.4: a pool owns N workers of one kind, each paired with a
// single-producer/single-consumer command channel whose only command is
// Terminate; workers poll it non-blockingly once per loop iteration.
package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/skyforge-astro/boom/internal/nlog"
)

// Cmd is the command sent over a worker's command channel. Terminate is
// the only command, per spec.md §4.4.
type Cmd int

const Terminate Cmd = iota

// Runner is implemented by AlertWorker, MLWorker, and FilterWorker. Run
// must return promptly (within one broker timeout) once cmds is closed or
// a Terminate is received, per spec.md §4.4/§5.
type Runner interface {
	Run(ctx context.Context, cmds <-chan Cmd)
}

type slot struct {
	runner Runner
	cmds   chan Cmd
	done   chan struct{}
	cancel context.CancelFunc
}

// Pool maintains a mapping worker_id -> (task handle, command sender),
// per spec.md §4.4.
type Pool struct {
	kind string

	mu      sync.Mutex
	workers map[string]*slot
}

// New spawns size workers of one kind, each produced by newRunner. newRunner
// is called once per worker so each gets its own Runner instance (e.g. its
// own broker/store connections), matching the per-worker isolation spec.md
// §4.4's "Workers must not share mutable state" calls for.
func New(kind string, size int, newRunner func() Runner) *Pool {
	p := &Pool{kind: kind, workers: make(map[string]*slot)}
	for i := 0; i < size; i++ {
		p.AddWorker(newRunner())
	}
	return p
}

// AddWorker spawns one more worker into the pool, per spec.md §4.4's
// add_worker() operation.
func (p *Pool) AddWorker(r Runner) string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &slot{
		runner: r,
		cmds:   make(chan Cmd, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	p.mu.Lock()
	p.workers[id] = s
	p.mu.Unlock()

	go func() {
		defer close(s.done)
		defer func() {
			if rec := recover(); rec != nil {
				nlog.Errorf("worker %s/%s panicked: %v", p.kind, id, rec)
			}
		}()
		r.Run(ctx, s.cmds)
	}()
	nlog.Infof("pool %s: worker %s started", p.kind, id)
	return id
}

// RemoveWorker sends Terminate to the worker identified by id, then drops
// its command sender, then joins its handle — spec.md §4.4's
// remove_worker(): "the pool then drops the sender; the worker observes
// the channel closed or the explicit Terminate, exits; the pool joins the
// handle on drop."
func (p *Pool) RemoveWorker(id string) {
	p.mu.Lock()
	s, ok := p.workers[id]
	if ok {
		delete(p.workers, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	terminate(s)
	<-s.done
	nlog.Infof("pool %s: worker %s stopped", p.kind, id)
}

// Drop sends Terminate to every worker, then joins all handles. Idempotent
// — calling Drop twice is a no-op the second time, per spec.md §4.4.
func (p *Pool) Drop() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.workers))
	slots := make([]*slot, 0, len(p.workers))
	for id, s := range p.workers {
		ids = append(ids, id)
		slots = append(slots, s)
	}
	p.workers = make(map[string]*slot)
	p.mu.Unlock()

	// Terminate messages must be sent before joining any handle — workers
	// that have already exited will not receive further messages
	// (spec.md §9 "Pool drop semantics").
	for _, s := range slots {
		terminate(s)
	}
	for i, s := range slots {
		<-s.done
		nlog.Infof("pool %s: worker %s stopped", p.kind, ids[i])
	}
}

func terminate(s *slot) {
	select {
	case s.cmds <- Terminate:
	default:
		// channel already holds a pending Terminate or the worker has
		// already exited and stopped draining it; cancel its context as a
		// second signal so Run unblocks any broker RPC it is waiting on.
	}
	s.cancel()
}

// Size reports the current worker count, used by metrics.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
