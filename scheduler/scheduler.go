// Package scheduler implements spec.md §4.4's Scheduler: it owns one Pool
// per worker kind, installs a signal handler that flips an interrupt flag
// on SIGINT/SIGTERM, and runs a 1s supervision loop until interrupted, at
// which point it drops every pool in a fixed order.
package scheduler

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/skyforge-astro/boom/internal/hk"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/worker"
)

// tickInterval is the Scheduler's supervision-loop period, per spec.md
// §4.4 ("the scheduler polls its pools roughly once a second").
const tickInterval = time.Second

// dropOrder is the fixed shutdown order named in spec.md §4.4: stop
// intake first, then routing, then output, so that in-flight work drains
// downstream instead of piling up behind a dead consumer.
var dropOrder = []string{"alert_worker", "ml_worker", "filter_worker"}

// Scheduler owns a named set of worker pools and supervises their
// lifetime, per spec.md §4.4.
type Scheduler struct {
	pools       map[string]*worker.Pool
	interrupted int32
	stopSignal  chan struct{}
	hk          *hk.Housekeeper
}

// New builds a Scheduler over the given kind -> pool mapping. Keys not
// present in dropOrder are dropped last, in map iteration order.
func New(pools map[string]*worker.Pool) *Scheduler {
	return &Scheduler{pools: pools, stopSignal: make(chan struct{}), hk: hk.New()}
}

// InstallSignalHandler arranges for SIGINT/SIGTERM to flip the
// Scheduler's interrupt flag, per spec.md §4.4's "graceful shutdown on
// SIGINT/SIGTERM" requirement.
func (s *Scheduler) InstallSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-c
		nlog.Infof("scheduler: received %v, beginning graceful shutdown", sig)
		atomic.StoreInt32(&s.interrupted, 1)
	}()
}

// Run blocks, polling every tickInterval, until the interrupt flag is set
// or Stop is called, then drops every pool in dropOrder and returns.
func (s *Scheduler) Run() {
	s.hk.Reg("pool-sizes", func() time.Duration {
		s.reportSizes()
		return tickInterval
	}, tickInterval)
	go s.hk.Run()
	defer s.hk.Stop()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSignal:
			s.shutdown()
			return
		case <-ticker.C:
			if atomic.LoadInt32(&s.interrupted) == 1 {
				s.shutdown()
				return
			}
		}
	}
}

// Stop requests an immediate shutdown without waiting for a signal —
// used by tests.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopSignal:
		// already stopping
	default:
		close(s.stopSignal)
	}
}

func (s *Scheduler) shutdown() {
	nlog.Infof("scheduler: dropping pools")
	seen := make(map[string]bool, len(dropOrder))
	for _, kind := range dropOrder {
		if p, ok := s.pools[kind]; ok {
			seen[kind] = true
			nlog.Infof("scheduler: dropping pool %s (%d workers)", kind, p.Size())
			p.Drop()
		}
	}
	for kind, p := range s.pools {
		if seen[kind] {
			continue
		}
		nlog.Infof("scheduler: dropping pool %s (%d workers)", kind, p.Size())
		p.Drop()
	}
	nlog.Infof("scheduler: shutdown complete")
}

func (s *Scheduler) reportSizes() {
	for kind, p := range s.pools {
		nlog.Infof("scheduler: pool %s size=%d", kind, p.Size())
	}
}

// Pool returns the pool registered under kind, or nil if absent — used by
// tests to inspect a pool's workers.
func (s *Scheduler) Pool(kind string) *worker.Pool {
	return s.pools[kind]
}
