package scheduler_test

import (
	"context"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/worker"
	"github.com/skyforge-astro/boom/scheduler"
)

type blockingRunner struct {
	started int32
	stopped int32
}

func (r *blockingRunner) Run(ctx context.Context, cmds <-chan worker.Cmd) {
	atomic.StoreInt32(&r.started, 1)
	defer atomic.StoreInt32(&r.stopped, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-cmds:
			if cmd == worker.Terminate {
				return
			}
		}
	}
}

func newPool(kind string, size int) (*worker.Pool, []*blockingRunner) {
	runners := make([]*blockingRunner, 0, size)
	p := worker.New(kind, size, func() worker.Runner {
		r := &blockingRunner{}
		runners = append(runners, r)
		return r
	})
	return p, runners
}

var _ = Describe("Scheduler", func() {
	It("drops every pool on Stop and returns from Run", func() {
		alertPool, alertRunners := newPool("alert_worker", 2)
		mlPool, mlRunners := newPool("ml_worker", 1)

		s := scheduler.New(map[string]*worker.Pool{
			"alert_worker": alertPool,
			"ml_worker":    mlPool,
		})

		done := make(chan struct{})
		go func() { s.Run(); close(done) }()

		s.Stop()
		Eventually(done).Should(BeClosed())

		Expect(alertPool.Size()).To(Equal(0))
		Expect(mlPool.Size()).To(Equal(0))
		for _, r := range alertRunners {
			Expect(atomic.LoadInt32(&r.stopped)).To(Equal(int32(1)))
		}
		for _, r := range mlRunners {
			Expect(atomic.LoadInt32(&r.stopped)).To(Equal(int32(1)))
		}
	})

	It("tolerates Stop being called more than once", func() {
		p, _ := newPool("filter_worker", 1)
		s := scheduler.New(map[string]*worker.Pool{"filter_worker": p})

		done := make(chan struct{})
		go func() { s.Run(); close(done) }()

		s.Stop()
		Eventually(done).Should(BeClosed())
		Expect(func() { s.Stop() }).NotTo(Panic())
	})

	It("exposes a pool by kind via Pool", func() {
		p, _ := newPool("alert_worker", 1)
		s := scheduler.New(map[string]*worker.Pool{"alert_worker": p})
		Expect(s.Pool("alert_worker")).To(BeIdenticalTo(p))
		Expect(s.Pool("missing")).To(BeNil())
		s.Stop()
	})
})
