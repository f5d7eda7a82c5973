package worker_test

import (
	"context"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/worker"
)

// fakeRunner blocks until it observes Terminate or a cancelled context,
// recording both events so tests can assert on pool lifecycle behavior.
type fakeRunner struct {
	started int32
	stopped int32
}

func (f *fakeRunner) Run(ctx context.Context, cmds <-chan worker.Cmd) {
	atomic.StoreInt32(&f.started, 1)
	defer atomic.StoreInt32(&f.stopped, 1)
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

// panicRunner panics immediately, exercising the pool's per-worker
// panic-recovery guard.
type panicRunner struct{}

func (panicRunner) Run(context.Context, <-chan worker.Cmd) { panic("boom") }

var _ = Describe("Pool", func() {
	It("starts the configured number of workers", func() {
		runners := []*fakeRunner{{}, {}, {}}
		i := 0
		p := worker.New("test_kind", 3, func() worker.Runner {
			r := runners[i]
			i++
			return r
		})
		defer p.Drop()

		Expect(p.Size()).To(Equal(3))
		Eventually(func() bool {
			for _, r := range runners {
				if atomic.LoadInt32(&r.started) == 0 {
					return false
				}
			}
			return true
		}).Should(BeTrue())
	})

	It("stops a single worker via RemoveWorker without affecting others", func() {
		p := worker.New("test_kind", 0, nil)
		r1, r2 := &fakeRunner{}, &fakeRunner{}
		id1 := p.AddWorker(r1)
		p.AddWorker(r2)
		defer p.Drop()

		p.RemoveWorker(id1)
		Expect(p.Size()).To(Equal(1))
		Expect(atomic.LoadInt32(&r1.stopped)).To(Equal(int32(1)))
		Expect(atomic.LoadInt32(&r2.stopped)).To(Equal(int32(0)))
	})

	It("stops every worker on Drop and is idempotent", func() {
		p := worker.New("test_kind", 0, nil)
		r1, r2 := &fakeRunner{}, &fakeRunner{}
		p.AddWorker(r1)
		p.AddWorker(r2)

		p.Drop()
		Expect(p.Size()).To(Equal(0))
		Expect(atomic.LoadInt32(&r1.stopped)).To(Equal(int32(1)))
		Expect(atomic.LoadInt32(&r2.stopped)).To(Equal(int32(1)))

		Expect(func() { p.Drop() }).NotTo(Panic())
	})

	It("isolates a panicking worker without crashing the pool", func() {
		p := worker.New("test_kind", 0, nil)
		p.AddWorker(panicRunner{})
		r := &fakeRunner{}
		p.AddWorker(r)
		defer p.Drop()

		Eventually(func() int32 { return atomic.LoadInt32(&r.started) }).Should(Equal(int32(1)))
	})
})
