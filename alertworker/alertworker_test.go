package alertworker_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/alertworker"
	"github.com/skyforge-astro/boom/internal/alert"
	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/crossmatch"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"
)

func samplePacket(candid int64, objectID string) *alert.Packet {
	return &alert.Packet{
		SchemaVersion: "1.0",
		Publisher:     "test",
		ObjectID:      objectID,
		CandID:        candid,
		Candidate: alert.Candidate{
			CandID: candid, RA: 10.5, Dec: 20.5, ProgramID: 1,
			Magnitude: 18.2, Filter: "g", JD: 2460000.5, IsDiffPos: true,
		},
		PrvCandidates: []alert.PrevCandidate{{CandID: candid - 1, JD: 2459999.5, ProgramID: 1}},
	}
}

func newTestWorker() (*alertworker.Worker, broker.DAO, store.DAO) {
	b := broker.NewMemory()
	s, err := store.NewBunt(":memory:")
	Expect(err).NotTo(HaveOccurred())
	cm := crossmatch.New(s, nil)
	w := alertworker.New(b, s, cm, "alerts", "alerts_aux")
	return w, b, s
}

func runUntilDrained(ctx context.Context, w *alertworker.Worker, cmds chan worker.Cmd) chan struct{} {
	done := make(chan struct{})
	go func() {
		w.Run(ctx, cmds)
		close(done)
	}()
	return done
}

var _ = Describe("Worker.Run", func() {
	var ctx context.Context
	var cancel context.CancelFunc

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
	})
	AfterEach(func() { cancel() })

	It("persists a new packet as a primary document and enqueues it for classification", func() {
		w, b, s := newTestWorker()
		raw, err := alert.Encode(samplePacket(1001, "obj-a"))
		Expect(err).NotTo(HaveOccurred())
		Expect(b.PushLeft(ctx, alertworker.PacketQueue, raw)).To(Succeed())

		cmds := make(chan worker.Cmd, 1)
		done := runUntilDrained(ctx, w, cmds)

		var primary alert.Primary
		Eventually(func() bool {
			found, _ := s.FindOne(ctx, "alerts", "candid", int64(1001), &primary)
			return found
		}).Should(BeTrue())
		Expect(primary.ObjectID).To(Equal("obj-a"))

		var aux alert.Aux
		found, err := s.FindOne(ctx, "alerts_aux", "_id", "obj-a", &aux)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(aux.PrvCandidates).To(HaveLen(1))

		Eventually(func() (int64, error) { return b.ListLen(ctx, alertworker.ClassifierQueue) }).Should(Equal(int64(1)))
		Eventually(func() (int64, error) { return b.ListLen(ctx, alertworker.PacketQueueTemp) }).Should(Equal(int64(0)))

		cmds <- worker.Terminate
		Eventually(done).Should(BeClosed())
	})

	It("treats a repeated candid as a benign duplicate and drops it without error", func() {
		w, b, s := newTestWorker()
		packet := samplePacket(2002, "obj-b")
		raw, _ := alert.Encode(packet)
		Expect(s.InsertIfAbsent(ctx, "alerts", "candid", packet.CandID, &alert.Primary{CandID: packet.CandID})).To(Succeed())
		Expect(b.PushLeft(ctx, alertworker.PacketQueue, raw)).To(Succeed())

		cmds := make(chan worker.Cmd, 1)
		done := runUntilDrained(ctx, w, cmds)

		Eventually(func() (int64, error) { return b.ListLen(ctx, alertworker.PacketQueueTemp) }).Should(Equal(int64(0)))
		n, err := s.CountByKey(ctx, "alerts", "candid", packet.CandID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		cmds <- worker.Terminate
		Eventually(done).Should(BeClosed())
	})

	It("appends prv_candidates onto an existing aux document for a follow-up alert on the same object", func() {
		w, b, s := newTestWorker()
		first := samplePacket(3001, "obj-c")
		raw1, _ := alert.Encode(first)
		Expect(b.PushLeft(ctx, alertworker.PacketQueue, raw1)).To(Succeed())

		cmds := make(chan worker.Cmd, 1)
		done := runUntilDrained(ctx, w, cmds)

		Eventually(func() (int64, error) { return b.ListLen(ctx, alertworker.ClassifierQueue) }).Should(Equal(int64(1)))

		second := samplePacket(3002, "obj-c")
		second.PrvCandidates = []alert.PrevCandidate{{CandID: 3001, JD: first.Candidate.JD, ProgramID: 1}}
		raw2, _ := alert.Encode(second)
		Expect(b.PushLeft(ctx, alertworker.PacketQueue, raw2)).To(Succeed())

		var aux alert.Aux
		Eventually(func() int {
			s.FindOne(ctx, "alerts_aux", "_id", "obj-c", &aux)
			return len(aux.PrvCandidates)
		}).Should(Equal(2))

		cmds <- worker.Terminate
		Eventually(done).Should(BeClosed())
	})

	It("dead-letters a packet that fails schema decoding", func() {
		w, b, _ := newTestWorker()
		Expect(b.PushLeft(ctx, alertworker.PacketQueue, []byte("not a valid avro record"))).To(Succeed())

		cmds := make(chan worker.Cmd, 1)
		done := runUntilDrained(ctx, w, cmds)

		Eventually(func() (int64, error) { return b.ListLen(ctx, alertworker.DeadLetterList) }).Should(Equal(int64(1)))
		Eventually(func() (int64, error) { return b.ListLen(ctx, alertworker.PacketQueueTemp) }).Should(Equal(int64(0)))

		cmds <- worker.Terminate
		Eventually(done).Should(BeClosed())
	})
})
