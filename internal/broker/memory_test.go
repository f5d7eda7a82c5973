package broker_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/broker"
)

var _ = Describe("memory DAO", func() {
	var (
		ctx context.Context
		b   broker.DAO
	)

	BeforeEach(func() {
		ctx = context.Background()
		b = broker.NewMemory()
	})

	Describe("list operations", func() {
		It("pops in FIFO order across pushes", func() {
			Expect(b.PushLeft(ctx, "q", []byte("first"))).To(Succeed())
			Expect(b.PushLeft(ctx, "q", []byte("second"))).To(Succeed())

			v, ok, err := b.PopRightBlocking(ctx, "q", time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(string(v)).To(Equal("first"))
		})

		It("times out with ok=false on an empty list", func() {
			_, ok, err := b.PopRightBlocking(ctx, "empty", 10*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("atomically moves an element between two lists", func() {
			Expect(b.PushLeft(ctx, "src", []byte("payload"))).To(Succeed())

			v, ok, err := b.PopRightPushLeft(ctx, "src", "dst")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(string(v)).To(Equal("payload"))

			n, _ := b.ListLen(ctx, "src")
			Expect(n).To(Equal(int64(0)))
			n, _ = b.ListLen(ctx, "dst")
			Expect(n).To(Equal(int64(1)))
		})

		It("reports false on PopRightPushLeft from an empty source", func() {
			_, ok, err := b.PopRightPushLeft(ctx, "empty-src", "dst")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("removes only up to count matching occurrences", func() {
			Expect(b.PushLeft(ctx, "q", []byte("x"))).To(Succeed())
			Expect(b.PushLeft(ctx, "q", []byte("x"))).To(Succeed())
			Expect(b.PushLeft(ctx, "q", []byte("x"))).To(Succeed())

			Expect(b.Remove(ctx, "q", []byte("x"), 2)).To(Succeed())
			n, _ := b.ListLen(ctx, "q")
			Expect(n).To(Equal(int64(1)))
		})
	})

	Describe("stream/consumer-group operations", func() {
		It("reads only newly-appended entries per group position", func() {
			_, err := b.StreamAppend(ctx, "s", map[string]any{"candid": int64(1)})
			Expect(err).NotTo(HaveOccurred())
			Expect(b.StreamGroupCreate(ctx, "s", "g1", "0")).To(Succeed())

			entries, err := b.StreamGroupRead(ctx, "s", "g1", "consumer-a", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))

			// A second read with no new entries returns nothing.
			entries, err = b.StreamGroupRead(ctx, "s", "g1", "consumer-a", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())

			_, err = b.StreamAppend(ctx, "s", map[string]any{"candid": int64(2)})
			Expect(err).NotTo(HaveOccurred())
			entries, err = b.StreamGroupRead(ctx, "s", "g1", "consumer-a", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("treats creating an already-existing group as a no-op, not an error", func() {
			Expect(b.StreamGroupCreate(ctx, "s", "g1", "0")).To(Succeed())
			Expect(b.StreamGroupCreate(ctx, "s", "g1", "0")).To(Succeed())
		})

		It("tracks independent read positions per group on the same stream", func() {
			_, err := b.StreamAppend(ctx, "s", map[string]any{"candid": int64(1)})
			Expect(err).NotTo(HaveOccurred())
			Expect(b.StreamGroupCreate(ctx, "s", "g1", "0")).To(Succeed())
			Expect(b.StreamGroupCreate(ctx, "s", "g2", "0")).To(Succeed())

			e1, _ := b.StreamGroupRead(ctx, "s", "g1", "c1", 10)
			Expect(e1).To(HaveLen(1))

			e2, _ := b.StreamGroupRead(ctx, "s", "g2", "c1", 10)
			Expect(e2).To(HaveLen(1))
		})
	})

	It("extracts candid as int64 from stream fields", func() {
		n, ok := broker.CandIDFromFields(map[string]any{"candid": int64(42)})
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(42)))

		n, ok = broker.CandIDFromFields(map[string]any{"candid": "42"})
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(42)))

		_, ok = broker.CandIDFromFields(map[string]any{})
		Expect(ok).To(BeFalse())
	})
})
