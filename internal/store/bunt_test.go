package store_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/store"
)

type doc struct {
	Candid int64  `json:"candid"`
	Name   string `json:"name"`
}

var _ = Describe("buntDAO", func() {
	var (
		ctx context.Context
		dao store.DAO
	)

	BeforeEach(func() {
		ctx = context.Background()
		d, err := store.NewBunt(":memory:")
		Expect(err).NotTo(HaveOccurred())
		dao = d
	})

	AfterEach(func() {
		Expect(dao.Close(ctx)).To(Succeed())
	})

	It("inserts a document and finds it back by key", func() {
		Expect(dao.InsertIfAbsent(ctx, "alerts", "candid", int64(1), &doc{Candid: 1, Name: "a"})).To(Succeed())

		var out doc
		found, err := dao.FindOne(ctx, "alerts", "candid", int64(1), &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(out.Name).To(Equal("a"))
	})

	It("returns ErrDuplicate on a repeated key", func() {
		Expect(dao.InsertIfAbsent(ctx, "alerts", "candid", int64(1), &doc{Candid: 1})).To(Succeed())
		err := dao.InsertIfAbsent(ctx, "alerts", "candid", int64(1), &doc{Candid: 1})
		Expect(errors.Is(err, store.ErrDuplicate)).To(BeTrue())
	})

	It("returns found=false for a missing key", func() {
		var out doc
		found, err := dao.FindOne(ctx, "alerts", "candid", int64(999), &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("counts documents matching a field value", func() {
		Expect(dao.InsertIfAbsent(ctx, "aux", "_id", "obj-a", map[string]any{"_id": "obj-a", "object_id": "obj-a"})).To(Succeed())
		Expect(dao.InsertIfAbsent(ctx, "aux", "_id", "obj-b", map[string]any{"_id": "obj-b", "object_id": "obj-b"})).To(Succeed())

		n, err := dao.CountByKey(ctx, "aux", "object_id", "obj-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})

	It("appends to an array field with set semantics (no duplicates)", func() {
		Expect(dao.InsertIfAbsent(ctx, "aux", "_id", "obj-a", map[string]any{"_id": "obj-a", "prv_candidates": []any{}})).To(Succeed())

		Expect(dao.AppendSet(ctx, "aux", "_id", "obj-a", "prv_candidates", []any{map[string]any{"candid": float64(1)}})).To(Succeed())
		Expect(dao.AppendSet(ctx, "aux", "_id", "obj-a", "prv_candidates", []any{map[string]any{"candid": float64(1)}})).To(Succeed())
		Expect(dao.AppendSet(ctx, "aux", "_id", "obj-a", "prv_candidates", []any{map[string]any{"candid": float64(2)}})).To(Succeed())

		var out map[string]any
		found, err := dao.FindOne(ctx, "aux", "_id", "obj-a", &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		items := out["prv_candidates"].([]any)
		Expect(items).To(HaveLen(2))
	})

	It("finds documents within a query radius and excludes ones further away", func() {
		Expect(dao.InsertIfAbsent(ctx, "catalog", "_id", 1, map[string]any{"ra": 10.0, "dec": 20.0})).To(Succeed())
		Expect(dao.InsertIfAbsent(ctx, "catalog", "_id", 2, map[string]any{"ra": 200.0, "dec": -50.0})).To(Succeed())

		rows, err := dao.GeoWithinRadius(ctx, "catalog", 10.0-180, 20.0, 0.01, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].RA).To(Equal(10.0))
	})

	It("pings successfully", func() {
		Expect(dao.Ping(ctx)).To(Succeed())
	})
})
