package alert_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/alert"
)

var _ = Describe("DedupPrvCandidates", func() {
	It("returns an empty slice for empty input", func() {
		out := alert.DedupPrvCandidates(nil)
		Expect(out).To(BeEmpty())
	})

	It("leaves a slice with no duplicates unchanged", func() {
		in := []alert.PrevCandidate{{CandID: 1}, {CandID: 2}, {CandID: 3}}
		out := alert.DedupPrvCandidates(in)
		Expect(out).To(HaveLen(3))
	})

	It("drops later occurrences of a repeated candid, keeping the first", func() {
		in := []alert.PrevCandidate{
			{CandID: 1, JD: 100},
			{CandID: 2, JD: 101},
			{CandID: 1, JD: 999}, // duplicate identity, different payload
		}
		out := alert.DedupPrvCandidates(in)
		Expect(out).To(HaveLen(2))
		Expect(out[0].CandID).To(Equal(int64(1)))
		Expect(out[0].JD).To(Equal(100.0))
		Expect(out[1].CandID).To(Equal(int64(2)))
	})

	It("preserves first-occurrence order", func() {
		in := []alert.PrevCandidate{{CandID: 3}, {CandID: 1}, {CandID: 3}, {CandID: 2}}
		out := alert.DedupPrvCandidates(in)
		ids := make([]int64, len(out))
		for i, c := range out {
			ids[i] = c.CandID
		}
		Expect(ids).To(Equal([]int64{3, 1, 2}))
	})
})

var _ = Describe("NewCoordinates", func() {
	It("computes a consistent coordinate block", func() {
		c := alert.NewCoordinates(83.633, 22.0145)
		Expect(c.HMS).NotTo(BeEmpty())
		Expect(c.DMS).NotTo(BeEmpty())
		Expect(c.RadecGeoJSON.Type).To(Equal("Point"))
		Expect(c.RadecGeoJSON.Coordinates[0]).To(BeNumerically("~", 83.633-180, 1e-9))
	})
})
