package coords_test

import (
	"math"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/coords"
)

var _ = Describe("sexagesimal formatting", func() {
	DescribeTable("DegToHMS",
		func(ra float64, want string) {
			Expect(coords.DegToHMS(ra)).To(Equal(want))
		},
		Entry("zero", 0.0, "00:00:00.000"),
		Entry("wraps at 360", 360.0, "00:00:00.000"),
		Entry("quarter turn", 90.0, "06:00:00.000"),
	)

	DescribeTable("DegToDMS",
		func(dec float64, want string) {
			Expect(coords.DegToDMS(dec)).To(Equal(want))
		},
		Entry("zero", 0.0, "+00:00:00.000"),
		Entry("negative", -45.5, "-45:30:00.000"),
		Entry("near pole", 89.999722, "+89:59:58.999"),
	)

	It("round-trips HMS within a millisecond", func() {
		ra := 123.456789
		got := coords.HMSToDeg(8, 13, 49.629)
		Expect(got).To(BeNumerically("~", ra, 1e-3))
	})

	It("round-trips DMS within a millisecond", func() {
		dec := -33.987
		got := coords.DMSToDeg(-1, 33, 59, 13.2)
		Expect(got).To(BeNumerically("~", dec, 1e-3))
	})
})

var _ = Describe("equatorial/galactic rotation", func() {
	It("round-trips to within 1e-6 degrees", func() {
		ra, dec := 83.633, 22.0145 // Crab nebula
		l, b := coords.EquatorialToGalactic(ra, dec)
		ra2, dec2 := coords.GalacticToEquatorial(l, b)
		Expect(ra2).To(BeNumerically("~", ra, 1e-6))
		Expect(dec2).To(BeNumerically("~", dec, 1e-6))
	})

	It("maps the north celestial pole to a fixed galactic latitude", func() {
		_, b := coords.EquatorialToGalactic(0, 90)
		Expect(b).To(BeNumerically("~", 27.12825, 1e-6))
	})
})

var _ = Describe("GreatCircle", func() {
	It("returns zero for identical points", func() {
		Expect(coords.GreatCircle(10, 10, 10, 10)).To(BeNumerically("~", 0, 1e-9))
	})

	It("is well-behaved across the ra=0/360 boundary", func() {
		d := coords.GreatCircle(0.001, 0, 359.999, 0)
		Expect(d).To(BeNumerically("<", 0.01))
	})

	It("is well-behaved at the poles", func() {
		d := coords.GreatCircle(0, 89.9999, 180, 89.9999)
		Expect(d).To(BeNumerically("<", 0.01))
	})

	It("returns 180 for antipodal points", func() {
		d := coords.GreatCircle(0, 0, 180, 0)
		Expect(d).To(BeNumerically("~", 180, 1e-6))
	})
})

var _ = Describe("InEllipse", func() {
	It("includes the center", func() {
		Expect(coords.InEllipse(10, 10, 10, 10, 1.0, 1.0, 0)).To(BeTrue())
	})

	It("excludes a point well outside the circle", func() {
		Expect(coords.InEllipse(10.5, 10, 10, 10, 0.001, 1.0, 0)).To(BeFalse())
	})

	It("treats axisRatio=1 as a circle regardless of position angle", func() {
		a := coords.InEllipse(10.0005, 10, 10, 10, 0.01, 1.0, 0)
		b := coords.InEllipse(10.0005, 10, 10, 10, 0.01, 1.0, 45)
		Expect(a).To(Equal(b))
	})

	It("is more permissive along the major axis than the minor axis", func() {
		// semi-major 0.02 deg along PA=0 (north), semi-minor 0.01 deg (ratio 0.5)
		deltaRA := 0.019 / math.Cos(10*math.Pi/180)
		north := coords.InEllipse(10, 10.019, 10, 10, 0.02, 0.5, 0)
		east := coords.InEllipse(10+deltaRA, 10, 10, 10, 0.02, 0.5, 0)
		Expect(north).To(BeTrue())
		Expect(east).To(BeFalse())
	})
})

var _ = Describe("ArcsecToRadians", func() {
	It("converts one arcsecond to its known radian value", func() {
		Expect(coords.ArcsecToRadians(1)).To(BeNumerically("~", 4.84814e-6, 1e-10))
	})
})

var _ = Describe("GeoJSONPoint", func() {
	It("shifts longitude by -180 per the primary document convention", func() {
		p := coords.GeoJSONPoint(10, 20)
		Expect(p.Type).To(Equal("Point"))
		Expect(p.Coordinates[0]).To(BeNumerically("~", -170, 1e-9))
		Expect(p.Coordinates[1]).To(BeNumerically("~", 20, 1e-9))
	})
})
