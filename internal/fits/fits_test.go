package fits_test

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"math"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/fits"
)

// record renders an 80-byte ASCII FITS header record, e.g.
// "NAXIS1  = 10                                                                  ".
func record(key string, value int) string {
	r := fmt.Sprintf("%-8s= %20d", key, value)
	for len(r) < 80 {
		r += " "
	}
	return r[:80]
}

func endRecord() string {
	r := "END"
	for len(r) < 80 {
		r += " "
	}
	return r
}

// buildStamp assembles a minimal gzip-compressed FITS stamp with a single
// 2880-byte header block (NAXIS1/NAXIS2 + END) followed by a big-endian
// float32 payload, mirroring the layout internal/fits.Normalize expects.
func buildStamp(n1, n2 int, pixels []float32) []byte {
	var header bytes.Buffer
	header.WriteString(record("NAXIS1", n1))
	header.WriteString(record("NAXIS2", n2))
	header.WriteString(endRecord())
	for header.Len() < 2880 {
		header.WriteByte(' ')
	}

	var payload bytes.Buffer
	for _, p := range pixels {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], math.Float32bits(p))
		payload.Write(buf[:])
	}

	raw := append(header.Bytes(), payload.Bytes()...)

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	w.Write(raw)
	w.Close()
	return gz.Bytes()
}

var _ = Describe("Normalize", func() {
	It("centers a small image into the fixed tile size", func() {
		pixels := []float32{1, 1, 1, 1}
		tile, err := fits.Normalize(buildStamp(2, 2, pixels))
		Expect(err).NotTo(HaveOccurred())

		nonZero := 0
		for _, v := range tile {
			if v != 0 {
				nonZero++
			}
		}
		Expect(nonZero).To(Equal(4))
	})

	It("rejects an image whose NAXIS exceeds the tile size", func() {
		pixels := make([]float32, 64*64)
		_, err := fits.Normalize(buildStamp(64, 64, pixels))
		Expect(err).To(MatchError(fits.ErrTruncated))
	})

	It("accepts an image exactly at the tile size boundary", func() {
		pixels := make([]float32, fits.TileSize*fits.TileSize)
		for i := range pixels {
			pixels[i] = 1
		}
		tile, err := fits.Normalize(buildStamp(fits.TileSize, fits.TileSize, pixels))
		Expect(err).NotTo(HaveOccurred())
		Expect(tile).NotTo(BeNil())
	})

	It("sanitizes NaN to zero and clamps +/-Inf to the finite extremes", func() {
		pixels := []float32{
			float32(math.NaN()), float32(math.Inf(1)),
			float32(math.Inf(-1)), 2,
		}
		tile, err := fits.Normalize(buildStamp(2, 2, pixels))
		Expect(err).NotTo(HaveOccurred())

		for _, v := range tile {
			Expect(math.IsNaN(float64(v))).To(BeFalse())
			Expect(math.IsInf(float64(v), 0)).To(BeFalse())
		}
	})

	It("L2-normalizes the tile to unit norm", func() {
		pixels := []float32{3, 4}
		tile, err := fits.Normalize(buildStamp(2, 1, pixels))
		Expect(err).NotTo(HaveOccurred())

		var sumSq float64
		for _, v := range tile {
			sumSq += float64(v) * float64(v)
		}
		Expect(math.Sqrt(sumSq)).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("returns an error when the header carries no NAXIS records", func() {
		var header bytes.Buffer
		header.WriteString(endRecord())
		for header.Len() < 2880 {
			header.WriteByte(' ')
		}
		var gz bytes.Buffer
		w := gzip.NewWriter(&gz)
		w.Write(header.Bytes())
		w.Close()

		_, err := fits.Normalize(gz.Bytes())
		Expect(err).To(MatchError(fits.ErrBadHeader))
	})

	It("returns an error when the payload is shorter than NAXIS1*NAXIS2 floats", func() {
		_, err := fits.Normalize(buildStamp(4, 4, []float32{1, 2, 3}))
		Expect(err).To(MatchError(fits.ErrShortData))
	})

	It("returns an error for non-gzip input", func() {
		_, err := fits.Normalize([]byte("not gzip data"))
		Expect(err).To(HaveOccurred())
	})
})
