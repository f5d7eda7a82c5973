// Package fits implements the image-normalization contract of spec.md
// §4.1: a gzip-compressed FITS stamp is decompressed, its header is
// scanned for NAXIS1/NAXIS2, the big-endian float32 payload is extracted,
// centered into a fixed-size tile, sanitized for NaN/Inf, and
// L2-normalized. This is available to the core but not invoked by
// AlertWorker's hot path.
package fits

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/gzip"
)

// TileSize is the fixed output tile dimension (spec.md §4.1: 63x63).
const TileSize = 63

const headerBlockSize = 2880

var (
	// ErrTruncated is returned when an image whose NAXIS exceeds TileSize
	// is rejected outright, per spec.md §8's "NAXIS>63 (truncate policy:
	// implementation may reject; spec this choice)" — this implementation
	// rejects oversized images rather than silently truncating data a
	// classifier downstream would otherwise train on.
	ErrTruncated  = errors.New("fits: image larger than tile size, rejected")
	ErrBadHeader  = errors.New("fits: NAXIS1/NAXIS2 not found in header block")
	ErrShortData  = errors.New("fits: payload shorter than NAXIS1*NAXIS2 floats")
)

// Tile is a normalized TileSize x TileSize row-major image.
type Tile [TileSize * TileSize]float32

// Normalize decompresses a gzip-compressed FITS stamp and returns its
// normalized tile.
func Normalize(gzipped []byte) (*Tile, error) {
	raw, err := gunzip(gzipped)
	if err != nil {
		return nil, fmt.Errorf("fits: gunzip: %w", err)
	}
	n1, n2, err := scanHeader(raw)
	if err != nil {
		return nil, err
	}
	if n1 > TileSize || n2 > TileSize {
		return nil, ErrTruncated
	}
	pixels, err := readFloats(raw[headerBlockSize:], n1*n2)
	if err != nil {
		return nil, err
	}
	tile := center(pixels, n1, n2)
	sanitize(tile)
	l2Normalize(tile)
	return tile, nil
}

func gunzip(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scanHeader reads the first 2880-byte header block and looks for the
// ASCII records "NAXIS1  = N1" / "NAXIS2  = N2", per spec.md §4.1.
func scanHeader(raw []byte) (n1, n2 int, err error) {
	if len(raw) < headerBlockSize {
		return 0, 0, ErrBadHeader
	}
	header := raw[:headerBlockSize]
	const recLen = 80
	found1, found2 := false, false
	for off := 0; off+recLen <= len(header); off += recLen {
		rec := string(header[off : off+recLen])
		key := rec[:min(8, len(rec))]
		switch trimRight(key) {
		case "NAXIS1":
			n1, err = parseIntValue(rec)
			found1 = err == nil
		case "NAXIS2":
			n2, err = parseIntValue(rec)
			found2 = err == nil
		}
		if trimRight(key) == "END" {
			break
		}
	}
	if !found1 || !found2 {
		return 0, 0, ErrBadHeader
	}
	return n1, n2, nil
}

func parseIntValue(rec string) (int, error) {
	idx := indexByte(rec, '=')
	if idx < 0 {
		return 0, ErrBadHeader
	}
	val := trim(rec[idx+1:])
	// value field may carry a trailing comment after '/'
	if slash := indexByte(val, '/'); slash >= 0 {
		val = trim(val[:slash])
	}
	var n int
	_, err := fmt.Sscanf(val, "%d", &n)
	return n, err
}

func readFloats(payload []byte, count int) ([]float32, error) {
	need := count * 4
	if len(payload) < need {
		return nil, ErrShortData
	}
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		bits := binary.BigEndian.Uint32(payload[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// center zero-pads pixels (n1 x n2) symmetrically into a TileSize x TileSize
// tile, per spec.md §4.1.
func center(pixels []float32, n1, n2 int) *Tile {
	var tile Tile
	padRow := (TileSize - n2) / 2
	padCol := (TileSize - n1) / 2
	for row := 0; row < n2; row++ {
		for col := 0; col < n1; col++ {
			src := pixels[row*n1+col]
			dstRow := row + padRow
			dstCol := col + padCol
			if dstRow < 0 || dstRow >= TileSize || dstCol < 0 || dstCol >= TileSize {
				continue
			}
			tile[dstRow*TileSize+dstCol] = src
		}
	}
	return &tile
}

// sanitize replaces NaN -> 0, +Inf -> max finite positive, -Inf -> min
// finite negative, per spec.md §4.1.
func sanitize(tile *Tile) {
	maxFinite := float32(0)
	minFinite := float32(0)
	haveFinite := false
	for _, v := range tile {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}
		if !haveFinite || v > maxFinite {
			maxFinite = v
		}
		if !haveFinite || v < minFinite {
			minFinite = v
		}
		haveFinite = true
	}
	for i, v := range tile {
		switch {
		case math.IsNaN(float64(v)):
			tile[i] = 0
		case math.IsInf(float64(v), 1):
			tile[i] = maxFinite
		case math.IsInf(float64(v), -1):
			tile[i] = minFinite
		}
	}
}

// l2Normalize divides every pixel by the tile's Frobenius norm, per
// spec.md §4.1.
func l2Normalize(tile *Tile) {
	var sumSq float64
	for _, v := range tile {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i, v := range tile {
		tile[i] = float32(float64(v) / norm)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func trimRight(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == '\t') {
		i--
	}
	return s[:i]
}

func trim(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t' || s[start] == '\'') {
		start++
	}
	end := len(s)
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\'') {
		end--
	}
	return s[start:end]
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
