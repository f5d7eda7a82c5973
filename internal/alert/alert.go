// Package alert defines the wire and persisted shapes of an alert packet
// (spec.md §3) and decodes packets from the Avro Object Container File
// format named in spec.md §6, using github.com/hamba/avro/v2.
package alert

import (
	"github.com/skyforge-astro/boom/internal/coords"
)

// Candidate carries the astrometry, photometry, and reference-catalog
// cross-IDs for one detection, per spec.md §3.
type Candidate struct {
	CandID      int64   `avro:"candid" bson:"candid" json:"candid"`
	RA          float64 `avro:"ra" bson:"ra" json:"ra"`
	Dec         float64 `avro:"dec" bson:"dec" json:"dec"`
	ProgramID   int     `avro:"programid" bson:"programid" json:"programid"`
	Magnitude   float64 `avro:"magpsf" bson:"magpsf" json:"magpsf"`
	Filter      string  `avro:"fid" bson:"fid" json:"fid"`
	JD          float64 `avro:"jd" bson:"jd" json:"jd"`
	IsDiffPos   bool    `avro:"isdiffpos" bson:"isdiffpos" json:"isdiffpos"`
}

// PrevCandidate is an earlier detection/non-detection on the same object,
// per spec.md's prv_candidates glossary entry.
type PrevCandidate struct {
	CandID    int64   `avro:"candid" bson:"candid" json:"candid"`
	JD        float64 `avro:"jd" bson:"jd" json:"jd"`
	ProgramID int     `avro:"programid" bson:"programid" json:"programid"`
}

// Cutouts carry the three gzip-compressed FITS image blobs, per spec.md §3.
type Cutouts struct {
	Science    []byte `avro:"cutoutScience" json:"-"`
	Template   []byte `avro:"cutoutTemplate" json:"-"`
	Difference []byte `avro:"cutoutDifference" json:"-"`
}

// Packet is the decoded alert packet, the input record of spec.md §3.
type Packet struct {
	SchemaVersion string          `avro:"schema_version"`
	Publisher     string          `avro:"publisher"`
	ObjectID      string          `avro:"object_id"`
	CandID        int64           `avro:"candid"`
	Candidate     Candidate       `avro:"candidate"`
	PrvCandidates []PrevCandidate `avro:"prv_candidates"`
	Cutouts       Cutouts         `avro:"cutouts"`
}

// Coordinates is the computed coordinate block added to the primary
// document, per spec.md §3.
type Coordinates struct {
	HMS          string        `bson:"hms" json:"hms"`
	DMS          string        `bson:"dms" json:"dms"`
	RadecGeoJSON coords.Point  `bson:"radec_geojson" json:"radec_geojson"`
	L            float64       `bson:"l" json:"l"`
	B            float64       `bson:"b" json:"b"`
}

// Primary is the primary alert document, per spec.md §3: the packet minus
// prv_candidates, plus the computed coordinates block. Primary key: CandID,
// with a unique index (spec.md invariant 1).
type Primary struct {
	SchemaVersion string      `bson:"schema_version" json:"schema_version"`
	Publisher     string      `bson:"publisher" json:"publisher"`
	ObjectID      string      `bson:"object_id" json:"object_id"`
	CandID        int64       `bson:"candid" json:"candid"`
	Candidate     Candidate   `bson:"candidate" json:"candidate"`
	Coordinates   Coordinates `bson:"coordinates" json:"coordinates"`
}

// CrossMatchRow decorates a reference-catalog row with the separation (and
// optionally distance) computed by the cross-match engine, per spec.md §3.
type CrossMatchRow struct {
	Row                     map[string]any `bson:",inline" json:"row"`
	AngularSeparationArcsec float64        `bson:"angular_separation_arcsec" json:"angular_separation_arcsec"`
	DistanceKpc             *float64       `bson:"distance_kpc,omitempty" json:"distance_kpc,omitempty"`
}

// Aux is the per-object_id aux document, per spec.md §3 (invariant 2).
type Aux struct {
	ObjectID      string                     `bson:"_id" json:"object_id"`
	PrvCandidates []PrevCandidate            `bson:"prv_candidates" json:"prv_candidates"`
	CrossMatches  map[string][]CrossMatchRow `bson:"cross_matches" json:"cross_matches"`
}

// NewCoordinates computes the coordinate block for (ra, dec), per spec.md §3.
func NewCoordinates(ra, dec float64) Coordinates {
	l, b := galacticOf(ra, dec)
	return Coordinates{
		HMS:          hmsOf(ra),
		DMS:          dmsOf(dec),
		RadecGeoJSON: coords.GeoJSONPoint(ra, dec),
		L:            l,
		B:            b,
	}
}

func hmsOf(ra float64) string       { return coords.DegToHMS(ra) }
func dmsOf(dec float64) string      { return coords.DegToDMS(dec) }
func galacticOf(ra, dec float64) (float64, float64) {
	return coords.EquatorialToGalactic(ra, dec)
}

// DedupPrvCandidates returns a new slice with duplicate CandID entries
// removed, preserving the first occurrence's order — spec.md invariant 2:
// prv_candidates is a set (no duplicate detection identities).
func DedupPrvCandidates(in []PrevCandidate) []PrevCandidate {
	seen := make(map[int64]struct{}, len(in))
	out := make([]PrevCandidate, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.CandID]; ok {
			continue
		}
		seen[c.CandID] = struct{}{}
		out = append(out, c)
	}
	return out
}
