package alert

import (
	"bytes"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
)

// schemaJSON is the Avro writer schema that Encode embeds in the Object
// Container Files it produces (spec.md §6). It mirrors the Packet struct's
// avro tags.
const schemaJSON = `{
  "type": "record",
  "name": "Packet",
  "fields": [
    {"name": "schema_version", "type": "string"},
    {"name": "publisher", "type": "string"},
    {"name": "object_id", "type": "string"},
    {"name": "candid", "type": "long"},
    {"name": "candidate", "type": {
      "type": "record", "name": "Candidate", "fields": [
        {"name": "candid", "type": "long"},
        {"name": "ra", "type": "double"},
        {"name": "dec", "type": "double"},
        {"name": "programid", "type": "int"},
        {"name": "magpsf", "type": "double"},
        {"name": "fid", "type": "string"},
        {"name": "jd", "type": "double"},
        {"name": "isdiffpos", "type": "boolean"}
      ]
    }},
    {"name": "prv_candidates", "type": {"type": "array", "items": {
      "type": "record", "name": "PrevCandidate", "fields": [
        {"name": "candid", "type": "long"},
        {"name": "jd", "type": "double"},
        {"name": "programid", "type": "int"}
      ]
    }}},
    {"name": "cutouts", "type": {
      "type": "record", "name": "Cutouts", "fields": [
        {"name": "cutoutScience", "type": "bytes"},
        {"name": "cutoutTemplate", "type": "bytes"},
        {"name": "cutoutDifference", "type": "bytes"}
      ]
    }}
  ]
}`

// Schema is schemaJSON compiled once at package load. Decode does not use
// it: it reads each container with the writer schema embedded in that
// container's header.
var Schema = avro.MustParse(schemaJSON)

// Decode parses raw bytes as a full Avro Object Container File (spec.md
// §6) and returns every record it holds as a Packet, in file order. A
// single broker delivery is one OCF blob that may hold one or more alert
// records — the reference consumer reads it with an OCF reader and loops
// over every record it yields rather than assuming exactly one, so Decode
// does the same instead of treating raw as a bare single Avro record.
func Decode(raw []byte) ([]*Packet, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		// Not a valid OCF container (bad magic bytes, header, or sync
		// marker): this will never decode successfully on retry.
		return nil, &DecodeErr{Fatal: true, Err: fmt.Errorf("alert: open OCF container: %w", err)}
	}

	var packets []*Packet
	for dec.HasNext() {
		var p Packet
		if err := dec.Decode(&p); err != nil {
			return nil, &DecodeErr{Fatal: true, Err: fmt.Errorf("alert: decode OCF record: %w", err)}
		}
		packets = append(packets, &p)
	}
	if len(packets) == 0 {
		return nil, &DecodeErr{Fatal: true, Err: fmt.Errorf("alert: OCF container has no records")}
	}
	return packets, nil
}

// Encode serializes a single Packet as a one-record Avro Object Container
// File. Only tests call it; the archive backfill loader pushes the archived
// container bytes as they are.
func Encode(p *Packet) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(schemaJSON, &buf)
	if err != nil {
		return nil, fmt.Errorf("alert: open OCF encoder: %w", err)
	}
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("alert: avro encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("alert: close OCF encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeErr distinguishes a schema mismatch (fatal, dead-letter per
// spec.md §7) from other decode failures callers may want to retry.
type DecodeErr struct {
	Fatal bool
	Err   error
}

func (e *DecodeErr) Error() string { return e.Err.Error() }
func (e *DecodeErr) Unwrap() error { return e.Err }
