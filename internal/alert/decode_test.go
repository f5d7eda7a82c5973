package alert_test

import (
	"bytes"

	"github.com/hamba/avro/v2/ocf"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/alert"
)

var _ = Describe("Decode", func() {
	It("round-trips a single-record Object Container File built via Encode", func() {
		p := &alert.Packet{
			SchemaVersion: "1.0",
			Publisher:     "test",
			ObjectID:      "obj-a",
			CandID:        1001,
			Candidate:     alert.Candidate{CandID: 1001, RA: 10.5, Dec: 20.5, ProgramID: 1, Magnitude: 18.2, Filter: "g", JD: 2460000.5, IsDiffPos: true},
		}
		raw, err := alert.Encode(p)
		Expect(err).NotTo(HaveOccurred())

		packets, err := alert.Decode(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(packets).To(HaveLen(1))
		Expect(packets[0].ObjectID).To(Equal("obj-a"))
		Expect(packets[0].CandID).To(Equal(int64(1001)))
	})

	It("decodes every record out of a multi-record Object Container File", func() {
		// alert.Schema's JSON source isn't exported, so the schema is
		// restated here verbatim — it must stay in lockstep with
		// internal/alert/decode.go's schemaJSON.
		const schemaJSON = `{"type":"record","name":"Packet","fields":[
			{"name":"schema_version","type":"string"},
			{"name":"publisher","type":"string"},
			{"name":"object_id","type":"string"},
			{"name":"candid","type":"long"},
			{"name":"candidate","type":{"type":"record","name":"Candidate","fields":[
				{"name":"candid","type":"long"},{"name":"ra","type":"double"},{"name":"dec","type":"double"},
				{"name":"programid","type":"int"},{"name":"magpsf","type":"double"},{"name":"fid","type":"string"},
				{"name":"jd","type":"double"},{"name":"isdiffpos","type":"boolean"}]}},
			{"name":"prv_candidates","type":{"type":"array","items":{"type":"record","name":"PrevCandidate","fields":[
				{"name":"candid","type":"long"},{"name":"jd","type":"double"},{"name":"programid","type":"int"}]}}},
			{"name":"cutouts","type":{"type":"record","name":"Cutouts","fields":[
				{"name":"cutoutScience","type":"bytes"},{"name":"cutoutTemplate","type":"bytes"},{"name":"cutoutDifference","type":"bytes"}]}}
		]}`

		var buf bytes.Buffer
		enc, err := ocf.NewEncoder(schemaJSON, &buf)
		Expect(err).NotTo(HaveOccurred())

		first := alert.Packet{SchemaVersion: "1.0", Publisher: "test", ObjectID: "obj-x", CandID: 1, Candidate: alert.Candidate{CandID: 1, RA: 1, Dec: 1, Filter: "g"}}
		second := alert.Packet{SchemaVersion: "1.0", Publisher: "test", ObjectID: "obj-y", CandID: 2, Candidate: alert.Candidate{CandID: 2, RA: 2, Dec: 2, Filter: "r"}}
		Expect(enc.Encode(&first)).To(Succeed())
		Expect(enc.Encode(&second)).To(Succeed())
		Expect(enc.Close()).To(Succeed())

		packets, err := alert.Decode(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(packets).To(HaveLen(2))
		Expect(packets[0].ObjectID).To(Equal("obj-x"))
		Expect(packets[1].ObjectID).To(Equal("obj-y"))
	})

	It("rejects bytes that are not a valid Object Container File as fatal", func() {
		_, err := alert.Decode([]byte("not avro at all"))
		Expect(err).To(HaveOccurred())
		var decErr *alert.DecodeErr
		Expect(err).To(BeAssignableToTypeOf(decErr))
		Expect(err.(*alert.DecodeErr).Fatal).To(BeTrue())
	})
})
