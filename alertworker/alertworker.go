// Package alertworker implements the AlertWorker stage of spec.md §4.1:
// decode a packet, deduplicate by candid, enrich with coordinates and
// catalog cross-matches, persist primary+aux documents, and enqueue the
// candid for classification.
package alertworker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/seiflotfy/cuckoofilter"

	"github.com/skyforge-astro/boom/internal/alert"
	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/crossmatch"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"
)

const (
	PacketQueue     = "packet_queue"
	PacketQueueTemp = "packet_queue_temp"
	ClassifierQueue = "classifier_queue"
	DeadLetterList  = "packet_queue_dead"

	// TempListBackpressureLimit bounds how deep packet_queue_temp may grow
	// before AlertWorker pauses, per spec.md §5 "Backpressure".
	TempListBackpressureLimit = 10000

	popTimeout = 2 * time.Second
)

// Worker implements worker.Runner for one AlertWorker instance.
type Worker struct {
	Broker        broker.DAO
	Store         store.DAO
	Crossmatch    *crossmatch.Engine
	AlertsColl    string
	AuxColl       string

	// dedupFilter is a probabilistic fast-path pre-check in front of the
	// authoritative unique-index check: a candid the cuckoo filter has not
	// seen is treated as new without a DB round trip, while every filter
	// hit (a genuine duplicate or a rare false positive) is confirmed with
	// one CountByKey call.
	dedupFilter *cuckoo.Filter
}

// New builds an AlertWorker bound to the given broker/store/cross-match
// engine and collection names.
func New(b broker.DAO, s store.DAO, cm *crossmatch.Engine, alertsColl, auxColl string) *Worker {
	return &Worker{
		Broker:      b,
		Store:       s,
		Crossmatch:  cm,
		AlertsColl:  alertsColl,
		AuxColl:     auxColl,
		dedupFilter: cuckoo.NewFilter(1 << 20),
	}
}

// Run implements worker.Runner: loop popping packets until Terminate.
func (w *Worker) Run(ctx context.Context, cmds <-chan worker.Cmd) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-cmds:
			if cmd == worker.Terminate {
				return
			}
		default:
		}

		if depth, err := w.Broker.ListLen(ctx, PacketQueueTemp); err == nil && depth > TempListBackpressureLimit {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		raw, ok, err := w.Broker.PopRightPushLeft(ctx, PacketQueue, PacketQueueTemp)
		if err != nil {
			nlog.Warningf("alertworker: broker move failed: %v", err)
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if !ok {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		w.process(ctx, raw)
	}
}

// recordOutcome reports how processPacket wants the enclosing delivery
// handled once every record in it has been attempted.
type recordOutcome int

const (
	// recordDone means this record reached a terminal state (persisted,
	// or a benign duplicate) and needs nothing further from process().
	recordDone recordOutcome = iota
	// recordRequeue means a transient failure occurred before the record
	// was durably persisted; the whole delivery should be requeued.
	recordRequeue
	// recordHold means the record's primary document is durable but a
	// downstream step failed; the whole delivery must stay in
	// packet_queue_temp for recovery rather than be requeued or dropped,
	// per spec.md §7 invariant 3.
	recordHold
)

// process implements the full per-delivery contract of spec.md §4.1: raw
// is one Avro Object Container File that may hold one or more alert
// records (the reference consumer loops over every record an OCF reader
// yields from a single delivery), each of which runs the per-packet
// pipeline independently. The first record that needs a requeue or a
// hold stops the sweep immediately — the rest of the delivery is retried
// alongside it, which is safe because isDuplicate/InsertIfAbsent make
// reprocessing an already-persisted record a no-op.
func (w *Worker) process(ctx context.Context, raw []byte) {
	packets, err := alert.Decode(raw)
	if err != nil {
		var decErr *alert.DecodeErr
		if errors.As(err, &decErr) && decErr.Fatal {
			w.deadLetter(ctx, raw, err)
			return
		}
		// Transient decode failure: push back and remove the in-flight
		// copy (spec.md §7 "Broker RPC failure" disposition applies to any
		// transient worker failure, decode included).
		nlog.Warningf("alertworker: transient decode failure: %v", err)
		w.requeue(ctx, raw)
		return
	}

	for _, packet := range packets {
		switch w.processPacket(ctx, packet) {
		case recordRequeue:
			w.requeue(ctx, raw)
			return
		case recordHold:
			return
		}
	}
	w.removeInFlight(ctx, raw)
}

// processPacket runs the per-record pipeline of spec.md §4.1 for one
// decoded alert out of the OCF container process() just read.
func (w *Worker) processPacket(ctx context.Context, packet *alert.Packet) recordOutcome {
	if w.isDuplicate(ctx, packet.CandID) {
		return recordDone
	}

	coordinates := alert.NewCoordinates(packet.Candidate.RA, packet.Candidate.Dec)
	primary := &alert.Primary{
		SchemaVersion: packet.SchemaVersion,
		Publisher:     packet.Publisher,
		ObjectID:      packet.ObjectID,
		CandID:        packet.CandID,
		Candidate:     packet.Candidate,
		Coordinates:   coordinates,
	}

	if err := w.Store.InsertIfAbsent(ctx, w.AlertsColl, "candid", primary.CandID, primary); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Primary-insert race: another AlertWorker already inserted
			// this candid. Benign duplicate — take the "already exists"
			// exit (spec.md §4.1).
			return recordDone
		}
		nlog.Warningf("alertworker: primary insert failed for candid %d: %v", primary.CandID, err)
		return recordRequeue
	}
	w.dedupFilter.InsertUnique([]byte(candidKey(primary.CandID)))

	if err := w.upsertAux(ctx, packet); err != nil {
		// Invariant 3 still holds: the packet stays in packet_queue_temp
		// and will be recovered on restart; the primary document (already
		// durable) is left in place per spec.md §7.
		nlog.Errorf("alertworker: aux upsert failed for object %s (candid %d), primary left in place: %v", packet.ObjectID, primary.CandID, err)
		return recordHold
	}

	if err := w.enqueueClassification(ctx, primary.CandID); err != nil {
		nlog.Warningf("alertworker: classifier enqueue failed for candid %d: %v", primary.CandID, err)
		return recordRequeue
	}

	return recordDone
}

func (w *Worker) isDuplicate(ctx context.Context, candid int64) bool {
	if !w.dedupFilter.Lookup([]byte(candidKey(candid))) {
		return false
	}
	n, err := w.Store.CountByKey(ctx, w.AlertsColl, "candid", candid)
	if err != nil {
		return false // fall through to the authoritative unique-index check on insert
	}
	return n > 0
}

// upsertAux implements spec.md §4.1's aux path: if no aux exists for
// object_id, run cross-match and insert; otherwise (or on an insert race)
// append prv_candidates with set semantics.
func (w *Worker) upsertAux(ctx context.Context, packet *alert.Packet) error {
	prv := alert.DedupPrvCandidates(packet.PrvCandidates)

	var existing alert.Aux
	found, err := w.Store.FindOne(ctx, w.AuxColl, "_id", packet.ObjectID, &existing)
	if err != nil {
		return err
	}
	if !found {
		crossMatches, err := w.Crossmatch.Run(ctx, packet.Candidate.RA, packet.Candidate.Dec)
		if err != nil {
			nlog.Warningf("alertworker: cross-match failed for object %s: %v", packet.ObjectID, err)
			crossMatches = map[string][]alert.CrossMatchRow{}
		}
		aux := &alert.Aux{ObjectID: packet.ObjectID, PrvCandidates: prv, CrossMatches: crossMatches}
		err = w.Store.InsertIfAbsent(ctx, w.AuxColl, "_id", aux.ObjectID, aux)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return err
		}
		// Insert lost the race: fall through to the append path below.
	}

	items := make([]any, len(prv))
	for i, c := range prv {
		items[i] = c
	}
	return w.Store.AppendSet(ctx, w.AuxColl, "_id", packet.ObjectID, "prv_candidates", items)
}

func (w *Worker) enqueueClassification(ctx context.Context, candid int64) error {
	return w.Broker.PushLeft(ctx, ClassifierQueue, []byte(strconv.FormatInt(candid, 10)))
}

func (w *Worker) removeInFlight(ctx context.Context, raw []byte) {
	if err := w.Broker.Remove(ctx, PacketQueueTemp, raw, 1); err != nil {
		nlog.Warningf("alertworker: failed to drop in-flight copy: %v", err)
	}
}

func (w *Worker) requeue(ctx context.Context, raw []byte) {
	if err := w.Broker.PushLeft(ctx, PacketQueue, raw); err != nil {
		nlog.Errorf("alertworker: requeue failed, packet may be lost: %v", err)
	}
	w.removeInFlight(ctx, raw)
}

func (w *Worker) deadLetter(ctx context.Context, raw []byte, cause error) {
	nlog.Errorf("alertworker: dead-lettering packet: %v", cause)
	if err := w.Broker.PushLeft(ctx, DeadLetterList, raw); err != nil {
		nlog.Errorf("alertworker: dead-letter push failed: %v", err)
	}
	w.removeInFlight(ctx, raw)
}

func candidKey(candid int64) string {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(candid)
		candid >>= 8
	}
	return string(buf)
}
