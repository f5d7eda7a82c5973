// Package filterworker implements the FilterWorker stage of spec.md §4.3:
// each filter owns an aggregation pipeline and a permission level; it
// consumes from the stream matching its level via a consumer group, runs
// the pipeline against newly-arrived candids, and pushes serialized result
// documents onto a per-filter output list.
package filterworker

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/config"
	"github.com/skyforge-astro/boom/internal/filterpipe"
	"github.com/skyforge-astro/boom/internal/idgen"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"
)

const (
	readCount     = 100
	emptySweepSleep = time.Second
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// boundFilter pairs a loaded filter with the permission level / stream it
// consumes from, per spec.md §4.3's grouping step.
type boundFilter struct {
	filter       *filterpipe.Filter
	permission   int
	stream       string
	group        string
	consumerName string
	emptySweeps  int
}

// Worker implements worker.Runner for a FilterWorker handling one or more
// filter IDs (spec.md §4.3: "At construction, each filter worker is given
// a set of filter IDs").
type Worker struct {
	Broker     broker.DAO
	Store      store.DAO
	AlertsColl string
	Consumer   string // base from which each bound filter's consumer name is derived

	bound []*boundFilter
}

// New loads every filter in filterIDs and groups them by permission level,
// creating consumer groups as needed. Filter build failures (a filter that
// cannot be loaded, no active version or an empty active pipeline, or a
// consumer group that cannot be created) are fatal for this worker, per
// spec.md §4.3/§7.
func New(ctx context.Context, b broker.DAO, s store.DAO, filtersColl, alertsColl, consumer string, filterIDs []int) (*Worker, error) {
	w := &Worker{Broker: b, Store: s, AlertsColl: alertsColl, Consumer: consumer}
	for _, id := range filterIDs {
		f, err := filterpipe.Load(ctx, s, filtersColl, id)
		if err != nil {
			return nil, fmt.Errorf("filterworker: %w", err)
		}
		if _, err := f.ActivePipeline(); err != nil {
			return nil, fmt.Errorf("filterworker: %w", err)
		}
		p := f.MaxPermission()
		stream := config.StreamName(p)
		group := config.ConsumerGroup(f.ID)
		if err := b.StreamGroupCreate(ctx, stream, group, "0"); err != nil {
			return nil, fmt.Errorf("filterworker: create consumer group %s on %s: %w", group, stream, err)
		}
		// The suffix is derived from the filter ID, so one worker gets a
		// distinct consumer name per bound filter. The name stays the same
		// across a restart only if the caller passes the same base name.
		consumerName := consumer + "-" + idgen.StableSuffix(fmt.Sprintf("filter-%d", f.ID))
		w.bound = append(w.bound, &boundFilter{filter: f, permission: p, stream: stream, group: group, consumerName: consumerName})
	}
	return w, nil
}

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

		allEmpty := true
		for _, bf := range w.bound {
			if w.runOne(ctx, bf) {
				allEmpty = false
			}
		}
		if allEmpty {
			time.Sleep(emptySweepSleep)
		}
	}
}

// runOne runs one (permission, filter) sweep, per spec.md §4.3's run loop.
// Returns true if entries were read (i.e. this sweep was not empty).
func (w *Worker) runOne(ctx context.Context, bf *boundFilter) bool {
	entries, err := w.Broker.StreamGroupRead(ctx, bf.stream, bf.group, bf.consumerName, readCount)
	if err != nil {
		nlog.Warningf("filterworker: stream read failed for filter %d: %v", bf.filter.ID, err)
		return false
	}
	if len(entries) == 0 {
		bf.emptySweeps++
		return false
	}
	bf.emptySweeps = 0

	batch := make([]int64, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if candid, ok := broker.CandIDFromFields(e.Fields); ok {
			batch = append(batch, candid)
		}
		ids = append(ids, e.ID)
	}

	if err := w.evaluate(ctx, bf, batch); err != nil {
		// Per-batch execution errors are logged and the batch is skipped;
		// the consumer-group ACK is still issued — filter output is
		// idempotent by candid and filters can be replayed, per spec.md §4.3.
		nlog.Warningf("filterworker: batch evaluation failed for filter %d: %v", bf.filter.ID, err)
	}

	if err := w.Broker.StreamAck(ctx, bf.stream, bf.group, ids...); err != nil {
		nlog.Warningf("filterworker: ack failed for filter %d: %v", bf.filter.ID, err)
	}
	return true
}

func (w *Worker) evaluate(ctx context.Context, bf *boundFilter, batch []int64) error {
	if len(batch) == 0 {
		return nil
	}
	pipeline, err := bf.filter.ActivePipeline()
	if err != nil {
		return err
	}
	fullPipeline := filterpipe.WithBatchMatch(pipeline, batch)

	var results []map[string]any
	if err := w.Store.RunPipeline(ctx, w.AlertsColl, fullPipeline, &results); err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	resultsList := config.ResultsList(bf.filter.ID)
	for _, r := range results {
		doc, err := fastJSON.Marshal(r)
		if err != nil {
			nlog.Warningf("filterworker: result serialization failed for filter %d: %v", bf.filter.ID, err)
			continue
		}
		if err := w.Broker.PushLeft(ctx, resultsList, doc); err != nil {
			return fmt.Errorf("push result: %w", err)
		}
	}
	return nil
}
