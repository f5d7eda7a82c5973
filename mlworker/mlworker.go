// Package mlworker implements the MLWorker stage of spec.md §4.2: pop
// candids from classifier_queue, hydrate the matching primary documents,
// and append each candid onto one stream per permission level it is
// visible at (programid <= p).
package mlworker

import (
	"context"
	"strconv"
	"time"

	"github.com/skyforge-astro/boom/internal/alert"
	"github.com/skyforge-astro/boom/internal/broker"
	"github.com/skyforge-astro/boom/internal/config"
	"github.com/skyforge-astro/boom/internal/ml"
	"github.com/skyforge-astro/boom/internal/nlog"
	"github.com/skyforge-astro/boom/internal/store"
	"github.com/skyforge-astro/boom/internal/worker"
)

const (
	emptyQueueSleep = 500 * time.Millisecond
	popTimeout      = time.Second
)

// Worker implements worker.Runner for one MLWorker instance.
type Worker struct {
	Broker      broker.DAO
	Store       store.DAO
	AlertsColl  string
	BatchSize   int
	Permissions []int // allowed permission levels, e.g. {1,2,3}
	Annotator   *ml.Annotator // optional model-scoring hook (nil disables it)
}

func New(b broker.DAO, s store.DAO, alertsColl string, batchSize int, permissions []int, annotator *ml.Annotator) *Worker {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Worker{Broker: b, Store: s, AlertsColl: alertsColl, BatchSize: batchSize, Permissions: permissions, Annotator: annotator}
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

		batch := w.drainBatch(ctx)
		if len(batch) == 0 {
			time.Sleep(emptyQueueSleep)
			continue
		}
		w.route(ctx, batch)
	}
}

// drainBatch pops up to BatchSize candids from classifier_queue, per
// spec.md §4.2.
func (w *Worker) drainBatch(ctx context.Context) []int64 {
	var batch []int64
	for len(batch) < w.BatchSize {
		raw, ok, err := w.Broker.PopRightBlocking(ctx, classifierQueue, popTimeout)
		if err != nil {
			nlog.Warningf("mlworker: broker pop failed: %v", err)
			break
		}
		if !ok {
			break
		}
		candid, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			nlog.Warningf("mlworker: malformed classifier queue entry %q: %v", raw, err)
			continue
		}
		batch = append(batch, candid)
	}
	return batch
}

const classifierQueue = "classifier_queue"

func (w *Worker) route(ctx context.Context, batch []int64) {
	for _, candid := range batch {
		var primary alert.Primary
		found, err := w.Store.FindOne(ctx, w.AlertsColl, "candid", candid, &primary)
		if err != nil {
			nlog.Warningf("mlworker: lookup failed for candid %d: %v", candid, err)
			continue
		}
		if !found {
			nlog.Warningf("mlworker: candid %d has no primary document, dropping", candid)
			continue
		}

		if w.Annotator != nil {
			if err := w.Annotator.Annotate(ctx, &primary); err != nil {
				nlog.Warningf("mlworker: annotation hook failed for candid %d: %v", candid, err)
			}
		}

		for _, p := range w.Permissions {
			if primary.Candidate.ProgramID > p {
				continue // visibility rule: programid <= p (spec.md invariant 4)
			}
			stream := config.StreamName(p)
			if _, err := w.Broker.StreamAppend(ctx, stream, map[string]any{"candid": candid}); err != nil {
				nlog.Warningf("mlworker: stream append failed for candid %d on %s: %v", candid, stream, err)
			}
		}
	}
}
