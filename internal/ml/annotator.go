// Package ml implements the optional classifier/routing hook mentioned in
// spec.md §4.2 and Open Question (c): MLWorker is a routing stage first,
// with an optional model-scoring annotation hook. When a feature-export
// directory is configured, annotated candidates are also mirrored out as
// newline-delimited JSON feature records for offline retraining of the
// (out-of-scope) classifier model.
package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/skyforge-astro/boom/internal/alert"
)

// Hook scores or labels a primary document in place. Returning an error is
// non-fatal to MLWorker's routing — annotation is best-effort, per
// spec.md §4.2 ("model-scoring annotations may be added ... but are not
// required").
type Hook func(ctx context.Context, p *alert.Primary) error

// Annotator runs a configured list of hooks, and optionally mirrors
// annotated candidates to a feature-export directory.
type Annotator struct {
	hooks     []Hook
	exportDir string

	mu sync.Mutex
	fh *os.File
}

// New builds an Annotator. exportDir == "" disables feature export.
func New(hooks []Hook, exportDir string) *Annotator {
	a := &Annotator{hooks: hooks, exportDir: exportDir}
	if exportDir != "" {
		os.MkdirAll(exportDir, 0o755)
	}
	return a
}

// Annotate runs every configured hook over p, then (if configured) appends
// p's feature vector to the export file.
func (a *Annotator) Annotate(ctx context.Context, p *alert.Primary) error {
	for _, h := range a.hooks {
		if err := h(ctx, p); err != nil {
			return err
		}
	}
	if a.exportDir == "" {
		return nil
	}
	return a.export(p)
}

func (a *Annotator) export(p *alert.Primary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fh == nil {
		path := filepath.Join(a.exportDir, "features.ndjson")
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("ml: open feature export file: %w", err)
		}
		a.fh = fh
	}
	rec := map[string]any{
		"candid":    p.CandID,
		"object_id": p.ObjectID,
		"ra":        p.Candidate.RA,
		"dec":       p.Candidate.Dec,
		"magpsf":    p.Candidate.Magnitude,
		"programid": p.Candidate.ProgramID,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = a.fh.Write(b)
	return err
}
