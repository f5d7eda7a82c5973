// Package filterpipe defines the Filter document shape of spec.md §3 and
// the pipeline-build logic of spec.md §4.3: load a filter's active
// version, read its permissions and aggregation pipeline, and prepend the
// per-batch `$match {candid in batch}` stage at run time.
package filterpipe

import (
	"context"
	"fmt"

	"github.com/skyforge-astro/boom/internal/store"
)

// Version is one named version of a filter's aggregation pipeline.
type Version struct {
	VersionID string           `bson:"version_id" json:"version_id"`
	Pipeline  []map[string]any `bson:"pipeline" json:"pipeline"`
}

// Filter mirrors spec.md §3's filter document.
type Filter struct {
	ID              int              `bson:"_id" json:"id"`
	Catalog         string           `bson:"catalog" json:"catalog"`
	Permissions     []int            `bson:"permissions" json:"permissions"`
	ActiveVersionID string           `bson:"active_version_id" json:"active_version_id"`
	Versions        map[string]Version `bson:"versions" json:"versions"`
}

// MaxPermission returns the highest permission level this filter is
// visible at, used to pick which stream (spec.md §4.3) it consumes from.
func (f *Filter) MaxPermission() int {
	max := 0
	for _, p := range f.Permissions {
		if p > max {
			max = p
		}
	}
	return max
}

// ActivePipeline returns the active version's pipeline stages, or an error
// if the active version is missing — a fatal filter-build error per
// spec.md §4.3/§7.
func (f *Filter) ActivePipeline() ([]map[string]any, error) {
	v, ok := f.Versions[f.ActiveVersionID]
	if !ok {
		return nil, fmt.Errorf("filterpipe: filter %d has no active version %q", f.ID, f.ActiveVersionID)
	}
	if len(v.Pipeline) == 0 {
		return nil, fmt.Errorf("filterpipe: filter %d active version %q has an empty pipeline", f.ID, f.ActiveVersionID)
	}
	return v.Pipeline, nil
}

// Load reads a filter document from the filters collection by ID.
func Load(ctx context.Context, dao store.DAO, filtersCollection string, id int) (*Filter, error) {
	var f Filter
	found, err := dao.FindOne(ctx, filtersCollection, "_id", id, &f)
	if err != nil {
		return nil, fmt.Errorf("filterpipe: load filter %d: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("filterpipe: filter %d not found", id)
	}
	return &f, nil
}

// WithBatchMatch prepends a `$match {candid: {$in: batch}}` stage to
// pipeline, per spec.md §4.3 step 3.
func WithBatchMatch(pipeline []map[string]any, batch []int64) []map[string]any {
	matchStage := map[string]any{
		"$match": map[string]any{
			"candid": map[string]any{"$in": int64Slice(batch)},
		},
	}
	out := make([]map[string]any, 0, len(pipeline)+1)
	out = append(out, matchStage)
	out = append(out, pipeline...)
	return out
}

func int64Slice(in []int64) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
