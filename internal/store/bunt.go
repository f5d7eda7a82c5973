package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tidwall/buntdb"
)

// buntDAO is a local/dev DAO backed by an in-process tidwall/buntdb
// database, for unit tests and single-node development without a running
// MongoDB. Documents are stored as JSON strings keyed "<collection>:<id>";
// reference-catalog collections additionally get a buntdb spatial index on
// a "ra,dec" point so GeoWithinRadius can use a bounding-box Intersects
// query rather than a full scan — an approximation of Mongo's 2dsphere $centerSphere
// query (a planar bounding-box prefilter, not a true spherical cap), which
// is acceptable for the catalog sizes exercised in tests and local runs.
type buntDAO struct {
	db *buntdb.DB

	mu      sync.Mutex
	indexed map[string]bool
}

// NewBunt opens (or creates) the buntdb database file at path. path ==
// ":memory:" keeps everything in RAM, matching how unit tests use it.
func NewBunt(path string) (DAO, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: buntdb open: %w", err)
	}
	return &buntDAO{db: db, indexed: make(map[string]bool)}, nil
}

func (b *buntDAO) ensureGeoIndex(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexed[collection] {
		return
	}
	b.indexed[collection] = true
	pattern := collection + ":*"
	b.db.CreateSpatialIndex(collection+"_geo", pattern, func(a, b string) (min, max []float64) {
		var doc map[string]any
		if err := json.Unmarshal([]byte(b), &doc); err != nil {
			return []float64{0, 0}, []float64{0, 0}
		}
		ra, _ := numeric(doc["ra"])
		dec, _ := numeric(doc["dec"])
		return []float64{ra, dec}, []float64{ra, dec}
	})
}

func docKey(collection string, id any) string {
	return fmt.Sprintf("%s:%v", collection, id)
}

func (b *buntDAO) InsertIfAbsent(_ context.Context, collection, key string, keyValue, doc any) error {
	k := docKey(collection, keyValue)
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(k); err == nil {
			return ErrDuplicate
		}
		_, _, err := tx.Set(k, string(data), nil)
		return err
	})
	return err
}

func (b *buntDAO) FindOne(_ context.Context, collection, key string, keyValue, out any) (bool, error) {
	k := docKey(collection, keyValue)
	var found bool
	err := b.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(k)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return json.Unmarshal([]byte(val), out)
	})
	return found, err
}

func (b *buntDAO) CountByKey(_ context.Context, collection, key string, keyValue any) (int64, error) {
	var n int64
	prefix := collection + ":"
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(k, v string) bool {
			var doc map[string]any
			if json.Unmarshal([]byte(v), &doc) == nil {
				if fmt.Sprintf("%v", doc[key]) == fmt.Sprintf("%v", keyValue) {
					n++
				}
			}
			return true
		})
	})
	return n, err
}

func (b *buntDAO) AppendSet(_ context.Context, collection, key string, keyValue any, arrayField string, items []any) error {
	k := docKey(collection, keyValue)
	return b.db.Update(func(tx *buntdb.Tx) error {
		val, err := tx.Get(k)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(val), &doc); err != nil {
			return err
		}
		existing, _ := doc[arrayField].([]any)
		seen := make(map[string]bool, len(existing))
		keyOf := func(v any) string { b, _ := json.Marshal(v); return string(b) }
		for _, e := range existing {
			seen[keyOf(e)] = true
		}
		for _, it := range items {
			if !seen[keyOf(it)] {
				existing = append(existing, it)
				seen[keyOf(it)] = true
			}
		}
		doc[arrayField] = existing
		out, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(k, string(out), nil)
		return err
	})
}

// RunPipeline supports only the single-stage "$match candid in [...]"
// pipelines FilterWorker prepends at run time (spec.md §4.3 step 3): only a
// $match in the first stage is applied, and every further stage is ignored,
// which is sufficient for unit tests against this dev backend.
func (b *buntDAO) RunPipeline(_ context.Context, collection string, pipeline []map[string]any, out any) error {
	var docs []map[string]any
	prefix := collection + ":"
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(k, v string) bool {
			var doc map[string]any
			if json.Unmarshal([]byte(v), &doc) == nil {
				docs = append(docs, doc)
			}
			return true
		})
	})
	if err != nil {
		return err
	}
	if len(pipeline) > 0 {
		if match, ok := pipeline[0]["$match"].(map[string]any); ok {
			docs = applyMatch(docs, match)
		}
	}
	b2, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(b2, out)
}

func applyMatch(docs []map[string]any, match map[string]any) []map[string]any {
	out := docs[:0:0]
	for _, d := range docs {
		if matches(d, match) {
			out = append(out, d)
		}
	}
	return out
}

func matches(doc, match map[string]any) bool {
	for field, cond := range match {
		condMap, ok := cond.(map[string]any)
		if !ok {
			if fmt.Sprintf("%v", doc[field]) != fmt.Sprintf("%v", cond) {
				return false
			}
			continue
		}
		inList, ok := condMap["$in"].([]any)
		if !ok {
			continue
		}
		found := false
		for _, v := range inList {
			if fmt.Sprintf("%v", doc[field]) == fmt.Sprintf("%v", v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GeoWithinRadius uses the collection's spatial index to return every row
// whose raw ra/dec lies in the square of half-width radiusRad (in degrees)
// around (lon+180, lat), sorted by RA. No great-circle test is applied, so
// rows in the box corners, beyond radiusRad, are returned as well.
func (b *buntDAO) GeoWithinRadius(_ context.Context, collection string, lon, lat, radiusRad float64, projection []string) ([]GeoRow, error) {
	b.ensureGeoIndex(collection)
	radiusDeg := radiusRad * 180 / math.Pi
	// the caller passes lon = ra-180 (the primary document's GeoJSON
	// convention); reference catalogs store raw ra/dec, so undo the shift
	// before querying the spatial index.
	ra := lon + 180
	dec := lat
	minRA, maxRA := ra-radiusDeg, ra+radiusDeg
	minDec, maxDec := dec-radiusDeg, dec+radiusDeg

	var rows []GeoRow
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Intersects(collection+"_geo", fmt.Sprintf("[%f %f],[%f %f]", minRA, minDec, maxRA, maxDec), func(k, v string, _ [2]float64) bool {
			var doc map[string]any
			if json.Unmarshal([]byte(v), &doc) != nil {
				return true
			}
			rowRA, hasRA := numeric(doc["ra"])
			rowDec, hasDec := numeric(doc["dec"])
			rows = append(rows, GeoRow{Fields: doc, RA: rowRA, Dec: rowDec, HasRA: hasRA, HasDec: hasDec})
			return true
		})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].RA < rows[j].RA })
	return rows, err
}

func (b *buntDAO) Ping(context.Context) error { return nil }

func (b *buntDAO) Close(context.Context) error { return b.db.Close() }
