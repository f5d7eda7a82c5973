// Package store exposes the narrow document-database DAO that
// AlertWorker, MLWorker, and FilterWorker use, per spec.md §1 and §4.5:
// insert-if-absent, count-by-key, set-append update, and
// aggregation-pipeline execute. The default implementation is backed by
// go.mongodb.org/mongo-driver (grounded in original_source's own choice of
// MongoDB); a tidwall/buntdb-backed implementation is available for local
// development and unit tests without a running Mongo instance.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned by InsertIfAbsent when a document with the same
// unique key already exists — the benign-duplicate disposition of
// spec.md §7.
var ErrDuplicate = errors.New("store: duplicate key")

// GeoRow is one row returned by a catalog cross-match query: the raw
// projected fields plus the coordinates the cross-match engine needs.
type GeoRow struct {
	Fields map[string]any
	RA     float64
	Dec    float64
	HasRA  bool
	HasDec bool
}

// DAO is the narrow interface every pipeline worker uses to talk to the
// document database, per spec.md §1 (external collaborator, narrow
// interface) and §4.5.
type DAO interface {
	// InsertIfAbsent inserts doc into collection; if a document with the
	// same unique key already exists, it returns ErrDuplicate and does not
	// modify the collection (spec.md §4.1: unique-index violation on
	// candid is treated as "already exists").
	InsertIfAbsent(ctx context.Context, collection string, key string, keyValue any, doc any) error

	// FindOne loads a single document matching key=keyValue into out.
	// Returns (false, nil) when no document matches.
	FindOne(ctx context.Context, collection, key string, keyValue any, out any) (bool, error)

	// CountByKey returns the number of documents in collection where
	// key=keyValue (spec.md §8 property 2: dedup law).
	CountByKey(ctx context.Context, collection, key string, keyValue any) (int64, error)

	// AppendSet appends items onto the array field arrayField of the
	// document matched by key=keyValue, with $addToSet (no duplicate
	// entries) semantics — spec.md §4.1's set-append update path.
	AppendSet(ctx context.Context, collection, key string, keyValue any, arrayField string, items []any) error

	// RunPipeline executes an aggregation pipeline against collection and
	// decodes the results into out (a pointer to a slice).
	RunPipeline(ctx context.Context, collection string, pipeline []map[string]any, out any) error

	// GeoWithinRadius runs a spherical geo query: every document in
	// collection whose coordinates.radec_geojson lies within radiusRad
	// radians of (lon, lat), projected to the given fields (spec.md §4.1:
	// $centerSphere with center (ra-180, dec)).
	GeoWithinRadius(ctx context.Context, collection string, lon, lat, radiusRad float64, projection []string) ([]GeoRow, error)

	// Ping verifies connectivity at boot (spec.md §7: Config/DB
	// unreachable at boot -> exit 1).
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

// Config bundles the subset of internal/config.Database fields a DAO
// implementation needs, keeping this package independent of the config
// package's YAML tags.
type Config struct {
	Driver          string
	URI             string
	Name            string
	ConnectTimeout  time.Duration
}
