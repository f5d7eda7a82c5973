// Package crossmatch implements the cross-match engine of spec.md §4.1:
// for a given (ra, dec), query every configured reference catalog
// concurrently, apply the distance-aware ellipse membership test, and
// decorate surviving rows with angular separation (and distance, when
// configured). Concurrency uses golang.org/x/sync/errgroup, matching
// spec.md §5's "cross-catalog cross-match queries run concurrently and
// are unordered" requirement.
package crossmatch

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/skyforge-astro/boom/internal/alert"
	"github.com/skyforge-astro/boom/internal/coords"
	"github.com/skyforge-astro/boom/internal/store"
)

// CatalogConfig mirrors spec.md §3's per-catalog cross-match config.
type CatalogConfig struct {
	Name                  string
	Collection            string
	RadiusArcsec          float64
	UseDistance           bool
	DistanceKey           string
	DistanceUnit          string // "redshift" | "Mpc", case-insensitive (Open Question b)
	DistanceMaxKpc        float64
	DistanceMaxNearArcsec float64
	Projection            []string
}

// Engine runs cross-match queries against a DAO for a fixed set of
// catalogs.
type Engine struct {
	dao      store.DAO
	catalogs []CatalogConfig
}

func New(dao store.DAO, catalogs []CatalogConfig) *Engine {
	return &Engine{dao: dao, catalogs: catalogs}
}

// Run queries every configured catalog concurrently around (ra, dec) and
// returns a mapping from catalog name to surviving, decorated rows — the
// aux document's cross_matches field, per spec.md §3.
func (e *Engine) Run(ctx context.Context, ra, dec float64) (map[string][]alert.CrossMatchRow, error) {
	results := make([]struct {
		name string
		rows []alert.CrossMatchRow
	}, len(e.catalogs))

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range e.catalogs {
		i, cat := i, cat
		g.Go(func() error {
			rows, err := e.runOne(gctx, cat, ra, dec)
			if err != nil {
				return fmt.Errorf("crossmatch: catalog %s: %w", cat.Name, err)
			}
			results[i].name = cat.Name
			results[i].rows = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Aggregation into the aux document is deterministic by catalog name
	// (spec.md §5), independent of the concurrent completion order above.
	out := make(map[string][]alert.CrossMatchRow, len(results))
	for _, r := range results {
		out[r.name] = r.rows
	}
	return out, nil
}

func (e *Engine) runOne(ctx context.Context, cat CatalogConfig, ra, dec float64) ([]alert.CrossMatchRow, error) {
	radiusRad := coords.ArcsecToRadians(cat.RadiusArcsec)
	lon := ra - 180
	geoRows, err := e.dao.GeoWithinRadius(ctx, cat.Collection, lon, dec, radiusRad, cat.Projection)
	if err != nil {
		return nil, err
	}

	out := make([]alert.CrossMatchRow, 0, len(geoRows))
	for _, row := range geoRows {
		if !row.HasRA || !row.HasDec {
			continue // missing ra/dec: skip silently, per spec.md §4.1
		}
		decorated, ok := decorate(cat, ra, dec, row)
		if !ok {
			continue
		}
		out = append(out, decorated)
	}
	return out, nil
}

// decorate applies the distance-aware ellipse test and separation/distance
// decoration described in spec.md §4.1.
func decorate(cat CatalogConfig, ra, dec float64, row store.GeoRow) (alert.CrossMatchRow, bool) {
	if !cat.UseDistance {
		sep := coords.GreatCircle(ra, dec, row.RA, row.Dec) * 3600
		return alert.CrossMatchRow{Row: row.Fields, AngularSeparationArcsec: sep}, true
	}

	distVal, ok := numeric(row.Fields[cat.DistanceKey])
	if !ok {
		return alert.CrossMatchRow{}, false // missing distance key: skip silently
	}

	switch strings.ToLower(cat.DistanceUnit) {
	case "redshift":
		return decorateRedshift(cat, ra, dec, row, distVal)
	case "mpc":
		return decorateMpc(cat, ra, dec, row, distVal)
	default:
		return alert.CrossMatchRow{}, false
	}
}

func decorateRedshift(cat CatalogConfig, ra, dec float64, row store.GeoRow, z float64) (alert.CrossMatchRow, bool) {
	var rEffDeg float64
	if z < 0.01 {
		rEffDeg = cat.DistanceMaxNearArcsec / 3600
	} else {
		rEffDeg = (cat.DistanceMaxKpc * (0.05 / z)) / 3600
	}
	if !coords.InEllipse(ra, dec, row.RA, row.Dec, rEffDeg, 1, 0) {
		return alert.CrossMatchRow{}, false
	}
	sep := coords.GreatCircle(ra, dec, row.RA, row.Dec) * 3600
	out := alert.CrossMatchRow{Row: row.Fields, AngularSeparationArcsec: sep}
	if z > 0.005 {
		d := sep * (z / 0.05)
		out.DistanceKpc = &d
	} else {
		d := -1.0
		out.DistanceKpc = &d
	}
	return out, true
}

func decorateMpc(cat CatalogConfig, ra, dec float64, row store.GeoRow, mpc float64) (alert.CrossMatchRow, bool) {
	var rEffDeg float64
	if mpc < 40 {
		rEffDeg = cat.DistanceMaxNearArcsec / 3600
	} else {
		rEffDeg = degAtan(cat.DistanceMaxKpc / (mpc * 1000))
	}
	if !coords.InEllipse(ra, dec, row.RA, row.Dec, rEffDeg, 1, 0) {
		return alert.CrossMatchRow{}, false
	}
	sep := coords.GreatCircle(ra, dec, row.RA, row.Dec) * 3600
	out := alert.CrossMatchRow{Row: row.Fields, AngularSeparationArcsec: sep}
	if mpc > 0.005 {
		d := radOf(sep/3600) * mpc * 1000 * 3600
		out.DistanceKpc = &d
	} else {
		d := -1.0
		out.DistanceKpc = &d
	}
	return out, true
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
