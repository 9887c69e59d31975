// Package gis holds the geometry plumbing shared by every pipeline stage:
// the error taxonomy, coordinate reference system handling, and conversion
// between the GeoJSON wire types and the computational geometry types.
package gis

import "github.com/rotisserie/eris"

// Pipeline error taxonomy. Stages classify failures against these sentinels
// with eris.Is so callers can apply the right propagation policy: per-feature
// failures are logged and skipped, per-stage failures abort only dependents.
var (
	// ErrSourceUnavailable means an upstream dataset could not be
	// retrieved or parsed. Fatal for the stages that depend on it.
	ErrSourceUnavailable = eris.New("gis: source unavailable")

	// ErrInvalidGeometry means a geometry failed validation and repair.
	// The offending feature is dropped, its siblings proceed.
	ErrInvalidGeometry = eris.New("gis: invalid geometry")

	// ErrGeometryMismatch means two layers disagree on CRS and could not
	// be reconciled by reprojection.
	ErrGeometryMismatch = eris.New("gis: crs mismatch")

	// ErrEmptyIntersection means a clip or overlay produced nothing.
	// Not a failure; callers treat it as an empty result.
	ErrEmptyIntersection = eris.New("gis: empty intersection")

	// ErrProjectionFailure means a reprojection was not possible. Vector
	// stages fall back to the source CRS; the raster clipper treats it as
	// fatal because georeferencing must match exactly.
	ErrProjectionFailure = eris.New("gis: projection failure")
)
