// Package rail models the railway segment dataset and cuts it exactly along
// administrative boundaries.
package rail

import (
	"strings"

	"github.com/ctessum/geom"
)

// LineClass tags a segment as a primary or secondary line.
type LineClass string

const (
	ClassPrimary   LineClass = "primary"
	ClassSecondary LineClass = "secondary"
)

// Gauge tags a segment's track gauge.
type Gauge string

const (
	GaugeStandard Gauge = "standard"
	GaugeNarrow   Gauge = "narrow"
)

// Feature is one railway segment. Built once by the loader and never
// mutated afterwards; the overlay and accessibility stages only filter and
// cut copies of its geometry.
type Feature struct {
	ID    string
	Label string
	Year  int // construction year; <= 0 means not yet built, excluded everywhere

	Class LineClass
	Gauge Gauge

	Geom     geom.MultiLineString // metric CRS
	LengthKM float64              // derived from Geom, not the source attribute
}

// Valid reports whether the feature takes part in any analysis.
func (f *Feature) Valid() bool { return f.Year > 0 && len(f.Geom) > 0 }

// BuiltBy reports whether the feature exists in the network snapshot of the
// given year.
func (f *Feature) BuiltBy(year int) bool { return f.Year > 0 && f.Year <= year }

// ClassifyLine maps the raw line-class attribute to a LineClass. The token
// is matched as a case-insensitive substring; absence means secondary.
func ClassifyLine(raw string) LineClass {
	if strings.Contains(strings.ToLower(raw), "main") {
		return ClassPrimary
	}
	return ClassSecondary
}

// ClassifyGauge maps the raw gauge attribute to a Gauge. Absence of the
// token means narrow.
func ClassifyGauge(raw string) Gauge {
	if strings.Contains(strings.ToLower(raw), "stan") {
		return GaugeStandard
	}
	return GaugeNarrow
}
