// Package stats reduces distance records and boundary-exact rail fragments
// to the per-unit, per-year summary tables. Everything here is a pure
// function of its inputs.
package stats

import (
	"math"
	"sort"

	"github.com/histrail/railatlas/internal/access"
	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/rail"
)

// DistanceSummary is the mean accessibility distance for one administrative
// key and year.
type DistanceSummary struct {
	Key    string
	Year   int
	MeanKM float64
	Points int
}

// NetworkSummary describes the cumulative network inside one administrative
// key at one year.
type NetworkSummary struct {
	Key            string
	Year           int
	TotalKM        float64
	PrimaryKM      float64
	PrimaryShare   float64 // percent of TotalKM on primary lines
	StandardKM     float64
	StandardShare  float64 // percent of TotalKM on standard gauge
	DensityMPerKM2 float64
}

// ByRegion keys a fragment by its region, ByProvince by its province.
// Outside fragments carry the sentinel keys and group under them.
func ByRegion(fr *rail.Fragment) string   { return fr.Region }
func ByProvince(fr *rail.Fragment) string { return fr.Province }

// MeanDistance averages records per (key, year). Records are expected
// pre-filtered to one point kind; mixing kinds would average apples and
// oranges.
func MeanDistance(recs []access.DistanceRecord, key func(access.DistanceRecord) string) []DistanceSummary {
	type bucket struct {
		sum float64
		n   int
	}
	type gk struct {
		key  string
		year int
	}
	groups := map[gk]*bucket{}
	for _, r := range recs {
		k := gk{key: key(r), year: r.Year}
		b := groups[k]
		if b == nil {
			b = &bucket{}
			groups[k] = b
		}
		b.sum += r.DistanceKM
		b.n++
	}

	out := make([]DistanceSummary, 0, len(groups))
	for k, b := range groups {
		out = append(out, DistanceSummary{
			Key:    k.key,
			Year:   k.year,
			MeanKM: round2(b.sum / float64(b.n)),
			Points: b.n,
		})
	}
	sortSummaries(out)
	return out
}

// FilterKind returns the records of one point kind.
func FilterKind(recs []access.DistanceRecord, kind access.PointKind) []access.DistanceRecord {
	var out []access.DistanceRecord
	for _, r := range recs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Network sums the fragments built by each year under each key. years must
// be in increasing order; totals are cumulative because the underlying
// network only ever grows. Density is meters of track per km² of unit
// area; keys without an area (the outside sentinels) count as 1 km².
func Network(frags []*rail.Fragment, key func(*rail.Fragment) string, years []int, areaKM2 map[string]float64) []NetworkSummary {
	var out []NetworkSummary
	keys := map[string]bool{}
	for _, fr := range frags {
		keys[key(fr)] = true
	}
	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	for _, y := range years {
		totals := map[string]*NetworkSummary{}
		for _, fr := range frags {
			if !fr.Feature.BuiltBy(y) {
				continue
			}
			k := key(fr)
			s := totals[k]
			if s == nil {
				s = &NetworkSummary{Key: k, Year: y}
				totals[k] = s
			}
			s.TotalKM += fr.LengthKM
			if fr.Feature.Class == rail.ClassPrimary {
				s.PrimaryKM += fr.LengthKM
			}
			if fr.Feature.Gauge == rail.GaugeStandard {
				s.StandardKM += fr.LengthKM
			}
		}
		for _, k := range ordered {
			s, ok := totals[k]
			if !ok {
				continue
			}
			area := areaKM2[k]
			if area <= 0 {
				area = 1
			}
			s.PrimaryShare = share(s.PrimaryKM, s.TotalKM)
			s.StandardShare = share(s.StandardKM, s.TotalKM)
			s.DensityMPerKM2 = round2(s.TotalKM * 1000 / area)
			s.TotalKM = round3(s.TotalKM)
			s.PrimaryKM = round3(s.PrimaryKM)
			s.StandardKM = round3(s.StandardKM)
			out = append(out, *s)
		}
	}
	return out
}

// UnitAreas builds the key-to-area map Network consumes, keyed by unit name.
func UnitAreas(set *boundary.Set) map[string]float64 {
	areas := make(map[string]float64, len(set.Units))
	for _, u := range set.Units {
		areas[u.Name] = u.AreaKM2
	}
	return areas
}

func share(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return round2(part / total * 100)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func sortSummaries(s []DistanceSummary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Year != s[j].Year {
			return s[i].Year < s[j].Year
		}
		return s[i].Key < s[j].Key
	})
}
