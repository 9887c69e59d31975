package export

import (
	"sort"

	"github.com/histrail/railatlas/internal/boundary"
)

// Structure maps each region to its sorted province names, derived from the
// municipality parent chains. The dashboard layer uses it to drive its
// drill-down menus.
func Structure(municipalities *boundary.Set) map[string][]string {
	provs := map[string]map[string]bool{}
	for _, u := range municipalities.Units {
		if u.Region == "" || u.Province == "" {
			continue
		}
		if provs[u.Region] == nil {
			provs[u.Region] = map[string]bool{}
		}
		provs[u.Region][u.Province] = true
	}
	out := make(map[string][]string, len(provs))
	for region, set := range provs {
		names := make([]string, 0, len(set))
		for p := range set {
			names = append(names, p)
		}
		sort.Strings(names)
		out[region] = names
	}
	return out
}

// Areas maps each unit name to its planar area in km².
func Areas(set *boundary.Set) map[string]float64 {
	out := make(map[string]float64, len(set.Units))
	for _, u := range set.Units {
		out[u.Name] = u.AreaKM2
	}
	return out
}
