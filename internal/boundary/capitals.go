package boundary

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// regionalCapitals maps each historical regional capital to its region.
var regionalCapitals = map[string]string{
	"Torino":     "Piemonte",
	"Aosta":      "Valle d'Aosta",
	"Milano":     "Lombardia",
	"Trento":     "Trentino-Alto Adige/Südtirol",
	"Venezia":    "Veneto",
	"Trieste":    "Friuli-Venezia Giulia",
	"Genova":     "Liguria",
	"Bologna":    "Emilia-Romagna",
	"Firenze":    "Toscana",
	"Perugia":    "Umbria",
	"Ancona":     "Marche",
	"Roma":       "Lazio",
	"L'Aquila":   "Abruzzo",
	"Campobasso": "Molise",
	"Napoli":     "Campania",
	"Bari":       "Puglia",
	"Potenza":    "Basilicata",
	"Catanzaro":  "Calabria",
	"Palermo":    "Sicilia",
	"Cagliari":   "Sardegna",
}

var foldT = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldName normalizes a place name for comparison: accents stripped,
// apostrophe variants unified, case folded. Dataset spellings drift between
// sources ("Forlì" vs "Forli", "L'Aquila" vs "L’Aquila").
func FoldName(s string) string {
	if out, _, err := transform.String(foldT, s); err == nil {
		s = out
	}
	s = strings.ReplaceAll(s, "’", "'")
	return strings.ToLower(strings.TrimSpace(s))
}

// RegionalCapitals returns the municipalities that are regional capitals,
// matched accent-insensitively. Capitals absent from the set are skipped
// with a warning rather than failing the run.
func (s *Set) RegionalCapitals() []*Unit {
	byFold := make(map[string]*Unit, len(s.Units))
	for _, u := range s.Units {
		byFold[FoldName(u.Name)] = u
	}
	var out []*Unit
	for _, city := range capitalNames() {
		u, ok := byFold[FoldName(city)]
		if !ok {
			zap.L().Warn("regional capital not present in municipality set",
				zap.String("component", "boundary"), zap.String("city", city))
			continue
		}
		out = append(out, u)
	}
	return out
}

func capitalNames() []string {
	names := make([]string, 0, len(regionalCapitals))
	for city := range regionalCapitals {
		names = append(names, city)
	}
	sort.Strings(names)
	return names
}

// ProvincialCapitals returns the municipalities whose name equals their
// province name, the convention the source dataset uses for province seats.
func (s *Set) ProvincialCapitals() []*Unit {
	var out []*Unit
	for _, u := range s.Units {
		if u.Province != "" && FoldName(u.Name) == FoldName(u.Province) {
			out = append(out, u)
		}
	}
	return out
}

// Capitals returns the capital→region table, for publishing alongside the
// aggregate outputs.
func Capitals() map[string]string {
	out := make(map[string]string, len(regionalCapitals))
	for city, region := range regionalCapitals {
		out[city] = region
	}
	return out
}
