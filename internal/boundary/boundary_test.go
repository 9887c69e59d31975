package boundary

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histrail/railatlas/internal/gis"
)

// planarLoader skips reprojection so geometry in tests stays in plain
// planar units.
func planarLoader() *Loader {
	return NewLoader(LoaderOptions{SourceCRS: gis.Metric, MetricCRS: gis.Metric})
}

func square(name, prov, reg string, x0, y0, size float64) string {
	return fmt.Sprintf(
		`{"type":"Feature","properties":{"name":%q,"prov_name":%q,"reg_name":%q},`+
			`"geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}}`,
		name, prov, reg,
		x0, y0, x0+size, y0, x0+size, y0+size, x0, y0+size, x0, y0)
}

func TestParseMunicipalities(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[` +
		square("Alfa", "Prov Uno", "Reg Uno", 0, 0, 1) + `,` +
		square("Beta", "", "Reg Uno", 1, 0, 1) + `,` + // parent chain incomplete
		square("Gamma", "Prov Uno", "Reg Uno", 2, 0, 1) +
		`]}`

	set, err := planarLoader().Parse([]byte(raw), LevelMunicipality)
	require.NoError(t, err)
	require.Len(t, set.Units, 2, "the unit without a province is dropped")

	alfa := set.ByName["Alfa"]
	require.NotNil(t, alfa)
	assert.Equal(t, "Prov Uno", alfa.Province)
	assert.Equal(t, "Reg Uno", alfa.Region)
	assert.InDelta(t, 1.0/1e6, alfa.AreaKM2, 1e-12)
	assert.InDelta(t, 0.5, alfa.Centroid.X, 1e-9)
}

func TestParseRejectsEmptyCollection(t *testing.T) {
	_, err := planarLoader().Parse([]byte(`{"type":"FeatureCollection","features":[]}`), LevelRegion)
	require.Error(t, err)
	assert.True(t, eris.Is(err, gis.ErrSourceUnavailable))
}

func TestDissolve(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[` +
		square("Alfa", "P", "R", 0, 0, 1) + `,` +
		square("Beta", "P", "R", 1, 0, 1) +
		`]}`
	set, err := planarLoader().Parse([]byte(raw), LevelMunicipality)
	require.NoError(t, err)

	outline, err := set.Dissolve()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, outline.Area(), 1e-9, "adjacent squares dissolve without double counting")
}

func TestFoldName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "accent stripped", in: "Forlì", want: "forli"},
		{name: "typographic apostrophe", in: "L’Aquila", want: "l'aquila"},
		{name: "already plain", in: "Roma", want: "roma"},
		{name: "surrounding space", in: "  Torino ", want: "torino"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldName(tt.in))
		})
	}
}

func TestCapitals(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[` +
		square("Torino", "Torino", "Piemonte", 0, 0, 1) + `,` +
		square("Moncalieri", "Torino", "Piemonte", 1, 0, 1) + `,` +
		square("Bari", "Bari", "Puglia", 2, 0, 1) +
		`]}`
	set, err := planarLoader().Parse([]byte(raw), LevelMunicipality)
	require.NoError(t, err)

	regional := set.RegionalCapitals()
	names := make([]string, 0, len(regional))
	for _, u := range regional {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"Bari", "Torino"}, names, "capitals come back in sorted name order")

	provincial := set.ProvincialCapitals()
	assert.Len(t, provincial, 2, "seats are the municipalities named after their province")

	caps := Capitals()
	assert.Len(t, caps, 20)
	assert.Equal(t, "Piemonte", caps["Torino"])
	assert.Equal(t, "Trentino-Alto Adige/Südtirol", caps["Trento"])
	assert.NotContains(t, caps, "Moncalieri")
}
