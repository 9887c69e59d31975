package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	ggeojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/histrail/railatlas/internal/gis"
)

// Default OpenPolis administrative limit sources, one GeoJSON feature
// collection per level, in WGS84.
var DefaultSources = map[Level]string{
	LevelRegion:       "https://raw.githubusercontent.com/openpolis/geojson-italy/master/geojson/limits_IT_regions.geojson",
	LevelProvince:     "https://raw.githubusercontent.com/openpolis/geojson-italy/master/geojson/limits_IT_provinces.geojson",
	LevelMunicipality: "https://raw.githubusercontent.com/openpolis/geojson-italy/master/geojson/limits_IT_municipalities.geojson",
}

// LoaderOptions configures the boundary loader.
type LoaderOptions struct {
	Sources   map[Level]string // URL or local path per level; DefaultSources when empty
	SourceCRS string           // CRS of the source collections, default WGS84
	MetricCRS string           // CRS for areas and distances, default EPSG:3035
	UserAgent string
	Timeout   time.Duration
	RateLimit rate.Limit // requests per second against the source host
}

// Loader fetches and validates administrative boundary collections.
type Loader struct {
	opts    LoaderOptions
	client  *http.Client
	limiter *rate.Limiter
	lg      *zap.Logger
}

// NewLoader creates a boundary loader.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.Sources == nil {
		opts.Sources = DefaultSources
	}
	if opts.SourceCRS == "" {
		opts.SourceCRS = gis.WGS84
	}
	if opts.MetricCRS == "" {
		opts.MetricCRS = gis.Metric
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "railatlas/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 1
	}
	return &Loader{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(opts.RateLimit, 1),
		lg:      zap.L().With(zap.String("component", "boundary.loader")),
	}
}

// Load retrieves and parses one administrative level. Features that fail
// geometry validation or miss their parent chain are dropped with a logged
// reason; a retrieval or parse failure is SourceUnavailable.
func (l *Loader) Load(ctx context.Context, level Level) (*Set, error) {
	src, ok := l.opts.Sources[level]
	if !ok {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "boundary: no source for level %s", level)
	}

	raw, err := l.fetch(ctx, src)
	if err != nil {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "boundary: fetch %s: %v", src, err)
	}
	return l.Parse(raw, level)
}

// Parse builds a Set from a GeoJSON feature collection.
func (l *Loader) Parse(raw []byte, level Level) (*Set, error) {
	var fc ggeojson.FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "boundary: parse %s geojson: %v", level, err)
	}

	set := &Set{Level: level, CRS: l.opts.MetricCRS, ByName: map[string]*Unit{}}
	dropped := 0
	for i, f := range fc.Features {
		u, err := l.unitFromFeature(f, level, i)
		if err != nil {
			dropped++
			l.lg.Warn("dropping boundary feature",
				zap.String("level", string(level)), zap.Int("index", i), zap.Error(err))
			continue
		}
		set.Units = append(set.Units, u)
		set.ByName[u.Name] = u
	}
	if len(set.Units) == 0 {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "boundary: level %s has no usable features", level)
	}
	l.lg.Info("loaded boundary level",
		zap.String("level", string(level)),
		zap.Int("units", len(set.Units)),
		zap.Int("dropped", dropped))
	return set, nil
}

func (l *Loader) unitFromFeature(f *ggeojson.Feature, level Level, idx int) (*Unit, error) {
	name := strings.TrimSpace(propString(f.Properties, "name"))
	if name == "" {
		return nil, eris.New("boundary: feature has no name")
	}
	u := &Unit{
		ID:    f.ID,
		Name:  name,
		Level: level,
	}
	if u.ID == "" {
		u.ID = fmt.Sprintf("%s-%d", level, idx)
	}
	switch level {
	case LevelProvince:
		u.Region = propString(f.Properties, "reg_name")
		if u.Region == "" {
			return nil, eris.New("boundary: province has no region")
		}
	case LevelMunicipality:
		u.Province = propString(f.Properties, "prov_name")
		u.Region = propString(f.Properties, "reg_name")
		if u.Province == "" || u.Region == "" {
			return nil, eris.New("boundary: municipality has an incomplete parent chain")
		}
	}

	if f.Geometry == nil {
		return nil, eris.Wrap(gis.ErrInvalidGeometry, "boundary: feature has no geometry")
	}
	g, err := gis.FromGeoJSON(f.Geometry)
	if err != nil {
		return nil, err
	}
	mg, err := gis.Transform(g, l.opts.SourceCRS, l.opts.MetricCRS)
	if err != nil {
		return nil, eris.Wrapf(gis.ErrGeometryMismatch, "boundary: %s: %v", name, err)
	}
	poly, err := gis.RepairPolygonal(mg)
	if err != nil {
		return nil, err
	}
	u.Geom = poly
	u.AreaKM2 = poly.Area() / 1e6
	u.Centroid = poly.Centroid()
	if u.AreaKM2 <= 0 {
		return nil, eris.Wrapf(gis.ErrInvalidGeometry, "boundary: %s has non-positive area", name)
	}
	return u, nil
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "boundary: rate limit wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: build request")
	}
	req.Header.Set("User-Agent", l.opts.UserAgent)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("boundary: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func propString(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
