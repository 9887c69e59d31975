package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/histrail/railatlas/internal/boundary"
)

// Config holds the full application configuration.
type Config struct {
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Rail     RailConfig     `yaml:"rail" mapstructure:"rail"`
	Access   AccessConfig   `yaml:"access" mapstructure:"access"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// BoundaryConfig configures the administrative boundary sources.
type BoundaryConfig struct {
	RegionsURL        string  `yaml:"regions_url" mapstructure:"regions_url"`
	ProvincesURL      string  `yaml:"provinces_url" mapstructure:"provinces_url"`
	MunicipalitiesURL string  `yaml:"municipalities_url" mapstructure:"municipalities_url"`
	SourceCRS         string  `yaml:"source_crs" mapstructure:"source_crs"`
	MetricCRS         string  `yaml:"metric_crs" mapstructure:"metric_crs"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Sources maps the configured URLs to boundary levels.
func (c BoundaryConfig) Sources() map[boundary.Level]string {
	return map[boundary.Level]string{
		boundary.LevelRegion:       c.RegionsURL,
		boundary.LevelProvince:     c.ProvincesURL,
		boundary.LevelMunicipality: c.MunicipalitiesURL,
	}
}

// RasterConfig configures the raster inputs and vectorization.
type RasterConfig struct {
	TRIPath           string  `yaml:"tri_path" mapstructure:"tri_path"`
	WheatPath         string  `yaml:"wheat_path" mapstructure:"wheat_path"`
	CRS               string  `yaml:"crs" mapstructure:"crs"`
	BinsPath          string  `yaml:"bins_path" mapstructure:"bins_path"` // optional YAML override
	SimplifyTolerance float64 `yaml:"simplify_tolerance" mapstructure:"simplify_tolerance"`
}

// RailConfig configures the railway shapefile input.
type RailConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	SourceCRS     string `yaml:"source_crs" mapstructure:"source_crs"`
	YearAttr      string `yaml:"year_attr" mapstructure:"year_attr"`
	ClassAttr     string `yaml:"class_attr" mapstructure:"class_attr"`
	GaugeAttr     string `yaml:"gauge_attr" mapstructure:"gauge_attr"`
	LabelAttr     string `yaml:"label_attr" mapstructure:"label_attr"`
}

// AccessConfig configures the temporal accessibility engine.
type AccessConfig struct {
	StartYear int `yaml:"start_year" mapstructure:"start_year"`
	EndYear   int `yaml:"end_year" mapstructure:"end_year"`
	StepYears int `yaml:"step_years" mapstructure:"step_years"`
	Workers   int `yaml:"workers" mapstructure:"workers"`
}

// Years expands the configured range, always including the end year. A
// non-positive step yields the end year alone.
func (c AccessConfig) Years() []int {
	var ys []int
	if c.StepYears > 0 {
		for y := c.StartYear; y < c.EndYear; y += c.StepYears {
			ys = append(ys, y)
		}
	}
	return append(ys, c.EndYear)
}

// OutputConfig configures the emitted artifacts.
type OutputConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	CoordPrecision int    `yaml:"coord_precision" mapstructure:"coord_precision"`
}

// StoreConfig configures the results database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RAILATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("boundary.regions_url", boundary.DefaultSources[boundary.LevelRegion])
	v.SetDefault("boundary.provinces_url", boundary.DefaultSources[boundary.LevelProvince])
	v.SetDefault("boundary.municipalities_url", boundary.DefaultSources[boundary.LevelMunicipality])
	v.SetDefault("boundary.source_crs", "EPSG:4326")
	v.SetDefault("boundary.metric_crs", "EPSG:3035")
	v.SetDefault("boundary.user_agent", "railatlas/1.0")
	v.SetDefault("boundary.timeout_secs", 120)
	v.SetDefault("boundary.rate_per_sec", 1.0)
	v.SetDefault("raster.tri_path", "data/tri.txt")
	v.SetDefault("raster.wheat_path", "data/wheat.txt")
	v.SetDefault("raster.crs", "EPSG:3035")
	v.SetDefault("raster.simplify_tolerance", 250.0)
	v.SetDefault("rail.shapefile_path", "data/railways.shp")
	v.SetDefault("rail.source_crs", "EPSG:4326")
	v.SetDefault("rail.year_attr", "YearConstr")
	v.SetDefault("rail.class_attr", "MAINLIGHT")
	v.SetDefault("rail.gauge_attr", "STANDNARRO")
	v.SetDefault("rail.label_attr", "TRUNK")
	v.SetDefault("access.start_year", 1839)
	v.SetDefault("access.end_year", 1913)
	v.SetDefault("access.step_years", 5)
	v.SetDefault("access.workers", 4)
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.coord_precision", 4)
	v.SetDefault("store.path", "railatlas.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
