package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir())) // away from any config.yaml
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EPSG:3035", cfg.Boundary.MetricCRS)
	assert.Equal(t, "YearConstr", cfg.Rail.YearAttr)
	assert.Equal(t, 1839, cfg.Access.StartYear)
	assert.Equal(t, 4, cfg.Output.CoordPrecision)
	assert.Equal(t, "railatlas.db", cfg.Store.Path)
	assert.Contains(t, cfg.Boundary.MunicipalitiesURL, "limits_IT_municipalities")
}

func TestEnvOverride(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("RAILATLAS_STORE_PATH", "/tmp/other.db")
	t.Setenv("RAILATLAS_ACCESS_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Access.Workers)
}

func TestAccessYears(t *testing.T) {
	c := AccessConfig{StartYear: 1839, EndYear: 1913, StepYears: 5}
	ys := c.Years()
	assert.Equal(t, 1839, ys[0])
	assert.Equal(t, 1913, ys[len(ys)-1])
	assert.Len(t, ys, 16)

	c.StepYears = 0
	assert.Equal(t, []int{1913}, c.Years(), "a non-positive step must not hang")
	c.StepYears = -3
	assert.Equal(t, []int{1913}, c.Years())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "console"})
	require.Error(t, err)
}
