package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/salient-regions/internal/imaging"
	"github.com/ironsheep/salient-regions/internal/regions"
	"github.com/ironsheep/salient-regions/internal/saliency"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 200, cfg.WorkingHeight)
	assert.Equal(t, []float64{600, 700, 800, 900, 1000}, cfg.Segmentation.Ks)
	assert.Equal(t, 0.8, cfg.Segmentation.Sigma)
	assert.Equal(t, 1.0, cfg.Merge.MinScore)
	assert.Equal(t, 7, cfg.Analyzer.Keep)

	domains, err := cfg.Domains()
	require.NoError(t, err)
	assert.Equal(t, imaging.AllDomains, domains)

	assert.Equal(t, regions.DefaultOptions(), cfg.AnalyzerOptions())
	assert.Equal(t, saliency.MethodFine, cfg.SaliencyMethod())
	assert.Equal(t, 0.95, cfg.Merge.WithinLevel.Rule().IOU)
	assert.Equal(t, 0.005, cfg.Merge.CommonInDomain.Rule().Diff)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
working_height: 150
segmentation:
  k: [500, 900]
  domains: [lab, hsv]
saliency:
  method: spectral
analyzer:
  keep: 3
  keep_order: most-disagreement
`))
	require.NoError(t, err)

	assert.Equal(t, 150, cfg.WorkingHeight)
	assert.Equal(t, []float64{500, 900}, cfg.SegmentationParams().Ks)
	assert.Equal(t, 0.8, cfg.SegmentationParams().Sigma, "unset fields keep their default")
	assert.Equal(t, saliency.MethodSpectral, cfg.SaliencyMethod())
	assert.Equal(t, 3, cfg.AnalyzerOptions().Keep)
	assert.Equal(t, regions.KeepMostDisagreement, cfg.AnalyzerOptions().KeepOrder)
	assert.Equal(t, 3, cfg.ExtractParams().BorderMargin)

	domains, err := cfg.Domains()
	require.NoError(t, err)
	assert.Equal(t, []imaging.Domain{imaging.DomainLab, imaging.DomainHSV}, domains)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"malformed", "working_height: [", "failed to parse config"},
		{"working height", "working_height: 0", "working_height"},
		{"no levels", "segmentation:\n  k: []", "segmentation.k"},
		{"negative k", "segmentation:\n  k: [100, -1]", "segmentation.k"},
		{"unknown domain", "segmentation:\n  domains: [cmyk]", "unknown colour domain"},
		{"region size", "extraction:\n  max_region_size: 1.5", "max_region_size"},
		{"iou", "merge:\n  between_levels:\n    iou: 2", "merge.between_levels.iou"},
		{"method", "saliency:\n  method: magic", "saliency.method"},
		{"keep", "analyzer:\n  keep: 0", "analyzer.keep"},
		{"keep order", "analyzer:\n  keep_order: random", "keep_order"},
		{"dominance", "analyzer:\n  dominance_ratio: 0.5", "dominance_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analyzer:\n  keep: 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Analyzer.Keep)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Analyzer.Keep = 5

	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvKeep, "")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file and keep override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "regions.yaml")
		require.NoError(t, os.WriteFile(path, []byte("working_height: 120\n"), 0o644))
		t.Setenv(EnvConfig, path)
		t.Setenv(EnvKeep, "2")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 120, cfg.WorkingHeight)
		assert.Equal(t, 2, cfg.Analyzer.Keep)
	})

	t.Run("bad keep", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvKeep, "many")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvKeep)
	})

	t.Run("keep out of range", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvKeep, "0")
		_, err := FromEnv()
		require.Error(t, err)
	})
}
