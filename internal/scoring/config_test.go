package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644)
	require.NoError(t, err)
}

const valuationYAML = `
factor: valuation
label: Valuation
version: 2
default_weight: 0.25
metrics:
  - id: pe_ttm
    label: P/E (TTM)
    source: valuation.pe_ttm
    scoring_method: threshold
    weight: 0.5
    higher_is_better: false
    thresholds:
      - max: 15
        score: 100
      - max: 25
        score: 70
      - default: 20
  - id: fcf_yield
    label: FCF Yield
    source: quality.fcf_yield
    scoring_method: linear
    weight: 0.5
    linear_bounds:
      input_min: 0
      input_max: 10
      output_min: 0
      output_max: 100
`

const profileYAML = `
label: Balanced
factors:
  - config: valuation_v1
    weight: 0.6
  - config: growth_v1
    weight: 0.4
`

func TestLoaderFactorConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "valuation_v1", valuationYAML)
	loader := NewLoader(dir)

	t.Run("parses metrics and bounds", func(t *testing.T) {
		cfg, err := loader.LoadFactorConfig("valuation_v1")
		require.NoError(t, err)
		assert.Equal(t, "valuation", cfg.Factor)
		assert.Equal(t, "Valuation", cfg.Label)
		assert.Equal(t, 2, cfg.Version)
		assert.Equal(t, 0.25, cfg.DefaultWeight)
		require.Len(t, cfg.Metrics, 2)

		pe := cfg.Metrics[0]
		assert.False(t, pe.higherIsBetter())
		require.Len(t, pe.Thresholds, 3)
		require.NotNil(t, pe.Thresholds[0].Max)
		assert.Equal(t, 15.0, *pe.Thresholds[0].Max)
		require.NotNil(t, pe.Thresholds[2].Default)
		assert.Equal(t, 20.0, *pe.Thresholds[2].Default)

		fcf := cfg.Metrics[1]
		assert.True(t, fcf.higherIsBetter())
		require.NotNil(t, fcf.LinearBounds)
		assert.Equal(t, 10.0, *fcf.LinearBounds.InputMax)
	})

	t.Run("memoizes parsed configs", func(t *testing.T) {
		first, err := loader.LoadFactorConfig("valuation_v1")
		require.NoError(t, err)
		second, err := loader.LoadFactorConfig("valuation_v1")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("missing config fails loudly", func(t *testing.T) {
		_, err := loader.LoadFactorConfig("momentum_v9")
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("config without factor id is rejected", func(t *testing.T) {
		writeConfig(t, dir, "broken_v1", "label: Broken\nmetrics: []\n")
		_, err := loader.LoadFactorConfig("broken_v1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestLoaderProfile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "default_profile", profileYAML)
	loader := NewLoader(dir)

	t.Run("parses factors with weights", func(t *testing.T) {
		profile, err := loader.LoadProfile("default_profile")
		require.NoError(t, err)
		assert.Equal(t, "Balanced", profile.Label)
		require.Len(t, profile.Factors, 2)
		assert.Equal(t, "valuation_v1", profile.Factors[0].Config)
		require.NotNil(t, profile.Factors[0].Weight)
		assert.Equal(t, 0.6, *profile.Factors[0].Weight)
	})

	t.Run("missing profile fails loudly", func(t *testing.T) {
		_, err := loader.LoadProfile("aggressive")
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("empty profile is rejected", func(t *testing.T) {
		writeConfig(t, dir, "empty", "label: Empty\nfactors: []\n")
		_, err := loader.LoadProfile("empty")
		assert.Error(t, err)
	})
}

func TestLoaderListConfigs(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "valuation_v1", valuationYAML)
	writeConfig(t, dir, "growth_v1", "factor: growth\nmetrics:\n  - id: g\n    source: growth.g\n    scoring_method: linear\n")
	writeConfig(t, dir, "default_profile", profileYAML)
	loader := NewLoader(dir)

	summaries, err := loader.ListConfigs()
	require.NoError(t, err)
	require.Len(t, summaries, 2, "profiles must be skipped")

	assert.Equal(t, "growth_v1", summaries[0].Filename)
	assert.Equal(t, "growth", summaries[0].Label, "label falls back to factor id")
	assert.Equal(t, 1, summaries[0].Version, "version defaults to 1")
	assert.Equal(t, 1, summaries[0].MetricsCount)

	assert.Equal(t, "valuation_v1", summaries[1].Filename)
	assert.Equal(t, "Valuation", summaries[1].Label)
	assert.Equal(t, 2, summaries[1].Version)
	assert.Equal(t, 0.25, summaries[1].DefaultWeight)
	assert.Equal(t, 2, summaries[1].MetricsCount)
}
