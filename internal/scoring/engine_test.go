package scoring

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConfigs serves canned configs so engine tests need no filesystem.
type stubConfigs struct {
	factors  map[string]*FactorConfig
	profiles map[string]*ScoringProfile
}

func (s *stubConfigs) LoadFactorConfig(name string) (*FactorConfig, error) {
	if cfg, ok := s.factors[name]; ok {
		return cfg, nil
	}
	return nil, ErrConfigNotFound
}

func (s *stubConfigs) LoadProfile(name string) (*ScoringProfile, error) {
	if p, ok := s.profiles[name]; ok {
		return p, nil
	}
	return nil, ErrConfigNotFound
}

func thresholdMetric(id, source string, weight float64, higher bool) MetricConfig {
	return MetricConfig{
		ID:             id,
		Label:          id,
		Source:         source,
		ScoringMethod:  MethodThreshold,
		Weight:         fptr(weight),
		HigherIsBetter: bptr(higher),
		Thresholds: []ThresholdRule{
			{Min: fptr(20), Max: fptr(10), Score: 100},
			{Min: fptr(0), Max: fptr(50), Score: 40},
		},
	}
}

func newTestEngine(configs ConfigSource) *Engine {
	return NewEngine(configs, zerolog.Nop())
}

func TestScoreFactor(t *testing.T) {
	t.Run("weighted average over resolved metrics", func(t *testing.T) {
		configs := &stubConfigs{factors: map[string]*FactorConfig{
			"growth_v1": {
				Factor: "growth",
				Label:  "Growth",
				Metrics: []MetricConfig{
					thresholdMetric("a", "growth.a", 0.6, true),
					thresholdMetric("b", "growth.b", 0.4, true),
				},
			},
		}}
		engine := newTestEngine(configs)

		fundamentals := map[string]interface{}{
			"growth": map[string]interface{}{"a": 25.0, "b": 5.0},
		}
		result, err := engine.ScoreFactor("growth_v1", fundamentals, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Score)
		// (100*0.6 + 40*0.4) / 1.0
		assert.Equal(t, 76.0, *result.Score)
		assert.Equal(t, "growth", result.Factor)
		assert.Equal(t, "Growth", result.Label)
		assert.Len(t, result.Components, 2)
		assert.Contains(t, result.Explanation, "Growth: 76/100")
	})

	t.Run("null metrics are excluded and weights renormalize", func(t *testing.T) {
		configs := &stubConfigs{factors: map[string]*FactorConfig{
			"growth_v1": {
				Factor: "growth",
				Metrics: []MetricConfig{
					thresholdMetric("a", "growth.a", 0.6, true),
					thresholdMetric("b", "growth.missing", 0.4, true),
				},
			},
		}}
		engine := newTestEngine(configs)

		fundamentals := map[string]interface{}{
			"growth": map[string]interface{}{"a": 25.0},
		}
		result, err := engine.ScoreFactor("growth_v1", fundamentals, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Score)
		// Only metric a counts: 100*0.6 / 0.6
		assert.Equal(t, 100.0, *result.Score)

		// Unresolved metric still shows in the breakdown.
		require.Len(t, result.Components, 2)
		assert.Nil(t, result.Components[1].RawValue)
		assert.Nil(t, result.Components[1].Score)
	})

	t.Run("all metrics null yields nil factor score", func(t *testing.T) {
		configs := &stubConfigs{factors: map[string]*FactorConfig{
			"growth_v1": {
				Factor:  "growth",
				Metrics: []MetricConfig{thresholdMetric("a", "growth.a", 1.0, true)},
			},
		}}
		engine := newTestEngine(configs)

		result, err := engine.ScoreFactor("growth_v1", map[string]interface{}{}, nil)
		require.NoError(t, err)
		assert.Nil(t, result.Score)
		assert.Len(t, result.Components, 1)
		assert.Contains(t, result.Explanation, "Insufficient data")
	})

	t.Run("omitted weights default to equal shares", func(t *testing.T) {
		configs := &stubConfigs{factors: map[string]*FactorConfig{
			"f_v1": {
				Factor: "f",
				Metrics: []MetricConfig{
					{ID: "a", Source: "d.a", ScoringMethod: MethodLinear},
					{ID: "b", Source: "d.b", ScoringMethod: MethodLinear},
				},
			},
		}}
		engine := newTestEngine(configs)

		data := map[string]interface{}{"d": map[string]interface{}{"a": 80.0, "b": 40.0}}
		result, err := engine.ScoreFactor("f_v1", data, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Score)
		assert.Equal(t, 60.0, *result.Score)
		assert.Equal(t, 0.5, result.Components[0].Weight)
	})

	t.Run("unknown config returns error", func(t *testing.T) {
		engine := newTestEngine(&stubConfigs{})
		_, err := engine.ScoreFactor("nope_v1", nil, nil)
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestAnalystFallbacks(t *testing.T) {
	t.Run("upside percent derives from target and price", func(t *testing.T) {
		fundamentals := map[string]interface{}{
			"analyst": map[string]interface{}{"target_mean": 150.0},
		}
		stockInfo := map[string]interface{}{"price": 120.0}

		got := resolveAnalystMetric("analyst.upside_pct", fundamentals, stockInfo)
		require.NotNil(t, got)
		assert.Equal(t, 25.0, *got)
	})

	t.Run("upside needs both a target and a positive price", func(t *testing.T) {
		fundamentals := map[string]interface{}{
			"analyst": map[string]interface{}{"target_mean": 150.0},
		}
		assert.Nil(t, resolveAnalystMetric("analyst.upside_pct", fundamentals, map[string]interface{}{}))
		assert.Nil(t, resolveAnalystMetric("analyst.upside_pct", fundamentals, map[string]interface{}{"price": 0.0}))
		assert.Nil(t, resolveAnalystMetric("analyst.upside_pct", map[string]interface{}{}, map[string]interface{}{"price": 120.0}))
	})

	t.Run("rating score inverts the leading numeric", func(t *testing.T) {
		fundamentals := map[string]interface{}{
			"analyst": map[string]interface{}{"rating": "2.4 - Buy"},
		}
		got := resolveAnalystMetric("analyst.rating_score", fundamentals, map[string]interface{}{})
		require.NotNil(t, got)
		assert.Equal(t, 3.6, *got)
	})

	t.Run("unparseable rating yields nil", func(t *testing.T) {
		fundamentals := map[string]interface{}{
			"analyst": map[string]interface{}{"rating": "Strong Buy"},
		}
		assert.Nil(t, resolveAnalystMetric("analyst.rating_score", fundamentals, map[string]interface{}{}))
	})

	t.Run("non-analyst sources never fall back", func(t *testing.T) {
		assert.Nil(t, resolveAnalystMetric("valuation.pe_ttm", nil, map[string]interface{}{"price": 1.0}))
	})

	t.Run("fallback requires quote data", func(t *testing.T) {
		assert.Nil(t, resolveAnalystMetric("analyst.upside_pct", map[string]interface{}{}, nil))
	})
}

func TestScoreComposite(t *testing.T) {
	linearFactor := func(factor, source string) *FactorConfig {
		return &FactorConfig{
			Factor:  factor,
			Label:   factor,
			Metrics: []MetricConfig{{ID: factor, Label: factor, Source: source, ScoringMethod: MethodLinear}},
		}
	}

	configs := &stubConfigs{
		factors: map[string]*FactorConfig{
			"valuation_v1": linearFactor("valuation", "d.val"),
			"growth_v1":    linearFactor("growth", "d.gro"),
		},
		profiles: map[string]*ScoringProfile{
			"default_profile": {
				Label: "Balanced",
				Factors: []ProfileFactor{
					{Config: "valuation_v1", Weight: fptr(0.6)},
					{Config: "growth_v1", Weight: fptr(0.4)},
				},
			},
		},
	}
	engine := newTestEngine(configs)

	t.Run("weights combine factor scores", func(t *testing.T) {
		data := map[string]interface{}{"d": map[string]interface{}{"val": 80.0, "gro": 50.0}}
		result, err := engine.ScoreComposite(data, nil, "")
		require.NoError(t, err)
		require.NotNil(t, result.OverallScore)
		// (80*0.6 + 50*0.4) / 1.0
		assert.Equal(t, 68.0, *result.OverallScore)
		assert.Equal(t, "Balanced", result.ProfileUsed)
		assert.Equal(t, 0.6, result.Factors["valuation"].Weight)
	})

	t.Run("nil factors drop out of the average", func(t *testing.T) {
		data := map[string]interface{}{"d": map[string]interface{}{"val": 80.0}}
		result, err := engine.ScoreComposite(data, nil, "default_profile")
		require.NoError(t, err)
		require.NotNil(t, result.OverallScore)
		assert.Equal(t, 80.0, *result.OverallScore)
		assert.Nil(t, result.Factors["growth"].Score)
	})

	t.Run("all factors nil yields nil overall", func(t *testing.T) {
		result, err := engine.ScoreComposite(map[string]interface{}{}, nil, "default_profile")
		require.NoError(t, err)
		assert.Nil(t, result.OverallScore)
		assert.Len(t, result.Factors, 2)
	})

	t.Run("unknown profile returns error", func(t *testing.T) {
		_, err := engine.ScoreComposite(nil, nil, "aggressive")
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("profile without label reports its name", func(t *testing.T) {
		configs.profiles["plain"] = &ScoringProfile{
			Factors: []ProfileFactor{{Config: "valuation_v1", Weight: fptr(1.0)}},
		}
		data := map[string]interface{}{"d": map[string]interface{}{"val": 10.0}}
		result, err := engine.ScoreComposite(data, nil, "plain")
		require.NoError(t, err)
		assert.Equal(t, "plain", result.ProfileUsed)
	})
}

func TestExplainFactor(t *testing.T) {
	t.Run("nil score explains missing data", func(t *testing.T) {
		result := &FactorScoreResult{Label: "Growth"}
		assert.Equal(t, "Growth: Insufficient data to calculate score.", ExplainFactor(result))
	})

	t.Run("assessment bands at boundaries", func(t *testing.T) {
		cases := []struct {
			score float64
			want  string
		}{
			{80.0, "Excellent"},
			{79.9, "Strong"},
			{65.0, "Strong"},
			{64.9, "Moderate"},
			{50.0, "Moderate"},
			{49.9, "Below average"},
			{35.0, "Below average"},
			{34.9, "Weak"},
		}
		for _, tc := range cases {
			result := &FactorScoreResult{Label: "F", Score: fptr(tc.score)}
			assert.Contains(t, ExplainFactor(result), tc.want, "score %.1f", tc.score)
		}
	})

	t.Run("strengths and concerns render with formatted values", func(t *testing.T) {
		result := &FactorScoreResult{
			Label: "Profitability",
			Score: fptr(55.0),
			Components: []ScoreComponent{
				{MetricID: "nm", Label: "Net Margin", RawValue: fptr(22.5), Score: fptr(90.0), Weight: 0.5},
				{MetricID: "roe", Label: "ROE", RawValue: fptr(31.0), Score: fptr(70.0), Weight: 0.3},
				{MetricID: "de", Label: "Debt/Equity Ratio", RawValue: fptr(2.75), Score: fptr(20.0), Weight: 0.2},
				{MetricID: "na", Label: "Missing", RawValue: nil, Score: nil, Weight: 0.1},
			},
		}
		text := ExplainFactor(result)

		assert.Contains(t, text, "Profitability: 55/100 — Moderate")
		assert.Contains(t, text, "Key strengths:")
		assert.Contains(t, text, "  • Net Margin: 22.5% (score: 90)")
		assert.Contains(t, text, "  • ROE: 31.0% (score: 70)")
		assert.Contains(t, text, "Areas of concern:")
		assert.Contains(t, text, "  • Debt/Equity Ratio: 2.75x (score: 20)")
		assert.NotContains(t, text, "Missing")
	})

	t.Run("strengths rank by weighted contribution", func(t *testing.T) {
		result := &FactorScoreResult{
			Label: "F",
			Score: fptr(70.0),
			Components: []ScoreComponent{
				{Label: "Low weight high score", RawValue: fptr(1.0), Score: fptr(95.0), Weight: 0.1},
				{Label: "Heavy", RawValue: fptr(1.0), Score: fptr(80.0), Weight: 0.9},
			},
		}
		text := ExplainFactor(result)
		heavy := strings.Index(text, "Heavy")
		light := strings.Index(text, "Low weight high score")
		require.GreaterOrEqual(t, heavy, 0)
		require.GreaterOrEqual(t, light, 0)
		assert.Less(t, heavy, light)
	})

	t.Run("strengths draw only from the top two contributors", func(t *testing.T) {
		// The third-ranked component scores 70 but must not be promoted
		// past the two bigger contributors, which score below 60.
		result := &FactorScoreResult{
			Label: "F",
			Score: fptr(50.0),
			Components: []ScoreComponent{
				{Label: "Big", RawValue: fptr(1.0), Score: fptr(45.0), Weight: 0.55},
				{Label: "Medium", RawValue: fptr(1.0), Score: fptr(45.0), Weight: 0.5},
				{Label: "Tiny", RawValue: fptr(1.0), Score: fptr(70.0), Weight: 0.1},
			},
		}
		text := ExplainFactor(result)

		assert.Contains(t, text, "Key strengths:")
		assert.NotContains(t, text, "Tiny")
		assert.NotContains(t, text, "  • ")
	})
}

func TestFormatRawValue(t *testing.T) {
	assert.Equal(t, "N/A", formatRawValue(nil, "Anything"))
	assert.Equal(t, "15.3%", formatRawValue(fptr(15.34), "Revenue Growth YoY"))
	assert.Equal(t, "3.1%", formatRawValue(fptr(3.12), "Dividend Yield"))
	assert.Equal(t, "24.50x", formatRawValue(fptr(24.5), "P/E (TTM)"))
	assert.Equal(t, "1.80x", formatRawValue(fptr(1.8), "Current Ratio"))
	assert.Equal(t, "12.34", formatRawValue(fptr(12.339), "Analyst Count"))
}
