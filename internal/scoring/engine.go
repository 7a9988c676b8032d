package scoring

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultProfileName is the composite profile used when none is requested.
const DefaultProfileName = "default_profile"

// ConfigSource supplies factor and profile configs to the engine.
type ConfigSource interface {
	LoadFactorConfig(name string) (*FactorConfig, error)
	LoadProfile(name string) (*ScoringProfile, error)
}

// ScoreComponent is the per-metric breakdown inside a factor score.
type ScoreComponent struct {
	MetricID string   `json:"metric_id"`
	Label    string   `json:"label"`
	RawValue *float64 `json:"raw_value"`
	Score    *float64 `json:"score"`
	Weight   float64  `json:"weight"`
}

// FactorScoreResult is one factor's weighted score with its components.
// Score is nil when no metric in the factor could be resolved and scored.
type FactorScoreResult struct {
	Factor      string           `json:"factor"`
	Label       string           `json:"label"`
	Score       *float64         `json:"score"`
	Weight      float64          `json:"weight"`
	Components  []ScoreComponent `json:"components"`
	Explanation string           `json:"explanation"`
}

// CompositeScoreResult aggregates factor scores under a weighting profile.
type CompositeScoreResult struct {
	OverallScore *float64                      `json:"overall_score"`
	Factors      map[string]*FactorScoreResult `json:"factors"`
	ProfileUsed  string                        `json:"profile_used"`
}

// Engine computes factor and composite scores from fundamentals data.
type Engine struct {
	configs ConfigSource
	log     zerolog.Logger
}

// NewEngine creates a scoring engine backed by the given config source.
func NewEngine(configs ConfigSource, log zerolog.Logger) *Engine {
	return &Engine{
		configs: configs,
		log:     log.With().Str("component", "scoring").Logger(),
	}
}

// ScoreFactor scores one factor for a company. Metrics whose value cannot be
// resolved, or whose score comes back nil, contribute neither weight nor
// score to the average but still appear in the component breakdown.
func (e *Engine) ScoreFactor(configName string, fundamentals, stockInfo map[string]interface{}) (*FactorScoreResult, error) {
	cfg, err := e.configs.LoadFactorConfig(configName)
	if err != nil {
		return nil, err
	}

	defaultWeight := 0.0
	if n := len(cfg.Metrics); n > 0 {
		defaultWeight = 1.0 / float64(n)
	}

	var weightedSum, totalWeight float64
	components := make([]ScoreComponent, 0, len(cfg.Metrics))

	for _, metric := range cfg.Metrics {
		raw := ResolveMetric(fundamentals, metric.Source)
		if raw == nil {
			raw = resolveAnalystMetric(metric.Source, fundamentals, stockInfo)
		}
		score := ScoreMetric(raw, metric)

		weight := defaultWeight
		if metric.Weight != nil {
			weight = *metric.Weight
		}
		if score != nil {
			weightedSum += *score * weight
			totalWeight += weight
		}

		components = append(components, ScoreComponent{
			MetricID: metric.ID,
			Label:    metric.Label,
			RawValue: raw,
			Score:    score,
			Weight:   weight,
		})
	}

	result := &FactorScoreResult{
		Factor:     cfg.Factor,
		Label:      cfg.DisplayLabel(),
		Weight:     cfg.DefaultWeight,
		Components: components,
	}
	if totalWeight > 0 {
		score := round(weightedSum/totalWeight, 1)
		result.Score = &score
	}
	result.Explanation = ExplainFactor(result)
	return result, nil
}

// ScoreComposite scores every factor in a profile and combines them into a
// weighted overall score. Factors with nil scores are excluded from the
// average; the remaining weights renormalize implicitly.
func (e *Engine) ScoreComposite(fundamentals, stockInfo map[string]interface{}, profileName string) (*CompositeScoreResult, error) {
	if profileName == "" {
		profileName = DefaultProfileName
	}
	profile, err := e.configs.LoadProfile(profileName)
	if err != nil {
		return nil, err
	}

	factors := make(map[string]*FactorScoreResult, len(profile.Factors))
	var weightedSum, totalWeight float64

	for _, entry := range profile.Factors {
		result, err := e.ScoreFactor(entry.Config, fundamentals, stockInfo)
		if err != nil {
			return nil, err
		}

		weight := 0.2
		if entry.Weight != nil {
			weight = *entry.Weight
		}
		result.Weight = weight

		if result.Score != nil {
			weightedSum += *result.Score * weight
			totalWeight += weight
		}
		factors[result.Factor] = result
	}

	composite := &CompositeScoreResult{
		Factors:     factors,
		ProfileUsed: profileName,
	}
	if profile.Label != "" {
		composite.ProfileUsed = profile.Label
	}
	if totalWeight > 0 {
		overall := round(weightedSum/totalWeight, 1)
		composite.OverallScore = &overall
	}
	return composite, nil
}

// resolveAnalystMetric derives analyst metrics that are not stored directly
// in the fundamentals record. Only consulted after direct resolution fails.
func resolveAnalystMetric(source string, fundamentals, stockInfo map[string]interface{}) *float64 {
	if stockInfo == nil || !strings.HasPrefix(source, "analyst.") {
		return nil
	}

	switch source {
	case "analyst.upside_pct":
		target := ResolveMetric(fundamentals, "analyst.target_mean")
		price := asFloat(stockInfo["price"])
		if target == nil || *target == 0 || price == nil || *price <= 0 {
			return nil
		}
		upside := round((*target / *price - 1) * 100, 2)
		return &upside

	case "analyst.rating_score":
		rating, ok := resolveString(fundamentals, "analyst", "rating")
		if !ok {
			return nil
		}
		// Ratings arrive as "2.4 - Buy"; lower numeric means better, so
		// invert onto a 1..5 ascending scale.
		numeric, err := strconv.ParseFloat(strings.Fields(rating)[0], 64)
		if err != nil {
			return nil
		}
		score := round(6.0-numeric, 2)
		return &score

	case "analyst.num_analysts":
		return ResolveMetric(fundamentals, "analyst.num_analysts")
	}
	return nil
}

func resolveString(data map[string]interface{}, keys ...string) (string, bool) {
	var current interface{} = data
	for _, key := range keys {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = m[key]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
