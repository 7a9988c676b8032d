package scoring

import "math"

// methodFuncs is the closed dispatch table of scoring methods. The
// percentile variants are historical aliases that score linearly; true
// cross-sectional percentile ranking needs a universe snapshot this engine
// does not hold.
var methodFuncs = map[string]func(float64, MetricConfig) float64{
	MethodThreshold:         scoreThreshold,
	MethodLinear:            scoreLinear,
	MethodPercentile:        scoreLinear,
	MethodPercentileInverse: scoreLinear,
}

// ScoreMetric scores a single resolved metric value. A nil value or an
// unknown scoring method yields a nil score; the metric is then excluded
// from weighted aggregation upstream. An omitted method scores linearly.
func ScoreMetric(value *float64, cfg MetricConfig) *float64 {
	if value == nil {
		return nil
	}
	method := cfg.ScoringMethod
	if method == "" {
		method = MethodLinear
	}
	fn, ok := methodFuncs[method]
	if !ok {
		return nil
	}
	score := round(fn(*value, cfg), 1)
	return &score
}

// scoreThreshold walks the config's threshold ladder in declaration order
// and returns the score of the first matching rule. Direction decides which
// bound is consulted: min rules for higher-is-better metrics, max rules
// otherwise. When no rule matches, the first declared default wins, else 0.
func scoreThreshold(value float64, cfg MetricConfig) float64 {
	if cfg.higherIsBetter() {
		for _, rule := range cfg.Thresholds {
			if rule.Min != nil && value >= *rule.Min {
				return rule.Score
			}
		}
	} else {
		for _, rule := range cfg.Thresholds {
			if rule.Max != nil && value <= *rule.Max {
				return rule.Score
			}
		}
	}
	for _, rule := range cfg.Thresholds {
		if rule.Default != nil {
			return *rule.Default
		}
	}
	return 0.0
}

// scoreLinear interpolates the value between the configured input bounds
// onto the output range, clamping outside the input window. A degenerate
// window (input_max == input_min) maps everything to output_max.
func scoreLinear(value float64, cfg MetricConfig) float64 {
	inMin, inMax, outMin, outMax := 0.0, 100.0, 0.0, 100.0
	if b := cfg.LinearBounds; b != nil {
		if b.InputMin != nil {
			inMin = *b.InputMin
		}
		if b.InputMax != nil {
			inMax = *b.InputMax
		}
		if b.OutputMin != nil {
			outMin = *b.OutputMin
		}
		if b.OutputMax != nil {
			outMax = *b.OutputMax
		}
	}

	if inMax == inMin {
		return outMax
	}
	clamped := math.Max(inMin, math.Min(value, inMax))
	return outMin + (clamped-inMin)/(inMax-inMin)*(outMax-outMin)
}

// round rounds val to the given number of decimal places.
func round(val float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(val*shift) / shift
}
