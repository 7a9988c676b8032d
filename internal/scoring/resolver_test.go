package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMetricNestedPaths(t *testing.T) {
	data := map[string]interface{}{
		"valuation": map[string]interface{}{
			"pe_ratio": 18.5,
			"deep": map[string]interface{}{
				"ratio": 2,
			},
		},
		"price": 101.25,
	}

	tests := []struct {
		name   string
		source string
		want   float64
	}{
		{"top level", "price", 101.25},
		{"one level", "valuation.pe_ratio", 18.5},
		{"two levels with int leaf", "valuation.deep.ratio", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMetric(data, tt.source)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestResolveMetricMissingAndNonNumeric(t *testing.T) {
	data := map[string]interface{}{
		"valuation": map[string]interface{}{
			"pe_ratio": 18.5,
			"label":    "cheap",
			"flag":     true,
		},
		"scalar": 5.0,
	}

	assert.Nil(t, ResolveMetric(data, "valuation.missing"))
	assert.Nil(t, ResolveMetric(data, "growth.revenue_3y"))
	assert.Nil(t, ResolveMetric(data, "scalar.child"), "non-map hit before final segment")
	assert.Nil(t, ResolveMetric(data, "valuation.label"), "string leaf")
	assert.Nil(t, ResolveMetric(data, "valuation.flag"), "bool leaf is not a metric")
	assert.Nil(t, ResolveMetric(data, ""))
	assert.Nil(t, ResolveMetric(nil, "valuation.pe_ratio"))
}

func TestResolveMetricNumericCoercion(t *testing.T) {
	data := map[string]interface{}{
		"a": int(3),
		"b": int64(4),
		"c": float32(1.5),
		"d": uint64(7),
	}

	for source, want := range map[string]float64{"a": 3, "b": 4, "c": 1.5, "d": 7} {
		got := ResolveMetric(data, source)
		require.NotNil(t, got, source)
		assert.Equal(t, want, *got, source)
	}
}
