// Package scoring implements the declarative factor-scoring pipeline.
//
// Factor definitions and weighting profiles live in external YAML files; the
// engine resolves metric values out of fundamentals data, scores them with
// config-selected methods, and aggregates weighted factor and composite
// scores. The package is pure computation over in-memory data: the only I/O
// is config loading, which is memoized and read-only afterwards.
package scoring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when a requested factor or profile config
// file does not exist. A misconfigured deployment must fail loudly at the
// point of use, never silently substitute a default.
var ErrConfigNotFound = errors.New("scoring config not found")

// Scoring method identifiers recognized in metric configs.
const (
	MethodThreshold         = "threshold"
	MethodLinear            = "linear"
	MethodPercentile        = "percentile"
	MethodPercentileInverse = "percentile_inverse"
)

// ThresholdRule is one step of a threshold scoring ladder. Rules are matched
// in declaration order: descending min bounds for higher-is-better metrics,
// ascending max bounds otherwise. Ordering is part of the config contract.
type ThresholdRule struct {
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Score   float64  `yaml:"score"`
	Default *float64 `yaml:"default"`
}

// LinearBounds configures clamped linear interpolation. Omitted fields fall
// back to input 0..100 mapped onto output 0..100.
type LinearBounds struct {
	InputMin  *float64 `yaml:"input_min"`
	InputMax  *float64 `yaml:"input_max"`
	OutputMin *float64 `yaml:"output_min"`
	OutputMax *float64 `yaml:"output_max"`
}

// MetricConfig is one declarative scoring rule for a single metric.
type MetricConfig struct {
	ID             string          `yaml:"id"`
	Label          string          `yaml:"label"`
	Source         string          `yaml:"source"` // dotted path, e.g. "valuation.pe_ttm"
	ScoringMethod  string          `yaml:"scoring_method"`
	Weight         *float64        `yaml:"weight"` // default 1/N, applied by the engine
	HigherIsBetter *bool           `yaml:"higher_is_better"`
	Thresholds     []ThresholdRule `yaml:"thresholds"`
	LinearBounds   *LinearBounds   `yaml:"linear_bounds"`
}

// higherIsBetter defaults to true when unset, matching config authoring
// conventions where only lower-is-better metrics declare the flag.
func (m MetricConfig) higherIsBetter() bool {
	if m.HigherIsBetter == nil {
		return true
	}
	return *m.HigherIsBetter
}

// FactorConfig is one factor's full metric definition, loaded from one file.
type FactorConfig struct {
	Factor        string         `yaml:"factor"`
	Label         string         `yaml:"label"`
	Version       int            `yaml:"version"`
	DefaultWeight float64        `yaml:"default_weight"`
	Metrics       []MetricConfig `yaml:"metrics"`
}

// DisplayLabel returns the human label, falling back to the factor id.
func (f *FactorConfig) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Factor
}

// ProfileFactor references a factor config by name with a composite weight.
type ProfileFactor struct {
	Config string   `yaml:"config"`
	Weight *float64 `yaml:"weight"`
}

// ScoringProfile defines how factor scores combine into the composite score.
type ScoringProfile struct {
	Label   string          `yaml:"label"`
	Factors []ProfileFactor `yaml:"factors"`
}

// ConfigSummary describes one factor config file for the inspection surface.
type ConfigSummary struct {
	Filename      string  `json:"filename"`
	Factor        string  `json:"factor"`
	Label         string  `json:"label"`
	Version       int     `json:"version"`
	DefaultWeight float64 `json:"default_weight"`
	MetricsCount  int     `json:"metrics_count"`
}

// Loader reads factor and profile configs from a directory of YAML files.
// Parsed configs are memoized; files are treated as immutable after startup.
type Loader struct {
	dir string

	mu       sync.RWMutex
	factors  map[string]*FactorConfig
	profiles map[string]*ScoringProfile
}

// NewLoader creates a config loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:      dir,
		factors:  make(map[string]*FactorConfig),
		profiles: make(map[string]*ScoringProfile),
	}
}

// LoadFactorConfig loads a factor scoring config by name (filename stem).
func (l *Loader) LoadFactorConfig(name string) (*FactorConfig, error) {
	l.mu.RLock()
	cfg, ok := l.factors[name]
	l.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	var parsed FactorConfig
	if err := l.readYAML(name, &parsed); err != nil {
		return nil, err
	}
	if err := validateFactorConfig(&parsed); err != nil {
		return nil, fmt.Errorf("invalid factor config %q: %w", name, err)
	}

	l.mu.Lock()
	l.factors[name] = &parsed
	l.mu.Unlock()
	return &parsed, nil
}

// LoadProfile loads a scoring profile by name (filename stem).
func (l *Loader) LoadProfile(name string) (*ScoringProfile, error) {
	l.mu.RLock()
	p, ok := l.profiles[name]
	l.mu.RUnlock()
	if ok {
		return p, nil
	}

	var parsed ScoringProfile
	if err := l.readYAML(name, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Factors) == 0 {
		return nil, fmt.Errorf("profile %q declares no factors", name)
	}

	l.mu.Lock()
	l.profiles[name] = &parsed
	l.mu.Unlock()
	return &parsed, nil
}

// ListConfigs enumerates all factor-type configs in the directory. Files
// without a factor id (profiles) are skipped. Used by the admin/inspection
// surface, not by the scoring path.
func (l *Loader) ListConfigs() ([]ConfigSummary, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring config dir %s: %w", l.dir, err)
	}

	var summaries []ConfigSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")

		var cfg FactorConfig
		if err := l.readYAML(name, &cfg); err != nil {
			return nil, err
		}
		if cfg.Factor == "" {
			continue
		}

		version := cfg.Version
		if version == 0 {
			version = 1
		}
		summaries = append(summaries, ConfigSummary{
			Filename:      name,
			Factor:        cfg.Factor,
			Label:         cfg.DisplayLabel(),
			Version:       version,
			DefaultWeight: cfg.DefaultWeight,
			MetricsCount:  len(cfg.Metrics),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Filename < summaries[j].Filename
	})
	return summaries, nil
}

func (l *Loader) readYAML(name string, out interface{}) error {
	path := filepath.Join(l.dir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read scoring config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse scoring config %s: %w", path, err)
	}
	return nil
}

func validateFactorConfig(cfg *FactorConfig) error {
	if cfg.Factor == "" {
		return fmt.Errorf("missing factor id")
	}
	for _, m := range cfg.Metrics {
		if m.ID == "" || m.Source == "" {
			return fmt.Errorf("metric %q missing id or source", m.ID)
		}
		if m.Weight != nil && *m.Weight < 0 {
			return fmt.Errorf("metric %q has negative weight", m.ID)
		}
	}
	return nil
}
