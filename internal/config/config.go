// Package config holds the tunable thresholds of the region pipeline.
//
// A Config starts from Default and is overlaid with a YAML file; fields the
// file leaves out keep their default. Environment variables can point at
// the file and override the number of regions kept.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/salient-regions/internal/imaging"
	"github.com/ironsheep/salient-regions/internal/proposal"
	"github.com/ironsheep/salient-regions/internal/regions"
	"github.com/ironsheep/salient-regions/internal/saliency"
	"github.com/ironsheep/salient-regions/internal/segmentation"
)

// Environment variables read by FromEnv.
const (
	EnvConfig   = "SALIENT_REGIONS_CONFIG"
	EnvLogLevel = "SALIENT_REGIONS_LOG_LEVEL"
	EnvKeep     = "SALIENT_REGIONS_KEEP"
)

// Config is the full pipeline configuration.
type Config struct {
	// WorkingHeight is the height in pixels images are resized to before
	// segmentation. The aspect ratio is preserved.
	WorkingHeight int `yaml:"working_height"`

	Segmentation SegmentationConfig `yaml:"segmentation"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
	Merge        MergeConfig        `yaml:"merge"`
	Saliency     SaliencyConfig     `yaml:"saliency"`
	Analyzer     AnalyzerConfig     `yaml:"analyzer"`
}

// SegmentationConfig controls the graph segmentation.
type SegmentationConfig struct {
	Sigma   float64   `yaml:"sigma"`
	Ks      []float64 `yaml:"k"`
	MinSize int       `yaml:"min_size"`
	Domains []string  `yaml:"domains"`
}

// ExtractionConfig controls which segments become proposals.
type ExtractionConfig struct {
	MaxRegionSize   float64 `yaml:"max_region_size"`
	BorderMargin    int     `yaml:"border_margin"`
	MinSideFraction float64 `yaml:"min_side_fraction"`
	MinFillRatio    float64 `yaml:"min_fill_ratio"`
}

// RuleConfig is one merge rule: IOU threshold and tolerated union excess as
// a fraction of the image area.
type RuleConfig struct {
	IOU  float64 `yaml:"iou"`
	Diff float64 `yaml:"diff"`
}

// MergeConfig controls the three merge passes.
type MergeConfig struct {
	WithinLevel    RuleConfig `yaml:"within_level"`
	BetweenLevels  RuleConfig `yaml:"between_levels"`
	MinScore       float64    `yaml:"min_score"`
	CommonInDomain RuleConfig `yaml:"common_in_domain"`
}

// SaliencyConfig selects the saliency map.
type SaliencyConfig struct {
	Method   string `yaml:"method"`
	Equalize bool   `yaml:"equalize"`
}

// AnalyzerConfig mirrors regions.Options.
type AnalyzerConfig struct {
	ForceMergeThreshold    float64 `yaml:"force_merge_threshold"`
	ContainmentThreshold   float64 `yaml:"containment_threshold"`
	SubRegionKeepMargin    float64 `yaml:"sub_region_keep_margin"`
	LocalStdThreshold      float64 `yaml:"local_std_threshold"`
	OverlapThreshold       float64 `yaml:"overlap_threshold"`
	DominanceRatio         float64 `yaml:"dominance_ratio"`
	AbsorbWeight           float64 `yaml:"absorb_weight"`
	ReconciledWeight       float64 `yaml:"reconciled_weight"`
	ReconcileEdgeTolerance int     `yaml:"reconcile_edge_tolerance"`
	DistinguishTolerance   float64 `yaml:"distinguish_tolerance"`
	MaxExpansion           float64 `yaml:"max_expansion"`
	Keep                   int     `yaml:"keep"`
	KeepOrder              string  `yaml:"keep_order"`
}

// Default returns the standard configuration.
func Default() *Config {
	ep := proposal.DefaultExtractParams()
	rule := RuleConfig{IOU: proposal.DefaultMergeRule().IOU, Diff: proposal.DefaultMergeRule().Diff}
	opts := regions.DefaultOptions()

	domains := make([]string, len(imaging.AllDomains))
	for i, d := range imaging.AllDomains {
		domains[i] = d.String()
	}

	return &Config{
		WorkingHeight: 200,
		Segmentation: SegmentationConfig{
			Sigma:   0.8,
			Ks:      []float64{600, 700, 800, 900, 1000},
			MinSize: 100,
			Domains: domains,
		},
		Extraction: ExtractionConfig{
			MaxRegionSize:   ep.MaxRegionSize,
			BorderMargin:    ep.BorderMargin,
			MinSideFraction: ep.MinSideFraction,
			MinFillRatio:    ep.MinFillRatio,
		},
		Merge: MergeConfig{
			WithinLevel:    rule,
			BetweenLevels:  rule,
			MinScore:       1.0,
			CommonInDomain: rule,
		},
		Saliency: SaliencyConfig{
			Method:   string(saliency.MethodFine),
			Equalize: true,
		},
		Analyzer: AnalyzerConfig{
			ForceMergeThreshold:    opts.ForceMergeThreshold,
			ContainmentThreshold:   opts.ContainmentThreshold,
			SubRegionKeepMargin:    opts.SubRegionKeepMargin,
			LocalStdThreshold:      opts.LocalStdThreshold,
			OverlapThreshold:       opts.OverlapThreshold,
			DominanceRatio:         opts.DominanceRatio,
			AbsorbWeight:           opts.AbsorbWeight,
			ReconciledWeight:       opts.ReconciledWeight,
			ReconcileEdgeTolerance: opts.ReconcileEdgeTolerance,
			DistinguishTolerance:   opts.DistinguishTolerance,
			MaxExpansion:           opts.MaxExpansion,
			Keep:                   opts.Keep,
			KeepOrder:              string(opts.KeepOrder),
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Empty input
// yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the file named by SALIENT_REGIONS_CONFIG, or the defaults
// when it is unset, then applies SALIENT_REGIONS_KEEP.
func FromEnv() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfig); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := os.Getenv(EnvKeep); v != "" {
		keep, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", EnvKeep)
		}
		cfg.Analyzer.Keep = keep
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return data, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.WorkingHeight <= 0 {
		return errors.Errorf("working_height must be positive, got %d", c.WorkingHeight)
	}

	s := c.Segmentation
	if s.Sigma < 0 {
		return errors.Errorf("segmentation.sigma must not be negative, got %v", s.Sigma)
	}
	if len(s.Ks) == 0 {
		return errors.New("segmentation.k must list at least one value")
	}
	for _, k := range s.Ks {
		if k <= 0 {
			return errors.Errorf("segmentation.k values must be positive, got %v", k)
		}
	}
	if s.MinSize < 0 {
		return errors.Errorf("segmentation.min_size must not be negative, got %d", s.MinSize)
	}
	if _, err := c.Domains(); err != nil {
		return err
	}

	e := c.Extraction
	if e.MaxRegionSize <= 0 || e.MaxRegionSize > 1 {
		return errors.Errorf("extraction.max_region_size must be in (0, 1], got %v", e.MaxRegionSize)
	}
	if e.BorderMargin < 0 {
		return errors.Errorf("extraction.border_margin must not be negative, got %d", e.BorderMargin)
	}
	if err := fraction("extraction.min_side_fraction", e.MinSideFraction); err != nil {
		return err
	}
	if err := fraction("extraction.min_fill_ratio", e.MinFillRatio); err != nil {
		return err
	}

	for name, r := range map[string]RuleConfig{
		"merge.within_level":     c.Merge.WithinLevel,
		"merge.between_levels":   c.Merge.BetweenLevels,
		"merge.common_in_domain": c.Merge.CommonInDomain,
	} {
		if err := fraction(name+".iou", r.IOU); err != nil {
			return err
		}
		if err := fraction(name+".diff", r.Diff); err != nil {
			return err
		}
	}
	if c.Merge.MinScore < 0 {
		return errors.Errorf("merge.min_score must not be negative, got %v", c.Merge.MinScore)
	}

	if _, err := saliency.ParseMethod(c.Saliency.Method); err != nil {
		return errors.Wrap(err, "saliency.method")
	}

	a := c.Analyzer
	for name, v := range map[string]float64{
		"analyzer.force_merge_threshold": a.ForceMergeThreshold,
		"analyzer.containment_threshold": a.ContainmentThreshold,
		"analyzer.overlap_threshold":     a.OverlapThreshold,
		"analyzer.absorb_weight":         a.AbsorbWeight,
		"analyzer.max_expansion":         a.MaxExpansion,
	} {
		if err := fraction(name, v); err != nil {
			return err
		}
	}
	if a.DominanceRatio < 1 {
		return errors.Errorf("analyzer.dominance_ratio must be at least 1, got %v", a.DominanceRatio)
	}
	if a.ReconcileEdgeTolerance < 0 {
		return errors.Errorf("analyzer.reconcile_edge_tolerance must not be negative, got %d", a.ReconcileEdgeTolerance)
	}
	if a.Keep < 1 {
		return errors.Errorf("analyzer.keep must be at least 1, got %d", a.Keep)
	}
	switch regions.KeepOrder(a.KeepOrder) {
	case regions.KeepLeastDisagreement, regions.KeepMostDisagreement:
	default:
		return errors.Errorf("analyzer.keep_order must be %q or %q, got %q",
			regions.KeepLeastDisagreement, regions.KeepMostDisagreement, a.KeepOrder)
	}
	return nil
}

func fraction(name string, v float64) error {
	if v < 0 || v > 1 {
		return errors.Errorf("%s must be in [0, 1], got %v", name, v)
	}
	return nil
}

// Domains parses the configured colour domains.
func (c *Config) Domains() ([]imaging.Domain, error) {
	if len(c.Segmentation.Domains) == 0 {
		return nil, errors.New("segmentation.domains must list at least one domain")
	}
	out := make([]imaging.Domain, 0, len(c.Segmentation.Domains))
	for _, name := range c.Segmentation.Domains {
		d, err := imaging.ParseDomain(name)
		if err != nil {
			return nil, errors.Wrap(err, "segmentation.domains")
		}
		out = append(out, d)
	}
	return out, nil
}

// SegmentationParams returns the segmenter settings.
func (c *Config) SegmentationParams() segmentation.Params {
	return segmentation.Params{
		Sigma:   c.Segmentation.Sigma,
		Ks:      append([]float64(nil), c.Segmentation.Ks...),
		MinSize: c.Segmentation.MinSize,
	}
}

// ExtractParams returns the proposal extraction settings.
func (c *Config) ExtractParams() proposal.ExtractParams {
	return proposal.ExtractParams{
		MaxRegionSize:   c.Extraction.MaxRegionSize,
		BorderMargin:    c.Extraction.BorderMargin,
		MinSideFraction: c.Extraction.MinSideFraction,
		MinFillRatio:    c.Extraction.MinFillRatio,
	}
}

// Rule converts a RuleConfig to a merge rule.
func (r RuleConfig) Rule() proposal.MergeRule {
	return proposal.MergeRule{IOU: r.IOU, Diff: r.Diff}
}

// SaliencyMethod returns the configured saliency method.
func (c *Config) SaliencyMethod() saliency.Method {
	m, err := saliency.ParseMethod(c.Saliency.Method)
	if err != nil {
		return saliency.MethodFine
	}
	return m
}

// AnalyzerOptions returns the analyzer thresholds.
func (c *Config) AnalyzerOptions() regions.Options {
	a := c.Analyzer
	return regions.Options{
		ForceMergeThreshold:    a.ForceMergeThreshold,
		ContainmentThreshold:   a.ContainmentThreshold,
		SubRegionKeepMargin:    a.SubRegionKeepMargin,
		LocalStdThreshold:      a.LocalStdThreshold,
		OverlapThreshold:       a.OverlapThreshold,
		DominanceRatio:         a.DominanceRatio,
		AbsorbWeight:           a.AbsorbWeight,
		ReconciledWeight:       a.ReconciledWeight,
		ReconcileEdgeTolerance: a.ReconcileEdgeTolerance,
		DistinguishTolerance:   a.DistinguishTolerance,
		MaxExpansion:           a.MaxExpansion,
		Keep:                   a.Keep,
		KeepOrder:              regions.KeepOrder(a.KeepOrder),
	}
}
