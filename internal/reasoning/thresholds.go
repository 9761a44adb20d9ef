package reasoning

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds are the quality bars the meta layer applies.
type Thresholds struct {
	MinDataQuality float64 `json:"min_data_quality" yaml:"min_data_quality"`
	MinConfidence  float64 `json:"min_confidence" yaml:"min_confidence"`
	MaxWarnings    int     `json:"max_warnings" yaml:"max_warnings"`
	MinRobustness  float64 `json:"min_robustness" yaml:"min_robustness"`
}

// DefaultThresholds returns the standard escalation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDataQuality: 0.50,
		MinConfidence:  0.55,
		MaxWarnings:    5,
		MinRobustness:  0.30,
	}
}

// ThresholdProvider resolves thresholds per customer.
type ThresholdProvider interface {
	ThresholdsFor(customerID string) Thresholds
}

// StaticThresholds applies the same thresholds to every customer.
type StaticThresholds Thresholds

func (s StaticThresholds) ThresholdsFor(string) Thresholds {
	return Thresholds(s)
}

// ThresholdOverrides applies per-customer overrides on top of defaults.
type ThresholdOverrides struct {
	defaults  Thresholds
	customers map[string]Thresholds
}

func (o *ThresholdOverrides) ThresholdsFor(customerID string) Thresholds {
	if t, ok := o.customers[customerID]; ok {
		return t
	}
	return o.defaults
}

// partial lets a YAML document set only some fields.
type partial struct {
	MinDataQuality *float64 `yaml:"min_data_quality"`
	MinConfidence  *float64 `yaml:"min_confidence"`
	MaxWarnings    *int     `yaml:"max_warnings"`
	MinRobustness  *float64 `yaml:"min_robustness"`
}

func (p partial) apply(t Thresholds) Thresholds {
	if p.MinDataQuality != nil {
		t.MinDataQuality = *p.MinDataQuality
	}
	if p.MinConfidence != nil {
		t.MinConfidence = *p.MinConfidence
	}
	if p.MaxWarnings != nil {
		t.MaxWarnings = *p.MaxWarnings
	}
	if p.MinRobustness != nil {
		t.MinRobustness = *p.MinRobustness
	}
	return t
}

type thresholdsFile struct {
	Defaults  partial            `yaml:"defaults"`
	Customers map[string]partial `yaml:"customers"`
}

// ParseThresholds reads threshold overrides from YAML:
//
//	defaults:
//	  min_confidence: 0.6
//	customers:
//	  cust-42:
//	    max_warnings: 3
//
// Omitted fields keep DefaultThresholds values; customer entries inherit
// the file defaults.
func ParseThresholds(r io.Reader) (*ThresholdOverrides, error) {
	var doc thresholdsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding thresholds: %w", err)
	}

	defaults := doc.Defaults.apply(DefaultThresholds())
	if err := defaults.validate(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	out := &ThresholdOverrides{defaults: defaults, customers: make(map[string]Thresholds, len(doc.Customers))}
	for id, p := range doc.Customers {
		t := p.apply(defaults)
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("customer %s: %w", id, err)
		}
		out.customers[id] = t
	}
	return out, nil
}

// LoadThresholds reads threshold overrides from a YAML file.
func LoadThresholds(path string) (*ThresholdOverrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening thresholds file: %w", err)
	}
	defer f.Close()
	return ParseThresholds(f)
}

func (t Thresholds) validate() error {
	for name, v := range map[string]float64{
		"min_data_quality": t.MinDataQuality,
		"min_confidence":   t.MinConfidence,
		"min_robustness":   t.MinRobustness,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if t.MaxWarnings < 0 {
		return fmt.Errorf("max_warnings must not be negative, got %d", t.MaxWarnings)
	}
	return nil
}
