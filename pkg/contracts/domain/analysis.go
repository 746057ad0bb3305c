package domain

import (
	"math"
	"slices"
	"strings"
)

// Selection restricts an analysis to a subset of a dataset. It is passed
// explicitly to every aggregation and comparison; nothing is remembered
// between calls.
//
// An empty field selects every value present in the dataset, in first-seen
// order. A non-empty field is used in the order given.
type Selection struct {
	Products   []string  `json:"products,omitempty" yaml:"products,omitempty"`
	LampKeys   []LampKey `json:"lamp_keys,omitempty" yaml:"lamp_keys,omitempty"`
	Parameters []string  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// IncludesProduct reports whether product passes the product filter.
func (s Selection) IncludesProduct(product string) bool {
	return len(s.Products) == 0 || slices.Contains(s.Products, product)
}

// IncludesLamp reports whether key passes the lamp filter.
func (s Selection) IncludesLamp(key LampKey) bool {
	return len(s.LampKeys) == 0 || slices.Contains(s.LampKeys, key)
}

// IncludesParameter reports whether parameter passes the parameter filter.
func (s Selection) IncludesParameter(parameter string) bool {
	return len(s.Parameters) == 0 || slices.Contains(s.Parameters, parameter)
}

// AggregateStat summarises one parameter for one lamp configuration of one
// product, computed over the non-missing readings only.
type AggregateStat struct {
	Product   string  `json:"product" yaml:"product"`
	Lamp      LampKey `json:"lamp" yaml:"lamp"`
	Parameter string  `json:"parameter" yaml:"parameter"`

	// Count is the number of non-missing readings; always >= 1.
	Count int `json:"count" yaml:"count"`

	// GroupSize is the number of measurements in the group, readings or not.
	GroupSize int `json:"group_size" yaml:"group_size"`

	Mean float64 `json:"mean" yaml:"mean"`

	// StdDev is the sample standard deviation (n-1). Missing when Count < 2.
	StdDev Value `json:"std_dev" yaml:"std_dev"`

	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Median float64 `json:"median" yaml:"median"`

	// Values are the readings in document order, for distribution plots.
	Values []float64 `json:"values" yaml:"values"`
}

// BaselineSide names which lamp of a comparison is the reference.
type BaselineSide string

const (
	BaselineA BaselineSide = "a"
	BaselineB BaselineSide = "b"
)

// Valid reports whether the side is one of the known values.
func (b BaselineSide) Valid() bool {
	return b == BaselineA || b == BaselineB
}

// DifferenceRecord compares the mean reading of two lamp configurations for
// one product and parameter.
//
// Difference is always Mean(A) - Mean(B): a positive value means lamp A reads
// higher than lamp B. The baseline only chooses the denominator of Percent.
type DifferenceRecord struct {
	Product   string  `json:"product" yaml:"product"`
	Parameter string  `json:"parameter" yaml:"parameter"`
	LampA     LampKey `json:"lamp_a" yaml:"lamp_a"`
	LampB     LampKey `json:"lamp_b" yaml:"lamp_b"`

	MeanA  float64 `json:"mean_a" yaml:"mean_a"`
	MeanB  float64 `json:"mean_b" yaml:"mean_b"`
	CountA int     `json:"count_a" yaml:"count_a"`
	CountB int     `json:"count_b" yaml:"count_b"`

	Difference float64      `json:"difference" yaml:"difference"`
	Baseline   BaselineSide `json:"baseline" yaml:"baseline"`

	// Percent is Difference relative to the baseline mean, in percent.
	// Missing when the baseline mean is zero.
	Percent Value `json:"percent" yaml:"percent"`

	// Assessment rates the size of Percent.
	Assessment Assessment `json:"assessment" yaml:"assessment"`
}

// Direction is "↑" when lamp A reads higher, "↓" when lower and "=" when
// the means agree.
func (d DifferenceRecord) Direction() string {
	switch {
	case d.Difference > 0:
		return "↑"
	case d.Difference < 0:
		return "↓"
	default:
		return "="
	}
}

// Assessment rates how far two lamps disagree, from the absolute percent
// difference.
type Assessment string

const (
	AssessmentExcellent   Assessment = "excellent"   // below 2%
	AssessmentAcceptable  Assessment = "acceptable"  // below 5%
	AssessmentReview      Assessment = "review"      // below 10%
	AssessmentSignificant Assessment = "significant" // 10% and above
	AssessmentUnrated     Assessment = "unrated"     // no percent
)

// Assess rates a percent difference. A missing percent is unrated.
func Assess(percent Value) Assessment {
	pct, ok := percent.Float64()
	if !ok {
		return AssessmentUnrated
	}
	switch pct = math.Abs(pct); {
	case pct < 2:
		return AssessmentExcellent
	case pct < 5:
		return AssessmentAcceptable
	case pct < 10:
		return AssessmentReview
	default:
		return AssessmentSignificant
	}
}

// Label returns the capitalised form used in reports.
func (a Assessment) Label() string {
	if a == "" {
		return ""
	}
	return strings.ToUpper(string(a[:1])) + string(a[1:])
}

// BaselineLamp returns the lamp the record is measured against.
func (d DifferenceRecord) BaselineLamp() LampKey {
	if d.Baseline == BaselineA {
		return d.LampA
	}
	return d.LampB
}

// ParameterSummary describes the spread of lamp means for one product and
// parameter across every lamp that has a reading.
type ParameterSummary struct {
	Product   string `json:"product" yaml:"product"`
	Parameter string `json:"parameter" yaml:"parameter"`
	Lamps     int    `json:"lamps" yaml:"lamps"`

	// Mean is the mean of the lamp means.
	Mean float64 `json:"mean" yaml:"mean"`

	// StdDev is the population standard deviation of the lamp means.
	StdDev float64 `json:"std_dev" yaml:"std_dev"`

	// Range is the largest lamp mean minus the smallest.
	Range float64 `json:"range" yaml:"range"`
}
