package dataprocessing

import (
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// Comparator computes signed mean differences between two lamp
// configurations. The difference is always mean(A) - mean(B); a positive
// value means lamp A reads higher than lamp B.
type Comparator struct {
	aggregator *Aggregator
	baseline   domain.BaselineSide
}

// ComparatorOption configures a Comparator.
type ComparatorOption func(*Comparator)

// WithBaseline chooses which side's mean is the denominator of the percent
// difference. It never changes the sign of the difference. The default is B.
func WithBaseline(side domain.BaselineSide) ComparatorOption {
	return func(c *Comparator) {
		if side.Valid() {
			c.baseline = side
		}
	}
}

// NewComparator creates a comparator. A nil aggregator gets a default one.
func NewComparator(aggregator *Aggregator, opts ...ComparatorOption) *Comparator {
	if aggregator == nil {
		aggregator = NewAggregator(nil)
	}
	c := &Comparator{aggregator: aggregator, baseline: domain.BaselineB}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Baseline returns the configured baseline side.
func (c *Comparator) Baseline() domain.BaselineSide { return c.baseline }

// Compare computes the difference for one product and parameter. It returns
// false when either lamp has no non-missing reading for it.
func (c *Comparator) Compare(ds *Dataset, product, parameter string, a, b domain.LampKey) (domain.DifferenceRecord, bool) {
	aggs := c.aggregator.Aggregate(ds, domain.Selection{
		Products:   []string{product},
		LampKeys:   []domain.LampKey{a, b},
		Parameters: []string{parameter},
	})
	return c.CompareStats(aggs, product, parameter, a, b)
}

// CompareStats is Compare over precomputed aggregates.
func (c *Comparator) CompareStats(aggs *Aggregates, product, parameter string, a, b domain.LampKey) (domain.DifferenceRecord, bool) {
	return difference(aggs, product, parameter, a, b, c.baseline)
}

// CompareAll compares a against b for every product x parameter, in the
// order given. Empty products or parameters mean all of them, in first-seen
// order. Combinations where either side is undefined are left out.
func (c *Comparator) CompareAll(ds *Dataset, products, parameters []string, a, b domain.LampKey) []domain.DifferenceRecord {
	aggs := c.aggregator.Aggregate(ds, domain.Selection{
		Products:   products,
		LampKeys:   []domain.LampKey{a, b},
		Parameters: parameters,
	})
	return c.CompareAllStats(aggs, products, parameters, a, b)
}

// CompareAllStats is CompareAll over precomputed aggregates.
func (c *Comparator) CompareAllStats(aggs *Aggregates, products, parameters []string, a, b domain.LampKey) []domain.DifferenceRecord {
	if len(products) == 0 {
		products = aggs.Products()
	}
	if len(parameters) == 0 {
		parameters = aggs.Parameters()
	}

	var out []domain.DifferenceRecord
	for _, product := range products {
		for _, parameter := range parameters {
			if d, ok := difference(aggs, product, parameter, a, b, c.baseline); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

// CompareAgainstBaseline compares every lamp in lamps, other than baseline,
// against baseline for each product and parameter of aggs. The baseline is
// always side B, so a positive difference means the lamp reads higher than
// the baseline. An empty lamps uses aggs.Lamps().
func (c *Comparator) CompareAgainstBaseline(aggs *Aggregates, baseline domain.LampKey, lamps []domain.LampKey) []domain.DifferenceRecord {
	baselines := make(map[string]domain.LampKey)
	for _, product := range aggs.Products() {
		baselines[product] = baseline
	}
	return c.CompareAgainstBaselines(aggs, baselines, lamps)
}

// CompareAgainstBaselines is CompareAgainstBaseline with one baseline lamp
// per product. Products missing from baselines are left out.
func (c *Comparator) CompareAgainstBaselines(aggs *Aggregates, baselines map[string]domain.LampKey, lamps []domain.LampKey) []domain.DifferenceRecord {
	if len(lamps) == 0 {
		lamps = aggs.Lamps()
	}

	var out []domain.DifferenceRecord
	for _, product := range aggs.Products() {
		baseline, ok := baselines[product]
		if !ok {
			continue
		}
		for _, parameter := range aggs.Parameters() {
			for _, lamp := range lamps {
				if lamp == baseline {
					continue
				}
				if d, ok := difference(aggs, product, parameter, lamp, baseline, domain.BaselineB); ok {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

func difference(aggs *Aggregates, product, parameter string, a, b domain.LampKey, baseline domain.BaselineSide) (domain.DifferenceRecord, bool) {
	sa, okA := aggs.Get(product, a, parameter)
	sb, okB := aggs.Get(product, b, parameter)
	if !okA || !okB {
		return domain.DifferenceRecord{}, false
	}

	d := domain.DifferenceRecord{
		Product:    product,
		Parameter:  parameter,
		LampA:      a,
		LampB:      b,
		MeanA:      sa.Mean,
		MeanB:      sb.Mean,
		CountA:     sa.Count,
		CountB:     sb.Count,
		Difference: sa.Mean - sb.Mean,
		Baseline:   baseline,
		Percent:    domain.Missing(),
	}

	base := sb.Mean
	if baseline == domain.BaselineA {
		base = sa.Mean
	}
	if base != 0 {
		d.Percent = domain.Number(d.Difference / base * 100)
	}
	d.Assessment = domain.Assess(d.Percent)
	return d, true
}
