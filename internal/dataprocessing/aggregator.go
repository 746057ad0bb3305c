package dataprocessing

import (
	"log/slog"
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// Aggregator computes per-group summary statistics. It holds no state
// between calls; every call recomputes from the dataset and the selection.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A nil logger uses slog.Default().
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		logger: logger.With(slog.String("component", "aggregator")),
	}
}

type statKey struct {
	product   string
	lamp      domain.LampKey
	parameter string
}

// Aggregates is the ordered result of one Aggregate call.
type Aggregates struct {
	stats      []domain.AggregateStat
	index      map[statKey]int
	products   []string
	lamps      []domain.LampKey
	parameters []string
}

// Aggregate computes statistics for every (product, lamp, parameter) in the
// selection. Entries are ordered by product, then lamp, then parameter, each
// in first-seen order unless the selection lists them explicitly.
// Combinations without a single non-missing reading are omitted.
func (a *Aggregator) Aggregate(ds *Dataset, sel domain.Selection) *Aggregates {
	out := &Aggregates{index: make(map[statKey]int)}
	seenLamp := make(map[domain.LampKey]bool)
	seenParam := make(map[string]bool)

	for _, product := range resolveProducts(ds, sel) {
		lamps := unique(sel.LampKeys)
		if len(lamps) == 0 {
			lamps = ds.LampKeysForProduct(product)
		}
		parameters := unique(sel.Parameters)
		if len(parameters) == 0 {
			parameters = ds.ParametersForProduct(product)
		}

		productHasStats := false
		for _, lamp := range lamps {
			var group []domain.Measurement
			for m := range ds.MeasurementsForGroup(product, lamp) {
				group = append(group, m)
			}
			if len(group) == 0 {
				continue
			}

			for _, parameter := range parameters {
				values := make([]float64, 0, len(group))
				for _, m := range group {
					if f, ok := m.Value(parameter).Float64(); ok {
						values = append(values, f)
					}
				}
				if len(values) == 0 {
					continue
				}

				stat := Summarize(values)
				stat.Product = product
				stat.Lamp = lamp
				stat.Parameter = parameter
				stat.GroupSize = len(group)

				out.index[statKey{product, lamp, parameter}] = len(out.stats)
				out.stats = append(out.stats, stat)
				productHasStats = true

				if !seenLamp[lamp] {
					seenLamp[lamp] = true
					out.lamps = append(out.lamps, lamp)
				}
				if !seenParam[parameter] {
					seenParam[parameter] = true
					out.parameters = append(out.parameters, parameter)
				}
			}
		}
		if productHasStats {
			out.products = append(out.products, product)
		}
	}

	a.logger.Debug("aggregation complete",
		slog.Int("products", len(out.products)),
		slog.Int("lamps", len(out.lamps)),
		slog.Int("stats", len(out.stats)))

	return out
}

// Summarize computes the statistics of a non-empty set of readings. The
// readings are sorted before any arithmetic so the result does not depend
// on their order. Identity fields of the returned stat are left empty.
func Summarize(values []float64) domain.AggregateStat {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	stat := domain.AggregateStat{
		Count:  len(sorted),
		StdDev: domain.Missing(),
		Values: slices.Clone(values),
	}
	if len(sorted) == 0 {
		return stat
	}

	// stats only fails on empty input, ruled out above.
	stat.Mean, _ = stats.Mean(sorted)
	stat.Min, _ = stats.Min(sorted)
	stat.Max, _ = stats.Max(sorted)
	stat.Median, _ = stats.Median(sorted)
	if len(sorted) >= 2 {
		sd, _ := stats.StandardDeviationSample(sorted)
		stat.StdDev = domain.Number(sd)
	}
	return stat
}

// unique drops repeated entries, keeping the first occurrence.
func unique[T comparable](in []T) []T {
	var out []T
	seen := make(map[T]bool, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func resolveProducts(ds *Dataset, sel domain.Selection) []string {
	if len(sel.Products) == 0 {
		return ds.Products()
	}
	var products []string
	for _, p := range sel.Products {
		if ds.HasProduct(p) && !slices.Contains(products, p) {
			products = append(products, p)
		}
	}
	return products
}

// Get returns the statistics for one combination.
func (ag *Aggregates) Get(product string, lamp domain.LampKey, parameter string) (domain.AggregateStat, bool) {
	i, ok := ag.index[statKey{product, lamp, parameter}]
	if !ok {
		return domain.AggregateStat{}, false
	}
	return ag.stats[i], true
}

// Stats returns every entry in aggregation order.
func (ag *Aggregates) Stats() []domain.AggregateStat { return slices.Clone(ag.stats) }

// ForProduct returns the entries of one product in aggregation order.
func (ag *Aggregates) ForProduct(product string) []domain.AggregateStat {
	var out []domain.AggregateStat
	for _, s := range ag.stats {
		if s.Product == product {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of entries.
func (ag *Aggregates) Len() int { return len(ag.stats) }

// Products returns the products with at least one entry.
func (ag *Aggregates) Products() []string { return slices.Clone(ag.products) }

// Lamps returns the lamps with at least one entry, in first-appearance order.
func (ag *Aggregates) Lamps() []domain.LampKey { return slices.Clone(ag.lamps) }

// Parameters returns the parameters with at least one entry, in
// first-appearance order.
func (ag *Aggregates) Parameters() []string { return slices.Clone(ag.parameters) }

// Summaries describes, per product and parameter, how the lamp means spread
// across lamps: their mean, population standard deviation and range.
func (ag *Aggregates) Summaries() []domain.ParameterSummary {
	var out []domain.ParameterSummary
	for _, product := range ag.products {
		for _, parameter := range ag.parameters {
			var means []float64
			for _, lamp := range ag.lamps {
				if s, ok := ag.Get(product, lamp, parameter); ok {
					means = append(means, s.Mean)
				}
			}
			if len(means) == 0 {
				continue
			}
			slices.Sort(means)

			mean, _ := stats.Mean(means)
			sd, _ := stats.StandardDeviationPopulation(means)
			out = append(out, domain.ParameterSummary{
				Product:   product,
				Parameter: parameter,
				Lamps:     len(means),
				Mean:      mean,
				StdDev:    sd,
				Range:     means[len(means)-1] - means[0],
			})
		}
	}
	return out
}
