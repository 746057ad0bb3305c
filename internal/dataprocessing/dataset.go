package dataprocessing

import (
	"iter"
	"slices"

	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// Dataset is the immutable, in-memory result of ingesting one export. It
// owns the measurements; every view below is an index projection over them
// and callers must not modify what they are handed.
type Dataset struct {
	name         string
	measurements []domain.Measurement
	products     []string
	lamps        []domain.LampKey
	parameters   []string
	sensorSerial string

	byProduct     map[string][]int
	byLamp        map[domain.LampKey][]int
	byGroup       map[groupKey][]int
	productLamps  map[string][]domain.LampKey
	productParams map[string][]string
}

type groupKey struct {
	product string
	lamp    domain.LampKey
}

// NewDataset indexes measurements. parameterOrder fixes the order of
// Parameters(); names found in the measurements but not listed there are
// appended in sorted order, and listed names no measurement carries are
// dropped.
func NewDataset(measurements []domain.Measurement, parameterOrder []string) *Dataset {
	ds := &Dataset{
		measurements:  slices.Clone(measurements),
		byProduct:     make(map[string][]int),
		byLamp:        make(map[domain.LampKey][]int),
		byGroup:       make(map[groupKey][]int),
		productLamps:  make(map[string][]domain.LampKey),
		productParams: make(map[string][]string),
	}

	ordered := make(map[string]bool, len(parameterOrder))
	for _, p := range parameterOrder {
		ordered[p] = true
	}
	present := make(map[string]bool)
	productHas := make(map[string]map[string]bool)

	for i, m := range ds.measurements {
		lamp := m.Lamp()
		g := groupKey{product: m.Product, lamp: lamp}

		if _, ok := ds.byProduct[m.Product]; !ok {
			ds.products = append(ds.products, m.Product)
			productHas[m.Product] = make(map[string]bool)
		}
		if _, ok := ds.byLamp[lamp]; !ok {
			ds.lamps = append(ds.lamps, lamp)
		}
		if _, ok := ds.byGroup[g]; !ok {
			ds.productLamps[m.Product] = append(ds.productLamps[m.Product], lamp)
		}
		ds.byProduct[m.Product] = append(ds.byProduct[m.Product], i)
		ds.byLamp[lamp] = append(ds.byLamp[lamp], i)
		ds.byGroup[g] = append(ds.byGroup[g], i)

		for name := range m.Parameters {
			productHas[m.Product][name] = true
			present[name] = true
		}

		if ds.sensorSerial == "" && m.Unit != "" {
			ds.sensorSerial = m.Unit
		}
	}

	for _, p := range parameterOrder {
		if present[p] && !slices.Contains(ds.parameters, p) {
			ds.parameters = append(ds.parameters, p)
		}
	}
	var extra []string
	for name := range present {
		if !ordered[name] {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	ds.parameters = append(ds.parameters, extra...)

	for _, product := range ds.products {
		for _, p := range ds.parameters {
			if productHas[product][p] {
				ds.productParams[product] = append(ds.productParams[product], p)
			}
		}
	}

	return ds
}

// Name is the source the dataset was read from, if known.
func (ds *Dataset) Name() string { return ds.name }

// Len returns the number of measurements.
func (ds *Dataset) Len() int { return len(ds.measurements) }

// SensorSerial returns the first non-empty Unit value in document order.
func (ds *Dataset) SensorSerial() string { return ds.sensorSerial }

// All yields every measurement in document order.
func (ds *Dataset) All() iter.Seq[domain.Measurement] {
	return func(yield func(domain.Measurement) bool) {
		for _, m := range ds.measurements {
			if !yield(m) {
				return
			}
		}
	}
}

// MeasurementsForProduct yields the measurements of one product in document
// order. An unknown product yields nothing.
func (ds *Dataset) MeasurementsForProduct(product string) iter.Seq[domain.Measurement] {
	return ds.yieldIndices(ds.byProduct[product])
}

// MeasurementsForLamp yields the measurements taken under one lamp
// configuration, across products, in document order.
func (ds *Dataset) MeasurementsForLamp(key domain.LampKey) iter.Seq[domain.Measurement] {
	return ds.yieldIndices(ds.byLamp[key])
}

// MeasurementsForGroup yields the measurements of one product under one lamp.
func (ds *Dataset) MeasurementsForGroup(product string, key domain.LampKey) iter.Seq[domain.Measurement] {
	return ds.yieldIndices(ds.byGroup[groupKey{product: product, lamp: key}])
}

// Select yields the measurements passing the product and lamp filters of
// sel, in document order. The parameter filter does not drop rows.
func (ds *Dataset) Select(sel domain.Selection) iter.Seq[domain.Measurement] {
	return func(yield func(domain.Measurement) bool) {
		for _, m := range ds.measurements {
			if !sel.IncludesProduct(m.Product) || !sel.IncludesLamp(m.Lamp()) {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Products returns the distinct product names in first-seen order.
func (ds *Dataset) Products() []string { return slices.Clone(ds.products) }

// LampKeys returns the distinct lamp configurations in first-seen order.
func (ds *Dataset) LampKeys() []domain.LampKey { return slices.Clone(ds.lamps) }

// LampKeysForProduct returns the lamps measured for product, first-seen order.
func (ds *Dataset) LampKeysForProduct(product string) []domain.LampKey {
	return slices.Clone(ds.productLamps[product])
}

// Parameters returns every parameter column in worksheet column order.
func (ds *Dataset) Parameters() []string { return slices.Clone(ds.parameters) }

// ParametersForProduct returns the parameter columns present for product.
func (ds *Dataset) ParametersForProduct(product string) []string {
	return slices.Clone(ds.productParams[product])
}

// HasProduct reports whether any measurement belongs to product.
func (ds *Dataset) HasProduct(product string) bool {
	_, ok := ds.byProduct[product]
	return ok
}

// HasLamp reports whether any measurement was taken under key.
func (ds *Dataset) HasLamp(key domain.LampKey) bool {
	_, ok := ds.byLamp[key]
	return ok
}

func (ds *Dataset) yieldIndices(indices []int) iter.Seq[domain.Measurement] {
	return func(yield func(domain.Measurement) bool) {
		for _, i := range indices {
			if !yield(ds.measurements[i]) {
				return
			}
		}
	}
}
