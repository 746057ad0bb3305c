package exporter

import (
	"strconv"

	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// notAvailable is printed in place of an undefined statistic.
const notAvailable = "n/a"

// formatFloat formats a value with a fixed number of decimal places.
func formatFloat(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// formatSigned formats a value with an explicit sign, so differences read
// as +1.000 or -1.000.
func formatSigned(f float64, decimals int) string {
	if f == 0 {
		f = 0 // drop the sign of negative zero
	}
	s := formatFloat(f, decimals)
	if f >= 0 && s[0] != '-' {
		return "+" + s
	}
	return s
}

// formatValue formats an optional reading, using missing for Missing.
func formatValue(v domain.Value, decimals int, missing string) string {
	f, ok := v.Float64()
	if !ok {
		return missing
	}
	return formatFloat(f, decimals)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// assessment is the record's rating, derived from its percent when unset.
func assessment(d domain.DifferenceRecord) domain.Assessment {
	if d.Assessment != "" {
		return d.Assessment
	}
	return domain.Assess(d.Percent)
}

// lampLabel is the printable name of a lamp configuration.
func lampLabel(k domain.LampKey) string {
	if label := k.Label(); label != "" {
		return label
	}
	return "(blank)"
}
