package exporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// SignConvention is printed in every differences section.
const SignConvention = "Difference = mean(A) - mean(B). A positive value means lamp A reads higher than lamp B."

// AssessmentScale explains the rating printed next to each difference.
const AssessmentScale = "Assessment of |percent|: Excellent < 2%, Acceptable < 5%, Review < 10%, Significant otherwise."

// ReportConfig controls the layout of the text report.
type ReportConfig struct {
	Title    string `yaml:"title" validate:"required"`
	Subtitle string `yaml:"subtitle"`

	// Decimals is the number of decimal places of every statistic.
	Decimals int `yaml:"decimals" validate:"gte=0,lte=10"`

	// Width is the length of the section rules.
	Width int `yaml:"width" validate:"gte=40,lte=200"`
}

// DefaultReportConfig returns the standard report layout.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Title:    "NIR LAMP COMPARISON REPORT",
		Subtitle: "Prediction analysis",
		Decimals: 3,
		Width:    100,
	}
}

// ReportMeta describes where the data came from.
type ReportMeta struct {
	SourceName   string
	SensorSerial string

	// GeneratedAt is printed when set. Leaving it zero keeps the report a
	// function of the data alone.
	GeneratedAt time.Time

	// Selection is what the caller asked for. Empty fields are filled from
	// the statistics.
	Selection domain.Selection
}

// ReportData is everything a report is rendered from.
type ReportData struct {
	Meta        ReportMeta
	Stats       []domain.AggregateStat
	Differences []domain.DifferenceRecord
	Summaries   []domain.ParameterSummary
}

// ReportGenerator renders the plain-text comparison report.
type ReportGenerator struct {
	cfg ReportConfig
}

// NewReportGenerator creates a generator. Out-of-range settings fall back
// to the defaults.
func NewReportGenerator(cfg ReportConfig) *ReportGenerator {
	def := DefaultReportConfig()
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	if cfg.Decimals < 0 || cfg.Decimals > 10 {
		cfg.Decimals = def.Decimals
	}
	if cfg.Width < 40 {
		cfg.Width = def.Width
	}
	return &ReportGenerator{cfg: cfg}
}

// Config returns the effective configuration.
func (g *ReportGenerator) Config() ReportConfig { return g.cfg }

// Render produces the report. The output depends only on data and the
// generator's configuration: the same inputs always give the same bytes.
func (g *ReportGenerator) Render(data ReportData) string {
	r := &reportWriter{cfg: g.cfg}

	r.rule('=')
	r.line(g.cfg.Title)
	if g.cfg.Subtitle != "" {
		r.line(g.cfg.Subtitle)
	}
	r.rule('=')
	r.blank()

	g.writeHeader(r, data)

	products := productOrder(data)
	width := paramWidth(data)
	for _, product := range products {
		r.rule('-')
		r.line("PRODUCT: " + strings.ToUpper(product))
		r.rule('-')
		r.blank()
		g.writeStatistics(r, product, data.Stats, width)
		g.writeDifferences(r, product, data.Differences, width)
	}

	if len(products) == 0 {
		r.line("No statistics for the current selection.")
		r.blank()
	}

	g.writeSummary(r, data.Summaries)

	r.rule('=')
	r.line("END OF REPORT")
	r.rule('=')
	return r.String()
}

func (g *ReportGenerator) writeHeader(r *reportWriter, data ReportData) {
	meta := data.Meta
	if meta.SourceName != "" {
		r.line("Source file: " + meta.SourceName)
	}
	if meta.SensorSerial != "" {
		r.line("NIR sensor:  " + meta.SensorSerial)
	}
	if !meta.GeneratedAt.IsZero() {
		r.line("Generated:   " + meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if meta.SourceName != "" || meta.SensorSerial != "" || !meta.GeneratedAt.IsZero() {
		r.blank()
	}

	products := meta.Selection.Products
	if len(products) == 0 {
		products = productOrder(data)
	}
	lamps := meta.Selection.LampKeys
	if len(lamps) == 0 {
		lamps = lampOrder(data.Stats, "")
	}
	parameters := meta.Selection.Parameters
	if len(parameters) == 0 {
		parameters = parameterOrder(data.Stats)
	}

	r.line("SELECTION:")
	r.line("  Products:   " + joinOrNone(products))
	r.line("  Parameters: " + joinOrNone(parameters))
	r.line("  Lamps:")
	if len(lamps) == 0 {
		r.line("    (none)")
	}
	for _, lamp := range lamps {
		r.line("    - " + lampLabel(lamp))
	}
	r.blank()
}

func (g *ReportGenerator) writeStatistics(r *reportWriter, product string, stats []domain.AggregateStat, width int) {
	d := g.cfg.Decimals
	r.line("STATISTICS (mean ± sd  (min, max, n)):")
	r.blank()

	for _, lamp := range lampOrder(stats, product) {
		var rows []domain.AggregateStat
		for _, s := range stats {
			if s.Product == product && s.Lamp == lamp {
				rows = append(rows, s)
			}
		}

		r.line(fmt.Sprintf("  Lamp: %s (N=%d)", lampLabel(lamp), rows[0].GroupSize))
		r.line("  " + strings.Repeat("-", g.cfg.Width-2))
		for _, s := range rows {
			r.line(fmt.Sprintf("    %-*s %*s ± %-*s (min: %s, max: %s, n=%d)",
				width, s.Parameter,
				d+8, formatFloat(s.Mean, d),
				d+5, formatValue(s.StdDev, d, notAvailable),
				formatFloat(s.Min, d), formatFloat(s.Max, d), s.Count))
		}
		r.blank()
	}
}

type lampPair struct {
	a, b domain.LampKey
}

func (g *ReportGenerator) writeDifferences(r *reportWriter, product string, diffs []domain.DifferenceRecord, width int) {
	var pairs []lampPair
	byPair := make(map[lampPair][]domain.DifferenceRecord)
	for _, rec := range diffs {
		if rec.Product != product {
			continue
		}
		p := lampPair{rec.LampA, rec.LampB}
		if _, ok := byPair[p]; !ok {
			pairs = append(pairs, p)
		}
		byPair[p] = append(byPair[p], rec)
	}
	if len(pairs) == 0 {
		return
	}

	d := g.cfg.Decimals
	r.line("DIFFERENCES:")
	r.line("  " + SignConvention)
	r.line("  Percent is relative to the baseline lamp mean.")
	r.line("  " + AssessmentScale)
	r.blank()

	for _, p := range pairs {
		recs := byPair[p]
		r.line(fmt.Sprintf("    A = %s vs B = %s (baseline: %s)",
			lampLabel(p.a), lampLabel(p.b), lampLabel(recs[0].BaselineLamp())))
		for _, rec := range recs {
			percent := notAvailable
			if pct, ok := rec.Percent.Float64(); ok {
				percent = formatSigned(pct, 2) + "%"
			}
			r.line(fmt.Sprintf("      %-*s Δ = %s  (%s)  %s %s  [%s vs %s]",
				width, rec.Parameter,
				formatSigned(rec.Difference, d),
				percent,
				rec.Direction(), assessment(rec).Label(),
				formatFloat(rec.MeanA, d), formatFloat(rec.MeanB, d)))
		}
		r.blank()
	}
}

func (g *ReportGenerator) writeSummary(r *reportWriter, summaries []domain.ParameterSummary) {
	if len(summaries) == 0 {
		return
	}
	d := g.cfg.Decimals

	r.rule('=')
	r.line("GENERAL SUMMARY")
	r.rule('=')
	r.blank()

	current := ""
	for i, s := range summaries {
		if i == 0 || s.Product != current {
			if i > 0 {
				r.blank()
			}
			current = s.Product
			r.line("Product: " + s.Product)
		}
		r.line(fmt.Sprintf("  %s:", s.Parameter))
		r.line(fmt.Sprintf("    Mean across lamps: %s ± %s (%d lamps)",
			formatFloat(s.Mean, d), formatFloat(s.StdDev, d), s.Lamps))
		r.line("    Range: " + formatFloat(s.Range, d))
	}
	r.blank()
}

// reportWriter accumulates report lines.
type reportWriter struct {
	cfg ReportConfig
	b   strings.Builder
}

func (r *reportWriter) line(s string) {
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

func (r *reportWriter) blank() { r.b.WriteByte('\n') }

func (r *reportWriter) rule(c byte) {
	r.line(strings.Repeat(string(c), r.cfg.Width))
}

func (r *reportWriter) String() string { return r.b.String() }

func productOrder(data ReportData) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, s := range data.Stats {
		add(s.Product)
	}
	for _, d := range data.Differences {
		add(d.Product)
	}
	return out
}

// lampOrder lists lamps in first-appearance order, for one product or for
// all of them when product is empty.
func lampOrder(stats []domain.AggregateStat, product string) []domain.LampKey {
	seen := make(map[domain.LampKey]bool)
	var out []domain.LampKey
	for _, s := range stats {
		if product != "" && s.Product != product {
			continue
		}
		if !seen[s.Lamp] {
			seen[s.Lamp] = true
			out = append(out, s.Lamp)
		}
	}
	return out
}

func parameterOrder(stats []domain.AggregateStat) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range stats {
		if !seen[s.Parameter] {
			seen[s.Parameter] = true
			out = append(out, s.Parameter)
		}
	}
	return out
}

// paramWidth is the column width of parameter names, at least 10.
func paramWidth(data ReportData) int {
	w := 10
	for _, s := range data.Stats {
		w = max(w, len([]rune(s.Parameter)))
	}
	for _, d := range data.Differences {
		w = max(w, len([]rune(d.Parameter)))
	}
	return w
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
