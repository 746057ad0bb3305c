package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/miquelpairo/predictionsreport/internal/config"
	"github.com/miquelpairo/predictionsreport/internal/dataprocessing"
	apperrors "github.com/miquelpairo/predictionsreport/internal/errors"
	"github.com/miquelpairo/predictionsreport/internal/exporter"
	"github.com/miquelpairo/predictionsreport/internal/infrastructure"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// Report formats
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// CSV tables
const (
	TableStatistics  = "statistics"
	TableDifferences = "differences"
	TableSummary     = "summary"
)

// Comparison modes
const (
	ModePair     = "pair"
	ModeBaseline = "baseline"
)

// DatasetSummary describes a parsed export.
type DatasetSummary struct {
	ID             string                      `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string                      `json:"name" yaml:"name"`
	SensorSerial   string                      `json:"sensor_serial,omitempty" yaml:"sensor_serial,omitempty"`
	Measurements   int                         `json:"measurements" yaml:"measurements"`
	Products       []string                    `json:"products" yaml:"products"`
	Lamps          []domain.LampKey            `json:"lamps" yaml:"lamps"`
	LampsByProduct map[string][]domain.LampKey `json:"lamps_by_product" yaml:"lamps_by_product"`
	Parameters     []string                    `json:"parameters" yaml:"parameters"`
	Skipped        []SkippedSheet              `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	LoadedAt       *time.Time                  `json:"loaded_at,omitempty" yaml:"loaded_at,omitempty"`
	ExpiresAt      *time.Time                  `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// SkippedSheet is a worksheet left out because of its schema.
type SkippedSheet struct {
	Name   string `json:"name" yaml:"name"`
	Reason string `json:"reason" yaml:"reason"`
}

// ComparisonRequest selects the data to analyse and how lamps are compared.
//
// With LampA and LampB set, the two lamps are compared directly. Otherwise
// every selected lamp is compared against BaselineLamp, or, when
// BaselineLamp is nil, against the first selected lamp each product has.
type ComparisonRequest struct {
	Selection    domain.Selection    `json:"selection" yaml:"selection"`
	LampA        *domain.LampKey     `json:"lamp_a,omitempty" yaml:"lamp_a,omitempty"`
	LampB        *domain.LampKey     `json:"lamp_b,omitempty" yaml:"lamp_b,omitempty"`
	BaselineLamp *domain.LampKey     `json:"baseline_lamp,omitempty" yaml:"baseline_lamp,omitempty"`
	Baseline     domain.BaselineSide `json:"baseline,omitempty" yaml:"baseline,omitempty" validate:"omitempty,oneof=a b"`
}

// Validate checks that the request is internally consistent.
func (r ComparisonRequest) Validate() error {
	if (r.LampA == nil) != (r.LampB == nil) {
		return ErrIncompletePair
	}
	if r.LampA != nil && r.BaselineLamp != nil {
		return ErrConflictingLamps
	}
	if r.Baseline != "" && !r.Baseline.Valid() {
		return fmt.Errorf("%w: baseline must be %q or %q", ErrInvalidInput, domain.BaselineA, domain.BaselineB)
	}
	return nil
}

// ComparisonResult holds the difference records of one comparison.
//
// In baseline mode Baselines maps every compared product to its baseline
// lamp, and BaselineLamp is set when all products share one.
type ComparisonResult struct {
	Mode         string                    `json:"mode" yaml:"mode"`
	Baseline     domain.BaselineSide       `json:"baseline" yaml:"baseline"`
	BaselineLamp *domain.LampKey           `json:"baseline_lamp,omitempty" yaml:"baseline_lamp,omitempty"`
	Baselines    map[string]domain.LampKey `json:"baselines,omitempty" yaml:"baselines,omitempty"`
	Differences  []domain.DifferenceRecord `json:"differences" yaml:"differences"`
}

// StatisticsResult holds the aggregates of one selection.
type StatisticsResult struct {
	Statistics []domain.AggregateStat    `json:"statistics" yaml:"statistics"`
	Summaries  []domain.ParameterSummary `json:"summaries" yaml:"summaries"`
}

// AnalysisResult is a full analysis: statistics, summaries and comparison.
type AnalysisResult struct {
	Source       string           `json:"source,omitempty" yaml:"source,omitempty"`
	SensorSerial string           `json:"sensor_serial,omitempty" yaml:"sensor_serial,omitempty"`
	Selection    domain.Selection `json:"selection" yaml:"selection"`

	StatisticsResult `yaml:",inline"`

	Comparison ComparisonResult `json:"comparison" yaml:"comparison"`

	generatedAt time.Time
}

// ReportData converts the result into the input of the exporters.
func (r *AnalysisResult) ReportData() exporter.ReportData {
	return exporter.ReportData{
		Meta: exporter.ReportMeta{
			SourceName:   r.Source,
			SensorSerial: r.SensorSerial,
			GeneratedAt:  r.generatedAt,
			Selection:    r.Selection,
		},
		Stats:       r.Statistics,
		Differences: r.Comparison.Differences,
		Summaries:   r.Summaries,
	}
}

// RenderOptions choose the output of Render.
type RenderOptions struct {
	Format string `json:"format" validate:"omitempty,oneof=text csv xlsx"`

	// Table selects the CSV table. Ignored by the other formats.
	Table string `json:"table" validate:"omitempty,oneof=statistics differences summary"`
}

// ReportOutput is a rendered report ready to be written or served.
type ReportOutput struct {
	Format      string
	ContentType string
	FileName    string
	Body        []byte
}

// AnalysisService loads instrument exports and runs lamp comparisons on
// them. It is safe for concurrent use.
type AnalysisService struct {
	parser     *dataprocessing.Parser
	aggregator *dataprocessing.Aggregator
	baseline   domain.BaselineSide

	reports  *exporter.ReportGenerator
	csv      *exporter.CSVWriter
	workbook *exporter.WorkbookWriter

	store     DatasetStore
	tracer    trace.Tracer
	metrics   *infrastructure.AnalysisMetrics
	timestamp bool
	now       func() time.Time
	logger    *slog.Logger
}

// AnalysisServiceOption configures an AnalysisService.
type AnalysisServiceOption func(*AnalysisService)

// WithStore keeps loaded datasets in store.
func WithStore(store DatasetStore) AnalysisServiceOption {
	return func(s *AnalysisService) { s.store = store }
}

// WithTelemetry records spans with tracer and analysis metrics in metrics.
// Either may be nil.
func WithTelemetry(tracer trace.Tracer, metrics *infrastructure.AnalysisMetrics) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if tracer != nil {
			s.tracer = tracer
		}
		s.metrics = metrics
	}
}

// WithNow replaces time.Now for report timestamps.
func WithNow(now func() time.Time) AnalysisServiceOption {
	return func(s *AnalysisService) { s.now = now }
}

// NewAnalysisService creates the service from the analysis and report
// sections of the configuration.
func NewAnalysisService(analysis config.AnalysisConfig, report config.ReportConfig, logger *slog.Logger, opts ...AnalysisServiceOption) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}

	parserCfg := dataprocessing.DefaultParserConfig()
	if len(analysis.ExcludedSheets) > 0 {
		parserCfg.ExcludedSheets = analysis.ExcludedSheets
	}
	if len(analysis.RequiredColumns) > 0 {
		parserCfg.RequiredColumns = analysis.RequiredColumns
	}
	if len(analysis.FooterLabels) > 0 {
		parserCfg.FooterLabels = analysis.FooterLabels
	}
	if analysis.SkipInvalidSheets {
		parserCfg.SchemaPolicy = dataprocessing.SchemaPolicySkip
	}

	baseline := domain.BaselineSide(analysis.Baseline)
	if !baseline.Valid() {
		baseline = domain.BaselineB
	}

	reportCfg := exporter.ReportConfig{
		Title:    report.Title,
		Subtitle: report.Subtitle,
		Decimals: report.Decimals,
		Width:    report.Width,
	}

	s := &AnalysisService{
		parser:     dataprocessing.NewParser(logger, parserCfg),
		aggregator: dataprocessing.NewAggregator(logger),
		baseline:   baseline,
		reports:    exporter.NewReportGenerator(reportCfg),
		csv:        exporter.NewCSVWriter(logger, report.Decimals),
		workbook:   exporter.NewWorkbookWriter(logger, report.Decimals),
		tracer:     tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName),
		timestamp:  report.Timestamp,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "analysis_service")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("AnalysisService initialized",
		slog.Any("excluded_sheets", parserCfg.ExcludedSheets),
		slog.String("schema_policy", string(parserCfg.SchemaPolicy)),
		slog.String("baseline", string(baseline)),
		slog.Bool("store", s.store != nil))

	return s
}

// Parse reads an export without storing it.
func (s *AnalysisService) Parse(ctx context.Context, name string, r io.Reader) (result *dataprocessing.ParseResult, err error) {
	ctx, span := s.tracer.Start(ctx, "analysis.parse", trace.WithAttributes(attribute.String("dataset.name", name)))
	defer span.End()

	start := time.Now()
	defer func() { s.observe(ctx, "parse", start, err) }()

	result, err = s.parser.ParseReader(ctx, name, r)

	status := "success"
	if err != nil {
		status = string(apperrors.TypeOf(err))
		if status == "" {
			status = "failure"
		}
	}
	if s.metrics != nil {
		s.metrics.DatasetsLoaded.Add(ctx, 1, metric.WithAttributes(attribute.String("status", strings.ToLower(status))))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to parse export",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return nil, err
	}

	measurements := result.Dataset.Len()
	span.SetAttributes(
		attribute.Int("dataset.measurements", measurements),
		attribute.Int("dataset.skipped", len(result.Skipped)))
	if s.metrics != nil {
		s.metrics.DatasetMeasurements.Record(ctx, int64(measurements))
	}
	return result, nil
}

// Load parses an export and keeps it in the store.
func (s *AnalysisService) Load(ctx context.Context, name string, r io.Reader) (*DatasetSummary, error) {
	if s.store == nil {
		return nil, apperrors.NewStorageError("no dataset store configured", nil)
	}

	result, err := s.Parse(ctx, name, r)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Put(ctx, result)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to store dataset", err)
	}

	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("dataset_id", stored.ID),
		slog.String("name", name),
		slog.Int("measurements", stored.Dataset.Len()))

	summary := Summarize(stored)
	return &summary, nil
}

// Get describes a stored dataset.
func (s *AnalysisService) Get(ctx context.Context, id string) (*DatasetSummary, error) {
	stored, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := Summarize(stored)
	return &summary, nil
}

// List describes every stored dataset, oldest first.
func (s *AnalysisService) List(ctx context.Context) []DatasetSummary {
	if s.store == nil {
		return nil
	}
	entries := s.store.List(ctx)
	out := make([]DatasetSummary, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Summarize(entry))
	}
	return out
}

// Delete drops a stored dataset.
func (s *AnalysisService) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return notFound(id, ErrDatasetNotFound)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return notFound(id, err)
	}
	s.logger.InfoContext(ctx, "dataset deleted", slog.String("dataset_id", id))
	return nil
}

// Statistics aggregates a stored dataset.
func (s *AnalysisService) Statistics(ctx context.Context, id string, sel domain.Selection) (*StatisticsResult, error) {
	stored, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "analysis.aggregate", trace.WithAttributes(attribute.String("dataset.id", id)))
	defer span.End()

	start := time.Now()
	aggs := s.aggregator.Aggregate(stored.Dataset, sel)
	s.observe(ctx, "aggregate", start, nil)

	return &StatisticsResult{
		Statistics: aggs.Stats(),
		Summaries:  aggs.Summaries(),
	}, nil
}

// Compare runs a comparison on a stored dataset.
func (s *AnalysisService) Compare(ctx context.Context, id string, req ComparisonRequest) (*ComparisonResult, error) {
	stored, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.Analyze(ctx, stored.Dataset, req)
	if err != nil {
		return nil, err
	}
	return &result.Comparison, nil
}

// Report renders a full analysis of a stored dataset.
func (s *AnalysisService) Report(ctx context.Context, id string, req ComparisonRequest, opts RenderOptions) (*ReportOutput, error) {
	stored, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.Analyze(ctx, stored.Dataset, req)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, result, opts)
}

// Analyze aggregates ds under the request's selection and compares lamps.
func (s *AnalysisService) Analyze(ctx context.Context, ds *dataprocessing.Dataset, req ComparisonRequest) (result *AnalysisResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	ctx, span := s.tracer.Start(ctx, "analysis.compare", trace.WithAttributes(attribute.String("dataset.name", ds.Name())))
	defer span.End()

	start := time.Now()
	defer func() { s.observe(ctx, "compare", start, err) }()

	side := req.Baseline
	if side == "" {
		side = s.baseline
	}

	aggs := s.aggregator.Aggregate(ds, req.Selection)
	result = &AnalysisResult{
		Source:       ds.Name(),
		SensorSerial: ds.SensorSerial(),
		Selection:    req.Selection,
		StatisticsResult: StatisticsResult{
			Statistics: aggs.Stats(),
			Summaries:  aggs.Summaries(),
		},
		Comparison: ComparisonResult{Baseline: side},
	}
	if s.timestamp {
		result.generatedAt = s.now()
	}

	if req.LampA != nil {
		comparator := dataprocessing.NewComparator(s.aggregator, dataprocessing.WithBaseline(side))
		result.Comparison.Mode = ModePair
		result.Comparison.Differences = comparator.CompareAll(ds, req.Selection.Products, req.Selection.Parameters, *req.LampA, *req.LampB)
	} else {
		result.Comparison.Mode = ModeBaseline
		result.Comparison.Baseline = domain.BaselineB
		baselines := baselineLamps(aggs, req)
		if len(baselines) > 0 {
			result.Comparison.Baselines = baselines
			result.Comparison.Differences = s.compareAgainst(ds, aggs, req.Selection, baselines)
		}
		if req.BaselineLamp != nil {
			result.Comparison.BaselineLamp = req.BaselineLamp
		} else if common, ok := commonBaseline(baselines); ok {
			result.Comparison.BaselineLamp = &common
		}
	}

	span.SetAttributes(
		attribute.String("comparison.mode", result.Comparison.Mode),
		attribute.Int("comparison.differences", len(result.Comparison.Differences)),
		attribute.Int("analysis.stats", len(result.Statistics)))

	s.logger.DebugContext(ctx, "analysis complete",
		slog.String("mode", result.Comparison.Mode),
		slog.Int("stats", len(result.Statistics)),
		slog.Int("differences", len(result.Comparison.Differences)))

	return result, nil
}

// Render produces a report in the requested format.
func (s *AnalysisService) Render(ctx context.Context, result *AnalysisResult, opts RenderOptions) (out *ReportOutput, err error) {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Table == "" {
		opts.Table = TableStatistics
	}

	ctx, span := s.tracer.Start(ctx, "analysis.report", trace.WithAttributes(
		attribute.String("report.format", opts.Format)))
	defer span.End()

	start := time.Now()
	defer func() { s.observe(ctx, "report", start, err) }()

	data := result.ReportData()
	base := reportBaseName(result.Source)

	var buf bytes.Buffer
	switch opts.Format {
	case FormatText:
		buf.WriteString(s.reports.Render(data))
		out = &ReportOutput{ContentType: "text/plain; charset=utf-8", FileName: base + "_report.txt"}
	case FormatCSV:
		var table exporter.WriteOptions
		switch opts.Table {
		case TableStatistics:
			table = s.csv.StatisticsTable(data.Stats)
		case TableDifferences:
			table = s.csv.DifferencesTable(data.Differences)
		case TableSummary:
			table = s.csv.SummaryTable(data.Summaries)
		default:
			return nil, validationError(fmt.Errorf("%w: unknown table %q", ErrInvalidInput, opts.Table))
		}
		if err := s.csv.Write(&buf, table); err != nil {
			return nil, err
		}
		out = &ReportOutput{ContentType: "text/csv; charset=utf-8", FileName: base + "_" + opts.Table + ".csv"}
	case FormatXLSX:
		if err := s.workbook.Write(&buf, data); err != nil {
			return nil, err
		}
		out = &ReportOutput{
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			FileName:    base + "_report.xlsx",
		}
	default:
		return nil, validationError(fmt.Errorf("%w %q", ErrUnknownFormat, opts.Format))
	}

	out.Format = opts.Format
	out.Body = buf.Bytes()

	if s.metrics != nil {
		s.metrics.ReportsRendered.Add(ctx, 1, metric.WithAttributes(attribute.String("format", opts.Format)))
	}
	return out, nil
}

// Summarize describes a stored dataset.
func Summarize(stored StoredDataset) DatasetSummary {
	ds := stored.Dataset
	summary := DatasetSummary{
		ID:             stored.ID,
		Name:           ds.Name(),
		SensorSerial:   ds.SensorSerial(),
		Measurements:   ds.Len(),
		Products:       ds.Products(),
		Lamps:          ds.LampKeys(),
		LampsByProduct: make(map[string][]domain.LampKey),
		Parameters:     ds.Parameters(),
	}
	for _, product := range summary.Products {
		summary.LampsByProduct[product] = ds.LampKeysForProduct(product)
	}
	for _, skipped := range stored.Skipped {
		reason := ""
		if skipped.Reason != nil {
			reason = skipped.Reason.Error()
		}
		summary.Skipped = append(summary.Skipped, SkippedSheet{Name: skipped.Name, Reason: reason})
	}
	if !stored.LoadedAt.IsZero() {
		loaded := stored.LoadedAt
		summary.LoadedAt = &loaded
	}
	if !stored.ExpiresAt.IsZero() {
		expires := stored.ExpiresAt
		summary.ExpiresAt = &expires
	}
	return summary
}

func (s *AnalysisService) lookup(ctx context.Context, id string) (StoredDataset, error) {
	if s.store == nil {
		return StoredDataset{}, notFound(id, ErrDatasetNotFound)
	}
	stored, err := s.store.Get(ctx, id)
	if err != nil {
		return StoredDataset{}, notFound(id, err)
	}
	return stored, nil
}

// baselineLamps resolves the baseline of every product in aggs: the
// explicit baseline lamp, else the first selected lamp the product has
// statistics for, else the product's first lamp with statistics.
func baselineLamps(aggs *dataprocessing.Aggregates, req ComparisonRequest) map[string]domain.LampKey {
	baselines := make(map[string]domain.LampKey)
	for _, product := range aggs.Products() {
		if req.BaselineLamp != nil {
			baselines[product] = *req.BaselineLamp
			continue
		}

		var have []domain.LampKey
		for _, stat := range aggs.ForProduct(product) {
			if !slices.Contains(have, stat.Lamp) {
				have = append(have, stat.Lamp)
			}
		}
		candidates := req.Selection.LampKeys
		if len(candidates) == 0 {
			candidates = have
		}
		for _, lamp := range candidates {
			if slices.Contains(have, lamp) {
				baselines[product] = lamp
				break
			}
		}
	}
	return baselines
}

// commonBaseline returns the baseline shared by every product, if there is
// exactly one.
func commonBaseline(baselines map[string]domain.LampKey) (domain.LampKey, bool) {
	var (
		common domain.LampKey
		found  bool
	)
	for _, lamp := range baselines {
		if found && lamp != common {
			return domain.LampKey{}, false
		}
		common, found = lamp, true
	}
	return common, found
}

// compareAgainst compares the selected lamps with each product's baseline.
// Baselines the selection leaves out are aggregated as well.
func (s *AnalysisService) compareAgainst(ds *dataprocessing.Dataset, aggs *dataprocessing.Aggregates, sel domain.Selection, baselines map[string]domain.LampKey) []domain.DifferenceRecord {
	var extra []domain.LampKey
	for _, product := range aggs.Products() {
		baseline, ok := baselines[product]
		if ok && !sel.IncludesLamp(baseline) && !slices.Contains(extra, baseline) {
			extra = append(extra, baseline)
		}
	}
	if len(extra) > 0 {
		withBaselines := sel
		withBaselines.LampKeys = append(extra, sel.LampKeys...)
		aggs = s.aggregator.Aggregate(ds, withBaselines)
	}
	comparator := dataprocessing.NewComparator(s.aggregator)
	return comparator.CompareAgainstBaselines(aggs, baselines, sel.LampKeys)
}

func (s *AnalysisService) observe(ctx context.Context, operation string, start time.Time, err error) {
	infrastructure.RecordAnalysis(ctx, s.metrics, operation, time.Since(start), err)
}

func notFound(id string, cause error) error {
	if errors.Is(cause, ErrDatasetNotFound) || errors.Is(cause, ErrDatasetExpired) {
		return apperrors.NewAppError(apperrors.ErrTypeNotFound, fmt.Sprintf("dataset %q not found", id), cause).
			WithContext("dataset_id", id)
	}
	return apperrors.NewStorageError("failed to read dataset", cause)
}

func validationError(err error) error {
	return apperrors.NewAppError(apperrors.ErrTypeValidation, err.Error(), err)
}

// reportBaseName derives download names from the dataset source.
func reportBaseName(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "predictions"
	}
	return base
}
