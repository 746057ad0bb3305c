package http

import (
	"context"
	"io"

	"github.com/miquelpairo/predictionsreport/internal/services"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// AnalysisService is the part of services.AnalysisService the dataset
// routes depend on.
type AnalysisService interface {
	Load(ctx context.Context, name string, r io.Reader) (*services.DatasetSummary, error)
	Get(ctx context.Context, id string) (*services.DatasetSummary, error)
	List(ctx context.Context) []services.DatasetSummary
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context, id string, sel domain.Selection) (*services.StatisticsResult, error)
	Compare(ctx context.Context, id string, req services.ComparisonRequest) (*services.ComparisonResult, error)
	Report(ctx context.Context, id string, req services.ComparisonRequest, opts services.RenderOptions) (*services.ReportOutput, error)
}
