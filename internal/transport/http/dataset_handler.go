package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/miquelpairo/predictionsreport/internal/config"
	apierrors "github.com/miquelpairo/predictionsreport/internal/errors"
	"github.com/miquelpairo/predictionsreport/internal/middleware"
	"github.com/miquelpairo/predictionsreport/internal/security"
	"github.com/miquelpairo/predictionsreport/internal/services"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// uploadField is the multipart field holding the export.
const uploadField = "file"

// DatasetHandler serves the dataset resource: uploads, statistics,
// comparisons and reports.
type DatasetHandler struct {
	service        AnalysisService
	validator      *middleware.Validator
	query          *middleware.QueryParamValidator
	names          *security.InputValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewDatasetHandler creates a dataset handler. Uploads larger than
// maxUploadBytes are rejected with 413.
func NewDatasetHandler(service AnalysisService, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = config.DefaultMaxUploadBytes
	}

	return &DatasetHandler{
		service:        service,
		validator:      middleware.NewValidator(logger),
		query:          middleware.NewQueryParamValidator(errorHandler),
		names:          security.NewInputValidator(logger, 0),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "dataset_handler")),
	}
}

// Routes returns the dataset routes, to be mounted at config.DatasetsPath.
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Upload)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))
			r.Post("/statistics", h.Statistics)
			r.Post("/comparisons", h.Compare)
			r.Post("/report", h.Report)
		})
	})

	return r
}

// Upload handles POST /api/v1/datasets. The export is either the raw
// request body, named by the "name" query parameter, or the "file" field of
// a multipart form.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	name, body, err := uploadedDocument(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer body.Close()

	check := h.names.ValidateFileName(r.Context(), name)
	if !check.IsValid {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", strings.Join(check.Errors, "; ")))
		return
	}
	name = check.SanitizedValue

	summary, err := h.service.Load(r.Context(), name, body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset uploaded",
		slog.String("dataset_id", summary.ID),
		slog.String("name", name),
		slog.String("request_id", middleware.GetRequestID(r.Context())))

	w.Header().Set("Location", config.DatasetsPath+"/"+summary.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, summary)
}

// List handles GET /api/v1/datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets := h.service.List(r.Context())
	if datasets == nil {
		datasets = []services.DatasetSummary{}
	}
	render.JSON(w, r, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// Get handles GET /api/v1/datasets/{id}
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// Delete handles DELETE /api/v1/datasets/{id}
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Statistics handles POST /api/v1/datasets/{id}/statistics. The body is a
// selection; an empty body selects everything.
func (h *DatasetHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	var sel domain.Selection
	if !h.decode(w, r, &sel) {
		return
	}

	result, err := h.service.Statistics(r.Context(), chi.URLParam(r, "id"), sel)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Compare handles POST /api/v1/datasets/{id}/comparisons
func (h *DatasetHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req services.ComparisonRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Compare(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Report handles POST /api/v1/datasets/{id}/report?format=&table=. The
// body is the comparison request and the response is the rendered report
// as an attachment.
func (h *DatasetHandler) Report(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format",
		[]string{services.FormatText, services.FormatCSV, services.FormatXLSX}, services.FormatText)
	if !ok {
		return
	}
	table, ok := h.query.ValidateEnum(w, r, "table",
		[]string{services.TableStatistics, services.TableDifferences, services.TableSummary}, services.TableStatistics)
	if !ok {
		return
	}

	var req services.ComparisonRequest
	if !h.decode(w, r, &req) {
		return
	}

	opts := services.RenderOptions{Format: format, Table: table}
	if err := h.validator.ValidateStruct(opts); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	out, err := h.service.Report(r.Context(), chi.URLParam(r, "id"), req, opts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Body); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write report",
			slog.String("error", err.Error()))
	}
}

// decode reads an optional JSON body into v and validates it. It writes
// the problem response and returns false on failure.
func (h *DatasetHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, err)
			return false
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}

	if err := h.validator.ValidateStruct(v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

func uploadedDocument(r *http.Request) (string, io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.URL.Query().Get("name"), r.Body, nil
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, err
		}
		return "", nil, apierrors.ErrValidation(uploadField,
			fmt.Sprintf("multipart upload needs a %q field: %v", uploadField, err))
	}
	return header.Filename, file, nil
}
