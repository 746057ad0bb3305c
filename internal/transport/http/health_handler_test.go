package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquelpairo/predictionsreport/internal/config"
	"github.com/miquelpairo/predictionsreport/internal/services"
	"github.com/miquelpairo/predictionsreport/internal/shared/testutil"
	"github.com/miquelpairo/predictionsreport/pkg/contracts"
)

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	store := services.NewMemoryStore(config.Default().Store, logger)

	tests := []struct {
		name       string
		store      services.DatasetStore
		call       func(h *HealthHandler) http.HandlerFunc
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name:       "health ok",
			store:      store,
			call:       func(h *HealthHandler) http.HandlerFunc { return h.HealthCheck },
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "ok", body["status"])
				assert.Contains(t, body["services"], "dataset_store")
			},
		},
		{
			name:       "health degraded without store",
			call:       func(h *HealthHandler) http.HandlerFunc { return h.HealthCheck },
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "degraded", body["status"])
			},
		},
		{
			name:       "liveness",
			call:       func(h *HealthHandler) http.HandlerFunc { return h.LivenessCheck },
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "alive", body["status"])
			},
		},
		{
			name:       "version",
			store:      store,
			call:       func(h *HealthHandler) http.HandlerFunc { return h.Version },
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, contracts.Version, body["version"])
				assert.Equal(t, contracts.APIVersion, body["api_version"])
				assert.Contains(t, body, "uptime_seconds")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(services.NewHealthService(tt.store, logger), logger)

			rec := httptest.NewRecorder()
			tt.call(h)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			tt.check(t, body)
		})
	}
}
