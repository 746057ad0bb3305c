package config

// Application constants
const (
	// Application Info
	AppName = "predictions-report"

	// EnvPrefix namespaces every environment variable, e.g. NIR_SERVER_PORT.
	EnvPrefix = "NIR"

	// Upload limits
	DefaultMaxUploadBytes = 32 << 20 // 32MB

	// Rate Limiting
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 40

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints
	APIBasePath     = "/api/v1"
	DatasetsPath    = APIBasePath + "/datasets"
	HealthEndpoint  = "/api/health"
	VersionEndpoint = "/api/version"
	MetricsEndpoint = "/metrics"
)

// DefaultConfigLocations are searched in order when no config file is given.
var DefaultConfigLocations = []string{
	"predictions.yaml",
	"configs/predictions.yaml",
}
