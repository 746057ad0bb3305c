// Package services implements the business logic layer between the CLI and
// HTTP surfaces and the analysis core.
//
// # Services
//
//	- AnalysisService: parses instrument exports, keeps them in a
//	  DatasetStore and runs aggregations, lamp comparisons and reports
//	- HealthService: liveness, readiness and version information
//
// # Dataset store
//
// MemoryStore keeps parsed datasets in memory under a random UUID. It is
// bounded: when full, the oldest dataset is evicted, and every dataset
// expires after the configured TTL. Run sweeps expired entries in the
// background.
//
// # Error Handling
//
// Services return *errors.AppError values that the HTTP layer maps to
// problem details:
//
//	- VALIDATION for inconsistent comparison requests or unknown formats
//	- NOT_FOUND for unknown or expired dataset IDs
//	- PARSING, EMPTY_DOCUMENT and SCHEMA straight from the parser
//
// The sentinels in errors.go stay reachable through errors.Is.
//
// # Telemetry
//
// Each operation runs in a span ("analysis.parse", "analysis.aggregate",
// "analysis.compare", "analysis.report") and records its duration in the
// analysis_duration_seconds histogram when metrics are configured.
package services
