// Package http implements the HTTP handlers of the comparison API. Handlers
// only deal with transport: they decode requests, call the services and
// encode responses.
//
// # Routes
//
//	GET    /api/v1/datasets                    list loaded datasets
//	POST   /api/v1/datasets                    upload an export (raw body or multipart "file")
//	GET    /api/v1/datasets/{id}               describe a dataset
//	DELETE /api/v1/datasets/{id}               drop a dataset
//	POST   /api/v1/datasets/{id}/statistics    aggregate a selection
//	POST   /api/v1/datasets/{id}/comparisons   compare lamps
//	POST   /api/v1/datasets/{id}/report        render a text, CSV or XLSX report
//	GET    /api/health                         readiness
//	GET    /api/health/live                    liveness
//	GET    /api/version                        build information
//
// # Error Handling
//
// Every failure is answered with RFC 7807 Problem Details through
// errors.ErrorHandler. Ingest failures are 422s carrying the offending
// worksheet and column; unknown datasets are 404s:
//
//	{
//	    "type": "/errors/document/schema",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "worksheet \"Wheat\" is missing required column(s) Note",
//	    "instance": "/api/v1/datasets",
//	    "error_code": "SCHEMA_MISMATCH",
//	    "details": {"worksheet": "Wheat", "columns": ["Note"]}
//	}
package http
