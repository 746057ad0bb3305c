// Package app wires the comparison API together: configuration, logging,
// OpenTelemetry, the dataset store, the services and the chi router.
//
// # Lifecycle
//
//	app, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return app.Run(ctx)
//
// Run serves until ctx is cancelled, then drains in-flight requests within
// Server.ShutdownTimeout and flushes telemetry. The HTTP server and the
// dataset expiry sweep run in one errgroup, so a failure of either stops
// both. Signal handling belongs to the caller; the serve command derives ctx
// with signal.NotifyContext.
//
// The app never calls os.Exit. Every initialization error is returned.
package app
