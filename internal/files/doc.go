// Package files finds instrument exports on disk.
//
// Analysers usually save every run into the same folder, so the CLI accepts
// a directory wherever it takes an export and picks the newest export in it:
//
//	discovery := files.NewDiscovery("")
//	path, err := discovery.ResolveExport("exports/")
package files
