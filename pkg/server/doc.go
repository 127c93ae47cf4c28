// Package server exposes health probes, Prometheus metrics and stored job
// reports over HTTP.
//
// # Usage Example
//
//	handler := server.NewHandler(server.Config{
//		Health:   health,
//		Store:    reports,
//		Run:      runner.Run,
//		Metrics:  metrics,
//		Registry: registry,
//		Log:      log,
//	})
//	srv := &http.Server{Addr: ":9090", Handler: handler}
//
// # Related Packages
//
//   - pkg/store: Report backends
//   - pkg/httputil: Response helpers and middleware
//   - pkg/observability: Health checks and metrics
package server
