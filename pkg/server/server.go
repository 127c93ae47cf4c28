package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/eventlens/pkg/httputil"
	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
	"github.com/platinummonkey/eventlens/pkg/store"
)

const (
	apiPrefix = "/api/v1"

	defaultListLimit = 20
	maxListLimit     = 1000
)

// RunFunc runs the served job once. cached reports whether inputs were
// unchanged since the previous run.
type RunFunc func(ctx context.Context) (report *job.Report, cached bool, err error)

// Config wires the server's dependencies. Only Health is required.
type Config struct {
	Health *observability.HealthChecker

	// Store backs the report routes; without it they answer 503
	Store store.Store

	// Run enables POST /api/v1/runs
	Run RunFunc

	// Metrics instruments every request
	Metrics *observability.Metrics

	// Registry enables GET /metrics
	Registry *prometheus.Registry

	Log logrus.FieldLogger
}

// RunResponse is the body of POST /api/v1/runs
type RunResponse struct {
	Cached bool        `json:"cached"`
	Report *job.Report `json:"report"`
}

// ListResponse is the body of GET /api/v1/reports/{job}
type ListResponse struct {
	Job     string        `json:"job"`
	Reports []*job.Report `json:"reports"`
}

type handlers struct {
	store store.Store
	run   RunFunc
	log   logrus.FieldLogger
}

// NewRouter builds the routes:
//
//	GET  /health/live
//	GET  /health/ready
//	GET  /metrics
//	GET  /api/v1/reports/{job}/latest
//	GET  /api/v1/reports/{job}?limit=N
//	POST /api/v1/runs
func NewRouter(cfg Config) *mux.Router {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &handlers{store: cfg.Store, run: cfg.Run, log: log}

	router := mux.NewRouter()
	router.Use(httputil.RequestIDMiddleware)
	router.Use(httputil.RecoveryMiddleware(log))
	router.Use(httputil.LoggingMiddleware(log))
	if cfg.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))
	}

	cfg.Health.RegisterHealthEndpoints(router)
	if cfg.Registry != nil {
		observability.RegisterMetricsEndpoint(router, cfg.Registry)
	}

	// Full paths on the root router so a wrong method gets 405, not 404
	router.HandleFunc(apiPrefix+"/reports/{job}/latest", h.latestReport).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/reports/{job}", h.listReports).Methods(http.MethodGet)
	if cfg.Run != nil {
		router.HandleFunc(apiPrefix+"/runs", h.triggerRun).Methods(http.MethodPost)
	}
	return router
}

// NewHandler wraps the router with OpenTelemetry HTTP instrumentation
func NewHandler(cfg Config) http.Handler {
	return otelhttp.NewHandler(NewRouter(cfg), "eventlens.http")
}

func (h *handlers) latestReport(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "job")
	if !ok {
		return
	}
	if h.store == nil {
		httputil.WriteServiceUnavailable(w, "no report store configured")
		return
	}

	report, err := h.store.Latest(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, fmt.Sprintf("no report for job %q", name))
		return
	} else if err != nil {
		h.log.WithError(err).WithField("job", name).Error("Failed to read latest report")
		httputil.WriteInternalError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, report)
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "job")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryIntInRange(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if h.store == nil {
		httputil.WriteServiceUnavailable(w, "no report store configured")
		return
	}

	reports, err := h.store.List(r.Context(), name, limit)
	if err != nil {
		h.log.WithError(err).WithField("job", name).Error("Failed to list reports")
		httputil.WriteInternalError(w, err)
		return
	}
	if reports == nil {
		reports = []*job.Report{}
	}
	_ = httputil.WriteSuccess(w, ListResponse{Job: name, Reports: reports})
}

func (h *handlers) triggerRun(w http.ResponseWriter, r *http.Request) {
	report, cached, err := h.run(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, RunResponse{Cached: cached, Report: report})
}
