// Package api serves the job HTTP API.
//
// Every route except /healthz and /metrics takes a bearer token. The
// workspace a request acts on comes from the route (path or workspace_id
// query parameter), then the X-Workspace-ID header, then the token's
// workspace_id claim, and the caller must be a member of it: reads need
// any role, enqueues and cancels need a writing role.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simd-personal/Inno-Supps/auth"
	"github.com/simd-personal/Inno-Supps/engine"
	"github.com/simd-personal/Inno-Supps/jobs"
	"github.com/simd-personal/Inno-Supps/ratelimit"
	"github.com/simd-personal/Inno-Supps/stream"
	"github.com/simd-personal/Inno-Supps/tool"
)

// Deps are the collaborators the API serves from. Engine, Jobs, Issuer and
// Authorizer are required.
type Deps struct {
	Engine     *engine.Engine
	Jobs       *jobs.Jobs
	Issuer     *auth.Issuer
	Authorizer *auth.Authorizer

	// Tools backs GET /tools. Nil serves an empty list.
	Tools *tool.Registry
	// Limiter throttles authenticated requests per workspace. Nil
	// disables throttling.
	Limiter *ratelimit.APILimiter
	// Hub backs GET /jobs/events. Nil disables the route.
	Hub *stream.Hub
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// API wires the HTTP handlers together.
type API struct {
	Deps
	mux *http.ServeMux
}

// New creates an API.
func New(deps Deps) (*API, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("api: engine is required")
	case deps.Jobs == nil:
		return nil, errors.New("api: jobs are required")
	case deps.Issuer == nil:
		return nil, errors.New("api: token issuer is required")
	case deps.Authorizer == nil:
		return nil, errors.New("api: authorizer is required")
	}
	if deps.Logger == nil {
		deps.Logger = deps.Engine.Logger()
	}
	if deps.Tools == nil {
		deps.Tools = tool.NewRegistry()
	}
	a := &API{Deps: deps, mux: http.NewServeMux()}
	a.RegisterRoutes(a.mux)
	return a, nil
}

// Handler returns the fully assembled http.Handler.
func (a *API) Handler() http.Handler {
	return a.requestID(a.logRequests(a.recoverPanics(a.mux)))
}

// RegisterRoutes registers every route on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	a.registerJobRoutes(mux)
	a.registerEnqueueRoutes(mux)
	a.registerStatsRoutes(mux)
	a.registerSessionRoutes(mux)
}

// registerJobRoutes registers job inspection and cancellation routes.
func (a *API) registerJobRoutes(mux *http.ServeMux) {
	mux.Handle("GET /jobs/status/{id}", a.private(a.getJobStatus))
	mux.Handle("GET /jobs/workspace/{workspace_id}", a.private(a.listWorkspaceJobs))
	mux.Handle("POST /jobs/cancel/{id}", a.private(a.cancelJob))
	mux.Handle("GET /jobs/queue-stats", a.private(a.queueStats))
	if a.Hub != nil {
		mux.Handle("GET /jobs/events", a.private(a.streamEvents))
	}
}

// registerEnqueueRoutes registers the routes that queue background work.
func (a *API) registerEnqueueRoutes(mux *http.ServeMux) {
	mux.Handle("POST /jobs/email/ingest", a.private(a.ingestEmail))
	mux.Handle("POST /jobs/email/send", a.private(a.sendEmail))
	mux.Handle("POST /jobs/research/niche", a.private(a.nicheResearch))
	mux.Handle("POST /jobs/growth-plan", a.private(a.growthPlan))
	mux.Handle("POST /jobs/calls/transcribe", a.private(a.transcribeCall))
	mux.Handle("POST /jobs/prospects/{id}/enrich", a.private(a.enrichProspect))
}

// registerStatsRoutes registers tooling, health and metrics routes.
func (a *API) registerStatsRoutes(mux *http.ServeMux) {
	mux.Handle("GET /tools", a.private(a.listTools))
	mux.Handle("GET /healthz", a.public(a.healthz))
	if a.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{}))
	}
}
