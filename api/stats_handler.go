package api

import (
	"context"
	"net/http"
	"time"

	"github.com/simd-personal/Inno-Supps/auth"
	"github.com/simd-personal/Inno-Supps/broker"
	"github.com/simd-personal/Inno-Supps/tool"
)

// QueueStatsResponse is the body of GET /jobs/queue-stats.
type QueueStatsResponse struct {
	QueueStats map[string]broker.Counts `json:"queue_stats"`
}

// ToolsResponse is the body of GET /tools.
type ToolsResponse struct {
	Tools []tool.Schema `json:"tools"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const healthTimeout = 3 * time.Second

func (a *API) queueStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := a.Engine.QueueStats(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, QueueStatsResponse{QueueStats: stats})
	return nil
}

func (a *API) listTools(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, ToolsResponse{Tools: a.Tools.Schemas()})
	return nil
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := a.Engine.Dispatcher().Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return nil
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	return nil
}

// streamEvents upgrades to a websocket carrying the workspace's job
// events.
func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) error {
	ws := workspace(r, r.URL.Query().Get("workspace_id"))
	r, err := a.authorize(r, ws, auth.Read)
	if err != nil {
		return err
	}
	a.Hub.ServeWS(w, r, ws)
	return nil
}
