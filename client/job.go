package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/simd-personal/Inno-Supps/api"
	"github.com/simd-personal/Inno-Supps/broker"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/jobs"
	"github.com/simd-personal/Inno-Supps/tool"
)

// Status returns a job's status.
func (c *Client) Status(ctx context.Context, jobID string) (*job.Status, error) {
	var st job.Status
	if err := c.do(ctx, http.MethodGet, "/jobs/status/"+url.PathEscape(jobID), nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ListJobs returns the workspace's jobs newest first. A zero limit uses
// the server default.
func (c *Client) ListJobs(ctx context.Context, workspaceID string, limit int) ([]*job.Status, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var resp api.ListJobsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/workspace/"+url.PathEscape(workspaceID), q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Cancel cancels a job. Cancelling a finished job fails with a
// validation error.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/jobs/cancel/"+url.PathEscape(jobID), nil, nil, nil)
}

// QueueStats returns per-queue counts.
func (c *Client) QueueStats(ctx context.Context) (map[string]broker.Counts, error) {
	var resp api.QueueStatsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/queue-stats", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.QueueStats, nil
}

// Tools lists the agent tool schemas.
func (c *Client) Tools(ctx context.Context) ([]tool.Schema, error) {
	var resp api.ToolsResponse
	if err := c.do(ctx, http.MethodGet, "/tools", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// ──────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────

// EnqueueResult is the server's answer to an enqueue.
type EnqueueResult = api.EnqueueResponse

func (c *Client) enqueue(ctx context.Context, path string, body any) (*EnqueueResult, error) {
	var res EnqueueResult
	if err := c.do(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IngestEmail queues an inbound email for classification.
func (c *Client) IngestEmail(ctx context.Context, email jobs.EmailData) (*EnqueueResult, error) {
	return c.enqueue(ctx, "/jobs/email/ingest", email)
}

// SendEmail queues an outbound email.
func (c *Client) SendEmail(ctx context.Context, req jobs.SendEmailArgs) (*EnqueueResult, error) {
	return c.enqueue(ctx, "/jobs/email/send", req)
}

// NicheResearch queues a niche research brief.
func (c *Client) NicheResearch(ctx context.Context, in jobs.NicheInputs) (*EnqueueResult, error) {
	return c.enqueue(ctx, "/jobs/research/niche", in)
}

// GrowthPlan queues a growth plan.
func (c *Client) GrowthPlan(ctx context.Context, inputs map[string]any) (*EnqueueResult, error) {
	return c.enqueue(ctx, "/jobs/growth-plan", inputs)
}

// TranscribeCall queues a recording for transcription and analysis.
func (c *Client) TranscribeCall(ctx context.Context, req jobs.TranscribeArgs) (*EnqueueResult, error) {
	return c.enqueue(ctx, "/jobs/calls/transcribe", req)
}

// EnrichProspect queues enrichment of a prospect.
func (c *Client) EnrichProspect(ctx context.Context, prospectID string) (*EnqueueResult, error) {
	return c.enqueue(ctx, "/jobs/prospects/"+url.PathEscape(prospectID)+"/enrich", nil)
}
