package api

import (
	"net/http"
	"strconv"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/auth"
	"github.com/simd-personal/Inno-Supps/engine"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/jobs"
	"github.com/simd-personal/Inno-Supps/redact"
)

// ListJobsResponse is the body of GET /jobs/workspace/{workspace_id}.
type ListJobsResponse struct {
	Jobs []*job.Status `json:"jobs"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// EnqueueResponse is the body of every enqueue route.
type EnqueueResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// TranscribeRequest is the body of POST /jobs/calls/transcribe.
type TranscribeRequest = jobs.TranscribeArgs

// SendEmailRequest is the body of POST /jobs/email/send.
type SendEmailRequest = jobs.SendEmailArgs

func parseJobID(r *http.Request) (id.JobID, error) {
	jobID, err := id.ParseWithPrefix(r.PathValue("id"), id.PrefixJob)
	if err != nil {
		return id.Nil, innosupps.Invalid("invalid job id: %v", err)
	}
	return jobID, nil
}

// redacted strips personal data from a status before it leaves the
// service.
func redacted(s *job.Status) *job.Status {
	s.LastError = redact.Text(s.LastError)
	s.Result = redact.JSON(s.Result)
	return s
}

func (a *API) getJobStatus(w http.ResponseWriter, r *http.Request) error {
	jobID, err := parseJobID(r)
	if err != nil {
		return err
	}
	st, err := a.Engine.GetStatus(r.Context(), jobID)
	if err != nil {
		return err
	}
	if _, err := a.authorize(r, st.WorkspaceID, auth.Read); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, redacted(st))
	return nil
}

func (a *API) listWorkspaceJobs(w http.ResponseWriter, r *http.Request) error {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return innosupps.Invalid("limit must be a non-negative integer")
		}
		limit = n
	}

	ws := r.PathValue("workspace_id")
	r, err := a.authorize(r, ws, auth.Read)
	if err != nil {
		return err
	}
	list, err := a.Engine.ListForWorkspace(r.Context(), ws, limit)
	if err != nil {
		return err
	}
	for _, st := range list {
		redacted(st)
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: list})
	return nil
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) error {
	jobID, err := parseJobID(r)
	if err != nil {
		return err
	}
	st, err := a.Engine.GetStatus(r.Context(), jobID)
	if err != nil {
		return err
	}
	r, err = a.authorize(r, st.WorkspaceID, auth.Write)
	if err != nil {
		return err
	}
	ok, err := a.Engine.Cancel(r.Context(), jobID)
	if err != nil {
		return err
	}
	if !ok {
		return innosupps.Invalid("failed to cancel job: job already %s", st.Status)
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Job cancelled successfully"})
	return nil
}

// ──────────────────────────────────────────────────
// Enqueue routes
// ──────────────────────────────────────────────────

// enqueue authorizes a write on the request workspace and queues payload
// on def in it.
func enqueue[T any](a *API, w http.ResponseWriter, r *http.Request, def *job.Definition[T], payload T, message string) error {
	ws := workspace(r, r.URL.Query().Get("workspace_id"))
	r, err := a.authorize(r, ws, auth.Write)
	if err != nil {
		return err
	}
	jobID, err := engine.Enqueue(r.Context(), a.Engine, def, payload, job.WithWorkspace(ws))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, EnqueueResponse{JobID: jobID.String(), Message: message})
	return nil
}

func (a *API) ingestEmail(w http.ResponseWriter, r *http.Request) error {
	var body jobs.EmailData
	if err := decode(w, r, &body); err != nil {
		return err
	}
	return enqueue(a, w, r, a.Jobs.IngestEmail, jobs.IngestEmailArgs{EmailData: body}, "Email ingestion job queued")
}

func (a *API) sendEmail(w http.ResponseWriter, r *http.Request) error {
	var body SendEmailRequest
	if err := decode(w, r, &body); err != nil {
		return err
	}
	if body.ProspectEmail == "" {
		return innosupps.Invalid("prospect_email is required")
	}
	return enqueue(a, w, r, a.Jobs.SendEmail, body, "Email send job queued")
}

func (a *API) nicheResearch(w http.ResponseWriter, r *http.Request) error {
	var body jobs.NicheInputs
	if err := decode(w, r, &body); err != nil {
		return err
	}
	return enqueue(a, w, r, a.Jobs.NicheResearch, jobs.NicheResearchArgs{ResearchInputs: body}, "Niche research job queued")
}

func (a *API) growthPlan(w http.ResponseWriter, r *http.Request) error {
	body := map[string]any{}
	if err := decode(w, r, &body); err != nil {
		return err
	}
	return enqueue(a, w, r, a.Jobs.GrowthPlan, jobs.GrowthPlanArgs{PlanInputs: body}, "Growth plan job queued")
}

func (a *API) transcribeCall(w http.ResponseWriter, r *http.Request) error {
	var body TranscribeRequest
	if err := decode(w, r, &body); err != nil {
		return err
	}
	if body.RecordingURL == "" {
		body.RecordingURL = r.URL.Query().Get("recording_url")
	}
	if body.RecordingURL == "" {
		return innosupps.Invalid("recording_url is required")
	}
	return enqueue(a, w, r, a.Jobs.TranscribeCall, body, "Call transcription job queued")
}

func (a *API) enrichProspect(w http.ResponseWriter, r *http.Request) error {
	prospectID := r.PathValue("id")
	if prospectID == "" {
		return innosupps.Invalid("prospect id is required")
	}
	return enqueue(a, w, r, a.Jobs.EnrichProspect, jobs.EnrichArgs{ProspectID: prospectID}, "Prospect enrichment job queued")
}
