package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/engine"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/toolkit"
)

// TranscribeArgs is the payload of transcribe_and_analyze_call.
type TranscribeArgs struct {
	RecordingURL string `json:"recording_url"`
	ProspectID   string `json:"prospect_id,omitempty"`
	Language     string `json:"language,omitempty"`
}

// TranscribeResult is stored on a finished transcribe_and_analyze_call job.
type TranscribeResult struct {
	Status           string           `json:"status"`
	CallID           string           `json:"call_id"`
	TranscriptLength int              `json:"transcript_length"`
	Analysis         toolkit.Analysis `json:"analysis"`
}

// transcribeCall turns a recording into text, analyzes it and records the
// call.
func (js *Jobs) transcribeCall(ctx context.Context, args TranscribeArgs) (any, error) {
	ws := workspace(ctx)
	if args.RecordingURL == "" {
		return nil, innosupps.Invalid("%s: recording_url is required", FnTranscribeCall)
	}

	var prospectID *id.ID
	if args.ProspectID != "" {
		pid, err := id.ParseProspectID(args.ProspectID)
		if err != nil {
			return nil, innosupps.Invalid("prospect_id %q: %v", args.ProspectID, err)
		}
		prospectID = &pid
	}

	tr := js.deps.Kit.Providers().Transcriber
	if tr == nil {
		return nil, innosupps.Upstream("transcription", errors.New("no transcription provider configured"))
	}
	lang := args.Language
	if lang == "" {
		lang = "en"
	}
	transcript, err := tr.Transcribe(ctx, args.RecordingURL, lang)
	if err != nil {
		return nil, innosupps.Upstream("transcription", err)
	}

	analysis, err := js.deps.Kit.AnalyzeTranscript(ctx, transcript.Text)
	if err != nil {
		return nil, fmt.Errorf("analyze transcript: %w", err)
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}

	call := &crm.Call{
		Entity:       js.entity(),
		ID:           id.NewCallID(),
		WorkspaceID:  ws,
		ProspectID:   prospectID,
		RecordingURL: args.RecordingURL,
		Transcript:   transcript.Text,
		Analysis:     raw,
	}
	if err := js.deps.CRM.InsertCall(ctx, call); err != nil {
		return nil, fmt.Errorf("insert call: %w", err)
	}

	return TranscribeResult{
		Status:           StatusSuccess,
		CallID:           call.ID.String(),
		TranscriptLength: len(transcript.Text),
		Analysis:         analysis,
	}, nil
}

// ZoomWebhookArgs is the payload of process_zoom_webhook.
type ZoomWebhookArgs struct {
	WebhookData map[string]any `json:"webhook_data"`
}

// ZoomWebhookResult is stored on a finished process_zoom_webhook job.
type ZoomWebhookResult struct {
	Status             string `json:"status"`
	TranscriptionJobID string `json:"transcription_job_id"`
	RecordingURL       string `json:"recording_url"`
}

// zoomWebhook hands the recording named by a Zoom webhook to
// transcribe_and_analyze_call.
func (js *Jobs) zoomWebhook(ctx context.Context, args ZoomWebhookArgs) (any, error) {
	url, _ := args.WebhookData["recording_url"].(string)
	if url == "" {
		return nil, innosupps.Invalid("%s: no recording_url in webhook", FnZoomWebhook)
	}

	jobID, err := engine.Enqueue(ctx, js.eng, js.TranscribeCall,
		TranscribeArgs{RecordingURL: url}, job.WithWorkspace(workspace(ctx)))
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", FnTranscribeCall, err)
	}
	return ZoomWebhookResult{
		Status:             StatusSuccess,
		TranscriptionJobID: jobID.String(),
		RecordingURL:       url,
	}, nil
}
