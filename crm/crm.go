package crm

import (
	"encoding/json"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/id"
)

// Direction is the flow of a message relative to the workspace.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Meeting sources.
const (
	SourceManual     = "manual"
	SourceCalendly   = "calendly"
	SourceAutoBooked = "auto_booked"
)

// Thread groups messages exchanged with a prospect. It is unique per
// (workspace, provider thread id).
type Thread struct {
	innosupps.Entity

	ID               id.ID  `json:"id"`
	WorkspaceID      string `json:"workspace_id"`
	ProviderThreadID string `json:"provider_thread_id"`
	Subject          string `json:"subject,omitempty"`
}

// Message is one email within a thread.
type Message struct {
	innosupps.Entity

	ID                id.ID             `json:"id"`
	ThreadID          id.ID             `json:"thread_id"`
	ProviderMessageID string            `json:"provider_message_id"`
	Direction         Direction         `json:"direction"`
	FromEmail         string            `json:"from_email,omitempty"`
	ToEmail           string            `json:"to_email,omitempty"`
	Subject           string            `json:"subject,omitempty"`
	BodyText          string            `json:"body_text,omitempty"`
	BodyHTML          string            `json:"body_html,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
}

// Prospect is a person being sold to.
type Prospect struct {
	innosupps.Entity

	ID          id.ID           `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name,omitempty"`
	LastName    string          `json:"last_name,omitempty"`
	Company     string          `json:"company,omitempty"`
	Title       string          `json:"title,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	LinkedInURL string          `json:"linkedin_url,omitempty"`
	Enrichment  json.RawMessage `json:"enrichment,omitempty"`
	Score       float64         `json:"score"`
	EnrichedAt  *time.Time      `json:"enriched_at,omitempty"`
}

// Meeting is a booked calendar slot with a prospect.
type Meeting struct {
	innosupps.Entity

	ID           id.ID     `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	ProspectID   *id.ID    `json:"prospect_id,omitempty"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	CalendarLink string    `json:"calendar_link,omitempty"`
	BookingID    string    `json:"booking_id,omitempty"`
	Source       string    `json:"source"`
}

// Call is a recorded conversation and its analysis.
type Call struct {
	innosupps.Entity

	ID           id.ID           `json:"id"`
	WorkspaceID  string          `json:"workspace_id"`
	ProspectID   *id.ID          `json:"prospect_id,omitempty"`
	RecordingURL string          `json:"recording_url"`
	Transcript   string          `json:"transcript,omitempty"`
	Analysis     json.RawMessage `json:"analysis,omitempty"`
}

// ResearchBrief is the output of a niche research run.
type ResearchBrief struct {
	innosupps.Entity

	ID          id.ID           `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Inputs      json.RawMessage `json:"inputs"`
	OutputMD    string          `json:"output_md"`
}

// GrowthPlan is a generated go-to-market plan with its KPIs.
type GrowthPlan struct {
	innosupps.Entity

	ID          id.ID           `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Inputs      json.RawMessage `json:"inputs"`
	PlanMD      string          `json:"plan_md"`
	KPIs        json.RawMessage `json:"kpis,omitempty"`
}
