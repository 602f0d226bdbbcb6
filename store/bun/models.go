package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
)

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	ID          string          `bun:"id,pk"`
	WorkspaceID string          `bun:"workspace_id,notnull"`
	Type        string          `bun:"type,notnull"`
	Queue       string          `bun:"queue,notnull"`
	Payload     json.RawMessage `bun:"payload,notnull,type:jsonb"`
	DedupeKey   string          `bun:"dedupe_key,notnull"`
	Status      string          `bun:"status,notnull"`
	Attempts    int             `bun:"attempts,notnull"`
	Retries     int             `bun:"retries,notnull"`
	MaxRetries  int             `bun:"max_retries,notnull"`
	Timeout     int64           `bun:"timeout,notnull"`
	LastError   string          `bun:"last_error,notnull"`
	Result      json.RawMessage `bun:"result,nullzero,type:jsonb"`
	RunAt       time.Time       `bun:"run_at,notnull"`
	StartedAt   *time.Time      `bun:"started_at"`
	FinishedAt  *time.Time      `bun:"finished_at"`
	HeartbeatAt *time.Time      `bun:"heartbeat_at"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
}

func toJobModel(j *job.Job) (*jobModel, error) {
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: encode payload: %w", err)
	}
	return &jobModel{
		ID:          j.ID.String(),
		WorkspaceID: j.WorkspaceID,
		Type:        j.Type,
		Queue:       j.Queue,
		Payload:     payload,
		DedupeKey:   j.Payload.DedupeKey,
		Status:      string(j.State),
		Attempts:    j.Attempts,
		Retries:     j.Retries,
		MaxRetries:  j.MaxRetries,
		Timeout:     j.Timeout.Nanoseconds(),
		LastError:   j.LastError,
		Result:      j.Result,
		RunAt:       j.RunAt.UTC(),
		StartedAt:   utcPtr(j.StartedAt),
		FinishedAt:  utcPtr(j.FinishedAt),
		HeartbeatAt: utcPtr(j.HeartbeatAt),
		CreatedAt:   j.CreatedAt.UTC(),
		UpdatedAt:   j.UpdatedAt.UTC(),
	}, nil
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: parse job id %q: %w", m.ID, err)
	}

	j := &job.Job{
		Entity: innosupps.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          parsedID,
		WorkspaceID: m.WorkspaceID,
		Type:        m.Type,
		Queue:       m.Queue,
		State:       job.State(m.Status),
		Attempts:    m.Attempts,
		Retries:     m.Retries,
		MaxRetries:  m.MaxRetries,
		Timeout:     time.Duration(m.Timeout),
		LastError:   m.LastError,
		RunAt:       m.RunAt,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		HeartbeatAt: m.HeartbeatAt,
	}
	if len(m.Result) > 0 {
		j.Result = m.Result
	}
	if err := json.Unmarshal(m.Payload, &j.Payload); err != nil {
		return nil, fmt.Errorf("innosupps/bun: decode payload of %s: %w", m.ID, err)
	}
	return j, nil
}

// ── Agent memory model ────────────────────────────────────────────

type memoryModel struct {
	bun.BaseModel `bun:"table:agent_memory"`

	ID          string          `bun:"id,pk"`
	WorkspaceID string          `bun:"workspace_id,notnull"`
	UserID      string          `bun:"user_id,notnull"`
	Key         string          `bun:"key,notnull"`
	Value       json.RawMessage `bun:"value,notnull,type:jsonb"`
	ExpiresAt   *time.Time      `bun:"expires_at"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
}

func toMemoryModel(e *agentmem.Entry) *memoryModel {
	value := e.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return &memoryModel{
		ID:          e.ID.String(),
		WorkspaceID: e.WorkspaceID,
		UserID:      e.UserID,
		Key:         e.Key,
		Value:       value,
		ExpiresAt:   utcPtr(e.ExpiresAt),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func fromMemoryModel(m *memoryModel) (*agentmem.Entry, error) {
	parsed, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: parse memory id %q: %w", m.ID, err)
	}
	return &agentmem.Entry{
		Entity:      innosupps.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          parsed,
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		Key:         m.Key,
		Value:       m.Value,
		ExpiresAt:   m.ExpiresAt,
	}, nil
}

// ── CRM models ────────────────────────────────────────────────────

type threadModel struct {
	bun.BaseModel `bun:"table:threads"`

	ID               string    `bun:"id,pk"`
	WorkspaceID      string    `bun:"workspace_id,notnull"`
	ProviderThreadID string    `bun:"provider_thread_id,notnull"`
	Subject          string    `bun:"subject,notnull"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
}

type messageModel struct {
	bun.BaseModel `bun:"table:messages"`

	ID                string            `bun:"id,pk"`
	ThreadID          string            `bun:"thread_id,notnull"`
	ProviderMessageID string            `bun:"provider_message_id,notnull"`
	Direction         string            `bun:"direction,notnull"`
	FromEmail         string            `bun:"from_email,notnull"`
	ToEmail           string            `bun:"to_email,notnull"`
	Subject           string            `bun:"subject,notnull"`
	BodyText          string            `bun:"body_text,notnull"`
	BodyHTML          string            `bun:"body_html,notnull"`
	Headers           map[string]string `bun:"headers,type:jsonb"`
	CreatedAt         time.Time         `bun:"created_at,notnull"`
	UpdatedAt         time.Time         `bun:"updated_at,notnull"`
}

type prospectModel struct {
	bun.BaseModel `bun:"table:prospects"`

	ID          string          `bun:"id,pk"`
	WorkspaceID string          `bun:"workspace_id,notnull"`
	Email       string          `bun:"email,notnull"`
	FirstName   string          `bun:"first_name,notnull"`
	LastName    string          `bun:"last_name,notnull"`
	Company     string          `bun:"company,notnull"`
	Title       string          `bun:"title,notnull"`
	Phone       string          `bun:"phone,notnull"`
	LinkedInURL string          `bun:"linkedin_url,notnull"`
	Enrichment  json.RawMessage `bun:"enrichment,nullzero,type:jsonb"`
	Score       float64         `bun:"score,notnull"`
	EnrichedAt  *time.Time      `bun:"enriched_at"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
}

type meetingModel struct {
	bun.BaseModel `bun:"table:meetings"`

	ID           string    `bun:"id,pk"`
	WorkspaceID  string    `bun:"workspace_id,notnull"`
	ProspectID   *string   `bun:"prospect_id"`
	StartsAt     time.Time `bun:"starts_at,notnull"`
	EndsAt       time.Time `bun:"ends_at,notnull"`
	CalendarLink string    `bun:"calendar_link,notnull"`
	BookingID    string    `bun:"booking_id,notnull"`
	Source       string    `bun:"source,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

type callModel struct {
	bun.BaseModel `bun:"table:calls"`

	ID           string          `bun:"id,pk"`
	WorkspaceID  string          `bun:"workspace_id,notnull"`
	ProspectID   *string         `bun:"prospect_id"`
	RecordingURL string          `bun:"recording_url,notnull"`
	Transcript   string          `bun:"transcript,notnull"`
	Analysis     json.RawMessage `bun:"analysis,nullzero,type:jsonb"`
	CreatedAt    time.Time       `bun:"created_at,notnull"`
	UpdatedAt    time.Time       `bun:"updated_at,notnull"`
}

type researchBriefModel struct {
	bun.BaseModel `bun:"table:research_briefs"`

	ID          string          `bun:"id,pk"`
	WorkspaceID string          `bun:"workspace_id,notnull"`
	Inputs      json.RawMessage `bun:"inputs,notnull,type:jsonb"`
	OutputMD    string          `bun:"output_md,notnull"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
}

type growthPlanModel struct {
	bun.BaseModel `bun:"table:growth_plans"`

	ID          string          `bun:"id,pk"`
	WorkspaceID string          `bun:"workspace_id,notnull"`
	Inputs      json.RawMessage `bun:"inputs,notnull,type:jsonb"`
	PlanMD      string          `bun:"plan_md,notnull"`
	KPIs        json.RawMessage `bun:"kpis,nullzero,type:jsonb"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
}

type membershipModel struct {
	bun.BaseModel `bun:"table:memberships"`

	WorkspaceID string    `bun:"workspace_id,pk"`
	UserID      string    `bun:"user_id,pk"`
	Role        string    `bun:"role,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// ── Conversion helpers ────────────────────────────────────────────

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func refString(ref *id.ID) *string {
	if ref == nil || ref.IsNil() {
		return nil
	}
	s := ref.String()
	return &s
}

func parseRef(s *string) (*id.ID, error) {
	if s == nil || *s == "" {
		return nil, nil //nolint:nilnil // absent reference
	}
	parsed, err := id.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: %w", err)
	}
	return &parsed, nil
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func fromProspectModel(m *prospectModel) (*crm.Prospect, error) {
	parsed, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: parse prospect id %q: %w", m.ID, err)
	}
	p := &crm.Prospect{
		Entity:      innosupps.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          parsed,
		WorkspaceID: m.WorkspaceID,
		Email:       m.Email,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Company:     m.Company,
		Title:       m.Title,
		Phone:       m.Phone,
		LinkedInURL: m.LinkedInURL,
		Score:       m.Score,
		EnrichedAt:  m.EnrichedAt,
	}
	if len(m.Enrichment) > 0 {
		p.Enrichment = m.Enrichment
	}
	return p, nil
}

func toProspectModel(p *crm.Prospect) *prospectModel {
	return &prospectModel{
		ID:          p.ID.String(),
		WorkspaceID: p.WorkspaceID,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Company:     p.Company,
		Title:       p.Title,
		Phone:       p.Phone,
		LinkedInURL: p.LinkedInURL,
		Enrichment:  p.Enrichment,
		Score:       p.Score,
		EnrichedAt:  utcPtr(p.EnrichedAt),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func fromMessageModel(m *messageModel) (*crm.Message, error) {
	msgID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: parse message id %q: %w", m.ID, err)
	}
	threadID, err := id.Parse(m.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: parse thread id %q: %w", m.ThreadID, err)
	}
	return &crm.Message{
		Entity:            innosupps.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                msgID,
		ThreadID:          threadID,
		ProviderMessageID: m.ProviderMessageID,
		Direction:         crm.Direction(m.Direction),
		FromEmail:         m.FromEmail,
		ToEmail:           m.ToEmail,
		Subject:           m.Subject,
		BodyText:          m.BodyText,
		BodyHTML:          m.BodyHTML,
		Headers:           m.Headers,
	}, nil
}
