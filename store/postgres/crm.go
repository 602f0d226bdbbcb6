package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/id"
)

// ──────────────────────────────────────────────────
// Threads and messages
// ──────────────────────────────────────────────────

// InsertThread persists a new thread.
func (s *Store) InsertThread(ctx context.Context, t *crm.Thread) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO threads (id, workspace_id, provider_thread_id, subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID.String(), t.WorkspaceID, t.ProviderThreadID, t.Subject, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: insert thread: %w", err)
	}
	return nil
}

// GetThread returns the thread if it belongs to the workspace.
func (s *Store) GetThread(ctx context.Context, workspaceID string, threadID id.ID) (*crm.Thread, error) {
	return s.queryThread(ctx, `WHERE workspace_id = $1 AND id = $2`, workspaceID, threadID.String())
}

// FindThreadByProviderID looks a thread up by the mail provider's id.
func (s *Store) FindThreadByProviderID(ctx context.Context, workspaceID, providerThreadID string) (*crm.Thread, error) {
	return s.queryThread(ctx, `WHERE workspace_id = $1 AND provider_thread_id = $2`, workspaceID, providerThreadID)
}

func (s *Store) queryThread(ctx context.Context, where string, args ...any) (*crm.Thread, error) {
	var (
		t     crm.Thread
		idStr string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, workspace_id, provider_thread_id, subject, created_at, updated_at
		FROM threads `+where, args...,
	).Scan(&idStr, &t.WorkspaceID, &t.ProviderThreadID, &t.Subject, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrThreadNotFound
		}
		return nil, fmt.Errorf("innosupps/postgres: get thread: %w", err)
	}
	if t.ID, err = id.Parse(idStr); err != nil {
		return nil, fmt.Errorf("innosupps/postgres: %w", err)
	}
	return &t, nil
}

// InsertMessage persists a message.
func (s *Store) InsertMessage(ctx context.Context, m *crm.Message) error {
	var headers any
	if len(m.Headers) > 0 {
		raw, err := json.Marshal(m.Headers)
		if err != nil {
			return fmt.Errorf("innosupps/postgres: encode headers: %w", err)
		}
		headers = raw
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (
			id, thread_id, provider_message_id, direction, from_email, to_email,
			subject, body_text, body_html, headers, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID.String(), m.ThreadID.String(), m.ProviderMessageID, string(m.Direction),
		m.FromEmail, m.ToEmail, m.Subject, m.BodyText, m.BodyHTML, headers,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", innosupps.ErrDuplicateMessage, m.ProviderMessageID)
		}
		return fmt.Errorf("innosupps/postgres: insert message: %w", err)
	}
	return nil
}

const messageColumns = `
	id, thread_id, provider_message_id, direction, from_email, to_email,
	subject, body_text, body_html, headers, created_at, updated_at`

// LatestMessage returns the newest message of the thread.
func (s *Store) LatestMessage(ctx context.Context, threadID id.ID) (*crm.Message, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+messageColumns+`
		FROM messages WHERE thread_id = $1
		ORDER BY created_at DESC LIMIT 1`,
		threadID.String(),
	)
	m, err := scanMessage(row)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrMessageNotFound
		}
		return nil, fmt.Errorf("innosupps/postgres: latest message: %w", err)
	}
	return m, nil
}

// FindMessageByProviderID looks a message up by the mail provider's id.
func (s *Store) FindMessageByProviderID(ctx context.Context, threadID id.ID, providerMessageID string) (*crm.Message, error) {
	if providerMessageID == "" {
		return nil, innosupps.ErrMessageNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT`+messageColumns+`
		FROM messages WHERE thread_id = $1 AND provider_message_id = $2`,
		threadID.String(), providerMessageID,
	)
	m, err := scanMessage(row)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrMessageNotFound
		}
		return nil, fmt.Errorf("innosupps/postgres: find message: %w", err)
	}
	return m, nil
}

// ListMessages returns the thread's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, threadID id.ID) ([]*crm.Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+messageColumns+`
		FROM messages WHERE thread_id = $1
		ORDER BY created_at ASC`,
		threadID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: list messages: %w", err)
	}
	defer rows.Close()

	var out []*crm.Message
	for rows.Next() {
		m, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("innosupps/postgres: scan message row: %w", scanErr)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("innosupps/postgres: iterate message rows: %w", err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (*crm.Message, error) {
	var (
		m         crm.Message
		idStr     string
		threadStr string
		direction string
		headers   []byte
	)
	if err := row.Scan(&idStr, &threadStr, &m.ProviderMessageID, &direction,
		&m.FromEmail, &m.ToEmail, &m.Subject, &m.BodyText, &m.BodyHTML, &headers,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if m.ID, err = id.Parse(idStr); err != nil {
		return nil, err
	}
	if m.ThreadID, err = id.Parse(threadStr); err != nil {
		return nil, err
	}
	m.Direction = crm.Direction(direction)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &m.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}
	return &m, nil
}

// ──────────────────────────────────────────────────
// Prospects
// ──────────────────────────────────────────────────

const prospectColumns = `
	id, workspace_id, email, first_name, last_name, company, title, phone,
	linkedin_url, enrichment, score, enriched_at, created_at, updated_at`

// InsertProspect persists a prospect.
func (s *Store) InsertProspect(ctx context.Context, p *crm.Prospect) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO prospects (`+prospectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID.String(), p.WorkspaceID, p.Email, p.FirstName, p.LastName, p.Company, p.Title, p.Phone,
		p.LinkedInURL, jsonb(p.Enrichment), p.Score, p.EnrichedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: insert prospect: %w", err)
	}
	return nil
}

// GetProspect returns the prospect if it belongs to the workspace.
func (s *Store) GetProspect(ctx context.Context, workspaceID string, prospectID id.ID) (*crm.Prospect, error) {
	return s.queryProspect(ctx, `WHERE workspace_id = $1 AND id = $2`, workspaceID, prospectID.String())
}

// FindProspectByEmail matches the address case-insensitively.
func (s *Store) FindProspectByEmail(ctx context.Context, workspaceID, email string) (*crm.Prospect, error) {
	return s.queryProspect(ctx, `WHERE workspace_id = $1 AND lower(email) = lower($2) ORDER BY created_at LIMIT 1`,
		workspaceID, email)
}

func (s *Store) queryProspect(ctx context.Context, where string, args ...any) (*crm.Prospect, error) {
	var (
		p          crm.Prospect
		idStr      string
		enrichment []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT`+prospectColumns+` FROM prospects `+where, args...).Scan(
		&idStr, &p.WorkspaceID, &p.Email, &p.FirstName, &p.LastName, &p.Company, &p.Title, &p.Phone,
		&p.LinkedInURL, &enrichment, &p.Score, &p.EnrichedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrProspectNotFound
		}
		return nil, fmt.Errorf("innosupps/postgres: get prospect: %w", err)
	}
	if p.ID, err = id.Parse(idStr); err != nil {
		return nil, fmt.Errorf("innosupps/postgres: %w", err)
	}
	if len(enrichment) > 0 {
		p.Enrichment = enrichment
	}
	return &p, nil
}

// UpdateProspect overwrites a prospect.
func (s *Store) UpdateProspect(ctx context.Context, p *crm.Prospect) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE prospects SET
			email = $2, first_name = $3, last_name = $4, company = $5, title = $6,
			phone = $7, linkedin_url = $8, enrichment = $9, score = $10,
			enriched_at = $11, updated_at = NOW()
		WHERE id = $1`,
		p.ID.String(), p.Email, p.FirstName, p.LastName, p.Company, p.Title,
		p.Phone, p.LinkedInURL, jsonb(p.Enrichment), p.Score, p.EnrichedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: update prospect: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return innosupps.ErrProspectNotFound
	}
	return nil
}

// ──────────────────────────────────────────────────
// Meetings, calls and generated artifacts
// ──────────────────────────────────────────────────

// InsertMeeting persists a meeting.
func (s *Store) InsertMeeting(ctx context.Context, m *crm.Meeting) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meetings (
			id, workspace_id, prospect_id, starts_at, ends_at,
			calendar_link, booking_id, source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID.String(), m.WorkspaceID, nullableID(m.ProspectID), m.StartsAt, m.EndsAt,
		m.CalendarLink, m.BookingID, m.Source, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: insert meeting: %w", err)
	}
	return nil
}

// ListMeetings returns the workspace's meetings ordered by start time.
func (s *Store) ListMeetings(ctx context.Context, workspaceID string) ([]*crm.Meeting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, workspace_id, prospect_id, starts_at, ends_at,
		       calendar_link, booking_id, source, created_at, updated_at
		FROM meetings WHERE workspace_id = $1
		ORDER BY starts_at ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: list meetings: %w", err)
	}
	defer rows.Close()

	var out []*crm.Meeting
	for rows.Next() {
		var (
			m        crm.Meeting
			idStr    string
			prospect *string
		)
		if err := rows.Scan(&idStr, &m.WorkspaceID, &prospect, &m.StartsAt, &m.EndsAt,
			&m.CalendarLink, &m.BookingID, &m.Source, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("innosupps/postgres: scan meeting row: %w", err)
		}
		if m.ID, err = id.Parse(idStr); err != nil {
			return nil, fmt.Errorf("innosupps/postgres: %w", err)
		}
		if m.ProspectID, err = parseNullableID(prospect); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("innosupps/postgres: iterate meeting rows: %w", err)
	}
	return out, nil
}

// InsertCall persists an analyzed call.
func (s *Store) InsertCall(ctx context.Context, c *crm.Call) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO calls (
			id, workspace_id, prospect_id, recording_url, transcript, analysis,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID.String(), c.WorkspaceID, nullableID(c.ProspectID), c.RecordingURL,
		c.Transcript, jsonb(c.Analysis), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: insert call: %w", err)
	}
	return nil
}

// InsertResearchBrief persists a research brief.
func (s *Store) InsertResearchBrief(ctx context.Context, b *crm.ResearchBrief) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO research_briefs (id, workspace_id, inputs, output_md, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID.String(), b.WorkspaceID, jsonbOr(b.Inputs, "{}"), b.OutputMD, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: insert research brief: %w", err)
	}
	return nil
}

// InsertGrowthPlan persists a growth plan.
func (s *Store) InsertGrowthPlan(ctx context.Context, p *crm.GrowthPlan) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO growth_plans (id, workspace_id, inputs, plan_md, kpis, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID.String(), p.WorkspaceID, jsonbOr(p.Inputs, "{}"), p.PlanMD, jsonb(p.KPIs),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: insert growth plan: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Memberships
// ──────────────────────────────────────────────────

// PutMembership creates or replaces the user's role in the workspace.
func (s *Store) PutMembership(ctx context.Context, m *crm.Membership) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO memberships (workspace_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at`,
		m.WorkspaceID, m.UserID, string(m.Role), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: put membership: %w", err)
	}
	return nil
}

// GetMembership returns the user's membership in the workspace.
func (s *Store) GetMembership(ctx context.Context, workspaceID, userID string) (*crm.Membership, error) {
	var (
		m    crm.Membership
		role string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT workspace_id, user_id, role, created_at, updated_at
		FROM memberships WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID,
	).Scan(&m.WorkspaceID, &m.UserID, &role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrNotMember
		}
		return nil, fmt.Errorf("innosupps/postgres: get membership: %w", err)
	}
	m.Role = crm.Role(role)
	return &m, nil
}
