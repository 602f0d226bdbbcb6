package bunstore

import (
	"context"
	"fmt"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/id"
)

// ── Threads and messages ──────────────────────────────────────────

// InsertThread persists a new thread.
func (s *Store) InsertThread(ctx context.Context, t *crm.Thread) error {
	m := &threadModel{
		ID:               t.ID.String(),
		WorkspaceID:      t.WorkspaceID,
		ProviderThreadID: t.ProviderThreadID,
		Subject:          t.Subject,
		CreatedAt:        t.CreatedAt.UTC(),
		UpdatedAt:        t.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("innosupps/bun: insert thread: %w", err)
	}
	return nil
}

// GetThread returns the thread if it belongs to the workspace.
func (s *Store) GetThread(ctx context.Context, workspaceID string, threadID id.ID) (*crm.Thread, error) {
	return s.selectThread(ctx, "id = ?", workspaceID, threadID.String())
}

// FindThreadByProviderID looks a thread up by the mail provider's id.
func (s *Store) FindThreadByProviderID(ctx context.Context, workspaceID, providerThreadID string) (*crm.Thread, error) {
	return s.selectThread(ctx, "provider_thread_id = ?", workspaceID, providerThreadID)
}

func (s *Store) selectThread(ctx context.Context, where, workspaceID string, arg any) (*crm.Thread, error) {
	m := new(threadModel)
	err := s.db.NewSelect().Model(m).
		Where("workspace_id = ?", workspaceID).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrThreadNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: get thread: %w", err)
	}
	parsed, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: %w", err)
	}
	return &crm.Thread{
		Entity:           innosupps.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               parsed,
		WorkspaceID:      m.WorkspaceID,
		ProviderThreadID: m.ProviderThreadID,
		Subject:          m.Subject,
	}, nil
}

// InsertMessage persists a message.
func (s *Store) InsertMessage(ctx context.Context, msg *crm.Message) error {
	m := &messageModel{
		ID:                msg.ID.String(),
		ThreadID:          msg.ThreadID.String(),
		ProviderMessageID: msg.ProviderMessageID,
		Direction:         string(msg.Direction),
		FromEmail:         msg.FromEmail,
		ToEmail:           msg.ToEmail,
		Subject:           msg.Subject,
		BodyText:          msg.BodyText,
		BodyHTML:          msg.BodyHTML,
		Headers:           msg.Headers,
		CreatedAt:         msg.CreatedAt.UTC(),
		UpdatedAt:         msg.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", innosupps.ErrDuplicateMessage, msg.ProviderMessageID)
		}
		return fmt.Errorf("innosupps/bun: insert message: %w", err)
	}
	return nil
}

// FindMessageByProviderID looks a message up by the mail provider's id.
func (s *Store) FindMessageByProviderID(ctx context.Context, threadID id.ID, providerMessageID string) (*crm.Message, error) {
	if providerMessageID == "" {
		return nil, innosupps.ErrMessageNotFound
	}
	m := new(messageModel)
	err := s.db.NewSelect().Model(m).
		Where("thread_id = ?", threadID.String()).
		Where("provider_message_id = ?", providerMessageID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrMessageNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: find message: %w", err)
	}
	return fromMessageModel(m)
}

// LatestMessage returns the newest message of the thread.
func (s *Store) LatestMessage(ctx context.Context, threadID id.ID) (*crm.Message, error) {
	m := new(messageModel)
	err := s.db.NewSelect().Model(m).
		Where("thread_id = ?", threadID.String()).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrMessageNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: latest message: %w", err)
	}
	return fromMessageModel(m)
}

// ListMessages returns the thread's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, threadID id.ID) ([]*crm.Message, error) {
	var models []messageModel
	err := s.db.NewSelect().Model(&models).
		Where("thread_id = ?", threadID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: list messages: %w", err)
	}
	out := make([]*crm.Message, 0, len(models))
	for i := range models {
		msg, convErr := fromMessageModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, msg)
	}
	return out, nil
}

// ── Prospects ─────────────────────────────────────────────────────

// InsertProspect persists a prospect.
func (s *Store) InsertProspect(ctx context.Context, p *crm.Prospect) error {
	if _, err := s.db.NewInsert().Model(toProspectModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("innosupps/bun: insert prospect: %w", err)
	}
	return nil
}

// GetProspect returns the prospect if it belongs to the workspace.
func (s *Store) GetProspect(ctx context.Context, workspaceID string, prospectID id.ID) (*crm.Prospect, error) {
	m := new(prospectModel)
	err := s.db.NewSelect().Model(m).
		Where("workspace_id = ?", workspaceID).
		Where("id = ?", prospectID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrProspectNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: get prospect: %w", err)
	}
	return fromProspectModel(m)
}

// FindProspectByEmail matches the address case-insensitively.
func (s *Store) FindProspectByEmail(ctx context.Context, workspaceID, email string) (*crm.Prospect, error) {
	m := new(prospectModel)
	err := s.db.NewSelect().Model(m).
		Where("workspace_id = ?", workspaceID).
		Where("lower(email) = lower(?)", email).
		OrderExpr("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrProspectNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: find prospect: %w", err)
	}
	return fromProspectModel(m)
}

// UpdateProspect overwrites a prospect.
func (s *Store) UpdateProspect(ctx context.Context, p *crm.Prospect) error {
	m := toProspectModel(p)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).
		ExcludeColumn("id", "workspace_id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("innosupps/bun: update prospect: %w", err)
	}
	if rowsAffected(res) == 0 {
		return innosupps.ErrProspectNotFound
	}
	return nil
}

// ── Meetings, calls and generated artifacts ───────────────────────

// InsertMeeting persists a meeting.
func (s *Store) InsertMeeting(ctx context.Context, mt *crm.Meeting) error {
	m := &meetingModel{
		ID:           mt.ID.String(),
		WorkspaceID:  mt.WorkspaceID,
		ProspectID:   refString(mt.ProspectID),
		StartsAt:     mt.StartsAt.UTC(),
		EndsAt:       mt.EndsAt.UTC(),
		CalendarLink: mt.CalendarLink,
		BookingID:    mt.BookingID,
		Source:       mt.Source,
		CreatedAt:    mt.CreatedAt.UTC(),
		UpdatedAt:    mt.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("innosupps/bun: insert meeting: %w", err)
	}
	return nil
}

// ListMeetings returns the workspace's meetings ordered by start time.
func (s *Store) ListMeetings(ctx context.Context, workspaceID string) ([]*crm.Meeting, error) {
	var models []meetingModel
	err := s.db.NewSelect().Model(&models).
		Where("workspace_id = ?", workspaceID).
		OrderExpr("starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: list meetings: %w", err)
	}

	out := make([]*crm.Meeting, 0, len(models))
	for i := range models {
		m := &models[i]
		parsed, parseErr := id.Parse(m.ID)
		if parseErr != nil {
			return nil, fmt.Errorf("innosupps/bun: %w", parseErr)
		}
		prospect, refErr := parseRef(m.ProspectID)
		if refErr != nil {
			return nil, refErr
		}
		out = append(out, &crm.Meeting{
			Entity:       innosupps.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
			ID:           parsed,
			WorkspaceID:  m.WorkspaceID,
			ProspectID:   prospect,
			StartsAt:     m.StartsAt,
			EndsAt:       m.EndsAt,
			CalendarLink: m.CalendarLink,
			BookingID:    m.BookingID,
			Source:       m.Source,
		})
	}
	return out, nil
}

// InsertCall persists an analyzed call.
func (s *Store) InsertCall(ctx context.Context, c *crm.Call) error {
	m := &callModel{
		ID:           c.ID.String(),
		WorkspaceID:  c.WorkspaceID,
		ProspectID:   refString(c.ProspectID),
		RecordingURL: c.RecordingURL,
		Transcript:   c.Transcript,
		Analysis:     c.Analysis,
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("innosupps/bun: insert call: %w", err)
	}
	return nil
}

// InsertResearchBrief persists a research brief.
func (s *Store) InsertResearchBrief(ctx context.Context, b *crm.ResearchBrief) error {
	m := &researchBriefModel{
		ID:          b.ID.String(),
		WorkspaceID: b.WorkspaceID,
		Inputs:      orEmptyObject(b.Inputs),
		OutputMD:    b.OutputMD,
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("innosupps/bun: insert research brief: %w", err)
	}
	return nil
}

// InsertGrowthPlan persists a growth plan.
func (s *Store) InsertGrowthPlan(ctx context.Context, p *crm.GrowthPlan) error {
	m := &growthPlanModel{
		ID:          p.ID.String(),
		WorkspaceID: p.WorkspaceID,
		Inputs:      orEmptyObject(p.Inputs),
		PlanMD:      p.PlanMD,
		KPIs:        p.KPIs,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("innosupps/bun: insert growth plan: %w", err)
	}
	return nil
}

// ── Memberships ───────────────────────────────────────────────────

// PutMembership creates or replaces the user's role in the workspace.
func (s *Store) PutMembership(ctx context.Context, mb *crm.Membership) error {
	m := &membershipModel{
		WorkspaceID: mb.WorkspaceID,
		UserID:      mb.UserID,
		Role:        string(mb.Role),
		CreatedAt:   mb.CreatedAt.UTC(),
		UpdatedAt:   mb.UpdatedAt.UTC(),
	}
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (workspace_id, user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("innosupps/bun: put membership: %w", err)
	}
	return nil
}

// GetMembership returns the user's membership in the workspace.
func (s *Store) GetMembership(ctx context.Context, workspaceID, userID string) (*crm.Membership, error) {
	m := new(membershipModel)
	err := s.db.NewSelect().Model(m).
		Where("workspace_id = ?", workspaceID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrNotMember
		}
		return nil, fmt.Errorf("innosupps/bun: get membership: %w", err)
	}
	return &crm.Membership{
		Entity:      innosupps.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		UserID:      m.UserID,
		WorkspaceID: m.WorkspaceID,
		Role:        crm.Role(m.Role),
	}, nil
}
