package crm

import (
	"context"

	"github.com/simd-personal/Inno-Supps/id"
)

// Store is the persistence contract for the sales entities.
type Store interface {
	// InsertThread persists a new thread.
	InsertThread(ctx context.Context, t *Thread) error

	// GetThread returns the thread, or ErrThreadNotFound when it does not
	// exist in the workspace.
	GetThread(ctx context.Context, workspaceID string, threadID id.ID) (*Thread, error)

	// FindThreadByProviderID looks a thread up by the mail provider's id.
	FindThreadByProviderID(ctx context.Context, workspaceID, providerThreadID string) (*Thread, error)

	// InsertMessage persists a message. A second message with the same
	// non-empty provider id in a thread fails with ErrDuplicateMessage.
	InsertMessage(ctx context.Context, m *Message) error

	// FindMessageByProviderID looks a message up by the mail provider's id
	// within a thread, or returns ErrMessageNotFound.
	FindMessageByProviderID(ctx context.Context, threadID id.ID, providerMessageID string) (*Message, error)

	// LatestMessage returns the newest message of the thread, or
	// ErrMessageNotFound.
	LatestMessage(ctx context.Context, threadID id.ID) (*Message, error)

	// ListMessages returns the thread's messages oldest first.
	ListMessages(ctx context.Context, threadID id.ID) ([]*Message, error)

	// InsertProspect persists a prospect.
	InsertProspect(ctx context.Context, p *Prospect) error

	// GetProspect returns the prospect, or ErrProspectNotFound.
	GetProspect(ctx context.Context, workspaceID string, prospectID id.ID) (*Prospect, error)

	// FindProspectByEmail matches the address case-insensitively.
	FindProspectByEmail(ctx context.Context, workspaceID, email string) (*Prospect, error)

	// UpdateProspect overwrites a prospect.
	UpdateProspect(ctx context.Context, p *Prospect) error

	// InsertMeeting persists a meeting.
	InsertMeeting(ctx context.Context, m *Meeting) error

	// ListMeetings returns the workspace's meetings ordered by start time.
	ListMeetings(ctx context.Context, workspaceID string) ([]*Meeting, error)

	// InsertCall persists an analyzed call.
	InsertCall(ctx context.Context, c *Call) error

	// InsertResearchBrief persists a research brief.
	InsertResearchBrief(ctx context.Context, b *ResearchBrief) error

	// InsertGrowthPlan persists a growth plan.
	InsertGrowthPlan(ctx context.Context, p *GrowthPlan) error

	// PutMembership creates or replaces the user's role in the workspace.
	PutMembership(ctx context.Context, m *Membership) error

	// GetMembership returns the user's membership, or ErrNotMember.
	GetMembership(ctx context.Context, workspaceID, userID string) (*Membership, error)
}
