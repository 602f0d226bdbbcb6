package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
)

// Ensure Store implements every subsystem store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store      = (*Store)(nil)
	_ agentmem.Store = (*Store)(nil)
	_ crm.Store      = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	jobs   map[string]*job.Job
	active map[string]string // "workspace:dedupeKey" -> job ID

	memory map[string]*agentmem.Entry // "workspace\x00user\x00key"

	threads     map[string]*crm.Thread
	messages    map[string][]*crm.Message // thread ID -> messages, insertion order
	prospects   map[string]*crm.Prospect
	meetings    map[string]*crm.Meeting
	calls       map[string]*crm.Call
	briefs      map[string]*crm.ResearchBrief
	plans       map[string]*crm.GrowthPlan
	memberships map[string]*crm.Membership // "workspace:user"
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:        make(map[string]*job.Job),
		active:      make(map[string]string),
		memory:      make(map[string]*agentmem.Entry),
		threads:     make(map[string]*crm.Thread),
		messages:    make(map[string][]*crm.Message),
		prospects:   make(map[string]*crm.Prospect),
		meetings:    make(map[string]*crm.Meeting),
		calls:       make(map[string]*crm.Call),
		briefs:      make(map[string]*crm.ResearchBrief),
		plans:       make(map[string]*crm.GrowthPlan),
		memberships: make(map[string]*crm.Membership),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate, Ping, Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

func activeKey(workspaceID, dedupeKey string) string {
	return workspaceID + ":" + dedupeKey
}

// InsertJob persists a new job. The active index plays the part of the
// partial unique index the SQL backends declare.
func (m *Store) InsertJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return fmt.Errorf("%w: id %s", innosupps.ErrDuplicateJob, key)
	}
	if j.State.IsActive() && j.Payload.DedupeKey != "" {
		ak := activeKey(j.WorkspaceID, j.Payload.DedupeKey)
		if holder, taken := m.active[ak]; taken {
			return fmt.Errorf("%w: held by %s", innosupps.ErrDuplicateJob, holder)
		}
		m.active[ak] = key
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, innosupps.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// FindActiveJob returns the active job holding dedupeKey in the workspace.
func (m *Store) FindActiveJob(_ context.Context, workspaceID, dedupeKey string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	holder, ok := m.active[activeKey(workspaceID, dedupeKey)]
	if !ok {
		return nil, innosupps.ErrJobNotFound
	}
	cp := *m.jobs[holder]
	return &cp, nil
}

// UpdateJob persists changes to an existing job and releases its dedupe
// key once it reaches a terminal state.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[j.ID.String()]; !ok {
		return innosupps.ErrJobNotFound
	}
	return m.updateJobLocked(j)
}

// UpdateJobFrom persists j only if the stored status equals from.
func (m *Store) UpdateJobFrom(_ context.Context, j *job.Job, from job.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.jobs[j.ID.String()]
	if !ok {
		return innosupps.ErrJobNotFound
	}
	if cur.State != from {
		return fmt.Errorf("%w: job %s is %s, not %s", innosupps.ErrInvalidState, j.ID, cur.State, from)
	}
	return m.updateJobLocked(j)
}

func (m *Store) updateJobLocked(j *job.Job) error {
	key := j.ID.String()
	if j.Payload.DedupeKey != "" {
		ak := activeKey(j.WorkspaceID, j.Payload.DedupeKey)
		if j.State.IsActive() {
			if holder, taken := m.active[ak]; taken && holder != key {
				return fmt.Errorf("%w: held by %s", innosupps.ErrDuplicateJob, holder)
			}
			m.active[ak] = key
		} else if m.active[ak] == key {
			delete(m.active, ak)
		}
	}
	cp := *j
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	m.jobs[key] = &cp
	return nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	j, ok := m.jobs[key]
	if !ok {
		return innosupps.ErrJobNotFound
	}
	ak := activeKey(j.WorkspaceID, j.Payload.DedupeKey)
	if m.active[ak] == key {
		delete(m.active, ak)
	}
	delete(m.jobs, key)
	return nil
}

// ListJobsByWorkspace returns the workspace's jobs, newest first.
func (m *Store) ListJobsByWorkspace(_ context.Context, workspaceID string, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0)
	for _, j := range m.jobs {
		if j.WorkspaceID != workspaceID {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return paginate(result, opts), nil
}

// ListJobsByState returns jobs matching the given state.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0)
	for _, j := range m.jobs {
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	// Sort by CreatedAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return paginate(result, opts), nil
}

func paginate(result []*job.Job, opts job.ListOpts) []*job.Job {
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// HeartbeatJob updates the heartbeat timestamp for a running job.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return innosupps.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.HeartbeatAt = &now
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the given threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	for _, j := range m.jobs {
		if j.State != job.StateRunning {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			cp := *j
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.WorkspaceID != "" && j.WorkspaceID != opts.WorkspaceID {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Agent memory Store
// ──────────────────────────────────────────────────

func memoryKey(scope agentmem.Scope, key string) string {
	return scope.WorkspaceID + "\x00" + scope.UserID + "\x00" + key
}

func inScope(e *agentmem.Entry, scope agentmem.Scope) bool {
	return e.WorkspaceID == scope.WorkspaceID && e.UserID == scope.UserID
}

// UpsertMemory inserts or overwrites an entry, keeping the original ID and
// creation time on overwrite.
func (m *Store) UpsertMemory(_ context.Context, e *agentmem.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey(agentmem.Scope{WorkspaceID: e.WorkspaceID, UserID: e.UserID}, e.Key)
	cp := *e
	if prev, ok := m.memory[k]; ok {
		cp.ID = prev.ID
		cp.CreatedAt = prev.CreatedAt
		*e = cp
	}
	m.memory[k] = &cp
	return nil
}

// GetMemory returns the live entry for key.
func (m *Store) GetMemory(_ context.Context, scope agentmem.Scope, key string, now time.Time) (*agentmem.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.memory[memoryKey(scope, key)]
	if !ok || !e.Live(now) {
		return nil, innosupps.ErrMemoryNotFound
	}
	cp := *e
	return &cp, nil
}

// DeleteMemory removes the entry for key.
func (m *Store) DeleteMemory(_ context.Context, scope agentmem.Scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey(scope, key)
	if _, ok := m.memory[k]; !ok {
		return false, nil
	}
	delete(m.memory, k)
	return true, nil
}

// ListMemory returns the live entries of the scope, ordered by key.
func (m *Store) ListMemory(_ context.Context, scope agentmem.Scope, now time.Time) ([]*agentmem.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*agentmem.Entry
	for _, e := range m.memory {
		if inScope(e, scope) && e.Live(now) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Key < out[k].Key })
	return out, nil
}

// PurgeExpiredMemory deletes entries that expired before now.
func (m *Store) PurgeExpiredMemory(_ context.Context, workspaceID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k, e := range m.memory {
		if workspaceID != "" && e.WorkspaceID != workspaceID {
			continue
		}
		if !e.Live(now) {
			delete(m.memory, k)
			n++
		}
	}
	return n, nil
}

// DeleteAllMemory deletes every entry of the scope.
func (m *Store) DeleteAllMemory(_ context.Context, scope agentmem.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k, e := range m.memory {
		if inScope(e, scope) {
			delete(m.memory, k)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// CRM Store
// ──────────────────────────────────────────────────

// InsertThread persists a new thread.
func (m *Store) InsertThread(_ context.Context, t *crm.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	m.threads[t.ID.String()] = &cp
	return nil
}

// GetThread returns the thread if it belongs to the workspace.
func (m *Store) GetThread(_ context.Context, workspaceID string, threadID id.ID) (*crm.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[threadID.String()]
	if !ok || t.WorkspaceID != workspaceID {
		return nil, innosupps.ErrThreadNotFound
	}
	cp := *t
	return &cp, nil
}

// FindThreadByProviderID looks a thread up by the mail provider's id.
func (m *Store) FindThreadByProviderID(_ context.Context, workspaceID, providerThreadID string) (*crm.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.threads {
		if t.WorkspaceID == workspaceID && t.ProviderThreadID == providerThreadID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, innosupps.ErrThreadNotFound
}

// InsertMessage persists a message.
func (m *Store) InsertMessage(_ context.Context, msg *crm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tid := msg.ThreadID.String()
	if msg.ProviderMessageID != "" {
		for _, existing := range m.messages[tid] {
			if existing.ProviderMessageID == msg.ProviderMessageID {
				return fmt.Errorf("%w: %s", innosupps.ErrDuplicateMessage, msg.ProviderMessageID)
			}
		}
	}
	cp := *msg
	m.messages[tid] = append(m.messages[tid], &cp)
	return nil
}

// FindMessageByProviderID looks a message up by the mail provider's id.
func (m *Store) FindMessageByProviderID(_ context.Context, threadID id.ID, providerMessageID string) (*crm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if providerMessageID == "" {
		return nil, innosupps.ErrMessageNotFound
	}
	for _, msg := range m.messages[threadID.String()] {
		if msg.ProviderMessageID == providerMessageID {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, innosupps.ErrMessageNotFound
}

// LatestMessage returns the newest message of the thread.
func (m *Store) LatestMessage(_ context.Context, threadID id.ID) (*crm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[threadID.String()]
	if len(msgs) == 0 {
		return nil, innosupps.ErrMessageNotFound
	}
	latest := msgs[0]
	for _, msg := range msgs[1:] {
		if !msg.CreatedAt.Before(latest.CreatedAt) {
			latest = msg
		}
	}
	cp := *latest
	return &cp, nil
}

// ListMessages returns the thread's messages oldest first.
func (m *Store) ListMessages(_ context.Context, threadID id.ID) ([]*crm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[threadID.String()]
	out := make([]*crm.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

// InsertProspect persists a prospect.
func (m *Store) InsertProspect(_ context.Context, p *crm.Prospect) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.prospects[p.ID.String()] = &cp
	return nil
}

// GetProspect returns the prospect if it belongs to the workspace.
func (m *Store) GetProspect(_ context.Context, workspaceID string, prospectID id.ID) (*crm.Prospect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prospects[prospectID.String()]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, innosupps.ErrProspectNotFound
	}
	cp := *p
	return &cp, nil
}

// FindProspectByEmail matches the address case-insensitively.
func (m *Store) FindProspectByEmail(_ context.Context, workspaceID, email string) (*crm.Prospect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.prospects {
		if p.WorkspaceID == workspaceID && strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, innosupps.ErrProspectNotFound
}

// UpdateProspect overwrites a prospect.
func (m *Store) UpdateProspect(_ context.Context, p *crm.Prospect) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.ID.String()
	if _, ok := m.prospects[key]; !ok {
		return innosupps.ErrProspectNotFound
	}
	cp := *p
	m.prospects[key] = &cp
	return nil
}

// InsertMeeting persists a meeting.
func (m *Store) InsertMeeting(_ context.Context, mt *crm.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *mt
	m.meetings[mt.ID.String()] = &cp
	return nil
}

// ListMeetings returns the workspace's meetings ordered by start time.
func (m *Store) ListMeetings(_ context.Context, workspaceID string) ([]*crm.Meeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*crm.Meeting
	for _, mt := range m.meetings {
		if mt.WorkspaceID == workspaceID {
			cp := *mt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartsAt.Before(out[k].StartsAt) })
	return out, nil
}

// InsertCall persists an analyzed call.
func (m *Store) InsertCall(_ context.Context, c *crm.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.calls[c.ID.String()] = &cp
	return nil
}

// InsertResearchBrief persists a research brief.
func (m *Store) InsertResearchBrief(_ context.Context, b *crm.ResearchBrief) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *b
	m.briefs[b.ID.String()] = &cp
	return nil
}

// InsertGrowthPlan persists a growth plan.
func (m *Store) InsertGrowthPlan(_ context.Context, p *crm.GrowthPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.plans[p.ID.String()] = &cp
	return nil
}

// PutMembership creates or replaces the user's role in the workspace.
func (m *Store) PutMembership(_ context.Context, mb *crm.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *mb
	m.memberships[mb.WorkspaceID+":"+mb.UserID] = &cp
	return nil
}

// GetMembership returns the user's membership in the workspace.
func (m *Store) GetMembership(_ context.Context, workspaceID, userID string) (*crm.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mb, ok := m.memberships[workspaceID+":"+userID]
	if !ok {
		return nil, innosupps.ErrNotMember
	}
	cp := *mb
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Inspection helpers for tests
// ──────────────────────────────────────────────────

// Calls returns every stored call of the workspace.
func (m *Store) Calls(workspaceID string) []*crm.Call {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*crm.Call
	for _, c := range m.calls {
		if c.WorkspaceID == workspaceID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

// ResearchBriefs returns every stored research brief of the workspace.
func (m *Store) ResearchBriefs(workspaceID string) []*crm.ResearchBrief {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*crm.ResearchBrief
	for _, b := range m.briefs {
		if b.WorkspaceID == workspaceID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out
}

// GrowthPlans returns every stored growth plan of the workspace.
func (m *Store) GrowthPlans(workspaceID string) []*crm.GrowthPlan {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*crm.GrowthPlan
	for _, p := range m.plans {
		if p.WorkspaceID == workspaceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}
