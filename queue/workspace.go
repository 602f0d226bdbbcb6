package queue

import "golang.org/x/time/rate"

// WorkspaceLimit caps one workspace on one queue.
type WorkspaceLimit struct {
	// MaxConcurrency limits simultaneous jobs. Zero is unlimited.
	MaxConcurrency int

	// RateLimit is the sustained job starts per second. Zero disables it.
	RateLimit float64

	// RateBurst is the token-bucket burst for RateLimit.
	RateBurst int
}

func (l WorkspaceLimit) isZero() bool {
	return l.MaxConcurrency <= 0 && l.RateLimit <= 0
}

type workspaceState struct {
	limit   WorkspaceLimit
	limiter *rate.Limiter
	active  int
}

func workspaceKey(queue, workspaceID string) string {
	return queue + ":" + workspaceID
}

// workspace returns the state for a queue and workspace pair, creating
// it from the default limit on first use. It returns nil when the pair is
// unlimited. Callers hold m.mu.
func (m *Manager) workspace(queue, workspaceID string) *workspaceState {
	if workspaceID == "" {
		return nil
	}
	key := workspaceKey(queue, workspaceID)
	if ws, ok := m.workspaces[key]; ok {
		return ws
	}
	if m.wsDefault.isZero() {
		return nil
	}
	ws := newWorkspaceState(m.wsDefault)
	m.workspaces[key] = ws
	return ws
}

func newWorkspaceState(l WorkspaceLimit) *workspaceState {
	return &workspaceState{limit: l, limiter: newLimiter(l.RateLimit, l.RateBurst)}
}

// SetWorkspaceLimit overrides the default limit for one workspace on one
// queue. The active count survives reconfiguration.
func (m *Manager) SetWorkspaceLimit(queue, workspaceID string, l WorkspaceLimit) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := workspaceKey(queue, workspaceID)
	ws := newWorkspaceState(l)
	if existing := m.workspaces[key]; existing != nil {
		ws.active = existing.active
	}
	m.workspaces[key] = ws
}

// WorkspaceActiveCount returns the in-flight jobs of a workspace on a
// queue.
func (m *Manager) WorkspaceActiveCount(queue, workspaceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws := m.workspaces[workspaceKey(queue, workspaceID)]; ws != nil {
		return ws.active
	}
	return 0
}
