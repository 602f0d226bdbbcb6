package queue

import (
	"sync"

	"golang.org/x/time/rate"

	innosupps "github.com/simd-personal/Inno-Supps"
)

// Config defines per-queue rate limiting and concurrency.
type Config struct {
	// Name is the broker queue name.
	Name string

	// MaxConcurrency limits how many jobs from this queue run at once in
	// the local pool. Zero means no queue-specific limit.
	MaxConcurrency int

	// RateLimit is the sustained number of job starts per second. Zero
	// disables rate limiting.
	RateLimit float64

	// RateBurst is the token-bucket burst. Defaults to 1 when RateLimit is
	// set.
	RateBurst int
}

type queueState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager enforces queue and workspace limits at job start. It is safe
// for concurrent use.
type Manager struct {
	mu         sync.Mutex
	order      []string
	fallback   string
	queues     map[string]*queueState
	wsDefault  WorkspaceLimit
	workspaces map[string]*workspaceState
}

// NewManager creates a Manager. The order of configs is the priority
// order returned by Names.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		queues:     make(map[string]*queueState, len(configs)),
		workspaces: make(map[string]*workspaceState),
		fallback:   innosupps.QueueDefault,
	}
	for _, cfg := range configs {
		if _, dup := m.queues[cfg.Name]; !dup {
			m.order = append(m.order, cfg.Name)
		}
		m.queues[cfg.Name] = newQueueState(cfg)
	}
	return m
}

// FromConfig builds a Manager from the configured queues and a default
// per-workspace limit.
func FromConfig(queues []innosupps.QueueConfig, ws WorkspaceLimit) *Manager {
	configs := make([]Config, 0, len(queues))
	for _, q := range queues {
		configs = append(configs, Config{
			Name:           q.Name,
			MaxConcurrency: q.MaxConcurrency,
			RateLimit:      q.RateLimit,
			RateBurst:      q.RateBurst,
		})
	}
	m := NewManager(configs...)
	m.wsDefault = ws
	return m
}

func newQueueState(cfg Config) *queueState {
	return &queueState{config: cfg, limiter: newLimiter(cfg.RateLimit, cfg.RateBurst)}
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Names returns the configured queues in priority order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Normalize maps an unknown or empty queue name to the default queue.
func (m *Manager) Normalize(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[name]; ok {
		return name
	}
	return m.fallback
}

// Acquire reports whether a job from queue in workspaceID may start now.
// On true the caller must call Release when the job ends. Concurrency
// caps are checked before any rate token is spent.
func (m *Manager) Acquire(queue, workspaceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := m.queues[queue]
	if qs != nil && qs.config.MaxConcurrency > 0 && qs.active >= qs.config.MaxConcurrency {
		return false
	}
	ws := m.workspace(queue, workspaceID)
	if ws != nil && ws.limit.MaxConcurrency > 0 && ws.active >= ws.limit.MaxConcurrency {
		return false
	}

	if qs != nil && qs.limiter != nil && !qs.limiter.Allow() {
		return false
	}
	if ws != nil && ws.limiter != nil && !ws.limiter.Allow() {
		return false
	}

	if qs != nil {
		qs.active++
	}
	if ws != nil {
		ws.active++
	}
	return true
}

// Release gives back the slot taken by Acquire.
func (m *Manager) Release(queue, workspaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qs := m.queues[queue]; qs != nil && qs.active > 0 {
		qs.active--
	}
	if ws := m.workspaces[workspaceKey(queue, workspaceID)]; ws != nil && ws.active > 0 {
		ws.active--
	}
}

// SetQueueConfig updates or adds a queue. A new queue is appended at the
// lowest priority. The active count survives reconfiguration.
func (m *Manager) SetQueueConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := newQueueState(cfg)
	if existing := m.queues[cfg.Name]; existing != nil {
		qs.active = existing.active
	} else {
		m.order = append(m.order, cfg.Name)
	}
	m.queues[cfg.Name] = qs
}

// ActiveCount returns the number of in-flight jobs for a queue.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil {
		return qs.active
	}
	return 0
}
