// Package quota tracks per-session usage tiers and daily feature limits.
package quota

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/types"
)

// Tier is a session's usage plan.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Feature names a metered operation.
type Feature string

const (
	FeatureSummary Feature = "summary"
	FeatureChat    Feature = "chat"
)

const dateLayout = "2006-01-02"

// User is the quota state of one session.
type User struct {
	SessionID     string          `json:"session_id"`
	Tier          Tier            `json:"tier"`
	Counts        map[Feature]int `json:"counts"`
	LastResetDate string          `json:"last_reset_date"`
}

func (u *User) clone() User {
	out := *u
	out.Counts = make(map[Feature]int, len(u.Counts))
	for f, n := range u.Counts {
		out.Counts[f] = n
	}
	return out
}

// Manager holds sessions in memory. Counters reset when the calendar day
// changes.
type Manager struct {
	mu     sync.Mutex
	users  map[string]*User
	limits map[Feature]int
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager with the free tier limits from cfg. A
// negative limit disables metering for that feature.
func NewManager(cfg config.QuotaConfig, logger *slog.Logger) *Manager {
	return &Manager{
		users: make(map[string]*User),
		limits: map[Feature]int{
			FeatureSummary: cfg.FreeSummaryLimit,
			FeatureChat:    cfg.FreeChatLimit,
		},
		now:    time.Now,
		logger: logger.With("component", "quota"),
	}
}

// Touch returns the session's state, creating a free user on first sight
// and resetting counters on a new day.
func (m *Manager) Touch(sessionID string) User {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.today()
	u, ok := m.users[sessionID]
	if !ok {
		u = &User{
			SessionID:     sessionID,
			Tier:          TierFree,
			Counts:        m.zeroCounts(),
			LastResetDate: today,
		}
		m.users[sessionID] = u
		m.logger.Debug("session created", "session", sessionID)
	}
	m.resetIfStale(u, today)
	return u.clone()
}

// Get returns the session's state without creating it.
func (m *Manager) Get(sessionID string) (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[sessionID]
	if !ok {
		return User{}, false
	}
	m.resetIfStale(u, m.today())
	return u.clone(), true
}

// Consume records one use of f. Free sessions at their limit get an error
// wrapping types.ErrQuotaExceeded and the counter is left unchanged. Pro
// sessions are counted but never refused.
func (m *Manager) Consume(sessionID string, f Feature) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[sessionID]
	if !ok {
		return User{}, types.ErrSessionNotFound
	}
	m.resetIfStale(u, m.today())

	if limit, metered := m.limits[f]; u.Tier == TierFree && metered && limit >= 0 && u.Counts[f] >= limit {
		m.logger.Info("quota exceeded", "session", sessionID, "feature", f, "limit", limit)
		return u.clone(), fmt.Errorf("%s: %w", f, types.ErrQuotaExceeded)
	}
	u.Counts[f]++
	return u.clone(), nil
}

// GrantPro upgrades the session to the pro tier and clears its counters.
func (m *Manager) GrantPro(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[sessionID]
	if !ok {
		return types.ErrSessionNotFound
	}
	u.Tier = TierPro
	u.Counts = m.zeroCounts()
	u.LastResetDate = m.today()
	m.logger.Info("pro access granted", "session", sessionID)
	return nil
}

// Len returns the number of known sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *Manager) today() string {
	return m.now().Format(dateLayout)
}

func (m *Manager) zeroCounts() map[Feature]int {
	counts := make(map[Feature]int, len(m.limits))
	for f := range m.limits {
		counts[f] = 0
	}
	return counts
}

func (m *Manager) resetIfStale(u *User, today string) {
	if u.LastResetDate == today {
		return
	}
	u.Counts = m.zeroCounts()
	u.LastResetDate = today
}
