// Package locks implements editing locks for inbox items. A lock keeps two
// dashboard users from editing the same reply draft at once. Locks are held
// in memory on the single serving node and expire after a TTL; an expired
// lock can be taken over by the next writer.
package locks

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maildeskhq/maildesk/internal/observability"
)

// DefaultTTL is how long a lock lives without renewal.
const DefaultTTL = 15 * time.Minute

// ErrHeld is returned when another owner holds an unexpired lock.
var ErrHeld = errors.New("item is locked by another user")

// Lock is an editing lease on one item.
type Lock struct {
	ItemID     string    `json:"item_id"`
	Owner      string    `json:"owner"`
	Token      string    `json:"token"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Manager hands out and releases editing locks.
type Manager struct {
	mu      sync.Mutex
	ttl     time.Duration
	locks   map[string]*Lock
	metrics *observability.Metrics

	now func() time.Time
}

// NewManager creates a lock manager. A non-positive ttl falls back to
// DefaultTTL; metrics may be nil.
func NewManager(ttl time.Duration, metrics *observability.Metrics) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		ttl:     ttl,
		locks:   make(map[string]*Lock),
		metrics: metrics,
		now:     time.Now,
	}
}

// Acquire takes the editing lock on an item. Re-acquiring by the same owner
// extends the lease and keeps the token. A lock held by someone else returns
// ErrHeld until it expires; after that the new owner wins.
func (m *Manager) Acquire(itemID, owner string) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.locks[itemID]; ok && existing.ExpiresAt.After(now) {
		if existing.Owner != owner {
			return nil, ErrHeld
		}
		existing.ExpiresAt = now.Add(m.ttl)
		out := *existing
		return &out, nil
	}

	lock := &Lock{
		ItemID:     itemID,
		Owner:      owner,
		Token:      uuid.NewString(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	m.locks[itemID] = lock
	m.updateGauge(now)

	out := *lock
	return &out, nil
}

// Release gives the lock back. It is idempotent: releasing an expired,
// absent, or foreign-token lock is a no-op.
func (m *Manager) Release(itemID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[itemID]
	if !ok || existing.Token != token {
		return
	}
	delete(m.locks, itemID)
	m.updateGauge(m.now())
}

// Get returns the active lock on an item, or nil when unlocked or expired.
func (m *Manager) Get(itemID string) *Lock {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[itemID]
	if !ok || !existing.ExpiresAt.After(m.now()) {
		return nil
	}
	out := *existing
	return &out
}

// Active returns all unexpired locks.
func (m *Manager) Active() []Lock {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []Lock
	for _, l := range m.locks {
		if l.ExpiresAt.After(now) {
			out = append(out, *l)
		}
	}
	return out
}

// updateGauge recomputes the active-lock count and drops expired entries.
// Caller must hold m.mu.
func (m *Manager) updateGauge(now time.Time) {
	active := 0
	for id, l := range m.locks {
		if l.ExpiresAt.After(now) {
			active++
		} else {
			delete(m.locks, id)
		}
	}
	if m.metrics != nil {
		m.metrics.ActiveLocks.Set(float64(active))
	}
}
