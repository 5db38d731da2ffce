package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/a2alab/agentbridge/domain"
)

// Memory is an in-memory Directory suitable for fixed deployments and tests.
// All methods are safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	records map[string]*domain.AgentRecord

	// staleAfter marks records stale when their last activity is older than
	// this window. Zero disables staleness.
	staleAfter time.Duration

	now func() time.Time
}

// NewMemory creates an empty in-memory directory. staleAfter of zero means
// records never go stale.
func NewMemory(staleAfter time.Duration) *Memory {
	return &Memory{
		records:    make(map[string]*domain.AgentRecord),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Register creates or replaces the record for rec.AgentID. The original
// registration time is preserved on re-registration.
func (m *Memory) Register(_ context.Context, rec *domain.AgentRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	if cp.RegisteredAt.IsZero() {
		cp.RegisteredAt = m.now()
	}
	if prev, ok := m.records[cp.AgentID]; ok {
		cp.RegisteredAt = prev.RegisteredAt
	}
	m.records[cp.AgentID] = &cp
	return nil
}

// Resolve implements Directory.
func (m *Memory) Resolve(_ context.Context, token string) (*domain.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rec, ok := m.records[token]; ok && !m.stale(rec) {
		cp := *rec
		return &cp, nil
	}

	var best *domain.AgentRecord
	for id, rec := range m.records {
		if !strings.HasPrefix(id, token) || m.stale(rec) {
			continue
		}
		if best == nil || rec.RegisteredAt.After(best.RegisteredAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// Heartbeat implements Directory.
func (m *Memory) Heartbeat(_ context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[agentID]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	rec.LastSeen = &now
	return nil
}

// ListActive implements Directory.
func (m *Memory) ListActive(_ context.Context) ([]domain.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.AgentRecord, 0, len(m.records))
	for _, rec := range m.records {
		if m.stale(rec) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (m *Memory) stale(rec *domain.AgentRecord) bool {
	if m.staleAfter <= 0 {
		return false
	}
	last := rec.RegisteredAt
	if rec.LastSeen != nil && rec.LastSeen.After(last) {
		last = *rec.LastSeen
	}
	return m.now().Sub(last) > m.staleAfter
}
