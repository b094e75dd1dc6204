package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu       sync.Mutex
	settings model.Settings
	cursor   model.CampaignCursor
	counters model.DailyCounters
	runState model.EngineRunState
	targets  []model.Target
	leads    map[int64]*model.Lead
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		settings: model.Settings{
			SMTPPort:           587,
			SMTPEncryption:     "TLS",
			DailyEmailLimit:    50,
			DailySerpLimit:     100,
			InventoryThreshold: 200,
		},
		leads:  make(map[int64]*model.Lead),
		nextID: 1,
	}
}

var _ store.Store = (*memStore)(nil)

func (m *memStore) GetSettings(context.Context) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings
	return &s, nil
}

func (m *memStore) UpdateSettings(_ context.Context, s *model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = *s
	return nil
}

func (m *memStore) GetCursor(context.Context) (*model.CampaignCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cursor
	return &c, nil
}

func (m *memStore) UpdateCursor(_ context.Context, c *model.CampaignCursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = *c
	return nil
}

func (m *memStore) GetCounters(context.Context) (*model.DailyCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters
	return &c, nil
}

func (m *memStore) UpdateCounters(_ context.Context, c *model.DailyCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = *c
	return nil
}

func (m *memStore) GetRunState(context.Context) (*model.EngineRunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.runState
	return &s, nil
}

func (m *memStore) SetEnabled(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runState.IsEnabled = enabled
	return nil
}

func (m *memStore) SetRunning(_ context.Context, running bool, lastRun *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runState.IsRunning = running
	if lastRun != nil {
		t := lastRun.UTC()
		m.runState.LastRunDate = &t
	}
	return nil
}

func (m *memStore) ListTargets(context.Context) ([]model.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Target, len(m.targets))
	copy(out, m.targets)
	return out, nil
}

func (m *memStore) CreateTarget(_ context.Context, t *model.Target) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	m.targets = append(m.targets, *t)
	return t.ID, nil
}

func (m *memStore) DeleteTarget(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.targets {
		if t.ID == id {
			m.targets = append(m.targets[:i], m.targets[i+1:]...)
			return nil
		}
	}
	return errors.New("target not found")
}

func (m *memStore) CreateLead(_ context.Context, l *model.Lead) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextID
	m.nextID++
	if l.Status == "" {
		l.Status = model.LeadStatusScraped
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	m.leads[l.ID] = &cp
	return l.ID, nil
}

func (m *memStore) GetLead(_ context.Context, id int64) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, errors.New("lead not found")
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, l := range m.leads {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) LeadsByStatus(_ context.Context, status model.LeadStatus) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, l := range m.leads {
		if l.Status == status {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CountLeadsByStatus(_ context.Context, status model.LeadStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.leads {
		if l.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memStore) LeadsForOutreach(_ context.Context, afterID int64, limit int) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, l := range m.leads {
		if l.Status == model.LeadStatusAudited && l.Email != "" && l.ID > afterID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkAudited(_ context.Context, leadID int64, out model.AuditOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[leadID]
	if !ok || l.Status != model.LeadStatusScraped {
		return errors.New("scraped lead not found")
	}
	if out.Email != "" {
		l.Email = out.Email
	}
	l.LoadTime = out.LoadTime
	l.SSLStatus = out.SSLStatus
	l.H1Count = out.H1Count
	l.PriorityScore = out.PriorityScore
	l.AuditNotes = out.Notes
	l.Status = model.LeadStatusAudited
	return nil
}

func (m *memStore) RecordEmailSent(_ context.Context, leadID int64, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[leadID]
	if !ok || l.Status != model.LeadStatusAudited {
		return errors.New("audited lead not found")
	}
	l.Status = model.LeadStatusEmailed
	m.cursor.LastEmailedLeadID = leadID
	m.counters.EmailsSentToday++
	t := sentAt.UTC()
	m.counters.LastEmailDate = &t
	return nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }
