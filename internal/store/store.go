// Package store persists campaign state: leads, targets, and the singleton
// settings/cursor/counters/run-state records. Singletons are created with
// defaults by Migrate and updated in place.
package store

import (
	"context"
	"time"

	"github.com/sells-group/outreach-engine/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the campaign engine.
type Store interface {
	// Singletons
	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s *model.Settings) error
	GetCursor(ctx context.Context) (*model.CampaignCursor, error)
	UpdateCursor(ctx context.Context, c *model.CampaignCursor) error
	GetCounters(ctx context.Context) (*model.DailyCounters, error)
	UpdateCounters(ctx context.Context, c *model.DailyCounters) error
	GetRunState(ctx context.Context) (*model.EngineRunState, error)
	SetEnabled(ctx context.Context, enabled bool) error
	SetRunning(ctx context.Context, running bool, lastRun *time.Time) error

	// Targets
	ListTargets(ctx context.Context) ([]model.Target, error)
	CreateTarget(ctx context.Context, t *model.Target) (int64, error)
	DeleteTarget(ctx context.Context, id int64) error

	// Leads
	CreateLead(ctx context.Context, l *model.Lead) (int64, error)
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	LeadsByStatus(ctx context.Context, status model.LeadStatus) ([]model.Lead, error)
	CountLeadsByStatus(ctx context.Context, status model.LeadStatus) (int, error)

	// LeadsForOutreach returns AUDITED leads with a non-empty email and
	// id > afterID, ordered by id ascending, capped at limit.
	LeadsForOutreach(ctx context.Context, afterID int64, limit int) ([]model.Lead, error)

	// MarkAudited finalizes a SCRAPED lead as AUDITED in a single update.
	MarkAudited(ctx context.Context, leadID int64, out model.AuditOutcome) error

	// RecordEmailSent flips the lead to EMAILED, advances the cursor's
	// last_emailed_lead_id, and increments the daily counters in one
	// transaction so no partial state is ever visible.
	RecordEmailSent(ctx context.Context, leadID int64, sentAt time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
