package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

// InventoryCounts holds lead counts by status.
type InventoryCounts struct {
	Scraped int
	Audited int
	Emailed int
}

// InventoryProbe reports lead inventory levels so the engine can decide
// whether a run needs a scraping phase at all.
type InventoryProbe struct {
	store store.Store
}

// NewInventoryProbe creates an inventory probe.
func NewInventoryProbe(s store.Store) *InventoryProbe {
	return &InventoryProbe{store: s}
}

// Counts returns the lead counts by status.
func (p *InventoryProbe) Counts(ctx context.Context) (*InventoryCounts, error) {
	scraped, err := p.store.CountLeadsByStatus(ctx, model.LeadStatusScraped)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: count scraped")
	}
	audited, err := p.store.CountLeadsByStatus(ctx, model.LeadStatusAudited)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: count audited")
	}
	emailed, err := p.store.CountLeadsByStatus(ctx, model.LeadStatusEmailed)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: count emailed")
	}
	return &InventoryCounts{Scraped: scraped, Audited: audited, Emailed: emailed}, nil
}

// NeedsScraping reports whether the audited backlog is below the threshold.
func (p *InventoryProbe) NeedsScraping(ctx context.Context, threshold int) (bool, int, error) {
	audited, err := p.store.CountLeadsByStatus(ctx, model.LeadStatusAudited)
	if err != nil {
		return false, 0, eris.Wrap(err, "inventory: count audited")
	}
	return audited < threshold, audited, nil
}
