package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
)

// maxPaginationStart is the offset at which a target is considered
// exhausted and the cursor rotates to the next one.
const maxPaginationStart = 100

// TargetCursor walks the target ring, persisting its position so campaign
// runs resume where the previous one stopped.
type TargetCursor struct {
	store store.Store
}

// NewTargetCursor creates a cursor over the stored targets.
func NewTargetCursor(s store.Store) *TargetCursor {
	return &TargetCursor{store: s}
}

// Current returns the target the cursor points at, or (nil, nil) when no
// targets are configured. The ring index is taken modulo the ring length,
// so positions stay valid after targets are removed.
func (c *TargetCursor) Current(ctx context.Context) (*model.Target, error) {
	targets, err := c.store.ListTargets(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cursor: list targets")
	}
	if len(targets) == 0 {
		return nil, nil
	}

	cur, err := c.store.GetCursor(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cursor: load")
	}

	t := targets[cur.IndustryIdx%len(targets)]
	return &t, nil
}

// Position returns the persisted pagination offset for the current target.
func (c *TargetCursor) Position(ctx context.Context) (int, error) {
	cur, err := c.store.GetCursor(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "cursor: load")
	}
	return cur.PaginationStart, nil
}

// Advance moves to the next target in the ring and resets pagination.
func (c *TargetCursor) Advance(ctx context.Context) error {
	targets, err := c.store.ListTargets(ctx)
	if err != nil {
		return eris.Wrap(err, "cursor: list targets")
	}
	if len(targets) == 0 {
		return nil
	}

	cur, err := c.store.GetCursor(ctx)
	if err != nil {
		return eris.Wrap(err, "cursor: load")
	}

	cur.IndustryIdx = (cur.IndustryIdx + 1) % len(targets)
	cur.PaginationStart = 0
	return eris.Wrap(c.store.UpdateCursor(ctx, cur), "cursor: advance")
}

// AdvancePagination adds n to the pagination offset. Reaching the end of
// the result window rotates to the next target instead.
func (c *TargetCursor) AdvancePagination(ctx context.Context, n int) error {
	cur, err := c.store.GetCursor(ctx)
	if err != nil {
		return eris.Wrap(err, "cursor: load")
	}

	if cur.PaginationStart+n >= maxPaginationStart {
		return c.Advance(ctx)
	}

	cur.PaginationStart += n
	return eris.Wrap(c.store.UpdateCursor(ctx, cur), "cursor: advance pagination")
}

// RingLength returns the number of configured targets.
func (c *TargetCursor) RingLength(ctx context.Context) (int, error) {
	targets, err := c.store.ListTargets(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "cursor: list targets")
	}
	return len(targets), nil
}
