package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/mail"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/groq"
)

// fallbackOpener is used when the LLM cannot produce a personalized line.
// Personalization failure never blocks a send.
const fallbackOpener = "I took a quick look at your website and noticed a few things that might be costing you customers."

// Notifier is the subset of the Telegram client the engine needs.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
	SendAlert(ctx context.Context, text string) error
}

// BatchResult reports one outreach batch.
type BatchResult struct {
	Sent   int
	Failed int
}

// OutreachSequencer emails AUDITED leads in id order, resuming past the
// persisted last-emailed cursor.
type OutreachSequencer struct {
	store        store.Store
	quota        *QuotaGate
	mailer       mail.Mailer
	sleep        SleepFunc
	now          func() time.Time
	sendInterval time.Duration
}

// NewOutreachSequencer creates a sequencer.
func NewOutreachSequencer(s store.Store, quota *QuotaGate, mailer mail.Mailer, sleep SleepFunc, now func() time.Time, sendInterval time.Duration) *OutreachSequencer {
	if sleep == nil {
		sleep = RealSleep
	}
	if now == nil {
		now = time.Now
	}
	return &OutreachSequencer{
		store:        s,
		quota:        quota,
		mailer:       mailer,
		sleep:        sleep,
		now:          now,
		sendInterval: sendInterval,
	}
}

// RunBatch sends up to the remaining daily quota of emails. Send failures
// are alerted and skipped; the cursor only moves on successful sends, so a
// failed lead stays AUDITED and out of future batches once the cursor
// passes it.
func (o *OutreachSequencer) RunBatch(ctx context.Context, settings *model.Settings, llm groq.Client, notify Notifier) (*BatchResult, error) {
	result := &BatchResult{}

	remaining, err := o.quota.EmailsRemaining(ctx)
	if err != nil {
		return result, err
	}
	if remaining == 0 {
		zap.L().Info("daily email quota exhausted, skipping outreach")
		return result, nil
	}

	cursor, err := o.store.GetCursor(ctx)
	if err != nil {
		return result, eris.Wrap(err, "outreach: load cursor")
	}

	leads, err := o.store.LeadsForOutreach(ctx, cursor.LastEmailedLeadID, remaining)
	if err != nil {
		return result, eris.Wrap(err, "outreach: load leads")
	}
	if len(leads) == 0 {
		zap.L().Info("no audited leads ready for outreach")
		return result, nil
	}

	for i, lead := range leads {
		opener, err := llm.Personalize(ctx, lead.AuditNotes)
		if err != nil {
			zap.L().Warn("personalization failed, using generic opener",
				zap.Int64("lead_id", lead.ID),
				zap.Error(err),
			)
			opener = fallbackOpener
		}

		msg := mail.OutreachMessage(lead.Email, lead.BusinessName, opener)
		if err := o.mailer.Send(ctx, settings, msg); err != nil {
			result.Failed++
			zap.L().Error("email send failed",
				zap.Int64("lead_id", lead.ID),
				zap.String("to", lead.Email),
				zap.Error(err),
			)
			if notify != nil {
				_ = notify.SendAlert(ctx, fmt.Sprintf("Failed to email <b>%s</b>: %s", lead.BusinessName, eris.Cause(err).Error()))
			}
			continue
		}

		if err := o.store.RecordEmailSent(ctx, lead.ID, o.now().UTC()); err != nil {
			return result, eris.Wrapf(err, "outreach: record send for lead %d", lead.ID)
		}
		result.Sent++

		zap.L().Info("outreach email sent",
			zap.Int64("lead_id", lead.ID),
			zap.String("business", lead.BusinessName),
		)

		if i < len(leads)-1 {
			if err := o.sleep(ctx, o.sendInterval); err != nil {
				return result, eris.Wrap(err, "outreach: interrupted")
			}
		}
	}

	return result, nil
}
