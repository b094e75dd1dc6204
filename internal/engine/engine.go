// Package engine runs the daily campaign state machine: precheck,
// inventory check, scraping, audit, cooldown, outreach, report.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-engine/internal/mail"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/groq"
	"github.com/sells-group/outreach-engine/pkg/serpapi"
	"github.com/sells-group/outreach-engine/pkg/siteaudit"
	"github.com/sells-group/outreach-engine/pkg/telegram"
)

// Config holds run pacing. Zero values are replaced with production
// defaults; tests shrink them to make runs instant.
type Config struct {
	Cooldown        time.Duration
	CooldownSegment time.Duration
	SendInterval    time.Duration
	AuditInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = time.Hour
	}
	if c.CooldownSegment <= 0 {
		c.CooldownSegment = 10 * time.Minute
	}
	if c.SendInterval <= 0 {
		c.SendInterval = 10 * time.Minute
	}
	if c.AuditInterval <= 0 {
		c.AuditInterval = 2 * time.Second
	}
	return c
}

// Engine composes the campaign components into one guarded run entry point.
// Provider clients are built per run from the stored settings because
// credentials are operator-editable at any time.
type Engine struct {
	store     store.Store
	cfg       Config
	pipeline  *LeadPipeline
	cursor    *TargetCursor
	quota     *QuotaGate
	inventory *InventoryProbe

	serpFactory     func(apiKey string) serpapi.Client
	groqFactory     func(apiKey string) groq.Client
	notifierFactory func(botToken, chatID string) Notifier
	auditClient     siteaudit.Client
	mailer          mail.Mailer

	sleep   SleepFunc
	now     func() time.Time
	limiter *rate.Limiter

	// mu guards against concurrent runs; TryLock makes a second caller
	// fail fast instead of queueing.
	mu sync.Mutex
}

// Option configures the engine.
type Option func(*Engine)

// WithSleep overrides the cancellable sleep used for all pacing waits.
func WithSleep(sleep SleepFunc) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSerpFactory overrides how the search client is built from settings.
func WithSerpFactory(f func(apiKey string) serpapi.Client) Option {
	return func(e *Engine) { e.serpFactory = f }
}

// WithGroqFactory overrides how the LLM client is built from settings.
func WithGroqFactory(f func(apiKey string) groq.Client) Option {
	return func(e *Engine) { e.groqFactory = f }
}

// WithNotifierFactory overrides how the notifier is built from settings.
func WithNotifierFactory(f func(botToken, chatID string) Notifier) Option {
	return func(e *Engine) { e.notifierFactory = f }
}

// WithAuditClient overrides the site audit client.
func WithAuditClient(c siteaudit.Client) Option {
	return func(e *Engine) { e.auditClient = c }
}

// WithMailer overrides the SMTP transport.
func WithMailer(m mail.Mailer) Option {
	return func(e *Engine) { e.mailer = m }
}

// WithRateLimiter overrides the search-query pacer.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// New creates an engine over the store.
func New(s store.Store, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		cfg:   cfg.withDefaults(),
		serpFactory: func(apiKey string) serpapi.Client {
			return serpapi.NewClient(apiKey)
		},
		groqFactory: func(apiKey string) groq.Client {
			return groq.NewClient(apiKey)
		},
		notifierFactory: func(botToken, chatID string) Notifier {
			return telegram.NewClient(botToken, chatID)
		},
		auditClient: siteaudit.NewClient(),
		mailer:      mail.NewSMTPMailer(),
		sleep:       RealSleep,
		now:         time.Now,
		limiter:     rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, o := range opts {
		o(e)
	}

	e.pipeline = NewLeadPipeline(s)
	e.cursor = NewTargetCursor(s)
	e.quota = NewQuotaGate(s, e.now)
	e.inventory = NewInventoryProbe(s)
	return e
}

// Run executes one full campaign cycle. It never panics out: unexpected
// failures are recovered, alerted, and turned into a failed result.
// A second concurrent call returns immediately with no side effects.
func (e *Engine) Run(ctx context.Context) *model.RunResult {
	if !e.mu.TryLock() {
		return &model.RunResult{Success: false, Message: "engine run already in progress"}
	}
	defer e.mu.Unlock()

	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("engine run starting")

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		log.Error("load settings", zap.Error(err))
		return &model.RunResult{Success: false, Message: "failed to load settings"}
	}

	var notifier Notifier
	if settings.TelegramBotToken != "" && settings.TelegramChatID != "" {
		notifier = e.notifierFactory(settings.TelegramBotToken, settings.TelegramChatID)
	}

	if result := e.precheck(ctx, settings, notifier, log); result != nil {
		return result
	}

	if err := e.store.SetRunning(ctx, true, nil); err != nil {
		log.Error("set running", zap.Error(err))
		return &model.RunResult{Success: false, Message: "failed to mark run in progress"}
	}
	defer func() {
		finished := e.now().UTC()
		cleanupCtx := context.WithoutCancel(ctx)
		if err := e.store.SetRunning(cleanupCtx, false, &finished); err != nil {
			log.Error("clear running flag", zap.Error(err))
		}
	}()

	result := &model.RunResult{Success: true, Message: "run completed"}
	e.runPhases(ctx, settings, notifier, log, result)

	// The report runs on every exit path, including after a recovered panic.
	e.phaseReport(ctx, notifier, log)

	log.Info("engine run finished", zap.Bool("success", result.Success), zap.String("message", result.Message))
	return result
}

// precheck validates the run preconditions. A non-nil result aborts the run.
func (e *Engine) precheck(ctx context.Context, settings *model.Settings, notifier Notifier, log *zap.Logger) *model.RunResult {
	state, err := e.store.GetRunState(ctx)
	if err != nil {
		log.Error("load run state", zap.Error(err))
		return &model.RunResult{Success: false, Message: "failed to load run state"}
	}
	if !state.IsEnabled {
		log.Info("engine is disabled, skipping run")
		return &model.RunResult{Success: false, Message: "engine is disabled"}
	}

	fail := func(reason string) *model.RunResult {
		log.Warn("precheck failed", zap.String("reason", reason))
		e.alert(ctx, notifier, "❌ "+reason)
		return &model.RunResult{Success: false, Message: reason}
	}

	if settings.SerpAPIKey == "" {
		return fail("SerpApi not configured")
	}
	if settings.GroqAPIKey == "" {
		return fail("Groq API not configured")
	}
	if !settings.SMTPConfigured() {
		return fail("SMTP not configured")
	}
	return nil
}

// runPhases executes inventory through outreach, recovering panics so a
// fatal error kills only the run, never the process.
func (e *Engine) runPhases(ctx context.Context, settings *model.Settings, notifier Notifier, log *zap.Logger, result *model.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("engine run panicked", zap.Any("panic", r), zap.Stack("stack"))
			e.alert(ctx, notifier, fmt.Sprintf("🚨 Engine Error: %v", r))
			result.Success = false
			result.Message = fmt.Sprintf("run failed: %v", r)
		}
	}()

	needsScraping := e.phaseInventoryCheck(ctx, settings, notifier, log)

	if needsScraping {
		e.phaseScraping(ctx, settings, notifier, log)
	}

	e.phaseAudit(ctx, notifier, log)

	e.phaseCooldown(ctx, notifier, log)

	e.phaseOutreach(ctx, settings, notifier, log, result)
}

func (e *Engine) phaseInventoryCheck(ctx context.Context, settings *model.Settings, notifier Notifier, log *zap.Logger) bool {
	needs, audited, err := e.inventory.NeedsScraping(ctx, settings.InventoryThreshold)
	if err != nil {
		log.Error("inventory check", zap.Error(err))
		e.alert(ctx, notifier, fmt.Sprintf("⚠️ Inventory Check Error: %s", eris.Cause(err).Error()))
		// Scrape when inventory is unknowable.
		return true
	}

	if needs {
		e.notify(ctx, notifier, fmt.Sprintf("📉 Low inventory (%d/%d). Proceeding with scraping.", audited, settings.InventoryThreshold))
	} else {
		e.notify(ctx, notifier, fmt.Sprintf("📦 Inventory full (%d/%d). Resuming outreach.", audited, settings.InventoryThreshold))
	}
	return needs
}

func (e *Engine) phaseScraping(ctx context.Context, settings *model.Settings, notifier Notifier, log *zap.Logger) {
	log.Info("scraping phase starting")

	ring, err := e.cursor.RingLength(ctx)
	if err != nil {
		log.Error("scraping phase", zap.Error(err))
		e.alert(ctx, notifier, fmt.Sprintf("❌ Scraping Error: %s", eris.Cause(err).Error()))
		return
	}
	if ring == 0 {
		log.Info("no targets configured, skipping scraping")
		e.notify(ctx, notifier, "📭 No targets configured. Skipping scraping.")
		return
	}

	serp := e.serpFactory(settings.SerpAPIKey)

	queriesUsed := 0
	// Advances through empty targets since the last page that produced a
	// lead. A full lap with nothing new means the ring is exhausted.
	idleAdvances := 0

	for queriesUsed < settings.DailySerpLimit {
		if ctx.Err() != nil {
			log.Info("scraping interrupted", zap.Int("queries_used", queriesUsed))
			return
		}

		target, err := e.cursor.Current(ctx)
		if err != nil {
			log.Error("scraping cursor", zap.Error(err))
			break
		}
		if target == nil {
			break
		}

		start, err := e.cursor.Position(ctx)
		if err != nil {
			log.Error("scraping cursor position", zap.Error(err))
			break
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return
		}

		res, err := e.pipeline.ScrapeOnce(ctx, serp, *target, start)
		if err != nil {
			log.Error("search provider failed, aborting scraping phase", zap.Error(err))
			e.alert(ctx, notifier, fmt.Sprintf("❌ Scraping Error: %s", eris.Cause(err).Error()))
			return
		}
		queriesUsed++

		if res.Raw == 0 {
			if err := e.cursor.Advance(ctx); err != nil {
				log.Error("cursor advance", zap.Error(err))
				return
			}
			idleAdvances++
			if idleAdvances >= ring {
				log.Info("target ring exhausted with no progress", zap.Int("queries_used", queriesUsed))
				break
			}
			continue
		}

		if res.Scraped > 0 {
			idleAdvances = 0
		}
		if err := e.cursor.AdvancePagination(ctx, res.Raw); err != nil {
			log.Error("cursor pagination", zap.Error(err))
			return
		}
	}

	log.Info("scraping phase completed", zap.Int("queries_used", queriesUsed))
}

func (e *Engine) phaseAudit(ctx context.Context, notifier Notifier, log *zap.Logger) {
	log.Info("audit phase starting")

	leads, err := e.store.LeadsByStatus(ctx, model.LeadStatusScraped)
	if err != nil {
		log.Error("audit phase", zap.Error(err))
		e.alert(ctx, notifier, fmt.Sprintf("❌ Audit Error: %s", eris.Cause(err).Error()))
		return
	}

	processed := 0
	for i, lead := range leads {
		if ctx.Err() != nil {
			log.Info("audit interrupted", zap.Int("processed", processed))
			return
		}

		if err := e.pipeline.AuditLead(ctx, e.auditClient, lead); err != nil {
			log.Error("audit lead", zap.Int64("lead_id", lead.ID), zap.Error(err))
			continue
		}
		processed++

		if lead.Website != "" && i < len(leads)-1 {
			if err := e.sleep(ctx, e.cfg.AuditInterval); err != nil {
				return
			}
		}
	}

	log.Info("audit phase completed", zap.Int("processed", processed))
}

func (e *Engine) phaseCooldown(ctx context.Context, notifier Notifier, log *zap.Logger) {
	log.Info("cooldown starting", zap.Duration("duration", e.cfg.Cooldown))
	e.notify(ctx, notifier, "⏳ Starting cooldown before outreach begins...")

	segments := int(e.cfg.Cooldown / e.cfg.CooldownSegment)
	if segments < 1 {
		segments = 1
	}
	for i := 0; i < segments; i++ {
		if err := e.sleep(ctx, e.cfg.CooldownSegment); err != nil {
			return
		}
		remaining := e.cfg.Cooldown - time.Duration(i+1)*e.cfg.CooldownSegment
		if remaining > 0 {
			e.notify(ctx, notifier, fmt.Sprintf("⏰ %d minutes remaining in cooldown...", int(remaining.Minutes())))
		}
	}

	log.Info("cooldown completed")
}

func (e *Engine) phaseOutreach(ctx context.Context, settings *model.Settings, notifier Notifier, log *zap.Logger, result *model.RunResult) {
	log.Info("outreach phase starting")

	sequencer := NewOutreachSequencer(e.store, e.quota, e.mailer, e.sleep, e.now, e.cfg.SendInterval)
	llm := e.groqFactory(settings.GroqAPIKey)

	batch, err := sequencer.RunBatch(ctx, settings, llm, notifier)
	if err != nil {
		log.Error("outreach phase", zap.Error(err))
		e.alert(ctx, notifier, fmt.Sprintf("❌ Outreach Error: %s", eris.Cause(err).Error()))
		result.Success = false
		result.Message = "outreach failed"
		return
	}

	result.Message = fmt.Sprintf("run completed: %d emails sent, %d failed", batch.Sent, batch.Failed)
	e.notify(ctx, notifier, fmt.Sprintf("✅ Outreach completed. %d emails sent, %d failed.", batch.Sent, batch.Failed))
	log.Info("outreach phase completed", zap.Int("sent", batch.Sent), zap.Int("failed", batch.Failed))
}

func (e *Engine) phaseReport(ctx context.Context, notifier Notifier, log *zap.Logger) {
	// Best effort: report failures never affect the run result.
	reportCtx := context.WithoutCancel(ctx)

	counters, err := e.store.GetCounters(reportCtx)
	if err != nil {
		log.Error("report counters", zap.Error(err))
		return
	}
	cursor, err := e.store.GetCursor(reportCtx)
	if err != nil {
		log.Error("report cursor", zap.Error(err))
		return
	}
	settings, err := e.store.GetSettings(reportCtx)
	if err != nil {
		log.Error("report settings", zap.Error(err))
		return
	}
	counts, err := e.inventory.Counts(reportCtx)
	if err != nil {
		log.Error("report counts", zap.Error(err))
		return
	}
	target, err := e.cursor.Current(reportCtx)
	if err != nil {
		log.Error("report target", zap.Error(err))
		target = nil
	}

	e.notify(reportCtx, notifier, BuildDailyReport(counters, cursor, settings, target, counts))
	log.Info("daily report sent")
}

func (e *Engine) notify(ctx context.Context, n Notifier, text string) {
	if n == nil {
		return
	}
	if err := n.SendMessage(ctx, text); err != nil {
		zap.L().Warn("notification failed", zap.Error(err))
	}
}

func (e *Engine) alert(ctx context.Context, n Notifier, text string) {
	if n == nil {
		return
	}
	if err := n.SendAlert(ctx, text); err != nil {
		zap.L().Warn("alert failed", zap.Error(err))
	}
}
