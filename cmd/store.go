package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/engine"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/groq"
	"github.com/sells-group/outreach-engine/pkg/serpapi"
	"github.com/sells-group/outreach-engine/pkg/siteaudit"
	"github.com/sells-group/outreach-engine/pkg/telegram"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "outreach.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine builds the engine with provider endpoints from config.
// Credentials come from the store at run time, so only base URLs are
// bound here.
func initEngine(st store.Store) *engine.Engine {
	return engine.New(st,
		engine.Config{
			Cooldown:        cfg.Engine.Cooldown,
			CooldownSegment: cfg.Engine.CooldownSegment,
			SendInterval:    cfg.Engine.SendInterval,
			AuditInterval:   cfg.Engine.AuditInterval,
		},
		engine.WithSerpFactory(func(apiKey string) serpapi.Client {
			return serpapi.NewClient(apiKey, serpapi.WithBaseURL(cfg.Serp.BaseURL))
		}),
		engine.WithGroqFactory(func(apiKey string) groq.Client {
			return groq.NewClient(apiKey,
				groq.WithBaseURL(cfg.Groq.BaseURL),
				groq.WithModel(cfg.Groq.Model),
			)
		}),
		engine.WithNotifierFactory(func(botToken, chatID string) engine.Notifier {
			return telegram.NewClient(botToken, chatID, telegram.WithBaseURL(cfg.Telegram.BaseURL))
		}),
		engine.WithAuditClient(siteaudit.NewClient(siteaudit.WithBaseURL(cfg.Audit.BaseURL))),
	)
}
