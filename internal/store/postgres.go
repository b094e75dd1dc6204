package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock's pool
// interface satisfies it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS settings (
	id                  INTEGER PRIMARY KEY CHECK (id = 1),
	serp_api_key        TEXT NOT NULL DEFAULT '',
	groq_api_key        TEXT NOT NULL DEFAULT '',
	smtp_host           TEXT NOT NULL DEFAULT '',
	smtp_port           INTEGER NOT NULL DEFAULT 587,
	smtp_username       TEXT NOT NULL DEFAULT '',
	smtp_password       TEXT NOT NULL DEFAULT '',
	smtp_encryption     TEXT NOT NULL DEFAULT 'TLS',
	from_name           TEXT NOT NULL DEFAULT '',
	from_email          TEXT NOT NULL DEFAULT '',
	telegram_bot_token  TEXT NOT NULL DEFAULT '',
	telegram_chat_id    TEXT NOT NULL DEFAULT '',
	daily_email_limit   INTEGER NOT NULL DEFAULT 50,
	daily_serp_limit    INTEGER NOT NULL DEFAULT 100,
	inventory_threshold INTEGER NOT NULL DEFAULT 200
);

CREATE TABLE IF NOT EXISTS targets (
	id       BIGSERIAL PRIMARY KEY,
	industry TEXT NOT NULL,
	country  TEXT NOT NULL,
	state    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leads (
	id             BIGSERIAL PRIMARY KEY,
	business_name  TEXT NOT NULL,
	industry       TEXT NOT NULL,
	country        TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	load_time      DOUBLE PRECISION,
	ssl_status     BOOLEAN,
	h1_count       INTEGER,
	priority_score INTEGER NOT NULL DEFAULT 0,
	audit_notes    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'SCRAPED',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_cursor (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	industry_idx         INTEGER NOT NULL DEFAULT 0,
	location_idx         INTEGER NOT NULL DEFAULT 0,
	state_idx            INTEGER NOT NULL DEFAULT 0,
	pagination_start     INTEGER NOT NULL DEFAULT 0,
	last_emailed_lead_id BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_counters (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	emails_sent_today INTEGER NOT NULL DEFAULT 0,
	last_email_date   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS engine_state (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	is_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
	is_running    BOOLEAN NOT NULL DEFAULT FALSE,
	last_run_date TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_status_id ON leads(status, id);

INSERT INTO settings (id) VALUES (1) ON CONFLICT DO NOTHING;
INSERT INTO campaign_cursor (id) VALUES (1) ON CONFLICT DO NOTHING;
INSERT INTO daily_counters (id) VALUES (1) ON CONFLICT DO NOTHING;
INSERT INTO engine_state (id) VALUES (1) ON CONFLICT DO NOTHING;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- singletons ---

func (s *PostgresStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT serp_api_key, groq_api_key, smtp_host, smtp_port, smtp_username,
		        smtp_password, smtp_encryption, from_name, from_email,
		        telegram_bot_token, telegram_chat_id, daily_email_limit,
		        daily_serp_limit, inventory_threshold
		 FROM settings WHERE id = 1`,
	)
	var st model.Settings
	err := row.Scan(
		&st.SerpAPIKey, &st.GroqAPIKey, &st.SMTPHost, &st.SMTPPort, &st.SMTPUsername,
		&st.SMTPPassword, &st.SMTPEncryption, &st.FromName, &st.FromEmail,
		&st.TelegramBotToken, &st.TelegramChatID, &st.DailyEmailLimit,
		&st.DailySerpLimit, &st.InventoryThreshold,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get settings")
	}
	return &st, nil
}

func (s *PostgresStore) UpdateSettings(ctx context.Context, st *model.Settings) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE settings SET
		   serp_api_key = $1, groq_api_key = $2, smtp_host = $3, smtp_port = $4,
		   smtp_username = $5, smtp_password = $6, smtp_encryption = $7,
		   from_name = $8, from_email = $9, telegram_bot_token = $10,
		   telegram_chat_id = $11, daily_email_limit = $12, daily_serp_limit = $13,
		   inventory_threshold = $14
		 WHERE id = 1`,
		st.SerpAPIKey, st.GroqAPIKey, st.SMTPHost, st.SMTPPort,
		st.SMTPUsername, st.SMTPPassword, st.SMTPEncryption,
		st.FromName, st.FromEmail, st.TelegramBotToken,
		st.TelegramChatID, st.DailyEmailLimit, st.DailySerpLimit,
		st.InventoryThreshold,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update settings")
	}
	return checkTag(tag, "settings singleton")
}

func (s *PostgresStore) GetCursor(ctx context.Context) (*model.CampaignCursor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT industry_idx, location_idx, state_idx, pagination_start, last_emailed_lead_id
		 FROM campaign_cursor WHERE id = 1`,
	)
	var c model.CampaignCursor
	err := row.Scan(&c.IndustryIdx, &c.LocationIdx, &c.StateIdx, &c.PaginationStart, &c.LastEmailedLeadID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cursor")
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCursor(ctx context.Context, c *model.CampaignCursor) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaign_cursor SET
		   industry_idx = $1, location_idx = $2, state_idx = $3,
		   pagination_start = $4, last_emailed_lead_id = $5
		 WHERE id = 1`,
		c.IndustryIdx, c.LocationIdx, c.StateIdx, c.PaginationStart, c.LastEmailedLeadID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update cursor")
	}
	return checkTag(tag, "cursor singleton")
}

func (s *PostgresStore) GetCounters(ctx context.Context) (*model.DailyCounters, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT emails_sent_today, last_email_date FROM daily_counters WHERE id = 1`,
	)
	var c model.DailyCounters
	var last sql.NullTime
	if err := row.Scan(&c.EmailsSentToday, &last); err != nil {
		return nil, eris.Wrap(err, "postgres: get counters")
	}
	if last.Valid {
		t := last.Time.UTC()
		c.LastEmailDate = &t
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCounters(ctx context.Context, c *model.DailyCounters) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE daily_counters SET emails_sent_today = $1, last_email_date = $2 WHERE id = 1`,
		c.EmailsSentToday, nullTime(c.LastEmailDate),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update counters")
	}
	return checkTag(tag, "counters singleton")
}

func (s *PostgresStore) GetRunState(ctx context.Context) (*model.EngineRunState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT is_enabled, is_running, last_run_date FROM engine_state WHERE id = 1`,
	)
	var st model.EngineRunState
	var last sql.NullTime
	if err := row.Scan(&st.IsEnabled, &st.IsRunning, &last); err != nil {
		return nil, eris.Wrap(err, "postgres: get run state")
	}
	if last.Valid {
		t := last.Time.UTC()
		st.LastRunDate = &t
	}
	return &st, nil
}

func (s *PostgresStore) SetEnabled(ctx context.Context, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE engine_state SET is_enabled = $1 WHERE id = 1`, enabled,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set enabled")
	}
	return checkTag(tag, "engine state singleton")
}

func (s *PostgresStore) SetRunning(ctx context.Context, running bool, lastRun *time.Time) error {
	var tag pgconn.CommandTag
	var err error
	if lastRun != nil {
		tag, err = s.pool.Exec(ctx,
			`UPDATE engine_state SET is_running = $1, last_run_date = $2 WHERE id = 1`,
			running, lastRun.UTC(),
		)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE engine_state SET is_running = $1 WHERE id = 1`, running,
		)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: set running")
	}
	return checkTag(tag, "engine state singleton")
}

// --- targets ---

func (s *PostgresStore) ListTargets(ctx context.Context) ([]model.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, industry, country, state FROM targets ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list targets")
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		var t model.Target
		if err := rows.Scan(&t.ID, &t.Industry, &t.Country, &t.State); err != nil {
			return nil, eris.Wrap(err, "postgres: scan target")
		}
		targets = append(targets, t)
	}
	return targets, eris.Wrap(rows.Err(), "postgres: list targets iterate")
}

func (s *PostgresStore) CreateTarget(ctx context.Context, t *model.Target) (int64, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO targets (industry, country, state) VALUES ($1, $2, $3) RETURNING id`,
		t.Industry, t.Country, t.State,
	)
	if err := row.Scan(&t.ID); err != nil {
		return 0, eris.Wrap(err, "postgres: insert target")
	}
	return t.ID, nil
}

func (s *PostgresStore) DeleteTarget(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete target %d", id)
	}
	return checkTag(tag, "target")
}

// --- leads ---

func (s *PostgresStore) CreateLead(ctx context.Context, l *model.Lead) (int64, error) {
	if l.Status == "" {
		l.Status = model.LeadStatusScraped
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO leads (business_name, industry, country, state, website, email,
		   load_time, ssl_status, h1_count, priority_score, audit_notes, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		l.BusinessName, l.Industry, l.Country, l.State, l.Website, l.Email,
		nullFloat(l.LoadTime), nullBool(l.SSLStatus), nullInt(l.H1Count),
		l.PriorityScore, l.AuditNotes, string(l.Status), l.CreatedAt,
	)
	if err := row.Scan(&l.ID); err != nil {
		return 0, eris.Wrap(err, "postgres: insert lead")
	}
	return l.ID, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id,
	)
	l, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("lead not found")
	}
	return l, err
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	return s.queryLeads(ctx, query, args...)
}

func (s *PostgresStore) LeadsByStatus(ctx context.Context, status model.LeadStatus) ([]model.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = $1 ORDER BY id ASC`,
		string(status),
	)
}

func (s *PostgresStore) CountLeadsByStatus(ctx context.Context, status model.LeadStatus) (int, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE status = $1`, string(status),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count leads")
	}
	return n, nil
}

func (s *PostgresStore) LeadsForOutreach(ctx context.Context, afterID int64, limit int) ([]model.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE status = $1 AND email != '' AND id > $2
		 ORDER BY id ASC LIMIT $3`,
		string(model.LeadStatusAudited), afterID, limit,
	)
}

func (s *PostgresStore) MarkAudited(ctx context.Context, leadID int64, out model.AuditOutcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
		   email = CASE WHEN $1 != '' THEN $1 ELSE email END,
		   load_time = $2, ssl_status = $3, h1_count = $4,
		   priority_score = $5, audit_notes = $6, status = $7
		 WHERE id = $8 AND status = $9`,
		out.Email,
		nullFloat(out.LoadTime), nullBool(out.SSLStatus), nullInt(out.H1Count),
		out.PriorityScore, out.Notes, string(model.LeadStatusAudited),
		leadID, string(model.LeadStatusScraped),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark audited %d", leadID)
	}
	return checkTag(tag, "scraped lead")
}

func (s *PostgresStore) RecordEmailSent(ctx context.Context, leadID int64, sentAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin email tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE leads SET status = $1 WHERE id = $2 AND status = $3`,
		string(model.LeadStatusEmailed), leadID, string(model.LeadStatusAudited),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark emailed %d", leadID)
	}
	if err := checkTag(tag, "audited lead"); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE campaign_cursor SET last_emailed_lead_id = $1 WHERE id = 1`, leadID,
	); err != nil {
		return eris.Wrap(err, "postgres: advance email cursor")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE daily_counters SET emails_sent_today = emails_sent_today + 1, last_email_date = $1 WHERE id = 1`,
		sentAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "postgres: bump email counters")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit email tx")
}

// --- helpers ---

func (s *PostgresStore) queryLeads(ctx context.Context, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: query leads iterate")
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var loadTime sql.NullFloat64
	var sslStatus sql.NullBool
	var h1Count sql.NullInt64
	var status string

	err := row.Scan(
		&l.ID, &l.BusinessName, &l.Industry, &l.Country, &l.State, &l.Website, &l.Email,
		&loadTime, &sslStatus, &h1Count, &l.PriorityScore, &l.AuditNotes, &status, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	l.Status = model.LeadStatus(status)
	if loadTime.Valid {
		v := loadTime.Float64
		l.LoadTime = &v
	}
	if sslStatus.Valid {
		v := sslStatus.Bool
		l.SSLStatus = &v
	}
	if h1Count.Valid {
		v := int(h1Count.Int64)
		l.H1Count = &v
	}
	return &l, nil
}

func checkTag(tag pgconn.CommandTag, entity string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found", entity)
	}
	return nil
}

