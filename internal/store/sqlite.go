package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	industry TEXT NOT NULL,
	country  TEXT NOT NULL,
	state    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leads (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	business_name  TEXT NOT NULL,
	industry       TEXT NOT NULL,
	country        TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	load_time      REAL,
	ssl_status     INTEGER,
	h1_count       INTEGER,
	priority_score INTEGER NOT NULL DEFAULT 0,
	audit_notes    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'SCRAPED',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaign_cursor (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	industry_idx         INTEGER NOT NULL DEFAULT 0,
	location_idx         INTEGER NOT NULL DEFAULT 0,
	state_idx            INTEGER NOT NULL DEFAULT 0,
	pagination_start     INTEGER NOT NULL DEFAULT 0,
	last_emailed_lead_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_counters (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	emails_sent_today INTEGER NOT NULL DEFAULT 0,
	last_email_date   DATETIME
);

CREATE TABLE IF NOT EXISTS engine_state (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	is_enabled    INTEGER NOT NULL DEFAULT 0,
	is_running    INTEGER NOT NULL DEFAULT 0,
	last_run_date DATETIME
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_status_id ON leads(status, id);

INSERT OR IGNORE INTO settings (id) VALUES (1);
INSERT OR IGNORE INTO campaign_cursor (id) VALUES (1);
INSERT OR IGNORE INTO daily_counters (id) VALUES (1);
INSERT OR IGNORE INTO engine_state (id) VALUES (1);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- singletons ---

func (s *SQLiteStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	row := s.db.QueryRowContext(ctx,
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
		return nil, eris.Wrap(err, "sqlite: get settings")
	}
	return &st, nil
}

func (s *SQLiteStore) UpdateSettings(ctx context.Context, st *model.Settings) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settings SET
		   serp_api_key = ?, groq_api_key = ?, smtp_host = ?, smtp_port = ?,
		   smtp_username = ?, smtp_password = ?, smtp_encryption = ?,
		   from_name = ?, from_email = ?, telegram_bot_token = ?,
		   telegram_chat_id = ?, daily_email_limit = ?, daily_serp_limit = ?,
		   inventory_threshold = ?
		 WHERE id = 1`,
		st.SerpAPIKey, st.GroqAPIKey, st.SMTPHost, st.SMTPPort,
		st.SMTPUsername, st.SMTPPassword, st.SMTPEncryption,
		st.FromName, st.FromEmail, st.TelegramBotToken,
		st.TelegramChatID, st.DailyEmailLimit, st.DailySerpLimit,
		st.InventoryThreshold,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update settings")
	}
	return checkRowsAffected(res, "settings singleton")
}

func (s *SQLiteStore) GetCursor(ctx context.Context) (*model.CampaignCursor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT industry_idx, location_idx, state_idx, pagination_start, last_emailed_lead_id
		 FROM campaign_cursor WHERE id = 1`,
	)
	var c model.CampaignCursor
	err := row.Scan(&c.IndustryIdx, &c.LocationIdx, &c.StateIdx, &c.PaginationStart, &c.LastEmailedLeadID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cursor")
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateCursor(ctx context.Context, c *model.CampaignCursor) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaign_cursor SET
		   industry_idx = ?, location_idx = ?, state_idx = ?,
		   pagination_start = ?, last_emailed_lead_id = ?
		 WHERE id = 1`,
		c.IndustryIdx, c.LocationIdx, c.StateIdx, c.PaginationStart, c.LastEmailedLeadID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update cursor")
	}
	return checkRowsAffected(res, "cursor singleton")
}

func (s *SQLiteStore) GetCounters(ctx context.Context) (*model.DailyCounters, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT emails_sent_today, last_email_date FROM daily_counters WHERE id = 1`,
	)
	var c model.DailyCounters
	var last sql.NullTime
	if err := row.Scan(&c.EmailsSentToday, &last); err != nil {
		return nil, eris.Wrap(err, "sqlite: get counters")
	}
	if last.Valid {
		t := last.Time.UTC()
		c.LastEmailDate = &t
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateCounters(ctx context.Context, c *model.DailyCounters) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE daily_counters SET emails_sent_today = ?, last_email_date = ? WHERE id = 1`,
		c.EmailsSentToday, nullTime(c.LastEmailDate),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update counters")
	}
	return checkRowsAffected(res, "counters singleton")
}

func (s *SQLiteStore) GetRunState(ctx context.Context) (*model.EngineRunState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT is_enabled, is_running, last_run_date FROM engine_state WHERE id = 1`,
	)
	var st model.EngineRunState
	var last sql.NullTime
	if err := row.Scan(&st.IsEnabled, &st.IsRunning, &last); err != nil {
		return nil, eris.Wrap(err, "sqlite: get run state")
	}
	if last.Valid {
		t := last.Time.UTC()
		st.LastRunDate = &t
	}
	return &st, nil
}

func (s *SQLiteStore) SetEnabled(ctx context.Context, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE engine_state SET is_enabled = ? WHERE id = 1`, enabled,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set enabled")
	}
	return checkRowsAffected(res, "engine state singleton")
}

func (s *SQLiteStore) SetRunning(ctx context.Context, running bool, lastRun *time.Time) error {
	var res sql.Result
	var err error
	if lastRun != nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE engine_state SET is_running = ?, last_run_date = ? WHERE id = 1`,
			running, lastRun.UTC(),
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE engine_state SET is_running = ? WHERE id = 1`, running,
		)
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: set running")
	}
	return checkRowsAffected(res, "engine state singleton")
}

// --- targets ---

func (s *SQLiteStore) ListTargets(ctx context.Context) ([]model.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, industry, country, state FROM targets ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list targets")
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		var t model.Target
		if err := rows.Scan(&t.ID, &t.Industry, &t.Country, &t.State); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan target")
		}
		targets = append(targets, t)
	}
	return targets, eris.Wrap(rows.Err(), "sqlite: list targets iterate")
}

func (s *SQLiteStore) CreateTarget(ctx context.Context, t *model.Target) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (industry, country, state) VALUES (?, ?, ?)`,
		t.Industry, t.Country, t.State,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert target")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: target insert id")
	}
	t.ID = id
	return id, nil
}

func (s *SQLiteStore) DeleteTarget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete target %d", id)
	}
	return checkRowsAffected(res, "target")
}

// --- leads ---

const leadColumns = `id, business_name, industry, country, state, website, email,
	load_time, ssl_status, h1_count, priority_score, audit_notes, status, created_at`

func (s *SQLiteStore) CreateLead(ctx context.Context, l *model.Lead) (int64, error) {
	if l.Status == "" {
		l.Status = model.LeadStatusScraped
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (business_name, industry, country, state, website, email,
		   load_time, ssl_status, h1_count, priority_score, audit_notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.BusinessName, l.Industry, l.Country, l.State, l.Website, l.Email,
		nullFloat(l.LoadTime), nullBool(l.SSLStatus), nullInt(l.H1Count),
		l.PriorityScore, l.AuditNotes, string(l.Status), l.CreatedAt,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert lead")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: lead insert id")
	}
	l.ID = id
	return id, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id,
	)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryLeads(ctx, query, args...)
}

func (s *SQLiteStore) LeadsByStatus(ctx context.Context, status model.LeadStatus) ([]model.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = ? ORDER BY id ASC`,
		string(status),
	)
}

func (s *SQLiteStore) CountLeadsByStatus(ctx context.Context, status model.LeadStatus) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE status = ?`, string(status),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count leads")
	}
	return n, nil
}

func (s *SQLiteStore) LeadsForOutreach(ctx context.Context, afterID int64, limit int) ([]model.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE status = ? AND email != '' AND id > ?
		 ORDER BY id ASC LIMIT ?`,
		string(model.LeadStatusAudited), afterID, limit,
	)
}

func (s *SQLiteStore) MarkAudited(ctx context.Context, leadID int64, out model.AuditOutcome) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
		   email = CASE WHEN ? != '' THEN ? ELSE email END,
		   load_time = ?, ssl_status = ?, h1_count = ?,
		   priority_score = ?, audit_notes = ?, status = ?
		 WHERE id = ? AND status = ?`,
		out.Email, out.Email,
		nullFloat(out.LoadTime), nullBool(out.SSLStatus), nullInt(out.H1Count),
		out.PriorityScore, out.Notes, string(model.LeadStatusAudited),
		leadID, string(model.LeadStatusScraped),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark audited %d", leadID)
	}
	return checkRowsAffected(res, "scraped lead")
}

func (s *SQLiteStore) RecordEmailSent(ctx context.Context, leadID int64, sentAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin email tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE leads SET status = ? WHERE id = ? AND status = ?`,
		string(model.LeadStatusEmailed), leadID, string(model.LeadStatusAudited),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark emailed %d", leadID)
	}
	if err := checkRowsAffected(res, "audited lead"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE campaign_cursor SET last_emailed_lead_id = ? WHERE id = 1`, leadID,
	); err != nil {
		return eris.Wrap(err, "sqlite: advance email cursor")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE daily_counters SET emails_sent_today = emails_sent_today + 1, last_email_date = ? WHERE id = 1`,
		sentAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "sqlite: bump email counters")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit email tx")
}

// --- helpers ---

func (s *SQLiteStore) queryLeads(ctx context.Context, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: query leads iterate")
}

func checkRowsAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found", entity)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var loadTime sql.NullFloat64
	var sslStatus sql.NullBool
	var h1Count sql.NullInt64
	var status string

	err := row.Scan(
		&l.ID, &l.BusinessName, &l.Industry, &l.Country, &l.State, &l.Website, &l.Email,
		&loadTime, &sslStatus, &h1Count, &l.PriorityScore, &l.AuditNotes, &status, &l.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
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

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
