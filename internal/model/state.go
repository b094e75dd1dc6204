package model

import "time"

// Settings holds the operator-editable campaign configuration. It is a
// database singleton so credential changes take effect on the next run
// without a restart.
type Settings struct {
	SerpAPIKey         string `json:"serp_api_key"`
	GroqAPIKey         string `json:"groq_api_key"`
	SMTPHost           string `json:"smtp_host"`
	SMTPPort           int    `json:"smtp_port"`
	SMTPUsername       string `json:"smtp_username"`
	SMTPPassword       string `json:"smtp_password"`
	SMTPEncryption     string `json:"smtp_encryption"`
	FromName           string `json:"from_name"`
	FromEmail          string `json:"from_email"`
	TelegramBotToken   string `json:"telegram_bot_token"`
	TelegramChatID     string `json:"telegram_chat_id"`
	DailyEmailLimit    int    `json:"daily_email_limit"`
	DailySerpLimit     int    `json:"daily_serp_limit"`
	InventoryThreshold int    `json:"inventory_threshold"`
}

// SMTPConfigured reports whether enough SMTP settings exist to send mail:
// host, port, credentials, and a from address.
func (s *Settings) SMTPConfigured() bool {
	return s.SMTPHost != "" && s.SMTPPort > 0 &&
		s.SMTPUsername != "" && s.SMTPPassword != "" && s.FromEmail != ""
}

// CampaignCursor is the persistent scraping and outreach position. The
// rotation only consumes IndustryIdx; the location indexes are kept for
// operators that split targets by geography.
type CampaignCursor struct {
	IndustryIdx       int   `json:"industry_idx"`
	LocationIdx       int   `json:"location_idx"`
	StateIdx          int   `json:"state_idx"`
	PaginationStart   int   `json:"pagination_start"`
	LastEmailedLeadID int64 `json:"last_emailed_lead_id"`
}

// DailyCounters tracks the send quota. LastEmailDate is null until the
// first email ever goes out.
type DailyCounters struct {
	EmailsSentToday int        `json:"emails_sent_today"`
	LastEmailDate   *time.Time `json:"last_email_date,omitempty"`
}

// EngineRunState is the engine on/off switch plus run bookkeeping.
type EngineRunState struct {
	IsEnabled   bool       `json:"is_enabled"`
	IsRunning   bool       `json:"is_running"`
	LastRunDate *time.Time `json:"last_run_date,omitempty"`
}

// RunResult summarizes one engine run for API callers.
type RunResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
