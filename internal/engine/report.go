package engine

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-engine/internal/model"
)

// BuildDailyReport renders the end-of-run Telegram summary (HTML).
func BuildDailyReport(counters *model.DailyCounters, cursor *model.CampaignCursor, settings *model.Settings, target *model.Target, counts *InventoryCounts) string {
	lastEmail := "Never"
	if counters.LastEmailDate != nil {
		lastEmail = counters.LastEmailDate.UTC().Format("15:04")
	}

	lines := []string{
		"📊 <b>Daily Report</b>",
		fmt.Sprintf("📬 Emails Sent Today: <b>%d</b>", counters.EmailsSentToday),
		fmt.Sprintf("📅 Last Email: %s", lastEmail),
	}

	if cursor.LastEmailedLeadID > 0 {
		lines = append(lines, fmt.Sprintf("📎 Last Lead Emailed: ID <b>%d</b>", cursor.LastEmailedLeadID))
	}

	if target != nil {
		lines = append(lines, fmt.Sprintf("🎯 Current Target: <b>%s</b> in <b>%s</b>", target.Industry, target.Location()))
	}

	lines = append(lines,
		fmt.Sprintf("📦 Remaining Inventory: <b>%d</b> audited leads", counts.Audited),
		"",
		"📋 <b>Inventory Breakdown</b>",
		fmt.Sprintf("• Scraped: %d", counts.Scraped),
		fmt.Sprintf("• Audited: %d", counts.Audited),
		fmt.Sprintf("• Emailed: %d", counts.Emailed),
		"",
		fmt.Sprintf("⚙️ Daily Limits: %d/%d emails used", counters.EmailsSentToday, settings.DailyEmailLimit),
	)

	return strings.Join(lines, "\n")
}
