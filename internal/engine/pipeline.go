package engine

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/serpapi"
	"github.com/sells-group/outreach-engine/pkg/siteaudit"
)

// noWebsiteNote is the fixed audit note for leads scraped without a URL.
const noWebsiteNote = "No website found; cannot audit."

// noWebsitePriority is the fixed score for leads with nothing to audit.
const noWebsitePriority = 1

// ScrapeResult reports one scraping pass over a target.
type ScrapeResult struct {
	// Scraped is the number of new leads persisted.
	Scraped int
	// Raw is the number of raw results the provider returned.
	Raw int
}

// LeadPipeline moves leads through SCRAPED and AUDITED.
type LeadPipeline struct {
	store store.Store
}

// NewLeadPipeline creates a pipeline over the store.
func NewLeadPipeline(s store.Store) *LeadPipeline {
	return &LeadPipeline{store: s}
}

// BuildQuery forms the search query for a target. State is preferred over
// country when present.
func BuildQuery(t model.Target) string {
	location := t.Country
	if t.State != "" {
		location = t.State
	}
	return fmt.Sprintf("%s in %s", t.Industry, location)
}

// ScrapeOnce runs one search-provider call for the target at the given
// pagination offset and persists qualifying results as SCRAPED leads.
// A provider failure is returned as an error so the caller can distinguish
// it from an empty or fully filtered page.
func (p *LeadPipeline) ScrapeOnce(ctx context.Context, serp serpapi.Client, target model.Target, start int) (*ScrapeResult, error) {
	query := BuildQuery(target)

	results, err := serp.Search(ctx, query, start)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: search %q", query)
	}

	if len(results) > resultCap {
		results = results[:resultCap]
	}

	res := &ScrapeResult{Raw: len(results)}
	for _, r := range results {
		if !Qualifies(r.URL) {
			continue
		}

		lead := &model.Lead{
			BusinessName: CleanBusinessName(r.Title),
			Industry:     target.Industry,
			Country:      target.Country,
			State:        target.State,
			Website:      r.URL,
			Email:        ExtractEmail(r.Snippet),
			Status:       model.LeadStatusScraped,
		}
		if _, err := p.store.CreateLead(ctx, lead); err != nil {
			return res, eris.Wrap(err, "pipeline: persist lead")
		}
		res.Scraped++

		zap.L().Debug("lead scraped",
			zap.String("business", lead.BusinessName),
			zap.String("website", lead.Website),
		)
	}

	zap.L().Info("scrape pass complete",
		zap.String("query", query),
		zap.Int("start", start),
		zap.Int("raw", res.Raw),
		zap.Int("scraped", res.Scraped),
	)
	return res, nil
}

// AuditLead finalizes one SCRAPED lead as AUDITED. Provider failures are
// terminal for the lead: it is audited with a failure note rather than
// left behind to be retried forever.
func (p *LeadPipeline) AuditLead(ctx context.Context, audit siteaudit.Client, lead model.Lead) error {
	if lead.Website == "" {
		out := model.AuditOutcome{
			PriorityScore: noWebsitePriority,
			Notes:         noWebsiteNote,
		}
		return eris.Wrap(p.store.MarkAudited(ctx, lead.ID, out), "pipeline: finalize no-website lead")
	}

	report, err := audit.Audit(ctx, lead.Website)
	if err != nil {
		zap.L().Warn("audit failed",
			zap.Int64("lead_id", lead.ID),
			zap.String("website", lead.Website),
			zap.Error(err),
		)
		out := model.AuditOutcome{
			PriorityScore: noWebsitePriority,
			Notes:         fmt.Sprintf("Audit failed: %s", eris.Cause(err).Error()),
		}
		return eris.Wrap(p.store.MarkAudited(ctx, lead.ID, out), "pipeline: finalize failed audit")
	}

	out := model.AuditOutcome{
		LoadTime:      &report.LoadTime,
		SSLStatus:     &report.SSL,
		H1Count:       &report.H1Count,
		PriorityScore: CalculatePriority(report.SSL, report.LoadTime, report.H1Count),
		Notes:         auditNotes(report),
	}
	if len(report.Emails) > 0 {
		out.Email = report.Emails[0]
	}
	return eris.Wrap(p.store.MarkAudited(ctx, lead.ID, out), "pipeline: finalize audit")
}

// CalculatePriority scores a lead from its audit signals: base 50, +20 for
// a valid certificate, +20 for loading under 3s, +10 for having any h1,
// clamped to [0, 100].
func CalculatePriority(ssl bool, loadTime float64, h1Count int) int {
	score := 50
	if ssl {
		score += 20
	}
	if loadTime < 3.0 {
		score += 20
	}
	if h1Count > 0 {
		score += 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func auditNotes(r *siteaudit.Report) string {
	ssl := "no SSL certificate"
	if r.SSL {
		ssl = "valid SSL"
	}
	h1 := "no h1 headings"
	if r.H1Count == 1 {
		h1 = "1 h1 heading"
	} else if r.H1Count > 1 {
		h1 = fmt.Sprintf("%d h1 headings", r.H1Count)
	}
	emails := "no emails found"
	if len(r.Emails) == 1 {
		emails = "1 email found"
	} else if len(r.Emails) > 1 {
		emails = fmt.Sprintf("%d emails found", len(r.Emails))
	}
	return fmt.Sprintf("%s, loads in %.1fs, %s, %s", ssl, r.LoadTime, h1, emails)
}
