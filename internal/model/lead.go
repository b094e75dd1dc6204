// Package model defines the campaign domain types shared by the store,
// engine, and API layers.
package model

import "time"

// LeadStatus tracks a lead through the pipeline. Transitions only move
// forward: SCRAPED -> AUDITED -> EMAILED.
type LeadStatus string

const (
	LeadStatusScraped LeadStatus = "SCRAPED"
	LeadStatusAudited LeadStatus = "AUDITED"
	LeadStatusEmailed LeadStatus = "EMAILED"
)

// Lead is one scraped business. Audit fields are pointers because a lead
// without a website is never audited and keeps them null.
type Lead struct {
	ID            int64      `json:"id"`
	BusinessName  string     `json:"business_name"`
	Industry      string     `json:"industry"`
	Country       string     `json:"country"`
	State         string     `json:"state,omitempty"`
	Website       string     `json:"website,omitempty"`
	Email         string     `json:"email,omitempty"`
	LoadTime      *float64   `json:"load_time,omitempty"`
	SSLStatus     *bool      `json:"ssl_status,omitempty"`
	H1Count       *int       `json:"h1_count,omitempty"`
	PriorityScore int        `json:"priority_score"`
	AuditNotes    string     `json:"audit_notes,omitempty"`
	Status        LeadStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AuditOutcome is what the audit phase writes back onto a SCRAPED lead.
// An empty Email leaves any scrape-time email in place.
type AuditOutcome struct {
	Email         string
	LoadTime      *float64
	SSLStatus     *bool
	H1Count       *int
	PriorityScore int
	Notes         string
}
