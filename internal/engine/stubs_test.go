package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sells-group/outreach-engine/internal/mail"
	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/pkg/serpapi"
	"github.com/sells-group/outreach-engine/pkg/siteaudit"
)

// instantSleep makes all pacing waits complete immediately.
func instantSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// stubSerp returns canned pages keyed by call count.
type stubSerp struct {
	mu    sync.Mutex
	pages [][]serpapi.Result
	err   error
	calls int
}

func (s *stubSerp) Search(_ context.Context, _ string, _ int) ([]serpapi.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.pages) {
		s.calls++
		return nil, nil
	}
	page := s.pages[s.calls]
	s.calls++
	return page, nil
}

func (s *stubSerp) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubAudit returns one canned report or error for every call.
type stubAudit struct {
	mu     sync.Mutex
	report *siteaudit.Report
	err    error
	calls  int
}

func (a *stubAudit) Audit(context.Context, string) (*siteaudit.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.report, nil
}

func (a *stubAudit) Health(context.Context) error { return nil }

func (a *stubAudit) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// stubGroq personalizes with a fixed line or fails.
type stubGroq struct {
	opener string
	err    error
}

func (g *stubGroq) Personalize(context.Context, string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.opener, nil
}

// stubMailer records sends and optionally fails for specific recipients.
type stubMailer struct {
	mu     sync.Mutex
	sent   []mail.Message
	failTo map[string]bool
}

func (m *stubMailer) Send(_ context.Context, _ *model.Settings, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[msg.To] {
		return errors.New("send refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *stubMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	return out
}

// stubNotifier records all messages and alerts.
type stubNotifier struct {
	mu       sync.Mutex
	messages []string
	alerts   []string
}

func (n *stubNotifier) SendMessage(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *stubNotifier) SendAlert(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, text)
	return nil
}

func (n *stubNotifier) allMessages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

func (n *stubNotifier) allAlerts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.alerts))
	copy(out, n.alerts)
	return out
}
