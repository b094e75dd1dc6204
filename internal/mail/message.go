package mail

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

// Message is one outbound email with both plain-text and HTML bodies.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// OutreachMessage builds the standard cold-outreach email for a business.
// The opener is either the personalized line from the LLM or the generic
// fallback greeting.
func OutreachMessage(to, businessName, opener string) Message {
	text := fmt.Sprintf("Hi %s team,\n\n%s\n\nWould you be open to a quick chat about improving your site?\n\nBest regards", businessName, opener)
	html := fmt.Sprintf(
		"<p>Hi %s team,</p><p>%s</p><p>Would you be open to a quick chat about improving your site?</p><p>Best regards</p>",
		businessName, opener,
	)
	return Message{
		To:       to,
		Subject:  "Quick question about " + businessName,
		TextBody: text,
		HTMLBody: html,
	}
}

// compose renders the RFC 5322 message as multipart/alternative.
func compose(fromName, fromEmail string, msg Message, now time.Time) []byte {
	boundary := "=_outreach_" + now.UTC().Format("20060102150405")

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), fromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
