// Package email implements an SMTP-based digest notifier
package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/notifier"
)

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	if port, ok := cfg.Params["port"].(int); ok {
		e.port = port
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	if to, ok := cfg.Params["to"].([]string); ok {
		e.to = to
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	return nil
}

func (e *Email) SendDigest(doc core.TodayDocument) error {
	if len(doc.List) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Tidescan %s: %d matches", doc.Date, len(doc.List))

	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString(fmt.Sprintf("<h2>Scan results for %s</h2>", doc.Date))
	sb.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">")
	sb.WriteString("<tr><th>代號</th><th>名稱</th><th>市場</th><th>收盤</th><th>漲跌%</th><th>備註</th></tr>")
	for _, entry := range doc.List {
		sb.WriteString(formatEntryRow(entry))
	}
	sb.WriteString("</table>")
	sb.WriteString(fmt.Sprintf("<p><small>run %s</small></p>", doc.Source))
	sb.WriteString("</body></html>")

	return e.sendEmail(subject, sb.String())
}

func formatEntryRow(entry core.ListingEntry) string {
	return fmt.Sprintf(
		"<tr><td>%s</td><td>%s</td><td>%s</td><td>%.2f</td><td>%.2f</td><td>%s</td></tr>",
		entry.ID,
		entry.Name,
		entry.Venue,
		entry.Price,
		entry.ChangeRate,
		entry.Note,
	)
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	contentType := "text/plain"
	if strings.Contains(body, "<html>") {
		contentType = "text/html"
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		contentType,
		body,
	)

	return smtp.SendMail(addr, auth, e.from, e.to, []byte(msg))
}
