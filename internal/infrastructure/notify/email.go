package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"tenderwatch/internal/config"
	"tenderwatch/internal/domain"
	"tenderwatch/internal/ports"
)

// EmailNotifier sends plain-text digests over SMTP. Each category has its own
// stakeholder recipient list.
type EmailNotifier struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients map[domain.Category][]string

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ ports.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier builds a notifier from configuration.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		recipients: map[domain.Category][]string{
			domain.CategoryESG:          cfg.ESGTeam,
			domain.CategoryCreditRating: cfg.CreditRatingTeam,
		},
		send: smtp.SendMail,
	}
}

// NotifyTeam delivers one category's digest. An empty tender list or an empty
// recipient list is a no-op, not an error.
func (n *EmailNotifier) NotifyTeam(ctx context.Context, category domain.Category, tenders []domain.StoredTender) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tenders) == 0 {
		return nil
	}

	to := n.recipients[category]
	if len(to) == 0 {
		return nil
	}

	msg := n.compose(category, to, tenders)
	addr := net.JoinHostPort(n.host, fmt.Sprint(n.port))

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	if err := n.send(addr, auth, n.from, to, msg); err != nil {
		return fmt.Errorf("send %s digest: %w", category, err)
	}
	return nil
}

func (n *EmailNotifier) compose(category domain.Category, to []string, tenders []domain.StoredTender) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject(category, len(tenders)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "New %s tenders found: %d\r\n\r\n", categoryLabel(category), len(tenders))
	for i, t := range tenders {
		fmt.Fprintf(&b, "%d. %s\r\n", i+1, t.Title)
		fmt.Fprintf(&b, "   URL: %s\r\n", t.URL)
		if t.PublishedAt != nil {
			fmt.Fprintf(&b, "   Published: %s\r\n", t.PublishedAt.Format("2006-01-02"))
		} else if t.RawDate != "" {
			fmt.Fprintf(&b, "   Published: %s\r\n", t.RawDate)
		}
		if len(t.MatchedKeywords) > 0 {
			fmt.Fprintf(&b, "   Keywords: %s\r\n", strings.Join(t.MatchedKeywords, ", "))
		}
		if t.Description != "" {
			fmt.Fprintf(&b, "   %s\r\n", t.Description)
		}
		b.WriteString("\r\n")
	}

	return []byte(b.String())
}

func subject(category domain.Category, count int) string {
	return fmt.Sprintf("[tenderwatch] %d new %s tender(s)", count, categoryLabel(category))
}

func categoryLabel(category domain.Category) string {
	switch category {
	case domain.CategoryESG:
		return "ESG"
	case domain.CategoryCreditRating:
		return "credit rating"
	default:
		return string(category)
	}
}
