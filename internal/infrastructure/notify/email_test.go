package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"tenderwatch/internal/config"
	"tenderwatch/internal/domain"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestNotifier(sent *[]sentMail) *EmailNotifier {
	n := NewEmailNotifier(config.EmailConfig{
		SMTPHost:         "smtp.example.com",
		SMTPPort:         587,
		Username:         "bot@example.com",
		Password:         "secret",
		From:             "bot@example.com",
		ESGTeam:          []string{"esg@example.com"},
		CreditRatingTeam: []string{"credit@example.com", "risk@example.com"},
	})
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return n
}

func sampleTenders() []domain.StoredTender {
	return []domain.StoredTender{
		{ID: 1, ValidatedTender: domain.ValidatedTender{
			Title:           "Environmental audit tender",
			URL:             "https://example.com/t/1",
			RawDate:         "2026-06-01",
			Category:        domain.CategoryESG,
			MatchedKeywords: []string{"environmental"},
			Description:     "Annual audit",
		}},
		{ID: 2, ValidatedTender: domain.ValidatedTender{
			Title:    "Green bond verification",
			URL:      "https://example.com/t/2",
			Category: domain.CategoryESG,
		}},
	}
}

func TestNotifyTeamSendsDigest(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	n := newTestNotifier(&sent)

	if err := n.NotifyTeam(context.Background(), domain.CategoryESG, sampleTenders()); err != nil {
		t.Fatalf("NotifyTeam error: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sent))
	}

	mail := sent[0]
	if mail.addr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr: %s", mail.addr)
	}
	if len(mail.to) != 1 || mail.to[0] != "esg@example.com" {
		t.Fatalf("unexpected recipients: %v", mail.to)
	}
	if !strings.Contains(mail.msg, "Subject: [tenderwatch] 2 new ESG tender(s)") {
		t.Fatalf("subject missing: %q", mail.msg)
	}
	if !strings.Contains(mail.msg, "Environmental audit tender") ||
		!strings.Contains(mail.msg, "https://example.com/t/2") {
		t.Fatalf("tender content missing: %q", mail.msg)
	}
}

func TestNotifyTeamRoutesByCategory(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	n := newTestNotifier(&sent)

	tenders := []domain.StoredTender{{ID: 3, ValidatedTender: domain.ValidatedTender{
		Title:    "Credit rating advisory",
		URL:      "https://example.com/t/3",
		Category: domain.CategoryCreditRating,
	}}}

	if err := n.NotifyTeam(context.Background(), domain.CategoryCreditRating, tenders); err != nil {
		t.Fatalf("NotifyTeam error: %v", err)
	}
	if len(sent) != 1 || len(sent[0].to) != 2 {
		t.Fatalf("expected credit team recipients, got %+v", sent)
	}
}

func TestNotifyTeamEmptyListNoop(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	n := newTestNotifier(&sent)

	if err := n.NotifyTeam(context.Background(), domain.CategoryESG, nil); err != nil {
		t.Fatalf("NotifyTeam error: %v", err)
	}
	if len(sent) != 0 {
		t.Fatal("expected no mail for empty list")
	}
}

func TestNotifyTeamNoRecipientsNoop(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	n := newTestNotifier(&sent)
	n.recipients[domain.CategoryESG] = nil

	if err := n.NotifyTeam(context.Background(), domain.CategoryESG, sampleTenders()); err != nil {
		t.Fatalf("NotifyTeam error: %v", err)
	}
	if len(sent) != 0 {
		t.Fatal("expected no mail without recipients")
	}
}
