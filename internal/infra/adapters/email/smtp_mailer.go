package email

import (
	"context"
	"errors"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"psychic-credits/internal/config"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/adapter"
)

var _ adapter.ReceiptMailer = (*SMTPMailer)(nil)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends top-up receipts through a plain SMTP relay.
type SMTPMailer struct {
	from   string
	sender sender
}

func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from address are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPMailer{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
	}, nil
}

func (m *SMTPMailer) SendTopupReceipt(ctx context.Context, r model.TopupReceipt) error {
	if r.Email == "" {
		return errors.New("receipt has no recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", r.Email, r.Name)
	msg.SetHeader("Subject", fmt.Sprintf("Your %s top-up: %d credits added", r.PlanName, r.CreditsAdded))
	msg.SetBody("text/plain", receiptText(r))
	msg.AddAlternative("text/html", receiptHTML(r))

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send receipt: %w", err)
	}
	return nil
}

func receiptText(r model.TopupReceipt) string {
	return fmt.Sprintf(
		"Hi %s,\n\nWe received %s %s for %s.\n%d credits were added; your balance is now %d credits.\n\nReference: %s\n",
		displayName(r), r.Amount.StringFixed(2), r.Currency, r.PlanName, r.CreditsAdded, r.CreditsNow, r.PaymentID)
}

func receiptHTML(r model.TopupReceipt) string {
	return fmt.Sprintf(`
		<h2>Thanks, %s!</h2>
		<p>We received <strong>%s %s</strong> for <em>%s</em>.</p>
		<p><strong>%d</strong> credits were added. Your balance is now <strong>%d</strong> credits.</p>
		<p style="color:#888">Reference: %s</p>
	`, html.EscapeString(displayName(r)), r.Amount.StringFixed(2), html.EscapeString(r.Currency),
		html.EscapeString(r.PlanName), r.CreditsAdded, r.CreditsNow, html.EscapeString(r.PaymentID))
}

func displayName(r model.TopupReceipt) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Email
}
