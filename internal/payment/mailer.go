package payment

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// Mailer sends a receipt once a payment completes.
type Mailer interface {
	SendReceipt(ctx context.Context, p Payment) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, user, password), from: from}
}

func (m *SMTPMailer) SendReceipt(_ context.Context, p Payment) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", p.Email)
	msg.SetHeader("Subject", "Your payment receipt")
	msg.SetBody("text/plain", receiptBody(p))
	return m.dialer.DialAndSend(msg)
}

func receiptBody(p Payment) string {
	return fmt.Sprintf("Thank you for your purchase.\n\nTransaction: %s\nAmount: %s %s\nStatus: %s\nDate: %s\n",
		p.TransactionID, p.Amount.StringFixed(2), strings.ToUpper(p.Currency), p.Status, p.UpdatedAt.Format("2006-01-02 15:04 MST"))
}
