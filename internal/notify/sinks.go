package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/report"
)

// ChatSink posts every card page to one webhook endpoint.
type ChatSink struct {
	Endpoint  string
	Transport ChatTransport
}

func (c *ChatSink) Enabled() bool {
	return c != nil && c.Endpoint != "" && c.Transport != nil
}

// Send posts each page with its own transport call. A failed page is logged
// and the remaining pages are still sent; the failures are joined.
func (c *ChatSink) Send(ctx context.Context, cards []report.Message, log *zap.Logger) (sent int, err error) {
	var errs []error
	for i, card := range cards {
		if perr := c.Transport.Post(ctx, c.Endpoint, card); perr != nil {
			log.Warn("chat page failed", zap.Int("page", i+1), zap.Int("pages", len(cards)), zap.Error(perr))
			errs = append(errs, fmt.Errorf("chat page %d/%d: %w", i+1, len(cards), perr))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// EmailSink sends the email report. Addresses are kept raw and parsed with
// ParseAddressList when sending.
type EmailSink struct {
	Enabled   bool
	From      string
	To        string
	CC        string
	BCC       string
	Transport MailTransport
}

// Mail builds the message, or reports false when the sink is not fully
// configured and must be skipped.
func (e *EmailSink) Mail(subject string, body report.Email) (Mail, bool) {
	if e == nil || !e.Enabled || e.Transport == nil {
		return Mail{}, false
	}
	m := Mail{
		From:    e.From,
		To:      ParseAddressList(e.To),
		CC:      ParseAddressList(e.CC),
		BCC:     ParseAddressList(e.BCC),
		Subject: subject,
		Text:    body.Text,
		HTML:    body.HTML,
	}
	if m.From == "" || len(m.To) == 0 {
		return Mail{}, false
	}
	return m, true
}
