// Package notify delivers rendered reports to the chat webhook and to email.
package notify

import (
	"context"
	"regexp"
	"strings"
)

// ChatTransport posts one JSON document to a webhook endpoint.
type ChatTransport interface {
	Post(ctx context.Context, endpoint string, payload any) error
}

type Mail struct {
	From    string
	To      []string
	CC      []string
	BCC     []string
	Subject string
	Text    string
	HTML    string
}

// Recipients is every envelope recipient of m.
func (m Mail) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	out = append(out, m.To...)
	out = append(out, m.CC...)
	return append(out, m.BCC...)
}

// MailTransport sends one message and returns the transport's message id.
type MailTransport interface {
	Send(ctx context.Context, m Mail) (string, error)
}

var addressSeparators = regexp.MustCompile(`[,;\s]+`)

// ParseAddressList splits raw on commas, semicolons and whitespace and drops
// case-insensitive duplicates, keeping the first spelling of each address.
func ParseAddressList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range addressSeparators.Split(raw, -1) {
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
