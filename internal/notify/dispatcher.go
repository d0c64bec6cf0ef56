package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/report"
)

// Rendered is the output of both renderers for one run.
type Rendered struct {
	Cards   []report.Message
	Subject string
	Email   report.Email
}

type Delivery struct {
	ChatSkipped    bool   `json:"chat_skipped"`
	ChatPages      int    `json:"chat_pages"`
	ChatFailed     int    `json:"chat_failed"`
	EmailSkipped   bool   `json:"email_skipped"`
	EmailMessageID string `json:"email_message_id,omitempty"`
}

// DeliveryObserver counts delivery outcomes per sink.
type DeliveryObserver interface {
	ObserveDelivery(sink, result string)
}

type Dispatcher struct {
	chat     *ChatSink
	email    *EmailSink
	observer DeliveryObserver
	log      *zap.Logger
}

func NewDispatcher(chat *ChatSink, email *EmailSink, observer DeliveryObserver, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		chat:     chat,
		email:    email,
		observer: observer,
		log:      logger.With(zap.String("component", "notify")),
	}
}

// Dispatch delivers r to both sinks. The sinks fail independently and the
// returned error joins both of their failures.
func (d *Dispatcher) Dispatch(ctx context.Context, r Rendered) (Delivery, error) {
	var (
		out  Delivery
		errs []error
	)

	if d.chat.Enabled() {
		sent, err := d.chat.Send(ctx, r.Cards, d.log)
		out.ChatPages = sent
		out.ChatFailed = len(r.Cards) - sent
		d.observe("chat", sent > 0, err)
		if err != nil {
			errs = append(errs, err)
		}
	} else {
		out.ChatSkipped = true
		d.observe("chat", false, nil)
		d.log.Info("chat skipped: no webhook configured")
	}

	if m, ok := d.email.Mail(r.Subject, r.Email); ok {
		id, err := d.email.Transport.Send(ctx, m)
		d.observe("email", err == nil, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			out.EmailMessageID = id
			d.log.Info("email sent",
				zap.String("message_id", id),
				zap.String("to", strings.Join(m.To, ",")),
			)
		}
	} else {
		out.EmailSkipped = true
		d.observe("email", false, nil)
		d.log.Info("email skipped: mail report disabled or sender/recipients missing")
	}

	return out, errors.Join(errs...)
}

func (d *Dispatcher) observe(sink string, sent bool, err error) {
	if d.observer == nil {
		return
	}
	switch {
	case err != nil:
		d.observer.ObserveDelivery(sink, "failed")
	case sent:
		d.observer.ObserveDelivery(sink, "sent")
	default:
		d.observer.ObserveDelivery(sink, "skipped")
	}
}
