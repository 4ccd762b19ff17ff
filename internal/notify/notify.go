// Package notify delivers WhatsApp messages to students, directly through
// Whapi or via a queue drained by cmd/notifyd.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("notify: permanent failure")

type Message struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// LogNotifier only logs. Used offline and when no driver is configured.
type LogNotifier struct{ Log *slog.Logger }

func (n LogNotifier) Notify(ctx context.Context, m Message) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notification", "to", m.To, "body", m.Body)
	return nil
}
