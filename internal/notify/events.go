package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/mind-engage/masterclass/internal/exam"
)

const sendTimeout = 15 * time.Second

// Events turns domain events into WhatsApp messages. Delivery is best
// effort: failures are logged and never reach the caller.
type Events struct {
	n   Notifier
	log *slog.Logger
}

func NewEvents(n Notifier, log *slog.Logger) *Events {
	if log == nil {
		log = slog.Default()
	}
	return &Events{n: n, log: log}
}

func (e *Events) send(ctx context.Context, kind string, p exam.Profile, body string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	if err := e.n.Notify(ctx, Message{To: p.WhatsAppNumber, Body: body}); err != nil {
		e.log.ErrorContext(ctx, "notify", "kind", kind, "profile_id", p.ID, "err", err)
	}
}

func (e *Events) Registered(ctx context.Context, p exam.Profile) {
	e.send(ctx, "registration", p, Registration(p.FullName))
}

func (e *Events) TestScored(ctx context.Context, p exam.Profile, a exam.Attempt, pre *exam.Attempt) {
	pct := a.Percentage()
	switch {
	case a.Type == exam.TypePre && a.Passed():
		e.send(ctx, "pre_passed", p, PreTestPassed(p.FullName, a.Score, a.MaxScore, pct))
	case a.Type == exam.TypePre:
		e.send(ctx, "pre_failed", p, PreTestFailed(p.FullName, a.Score, a.MaxScore, pct))
	default:
		improvement := 0
		if pre != nil {
			improvement = pct - pre.Percentage()
		}
		e.send(ctx, "post_completed", p, PostTestCompleted(p.FullName, a.Score, a.MaxScore, pct, improvement))
	}
}

func (e *Events) PostTestAvailable(ctx context.Context, p exam.Profile) {
	e.send(ctx, "post_reminder", p, PostTestReminder(p.FullName))
}

func (e *Events) LoginLink(ctx context.Context, p exam.Profile, link string) {
	e.send(ctx, "login_link", p, LoginLink(p.FullName, link))
}
