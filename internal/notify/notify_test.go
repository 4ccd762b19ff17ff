package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/notify"
)

func TestWhapi_PostsText(t *testing.T) {
	var got map[string]any
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := notify.NewWhapi(srv.URL+"/", "tok", srv.Client())
	require.NoError(t, w.Notify(context.Background(), notify.Message{To: "+24106123456", Body: "hello"}))

	require.Equal(t, "Bearer tok", auth)
	require.Equal(t, "/messages/text", path)
	require.Equal(t, "24106123456", got["to"])
	require.Equal(t, "hello", got["body"])
	require.EqualValues(t, 0, got["typing_time"])
}

func TestWhapi_Failures(t *testing.T) {
	status := http.StatusBadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", status)
	}))
	defer srv.Close()
	ctx := context.Background()
	m := notify.Message{To: "+1", Body: "x"}

	err := notify.NewWhapi(srv.URL, "tok", nil).Notify(ctx, m)
	require.ErrorIs(t, err, notify.ErrPermanent)
	require.Contains(t, err.Error(), "nope")

	status = http.StatusBadGateway
	err = notify.NewWhapi(srv.URL, "tok", nil).Notify(ctx, m)
	require.Error(t, err)
	require.NotErrorIs(t, err, notify.ErrPermanent)

	err = notify.NewWhapi(srv.URL, "", nil).Notify(ctx, m)
	require.ErrorIs(t, err, notify.ErrPermanent)
}

func TestTemplates(t *testing.T) {
	require.Contains(t, notify.Registration("Ada"), "Bonjour Ada")
	require.Contains(t, notify.PreTestPassed("Ada", 7, 10, 70), "Votre score : 7/10 (70%)")
	require.Contains(t, notify.PreTestFailed("Ada", 3, 10, 30), "Score minimum requis : 50%")

	up := notify.PostTestCompleted("Ada", 9, 10, 90, 20)
	require.Contains(t, up, "Progression : +20%")
	flat := notify.PostTestCompleted("Ada", 5, 10, 50, 0)
	require.NotContains(t, flat, "Progression")
	require.NotContains(t, notify.PostTestCompleted("Ada", 4, 10, 40, -10), "Progression")
}

type recorder struct {
	msgs []notify.Message
	err  error
}

func (r *recorder) Notify(_ context.Context, m notify.Message) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func TestEvents_ChoosesTemplate(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	ev := notify.NewEvents(rec, nil)
	p := exam.Profile{ID: "p1", FullName: "Ada", WhatsAppNumber: "+33600000000"}

	ev.Registered(ctx, p)
	ev.TestScored(ctx, p, exam.Attempt{Type: exam.TypePre, Score: 5, MaxScore: 10}, nil)
	ev.TestScored(ctx, p, exam.Attempt{Type: exam.TypePre, Score: 4, MaxScore: 10}, nil)
	pre := &exam.Attempt{Type: exam.TypePre, Score: 5, MaxScore: 10}
	ev.TestScored(ctx, p, exam.Attempt{Type: exam.TypePost, Score: 8, MaxScore: 10}, pre)
	ev.PostTestAvailable(ctx, p)
	ev.LoginLink(ctx, p, "https://x/student/dashboard?token=abc")

	require.Len(t, rec.msgs, 6)
	for _, m := range rec.msgs {
		require.Equal(t, "+33600000000", m.To)
	}
	require.Contains(t, rec.msgs[1].Body, "Réussi")
	require.Contains(t, rec.msgs[2].Body, "Non Validé")
	require.Contains(t, rec.msgs[3].Body, "Progression : +30%")
	require.Contains(t, rec.msgs[4].Body, "Disponible")
	require.Contains(t, rec.msgs[5].Body, "token=abc")
}

func TestEvents_SwallowsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("down")}
	require.NotPanics(t, func() {
		notify.NewEvents(rec, nil).Registered(context.Background(), exam.Profile{FullName: "Ada"})
	})
	require.Len(t, rec.msgs, 1)
}

type acks struct{ acked, dropped, requeued int }

func (a *acks) Ack(uint64, bool) error { a.acked++; return nil }
func (a *acks) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued++
	} else {
		a.dropped++
	}
	return nil
}
func (a *acks) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func delivery(a *acks, body string, redelivered bool) amqp.Delivery {
	return amqp.Delivery{Acknowledger: a, Body: []byte(body), Redelivered: redelivered}
}

func TestConsume_AckPolicy(t *testing.T) {
	a := &acks{}
	ok := `{"to":"+1","body":"hi"}`
	msgs := make(chan amqp.Delivery, 8)

	good := &recorder{}
	msgs <- delivery(a, ok, false)
	msgs <- delivery(a, `not json`, false)
	msgs <- delivery(a, `{"body":"no recipient"}`, false)
	close(msgs)
	require.ErrorIs(t, notify.Consume(context.Background(), msgs, good, nil), notify.ErrDeliveriesClosed)
	require.Equal(t, acks{acked: 1, dropped: 2}, *a)
	require.Len(t, good.msgs, 1)

	*a = acks{}
	msgs = make(chan amqp.Delivery, 8)
	msgs <- delivery(a, ok, false)
	msgs <- delivery(a, ok, true)
	close(msgs)
	require.ErrorIs(t, notify.Consume(context.Background(), msgs, &recorder{err: errors.New("timeout")}, nil), notify.ErrDeliveriesClosed)
	require.Equal(t, acks{requeued: 1, dropped: 1}, *a)

	*a = acks{}
	msgs = make(chan amqp.Delivery, 8)
	msgs <- delivery(a, ok, false)
	close(msgs)
	require.ErrorIs(t, notify.Consume(context.Background(), msgs, &recorder{err: notify.ErrPermanent}, nil), notify.ErrDeliveriesClosed)
	require.Equal(t, acks{dropped: 1}, *a)
}

func TestConsume_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := notify.Consume(ctx, make(chan amqp.Delivery), &recorder{}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConsume_ClosedChannel(t *testing.T) {
	msgs := make(chan amqp.Delivery)
	close(msgs)
	err := notify.Consume(context.Background(), msgs, &recorder{}, nil)
	require.ErrorIs(t, err, notify.ErrDeliveriesClosed, "a dropped broker connection must not look like a clean exit")

	// the consumer closes its channel on shutdown; that stays a cancellation
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, notify.Consume(ctx, msgs, &recorder{}, nil), context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	var b strings.Builder
	n := notify.LogNotifier{Log: slog.New(slog.NewTextHandler(&b, nil))}
	require.NoError(t, n.Notify(context.Background(), notify.Message{To: "+1", Body: "x"}))
	require.Contains(t, b.String(), "to=+1")
}
