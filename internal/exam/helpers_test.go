package exam_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/masterclass/internal/db"
	"github.com/mind-engage/masterclass/internal/exam"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	d, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

type fixture struct {
	db          *sql.DB
	store       *exam.SQLStore
	masterclass exam.Masterclass
	profile     exam.Profile
	enrollment  exam.Enrollment
	questions   []exam.Question
}

// newFixture seeds one registrant and n questions whose correct choice
// cycles A..D.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	return seedFixture(t, openTestDB(t), db.DriverSQLite, n)
}

func seedFixture(t *testing.T, d *sql.DB, driver db.Driver, n int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := exam.NewSQLStore(d, driver)

	mc, err := store.DefaultMasterclass(ctx)
	require.NoError(t, err)

	p := exam.Profile{
		ID:             uuid.NewString(),
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
		DateOfBirth:    "1990-12-10",
		WhatsAppNumber: "+33612345678",
		CreatedAt:      time.Now().Unix(),
	}
	require.NoError(t, store.CreateProfile(ctx, p))
	enr := exam.Enrollment{ID: uuid.NewString(), ProfileID: p.ID, MasterclassID: mc.ID, RegistrationDate: time.Now().Unix()}
	require.NoError(t, store.CreateEnrollment(ctx, enr))

	f := &fixture{db: d, store: store, masterclass: mc, profile: p, enrollment: enr}
	for i := 0; i < n; i++ {
		q := exam.Question{
			ID:            fmt.Sprintf("q%02d", i),
			MasterclassID: mc.ID,
			Text:          fmt.Sprintf("Question %d?", i),
			Choices:       exam.Choices{exam.A: "alpha", exam.B: "bravo", exam.C: "charlie", exam.D: "delta"},
			CorrectChoice: exam.Letters[i%4],
		}
		require.NoError(t, store.CreateQuestion(ctx, q))
		f.questions = append(f.questions, q)
	}
	return f
}

// answers returns a submission with the first `correct` answers right and the rest wrong.
func (f *fixture) answers(correct int) map[string]exam.Letter {
	out := make(map[string]exam.Letter, len(f.questions))
	for i, q := range f.questions {
		l := q.CorrectChoice
		if i >= correct {
			l = wrong(l)
		}
		out[q.ID] = l
	}
	return out
}

func wrong(l exam.Letter) exam.Letter {
	if l == exam.A {
		return exam.B
	}
	return exam.A
}

func (f *fixture) bookSession(t *testing.T, date string) exam.Session {
	t.Helper()
	ctx := context.Background()
	se := exam.Session{ID: uuid.NewString(), MasterclassID: f.masterclass.ID, Date: date, Capacity: 10}
	require.NoError(t, f.store.CreateSession(ctx, se))
	require.NoError(t, f.store.InTx(ctx, func(tx exam.Store) error {
		return tx.BookSession(ctx, f.enrollment.ID, se.ID)
	}))
	se.Booked = 1
	return se
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type scoredCall struct {
	profile exam.Profile
	attempt exam.Attempt
	pre     *exam.Attempt
}

type fakeNotifier struct{ calls []scoredCall }

func (n *fakeNotifier) TestScored(_ context.Context, p exam.Profile, a exam.Attempt, pre *exam.Attempt) {
	n.calls = append(n.calls, scoredCall{p, a, pre})
}
