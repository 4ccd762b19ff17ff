package exam_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/masterclass/internal/exam"
	syncx "github.com/mind-engage/masterclass/internal/sync"
)

func TestQuestionCRUD(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	q := exam.Question{
		ID: uuid.NewString(), MasterclassID: f.masterclass.ID, TestType: exam.TypePre,
		Text:    "What is 2+2?",
		Choices: exam.Choices{exam.A: "3", exam.B: "4", exam.C: "5", exam.D: "22"}, CorrectChoice: exam.B,
	}
	require.NoError(t, f.store.CreateQuestion(ctx, q))
	require.ErrorIs(t, f.store.CreateQuestion(ctx, q), exam.ErrConflict)

	got, err := f.store.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, q.Choices, got.Choices)
	require.Equal(t, exam.B, got.CorrectChoice)

	q.Text = "What is 2 + 2?"
	q.CorrectChoice = exam.B
	require.NoError(t, f.store.UpdateQuestion(ctx, q))

	list, err := f.store.ListQuestions(ctx, exam.QuestionListOpts{MasterclassID: f.masterclass.ID, Q: "2 + 2"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = f.store.ListQuestions(ctx, exam.QuestionListOpts{Type: exam.TypePost})
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, f.store.DeleteQuestion(ctx, q.ID))
	require.ErrorIs(t, f.store.DeleteQuestion(ctx, q.ID), exam.ErrNotFound)
	_, err = f.store.GetQuestion(ctx, q.ID)
	require.ErrorIs(t, err, exam.ErrNotFound)
	require.ErrorIs(t, f.store.UpdateQuestion(ctx, q), exam.ErrNotFound)
}

func TestRandomQuestions_TypeFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 6) // untyped
	choices := exam.Choices{exam.A: "1", exam.B: "2", exam.C: "3", exam.D: "4"}
	require.NoError(t, f.store.CreateQuestion(ctx, exam.Question{
		ID: "post-1", MasterclassID: f.masterclass.ID, TestType: exam.TypePost, Text: "p", Choices: choices, CorrectChoice: exam.D,
	}))

	pre, err := f.store.RandomQuestions(ctx, f.masterclass.ID, exam.TypePre, 100)
	require.NoError(t, err)
	require.Len(t, pre, 6)
	for _, q := range pre {
		require.NotEqual(t, "post-1", q.ID)
	}

	post, err := f.store.RandomQuestions(ctx, f.masterclass.ID, exam.TypePost, 3)
	require.NoError(t, err)
	require.Len(t, post, 3)
}

func TestAnswerKeys_SkipsUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	keys, err := f.store.AnswerKeys(ctx, []string{f.questions[0].ID, "missing", f.questions[2].ID})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, f.questions[2].CorrectChoice, keys[f.questions[2].ID].CorrectChoice)
}

func TestBookSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	se := exam.Session{ID: uuid.NewString(), MasterclassID: f.masterclass.ID, Date: "2025-11-10", Capacity: 1}
	require.NoError(t, f.store.CreateSession(ctx, se))

	book := func(enrollmentID, sessionID string) error {
		return f.store.InTx(ctx, func(tx exam.Store) error { return tx.BookSession(ctx, enrollmentID, sessionID) })
	}
	require.NoError(t, book(f.enrollment.ID, se.ID))

	got, err := f.store.SessionFor(ctx, f.enrollment.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Booked)
	require.True(t, got.Full())

	require.ErrorIs(t, book(f.enrollment.ID, se.ID), exam.ErrConflict)
	require.ErrorIs(t, book(f.enrollment.ID, "missing"), exam.ErrNotFound)

	// seat count must not move on a rejected booking
	got, err = f.store.GetSession(ctx, se.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Booked)
}

func TestInTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	err := f.store.InTx(ctx, func(tx exam.Store) error {
		if err := tx.SetValidated(ctx, f.enrollment.ID, true); err != nil {
			return err
		}
		return exam.ErrConflict
	})
	require.ErrorIs(t, err, exam.ErrConflict)

	enr, err := f.store.GetEnrollment(ctx, f.enrollment.ID)
	require.NoError(t, err)
	require.False(t, enr.Validated)
}

func TestSubmit_WritesAuditEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	_, err := newService(f, nil).Submit(ctx, exam.Submission{EnrollmentID: f.enrollment.ID, Type: exam.TypePre, Answers: f.answers(2)})
	require.NoError(t, err)

	events, err := syncx.NewEventRepo(f.db).List(ctx, f.enrollment.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "test.submitted", events[0].Type)
	require.Contains(t, events[0].DataJSON, `"score":2`)
}

func TestProfileEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	p := f.profile
	p.ID = uuid.NewString()
	p.Email = "ADA@example.com"
	require.ErrorIs(t, f.store.CreateProfile(ctx, p), exam.ErrConflict)

	got, err := f.store.ProfileByEmail(ctx, " Ada@Example.com ")
	require.NoError(t, err)
	require.Equal(t, f.profile.ID, got.ID)
}
