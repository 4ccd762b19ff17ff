package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/quiz"
)

/* ---------------- fakes ---------------- */

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	s       *fakeScheduler
	f       func()
	stopped bool
}

func (t *fakeTask) Stop() {
	t.s.mu.Lock()
	t.stopped = true
	t.s.mu.Unlock()
}

func (s *fakeScheduler) Every(_ time.Duration, f func()) quiz.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTask{s: s, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *fakeScheduler) active() []*fakeTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTask
	for _, t := range s.tasks {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// advance fires n ticks on whichever task is live at each tick.
func (s *fakeScheduler) advance(n int) {
	for i := 0; i < n; i++ {
		live := s.active()
		if len(live) == 0 {
			return
		}
		live[0].f()
	}
}

type fakeSink struct {
	mu    sync.Mutex
	subs  []exam.Submission
	errs  []error // consumed in order; nil entries succeed
	block chan struct{}
}

func (s *fakeSink) Submit(_ context.Context, sub exam.Submission) (exam.Outcome, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return exam.Outcome{}, err
		}
	}
	return exam.Outcome{AttemptID: "t1", Score: len(sub.Answers), MaxScore: len(sub.Answers), Percentage: 100, Passed: true}, nil
}

func (s *fakeSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func questionSet(n, seconds int) exam.QuestionSet {
	set := exam.QuestionSet{Type: exam.TypePre, SecondsPerQuestion: seconds}
	for i := 0; i < n; i++ {
		set.Questions = append(set.Questions, sampleQuestion(fmt.Sprintf("q%d", i)))
	}
	return set
}

type harness struct {
	runner *quiz.Runner
	sched  *fakeScheduler
	sink   *fakeSink
	mu     sync.Mutex
	snaps  []quiz.Snapshot
}

func newHarness(t *testing.T, n, seconds int) *harness {
	t.Helper()
	h := &harness{sched: &fakeScheduler{}, sink: &fakeSink{}}
	r, err := quiz.NewRunner("enr-1", questionSet(n, seconds), h.sink,
		quiz.WithScheduler(h.sched),
		quiz.WithShuffler(quiz.NewShuffler(rand.NewPCG(9, 9))),
		quiz.WithOnChange(func(s quiz.Snapshot) {
			h.mu.Lock()
			h.snaps = append(h.snaps, s)
			h.mu.Unlock()
		}),
	)
	require.NoError(t, err)
	h.runner = r
	t.Cleanup(r.Close)
	r.Start(context.Background())
	return h
}

// answer selects a displayed letter and returns the canonical letter it maps to.
func (h *harness) answer(t *testing.T, d exam.Letter) (string, exam.Letter) {
	t.Helper()
	require.NoError(t, h.runner.Select(d))
	snap := h.runner.Snapshot()
	c, ok := snap.Question.Mapping.Canonical(d)
	require.True(t, ok)
	return snap.Question.ID, c
}

/* ---------------- tests ---------------- */

func TestRunner_LastQuestionExpiryAutoSubmitsWhenAllAnswered(t *testing.T) {
	h := newHarness(t, 4, 15)
	want := map[string]exam.Letter{}

	for i := 0; i < 3; i++ {
		h.sched.advance(5)
		id, c := h.answer(t, exam.Letters[i])
		want[id] = c
		require.NoError(t, h.runner.Next())
	}
	id, c := h.answer(t, exam.D)
	want[id] = c

	h.sched.advance(14)
	require.Zero(t, h.sink.calls())
	h.sched.advance(1)

	require.Equal(t, 1, h.sink.calls())
	require.Equal(t, want, h.sink.subs[0].Answers, "answers must be sent as canonical letters")
	require.Equal(t, "enr-1", h.sink.subs[0].EnrollmentID)
	require.Equal(t, exam.TypePre, h.sink.subs[0].Type)

	snap := h.runner.Snapshot()
	require.Equal(t, quiz.Completed, snap.State)
	require.NotNil(t, snap.Outcome)
	require.Empty(t, h.sched.active(), "no timer after completion")
}

func TestRunner_LastQuestionExpiryWithoutAllAnswersDoesNotSubmit(t *testing.T) {
	h := newHarness(t, 4, 15)
	for i := 0; i < 3; i++ {
		h.answer(t, exam.A)
		require.NoError(t, h.runner.Next())
	}

	h.sched.advance(15)
	require.Zero(t, h.sink.calls())

	snap := h.runner.Snapshot()
	require.Equal(t, quiz.Answering, snap.State)
	require.Equal(t, 3, snap.Index)
	require.True(t, snap.Expired)
	require.Equal(t, time.Duration(0), snap.Remaining)
	require.Empty(t, h.sched.active(), "timer is torn down on expiry")

	// the user can still answer and submit by hand
	h.answer(t, exam.B)
	out, err := h.runner.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, out.MaxScore)
	require.Equal(t, 1, h.sink.calls())
}

func TestRunner_ExpiryAutoAdvances(t *testing.T) {
	h := newHarness(t, 3, 10)

	h.sched.advance(9)
	snap := h.runner.Snapshot()
	require.Equal(t, 0, snap.Index)
	require.Equal(t, time.Second, snap.Remaining)

	h.sched.advance(1)
	snap = h.runner.Snapshot()
	require.Equal(t, 1, snap.Index)
	require.Equal(t, 10*time.Second, snap.Remaining)

	h.sched.advance(20)
	snap = h.runner.Snapshot()
	require.Equal(t, 2, snap.Index)
	require.True(t, snap.Expired)
	require.Zero(t, h.sink.calls())
}

func TestRunner_EachTransitionReplacesTheTimer(t *testing.T) {
	h := newHarness(t, 3, 10)
	require.Len(t, h.sched.active(), 1)

	require.NoError(t, h.runner.Next())
	require.NoError(t, h.runner.Prev())
	h.sched.advance(10)

	require.Len(t, h.sched.active(), 1, "exactly one live timer")
	h.sched.mu.Lock()
	total := len(h.sched.tasks)
	h.sched.mu.Unlock()
	require.Equal(t, 4, total)

	h.runner.Close()
	require.Empty(t, h.sched.active())
	require.ErrorIs(t, h.runner.Select(exam.A), quiz.ErrClosed)
	_, err := h.runner.Submit(context.Background())
	require.ErrorIs(t, err, quiz.ErrClosed)
}

func TestRunner_PrevResetsBudget(t *testing.T) {
	h := newHarness(t, 3, 15)
	h.sched.advance(5)
	require.NoError(t, h.runner.Next())
	h.sched.advance(4)
	require.NoError(t, h.runner.Prev())

	snap := h.runner.Snapshot()
	require.Equal(t, 0, snap.Index)
	require.Equal(t, 15*time.Second, snap.Remaining)

	// bounds are no-ops
	require.NoError(t, h.runner.Prev())
	require.Equal(t, 0, h.runner.Snapshot().Index)
}

func TestRunner_SubmitGuardCountsUnanswered(t *testing.T) {
	h := newHarness(t, 4, 15)
	h.answer(t, exam.C)
	require.NoError(t, h.runner.Next())
	h.answer(t, exam.A)

	_, err := h.runner.Submit(context.Background())
	var ue *quiz.UnansweredError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, 2, ue.Count)
	require.ErrorIs(t, err, exam.ErrValidation)
	require.Zero(t, h.sink.calls(), "no network call")
	require.Equal(t, quiz.Answering, h.runner.Snapshot().State)
	require.Len(t, h.sched.active(), 1, "timer keeps running")
}

func TestRunner_FailureReturnsToLastQuestionAndRetries(t *testing.T) {
	h := newHarness(t, 2, 15)
	boom := errors.New("database unavailable")
	h.sink.errs = []error{boom}

	h.answer(t, exam.A)
	require.NoError(t, h.runner.Next())
	h.answer(t, exam.B)

	_, err := h.runner.Submit(context.Background())
	require.ErrorIs(t, err, boom)

	snap := h.runner.Snapshot()
	require.Equal(t, quiz.Answering, snap.State)
	require.Equal(t, 1, snap.Index)
	require.ErrorIs(t, snap.Err, boom)
	require.Equal(t, 2, snap.Answered, "answers survive the failure")

	h.mu.Lock()
	var states []quiz.State
	for _, s := range h.snaps {
		states = append(states, s.State)
	}
	h.mu.Unlock()
	require.Contains(t, states, quiz.Submitting)
	require.Contains(t, states, quiz.Failed)

	out, err := h.runner.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t1", out.AttemptID)
	require.Equal(t, 2, h.sink.calls())
	require.Equal(t, h.sink.subs[0].Answers, h.sink.subs[1].Answers)
	require.Equal(t, quiz.Completed, h.runner.Snapshot().State)
}

func TestRunner_RejectsConcurrentSubmit(t *testing.T) {
	h := newHarness(t, 1, 15)
	h.sink.block = make(chan struct{})
	h.answer(t, exam.A)

	done := make(chan error, 1)
	go func() {
		_, err := h.runner.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool {
		return h.runner.Snapshot().State == quiz.Submitting
	}, time.Second, 5*time.Millisecond)

	_, err := h.runner.Submit(context.Background())
	require.ErrorIs(t, err, quiz.ErrBusy)
	require.ErrorIs(t, h.runner.Select(exam.B), quiz.ErrBusy)

	close(h.sink.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, h.sink.calls())
}

func TestRunner_SelectValidatesLetter(t *testing.T) {
	h := newHarness(t, 1, 15)
	require.ErrorIs(t, h.runner.Select("E"), exam.ErrValidation)
	require.Zero(t, h.runner.Snapshot().Answered)
}

func TestNewRunner_EmptySet(t *testing.T) {
	_, err := quiz.NewRunner("enr-1", exam.QuestionSet{Type: exam.TypePre}, &fakeSink{})
	require.ErrorIs(t, err, quiz.ErrNoQuestions)
}

type stubSource struct{ set exam.QuestionSet }

func (s stubSource) Questions(context.Context, string, exam.TestType) (exam.QuestionSet, error) {
	return s.set, nil
}

func TestLoad_UsesSetBudget(t *testing.T) {
	set := questionSet(2, 20)
	set.Type = ""
	r, err := quiz.Load(context.Background(), stubSource{set}, "enr-1", exam.TypePost, &fakeSink{}, quiz.WithScheduler(&fakeScheduler{}))
	require.NoError(t, err)
	defer r.Close()
	snap := r.Snapshot()
	require.Equal(t, 20*time.Second, snap.Budget)
	require.Equal(t, 2, snap.Total)
}

func TestTickerScheduler_StopIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	n := 0
	task := quiz.TickerScheduler{}.Every(time.Millisecond, func() {
		mu.Lock()
		n++
		mu.Unlock()
	})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return n > 0
	}, time.Second, time.Millisecond)
	task.Stop()
	task.Stop()
}
