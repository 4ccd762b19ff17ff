package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mind-engage/masterclass/internal/exam"
)

// Tick is the countdown resolution.
const Tick = time.Second

// DefaultBudget applies when a question set carries no per-question time.
const DefaultBudget = 30 * time.Second

type State int

const (
	Answering State = iota
	Submitting
	Completed
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Answering:
		return "answering"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrBusy         = errors.New("quiz: submission in progress")
	ErrClosed       = errors.New("quiz: runner closed")
	ErrNotAnswering = errors.New("quiz: not accepting answers")
	ErrNoQuestions  = errors.New("quiz: empty question set")
)

// UnansweredError rejects a submission locally. It matches exam.ErrValidation.
type UnansweredError struct{ Count int }

func (e *UnansweredError) Error() string {
	return fmt.Sprintf("%d unanswered question(s)", e.Count)
}

func (e *UnansweredError) Is(target error) bool { return target == exam.ErrValidation }

// Submitter is the scoring sink.
type Submitter interface {
	Submit(ctx context.Context, sub exam.Submission) (exam.Outcome, error)
}

// QuestionSource renders a question set for an enrollment.
type QuestionSource interface {
	Questions(ctx context.Context, enrollmentID string, t exam.TestType) (exam.QuestionSet, error)
}

// Snapshot is an immutable view handed to observers.
type Snapshot struct {
	State     State
	Index     int
	Total     int
	Remaining time.Duration
	Budget    time.Duration
	Answered  int
	Expired   bool // last question ran out of time with answers missing
	Question  Shuffled
	Selected  exam.Letter // displayed letter, empty if none
	Err       error
	Outcome   *exam.Outcome
}

type Option func(*Runner)

func WithScheduler(s Scheduler) Option { return func(r *Runner) { r.sched = s } }
func WithShuffler(s *Shuffler) Option { return func(r *Runner) { r.shuffler = s } }
func WithOnChange(f func(Snapshot)) Option { return func(r *Runner) { r.onChange = f } }
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }
func WithBudget(d time.Duration) Option { return func(r *Runner) { r.budget = d } }

// Runner drives one attempt: one question at a time under a countdown.
// Its timer is an explicit Task, replaced on every transition.
type Runner struct {
	mu sync.Mutex

	enrollmentID string
	testType     exam.TestType
	questions    []Shuffled
	budget       time.Duration
	sink         Submitter

	sched    Scheduler
	shuffler *Shuffler
	onChange func(Snapshot)
	log      *slog.Logger

	ctx       context.Context
	state     State
	index     int
	remaining time.Duration
	expired   bool
	answers   map[string]exam.Letter // question id -> displayed letter
	task      Task
	gen       uint64
	lastErr   error
	outcome   *exam.Outcome
}

// NewRunner shuffles the set and returns a runner in Answering(0). Call
// Start to begin the countdown.
func NewRunner(enrollmentID string, set exam.QuestionSet, sink Submitter, opts ...Option) (*Runner, error) {
	r := &Runner{
		enrollmentID: enrollmentID,
		testType:     set.Type,
		sink:         sink,
		budget:       set.PerQuestion(),
		answers:      map[string]exam.Letter{},
		state:        Answering,
	}
	for _, o := range opts {
		o(r)
	}
	if r.budget <= 0 {
		r.budget = DefaultBudget
	}
	if r.sched == nil {
		r.sched = TickerScheduler{}
	}
	if r.shuffler == nil {
		r.shuffler = NewShuffler(nil)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if len(set.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	qs, err := r.shuffler.ShuffleAll(set.Questions)
	if err != nil {
		return nil, err
	}
	r.questions = qs
	r.remaining = r.budget
	return r, nil
}

// Load fetches a fresh question set from src and builds a runner for it.
func Load(ctx context.Context, src QuestionSource, enrollmentID string, t exam.TestType, sink Submitter, opts ...Option) (*Runner, error) {
	set, err := src.Questions(ctx, enrollmentID, t)
	if err != nil {
		return nil, err
	}
	if set.Type == "" {
		set.Type = t
	}
	return NewRunner(enrollmentID, set, sink, opts...)
}

// Start begins the countdown on the current question. ctx is used for
// automatic submissions.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.state != Answering || r.task != nil {
		r.mu.Unlock()
		return
	}
	r.ctx = ctx
	r.restartLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)
}

// Select records a displayed letter for the current question.
func (r *Runner) Select(l exam.Letter) error {
	if !l.Valid() {
		return fmt.Errorf("%w: choice must be A, B, C or D", exam.ErrValidation)
	}
	r.mu.Lock()
	if err := r.answeringLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.answers[r.questions[r.index].ID] = l
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)
	return nil
}

// Next moves forward. It is a no-op on the last question.
func (r *Runner) Next() error { return r.move(+1) }

// Prev moves back; the revisited question gets a full budget again.
func (r *Runner) Prev() error { return r.move(-1) }

func (r *Runner) move(delta int) error {
	r.mu.Lock()
	if err := r.answeringLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	to := r.index + delta
	if to < 0 || to >= len(r.questions) {
		r.mu.Unlock()
		return nil
	}
	r.gotoLocked(to)
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)
	return nil
}

// Submit checks every question is answered, converts displayed letters to
// canonical ones and calls the sink once. On sink failure the runner returns
// to the last question with the error kept, and answers are preserved.
func (r *Runner) Submit(ctx context.Context) (exam.Outcome, error) {
	r.mu.Lock()
	sub, err := r.beginSubmitLocked()
	if err != nil {
		r.mu.Unlock()
		return exam.Outcome{}, err
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)

	return r.finishSubmit(ctx, sub)
}

func (r *Runner) beginSubmitLocked() (exam.Submission, error) {
	switch r.state {
	case Submitting:
		return exam.Submission{}, ErrBusy
	case Closed:
		return exam.Submission{}, ErrClosed
	case Completed:
		return exam.Submission{}, ErrNotAnswering
	}
	if n := r.unansweredLocked(); n > 0 {
		return exam.Submission{}, &UnansweredError{Count: n}
	}
	canonical := make(map[string]exam.Letter, len(r.questions))
	for _, q := range r.questions {
		c, ok := q.Mapping.Canonical(r.answers[q.ID])
		if !ok {
			return exam.Submission{}, fmt.Errorf("question %s: no mapping for %q", q.ID, r.answers[q.ID])
		}
		canonical[q.ID] = c
	}
	r.stopLocked()
	r.state = Submitting
	r.lastErr = nil
	return exam.Submission{EnrollmentID: r.enrollmentID, Type: r.testType, Answers: canonical}, nil
}

func (r *Runner) finishSubmit(ctx context.Context, sub exam.Submission) (exam.Outcome, error) {
	out, err := r.sink.Submit(ctx, sub)

	r.mu.Lock()
	if r.state == Closed {
		r.mu.Unlock()
		if err != nil {
			return exam.Outcome{}, err
		}
		return out, nil
	}
	if err != nil {
		r.log.Warn("quiz submission failed", "enrollment_id", r.enrollmentID, "type", r.testType, "err", err)
		r.state = Failed
		r.lastErr = err
		failed := r.snapshotLocked()
		// back to the last question; retry is manual, so no countdown runs
		r.state = Answering
		r.index = len(r.questions) - 1
		r.remaining = r.budget
		r.expired = false
		back := r.snapshotLocked()
		r.mu.Unlock()
		r.emit(failed)
		r.emit(back)
		return exam.Outcome{}, err
	}
	r.state = Completed
	r.outcome = &out
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)
	return out, nil
}

// Close tears down the countdown. The attempt cannot be resumed.
func (r *Runner) Close() {
	r.mu.Lock()
	r.stopLocked()
	if r.state != Completed {
		r.state = Closed
	}
	r.mu.Unlock()
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Answers returns a copy of the recorded displayed letters.
func (r *Runner) Answers() map[string]exam.Letter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]exam.Letter, len(r.answers))
	for k, v := range r.answers {
		out[k] = v
	}
	return out
}

// ---------- internals (r.mu held) ----------

func (r *Runner) answeringLocked() error {
	switch r.state {
	case Answering:
		return nil
	case Submitting:
		return ErrBusy
	case Closed:
		return ErrClosed
	}
	return ErrNotAnswering
}

func (r *Runner) gotoLocked(i int) {
	r.index = i
	r.expired = false
	r.remaining = r.budget
	r.restartLocked()
}

func (r *Runner) restartLocked() {
	r.stopLocked()
	if r.ctx == nil {
		return // not started
	}
	r.gen++
	gen := r.gen
	r.task = r.sched.Every(Tick, func() { r.tick(gen) })
}

func (r *Runner) stopLocked() {
	if r.task != nil {
		r.task.Stop()
		r.task = nil
	}
}

func (r *Runner) unansweredLocked() int {
	n := 0
	for _, q := range r.questions {
		if _, ok := r.answers[q.ID]; !ok {
			n++
		}
	}
	return n
}

func (r *Runner) tick(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || r.task == nil || r.state != Answering {
		r.mu.Unlock()
		return
	}
	r.remaining -= Tick
	if r.remaining > 0 {
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.emit(snap)
		return
	}
	r.remaining = 0

	if r.index < len(r.questions)-1 {
		r.gotoLocked(r.index + 1)
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.emit(snap)
		return
	}

	// last question ran out
	if r.unansweredLocked() > 0 {
		r.stopLocked()
		r.expired = true
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.emit(snap)
		return
	}
	sub, err := r.beginSubmitLocked()
	ctx := r.ctx
	if err != nil {
		r.mu.Unlock()
		return
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)
	_, _ = r.finishSubmit(ctx, sub)
}

func (r *Runner) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     r.state,
		Index:     r.index,
		Total:     len(r.questions),
		Remaining: r.remaining,
		Budget:    r.budget,
		Answered:  len(r.questions) - r.unansweredLocked(),
		Expired:   r.expired,
		Err:       r.lastErr,
		Outcome:   r.outcome,
	}
	if r.index < len(r.questions) {
		q := r.questions[r.index]
		s.Question = q
		s.Selected = r.answers[q.ID]
	}
	return s
}

func (r *Runner) emit(s Snapshot) {
	if r.onChange != nil {
		r.onChange(s)
	}
}
