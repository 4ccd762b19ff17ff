package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/masterclass/internal/grading"
)

// ResultNotifier is told about every committed attempt. pre is the PRE
// attempt when a is a POST, for improvement messages.
type ResultNotifier interface {
	TestScored(ctx context.Context, p Profile, a Attempt, pre *Attempt)
}

type Options struct {
	PreSeconds    int
	PostSeconds   int
	QuestionCount int
	Location      *time.Location
	Now           func() time.Time
}

func (o *Options) defaults() {
	if o.PreSeconds <= 0 {
		o.PreSeconds = 30
	}
	if o.PostSeconds <= 0 {
		o.PostSeconds = 20
	}
	if o.QuestionCount <= 0 {
		o.QuestionCount = 10
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service owns the question read path, scoring and the POST gate.
type Service struct {
	store    Store
	log      *slog.Logger
	notifier ResultNotifier
	opts     Options
}

func NewService(store Store, log *slog.Logger, opts Options) *Service {
	opts.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log, opts: opts}
}

// WithNotifier sets the post-commit hook.
func (s *Service) WithNotifier(n ResultNotifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) Store() Store { return s.store }

func (s *Service) secondsFor(t TestType) int {
	if t == TypePost {
		return s.opts.PostSeconds
	}
	return s.opts.PreSeconds
}

// Questions renders a fresh question set for an enrollment. PRE is served
// only once; POST only while the gate is open.
func (s *Service) Questions(ctx context.Context, enrollmentID string, t TestType) (QuestionSet, error) {
	if !t.Valid() {
		return QuestionSet{}, fmt.Errorf("%w: test type must be PRE or POST", ErrValidation)
	}
	enr, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return QuestionSet{}, err
	}
	switch t {
	case TypePre:
		taken, err := s.store.HasAttempt(ctx, enrollmentID, TypePre)
		if err != nil {
			return QuestionSet{}, err
		}
		if taken {
			return QuestionSet{}, fmt.Errorf("pre-test already completed: %w", ErrConflict)
		}
	case TypePost:
		av, err := s.Availability(ctx, enrollmentID)
		if err != nil {
			return QuestionSet{}, err
		}
		if av.AlreadyTaken {
			return QuestionSet{}, fmt.Errorf("post-test already completed: %w", ErrConflict)
		}
		if !av.Available {
			return QuestionSet{}, fmt.Errorf("%s: %w", av.Reason, ErrUnavailable)
		}
	}
	qs, err := s.store.RandomQuestions(ctx, enr.MasterclassID, t, s.opts.QuestionCount)
	if err != nil {
		return QuestionSet{}, err
	}
	if len(qs) == 0 {
		return QuestionSet{}, fmt.Errorf("no %s questions: %w", t, ErrNotFound)
	}
	return QuestionSet{Type: t, SecondsPerQuestion: s.secondsFor(t), Questions: qs}, nil
}

func validateSubmission(sub Submission) error {
	if !sub.Type.Valid() {
		return fmt.Errorf("%w: test type must be PRE or POST", ErrValidation)
	}
	if sub.EnrollmentID == "" {
		return fmt.Errorf("%w: enrollment id required", ErrValidation)
	}
	if len(sub.Answers) == 0 {
		return fmt.Errorf("%w: no answers", ErrValidation)
	}
	for id, l := range sub.Answers {
		if !l.Valid() {
			return fmt.Errorf("%w: answer for %s must be A, B, C or D", ErrValidation, id)
		}
	}
	return nil
}

// Submit scores a submission and persists the attempt atomically. A POST
// submission is held to the same gate as the POST question fetch.
func (s *Service) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	if err := validateSubmission(sub); err != nil {
		return Outcome{}, err
	}

	var attempt Attempt
	err := s.store.InTx(ctx, func(tx Store) error {
		enr, err := tx.GetEnrollment(ctx, sub.EnrollmentID)
		if err != nil {
			return err
		}
		taken, err := tx.HasAttempt(ctx, enr.ID, sub.Type)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%s test already taken: %w", sub.Type, ErrConflict)
		}
		if sub.Type == TypePost {
			av, err := s.availability(ctx, tx, enr.ID)
			if err != nil {
				return err
			}
			if !av.Available {
				return fmt.Errorf("%s: %w", av.Reason, ErrUnavailable)
			}
		}

		ids := make([]string, 0, len(sub.Answers))
		for id := range sub.Answers {
			ids = append(ids, id)
		}
		bank, err := tx.AnswerKeys(ctx, ids)
		if err != nil {
			return err
		}
		key := grading.Key{}
		answers := make(map[string]string, len(sub.Answers))
		for id, l := range sub.Answers {
			q, ok := bank[id]
			// ids outside the enrollment's group or of the other type are treated as unknown
			if !ok || q.MasterclassID != enr.MasterclassID || !q.ServesType(sub.Type) {
				return fmt.Errorf("question %s: %w", id, ErrNotFound)
			}
			key[id] = string(q.CorrectChoice)
			answers[id] = string(l)
		}
		sheet, err := grading.Grade(key, answers)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrNotFound)
		}

		attempt = Attempt{
			ID:           uuid.NewString(),
			EnrollmentID: enr.ID,
			Type:         sub.Type,
			Score:        sheet.Score,
			MaxScore:     sheet.Max,
			TakenAt:      s.opts.Now().Unix(),
			Responses:    make([]Response, 0, len(sheet.Results)),
		}
		for _, r := range sheet.Results {
			attempt.Responses = append(attempt.Responses, Response{
				QuestionID: r.QuestionID,
				Submitted:  Letter(r.Submitted),
				Correct:    Letter(r.Correct),
				IsCorrect:  r.IsCorrect,
			})
		}
		if err := tx.InsertAttempt(ctx, attempt); err != nil {
			return err
		}
		if attempt.Type == TypePre && attempt.Passed() {
			if err := tx.SetValidated(ctx, enr.ID, true); err != nil {
				return err
			}
		}
		return tx.AppendEvent(ctx, "test.submitted", enr.ID, map[string]any{
			"test_id":   attempt.ID,
			"type":      attempt.Type,
			"score":     attempt.Score,
			"max_score": attempt.MaxScore,
		})
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		AttemptID:  attempt.ID,
		Score:      attempt.Score,
		MaxScore:   attempt.MaxScore,
		Percentage: attempt.Percentage(),
		Passed:     attempt.Passed(),
	}
	s.log.InfoContext(ctx, "test submitted",
		"enrollment_id", attempt.EnrollmentID, "type", attempt.Type,
		"score", attempt.Score, "max_score", attempt.MaxScore, "passed", out.Passed)

	if p, err := s.profileForEnrollment(ctx, attempt.EnrollmentID); err == nil {
		out.Email = p.Email
		s.notifyScored(ctx, p, attempt)
	} else {
		s.log.WarnContext(ctx, "load profile after submit", "enrollment_id", attempt.EnrollmentID, "err", err)
	}
	return out, nil
}

func (s *Service) notifyScored(ctx context.Context, p Profile, a Attempt) {
	if s.notifier == nil {
		return
	}
	var pre *Attempt
	if a.Type == TypePost {
		if pa, err := s.store.AttemptFor(ctx, a.EnrollmentID, TypePre); err == nil {
			pre = &pa
		}
	}
	s.notifier.TestScored(ctx, p, a, pre)
}

func (s *Service) profileForEnrollment(ctx context.Context, enrollmentID string) (Profile, error) {
	enr, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Profile{}, err
	}
	return s.store.GetProfile(ctx, enr.ProfileID)
}

// Result joins a stored attempt with its questions for review.
func (s *Service) Result(ctx context.Context, attemptID string) (Result, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	p, err := s.profileForEnrollment(ctx, a.EnrollmentID)
	if err != nil {
		return Result{}, err
	}
	ids := make([]string, 0, len(a.Responses))
	for _, r := range a.Responses {
		ids = append(ids, r.QuestionID)
	}
	bank, err := s.store.AnswerKeys(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Attempt:      a,
		Percentage:   a.Percentage(),
		Passed:       a.Passed(),
		StudentName:  p.FullName,
		EnrollmentID: a.EnrollmentID,
		Items:        make([]ResultItem, 0, len(a.Responses)),
	}
	for _, r := range a.Responses {
		item := ResultItem{Response: r}
		if q, ok := bank[r.QuestionID]; ok {
			item.Question = &q
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

// Availability evaluates the POST gate for an enrollment at the current time.
func (s *Service) Availability(ctx context.Context, enrollmentID string) (Availability, error) {
	return s.availability(ctx, s.store, enrollmentID)
}

func (s *Service) availability(ctx context.Context, st Store, enrollmentID string) (Availability, error) {
	hasPre, err := st.HasAttempt(ctx, enrollmentID, TypePre)
	if err != nil {
		return Availability{}, err
	}
	hasPost, err := st.HasAttempt(ctx, enrollmentID, TypePost)
	if err != nil {
		return Availability{}, err
	}
	var date string
	switch se, err := st.SessionFor(ctx, enrollmentID); {
	case err == nil:
		date = se.Date
	case !errors.Is(err, ErrNotFound):
		return Availability{}, err
	}
	return PostAvailability(date, hasPre, hasPost, s.opts.Now(), s.opts.Location), nil
}

// Dashboard collects the student's home view.
func (s *Service) Dashboard(ctx context.Context, enrollmentID string) (Dashboard, error) {
	enr, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Dashboard{}, err
	}
	p, err := s.store.GetProfile(ctx, enr.ProfileID)
	if err != nil {
		return Dashboard{}, err
	}
	mc, err := s.store.GetMasterclass(ctx, enr.MasterclassID)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{FullName: p.FullName, Email: p.Email, Enrollment: enr, Masterclass: mc}
	if se, err := s.store.SessionFor(ctx, enr.ID); err == nil {
		d.Session = &se
	} else if !errors.Is(err, ErrNotFound) {
		return Dashboard{}, err
	}
	for _, t := range []TestType{TypePre, TypePost} {
		a, err := s.store.AttemptFor(ctx, enr.ID, t)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Dashboard{}, err
		}
		if t == TypePre {
			d.PreTest = &a
		} else {
			d.PostTest = &a
		}
	}
	date := ""
	if d.Session != nil {
		date = d.Session.Date
	}
	d.Availability = PostAvailability(date, d.PreTest != nil, d.PostTest != nil, s.opts.Now(), s.opts.Location)
	return d, nil
}

// Reminder announces that the POST test is open.
type Reminder interface {
	PostTestAvailable(ctx context.Context, p Profile)
}

// RemindPostTests notifies everyone booked on date who still owes the POST
// test. It refuses before the unlock instant.
func (s *Service) RemindPostTests(ctx context.Context, date string, r Reminder) (int, error) {
	unlock, err := UnlockInstant(date, s.opts.Location)
	if err != nil {
		return 0, err
	}
	if s.opts.Now().Before(unlock) {
		return 0, fmt.Errorf("post-test opens at %s: %w", unlock.Format(time.RFC3339), ErrUnavailable)
	}
	pending, err := s.store.PendingPostTests(ctx, date)
	if err != nil {
		return 0, err
	}
	for _, p := range pending {
		r.PostTestAvailable(ctx, p)
	}
	s.log.InfoContext(ctx, "post-test reminders sent", "date", date, "count", len(pending))
	return len(pending), nil
}
