package exam

import "context"

type QuestionListOpts struct {
	MasterclassID string
	Type          TestType // when set, matches questions of this type or untyped ones
	Q             string   // substring of question text
	Limit         int
	Offset        int
}

// Store is the persistence boundary for the assessment domain.
type Store interface {
	// InTx runs fn against a Store bound to one transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	// Question bank
	CreateQuestion(ctx context.Context, q Question) error
	UpdateQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, id string) error
	GetQuestion(ctx context.Context, id string) (Question, error)
	ListQuestions(ctx context.Context, opts QuestionListOpts) ([]Question, error)
	// RandomQuestions is the attempt read path; correct choices are never loaded.
	RandomQuestions(ctx context.Context, masterclassID string, t TestType, n int) ([]PublicQuestion, error)
	// AnswerKeys is the scoring-only path. Missing ids are absent from the map.
	AnswerKeys(ctx context.Context, ids []string) (map[string]Question, error)

	// Attempts
	InsertAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	AttemptFor(ctx context.Context, enrollmentID string, t TestType) (Attempt, error)
	HasAttempt(ctx context.Context, enrollmentID string, t TestType) (bool, error)

	// People
	CreateProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, id string) (Profile, error)
	ProfileByEmail(ctx context.Context, email string) (Profile, error)
	CreateEnrollment(ctx context.Context, e Enrollment) error
	GetEnrollment(ctx context.Context, id string) (Enrollment, error)
	EnrollmentForProfile(ctx context.Context, profileID string) (Enrollment, error)
	SetValidated(ctx context.Context, enrollmentID string, v bool) error

	// Masterclasses and sessions
	DefaultMasterclass(ctx context.Context) (Masterclass, error)
	GetMasterclass(ctx context.Context, id string) (Masterclass, error)
	SetMaterialKey(ctx context.Context, masterclassID, key string) error
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, masterclassID string) ([]Session, error)
	SessionFor(ctx context.Context, enrollmentID string) (Session, error)
	BookSession(ctx context.Context, enrollmentID, sessionID string) error
	// PendingPostTests lists profiles booked on date with a PRE but no POST attempt.
	PendingPostTests(ctx context.Context, date string) ([]Profile, error)

	// AppendEvent writes an audit row.
	AppendEvent(ctx context.Context, typ, key string, data any) error
}
