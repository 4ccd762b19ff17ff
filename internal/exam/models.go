package exam

import (
	"fmt"
	"strings"
	"time"
)

// Letter is one of the four answer keys A..D.
type Letter string

const (
	A Letter = "A"
	B Letter = "B"
	C Letter = "C"
	D Letter = "D"
)

// Letters in canonical order.
var Letters = [4]Letter{A, B, C, D}

func (l Letter) Valid() bool {
	switch l {
	case A, B, C, D:
		return true
	}
	return false
}

// ParseLetter accepts upper or lower case.
func ParseLetter(s string) (Letter, bool) {
	l := Letter(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Valid()
}

type TestType string

const (
	TypePre  TestType = "PRE"  // first attempt, gates validation
	TypePost TestType = "POST" // follow-up, measures progress
)

func (t TestType) Valid() bool { return t == TypePre || t == TypePost }

// ParseTestType accepts upper or lower case.
func ParseTestType(s string) (TestType, bool) {
	t := TestType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Choices maps each canonical letter to its text.
type Choices map[Letter]string

// Validate checks that exactly the four canonical keys are present and non-empty.
func (c Choices) Validate() error {
	if len(c) != len(Letters) {
		return fmt.Errorf("%w: exactly 4 choices (A, B, C, D) required", ErrValidation)
	}
	for _, l := range Letters {
		if strings.TrimSpace(c[l]) == "" {
			return fmt.Errorf("%w: choice %s is required", ErrValidation, l)
		}
	}
	return nil
}

// Question is the admin/scoring view; it carries the correct choice.
type Question struct {
	ID            string   `json:"id"`
	MasterclassID string   `json:"masterclass_id"`
	TestType      TestType `json:"test_type,omitempty"` // empty: usable for both
	Text          string   `json:"question_text"`
	Choices       Choices  `json:"choices"`
	CorrectChoice Letter   `json:"correct_choice"`
	CreatedAt     int64    `json:"created_at,omitempty"`
}

func (q Question) Validate() error {
	if strings.TrimSpace(q.MasterclassID) == "" {
		return fmt.Errorf("%w: masterclass_id required", ErrValidation)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question_text required", ErrValidation)
	}
	if q.TestType != "" && !q.TestType.Valid() {
		return fmt.Errorf("%w: test_type must be PRE, POST or empty", ErrValidation)
	}
	if err := q.Choices.Validate(); err != nil {
		return err
	}
	if !q.CorrectChoice.Valid() {
		return fmt.Errorf("%w: correct_choice must be A, B, C or D", ErrValidation)
	}
	return nil
}

// ServesType reports whether the question may appear in a test of type t.
func (q Question) ServesType(t TestType) bool {
	return q.TestType == "" || q.TestType == t
}

// Public strips the correct choice.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Text: q.Text, Choices: q.Choices}
}

// PublicQuestion is what an active attempt sees. It has no correct-choice field.
type PublicQuestion struct {
	ID      string  `json:"id"`
	Text    string  `json:"question_text"`
	Choices Choices `json:"choices"`
}

// QuestionSet is one rendered test instance.
type QuestionSet struct {
	Type               TestType         `json:"test_type"`
	SecondsPerQuestion int              `json:"seconds_per_question"`
	Questions          []PublicQuestion `json:"questions"`
}

// PerQuestion returns the countdown budget.
func (s QuestionSet) PerQuestion() time.Duration {
	return time.Duration(s.SecondsPerQuestion) * time.Second
}

type Response struct {
	QuestionID string `json:"question_id"`
	Submitted  Letter `json:"user_answer"`
	Correct    Letter `json:"correct_answer"`
	IsCorrect  bool   `json:"is_correct"`
}

// Attempt is one scored submission. Never mutated after insert.
type Attempt struct {
	ID           string     `json:"id"`
	EnrollmentID string     `json:"enrollment_id"`
	Type         TestType   `json:"type"`
	Score        int        `json:"score"`
	MaxScore     int        `json:"max_score"`
	Responses    []Response `json:"responses"`
	TakenAt      int64      `json:"taken_at"`
}

func (a Attempt) Percentage() int { return Percentage(a.Score, a.MaxScore) }

// Passed applies the display rule: PRE needs 50%, POST always passes.
func (a Attempt) Passed() bool { return Passed(a.Type, a.Score, a.MaxScore) }

type Profile struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	DateOfBirth    string `json:"date_of_birth"`
	WhatsAppNumber string `json:"whatsapp_number"`
	CreatedAt      int64  `json:"created_at"`
}

type Masterclass struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	MaterialKey string `json:"-"`
	CreatedAt   int64  `json:"created_at"`
}

type Enrollment struct {
	ID               string `json:"id"`
	ProfileID        string `json:"profile_id"`
	MasterclassID    string `json:"masterclass_id"`
	Validated        bool   `json:"validated"`
	RegistrationDate int64  `json:"registration_date"`
}

// SessionDateLayout is the calendar format of Session.Date.
const SessionDateLayout = "2006-01-02"

type Session struct {
	ID            string `json:"id"`
	MasterclassID string `json:"masterclass_id"`
	Date          string `json:"session_date"` // YYYY-MM-DD
	Capacity      int    `json:"max_participants"`
	Booked        int    `json:"current_participants"`
}

func (s Session) Full() bool { return s.Booked >= s.Capacity }

// Submission is what the quiz client sends after inverting its shuffle.
type Submission struct {
	EnrollmentID string            `json:"inscription_id"`
	Type         TestType          `json:"test_type"`
	Answers      map[string]Letter `json:"answers"` // question id -> canonical letter
}

// Outcome is returned to the submitter.
type Outcome struct {
	AttemptID  string `json:"test_id"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	Percentage int    `json:"percentage"`
	Passed     bool   `json:"passed"`
	Email      string `json:"email,omitempty"`
}

// ResultItem is a response joined with its question for the review screen.
type ResultItem struct {
	Response
	Question *Question `json:"question,omitempty"`
}

type Result struct {
	Attempt      Attempt      `json:"test"`
	Percentage   int          `json:"percentage"`
	Passed       bool         `json:"passed"`
	StudentName  string       `json:"student_name"`
	EnrollmentID string       `json:"inscription_id"`
	Items        []ResultItem `json:"results"`
}

// Dashboard is the student's home view.
type Dashboard struct {
	FullName     string       `json:"full_name"`
	Email        string       `json:"email"`
	Enrollment   Enrollment   `json:"inscription"`
	Masterclass  Masterclass  `json:"masterclass"`
	Session      *Session     `json:"session,omitempty"`
	PreTest      *Attempt     `json:"pre_test,omitempty"`
	PostTest     *Attempt     `json:"post_test,omitempty"`
	Availability Availability `json:"post_test_availability"`
}
