package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/masterclass/internal/db"
	syncx "github.com/mind-engage/masterclass/internal/sync"
)

// SQLStore implements Store on SQLite or Postgres. All queries use $N
// placeholders, which both drivers accept.
type SQLStore struct {
	sqlDB  *sql.DB    // nil when bound to a transaction
	q      db.Queryer // *sql.DB or *sql.Tx
	driver db.Driver
	events *syncx.EventRepo
}

func NewSQLStore(d *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{sqlDB: d, q: d, driver: driver, events: syncx.NewEventRepo(d)}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.sqlDB == nil {
		return fn(s) // already in a transaction
	}
	return db.WithTx(ctx, s.sqlDB, func(tx *sql.Tx) error {
		return fn(&SQLStore{q: tx, driver: s.driver, events: syncx.NewEventRepo(tx)})
	})
}

func (s *SQLStore) AppendEvent(ctx context.Context, typ, key string, data any) error {
	return s.events.AppendJSON(ctx, typ, key, data)
}

// ---------- questions ----------

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) error {
	cj, err := json.Marshal(q.Choices)
	if err != nil {
		return err
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO questions
		(id, masterclass_id, test_type, question_text, choices_json, correct_choice, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		q.ID, q.MasterclassID, string(q.TestType), q.Text, string(cj), string(q.CorrectChoice), q.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("question %s: %w", q.ID, ErrConflict)
	}
	return err
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	cj, err := json.Marshal(q.Choices)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `UPDATE questions
		SET masterclass_id=$1, test_type=$2, question_text=$3, choices_json=$4, correct_choice=$5
		WHERE id=$6`,
		q.MasterclassID, string(q.TestType), q.Text, string(cj), string(q.CorrectChoice), q.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "question")
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "question")
}

const questionCols = `id, masterclass_id, test_type, question_text, choices_json, correct_choice, created_at`

func scanQuestion(sc interface{ Scan(...any) error }) (Question, error) {
	var (
		q        Question
		typ, cor string
		cj       string
	)
	if err := sc.Scan(&q.ID, &q.MasterclassID, &typ, &q.Text, &cj, &cor, &q.CreatedAt); err != nil {
		return Question{}, err
	}
	q.TestType = TestType(typ)
	q.CorrectChoice = Letter(cor)
	if err := json.Unmarshal([]byte(cj), &q.Choices); err != nil {
		return Question{}, fmt.Errorf("question %s: choices: %w", q.ID, err)
	}
	return q, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	q, err := scanQuestion(s.q.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, err
}

func (s *SQLStore) ListQuestions(ctx context.Context, opts QuestionListOpts) ([]Question, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if opts.MasterclassID != "" {
		where = append(where, "masterclass_id = "+arg(opts.MasterclassID))
	}
	if opts.Type != "" {
		where = append(where, "(test_type = '' OR test_type = "+arg(string(opts.Type))+")")
	}
	if opts.Q != "" {
		where = append(where, "LOWER(question_text) LIKE "+arg("%"+strings.ToLower(opts.Q)+"%"))
	}
	query := `SELECT ` + questionCols + ` FROM questions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(max(opts.Offset, 0))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) RandomQuestions(ctx context.Context, masterclassID string, t TestType, n int) ([]PublicQuestion, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, question_text, choices_json FROM questions
		WHERE masterclass_id=$1 AND (test_type='' OR test_type=$2)
		ORDER BY RANDOM() LIMIT $3`, masterclassID, string(t), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PublicQuestion{}
	for rows.Next() {
		var (
			pq PublicQuestion
			cj string
		)
		if err := rows.Scan(&pq.ID, &pq.Text, &cj); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cj), &pq.Choices); err != nil {
			return nil, fmt.Errorf("question %s: choices: %w", pq.ID, err)
		}
		out = append(out, pq)
	}
	return out, rows.Err()
}

func (s *SQLStore) AnswerKeys(ctx context.Context, ids []string) (map[string]Question, error) {
	out := make(map[string]Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// ---------- attempts ----------

func (s *SQLStore) InsertAttempt(ctx context.Context, a Attempt) error {
	rj, err := json.Marshal(a.Responses)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO tests
		(id, enrollment_id, type, score, max_score, responses_json, taken_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.EnrollmentID, string(a.Type), a.Score, a.MaxScore, string(rj), a.TakenAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%s test already taken: %w", a.Type, ErrConflict)
	}
	return err
}

const attemptCols = `id, enrollment_id, type, score, max_score, responses_json, taken_at`

func scanAttempt(sc interface{ Scan(...any) error }) (Attempt, error) {
	var (
		a   Attempt
		typ string
		rj  string
	)
	if err := sc.Scan(&a.ID, &a.EnrollmentID, &typ, &a.Score, &a.MaxScore, &rj, &a.TakenAt); err != nil {
		return Attempt{}, err
	}
	a.Type = TestType(typ)
	if err := json.Unmarshal([]byte(rj), &a.Responses); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s: responses: %w", a.ID, err)
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	a, err := scanAttempt(s.q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM tests WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("test %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) AttemptFor(ctx context.Context, enrollmentID string, t TestType) (Attempt, error) {
	a, err := scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM tests WHERE enrollment_id=$1 AND type=$2`, enrollmentID, string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("%s test for %s: %w", t, enrollmentID, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) HasAttempt(ctx context.Context, enrollmentID string, t TestType) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM tests WHERE enrollment_id=$1 AND type=$2`, enrollmentID, string(t)).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
