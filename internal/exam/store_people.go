package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/masterclass/internal/db"
)

// Used when the first registrant arrives on an empty database.
const (
	DefaultMasterclassTitle       = "Introduction à l'Intelligence Artificielle"
	DefaultMasterclassDescription = "Masterclass d'introduction aux concepts fondamentaux de l'IA"
)

// ---------- profiles ----------

func (s *SQLStore) CreateProfile(ctx context.Context, p Profile) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO profiles
		(id, full_name, email, date_of_birth, whatsapp_number, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.FullName, strings.ToLower(p.Email), p.DateOfBirth, p.WhatsAppNumber, p.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email %s already registered: %w", p.Email, ErrConflict)
	}
	return err
}

const profileCols = `id, full_name, email, date_of_birth, whatsapp_number, created_at`

func scanProfile(row *sql.Row, what string) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.DateOfBirth, &p.WhatsAppNumber, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, fmt.Errorf("profile %s: %w", what, ErrNotFound)
	}
	return p, err
}

func (s *SQLStore) GetProfile(ctx context.Context, id string) (Profile, error) {
	return scanProfile(s.q.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id=$1`, id), id)
}

func (s *SQLStore) ProfileByEmail(ctx context.Context, email string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanProfile(s.q.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE email=$1`, email), email)
}

// ---------- enrollments ----------

func (s *SQLStore) CreateEnrollment(ctx context.Context, e Enrollment) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO enrollments
		(id, profile_id, masterclass_id, validated, registration_date)
		VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.ProfileID, e.MasterclassID, e.Validated, e.RegistrationDate)
	return err
}

const enrollmentCols = `id, profile_id, masterclass_id, validated, registration_date`

func scanEnrollment(row *sql.Row, what string) (Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.ProfileID, &e.MasterclassID, &e.Validated, &e.RegistrationDate)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, fmt.Errorf("enrollment %s: %w", what, ErrNotFound)
	}
	return e, err
}

func (s *SQLStore) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return scanEnrollment(s.q.QueryRowContext(ctx, `SELECT `+enrollmentCols+` FROM enrollments WHERE id=$1`, id), id)
}

// EnrollmentForProfile returns the most recent enrollment.
func (s *SQLStore) EnrollmentForProfile(ctx context.Context, profileID string) (Enrollment, error) {
	return scanEnrollment(s.q.QueryRowContext(ctx, `SELECT `+enrollmentCols+` FROM enrollments
		WHERE profile_id=$1 ORDER BY registration_date DESC LIMIT 1`, profileID), "for profile "+profileID)
}

func (s *SQLStore) SetValidated(ctx context.Context, enrollmentID string, v bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE enrollments SET validated=$1 WHERE id=$2`, v, enrollmentID)
	if err != nil {
		return err
	}
	return expectOne(res, "enrollment")
}

// ---------- masterclasses ----------

const masterclassCols = `id, title, description, material_key, created_at`

func scanMasterclass(row *sql.Row, what string) (Masterclass, error) {
	var m Masterclass
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.MaterialKey, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Masterclass{}, fmt.Errorf("masterclass %s: %w", what, ErrNotFound)
	}
	return m, err
}

// DefaultMasterclass returns the oldest masterclass, creating one if none exists.
func (s *SQLStore) DefaultMasterclass(ctx context.Context) (Masterclass, error) {
	m, err := scanMasterclass(s.q.QueryRowContext(ctx,
		`SELECT `+masterclassCols+` FROM masterclasses ORDER BY created_at, id LIMIT 1`), "default")
	if !errors.Is(err, ErrNotFound) {
		return m, err
	}
	m = Masterclass{
		ID:          uuid.NewString(),
		Title:       DefaultMasterclassTitle,
		Description: DefaultMasterclassDescription,
		CreatedAt:   time.Now().Unix(),
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO masterclasses (id, title, description, material_key, created_at)
		VALUES ($1,$2,$3,'',$4)`, m.ID, m.Title, m.Description, m.CreatedAt)
	return m, err
}

func (s *SQLStore) GetMasterclass(ctx context.Context, id string) (Masterclass, error) {
	return scanMasterclass(s.q.QueryRowContext(ctx, `SELECT `+masterclassCols+` FROM masterclasses WHERE id=$1`, id), id)
}

func (s *SQLStore) SetMaterialKey(ctx context.Context, masterclassID, key string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE masterclasses SET material_key=$1 WHERE id=$2`, key, masterclassID)
	if err != nil {
		return err
	}
	return expectOne(res, "masterclass")
}

// ---------- sessions ----------

func (s *SQLStore) CreateSession(ctx context.Context, se Session) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO sessions
		(id, masterclass_id, session_date, capacity, booked, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		se.ID, se.MasterclassID, se.Date, se.Capacity, se.Booked, time.Now().Unix())
	return err
}

const sessionCols = `s.id, s.masterclass_id, s.session_date, s.capacity, s.booked`

func scanSession(sc interface{ Scan(...any) error }) (Session, error) {
	var se Session
	err := sc.Scan(&se.ID, &se.MasterclassID, &se.Date, &se.Capacity, &se.Booked)
	return se, err
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	se, err := scanSession(s.q.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions s WHERE s.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return se, err
}

func (s *SQLStore) ListSessions(ctx context.Context, masterclassID string) ([]Session, error) {
	query := `SELECT ` + sessionCols + ` FROM sessions s`
	var args []any
	if masterclassID != "" {
		query += ` WHERE s.masterclass_id=$1`
		args = append(args, masterclassID)
	}
	query += ` ORDER BY s.session_date, s.id`
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		se, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

func (s *SQLStore) SessionFor(ctx context.Context, enrollmentID string) (Session, error) {
	se, err := scanSession(s.q.QueryRowContext(ctx, `SELECT `+sessionCols+`
		FROM session_bookings b JOIN sessions s ON s.id = b.session_id
		WHERE b.enrollment_id=$1`, enrollmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("booking for %s: %w", enrollmentID, ErrNotFound)
	}
	return se, err
}

// BookSession takes one seat. It must run inside InTx so the seat count and
// booking row change together.
func (s *SQLStore) BookSession(ctx context.Context, enrollmentID, sessionID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET booked = booked + 1 WHERE id=$1 AND booked < capacity`, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		if _, err := s.GetSession(ctx, sessionID); err != nil {
			return err
		}
		return fmt.Errorf("session full: %w", ErrConflict)
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO session_bookings (enrollment_id, session_id, booked_at)
		VALUES ($1,$2,$3)`, enrollmentID, sessionID, time.Now().Unix())
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("session already booked: %w", ErrConflict)
	}
	return err
}

func (s *SQLStore) PendingPostTests(ctx context.Context, date string) ([]Profile, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT p.id, p.full_name, p.email, p.date_of_birth, p.whatsapp_number, p.created_at
		FROM session_bookings b
		JOIN sessions s ON s.id = b.session_id
		JOIN enrollments e ON e.id = b.enrollment_id
		JOIN profiles p ON p.id = e.profile_id
		WHERE s.session_date=$1
		  AND EXISTS (SELECT 1 FROM tests t WHERE t.enrollment_id = e.id AND t.type='PRE')
		  AND NOT EXISTS (SELECT 1 FROM tests t WHERE t.enrollment_id = e.id AND t.type='POST')
		ORDER BY p.full_name, p.id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.FullName, &p.Email, &p.DateOfBirth, &p.WhatsAppNumber, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
