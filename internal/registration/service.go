package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/masterclass/internal/exam"
)

// Notifier is told about new registrants after commit.
type Notifier interface {
	Registered(ctx context.Context, p exam.Profile)
}

type Service struct {
	store    exam.Store
	log      *slog.Logger
	notifier Notifier
	now      func() time.Time
}

func NewService(store exam.Store, log *slog.Logger, notifier Notifier) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log, notifier: notifier, now: time.Now}
}

// WithClock overrides time.Now, for age checks and timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type Registration struct {
	ProfileID    string `json:"user_id"`
	EnrollmentID string `json:"inscription_id"`
}

// Register validates the form and creates the profile and its enrollment in
// the default masterclass. A known email is a conflict.
func (s *Service) Register(ctx context.Context, f Form) (Registration, error) {
	f.normalize()
	now := s.now()
	if err := f.Validate(now); err != nil {
		return Registration{}, err
	}

	p := exam.Profile{
		ID:             uuid.NewString(),
		FullName:       f.FullName,
		Email:          f.Email,
		DateOfBirth:    f.DateOfBirth,
		WhatsAppNumber: f.WhatsAppNumber,
		CreatedAt:      now.Unix(),
	}
	var reg Registration
	err := s.store.InTx(ctx, func(tx exam.Store) error {
		mc, err := tx.DefaultMasterclass(ctx)
		if err != nil {
			return err
		}
		if err := tx.CreateProfile(ctx, p); err != nil {
			return err
		}
		enr := exam.Enrollment{
			ID:               uuid.NewString(),
			ProfileID:        p.ID,
			MasterclassID:    mc.ID,
			RegistrationDate: now.Unix(),
		}
		if err := tx.CreateEnrollment(ctx, enr); err != nil {
			return err
		}
		reg = Registration{ProfileID: p.ID, EnrollmentID: enr.ID}
		return tx.AppendEvent(ctx, "registration.created", enr.ID, map[string]any{"profile_id": p.ID})
	})
	if err != nil {
		return Registration{}, err
	}
	s.log.InfoContext(ctx, "registered", "profile_id", reg.ProfileID, "enrollment_id", reg.EnrollmentID)
	if s.notifier != nil {
		s.notifier.Registered(ctx, p)
	}
	return reg, nil
}

type SessionStats struct {
	TotalCapacity  int `json:"totalCapacity"`
	TotalBooked    int `json:"totalBooked"`
	AvailableSpots int `json:"availableSpots"`
	TotalSessions  int `json:"totalSessions"`
}

type SessionList struct {
	Sessions []exam.Session `json:"sessions"`
	Stats    SessionStats   `json:"stats"`
}

// ListSessions returns every session by date with aggregate seat counts.
func (s *Service) ListSessions(ctx context.Context) (SessionList, error) {
	sessions, err := s.store.ListSessions(ctx, "")
	if err != nil {
		return SessionList{}, err
	}
	out := SessionList{Sessions: sessions, Stats: SessionStats{TotalSessions: len(sessions)}}
	for _, se := range sessions {
		out.Stats.TotalCapacity += se.Capacity
		out.Stats.TotalBooked += se.Booked
	}
	out.Stats.AvailableSpots = out.Stats.TotalCapacity - out.Stats.TotalBooked
	return out, nil
}

// CreateSession adds a dated session to the default masterclass.
func (s *Service) CreateSession(ctx context.Context, date string, capacity int) (exam.Session, error) {
	if _, err := time.Parse(exam.SessionDateLayout, date); err != nil {
		return exam.Session{}, fmt.Errorf("%w: session_date must be YYYY-MM-DD", exam.ErrValidation)
	}
	if capacity <= 0 {
		return exam.Session{}, fmt.Errorf("%w: max_participants must be positive", exam.ErrValidation)
	}
	var se exam.Session
	err := s.store.InTx(ctx, func(tx exam.Store) error {
		mc, err := tx.DefaultMasterclass(ctx)
		if err != nil {
			return err
		}
		se = exam.Session{ID: uuid.NewString(), MasterclassID: mc.ID, Date: date, Capacity: capacity}
		return tx.CreateSession(ctx, se)
	})
	return se, err
}

// Book reserves a seat: the enrollment must exist and hold no booking, and
// the session must exist and have room.
func (s *Service) Book(ctx context.Context, enrollmentID, sessionID string) (exam.Session, error) {
	if enrollmentID == "" || sessionID == "" {
		return exam.Session{}, fmt.Errorf("%w: inscription_id and session_id are required", exam.ErrValidation)
	}
	var booked exam.Session
	err := s.store.InTx(ctx, func(tx exam.Store) error {
		if _, err := tx.GetEnrollment(ctx, enrollmentID); err != nil {
			return err
		}
		switch _, err := tx.SessionFor(ctx, enrollmentID); {
		case err == nil:
			return fmt.Errorf("session already booked: %w", exam.ErrConflict)
		case !errors.Is(err, exam.ErrNotFound):
			return err
		}
		se, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if se.Full() {
			return fmt.Errorf("session full: %w", exam.ErrConflict)
		}
		if err := tx.BookSession(ctx, enrollmentID, sessionID); err != nil {
			return err
		}
		se.Booked++
		booked = se
		return tx.AppendEvent(ctx, "session.booked", enrollmentID, map[string]any{"session_id": sessionID})
	})
	if err != nil {
		return exam.Session{}, err
	}
	s.log.InfoContext(ctx, "session booked", "enrollment_id", enrollmentID, "session_id", sessionID)
	return booked, nil
}
