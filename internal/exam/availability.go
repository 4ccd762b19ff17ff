package exam

import (
	"fmt"
	"time"

	"github.com/mind-engage/masterclass/internal/grading"
)

// UnlockHour is the local clock hour on the session date after which POST opens.
const UnlockHour = 15

type Availability struct {
	Available    bool       `json:"available"`
	UnlocksAt    *time.Time `json:"unlocks_at,omitempty"`
	AlreadyTaken bool       `json:"already_taken"`
	Reason       string     `json:"reason,omitempty"`
}

// UnlockInstant is sessionDate (YYYY-MM-DD) at 15:00 in loc.
func UnlockInstant(sessionDate string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(SessionDateLayout, sessionDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: session date %q", ErrValidation, sessionDate)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), UnlockHour, 0, 0, 0, loc), nil
}

// PostAvailability decides whether the POST test may be taken at now. It is
// pure; an empty sessionDate means no session was booked.
func PostAvailability(sessionDate string, hasPre, hasPost bool, now time.Time, loc *time.Location) Availability {
	if hasPost {
		return Availability{AlreadyTaken: true, Reason: "post-test already completed"}
	}
	if sessionDate == "" {
		return Availability{Reason: "no session booked"}
	}
	unlock, err := UnlockInstant(sessionDate, loc)
	if err != nil {
		return Availability{Reason: "invalid session date"}
	}
	av := Availability{UnlocksAt: &unlock}
	switch {
	case !hasPre:
		av.Reason = "pre-test not completed"
	case now.Before(unlock):
		av.Reason = "available from " + unlock.Format("2006-01-02 15:04")
	default:
		av.Available = true
	}
	return av
}

// Percentage is the rounded share of correct answers.
func Percentage(score, max int) int { return grading.Percentage(score, max) }

// Passed is the display rule. POST measures progress and always passes.
func Passed(t TestType, score, max int) bool {
	if t == TypePost {
		return true
	}
	return grading.MeetsHalf(score, max)
}
