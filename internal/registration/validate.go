package registration

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mind-engage/masterclass/internal/exam"
)

const (
	MinAge = 16
	MaxAge = 100
)

var whatsappRe = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// Form is the public registration payload.
type Form struct {
	FullName       string `json:"full_name"`
	DateOfBirth    string `json:"date_of_birth"` // YYYY-MM-DD
	Email          string `json:"email"`
	WhatsAppNumber string `json:"whatsapp_number"`
	Consent        bool   `json:"consent"`
}

func (f *Form) normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.DateOfBirth = strings.TrimSpace(f.DateOfBirth)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.WhatsAppNumber = strings.ReplaceAll(strings.TrimSpace(f.WhatsAppNumber), " ", "")
}

// Validate checks every field and reports all failures at once. Age is the
// difference of calendar years, as on the paper form.
func (f Form) Validate(now time.Time) error {
	var ve exam.ValidationError

	if n := utf8.RuneCountInString(f.FullName); n < 2 {
		ve.Add("full_name", "must be at least 2 characters")
	} else if n > 100 {
		ve.Add("full_name", "must be at most 100 characters")
	}

	if f.DateOfBirth == "" {
		ve.Add("date_of_birth", "required")
	} else if dob, err := time.Parse(exam.SessionDateLayout, f.DateOfBirth); err != nil {
		ve.Add("date_of_birth", "must be YYYY-MM-DD")
	} else if age := now.Year() - dob.Year(); age < MinAge || age > MaxAge {
		ve.Add("date_of_birth", "age must be between 16 and 100")
	}

	if f.Email == "" {
		ve.Add("email", "required")
	} else if !validEmail(f.Email) {
		ve.Add("email", "invalid address")
	}

	if f.WhatsAppNumber == "" {
		ve.Add("whatsapp_number", "required")
	} else if !whatsappRe.MatchString(f.WhatsAppNumber) {
		ve.Add("whatsapp_number", "must be 8 to 15 digits, optionally starting with +")
	}

	if !f.Consent {
		ve.Add("consent", "privacy policy must be accepted")
	}
	return ve.OrNil()
}

// validEmail accepts a bare addr-spec with a dotted domain.
func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	if err != nil || a.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}
