package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	authmw "github.com/mind-engage/masterclass/internal/auth/middleware"
	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/rbac"
)

// People is the part of the store the login flow reads.
type People interface {
	ProfileByEmail(ctx context.Context, email string) (exam.Profile, error)
	GetProfile(ctx context.Context, id string) (exam.Profile, error)
	EnrollmentForProfile(ctx context.Context, profileID string) (exam.Enrollment, error)
}

// LinkSender delivers a login link out of band (WhatsApp). Optional.
type LinkSender interface {
	LoginLink(ctx context.Context, p exam.Profile, link string)
}

type MagicLinkOptions struct {
	TTL         time.Duration // token lifetime, 24h when zero
	BaseURL     string        // public front-end origin
	ExposeToken bool          // return the URL and raw token to the caller (dev only)
}

// MagicLink issues passwordless login links and trades them for student JWTs.
type MagicLink struct {
	people People
	tokens TokenStore
	jwt    *authmw.AuthService
	sender LinkSender
	log    *slog.Logger
	opts   MagicLinkOptions
}

func NewMagicLink(people People, tokens TokenStore, jwt *authmw.AuthService, log *slog.Logger, opts MagicLinkOptions) *MagicLink {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:3000"
	}
	if log == nil {
		log = slog.Default()
	}
	return &MagicLink{people: people, tokens: tokens, jwt: jwt, log: log, opts: opts}
}

func (m *MagicLink) WithSender(s LinkSender) *MagicLink {
	m.sender = s
	return m
}

type LinkProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Link is the login response. URL and Token stay empty unless the token is
// exposed; otherwise the link only travels through the LinkSender.
type Link struct {
	URL       string      `json:"loginUrl,omitempty"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
	Profile   LinkProfile `json:"profile"`
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Issue creates a login token for a registered email. The profile must hold
// at least one enrollment.
func (m *MagicLink) Issue(ctx context.Context, email string) (Link, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Link{}, fmt.Errorf("%w: email required", exam.ErrValidation)
	}
	p, err := m.people.ProfileByEmail(ctx, email)
	if err != nil {
		return Link{}, err
	}
	if _, err := m.people.EnrollmentForProfile(ctx, p.ID); err != nil {
		return Link{}, err
	}
	tok, err := newToken()
	if err != nil {
		return Link{}, fmt.Errorf("generate token: %w", err)
	}
	if err := m.tokens.Save(ctx, tok, p.ID, m.opts.TTL); err != nil {
		return Link{}, fmt.Errorf("save token: %w", err)
	}
	loginURL := m.opts.BaseURL + "/student/dashboard?token=" + url.QueryEscape(tok)
	link := Link{
		ExpiresAt: time.Now().Add(m.opts.TTL),
		Profile:   LinkProfile{ID: p.ID, Name: p.FullName, Email: p.Email},
	}
	if m.opts.ExposeToken {
		link.URL, link.Token = loginURL, tok
	}
	m.log.InfoContext(ctx, "login link issued", "profile_id", p.ID)
	if m.sender != nil {
		m.sender.LoginLink(ctx, p, loginURL)
	}
	return link, nil
}

type StudentSession struct {
	AccessToken  string       `json:"access_token"`
	EnrollmentID string       `json:"inscription_id"`
	Profile      exam.Profile `json:"profile"`
}

// Verify exchanges a login token for a student JWT whose subject is the
// latest enrollment. Tokens stay valid until they expire.
func (m *MagicLink) Verify(ctx context.Context, token string) (StudentSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return StudentSession{}, fmt.Errorf("%w: token required", exam.ErrValidation)
	}
	profileID, err := m.tokens.Lookup(ctx, token)
	if err != nil {
		return StudentSession{}, err
	}
	p, err := m.people.GetProfile(ctx, profileID)
	if err != nil {
		return StudentSession{}, err
	}
	enr, err := m.people.EnrollmentForProfile(ctx, p.ID)
	if err != nil {
		return StudentSession{}, err
	}
	jwt, err := m.jwt.IssueJWT(enr.ID, rbac.RoleStudent)
	if err != nil {
		return StudentSession{}, err
	}
	return StudentSession{AccessToken: jwt, EnrollmentID: enr.ID, Profile: p}, nil
}
