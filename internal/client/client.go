// Package client talks to the gateway on behalf of a student. It satisfies
// the quiz runner's QuestionSource and Submitter.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mind-engage/masterclass/internal/auth"
	"github.com/mind-engage/masterclass/internal/exam"
)

// APIError is a non-2xx answer. It matches the exam sentinel for its status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%d: %s", e.Status, e.Message) }

func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == exam.ErrValidation
	case http.StatusNotFound:
		return target == exam.ErrNotFound
	case http.StatusConflict:
		return target == exam.ErrConflict
	case http.StatusForbidden:
		return target == exam.ErrUnavailable
	case http.StatusUnauthorized:
		return target == auth.ErrTokenInvalid
	}
	return false
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{base: strings.TrimSuffix(baseURL, "/"), http: hc}
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(tok string) { c.token = tok }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RequestLink asks for a magic link. The token is only present when the
// server runs with EXPOSE_LOGIN_TOKEN.
func (c *Client) RequestLink(ctx context.Context, email string) (auth.Link, error) {
	var l auth.Link
	err := c.do(ctx, http.MethodPost, "/student/login", map[string]string{"email": email}, &l)
	return l, err
}

// Verify trades a login token for a session and keeps its access token.
func (c *Client) Verify(ctx context.Context, token string) (auth.StudentSession, error) {
	var s auth.StudentSession
	if err := c.do(ctx, http.MethodPost, "/student/auth/verify", map[string]string{"token": token}, &s); err != nil {
		return auth.StudentSession{}, err
	}
	c.token = s.AccessToken
	return s, nil
}

// Questions ignores enrollmentID: the server takes it from the token.
func (c *Client) Questions(ctx context.Context, _ string, t exam.TestType) (exam.QuestionSet, error) {
	var set exam.QuestionSet
	err := c.do(ctx, http.MethodGet, "/tests/questions?type="+url.QueryEscape(string(t)), nil, &set)
	return set, err
}

func (c *Client) Submit(ctx context.Context, sub exam.Submission) (exam.Outcome, error) {
	var out exam.Outcome
	err := c.do(ctx, http.MethodPost, "/tests/submit", sub, &out)
	return out, err
}

func (c *Client) Availability(ctx context.Context) (exam.Availability, error) {
	var av exam.Availability
	err := c.do(ctx, http.MethodGet, "/tests/post/availability", nil, &av)
	return av, err
}

func (c *Client) Dashboard(ctx context.Context) (exam.Dashboard, error) {
	var d exam.Dashboard
	err := c.do(ctx, http.MethodGet, "/student/dashboard", nil, &d)
	return d, err
}

// IsRetryable reports whether a submit failure is worth retrying.
func IsRetryable(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status >= 500
	}
	return err != nil && !errors.Is(err, context.Canceled)
}
