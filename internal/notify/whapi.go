package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Whapi sends text messages through the whapi.cloud gateway.
type Whapi struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewWhapi(baseURL, token string, client *http.Client) *Whapi {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Whapi{baseURL: strings.TrimSuffix(baseURL, "/"), token: token, client: client}
}

type whapiText struct {
	TypingTime int    `json:"typing_time"`
	To         string `json:"to"`
	Body       string `json:"body"`
}

// Notify posts one message. 4xx answers and a missing token wrap ErrPermanent.
func (w *Whapi) Notify(ctx context.Context, m Message) error {
	if w.token == "" {
		return fmt.Errorf("whapi token not configured: %w", ErrPermanent)
	}
	payload, err := json.Marshal(whapiText{To: strings.TrimPrefix(m.To, "+"), Body: m.Body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/messages/text", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whapi: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("whapi: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return err
}
