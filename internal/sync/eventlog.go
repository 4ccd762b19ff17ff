package syncx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mind-engage/masterclass/internal/db"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	DataJSON  string          `json:"-"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

// EventRepo is an append-only audit log. It works on a *sql.DB or a *sql.Tx.
type EventRepo struct{ q db.Queryer }

func NewEventRepo(q db.Queryer) *EventRepo { return &EventRepo{q: q} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.DataJSON == "" {
		e.DataJSON = "{}"
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// AppendJSON marshals data into the event payload.
func (r *EventRepo) AppendJSON(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.Append(ctx, Event{Type: typ, Key: key, DataJSON: string(buf)})
}

// List returns events for key in append order.
func (r *EventRepo) List(ctx context.Context, key string) ([]Event, error) {
	return r.query(ctx,
		`SELECT seq, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY seq`, key)
}

// Search returns the newest events whose type or key contains q.
func (r *EventRepo) Search(ctx context.Context, q string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.query(ctx,
		`SELECT seq, typ, key, data, created_at FROM event_log
		 WHERE typ LIKE '%'||$1||'%' OR key LIKE '%'||$1||'%'
		 ORDER BY seq DESC LIMIT $2`, q, limit)
}

func (r *EventRepo) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if json.Valid([]byte(e.DataJSON)) {
			e.Data = json.RawMessage(e.DataJSON)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
