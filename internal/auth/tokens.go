package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/masterclass/internal/db"
)

// ErrTokenInvalid covers unknown and expired login tokens alike.
var ErrTokenInvalid = errors.New("auth: login token invalid or expired")

// TokenStore maps opaque login tokens to profile ids until they expire.
type TokenStore interface {
	Save(ctx context.Context, token, profileID string, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (profileID string, err error)
}

// SQLTokenStore keeps tokens in the student_tokens table.
type SQLTokenStore struct {
	q   db.Queryer
	now func() time.Time
}

func NewSQLTokenStore(q db.Queryer) *SQLTokenStore {
	return &SQLTokenStore{q: q, now: time.Now}
}

func (s *SQLTokenStore) Save(ctx context.Context, token, profileID string, ttl time.Duration) error {
	now := s.now()
	// expired rows of this profile are dead weight
	if _, err := s.q.ExecContext(ctx, `DELETE FROM student_tokens WHERE profile_id=$1 AND expires_at <= $2`,
		profileID, now.Unix()); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO student_tokens (token, profile_id, expires_at) VALUES ($1,$2,$3)`,
		token, profileID, now.Add(ttl).Unix())
	return err
}

func (s *SQLTokenStore) Lookup(ctx context.Context, token string) (string, error) {
	var profileID string
	err := s.q.QueryRowContext(ctx, `SELECT profile_id FROM student_tokens WHERE token=$1 AND expires_at > $2`,
		token, s.now().Unix()).Scan(&profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenInvalid
	}
	return profileID, err
}

// RedisTokenStore relies on key expiry instead of a sweep.
type RedisTokenStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisTokenStore(rdb redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, prefix: "student_token:"}
}

func (s *RedisTokenStore) Save(ctx context.Context, token, profileID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+token, profileID, ttl).Err()
}

func (s *RedisTokenStore) Lookup(ctx context.Context, token string) (string, error) {
	v, err := s.rdb.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenInvalid
	}
	return v, err
}
