package credentials

import (
	"context"
	"errors"
	"strings"
	"time"

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
	"jimpitan/internal/sqlinline"
)

const (
	NameAPISession = "api_session"
)

type Store struct {
	sql infra.SQLExecutor
	now func() time.Time
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, now: time.Now}
}

// APIToken returns the stored API session token. A missing token yields "" and no error;
// an expired one yields domain.ErrTokenExpired.
func (s *Store) APIToken(ctx context.Context) (string, error) {
	return s.Token(ctx, NameAPISession)
}

func (s *Store) Token(ctx context.Context, name string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectCredential, name)
	var token, expiresAt string
	if err := row.Scan(&token, &expiresAt); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	if expiresAt != "" {
		exp, err := time.Parse(time.RFC3339, expiresAt)
		if err == nil && !s.now().Before(exp) {
			return "", domain.ErrTokenExpired
		}
	}
	return strings.TrimSpace(token), nil
}

// SetAPIToken stores token with a lifetime of ttl; ttl <= 0 means it never expires.
func (s *Store) SetAPIToken(ctx context.Context, token string, ttl time.Duration) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("api token is required")
	}
	now := s.now().UTC()
	expiresAt := ""
	if ttl > 0 {
		expiresAt = now.Add(ttl).Format(time.RFC3339)
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertCredential, NameAPISession, token, expiresAt, now.Format(time.RFC3339))
	return err
}
