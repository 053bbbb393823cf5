package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"imageproxy/internal/domain"
	"imageproxy/internal/infra"
	"imageproxy/internal/sqlinline"
)

const (
	ProviderEverArt = "everart"
)

// Store resolves the EverArt API key. The configured key wins; when it is
// empty and a database is attached, the integration_tokens table is asked.
type Store struct {
	configured string
	sql        infra.SQLExecutor
}

// NewStore builds a store. sql may be nil when no database is configured.
func NewStore(configuredKey string, sql infra.SQLExecutor) *Store {
	return &Store{configured: strings.TrimSpace(configuredKey), sql: sql}
}

// APIKey returns the EverArt key or an error wrapping
// domain.ErrCredentialsUnavailable.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	if s == nil {
		return "", domain.ErrCredentialsUnavailable
	}
	if s.configured != "" {
		return s.configured, nil
	}
	if s.sql == nil {
		return "", domain.ErrCredentialsUnavailable
	}
	token, err := s.Token(ctx, ProviderEverArt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredentialsUnavailable, err)
	}
	if token == "" {
		return "", domain.ErrCredentialsUnavailable
	}
	return token, nil
}

// Token reads the stored token of a provider; a missing row yields "".
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	if s.sql == nil {
		return "", errors.New("credentials: no database configured")
	}
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetEverArtAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("everart api key is required")
	}
	if s.sql == nil {
		return errors.New("credentials: no database configured")
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderEverArt, key)
	return err
}
