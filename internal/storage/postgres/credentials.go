package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// FetchCredentialSecret returns the stored secret for an account identifier.
func (s *Store) FetchCredentialSecret(ctx context.Context, identifier string) (string, error) {
	masked := scrape.MaskIdentifier(identifier)
	var secret string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(password, '') FROM accounts WHERE email_id = $1`, identifier).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("credential %s: %w", masked, scrape.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("fetch credential %s: %w", masked, err)
	}
	if secret == "" {
		return "", fmt.Errorf("credential %s has no secret: %w", masked, scrape.ErrNotFound)
	}
	return secret, nil
}
