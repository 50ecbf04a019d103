package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"logicforge/internal/domain"
	"logicforge/internal/repo"
)

const apiKeyPrefix = "lf_"

// CreateAPIKey issues a key for userID. Only the hash is stored; the plain
// key is returned once.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.APIKey{}, "", invalid("user_id", "required")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	secret := apiKeyPrefix + hex.EncodeToString(buf)
	ts := e.timestamp()
	key := domain.APIKey{
		ID:        newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: ts,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureUser(ctx, tx, domain.User{ID: userID, CreatedAt: ts}); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		return e.Repo.InsertAPIKey(ctx, tx, key)
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}
	return key, secret, nil
}
