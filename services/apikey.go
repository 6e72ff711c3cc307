package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/callrescue/callrescue/db"
)

// APIKeyService issues and verifies the keys that authenticate the cron
// triggers and the voice-AI webhook. Only the bcrypt hash is stored; the
// raw key is returned once at creation.
type APIKeyService struct {
	PG *sql.DB
}

func NewAPIKeyService(pg *sql.DB) *APIKeyService {
	return &APIKeyService{PG: pg}
}

// CreateKey mints a new key for the org. The returned raw key is the only
// copy that will ever exist.
func (s *APIKeyService) CreateKey(orgID, userID, name string) (db.APIKey, string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return db.APIKey{}, "", fmt.Errorf("failed to generate api key: %w", err)
	}
	rawKey := "crk_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return db.APIKey{}, "", fmt.Errorf("failed to hash api key: %w", err)
	}

	key := db.APIKey{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		Name:      name,
		KeyHash:   string(hash),
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	_, err = s.PG.Exec(`
		INSERT INTO api_keys (id, org_id, user_id, name, key_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, key.ID, key.OrgID, key.UserID, key.Name, key.KeyHash, key.IsActive, key.CreatedAt)
	if err != nil {
		return key, "", fmt.Errorf("failed to store api key: %w", err)
	}

	return key, rawKey, nil
}

// VerifyKey checks a presented key against the org's active keys and
// returns the matching record. bcrypt comparison per candidate row; the
// active key count per org is small.
func (s *APIKeyService) VerifyKey(rawKey string) (db.APIKey, error) {
	rows, err := s.PG.Query(`
		SELECT id, org_id, user_id, name, key_hash, is_active, last_used_at, created_at
		FROM api_keys
		WHERE is_active = true
	`)
	if err != nil {
		return db.APIKey{}, fmt.Errorf("failed to load api keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key db.APIKey
		var lastUsed sql.NullTime
		if err := rows.Scan(&key.ID, &key.OrgID, &key.UserID, &key.Name,
			&key.KeyHash, &key.IsActive, &lastUsed, &key.CreatedAt); err != nil {
			return db.APIKey{}, fmt.Errorf("failed to scan api key: %w", err)
		}
		if lastUsed.Valid {
			key.LastUsedAt = &lastUsed.Time
		}
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
			if _, err := s.PG.Exec("UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", key.ID); err != nil {
				return key, nil // stamping last_used is best effort
			}
			return key, nil
		}
	}
	if err := rows.Err(); err != nil {
		return db.APIKey{}, fmt.Errorf("failed to iterate api keys: %w", err)
	}

	return db.APIKey{}, fmt.Errorf("invalid api key")
}

// RevokeKey deactivates a key.
func (s *APIKeyService) RevokeKey(orgID, keyID string) error {
	result, err := s.PG.Exec(`
		UPDATE api_keys SET is_active = false WHERE id = $1 AND org_id = $2
	`, keyID, orgID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("api key not found")
	}
	return nil
}
