package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"hireline/internal/domain"
	"hireline/internal/repo"
)

// CreateAPIKey mints a key bound to a company and recruiter. The plaintext
// is returned exactly once; only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, companyID, recruiterID, name string) (domain.APIKey, string, error) {
	if _, err := e.Repo.GetCompany(ctx, companyID); err != nil {
		return domain.APIKey{}, "", err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate key: %w", err)
	}
	plaintext := "hlk_" + hex.EncodeToString(buf)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureRecruiter(ctx, tx, recruiterID, companyID); err != nil {
		return domain.APIKey{}, "", err
	}
	key := domain.APIKey{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		RecruiterID: recruiterID,
		Name:        name,
		KeyHash:     repo.HashAPIKey(plaintext),
		CreatedAt:   e.timestamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, companyID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, companyID)
}

func (e Engine) DeleteAPIKey(ctx context.Context, companyID, id string) error {
	return e.Repo.DeleteAPIKey(ctx, companyID, id)
}
