package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hireline/internal/config"
	"hireline/internal/domain"
	"hireline/internal/repo"
)

// ResolveCompanyAndConfig picks the active company and ensures the company and
// its config row exist, seeding defaults if missing. It prefers the override,
// then falls back to the single company in the database. A missing company is
// created on the fly.
func ResolveCompanyAndConfig(ctx context.Context, companyOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	companyID := companyOverride
	if companyID == "" {
		if c, err := r.SingleCompany(ctx); err == nil {
			companyID = c.ID
		} else {
			return "", nil, fmt.Errorf("company not specified; use --company")
		}
	}
	seedCfg := config.Default(companyID)

	if _, err := r.GetCompany(ctx, companyID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createCompany(ctx, r, companyID, seedCfg, actorID); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetCompanyConfig(ctx, companyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertCompanyConfig(ctx, companyID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed company config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Company.ID = companyID
	return companyID, cfg, nil
}

// createCompany inserts a minimal company footprint using the seed config.
func createCompany(ctx context.Context, r repo.Repo, companyID string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(companyID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	c := domain.Company{
		ID:        companyID,
		Name:      companyID,
		Status:    "active",
		CreatedAt: now,
	}
	if err := r.InsertCompany(ctx, tx, c); err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	if err := r.UpsertCompanyConfigTx(ctx, tx, companyID, seedCfg); err != nil {
		return fmt.Errorf("insert company config: %w", err)
	}
	if actorID == "" {
		actorID = "local-user"
	}
	if err := r.EnsureRecruiter(ctx, tx, actorID, companyID); err != nil {
		return fmt.Errorf("ensure recruiter: %w", err)
	}
	return tx.Commit()
}
