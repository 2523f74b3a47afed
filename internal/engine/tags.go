package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hireline/internal/domain"
	"hireline/internal/repo"
)

// TagCreateOptions are parameters for adding a tag to the company catalog.
// Colors fall back to the config defaults when empty.
type TagCreateOptions struct {
	ID        string
	CompanyID string
	Label     string
	Color     string
	TextColor string
}

func (e Engine) CreateTag(ctx context.Context, opts TagCreateOptions) (domain.Tag, error) {
	label := strings.TrimSpace(opts.Label)
	if label == "" {
		return domain.Tag{}, InvalidTagError{Reason: "label is required"}
	}
	if _, err := e.Repo.GetCompany(ctx, opts.CompanyID); err != nil {
		return domain.Tag{}, err
	}
	now := e.timestamp()
	t := domain.Tag{
		ID:        opts.ID,
		CompanyID: opts.CompanyID,
		Label:     label,
		Color:     opts.Color,
		TextColor: opts.TextColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Color == "" {
		t.Color = e.tagColor()
	}
	if t.TextColor == "" {
		t.TextColor = e.tagTextColor()
	}
	created, err := e.Repo.InsertTag(ctx, t)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	if !created {
		return domain.Tag{}, fmt.Errorf("tag %q %w", label, ErrDuplicate)
	}
	return t, nil
}

func (e Engine) tagColor() string {
	if e.Config != nil {
		return e.Config.TagColor()
	}
	return "#3B82F6"
}

func (e Engine) tagTextColor() string {
	if e.Config != nil {
		return e.Config.TagTextColor()
	}
	return "#FFFFFF"
}

// TagUpdateOptions carries the fields to change on a catalog tag. Nil means
// leave the field alone; an empty color resets it to the company default.
type TagUpdateOptions struct {
	Label     *string
	Color     *string
	TextColor *string
}

func (e Engine) UpdateTag(ctx context.Context, companyID, tagID string, opts TagUpdateOptions) (domain.Tag, error) {
	t, err := e.Repo.GetTag(ctx, companyID, tagID)
	if err != nil {
		return domain.Tag{}, err
	}
	if opts.Label != nil {
		label := strings.TrimSpace(*opts.Label)
		if label == "" {
			return domain.Tag{}, InvalidTagError{TagID: tagID, Reason: "label is required"}
		}
		if label != t.Label {
			other, err := e.Repo.TagIDByLabel(ctx, companyID, label)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return domain.Tag{}, err
			}
			if err == nil && other != t.ID {
				return domain.Tag{}, fmt.Errorf("tag %q %w", label, ErrDuplicate)
			}
		}
		t.Label = label
	}
	if opts.Color != nil {
		t.Color = *opts.Color
		if t.Color == "" {
			t.Color = e.tagColor()
		}
	}
	if opts.TextColor != nil {
		t.TextColor = *opts.TextColor
		if t.TextColor == "" {
			t.TextColor = e.tagTextColor()
		}
	}
	t.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateTag(ctx, t); err != nil {
		return domain.Tag{}, err
	}
	return t, nil
}

// DeleteTag removes a tag from the catalog along with its annotations.
func (e Engine) DeleteTag(ctx context.Context, companyID, tagID string) error {
	return e.Repo.DeleteTag(ctx, companyID, tagID)
}

func (e Engine) ListTags(ctx context.Context, companyID string) ([]domain.Tag, error) {
	return e.Repo.ListTags(ctx, companyID)
}

func (e Engine) TagUsage(ctx context.Context, companyID string) ([]domain.TagUsage, error) {
	return e.Repo.TagUsage(ctx, companyID)
}

// AddTag annotates an application with a catalog tag. Adding a tag that is
// already present returns the existing annotation; the operation writes at
// most one row per (application, tag) pair no matter how often it runs.
func (e Engine) AddTag(ctx context.Context, companyID, jobID, applicationID, tagID, actorID string) (domain.ApplicationTag, bool, error) {
	a, err := e.Repo.GetApplication(ctx, companyID, jobID, applicationID)
	if err != nil {
		return domain.ApplicationTag{}, false, err
	}
	t, err := e.Repo.GetTag(ctx, companyID, tagID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ApplicationTag{}, false, InvalidTagError{TagID: tagID, Reason: "tag is not in the company catalog"}
		}
		return domain.ApplicationTag{}, false, err
	}
	at := domain.ApplicationTag{
		ID:            uuid.NewString(),
		ApplicationID: a.ID,
		TagID:         t.ID,
		AddedBy:       actorID,
		Label:         t.Label,
		Color:         t.Color,
		TextColor:     t.TextColor,
		CreatedAt:     e.timestamp(),
	}
	created, err := e.Repo.InsertApplicationTag(ctx, at)
	if err != nil {
		return domain.ApplicationTag{}, false, err
	}
	if created {
		return at, true, nil
	}
	// Lost the insert to an earlier or concurrent add; return that row.
	existing, err := e.Repo.GetApplicationTag(ctx, a.ID, t.ID)
	if err != nil {
		return domain.ApplicationTag{}, false, err
	}
	return existing, false, nil
}

// RemoveTag detaches a tag from an application. Removing a tag that is not
// attached succeeds and changes nothing.
func (e Engine) RemoveTag(ctx context.Context, companyID, jobID, applicationID, tagID string) error {
	a, err := e.Repo.GetApplication(ctx, companyID, jobID, applicationID)
	if err != nil {
		return err
	}
	return e.Repo.DeleteApplicationTag(ctx, a.ID, tagID)
}

func (e Engine) ListApplicationTags(ctx context.Context, companyID, jobID, applicationID string) ([]domain.ApplicationTag, error) {
	a, err := e.Repo.GetApplication(ctx, companyID, jobID, applicationID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListApplicationTags(ctx, a.ID)
}
