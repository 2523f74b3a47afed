package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const tagColumns = `id,company_id,label,color,text_color,created_at,updated_at`

func scanTag(scan func(dest ...any) error) (domain.Tag, error) {
	var t domain.Tag
	err := scan(&t.ID, &t.CompanyID, &t.Label, &t.Color, &t.TextColor, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

// InsertTag writes a catalog entry unless the company already has a tag with
// the same label. Returns true when a row was written.
func (r Repo) InsertTag(ctx context.Context, t domain.Tag) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO tags (`+tagColumns+`) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.CompanyID, t.Label, t.Color, t.TextColor, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TagIDByLabel resolves a label to its tag ID within a company.
func (r Repo) TagIDByLabel(ctx context.Context, companyID, label string) (string, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM tags WHERE company_id=? AND label=?`, companyID, label).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

func (r Repo) GetTag(ctx context.Context, companyID, id string) (domain.Tag, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id=? AND company_id=?`, id, companyID)
	return scanTag(row.Scan)
}

func (r Repo) ListTags(ctx context.Context, companyID string) ([]domain.Tag, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE company_id=? ORDER BY label`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Tag
	for rows.Next() {
		t, err := scanTag(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTag(ctx context.Context, t domain.Tag) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tags SET label=?, color=?, text_color=?, updated_at=? WHERE id=? AND company_id=?`,
		t.Label, t.Color, t.TextColor, t.UpdatedAt, t.ID, t.CompanyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTag(ctx context.Context, companyID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tags WHERE id=? AND company_id=?`, id, companyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TagUsage counts annotations per tag across the company. Unused tags appear
// with a zero count.
func (r Repo) TagUsage(ctx context.Context, companyID string) ([]domain.TagUsage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT t.id, t.label, t.color, t.text_color, COUNT(at.id)
FROM tags t LEFT JOIN application_tags at ON at.tag_id = t.id
WHERE t.company_id=? GROUP BY t.id ORDER BY COUNT(at.id) DESC, t.label`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TagUsage
	for rows.Next() {
		var u domain.TagUsage
		if err := rows.Scan(&u.TagID, &u.Label, &u.Color, &u.TextColor, &u.Count); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// InsertApplicationTag inserts an annotation unless the (application, tag)
// pair already exists. Returns true when a row was written.
func (r Repo) InsertApplicationTag(ctx context.Context, at domain.ApplicationTag) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO application_tags (id,application_id,tag_id,added_by,created_at) VALUES (?,?,?,?,?)`,
		at.ID, at.ApplicationID, at.TagID, at.AddedBy, at.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const applicationTagColumns = `at.id, at.application_id, at.tag_id, at.added_by, t.label, t.color, t.text_color, at.created_at`

func scanApplicationTag(scan func(dest ...any) error) (domain.ApplicationTag, error) {
	var at domain.ApplicationTag
	err := scan(&at.ID, &at.ApplicationID, &at.TagID, &at.AddedBy, &at.Label, &at.Color, &at.TextColor, &at.CreatedAt)
	if err == sql.ErrNoRows {
		return at, ErrNotFound
	}
	return at, err
}

func (r Repo) GetApplicationTag(ctx context.Context, applicationID, tagID string) (domain.ApplicationTag, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationTagColumns+` FROM application_tags at
JOIN tags t ON t.id = at.tag_id WHERE at.application_id=? AND at.tag_id=?`, applicationID, tagID)
	return scanApplicationTag(row.Scan)
}

// ListApplicationTags returns an application's annotations newest first, with
// the tag's label and colors joined in.
func (r Repo) ListApplicationTags(ctx context.Context, applicationID string) ([]domain.ApplicationTag, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+applicationTagColumns+` FROM application_tags at
JOIN tags t ON t.id = at.tag_id WHERE at.application_id=? ORDER BY at.created_at DESC, at.rowid DESC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ApplicationTag
	for rows.Next() {
		at, err := scanApplicationTag(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, at)
	}
	return res, rows.Err()
}

// DeleteApplicationTag removes an annotation. Removing one that does not
// exist is not an error.
func (r Repo) DeleteApplicationTag(ctx context.Context, applicationID, tagID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM application_tags WHERE application_id=? AND tag_id=?`, applicationID, tagID)
	return err
}
