package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const historyColumns = `id,application_id,job_id,company_id,from_stage_id,to_stage_id,changed_by,notes,created_at`

func scanHistory(scan func(dest ...any) error) (domain.StageHistory, error) {
	var h domain.StageHistory
	var from, notes sql.NullString
	err := scan(&h.ID, &h.ApplicationID, &h.JobID, &h.CompanyID, &from, &h.ToStageID, &h.ChangedBy, &notes, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	if err != nil {
		return h, err
	}
	if from.Valid {
		h.FromStageID = &from.String
	}
	h.Notes = notes.String
	return h, nil
}

// ListStageHistory returns the ledger for one application, newest first.
// Rowid breaks created_at ties so the order is total.
func (r Repo) ListStageHistory(ctx context.Context, companyID, jobID, applicationID string, limit int) ([]domain.StageHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM application_stage_history
WHERE company_id=? AND job_id=? AND application_id=? ORDER BY created_at DESC, rowid DESC`
	args := []any{companyID, jobID, applicationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryHistory(ctx, query, args...)
}

// ListStageHistoryAsc returns the ledger oldest first, for fold-replay.
func (r Repo) ListStageHistoryAsc(ctx context.Context, companyID, jobID, applicationID string) ([]domain.StageHistory, error) {
	return r.queryHistory(ctx, `SELECT `+historyColumns+` FROM application_stage_history
WHERE company_id=? AND job_id=? AND application_id=? ORDER BY created_at ASC, rowid ASC`,
		companyID, jobID, applicationID)
}

func (r Repo) queryHistory(ctx context.Context, query string, args ...any) ([]domain.StageHistory, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StageHistory
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// HistoryAfter returns ledger rows with rowids greater than the cursor in
// ascending order, for webhook delivery.
func (r Repo) HistoryAfter(ctx context.Context, limit int, cursor int64, companyID string) ([]domain.StageHistory, []int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT rowid,`+historyColumns+` FROM application_stage_history
WHERE company_id=? AND rowid>? ORDER BY rowid ASC LIMIT ?`, companyID, cursor, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var res []domain.StageHistory
	var ids []int64
	for rows.Next() {
		var h domain.StageHistory
		var rowid int64
		var from, notes sql.NullString
		if err := rows.Scan(&rowid, &h.ID, &h.ApplicationID, &h.JobID, &h.CompanyID, &from, &h.ToStageID, &h.ChangedBy, &notes, &h.CreatedAt); err != nil {
			return nil, nil, err
		}
		if from.Valid {
			h.FromStageID = &from.String
		}
		h.Notes = notes.String
		res = append(res, h)
		ids = append(ids, rowid)
	}
	return res, ids, rows.Err()
}

// LatestHistoryID returns the most recent ledger rowid for a company.
func (r Repo) LatestHistoryID(ctx context.Context, companyID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(rowid),0) FROM application_stage_history WHERE company_id=?`, companyID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
