package repo

import (
	"context"
	"database/sql"
	"strings"

	"hireline/internal/domain"
)

func scanStage(scan func(dest ...any) error) (domain.Stage, error) {
	var s domain.Stage
	var desc sql.NullString
	var active int
	err := scan(&s.ID, &s.JobID, &s.Name, &desc, &s.OrderIndex, &active, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Description = desc.String
	s.IsActive = active != 0
	return s, nil
}

const stageColumns = `id,job_id,name,description,order_index,is_active,created_at,updated_at`

func (r Repo) InsertStage(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO job_stages(`+stageColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.JobID, s.Name, nullable(s.Description), s.OrderIndex, boolInt(s.IsActive), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) UpdateStage(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	res, err := tx.ExecContext(ctx, `UPDATE job_stages SET name=?, description=?, order_index=?, is_active=?, updated_at=? WHERE id=? AND job_id=?`,
		s.Name, nullable(s.Description), s.OrderIndex, boolInt(s.IsActive), s.UpdatedAt, s.ID, s.JobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteStage(ctx context.Context, tx *sql.Tx, jobID, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM job_stages WHERE id=? AND job_id=?`, id, jobID)
	return err
}

// GetStageForJob resolves a stage only when it belongs to the given job.
func (r Repo) GetStageForJob(ctx context.Context, jobID, id string) (domain.Stage, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM job_stages WHERE id=? AND job_id=?`, id, jobID)
	return scanStage(row.Scan)
}

func (r Repo) ListStages(ctx context.Context, jobID string, activeOnly bool) ([]domain.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM job_stages WHERE job_id=?`
	if activeOnly {
		query += ` AND is_active=1`
	}
	query += ` ORDER BY order_index ASC`
	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) ListStagesTx(ctx context.Context, tx *sql.Tx, jobID string) ([]domain.Stage, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+stageColumns+` FROM job_stages WHERE job_id=? ORDER BY order_index ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// CountApplicationsAtStages counts applications whose current pointer sits on
// any of the given stages. Used by the rewrite protection: such stages must
// not leave the payload.
func (r Repo) CountApplicationsAtStages(ctx context.Context, tx *sql.Tx, stageIDs []string) (int, error) {
	if len(stageIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(stageIDs)), ",")
	args := make([]any, len(stageIDs))
	for i, id := range stageIDs {
		args[i] = id
	}
	row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE current_stage_id IN (`+placeholders+`)`, args...)
	var n int
	err := row.Scan(&n)
	return n, err
}

// StageReferencedByHistory reports whether any ledger row points at the stage.
func (r Repo) StageReferencedByHistory(ctx context.Context, tx *sql.Tx, stageID string) (bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM application_stage_history WHERE from_stage_id=? OR to_stage_id=? LIMIT 1`, stageID, stageID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
