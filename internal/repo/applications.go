package repo

import (
	"context"
	"database/sql"
	"strings"

	"hireline/internal/domain"
)

const applicationColumns = `id,job_id,company_id,first_name,last_name,email,phone,current_stage_id,
overall_score,education_score,experience_score,question_responses_score,
evaluation_provider,evaluation_model,evaluated_at,created_at,updated_at`

func scanApplication(scan func(dest ...any) error) (domain.Application, error) {
	var a domain.Application
	var email, phone, stageID, provider, model, evaluatedAt sql.NullString
	var overall, education, experience, questions sql.NullFloat64
	err := scan(&a.ID, &a.JobID, &a.CompanyID, &a.FirstName, &a.LastName, &email, &phone, &stageID,
		&overall, &education, &experience, &questions, &provider, &model, &evaluatedAt, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if email.Valid {
		a.Email = &email.String
	}
	if phone.Valid {
		a.Phone = &phone.String
	}
	if stageID.Valid {
		a.CurrentStageID = &stageID.String
	}
	if overall.Valid || education.Valid || experience.Valid || questions.Valid || provider.Valid {
		ev := &domain.Evaluation{
			Provider: provider.String,
			Model:    model.String,
		}
		if overall.Valid {
			ev.OverallScore = &overall.Float64
		}
		if education.Valid {
			ev.EducationScore = &education.Float64
		}
		if experience.Valid {
			ev.ExperienceScore = &experience.Float64
		}
		if questions.Valid {
			ev.QuestionResponsesScore = &questions.Float64
		}
		if evaluatedAt.Valid {
			ev.EvaluatedAt = evaluatedAt.String
		}
		a.Evaluation = ev
	}
	return a, nil
}

// InsertApplication writes a submission unless the job already has one with
// the same email or phone. Returns true when a row was written.
func (r Repo) InsertApplication(ctx context.Context, tx *sql.Tx, a domain.Application) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO applications(id,job_id,company_id,first_name,last_name,email,phone,current_stage_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.JobID, a.CompanyID, a.FirstName, a.LastName, nullableStringPtr(a.Email), nullableStringPtr(a.Phone),
		nullableStringPtr(a.CurrentStageID), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetApplication resolves an application only under the exact
// (companyID, jobID) pair; a mismatch on either is ErrNotFound so callers
// cannot distinguish cross-tenant rows from absent ones.
func (r Repo) GetApplication(ctx context.Context, companyID, jobID, id string) (domain.Application, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=? AND job_id=? AND company_id=?`,
		id, jobID, companyID)
	return scanApplication(row.Scan)
}

// BoardSort selects the ordering of a board column.
type BoardSort string

const (
	BoardSortScore  BoardSort = "score"
	BoardSortRecent BoardSort = "recent"
)

type ApplicationFilters struct {
	CompanyID       string
	JobID           string
	StageID         string
	Unplaced        bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.Application, error) {
	clauses := []string{"company_id=?", "job_id=?"}
	args := []any{f.CompanyID, f.JobID}
	if f.StageID != "" {
		clauses = append(clauses, "current_stage_id=?")
		args = append(args, f.StageID)
	}
	if f.Unplaced {
		clauses = append(clauses, "current_stage_id IS NULL")
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryApplications(ctx, query, args...)
}

// ListByStage returns applications whose current stage equals stageID, in
// the requested sort order. An empty stageID selects unplaced applications.
// History never enters this query.
func (r Repo) ListByStage(ctx context.Context, companyID, jobID, stageID string, sort BoardSort) ([]domain.Application, error) {
	order := `ORDER BY created_at DESC, id DESC`
	if sort == BoardSortScore {
		order = `ORDER BY CASE WHEN overall_score IS NULL THEN 1 ELSE 0 END, overall_score DESC, created_at DESC`
	}
	stage := `current_stage_id=?`
	args := []any{companyID, jobID, stageID}
	if stageID == "" {
		stage = `current_stage_id IS NULL`
		args = args[:2]
	}
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE company_id=? AND job_id=? AND ` + stage + ` ` + order
	return r.queryApplications(ctx, query, args...)
}

func (r Repo) queryApplications(ctx context.Context, query string, args ...any) ([]domain.Application, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// SetCurrentStageTx performs the conditional pointer update: the write only
// lands when current_stage_id still equals the value read at the start of the
// move. sqlite's IS treats two NULLs as equal, which covers first placement.
// Returns false when the precondition failed.
func (r Repo) SetCurrentStageTx(ctx context.Context, tx *sql.Tx, applicationID string, from *string, to, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE applications SET current_stage_id=?, updated_at=? WHERE id=? AND current_stage_id IS ?`,
		to, now, applicationID, nullableStringPtr(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateEvaluation stores scores delivered by the external evaluation
// service.
func (r Repo) UpdateEvaluation(ctx context.Context, companyID, jobID, id string, ev domain.Evaluation, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE applications SET
overall_score=?, education_score=?, experience_score=?, question_responses_score=?,
evaluation_provider=?, evaluation_model=?, evaluated_at=?, updated_at=?
WHERE id=? AND job_id=? AND company_id=?`,
		nullableFloatPtr(ev.OverallScore), nullableFloatPtr(ev.EducationScore), nullableFloatPtr(ev.ExperienceScore),
		nullableFloatPtr(ev.QuestionResponsesScore), nullable(ev.Provider), nullable(ev.Model), nullable(ev.EvaluatedAt),
		now, id, jobID, companyID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountApplicationsByStage groups the job's board by current stage; the
// empty key counts unplaced applications.
func (r Repo) CountApplicationsByStage(ctx context.Context, companyID, jobID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT COALESCE(current_stage_id,''), COUNT(*) FROM applications WHERE company_id=? AND job_id=? GROUP BY current_stage_id`,
		companyID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var stageID string
		var count int
		if err := rows.Scan(&stageID, &count); err != nil {
			return nil, err
		}
		res[stageID] = count
	}
	return res, rows.Err()
}
