// Package history appends stage transition records to the ledger. Rows are
// written inside the caller's transaction so a transition and its ledger
// entry commit or roll back together.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"hireline/internal/domain"
)

type Writer struct {
	Now func() time.Time
}

// Append writes one ledger row in the caller's transaction and returns the
// stored record. FromStageID nil marks the first placement.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, entry domain.StageHistory) (domain.StageHistory, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = w.Now().UTC().Format(time.RFC3339)
	}
	var from any
	if entry.FromStageID != nil {
		from = *entry.FromStageID
	}
	var notes any
	if entry.Notes != "" {
		notes = entry.Notes
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO application_stage_history(id,application_id,job_id,company_id,from_stage_id,to_stage_id,changed_by,notes,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.ApplicationID, entry.JobID, entry.CompanyID, from, entry.ToStageID, entry.ChangedBy, notes, entry.CreatedAt)
	if err != nil {
		return domain.StageHistory{}, err
	}
	return entry, nil
}
