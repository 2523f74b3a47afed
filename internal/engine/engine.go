package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hireline/internal/config"
	"hireline/internal/domain"
	"hireline/internal/history"
	"hireline/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Config  *config.Config
	Now     func() time.Time

	// AfterStageRead, when set, runs after MoveApplication reads the
	// application and before it writes the new stage pointer.
	AfterStageRead func()
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		History: history.Writer{},
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// InitCompany creates a company with migrations already run, registers the
// acting recruiter and stores the company's config.
func (e Engine) InitCompany(ctx context.Context, companyID, name, actorID string) (domain.Company, error) {
	if companyID == "" {
		companyID = uuid.NewString()
	}
	if strings.TrimSpace(name) == "" {
		return domain.Company{}, errors.New("name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()

	c := domain.Company{
		ID:        companyID,
		Name:      name,
		Status:    "active",
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertCompany(ctx, tx, c); err != nil {
		return domain.Company{}, fmt.Errorf("insert company: %w", err)
	}
	if actorID != "" {
		if err := e.Repo.EnsureRecruiter(ctx, tx, actorID, c.ID); err != nil {
			return domain.Company{}, fmt.Errorf("ensure recruiter: %w", err)
		}
	}
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default(c.ID)
	}
	if err := e.Repo.UpsertCompanyConfigTx(ctx, tx, c.ID, cfg); err != nil {
		return domain.Company{}, fmt.Errorf("insert company config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// JobCreateOptions are parameters for creating a job. When Stages is empty
// the pipeline is seeded from the config's default stage templates.
type JobCreateOptions struct {
	ID          string
	CompanyID   string
	Title       string
	Description string
	Stages      []StageInput
	ActorID     string
}

// StageInput is one stage definition in a pipeline rewrite or job creation.
// ID is empty for new stages.
type StageInput struct {
	ID          string
	Name        string
	Description string
	OrderIndex  int
}

func (e Engine) CreateJob(ctx context.Context, opts JobCreateOptions) (domain.Job, []domain.Stage, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Job{}, nil, errors.New("title is required")
	}
	if opts.CompanyID == "" {
		return domain.Job{}, nil, errors.New("company is required")
	}
	if _, err := e.Repo.GetCompany(ctx, opts.CompanyID); err != nil {
		return domain.Job{}, nil, err
	}
	stages := opts.Stages
	if len(stages) == 0 && e.Config != nil {
		for i, tmpl := range e.Config.Pipeline.DefaultStages {
			stages = append(stages, StageInput{Name: tmpl.Name, Description: tmpl.Description, OrderIndex: i})
		}
	}
	if err := validateStageInputs(stages); err != nil {
		return domain.Job{}, nil, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, nil, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	j := domain.Job{
		ID:          opts.ID,
		CompanyID:   opts.CompanyID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      "draft",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if err := e.Repo.InsertJob(ctx, tx, j); err != nil {
		return domain.Job{}, nil, fmt.Errorf("insert job: %w", err)
	}
	var created []domain.Stage
	for _, in := range stages {
		s := domain.Stage{
			ID:          uuid.NewString(),
			JobID:       j.ID,
			Name:        in.Name,
			Description: in.Description,
			OrderIndex:  in.OrderIndex,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.Repo.InsertStage(ctx, tx, s); err != nil {
			return domain.Job{}, nil, fmt.Errorf("insert stage %q: %w", s.Name, err)
		}
		created = append(created, s)
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, nil, err
	}
	return j, created, nil
}

func validateStageInputs(stages []StageInput) error {
	seenName := map[string]bool{}
	seenOrder := map[int]bool{}
	for _, in := range stages {
		if strings.TrimSpace(in.Name) == "" {
			return InvalidStageError{StageID: in.ID, Reason: "name is required"}
		}
		if in.OrderIndex < 0 {
			return InvalidStageError{StageID: in.ID, Reason: "order index must be non-negative"}
		}
		if seenName[in.Name] {
			return InvalidStageError{StageID: in.ID, Reason: fmt.Sprintf("duplicate stage name %q", in.Name)}
		}
		if seenOrder[in.OrderIndex] {
			return InvalidStageError{StageID: in.ID, Reason: fmt.Sprintf("duplicate order index %d", in.OrderIndex)}
		}
		seenName[in.Name] = true
		seenOrder[in.OrderIndex] = true
	}
	return nil
}

func ensureJobTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "draft":
		if newStatus == "published" || newStatus == "closed" {
			return nil
		}
	case "published":
		if newStatus == "paused" || newStatus == "closed" {
			return nil
		}
	case "paused":
		if newStatus == "published" || newStatus == "closed" {
			return nil
		}
	}
	return fmt.Errorf("invalid job status transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetJobStatus(ctx context.Context, companyID, jobID, status string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, companyID, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if err := ensureJobTransition(j.Status, status); err != nil {
		return domain.Job{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	now := e.timestamp()
	if err := e.Repo.UpdateJobStatus(ctx, tx, companyID, jobID, status, now); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	j.Status = status
	j.UpdatedAt = now
	return j, nil
}

// RewriteStages replaces a job's pipeline definition. Stages carrying an ID
// are updated in place, stages without one are created, and stages missing
// from the new list are dropped. A stage that is some application's current
// stage cannot be dropped. A dropped stage that appears in the transition
// ledger is deactivated instead of deleted so the ledger stays resolvable.
func (e Engine) RewriteStages(ctx context.Context, companyID, jobID string, stages []StageInput) ([]domain.Stage, error) {
	if _, err := e.Repo.GetJob(ctx, companyID, jobID); err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, InvalidStageError{Reason: "pipeline needs at least one stage"}
	}
	if err := validateStageInputs(stages); err != nil {
		return nil, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := e.Repo.ListStagesTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	byID := map[string]domain.Stage{}
	for _, s := range existing {
		byID[s.ID] = s
	}
	kept := map[string]bool{}
	for _, in := range stages {
		if in.ID == "" {
			continue
		}
		if _, ok := byID[in.ID]; !ok {
			return nil, InvalidStageError{StageID: in.ID, Reason: "stage does not belong to this job"}
		}
		kept[in.ID] = true
	}
	var dropped []string
	for _, s := range existing {
		if !kept[s.ID] {
			dropped = append(dropped, s.ID)
		}
	}
	if len(dropped) > 0 {
		n, err := e.Repo.CountApplicationsAtStages(ctx, tx, dropped)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, InvalidStageError{Reason: fmt.Sprintf("%d application(s) are currently at a stage being removed", n)}
		}
	}

	now := e.timestamp()
	var deactivated []string
	for _, id := range dropped {
		referenced, err := e.Repo.StageReferencedByHistory(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if referenced {
			deactivated = append(deactivated, id)
			continue
		}
		if err := e.Repo.DeleteStage(ctx, tx, jobID, id); err != nil {
			return nil, err
		}
	}

	maxPayload := 0
	for _, in := range stages {
		if in.OrderIndex > maxPayload {
			maxPayload = in.OrderIndex
		}
	}
	maxIndex := maxPayload
	for _, s := range existing {
		if s.OrderIndex > maxIndex {
			maxIndex = s.OrderIndex
		}
	}
	// Shift every row past the highest index in play so reordering cannot
	// trip the unique (job_id, order_index) constraint mid-update. The
	// renumbering below always lands under maxIndex+len(existing)+1, so
	// shifted rows stay out of reach until they are rewritten.
	shift := maxIndex + len(existing) + 1
	if _, err := tx.ExecContext(ctx, `UPDATE job_stages SET order_index = order_index + ? WHERE job_id=?`, shift, jobID); err != nil {
		return nil, err
	}
	for _, in := range stages {
		if in.ID == "" {
			s := domain.Stage{
				ID:          uuid.NewString(),
				JobID:       jobID,
				Name:        in.Name,
				Description: in.Description,
				OrderIndex:  in.OrderIndex,
				IsActive:    true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := e.Repo.InsertStage(ctx, tx, s); err != nil {
				return nil, fmt.Errorf("insert stage %q: %w", s.Name, err)
			}
			continue
		}
		s := byID[in.ID]
		s.Name = in.Name
		s.Description = in.Description
		s.OrderIndex = in.OrderIndex
		s.IsActive = true
		s.UpdatedAt = now
		if err := e.Repo.UpdateStage(ctx, tx, s); err != nil {
			return nil, err
		}
	}
	// Deactivated stages are not in the payload, so they would otherwise be
	// left parked wherever the shift put them. Renumber them right after the
	// kept range to keep the job's index space dense for the next rewrite.
	next := maxPayload + 1
	for _, id := range deactivated {
		s := byID[id]
		s.IsActive = false
		s.OrderIndex = next
		s.UpdatedAt = now
		if err := e.Repo.UpdateStage(ctx, tx, s); err != nil {
			return nil, err
		}
		next++
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return e.Repo.ListStages(ctx, jobID, false)
}

// ApplicationCreateOptions are parameters for an application intake.
type ApplicationCreateOptions struct {
	ID        string
	CompanyID string
	JobID     string
	FirstName string
	LastName  string
	Email     *string
	Phone     *string
}

// CreateApplication records a candidate's submission. The application starts
// unplaced; a move places it on the board. A second submission with the same
// email or phone for one job is rejected.
func (e Engine) CreateApplication(ctx context.Context, opts ApplicationCreateOptions) (domain.Application, error) {
	if strings.TrimSpace(opts.FirstName) == "" || strings.TrimSpace(opts.LastName) == "" {
		return domain.Application{}, errors.New("first and last name are required")
	}
	if _, err := e.Repo.GetJob(ctx, opts.CompanyID, opts.JobID); err != nil {
		return domain.Application{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	a := domain.Application{
		ID:        opts.ID,
		JobID:     opts.JobID,
		CompanyID: opts.CompanyID,
		FirstName: opts.FirstName,
		LastName:  opts.LastName,
		Email:     opts.Email,
		Phone:     opts.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	created, err := e.Repo.InsertApplication(ctx, tx, a)
	if err != nil {
		return domain.Application{}, fmt.Errorf("insert application: %w", err)
	}
	if !created {
		return domain.Application{}, fmt.Errorf("application for this job %w", ErrDuplicate)
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// RecordEvaluation stores scores produced by the evaluation service. Scores
// are stored and returned as-is.
func (e Engine) RecordEvaluation(ctx context.Context, companyID, jobID, applicationID string, ev domain.Evaluation) (domain.Application, error) {
	if _, err := e.Repo.GetApplication(ctx, companyID, jobID, applicationID); err != nil {
		return domain.Application{}, err
	}
	now := e.timestamp()
	if ev.EvaluatedAt == "" {
		ev.EvaluatedAt = now
	}
	if err := e.Repo.UpdateEvaluation(ctx, companyID, jobID, applicationID, ev, now); err != nil {
		return domain.Application{}, err
	}
	return e.Repo.GetApplication(ctx, companyID, jobID, applicationID)
}

// MoveOptions are parameters for a stage move.
type MoveOptions struct {
	CompanyID     string
	JobID         string
	ApplicationID string
	ToStageID     string
	ActorID       string
	Notes         string
}

// MoveResult is the outcome of a stage move. Changed is false when the
// application was already at the target stage; no ledger row is written then.
type MoveResult struct {
	Application domain.Application
	Changed     bool
	History     *domain.StageHistory
}

// MoveApplication advances an application to a stage of its job's pipeline.
// The stage pointer and the ledger row commit in one transaction. The write
// is conditional on the stage observed at read time; if another writer moved
// the application in between, ErrConflict is returned and nothing is written.
func (e Engine) MoveApplication(ctx context.Context, opts MoveOptions) (MoveResult, error) {
	a, err := e.Repo.GetApplication(ctx, opts.CompanyID, opts.JobID, opts.ApplicationID)
	if err != nil {
		return MoveResult{}, err
	}
	stage, err := e.Repo.GetStageForJob(ctx, opts.JobID, opts.ToStageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return MoveResult{}, InvalidStageError{StageID: opts.ToStageID, Reason: "stage is not part of this job's pipeline"}
		}
		return MoveResult{}, err
	}
	if !stage.IsActive {
		return MoveResult{}, InvalidStageError{StageID: opts.ToStageID, Reason: "stage is inactive"}
	}
	if a.CurrentStageID != nil && *a.CurrentStageID == opts.ToStageID {
		return MoveResult{Application: a, Changed: false}, nil
	}
	if e.AfterStageRead != nil {
		e.AfterStageRead()
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return MoveResult{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	ok, err := e.Repo.SetCurrentStageTx(ctx, tx, a.ID, a.CurrentStageID, opts.ToStageID, now)
	if err != nil {
		return MoveResult{}, err
	}
	if !ok {
		return MoveResult{}, ErrConflict
	}
	w := e.History
	if w.Now == nil {
		w.Now = e.Now
	}
	entry, err := w.Append(ctx, tx, domain.StageHistory{
		ApplicationID: a.ID,
		JobID:         a.JobID,
		CompanyID:     a.CompanyID,
		FromStageID:   a.CurrentStageID,
		ToStageID:     opts.ToStageID,
		ChangedBy:     opts.ActorID,
		Notes:         opts.Notes,
	})
	if err != nil {
		return MoveResult{}, fmt.Errorf("append stage history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return MoveResult{}, err
	}
	a.CurrentStageID = &stage.ID
	a.UpdatedAt = now
	return MoveResult{Application: a, Changed: true, History: &entry}, nil
}

// GetHistory returns an application's transition ledger, newest first.
func (e Engine) GetHistory(ctx context.Context, companyID, jobID, applicationID string, limit int) ([]domain.StageHistory, error) {
	if _, err := e.Repo.GetApplication(ctx, companyID, jobID, applicationID); err != nil {
		return nil, err
	}
	return e.Repo.ListStageHistory(ctx, companyID, jobID, applicationID, limit)
}

// HistoryCheck is the result of replaying an application's ledger.
type HistoryCheck struct {
	Consistent      bool    `json:"consistent"`
	Entries         int     `json:"entries"`
	ReplayedStageID *string `json:"replayed_stage_id,omitempty"`
	CurrentStageID  *string `json:"current_stage_id,omitempty"`
}

// VerifyHistory replays the ledger oldest-first and checks that the final
// entry's target matches the application's stage pointer.
func (e Engine) VerifyHistory(ctx context.Context, companyID, jobID, applicationID string) (HistoryCheck, error) {
	a, err := e.Repo.GetApplication(ctx, companyID, jobID, applicationID)
	if err != nil {
		return HistoryCheck{}, err
	}
	entries, err := e.Repo.ListStageHistoryAsc(ctx, companyID, jobID, applicationID)
	if err != nil {
		return HistoryCheck{}, err
	}
	check := HistoryCheck{Entries: len(entries), CurrentStageID: a.CurrentStageID}
	for _, h := range entries {
		to := h.ToStageID
		check.ReplayedStageID = &to
	}
	switch {
	case check.ReplayedStageID == nil && a.CurrentStageID == nil:
		check.Consistent = true
	case check.ReplayedStageID != nil && a.CurrentStageID != nil:
		check.Consistent = *check.ReplayedStageID == *a.CurrentStageID
	}
	return check, nil
}

// BoardColumn groups one stage's applications.
type BoardColumn struct {
	Stage        domain.Stage         `json:"stage"`
	Applications []domain.Application `json:"applications"`
}

// Board is a job's pipeline view: one column per active stage plus the
// applications not yet placed.
type Board struct {
	JobID    string               `json:"job_id"`
	Columns  []BoardColumn        `json:"columns"`
	Unplaced []domain.Application `json:"unplaced"`
}

func (e Engine) GetBoard(ctx context.Context, companyID, jobID string, sort repo.BoardSort) (Board, error) {
	if _, err := e.Repo.GetJob(ctx, companyID, jobID); err != nil {
		return Board{}, err
	}
	stages, err := e.Repo.ListStages(ctx, jobID, true)
	if err != nil {
		return Board{}, err
	}
	b := Board{JobID: jobID}
	for _, s := range stages {
		apps, err := e.Repo.ListByStage(ctx, companyID, jobID, s.ID, sort)
		if err != nil {
			return Board{}, err
		}
		b.Columns = append(b.Columns, BoardColumn{Stage: s, Applications: apps})
	}
	unplaced, err := e.Repo.ListByStage(ctx, companyID, jobID, "", sort)
	if err != nil {
		return Board{}, err
	}
	b.Unplaced = unplaced
	return b, nil
}
