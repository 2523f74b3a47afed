package domain

type Company struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"active,suspended"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Recruiter struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Job struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"draft,published,paused,closed"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Stage is one step in a job's hiring pipeline. OrderIndex is unique and
// non-negative within a job. A stage referenced by any application (current
// pointer or history) is deactivated instead of deleted.
type Stage struct {
	ID          string `json:"id"`
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OrderIndex  int    `json:"order_index"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Application is one candidate's submission to one job. CompanyID is
// denormalized from the job so every lookup can be tenant-scoped in a single
// predicate. CurrentStageID is nil until the application is placed on the
// board.
type Application struct {
	ID             string      `json:"id"`
	JobID          string      `json:"job_id"`
	CompanyID      string      `json:"company_id"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	Email          *string     `json:"email,omitempty"`
	Phone          *string     `json:"phone,omitempty"`
	CurrentStageID *string     `json:"current_stage_id,omitempty"`
	Evaluation     *Evaluation `json:"evaluation,omitempty"`
	CreatedAt      string      `json:"created_at" format:"date-time"`
	UpdatedAt      string      `json:"updated_at" format:"date-time"`
}

// Evaluation carries scores written by the external evaluation service. The
// pipeline stores and returns them without interpreting them.
type Evaluation struct {
	OverallScore           *float64 `json:"overall_score,omitempty"`
	EducationScore         *float64 `json:"education_score,omitempty"`
	ExperienceScore        *float64 `json:"experience_score,omitempty"`
	QuestionResponsesScore *float64 `json:"question_responses_score,omitempty"`
	Provider               string   `json:"provider,omitempty"`
	Model                  string   `json:"model,omitempty"`
	EvaluatedAt            string   `json:"evaluated_at,omitempty" format:"date-time"`
}

// StageHistory is one row of the append-only transition ledger. FromStageID
// is nil for the first placement. Replaying ToStageID in creation order for
// an application yields its current stage.
type StageHistory struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	JobID         string  `json:"job_id"`
	CompanyID     string  `json:"company_id"`
	FromStageID   *string `json:"from_stage_id,omitempty"`
	ToStageID     string  `json:"to_stage_id"`
	ChangedBy     string  `json:"changed_by"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

// Tag is a reusable company-scoped label. (CompanyID, Label) is unique.
type Tag struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// ApplicationTag associates a tag with an application, at most once per
// (ApplicationID, TagID) pair. Label/Color/TextColor are denormalized from
// the tag for display.
type ApplicationTag struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	TagID         string `json:"tag_id"`
	AddedBy       string `json:"added_by"`
	Label         string `json:"label,omitempty"`
	Color         string `json:"color,omitempty"`
	TextColor     string `json:"text_color,omitempty"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

// TagUsage is one row of the per-company tag usage summary.
type TagUsage struct {
	TagID     string `json:"tag_id"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	Count     int    `json:"count"`
}

type APIKey struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	RecruiterID string `json:"recruiter_id"`
	Name        string `json:"name,omitempty"`
	KeyHash     string `json:"key_hash"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}
