package server

import (
	"hireline/internal/domain"
	"hireline/internal/engine"
)

// Request payloads

type DevLoginRequest struct {
	ActorID   string `json:"actor_id"`
	CompanyID string `json:"company_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type StageRequest struct {
	ID          *string `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	OrderIndex  int     `json:"order_index" minimum:"0"`
}

type CreateJobRequest struct {
	ID          *string        `json:"id,omitempty"`
	Title       string         `json:"title"`
	Description *string        `json:"description,omitempty"`
	Stages      []StageRequest `json:"stages,omitempty"`
}

type SetJobStatusRequest struct {
	Status string `json:"status" enum:"published,paused,closed"`
}

type RewriteStagesRequest struct {
	Stages []StageRequest `json:"stages"`
}

type CreateApplicationRequest struct {
	ID        *string `json:"id,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email,omitempty" format:"email"`
	Phone     *string `json:"phone,omitempty"`
}

type MoveApplicationRequest struct {
	ToStageID string  `json:"to_stage_id"`
	Notes     *string `json:"notes,omitempty"`
}

type EvaluationRequest struct {
	OverallScore           *float64 `json:"overall_score,omitempty"`
	EducationScore         *float64 `json:"education_score,omitempty"`
	ExperienceScore        *float64 `json:"experience_score,omitempty"`
	QuestionResponsesScore *float64 `json:"question_responses_score,omitempty"`
	Provider               string   `json:"provider,omitempty"`
	Model                  string   `json:"model,omitempty"`
	EvaluatedAt            *string  `json:"evaluated_at,omitempty" format:"date-time"`
}

type CreateTagRequest struct {
	ID        *string `json:"id,omitempty"`
	Label     string  `json:"label"`
	Color     *string `json:"color,omitempty"`
	TextColor *string `json:"text_color,omitempty"`
}

type UpdateTagRequest struct {
	Label     *string `json:"label,omitempty"`
	Color     *string `json:"color,omitempty"`
	TextColor *string `json:"text_color,omitempty"`
}

type AddTagRequest struct {
	TagID string `json:"tag_id"`
}

type CreateAPIKeyRequest struct {
	RecruiterID string  `json:"recruiter_id"`
	Name        *string `json:"name,omitempty"`
}

// Response payloads

type CompanyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"active,suspended"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type JobResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status" enum:"draft,published,paused,closed"`
	Stages      []StageResponse `json:"stages,omitempty"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
}

type StageResponse struct {
	ID          string `json:"id"`
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OrderIndex  int    `json:"order_index"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type ApplicationResponse struct {
	ID             string                   `json:"id"`
	JobID          string                   `json:"job_id"`
	FirstName      string                   `json:"first_name"`
	LastName       string                   `json:"last_name"`
	Email          *string                  `json:"email,omitempty"`
	Phone          *string                  `json:"phone,omitempty"`
	CurrentStageID *string                  `json:"current_stage_id,omitempty"`
	Evaluation     *domain.Evaluation       `json:"evaluation,omitempty"`
	Tags           []ApplicationTagResponse `json:"tags,omitempty"`
	CreatedAt      string                   `json:"created_at" format:"date-time"`
	UpdatedAt      string                   `json:"updated_at" format:"date-time"`
}

type paginatedJobs struct {
	Items      []JobResponse `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type paginatedApplications struct {
	Items      []ApplicationResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type StageHistoryResponse struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	FromStageID   *string `json:"from_stage_id,omitempty"`
	ToStageID     string  `json:"to_stage_id"`
	ChangedBy     string  `json:"changed_by"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type MoveApplicationResponse struct {
	Application ApplicationResponse   `json:"application"`
	Changed     bool                  `json:"changed"`
	History     *StageHistoryResponse `json:"history,omitempty"`
}

type TagResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type ApplicationTagResponse struct {
	ID        string `json:"id"`
	TagID     string `json:"tag_id"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	AddedBy   string `json:"added_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// AddTagResponse reports the annotation and whether this call created it.
// Created is false when the tag was already attached.
type AddTagResponse struct {
	Tag     ApplicationTagResponse `json:"tag"`
	Created bool                   `json:"created"`
}

type TagUsageResponse struct {
	TagID     string `json:"tag_id"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	Count     int    `json:"count"`
}

type BoardColumnResponse struct {
	Stage        StageResponse         `json:"stage"`
	Applications []ApplicationResponse `json:"applications"`
}

type BoardResponse struct {
	JobID    string                `json:"job_id"`
	Columns  []BoardColumnResponse `json:"columns"`
	Unplaced []ApplicationResponse `json:"unplaced"`
}

type APIKeyResponse struct {
	ID          string `json:"id"`
	RecruiterID string `json:"recruiter_id"`
	Name        string `json:"name,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	// Key carries the plaintext exactly once, on creation.
	Key string `json:"key,omitempty"`
}

// Mappers

func companyResponse(c domain.Company) CompanyResponse {
	return CompanyResponse{ID: c.ID, Name: c.Name, Status: c.Status, CreatedAt: c.CreatedAt}
}

func jobResponse(j domain.Job, stages []domain.Stage) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Title:       j.Title,
		Description: j.Description,
		Status:      j.Status,
		Stages:      mapStages(stages),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func stageResponse(s domain.Stage) StageResponse {
	return StageResponse{
		ID:          s.ID,
		JobID:       s.JobID,
		Name:        s.Name,
		Description: s.Description,
		OrderIndex:  s.OrderIndex,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func mapStages(items []domain.Stage) []StageResponse {
	if items == nil {
		return nil
	}
	res := make([]StageResponse, 0, len(items))
	for _, s := range items {
		res = append(res, stageResponse(s))
	}
	return res
}

func applicationResponse(a domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:             a.ID,
		JobID:          a.JobID,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Email:          a.Email,
		Phone:          a.Phone,
		CurrentStageID: a.CurrentStageID,
		Evaluation:     a.Evaluation,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func mapApplications(items []domain.Application) []ApplicationResponse {
	res := make([]ApplicationResponse, 0, len(items))
	for _, a := range items {
		res = append(res, applicationResponse(a))
	}
	return res
}

func historyResponse(h domain.StageHistory) StageHistoryResponse {
	return StageHistoryResponse{
		ID:            h.ID,
		ApplicationID: h.ApplicationID,
		FromStageID:   h.FromStageID,
		ToStageID:     h.ToStageID,
		ChangedBy:     h.ChangedBy,
		Notes:         h.Notes,
		CreatedAt:     h.CreatedAt,
	}
}

func mapHistory(items []domain.StageHistory) []StageHistoryResponse {
	res := make([]StageHistoryResponse, 0, len(items))
	for _, h := range items {
		res = append(res, historyResponse(h))
	}
	return res
}

func tagResponse(t domain.Tag) TagResponse {
	return TagResponse{
		ID:        t.ID,
		Label:     t.Label,
		Color:     t.Color,
		TextColor: t.TextColor,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func mapTags(items []domain.Tag) []TagResponse {
	res := make([]TagResponse, 0, len(items))
	for _, t := range items {
		res = append(res, tagResponse(t))
	}
	return res
}

func applicationTagResponse(at domain.ApplicationTag) ApplicationTagResponse {
	return ApplicationTagResponse{
		ID:        at.ID,
		TagID:     at.TagID,
		Label:     at.Label,
		Color:     at.Color,
		TextColor: at.TextColor,
		AddedBy:   at.AddedBy,
		CreatedAt: at.CreatedAt,
	}
}

func mapApplicationTags(items []domain.ApplicationTag) []ApplicationTagResponse {
	res := make([]ApplicationTagResponse, 0, len(items))
	for _, at := range items {
		res = append(res, applicationTagResponse(at))
	}
	return res
}

func mapTagUsage(items []domain.TagUsage) []TagUsageResponse {
	res := make([]TagUsageResponse, 0, len(items))
	for _, u := range items {
		res = append(res, TagUsageResponse{TagID: u.TagID, Label: u.Label, Color: u.Color, TextColor: u.TextColor, Count: u.Count})
	}
	return res
}

func boardResponse(b engine.Board) BoardResponse {
	res := BoardResponse{JobID: b.JobID, Unplaced: mapApplications(b.Unplaced)}
	res.Columns = make([]BoardColumnResponse, 0, len(b.Columns))
	for _, col := range b.Columns {
		res.Columns = append(res.Columns, BoardColumnResponse{
			Stage:        stageResponse(col.Stage),
			Applications: mapApplications(col.Applications),
		})
	}
	return res
}

func apiKeyResponse(k domain.APIKey, plaintext string) APIKeyResponse {
	return APIKeyResponse{
		ID:          k.ID,
		RecruiterID: k.RecruiterID,
		Name:        k.Name,
		CreatedAt:   k.CreatedAt,
		Key:         plaintext,
	}
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
