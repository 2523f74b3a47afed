package hirelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Hireline HTTP API client. The company is not part of
// any path; the server derives it from the credential, so a client with an
// API key only ever sees that key's company.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Job represents the API job model (partial).
type Job struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Status string  `json:"status"`
	Stages []Stage `json:"stages,omitempty"`
}

// Stage is one pipeline step of a job.
type Stage struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"order_index"`
	IsActive   bool   `json:"is_active"`
}

// Application represents a candidate submission (partial).
type Application struct {
	ID             string  `json:"id"`
	JobID          string  `json:"job_id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email,omitempty"`
	CurrentStageID *string `json:"current_stage_id,omitempty"`
}

// StageHistory is one ledger entry for an application.
type StageHistory struct {
	ID          string  `json:"id"`
	FromStageID *string `json:"from_stage_id,omitempty"`
	ToStageID   string  `json:"to_stage_id"`
	ChangedBy   string  `json:"changed_by"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// MoveResult reports the outcome of a move. Changed is false when the
// application was already at the target stage.
type MoveResult struct {
	Application Application   `json:"application"`
	Changed     bool          `json:"changed"`
	History     *StageHistory `json:"history,omitempty"`
}

// Tag is a company catalog entry.
type Tag struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}

// ApplicationTag is a tag attached to an application.
type ApplicationTag struct {
	ID    string `json:"id"`
	TagID string `json:"tag_id"`
	Label string `json:"label"`
}

// AddTagResult reports whether the attach call created the annotation.
type AddTagResult struct {
	Tag     ApplicationTag `json:"tag"`
	Created bool           `json:"created"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateJob creates a job. Pass nil stageNames to use the company's default
// pipeline.
func (c *Client) CreateJob(ctx context.Context, title string, stageNames []string) (Job, error) {
	body := map[string]any{"title": title}
	if len(stageNames) > 0 {
		stages := make([]map[string]any, 0, len(stageNames))
		for i, name := range stageNames {
			stages = append(stages, map[string]any{"name": name, "order_index": i})
		}
		body["stages"] = stages
	}
	var resp Job
	err := c.do(ctx, http.MethodPost, "v0/jobs", body, &resp)
	return resp, err
}

// GetJob fetches a job with its pipeline.
func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodGet, c.jobPath(jobID, ""), nil, &resp)
	return resp, err
}

// CreateApplication submits a candidate to a job.
func (c *Client) CreateApplication(ctx context.Context, jobID, firstName, lastName, email string) (Application, error) {
	body := map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
	}
	if email != "" {
		body["email"] = email
	}
	var resp Application
	err := c.do(ctx, http.MethodPost, c.jobPath(jobID, "applications"), body, &resp)
	return resp, err
}

// MoveApplication moves an application to a stage. A 409 means another move
// won the race; re-read the board and retry with fresh state.
func (c *Client) MoveApplication(ctx context.Context, jobID, applicationID, toStageID, notes string) (MoveResult, error) {
	body := map[string]any{"to_stage_id": toStageID}
	if notes != "" {
		body["notes"] = notes
	}
	var resp MoveResult
	err := c.do(ctx, http.MethodPost, c.applicationPath(jobID, applicationID, "move"), body, &resp)
	return resp, err
}

// History returns an application's ledger entries, newest first.
func (c *Client) History(ctx context.Context, jobID, applicationID string) ([]StageHistory, error) {
	var resp []StageHistory
	err := c.do(ctx, http.MethodGet, c.applicationPath(jobID, applicationID, "history"), nil, &resp)
	return resp, err
}

// CreateTag adds a tag to the company catalog.
func (c *Client) CreateTag(ctx context.Context, label string) (Tag, error) {
	var resp Tag
	err := c.do(ctx, http.MethodPost, "v0/tags", map[string]any{"label": label}, &resp)
	return resp, err
}

// ListTags returns the company catalog.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var resp []Tag
	err := c.do(ctx, http.MethodGet, "v0/tags", nil, &resp)
	return resp, err
}

// AddTag attaches a tag to an application. Attaching an already-attached tag
// succeeds with Created=false.
func (c *Client) AddTag(ctx context.Context, jobID, applicationID, tagID string) (AddTagResult, error) {
	var resp AddTagResult
	err := c.do(ctx, http.MethodPost, c.applicationPath(jobID, applicationID, "tags"), map[string]any{"tag_id": tagID}, &resp)
	return resp, err
}

// RemoveTag detaches a tag. Removing a tag that is not attached is not an
// error.
func (c *Client) RemoveTag(ctx context.Context, jobID, applicationID, tagID string) error {
	endpoint := c.applicationPath(jobID, applicationID, "tags/"+url.PathEscape(tagID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) jobPath(jobID, p string) string {
	endpoint := fmt.Sprintf("v0/jobs/%s", url.PathEscape(jobID))
	if p != "" {
		endpoint += "/" + strings.TrimLeft(p, "/")
	}
	return endpoint
}

func (c *Client) applicationPath(jobID, applicationID, p string) string {
	endpoint := fmt.Sprintf("v0/jobs/%s/applications/%s", url.PathEscape(jobID), url.PathEscape(applicationID))
	if p != "" {
		endpoint += "/" + strings.TrimLeft(p, "/")
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
