package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"hireline/internal/config"
	"hireline/internal/domain"
	"hireline/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher tails the stage-history ledger and POSTs each transition
// to the configured targets. Each target keeps its own rowid cursor, so a
// slow or failing target never blocks the others.
type webhookDispatcher struct {
	engine   engine.Engine
	company  string
	webhooks []config.WebhookConfig
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

func startWebhookDispatcher(e engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	companyID := e.Config.Company.ID
	if strings.TrimSpace(companyID) == "" {
		return
	}
	d := &webhookDispatcher{
		engine:   e,
		company:  companyID,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursors:  make(map[int]int64),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.WebhookConfig) {
	ctx := context.Background()
	cursor := d.cursorFor(idx)
	entries, rowids, err := d.engine.Repo.HistoryAfter(ctx, defaultWebhookBatch, cursor, d.company)
	if err != nil {
		log.Printf("webhook: fetch transitions failed: %v", err)
		return
	}
	for i, entry := range entries {
		if err := d.postTransition(ctx, hook, rowids[i], entry); err != nil {
			log.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
			return
		}
		d.setCursor(idx, rowids[i])
	}
}

func (d *webhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	// Start at the ledger's tail: only transitions after startup are sent.
	cur, err := d.engine.Repo.LatestHistoryID(context.Background(), d.company)
	if err != nil {
		log.Printf("webhook: init cursor failed: %v", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookTransition struct {
	ID            int64   `json:"id"`
	Event         string  `json:"event"`
	ApplicationID string  `json:"application_id"`
	JobID         string  `json:"job_id"`
	FromStageID   *string `json:"from_stage_id,omitempty"`
	ToStageID     string  `json:"to_stage_id"`
	ChangedBy     string  `json:"changed_by"`
	Notes         string  `json:"notes,omitempty"`
	TS            string  `json:"ts"`
}

func (d *webhookDispatcher) postTransition(ctx context.Context, hook config.WebhookConfig, rowid int64, entry domain.StageHistory) error {
	body := webhookTransition{
		ID:            rowid,
		Event:         "application.stage_changed",
		ApplicationID: entry.ApplicationID,
		JobID:         entry.JobID,
		FromStageID:   entry.FromStageID,
		ToStageID:     entry.ToStageID,
		ChangedBy:     entry.ChangedBy,
		Notes:         entry.Notes,
		TS:            entry.CreatedAt,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hireline-Event", body.Event)
	req.Header.Set("X-Hireline-Delivery", fmt.Sprintf("%d", rowid))
	req.Header.Set("X-Hireline-Company", d.company)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Hireline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}
