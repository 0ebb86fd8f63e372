// Package aigen runs the AI-assisted content-generation workflow: build a
// request from the course, call the external language-model endpoint, and
// return a patched generation section. It is a sequential fetch-then-patch
// step with a per-course cooldown window; all real computation happens on
// the model server, so there is no scheduling, retrying or backoff here.
package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"coursebuilder/internal/config"
	"coursebuilder/internal/course"
	appLog "coursebuilder/internal/log"
)

// ErrCooldownActive is returned while a course is still inside its
// generation cooldown window.
var ErrCooldownActive = errors.New("aigen: generation cooldown active")

// ErrNoEndpoint is returned when no model endpoint is configured.
var ErrNoEndpoint = errors.New("aigen: no model endpoint configured")

// Runner calls the external model endpoint with a bounded timeout and
// tracks per-course cooldowns.
type Runner struct {
	client   *http.Client
	endpoint string
	model    string
	cooldown time.Duration

	mu      sync.Mutex
	lastRun map[string]time.Time

	now func() time.Time
}

// NewRunner builds a Runner from the AI configuration.
func NewRunner(cfg config.AIConfig) *Runner {
	return &Runner{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		cooldown: time.Duration(cfg.CooldownSeconds) * time.Second,
		lastRun:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// generateRequest is the JSON body sent to the model endpoint.
type generateRequest struct {
	Model  string        `json:"model"`
	Prompt string        `json:"prompt"`
	Course courseContext `json:"course"`
}

// courseContext is the course summary included with every request so the
// model writes content grounded in the authored sections.
type courseContext struct {
	Title      string   `json:"title"`
	Field      string   `json:"field,omitempty"`
	Level      string   `json:"level,omitempty"`
	Objectives []string `json:"objectives,omitempty"`
	Sessions   int      `json:"sessions"`
}

// generateResponse is the accepted response shape.
type generateResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Remaining reports how long the course's cooldown window still has to run;
// zero means a run is allowed now.
func (r *Runner) Remaining(courseID string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastRun[courseID]
	if !ok {
		return 0
	}
	if left := r.cooldown - r.now().Sub(last); left > 0 {
		return left
	}
	return 0
}

// Run performs one generation pass for the course. The cooldown window
// opens when the run starts, so a failed call still has to wait. This
// matches the authoring UI's cooldown timer, which starts on click.
func (r *Runner) Run(ctx context.Context, c *course.Course, prompt string) (course.Generation, error) {
	if r.endpoint == "" {
		return course.Generation{}, ErrNoEndpoint
	}

	r.mu.Lock()
	if last, ok := r.lastRun[c.ID]; ok && r.now().Sub(last) < r.cooldown {
		r.mu.Unlock()
		return course.Generation{}, ErrCooldownActive
	}
	r.lastRun[c.ID] = r.now()
	r.mu.Unlock()

	if prompt == "" {
		prompt = c.Generation.Prompt
	}

	body, err := json.Marshal(generateRequest{
		Model:  r.model,
		Prompt: prompt,
		Course: courseContext{
			Title:      c.Title,
			Field:      c.Classification.Field,
			Level:      c.Classification.Level,
			Objectives: c.Pedagogy.Objectives,
			Sessions:   len(c.Schedule.Entries),
		},
	})
	if err != nil {
		return course.Generation{}, fmt.Errorf("aigen: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return course.Generation{}, fmt.Errorf("aigen: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	appLog.Info("aigen: generation start", "course_id", c.ID, "model", r.model, "prompt_len", len(prompt))

	resp, err := r.client.Do(req)
	if err != nil {
		return course.Generation{}, fmt.Errorf("aigen: model call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return course.Generation{}, fmt.Errorf("aigen: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		appLog.Error("aigen: model returned non-OK status", errors.New(resp.Status),
			"course_id", c.ID, "status", resp.StatusCode)
		return course.Generation{}, fmt.Errorf("aigen: model returned %s", resp.Status)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return course.Generation{}, fmt.Errorf("aigen: decode response: %w", err)
	}
	if decoded.Error != "" {
		return course.Generation{}, fmt.Errorf("aigen: model error: %s", decoded.Error)
	}

	ranAt := r.now().UTC()
	gen := course.Generation{
		Prompt:    prompt,
		Status:    "completed",
		Output:    decoded.Content,
		LastRunAt: &ranAt,
	}

	appLog.Info("aigen: generation completed", "course_id", c.ID, "output_len", len(decoded.Content))
	return gen, nil
}
