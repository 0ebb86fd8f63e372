// Package course holds the course-authoring domain model: the wizard's
// section payloads as typed structs, a validated JSON decoder for the
// persistence boundary, and the curriculum mapping from schedule entries.
package course

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"coursebuilder/internal/canvas"
	"coursebuilder/internal/schedule"
)

// Status is the course lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusLaunched   Status = "launched"
)

// Course is one authored course with all wizard sections.
type Course struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Essentials     Essentials      `json:"essentials"`
	Classification Classification  `json:"classification"`
	Pedagogy       Pedagogy        `json:"pedagogy"`
	Schedule       ScheduleSection `json:"schedule"`
	Curriculum     Curriculum      `json:"curriculum"`
	Templates      Templates       `json:"templates"`
	Students       Students        `json:"students"`
	Pricing        Pricing         `json:"pricing"`
	Generation     Generation      `json:"generation"`
	Launch         Launch          `json:"launch"`
}

// Essentials is the opening wizard section.
type Essentials struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Language string `json:"language,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Classification places the course in a subject taxonomy.
type Classification struct {
	Field    string   `json:"field,omitempty"`
	Subfield string   `json:"subfield,omitempty"`
	Level    string   `json:"level,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Pedagogy captures teaching approach and objectives.
type Pedagogy struct {
	Methods    []string `json:"methods,omitempty"`
	Objectives []string `json:"objectives,omitempty"`
	Assessment string   `json:"assessment,omitempty"`
}

// ScheduleSection stores the generator spec alongside the concrete entries
// it produced (or that an import supplied).
type ScheduleSection struct {
	Spec    schedule.Spec    `json:"spec"`
	Entries []schedule.Entry `json:"entries"`
}

// CurriculumRow is one content row, mapped from one schedule entry.
type CurriculumRow struct {
	ID       string   `json:"id"`
	Position int      `json:"position"`
	Title    string   `json:"title"`
	EntryID  string   `json:"entry_id,omitempty"`
	Blocks   []string `json:"blocks,omitempty"`
}

// Curriculum is the ordered course structure.
type Curriculum struct {
	Rows []CurriculumRow `json:"rows"`
}

// Templates holds the lesson-page blueprint: page geometry, current zoom
// and the per-session page lists the canvas engine operates on.
type Templates struct {
	Blueprint  string            `json:"blueprint,omitempty"`
	Dimensions canvas.Dimensions `json:"dimensions"`
	Zoom       float64           `json:"zoom,omitempty"`
	Sessions   []canvas.Session  `json:"sessions,omitempty"`
}

// Students describes the intended audience.
type Students struct {
	MinAge        int      `json:"min_age,omitempty"`
	MaxAge        int      `json:"max_age,omitempty"`
	Capacity      int      `json:"capacity,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// Pricing is the course price model.
type Pricing struct {
	Currency     string `json:"currency,omitempty"`
	AmountCents  int    `json:"amount_cents,omitempty"`
	Installments int    `json:"installments,omitempty"`
}

// Generation is the AI-assisted content-generation state.
type Generation struct {
	Prompt    string     `json:"prompt,omitempty"`
	Status    string     `json:"status,omitempty"`
	Output    string     `json:"output,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// Launch is the final wizard section.
type Launch struct {
	Visibility string     `json:"visibility,omitempty"`
	LaunchedAt *time.Time `json:"launched_at,omitempty"`
}

// New creates a draft course with a fresh id. The title seeds the
// essentials section so a stored row always round-trips its validation.
func New(title string) *Course {
	if title == "" {
		title = "Untitled course"
	}
	now := time.Now().UTC()
	return &Course{
		ID:         uuid.NewString(),
		Title:      title,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
		Essentials: Essentials{Title: title},
	}
}

// NewPageID returns a fresh identifier for an appended lesson page.
func NewPageID() string {
	return uuid.NewString()
}

// BuildCurriculumRows maps schedule entries to curriculum rows, one content
// row per entry, preserving entry order.
func BuildCurriculumRows(entries []schedule.Entry) []CurriculumRow {
	rows := make([]CurriculumRow, 0, len(entries))
	for i, e := range entries {
		title := fmt.Sprintf("Session %d · %s (%s)", i+1, e.Date, e.Day)
		if e.StartTime != "" && e.EndTime != "" {
			title = fmt.Sprintf("%s %s–%s", title, e.StartTime, e.EndTime)
		}
		rows = append(rows, CurriculumRow{
			ID:       uuid.NewString(),
			Position: i,
			Title:    title,
			EntryID:  e.ID,
		})
	}
	return rows
}

// MoveRow moves the row at from to the position to and renumbers positions.
// Out-of-range indexes leave the rows unchanged.
func MoveRow(rows []CurriculumRow, from, to int) []CurriculumRow {
	n := len(rows)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return rows
	}

	out := make([]CurriculumRow, 0, n)
	out = append(out, rows[:from]...)
	out = append(out, rows[from+1:]...)

	moved := rows[from]
	out = append(out[:to], append([]CurriculumRow{moved}, out[to:]...)...)

	for i := range out {
		out[i].Position = i
	}
	return out
}
