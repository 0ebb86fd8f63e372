// Package web exposes the course-authoring HTTP API: course CRUD, section
// autosave, schedule generation and import, canvas overflow analysis and
// the AI generation trigger.
package web

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"coursebuilder/internal/aigen"
	"coursebuilder/internal/canvas"
	"coursebuilder/internal/config"
	"coursebuilder/internal/course"
	appLog "coursebuilder/internal/log"
	"coursebuilder/internal/measure"
	"coursebuilder/internal/pdftext"
	"coursebuilder/internal/schedule"
	"coursebuilder/internal/storage"
)

// Server provides the HTTP API over the course store.
type Server struct {
	cfg    *config.Config
	store  *storage.Store
	runner *aigen.Runner
	mux    *http.ServeMux

	// In-memory cache for the course-list response to avoid re-decoding
	// every row on each request.
	listMu    sync.RWMutex
	listCache *listCache
}

// listCache holds a cached course-list response and its timestamp.
type listCache struct {
	resp      []courseSummary
	updatedAt time.Time
}

const listCacheTTL = 10 * time.Second

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, store *storage.Store, runner *aigen.Runner) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		runner: runner,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Coursebuilder", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/courses", s.handleListCourses)
	s.mux.HandleFunc("POST /api/courses", s.handleCreateCourse)
	s.mux.HandleFunc("GET /api/courses/{id}", s.handleGetCourse)
	s.mux.HandleFunc("DELETE /api/courses/{id}", s.handleDeleteCourse)
	s.mux.HandleFunc("PUT /api/courses/{id}/sections/{name}", s.handleSaveSection)
	s.mux.HandleFunc("POST /api/courses/{id}/schedule/generate", s.handleGenerateSchedule)
	s.mux.HandleFunc("POST /api/courses/{id}/sessions/{session}/overflow", s.handleOverflow)
	s.mux.HandleFunc("POST /api/courses/{id}/sessions/{session}/measure", s.handleMeasureSession)
	s.mux.HandleFunc("POST /api/courses/{id}/generate", s.handleAIGenerate)

	s.mux.HandleFunc("POST /api/schedule/import", s.handleImportSchedule)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// courseSummary is the list-view shape of a course.
type courseSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Sessions  int       `json:"sessions"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()

	s.listMu.RLock()
	lc := s.listCache
	s.listMu.RUnlock()
	if lc != nil && now.Sub(lc.updatedAt) < listCacheTTL {
		writeJSON(w, http.StatusOK, lc.resp)
		return
	}

	courses, err := s.store.List()
	if err != nil {
		appLog.Error("api: course list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	summaries := make([]courseSummary, 0, len(courses))
	for _, c := range courses {
		summaries = append(summaries, courseSummary{
			ID:        c.ID,
			Title:     c.Title,
			Status:    string(c.Status),
			Sessions:  len(c.Schedule.Entries),
			UpdatedAt: c.UpdatedAt,
		})
	}

	s.listMu.Lock()
	s.listCache = &listCache{resp: summaries, updatedAt: time.Now()}
	s.listMu.Unlock()

	writeJSON(w, http.StatusOK, summaries)
}

// invalidateList drops the course-list cache after any mutation.
func (s *Server) invalidateList() {
	s.listMu.Lock()
	s.listCache = nil
	s.listMu.Unlock()
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := course.New(body.Title)
	if err := s.store.Create(c); err != nil {
		appLog.Error("api: course create failed", err, "title", body.Title)
		writeError(w, http.StatusInternalServerError, "failed to create course")
		return
	}
	s.invalidateList()

	appLog.Info("api: course created", "course_id", c.ID, "title", c.Title)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		appLog.Error("api: course delete failed", err, "course_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete course")
		return
	}
	s.invalidateList()
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveSection stages one wizard section draft. The write itself is
// deferred to the autosave flush loop unless ?flush=1 forces it through.
func (s *Server) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := r.PathValue("name")
	if !course.KnownSection(name) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown section %q", name))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := s.store.StageDraft(id, name, payload); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if r.URL.Query().Get("flush") == "1" {
		if err := s.store.FlushCourse(id); err != nil {
			appLog.Error("api: section flush failed", err, "course_id", id, "section", name)
			writeError(w, http.StatusInternalServerError, "failed to persist section")
			return
		}
	}
	s.invalidateList()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "staged"})
}

// handleGenerateSchedule expands a recurrence spec, replaces the course's
// schedule entries wholesale and rebuilds the curriculum rows (one content
// row per entry).
func (s *Server) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCourse(w, r)
	if !ok {
		return
	}

	var spec schedule.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid generator spec")
		return
	}

	entries := schedule.Generate(spec)
	c.Schedule = course.ScheduleSection{Spec: spec, Entries: entries}
	c.Curriculum = course.Curriculum{Rows: course.BuildCurriculumRows(entries)}

	if err := s.store.Save(c); err != nil {
		appLog.Error("api: schedule save failed", err, "course_id", c.ID)
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}
	s.invalidateList()

	appLog.Info("api: schedule generated", "course_id", c.ID, "mode", string(spec.Mode), "entries", len(entries))
	writeJSON(w, http.StatusOK, c.Schedule)
}

// importResponse wraps an import result with the human-readable status the
// authoring UI surfaces ("no valid rows found" is a status, not an error).
type importResponse struct {
	schedule.ImportResult
	Status string `json:"status"`
}

// handleImportSchedule parses an uploaded schedule payload. The format
// query parameter selects the parser: auto (JSON/freeform text), ics, xlsx
// or pdf; binary formats are posted as the raw request body.
func (s *Server) handleImportSchedule(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	format := r.URL.Query().Get("format")
	var res schedule.ImportResult
	switch format {
	case "", "auto":
		res = schedule.ParseImported(string(data))
	case "ics":
		res = schedule.ParseICS(string(data))
	case "xlsx":
		res = schedule.ParseXLSX(bytes.NewReader(data))
	case "pdf":
		res = schedule.ParsePDF(data, pdftext.Extractor{})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown import format %q", format))
		return
	}

	status := fmt.Sprintf("%d sessions imported", len(res.Entries))
	if len(res.Entries) == 0 {
		status = "no valid rows found"
	}

	appLog.Info("api: schedule import", "format", format, "entries", len(res.Entries), "issues", len(res.Issues))
	writeJSON(w, http.StatusOK, importResponse{ImportResult: res, Status: status})
}

// overflowRequest carries the layout host's measurements for one session.
type overflowRequest struct {
	// Zoom the measurements were taken at; zero means 1.
	Zoom float64 `json:"zoom,omitempty"`
	// Measurements maps page id to measured content height in screen px.
	Measurements map[string]int `json:"measurements"`
}

type overflowResponse struct {
	Analyses  []canvas.OverflowAnalysis `json:"analyses"`
	Appended  bool                      `json:"appended"`
	PageCount int                       `json:"page_count"`
}

// handleOverflow records fresh measurements for a session's pages, runs the
// overflow analysis and appends a blank page when the last page overflows.
func (s *Server) handleOverflow(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCourse(w, r)
	if !ok {
		return
	}

	idx, err := strconv.Atoi(r.PathValue("session"))
	if err != nil || idx < 0 || idx >= len(c.Templates.Sessions) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var body overflowRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.applyMeasurements(w, c, idx, body.Zoom, body.Measurements)
}

// measureRequest asks the server-side layout host to measure a rendered
// session itself instead of trusting client-reported numbers.
type measureRequest struct {
	// URL of the rendered session, typically the authoring preview.
	URL string `json:"url"`
	// Zoom the preview renders at; zero means 1.
	Zoom float64 `json:"zoom,omitempty"`
}

// handleMeasureSession drives the headless layout host to the given preview
// URL, reads the per-page content heights and feeds them through the same
// record-and-append path the overflow endpoint uses.
func (s *Server) handleMeasureSession(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCourse(w, r)
	if !ok {
		return
	}

	idx, err := strconv.Atoi(r.PathValue("session"))
	if err != nil || idx < 0 || idx >= len(c.Templates.Sessions) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var body measureRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		writeError(w, http.StatusBadRequest, "a preview url is required")
		return
	}

	dims := c.Templates.Dimensions
	if (dims == canvas.Dimensions{}) {
		dims = s.defaultDimensions()
	}

	heights, err := measure.SessionHeights(r.Context(), measure.Options{
		URL:    body.URL,
		Width:  dims.WidthPx,
		Height: dims.HeightPx,
	})
	if err != nil {
		appLog.Error("api: session measurement failed", err, "course_id", c.ID, "session", idx, "url", body.URL)
		writeError(w, http.StatusBadGateway, "session measurement failed")
		return
	}

	s.applyMeasurements(w, c, idx, body.Zoom, heights)
}

// applyMeasurements records the given page heights on the session, appends
// a blank page when the last page overflows and persists the result.
func (s *Server) applyMeasurements(w http.ResponseWriter, c *course.Course, idx int, zoom float64, measurements map[string]int) {
	dims := c.Templates.Dimensions
	if (dims == canvas.Dimensions{}) {
		dims = s.defaultDimensions()
	}

	sess := c.Templates.Sessions[idx]
	for pageID, screenPx := range measurements {
		sess = canvas.RecordMeasurement(sess, pageID, canvas.NormalizeMeasured(screenPx, zoom))
	}

	appended := false
	if canvas.ShouldAppendPage(sess, dims) {
		sess = canvas.AppendPage(sess, course.NewPageID())
		appended = true
	}

	c.Templates.Sessions[idx] = sess
	if err := s.store.Save(c); err != nil {
		appLog.Error("api: session save failed", err, "course_id", c.ID, "session", idx)
		writeError(w, http.StatusInternalServerError, "failed to save session pages")
		return
	}

	writeJSON(w, http.StatusOK, overflowResponse{
		Analyses:  canvas.AnalyseSessionOverflow(sess, dims),
		Appended:  appended,
		PageCount: canvas.DerivedPageCount(sess),
	})
}

// handleAIGenerate triggers one generation run and patches the generation
// section with the result. A run inside the cooldown window is rejected
// with 429 and a Retry-After hint.
func (s *Server) handleAIGenerate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCourse(w, r)
	if !ok {
		return
	}

	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	gen, err := s.runner.Run(r.Context(), c, body.Prompt)
	switch {
	case errors.Is(err, aigen.ErrCooldownActive):
		left := s.runner.Remaining(c.ID)
		w.Header().Set("Retry-After", strconv.Itoa(int(left.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "generation cooldown active")
		return
	case errors.Is(err, aigen.ErrNoEndpoint):
		writeError(w, http.StatusServiceUnavailable, "no model endpoint configured")
		return
	case err != nil:
		appLog.Error("api: generation failed", err, "course_id", c.ID)
		writeError(w, http.StatusBadGateway, "generation failed")
		return
	}

	c.Generation = gen
	if err := s.store.Save(c); err != nil {
		appLog.Error("api: generation save failed", err, "course_id", c.ID)
		writeError(w, http.StatusInternalServerError, "failed to save generation result")
		return
	}
	s.invalidateList()

	writeJSON(w, http.StatusOK, gen)
}

// loadCourse resolves the {id} path value, writing the error response
// itself when the course cannot be loaded.
func (s *Server) loadCourse(w http.ResponseWriter, r *http.Request) (*course.Course, bool) {
	id := r.PathValue("id")
	c, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return nil, false
		}
		appLog.Error("api: course load failed", err, "course_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load course")
		return nil, false
	}
	return c, true
}

func (s *Server) defaultDimensions() canvas.Dimensions {
	p := s.cfg.Page
	return canvas.Dimensions{
		WidthPx:  p.WidthPx,
		HeightPx: p.HeightPx,
		Margins: canvas.Margins{
			Top:    p.MarginTop,
			Right:  p.MarginRight,
			Bottom: p.MarginBottom,
			Left:   p.MarginLeft,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
