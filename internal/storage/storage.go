// Package storage persists courses as rows with one JSON column per wizard
// section, mirroring the courses table of the hosting application. Writes
// are full-snapshot overwrites; there is no partial-update API. A small
// in-memory draft buffer holds staged section payloads between autosave
// flushes.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"coursebuilder/internal/course"
	appLog "coursebuilder/internal/log"
)

// ErrNotFound is returned when no course row matches the requested id.
var ErrNotFound = errors.New("storage: course not found")

// courseRow is the persisted shape of a course. Section payloads live in
// JSON columns; the generator and pagination logic never see these raw
// columns. Rows are decoded into course.Course at this boundary.
type courseRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time

	Essentials     datatypes.JSON
	Classification datatypes.JSON
	Pedagogy       datatypes.JSON
	Schedule       datatypes.JSON
	Curriculum     datatypes.JSON
	Templates      datatypes.JSON
	Students       datatypes.JSON
	Pricing        datatypes.JSON
	Generation     datatypes.JSON
	Launch         datatypes.JSON
}

func (courseRow) TableName() string { return "courses" }

// Store is the course persistence port.
type Store struct {
	db *gorm.DB

	// drafts buffers staged section payloads per course until the next
	// flush. Guarded by draftMu; payloads are validated before staging.
	draftMu sync.Mutex
	drafts  map[string]map[string]json.RawMessage
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the courses table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&courseRow{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Store{
		db:     db,
		drafts: make(map[string]map[string]json.RawMessage),
	}, nil
}

// Create inserts a new course row.
func (s *Store) Create(c *course.Course) error {
	row, err := rowFromCourse(c)
	if err != nil {
		return err
	}
	if err := s.db.Create(row).Error; err != nil {
		return fmt.Errorf("storage: create course: %w", err)
	}
	return nil
}

// Get loads and decodes one course.
func (s *Store) Get(id string) (*course.Course, error) {
	var row courseRow
	err := s.db.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load course %s: %w", id, err)
	}
	return courseFromRow(&row)
}

// List returns all courses, most recently updated first. Rows that fail to
// decode are skipped with a logged error rather than failing the listing.
func (s *Store) List() ([]*course.Course, error) {
	var rows []courseRow
	if err := s.db.Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("storage: list courses: %w", err)
	}

	out := make([]*course.Course, 0, len(rows))
	for i := range rows {
		c, err := courseFromRow(&rows[i])
		if err != nil {
			appLog.Error("storage: skipping undecodable course row", err, "id", rows[i].ID)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Delete removes a course row and discards any staged drafts for it.
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&courseRow{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("storage: delete course %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.draftMu.Lock()
	delete(s.drafts, id)
	s.draftMu.Unlock()
	return nil
}

// Save overwrites the full course snapshot.
func (s *Store) Save(c *course.Course) error {
	c.UpdatedAt = time.Now().UTC()
	row, err := rowFromCourse(c)
	if err != nil {
		return err
	}
	var n int64
	if err := s.db.Model(&courseRow{}).Where("id = ?", c.ID).Count(&n).Error; err != nil {
		return fmt.Errorf("storage: save course %s: %w", c.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	// gorm Save writes every column, which is what snapshot overwrite needs;
	// struct Updates would silently skip zero-valued fields.
	if err := s.db.Save(row).Error; err != nil {
		return fmt.Errorf("storage: save course %s: %w", c.ID, err)
	}
	return nil
}

// StageDraft validates a section payload against the current course and
// buffers it for the next flush. This is the debounced-autosave path: the
// caller gets validation feedback immediately while the row write itself is
// deferred to the flush loop.
func (s *Store) StageDraft(courseID, section string, payload json.RawMessage) error {
	c, err := s.Get(courseID)
	if err != nil {
		return err
	}
	// Validate now so a bad payload never sits in the buffer.
	if err := c.ApplySection(section, payload); err != nil {
		return err
	}

	s.draftMu.Lock()
	defer s.draftMu.Unlock()
	if s.drafts[courseID] == nil {
		s.drafts[courseID] = make(map[string]json.RawMessage)
	}
	s.drafts[courseID][section] = append(json.RawMessage(nil), payload...)
	return nil
}

// FlushCourse persists all staged drafts for one course.
func (s *Store) FlushCourse(courseID string) error {
	s.draftMu.Lock()
	staged := s.drafts[courseID]
	delete(s.drafts, courseID)
	s.draftMu.Unlock()

	if len(staged) == 0 {
		return nil
	}
	return s.applyStaged(courseID, staged)
}

// FlushDrafts persists every staged draft and returns the number of courses
// written. Individual failures are logged and the remaining courses still
// flush.
func (s *Store) FlushDrafts() (int, error) {
	s.draftMu.Lock()
	pending := s.drafts
	s.drafts = make(map[string]map[string]json.RawMessage)
	s.draftMu.Unlock()

	flushed := 0
	var firstErr error
	for id, staged := range pending {
		if err := s.applyStaged(id, staged); err != nil {
			appLog.Error("storage: draft flush failed", err, "course_id", id)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		flushed++
	}
	return flushed, firstErr
}

// PendingDrafts reports how many courses currently have staged drafts.
func (s *Store) PendingDrafts() int {
	s.draftMu.Lock()
	defer s.draftMu.Unlock()
	return len(s.drafts)
}

func (s *Store) applyStaged(courseID string, staged map[string]json.RawMessage) error {
	c, err := s.Get(courseID)
	if err != nil {
		return err
	}
	// Apply in wizard order so section interactions stay deterministic.
	for _, name := range course.SectionNames {
		payload, ok := staged[name]
		if !ok {
			continue
		}
		if err := c.ApplySection(name, payload); err != nil {
			return err
		}
	}
	return s.Save(c)
}

func rowFromCourse(c *course.Course) (*courseRow, error) {
	row := &courseRow{
		ID:        c.ID,
		Title:     c.Title,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}

	for _, name := range course.SectionNames {
		v, err := c.SectionValue(name)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("storage: encode section %s: %w", name, err)
		}
		row.setSection(name, data)
	}
	return row, nil
}

func courseFromRow(row *courseRow) (*course.Course, error) {
	c := &course.Course{
		ID:        row.ID,
		Title:     row.Title,
		Status:    course.Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	for _, name := range course.SectionNames {
		raw := row.section(name)
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := c.ApplySection(name, raw); err != nil {
			return nil, fmt.Errorf("storage: decode section %s of course %s: %w", name, row.ID, err)
		}
	}
	// Row columns win for identity fields regardless of section content.
	c.ID = row.ID
	c.Status = course.Status(row.Status)
	return c, nil
}

func (r *courseRow) setSection(name string, data []byte) {
	switch name {
	case course.SectionEssentials:
		r.Essentials = data
	case course.SectionClassification:
		r.Classification = data
	case course.SectionPedagogy:
		r.Pedagogy = data
	case course.SectionSchedule:
		r.Schedule = data
	case course.SectionCurriculum:
		r.Curriculum = data
	case course.SectionTemplates:
		r.Templates = data
	case course.SectionStudents:
		r.Students = data
	case course.SectionPricing:
		r.Pricing = data
	case course.SectionGeneration:
		r.Generation = data
	case course.SectionLaunch:
		r.Launch = data
	}
}

func (r *courseRow) section(name string) []byte {
	switch name {
	case course.SectionEssentials:
		return r.Essentials
	case course.SectionClassification:
		return r.Classification
	case course.SectionPedagogy:
		return r.Pedagogy
	case course.SectionSchedule:
		return r.Schedule
	case course.SectionCurriculum:
		return r.Curriculum
	case course.SectionTemplates:
		return r.Templates
	case course.SectionStudents:
		return r.Students
	case course.SectionPricing:
		return r.Pricing
	case course.SectionGeneration:
		return r.Generation
	case course.SectionLaunch:
		return r.Launch
	}
	return nil
}
