package course

import (
	"bytes"
	"encoding/json"
	"fmt"

	"coursebuilder/internal/canvas"
	"coursebuilder/internal/schedule"
)

// Section names accepted by the wizard, in wizard order.
const (
	SectionEssentials     = "essentials"
	SectionClassification = "classification"
	SectionPedagogy       = "pedagogy"
	SectionSchedule       = "schedule"
	SectionCurriculum     = "curriculum"
	SectionTemplates      = "templates"
	SectionStudents       = "students"
	SectionPricing        = "pricing"
	SectionGeneration     = "generation"
	SectionLaunch         = "launch"
)

// SectionNames lists every wizard section in order.
var SectionNames = []string{
	SectionEssentials,
	SectionClassification,
	SectionPedagogy,
	SectionSchedule,
	SectionCurriculum,
	SectionTemplates,
	SectionStudents,
	SectionPricing,
	SectionGeneration,
	SectionLaunch,
}

// KnownSection reports whether name is a wizard section.
func KnownSection(name string) bool {
	for _, n := range SectionNames {
		if n == name {
			return true
		}
	}
	return false
}

// decodeStrict unmarshals raw into v, rejecting unknown fields so that
// schema drift in stored rows surfaces at the boundary instead of being
// silently dropped.
func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ApplySection decodes and validates one section payload and applies it to
// the course. This is the single place raw JSON from a stored row or a
// request body becomes a typed domain value.
func (c *Course) ApplySection(name string, raw []byte) error {
	switch name {
	case SectionEssentials:
		var v Essentials
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("essentials: %w", err)
		}
		if v.Title == "" {
			return fmt.Errorf("essentials: title is required")
		}
		c.Essentials = v
		c.Title = v.Title

	case SectionClassification:
		var v Classification
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("classification: %w", err)
		}
		c.Classification = v

	case SectionPedagogy:
		var v Pedagogy
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("pedagogy: %w", err)
		}
		c.Pedagogy = v

	case SectionSchedule:
		var v ScheduleSection
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		if err := validateSchedule(&v); err != nil {
			return err
		}
		c.Schedule = v

	case SectionCurriculum:
		var v Curriculum
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("curriculum: %w", err)
		}
		if err := validateCurriculum(v); err != nil {
			return err
		}
		c.Curriculum = v

	case SectionTemplates:
		var v Templates
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("templates: %w", err)
		}
		// Zero dimensions mean "use the configured default geometry"; only
		// an explicitly set geometry is validated.
		if (v.Dimensions != canvas.Dimensions{}) {
			if err := v.Dimensions.Validate(); err != nil {
				return fmt.Errorf("templates: %w", err)
			}
		}
		c.Templates = v

	case SectionStudents:
		var v Students
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("students: %w", err)
		}
		if v.MinAge < 0 || v.MaxAge < 0 || v.Capacity < 0 {
			return fmt.Errorf("students: ages and capacity must be non-negative")
		}
		if v.MaxAge > 0 && v.MinAge > v.MaxAge {
			return fmt.Errorf("students: min_age %d exceeds max_age %d", v.MinAge, v.MaxAge)
		}
		c.Students = v

	case SectionPricing:
		var v Pricing
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("pricing: %w", err)
		}
		if v.AmountCents < 0 || v.Installments < 0 {
			return fmt.Errorf("pricing: amount and installments must be non-negative")
		}
		if v.Currency != "" && len(v.Currency) != 3 {
			return fmt.Errorf("pricing: currency must be a 3-letter code, got %q", v.Currency)
		}
		c.Pricing = v

	case SectionGeneration:
		var v Generation
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("generation: %w", err)
		}
		c.Generation = v

	case SectionLaunch:
		var v Launch
		if err := decodeStrict(raw, &v); err != nil {
			return fmt.Errorf("launch: %w", err)
		}
		c.Launch = v

	default:
		return fmt.Errorf("unknown section %q", name)
	}
	return nil
}

// SectionValue returns the typed payload for a section name.
func (c *Course) SectionValue(name string) (any, error) {
	switch name {
	case SectionEssentials:
		return c.Essentials, nil
	case SectionClassification:
		return c.Classification, nil
	case SectionPedagogy:
		return c.Pedagogy, nil
	case SectionSchedule:
		return c.Schedule, nil
	case SectionCurriculum:
		return c.Curriculum, nil
	case SectionTemplates:
		return c.Templates, nil
	case SectionStudents:
		return c.Students, nil
	case SectionPricing:
		return c.Pricing, nil
	case SectionGeneration:
		return c.Generation, nil
	case SectionLaunch:
		return c.Launch, nil
	}
	return nil, fmt.Errorf("unknown section %q", name)
}

func validateSchedule(v *ScheduleSection) error {
	switch v.Spec.Mode {
	case "", schedule.ModeDateRange, schedule.ModeSessionCount, schedule.ModeManualList:
	default:
		return fmt.Errorf("schedule: unknown mode %q", v.Spec.Mode)
	}
	if v.Spec.TargetSessions < 0 || v.Spec.TargetSessions > schedule.MaxTargetSessions {
		return fmt.Errorf("schedule: target_sessions must be within 0..%d", schedule.MaxTargetSessions)
	}
	// All entries keep a stable identity across saves.
	v.Entries = schedule.EnsureEntryIDs(v.Entries)
	return nil
}

func validateCurriculum(v Curriculum) error {
	seen := make(map[int]bool, len(v.Rows))
	for _, row := range v.Rows {
		if row.Position < 0 || row.Position >= len(v.Rows) {
			return fmt.Errorf("curriculum: row position %d out of range", row.Position)
		}
		if seen[row.Position] {
			return fmt.Errorf("curriculum: duplicate row position %d", row.Position)
		}
		seen[row.Position] = true
	}
	return nil
}
