package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"

	appLog "coursebuilder/internal/log"
)

// Issue describes one skipped record during an import. Imports never fail
// wholesale; callers inspect Issues to tell "nothing found" apart from
// "malformed input".
type Issue struct {
	// Line is the 1-based line or record number the issue refers to, when
	// the source has one; 0 otherwise.
	Line int `json:"line,omitempty"`
	// Reason is a human-readable description of why the record was skipped.
	Reason string `json:"reason"`
}

// ImportResult is the outcome of parsing one imported payload.
type ImportResult struct {
	Entries []Entry `json:"entries"`
	Issues  []Issue `json:"issues,omitempty"`
}

// TextExtractor supplies concatenated per-page text for a binary document.
// PDF extraction is an external collaborator of the parsers; see pdftext.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

var (
	lineDatePattern  = regexp.MustCompile(`(\d{1,2}\.\d{1,2}\.\d{4})`)
	lineRangePattern = regexp.MustCompile(`(\d{1,2}:\d{2})\s*[-–—>]\s*(\d{1,2}:\d{2})`)
)

// importedRecord is the accepted shape for one structured (JSON) record.
// Both start_time/end_time and the shorter start/end keys are honored.
type importedRecord struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type importedEnvelope struct {
	Entries []importedRecord `json:"entries"`
}

// ParseImported parses a pasted schedule payload. Input starting with "["
// or "{" is first treated as JSON (an array of records, or an object with
// an "entries" array); on JSON failure the payload falls through to
// freeform line parsing. Individual bad records are skipped and reported
// as Issues.
func ParseImported(raw string) ImportResult {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ImportResult{Entries: []Entry{}}
	}

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if res, ok := parseStructured(trimmed); ok {
			return res
		}
		res := parseLines(trimmed)
		res.Issues = append([]Issue{{Reason: "payload looked like JSON but did not parse; fell back to line parsing"}}, res.Issues...)
		return res
	}

	return parseLines(trimmed)
}

// parseStructured handles the JSON forms. The second return is false when
// the payload is not usable JSON at all, in which case the caller falls
// back to line parsing.
func parseStructured(trimmed string) (ImportResult, bool) {
	var records []importedRecord

	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return ImportResult{}, false
		}
	} else {
		var env importedEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil || env.Entries == nil {
			return ImportResult{}, false
		}
		records = env.Entries
	}

	res := ImportResult{Entries: []Entry{}}
	for i, rec := range records {
		date := strings.TrimSpace(rec.Date)
		d, ok := ParseDMY(date)
		if !ok {
			res.Issues = append(res.Issues, Issue{
				Line:   i + 1,
				Reason: fmt.Sprintf("record has no parseable DD.MM.YYYY date: %q", date),
			})
			continue
		}
		start := strings.TrimSpace(rec.StartTime)
		if start == "" {
			start = strings.TrimSpace(rec.Start)
		}
		end := strings.TrimSpace(rec.EndTime)
		if end == "" {
			end = strings.TrimSpace(rec.End)
		}
		res.Entries = append(res.Entries, entryForDate(d, start, end, 0))
	}
	return res, true
}

// parseLines treats the payload as one session per line: the first
// DD.MM.YYYY occurrence is the date, an optional HH:MM-HH:MM range supplies
// the times. Lines without a date are skipped.
func parseLines(raw string) ImportResult {
	res := ImportResult{Entries: []Entry{}}

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}

		dm := lineDatePattern.FindString(line)
		if dm == "" {
			res.Issues = append(res.Issues, Issue{Line: i + 1, Reason: "no DD.MM.YYYY date found"})
			continue
		}
		d, ok := ParseDMY(dm)
		if !ok {
			res.Issues = append(res.Issues, Issue{Line: i + 1, Reason: fmt.Sprintf("invalid calendar date %q", dm)})
			continue
		}

		var start, end string
		if tm := lineRangePattern.FindStringSubmatch(line); tm != nil {
			start, end = tm[1], tm[2]
		}
		res.Entries = append(res.Entries, entryForDate(d, start, end, 0))
	}
	return res
}

var (
	icsStartPattern = regexp.MustCompile(`DTSTART(?:;[^:]+)?:([0-9TZ]+)`)
	icsEndPattern   = regexp.MustCompile(`DTEND(?:;[^:]+)?:([0-9TZ]+)`)

	icsDatePattern     = regexp.MustCompile(`^\d{8}$`)
	icsDateTimePattern = regexp.MustCompile(`^\d{8}T\d{6}Z?$`)
)

// ParseICS parses an iCalendar payload into entries. Well-formed calendars
// go through the calendar library; payloads it rejects (fragments, exports
// with mismatched DTSTART/DTEND counts) fall back to a positional regex
// scan that tolerates missing ends. Entries carry times only for date-time
// stamps; date-only stamps become all-day entries.
func ParseICS(raw string) ImportResult {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ImportResult{Entries: []Entry{}}
	}

	if cal, err := ical.ParseCalendar(strings.NewReader(trimmed)); err == nil {
		return parseICSCalendar(cal)
	} else {
		appLog.Debug("ics: calendar parse failed, using positional scan", "err", err)
	}
	return parseICSPositional(trimmed)
}

func parseICSCalendar(cal *ical.Calendar) ImportResult {
	res := ImportResult{Entries: []Entry{}}

	for i, ve := range cal.Events() {
		startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
		if startProp == nil || startProp.Value == "" {
			res.Issues = append(res.Issues, Issue{Line: i + 1, Reason: "event has no DTSTART"})
			continue
		}

		entry, ok := icsEntry(startProp.Value, icsPropValue(ve, ical.ComponentPropertyDtEnd))
		if !ok {
			res.Issues = append(res.Issues, Issue{
				Line:   i + 1,
				Reason: fmt.Sprintf("unsupported DTSTART stamp %q", startProp.Value),
			})
			continue
		}
		res.Entries = append(res.Entries, entry)
	}
	return res
}

func icsPropValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// parseICSPositional pairs the i-th DTSTART with the i-th DTEND. A missing
// or unparseable end leaves the entry without an end time rather than
// dropping it.
func parseICSPositional(raw string) ImportResult {
	res := ImportResult{Entries: []Entry{}}

	starts := icsStartPattern.FindAllStringSubmatch(raw, -1)
	ends := icsEndPattern.FindAllStringSubmatch(raw, -1)

	for i, sm := range starts {
		endValue := ""
		if i < len(ends) {
			endValue = ends[i][1]
		}
		entry, ok := icsEntry(sm[1], endValue)
		if !ok {
			res.Issues = append(res.Issues, Issue{
				Line:   i + 1,
				Reason: fmt.Sprintf("unsupported DTSTART stamp %q", sm[1]),
			})
			continue
		}
		res.Entries = append(res.Entries, entry)
	}
	return res
}

// icsEntry builds one entry from raw DTSTART/DTEND stamp values.
func icsEntry(startValue, endValue string) (Entry, bool) {
	start, startHasTime, ok := parseICSStamp(startValue)
	if !ok {
		return Entry{}, false
	}

	startTime := ""
	if startHasTime {
		startTime = start.Format("15:04")
	}

	endTime := ""
	if end, endHasTime, ok := parseICSStamp(endValue); ok && endHasTime {
		endTime = end.Format("15:04")
	}

	e := entryForDate(start, startTime, endTime, 0)
	return e, true
}

// parseICSStamp parses the two accepted iCalendar stamp forms: date-only
// YYYYMMDD and date-time YYYYMMDDTHHMMSS[Z]. Z-suffixed stamps are UTC and
// are converted to local time for display.
func parseICSStamp(v string) (t time.Time, hasTime bool, ok bool) {
	v = strings.TrimSpace(v)
	switch {
	case icsDatePattern.MatchString(v):
		parsed, err := time.ParseInLocation("20060102", v, time.Local)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, false, true

	case icsDateTimePattern.MatchString(v):
		if strings.HasSuffix(v, "Z") {
			parsed, err := time.Parse("20060102T150405Z", v)
			if err != nil {
				return time.Time{}, false, false
			}
			return parsed.In(time.Local), true, true
		}
		parsed, err := time.ParseInLocation("20060102T150405", v, time.Local)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, true, true

	default:
		return time.Time{}, false, false
	}
}

// ParsePDF extracts the document text via the collaborator and runs it
// through the freeform line parser. Extraction failure is reported as a
// single issue with an empty entry list, matching the fail-soft policy.
func ParsePDF(data []byte, extractor TextExtractor) ImportResult {
	text, err := extractor.Extract(data)
	if err != nil {
		appLog.Error("pdf import: text extraction failed", err, "bytes", len(data))
		return ImportResult{
			Entries: []Entry{},
			Issues:  []Issue{{Reason: fmt.Sprintf("pdf text extraction failed: %v", err)}},
		}
	}
	return parseLines(text)
}

// ParseXLSX reads the first sheet of a workbook and treats each row as one
// freeform line (cells joined by spaces), so spreadsheets exported from
// typical timetable templates import the same way pasted text does.
func ParseXLSX(r io.Reader) ImportResult {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{
			Entries: []Entry{},
			Issues:  []Issue{{Reason: fmt.Sprintf("not a readable xlsx workbook: %v", err)}},
		}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportResult{
			Entries: []Entry{},
			Issues:  []Issue{{Reason: "workbook has no sheets"}},
		}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportResult{
			Entries: []Entry{},
			Issues:  []Issue{{Reason: fmt.Sprintf("failed to read sheet %q: %v", sheets[0], err)}},
		}
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.TrimSpace(strings.Join(row, " ")))
		b.WriteString("\n")
	}
	return parseLines(b.String())
}
