package schedule

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestParseImportedFreeformLines(t *testing.T) {
	res := ParseImported("12.03.2026 09:00-10:30")

	if len(res.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 (issues: %+v)", len(res.Entries), res.Issues)
	}
	e := res.Entries[0]
	if e.Date != "12.03.2026" || e.StartTime != "09:00" || e.EndTime != "10:30" || e.Day != "Thu" {
		t.Errorf("entry = %+v, want 12.03.2026 Thu 09:00–10:30", e)
	}
	if e.ID == "" {
		t.Error("entry id not assigned")
	}
}

func TestParseImportedLineVariants(t *testing.T) {
	raw := strings.Join([]string{
		"Kickoff 12.03.2026 09:00-10:30 room A",
		"13.03.2026 10:00 – 11:00",
		"17.03.2026",
		"no date on this line",
		"",
		"31.02.2026 09:00-10:00",
	}, "\n")

	res := ParseImported(raw)

	if len(res.Entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(res.Entries), res.Entries)
	}
	if res.Entries[1].StartTime != "10:00" || res.Entries[1].EndTime != "11:00" {
		t.Errorf("en-dash range not parsed: %+v", res.Entries[1])
	}
	if res.Entries[2].StartTime != "" || res.Entries[2].EndTime != "" {
		t.Errorf("date-only line gained times: %+v", res.Entries[2])
	}
	// The dateless line and the impossible calendar day are reported.
	if len(res.Issues) != 2 {
		t.Errorf("got %d issues, want 2: %+v", len(res.Issues), res.Issues)
	}
}

func TestParseImportedJSON(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantEntries int
		wantIssues  int
	}{
		{
			name:        "array with long keys",
			raw:         `[{"date":"12.03.2026","start_time":"09:00","end_time":"10:30"}]`,
			wantEntries: 1,
		},
		{
			name:        "array with short keys",
			raw:         `[{"date":"12.03.2026","start":"09:00","end":"10:30"}]`,
			wantEntries: 1,
		},
		{
			name:        "entries envelope",
			raw:         `{"entries":[{"date":"12.03.2026"},{"date":"13.03.2026"}]}`,
			wantEntries: 2,
		},
		{
			name:        "bad record skipped with issue",
			raw:         `[{"date":"12.03.2026"},{"date":"not a date"}]`,
			wantEntries: 1,
			wantIssues:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseImported(tt.raw)
			if len(res.Entries) != tt.wantEntries {
				t.Errorf("got %d entries, want %d: %+v", len(res.Entries), tt.wantEntries, res)
			}
			if len(res.Issues) != tt.wantIssues {
				t.Errorf("got %d issues, want %d: %+v", len(res.Issues), tt.wantIssues, res.Issues)
			}
			if tt.wantEntries > 0 && res.Entries[0].Day != "Thu" {
				t.Errorf("day label = %q, want Thu", res.Entries[0].Day)
			}
		})
	}
}

func TestParseImportedMalformedJSONFallsThrough(t *testing.T) {
	// Looks like JSON, is not; the line parser still finds the date and the
	// failure is reported as an issue.
	res := ParseImported(`{"entries": [ 12.03.2026 09:00-10:30`)

	if len(res.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 via line fallback: %+v", len(res.Entries), res)
	}
	if len(res.Issues) == 0 {
		t.Error("JSON failure not reported as issue")
	}
}

func TestParseImportedEmpty(t *testing.T) {
	res := ParseImported("   \n  ")
	if res.Entries == nil || len(res.Entries) != 0 || len(res.Issues) != 0 {
		t.Errorf("empty input should yield empty result, got %+v", res)
	}
}

func TestParseICSCalendar(t *testing.T) {
	raw := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//coursebuilder//test//EN",
		"BEGIN:VEVENT",
		"UID:one@test",
		"DTSTART:20260312T090000",
		"DTEND:20260312T103000",
		"SUMMARY:Session 1",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:two@test",
		"DTSTART;VALUE=DATE:20260317",
		"SUMMARY:All day",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	res := ParseICS(raw)

	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(res.Entries), res)
	}
	first := res.Entries[0]
	if first.Date != "12.03.2026" || first.Day != "Thu" {
		t.Errorf("first entry = %+v, want 12.03.2026 Thu", first)
	}
	if first.StartTime != "09:00" || first.EndTime != "10:30" {
		t.Errorf("first entry times = %s–%s, want 09:00–10:30", first.StartTime, first.EndTime)
	}
	second := res.Entries[1]
	if second.Date != "17.03.2026" || second.StartTime != "" || second.EndTime != "" {
		t.Errorf("date-only event = %+v, want 17.03.2026 with no times", second)
	}
}

func TestParseICSPositionalFallback(t *testing.T) {
	// A bare fragment is not a valid calendar, so the positional scan takes
	// over. The second DTSTART has no matching DTEND; its entry still comes
	// through without an end time.
	raw := strings.Join([]string{
		"DTSTART:20260312T090000",
		"DTEND:20260312T103000",
		"DTSTART:20260313T140000",
	}, "\n")

	res := ParseICS(raw)

	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(res.Entries), res)
	}
	if res.Entries[0].EndTime != "10:30" {
		t.Errorf("paired end time = %q, want 10:30", res.Entries[0].EndTime)
	}
	if res.Entries[1].StartTime != "14:00" || res.Entries[1].EndTime != "" {
		t.Errorf("unpaired entry = %+v, want 14:00 start and empty end", res.Entries[1])
	}
}

func TestParseICSUTCStamp(t *testing.T) {
	res := ParseICS("DTSTART:20260312T090000Z")

	if len(res.Entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(res.Entries), res)
	}

	// The expected rendering depends on the host zone: the stamp is UTC and
	// is displayed in local time.
	utc, err := time.Parse("20060102T150405Z", "20260312T090000Z")
	if err != nil {
		t.Fatal(err)
	}
	local := utc.In(time.Local)
	if got, want := res.Entries[0].Date, FormatDMY(local); got != want {
		t.Errorf("date = %s, want %s", got, want)
	}
	if got, want := res.Entries[0].StartTime, local.Format("15:04"); got != want {
		t.Errorf("start time = %s, want %s", got, want)
	}
}

// stubExtractor implements TextExtractor for tests.
type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract([]byte) (string, error) { return s.text, s.err }

func TestParsePDF(t *testing.T) {
	res := ParsePDF([]byte("%PDF-"), stubExtractor{text: "12.03.2026 09:00-10:30\n13.03.2026"})

	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(res.Entries), res)
	}
	if res.Entries[0].StartTime != "09:00" {
		t.Errorf("first entry start = %q, want 09:00", res.Entries[0].StartTime)
	}
}

func TestParsePDFExtractionFailure(t *testing.T) {
	res := ParsePDF(nil, stubExtractor{err: errors.New("boom")})

	if len(res.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(res.Entries))
	}
	if len(res.Issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(res.Issues))
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Date")
	_ = f.SetCellValue(sheet, "B1", "Time")
	_ = f.SetCellValue(sheet, "A2", "12.03.2026")
	_ = f.SetCellValue(sheet, "B2", "09:00-10:30")
	_ = f.SetCellValue(sheet, "A3", "13.03.2026")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	res := ParseXLSX(buf)

	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(res.Entries), res)
	}
	if res.Entries[0].Date != "12.03.2026" || res.Entries[0].EndTime != "10:30" {
		t.Errorf("first row = %+v, want 12.03.2026 ending 10:30", res.Entries[0])
	}
}

func TestParseXLSXNotAWorkbook(t *testing.T) {
	res := ParseXLSX(strings.NewReader("definitely not a zip"))

	if len(res.Entries) != 0 || len(res.Issues) != 1 {
		t.Errorf("got %+v, want no entries and one issue", res)
	}
}
