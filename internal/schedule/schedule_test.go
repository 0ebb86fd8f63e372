package schedule

import (
	"testing"
	"time"
)

func TestParseDMY(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string // expected FormatDMY round-trip when ok
		valid bool
	}{
		{name: "padded", in: "02.03.2026", want: "02.03.2026", valid: true},
		{name: "unpadded day and month", in: "2.3.2026", want: "02.03.2026", valid: true},
		{name: "end of year", in: "31.12.2025", want: "31.12.2025", valid: true},
		{name: "not a real day", in: "31.02.2026", valid: false},
		{name: "month out of range", in: "10.13.2026", valid: false},
		{name: "wrong separator", in: "02-03-2026", valid: false},
		{name: "two digit year", in: "02.03.26", valid: false},
		{name: "empty", in: "", valid: false},
		{name: "garbage", in: "hello", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDMY(tt.in)
			if ok != tt.valid {
				t.Fatalf("ParseDMY(%q) ok = %v, want %v", tt.in, ok, tt.valid)
			}
			if !tt.valid {
				return
			}
			if out := FormatDMY(got); out != tt.want {
				t.Errorf("round-trip of %q = %q, want %q", tt.in, out, tt.want)
			}
		})
	}
}

func TestFormatDMYRoundTrip(t *testing.T) {
	// Formatting a date then parsing it back yields the same calendar day.
	for _, d := range []time.Time{
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.Local),
		time.Date(1999, 12, 31, 0, 0, 0, 0, time.Local),
	} {
		parsed, ok := ParseDMY(FormatDMY(d))
		if !ok {
			t.Fatalf("ParseDMY(FormatDMY(%v)) failed", d)
		}
		if !parsed.Equal(d) {
			t.Errorf("round-trip of %v = %v", d, parsed)
		}
	}
}

func TestDayLabel(t *testing.T) {
	// 02.03.2026 is a Monday.
	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	for i, want := range Days {
		got := DayLabel(d.AddDate(0, 0, i))
		if got != want {
			t.Errorf("DayLabel(+%dd) = %q, want %q", i, got, want)
		}
	}
}

func TestParseTimeToMinutes(t *testing.T) {
	tests := []struct {
		in    string
		want  int
		valid bool
	}{
		{in: "00:00", want: 0, valid: true},
		{in: "09:30", want: 570, valid: true},
		{in: "23:59", want: 1439, valid: true},
		{in: "9:05", want: 545, valid: true},
		{in: "24:00", valid: false},
		{in: "12:60", valid: false},
		{in: "12:5", valid: false},
		{in: "", valid: false},
		{in: "noon", valid: false},
	}

	for _, tt := range tests {
		got, ok := ParseTimeToMinutes(tt.in)
		if ok != tt.valid || (ok && got != tt.want) {
			t.Errorf("ParseTimeToMinutes(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.valid)
		}
	}
}

func TestFormatMinutesToTime(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{in: 0, want: "00:00"},
		{in: 570, want: "09:30"},
		{in: 1439, want: "23:59"},
		{in: 1440, want: "00:00"},
		{in: 1500, want: "01:00"},
		{in: -60, want: "23:00"},
	}

	for _, tt := range tests {
		if got := FormatMinutesToTime(tt.in); got != tt.want {
			t.Errorf("FormatMinutesToTime(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureEntryIDs(t *testing.T) {
	in := []Entry{
		{ID: "keep-me", Date: "02.03.2026"},
		{Date: "04.03.2026"},
		{Date: "06.03.2026"},
	}

	out := EnsureEntryIDs(in)

	if out[0].ID != "keep-me" {
		t.Errorf("existing id replaced: %q", out[0].ID)
	}
	if out[1].ID == "" || out[2].ID == "" {
		t.Error("missing ids were not assigned")
	}
	if out[1].ID == out[2].ID {
		t.Error("assigned ids are not unique")
	}
	if in[1].ID != "" {
		t.Error("input slice was mutated")
	}
}
