package canvas

import "testing"

func intPtr(v int) *int { return &v }

func testDims() Dimensions {
	return Dimensions{
		WidthPx:  1000,
		HeightPx: 1000,
		Margins:  Margins{Top: 100, Bottom: 100, Left: 50, Right: 50},
	}
}

func TestDimensionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		dims    Dimensions
		wantErr bool
	}{
		{"valid", testDims(), false},
		{"zero height", Dimensions{WidthPx: 100}, true},
		{"negative margin", Dimensions{WidthPx: 100, HeightPx: 100, Margins: Margins{Top: -1}}, true},
		{"vertical margins consume height", Dimensions{WidthPx: 100, HeightPx: 100, Margins: Margins{Top: 60, Bottom: 40}}, true},
		{"horizontal margins consume width", Dimensions{WidthPx: 100, HeightPx: 100, Margins: Margins{Left: 99, Right: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dims.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBodyHeight(t *testing.T) {
	d := testDims()
	if got := d.BodyHeightPx(); got != 800 {
		t.Errorf("BodyHeightPx() = %d, want 800", got)
	}
	if got := d.BodyWidthPx(); got != 900 {
		t.Errorf("BodyWidthPx() = %d, want 900", got)
	}
}

func TestAnalyseSessionOverflow(t *testing.T) {
	dims := testDims() // body height 800

	s := Session{ID: "s1", Pages: []Page{
		{ID: "p1", Position: 0, MeasuredHeightPx: intPtr(850)},
		{ID: "p2", Position: 1, MeasuredHeightPx: intPtr(800)},
		{ID: "p3", Position: 2},
	}}

	analyses := AnalyseSessionOverflow(s, dims)
	if len(analyses) != 3 {
		t.Fatalf("got %d analyses, want 3", len(analyses))
	}
	if !analyses[0].Overflowing {
		t.Error("850 > 800 should overflow")
	}
	if analyses[1].Overflowing {
		t.Error("800 == 800 is exactly full, not overflowing")
	}
	if analyses[2].Overflowing || analyses[2].MeasuredHeightPx != 0 {
		t.Errorf("unmeasured page should be height 0 and not overflowing: %+v", analyses[2])
	}
	for i, a := range analyses {
		if a.AvailableHeightPx != 800 || a.PageIndex != i {
			t.Errorf("analysis %d = %+v", i, a)
		}
	}
}

func TestShouldAppendPage(t *testing.T) {
	dims := testDims()

	tests := []struct {
		name  string
		pages []Page
		want  bool
	}{
		{"empty session", nil, false},
		{"last page under height", []Page{{ID: "p1", MeasuredHeightPx: intPtr(700)}}, false},
		{"last page overflows", []Page{{ID: "p1", MeasuredHeightPx: intPtr(850)}}, true},
		{
			// Only the last page decides: an earlier overflow must not append.
			"earlier page overflows",
			[]Page{
				{ID: "p1", MeasuredHeightPx: intPtr(900)},
				{ID: "p2", MeasuredHeightPx: intPtr(100)},
			},
			false,
		},
		{"unmeasured last page", []Page{{ID: "p1"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldAppendPage(Session{ID: "s", Pages: tt.pages}, dims)
			if got != tt.want {
				t.Errorf("ShouldAppendPage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDerivedPageCount(t *testing.T) {
	if got := DerivedPageCount(Session{}); got != 1 {
		t.Errorf("empty session page count = %d, want 1", got)
	}
	s := Session{Pages: []Page{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	if got := DerivedPageCount(s); got != 3 {
		t.Errorf("page count = %d, want 3", got)
	}
}

func TestAppendPage(t *testing.T) {
	s := Session{ID: "s", Pages: []Page{{ID: "p1", Position: 0}, {ID: "p2", Position: 4}}}

	out := AppendPage(s, "p3")

	if len(out.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(out.Pages))
	}
	added := out.Pages[2]
	if added.ID != "p3" || added.Position != 5 {
		t.Errorf("appended page = %+v, want id p3 at position 5", added)
	}
	if added.MeasuredHeightPx != nil {
		t.Error("appended page should start unmeasured")
	}
	if len(s.Pages) != 2 {
		t.Error("input session mutated")
	}
}

func TestAppendPageEmptySession(t *testing.T) {
	out := AppendPage(Session{ID: "s"}, "p1")
	if len(out.Pages) != 1 || out.Pages[0].Position != 0 {
		t.Errorf("got %+v, want one page at position 0", out.Pages)
	}
}

func TestRecordMeasurement(t *testing.T) {
	s := Session{ID: "s", Pages: []Page{{ID: "p1"}, {ID: "p2"}}}

	out := RecordMeasurement(s, "p2", 640)

	if out.Pages[1].MeasuredHeightPx == nil || *out.Pages[1].MeasuredHeightPx != 640 {
		t.Errorf("p2 measurement = %v, want 640", out.Pages[1].MeasuredHeightPx)
	}
	if out.Pages[0].MeasuredHeightPx != nil {
		t.Error("p1 should stay unmeasured")
	}
	if s.Pages[1].MeasuredHeightPx != nil {
		t.Error("input session mutated")
	}

	same := RecordMeasurement(s, "missing", 100)
	for _, p := range same.Pages {
		if p.MeasuredHeightPx != nil {
			t.Errorf("unknown page id changed %+v", p)
		}
	}
}

func TestOverflowAppendCycle(t *testing.T) {
	dims := testDims()
	s := Session{ID: "s", Pages: []Page{{ID: "p1", Position: 0}}}

	s = RecordMeasurement(s, "p1", 850)
	if !ShouldAppendPage(s, dims) {
		t.Fatal("850 measured against 800 available should request an append")
	}
	s = AppendPage(s, "p2")
	if DerivedPageCount(s) != 2 {
		t.Fatalf("page count = %d, want 2", DerivedPageCount(s))
	}
	// The new blank page is now last and unmeasured, so the session settles.
	if ShouldAppendPage(s, dims) {
		t.Error("freshly appended page should not trigger another append")
	}
}

func TestNormalizeMeasured(t *testing.T) {
	tests := []struct {
		screenPx int
		zoom     float64
		want     int
	}{
		{850, 1, 850},
		{1700, 2, 850},
		{425, 0.5, 850},
		{851, 2, 426}, // rounds half away from zero
		{850, 0, 850}, // zero zoom treated as 1
		{850, -3, 850},
	}

	for _, tt := range tests {
		if got := NormalizeMeasured(tt.screenPx, tt.zoom); got != tt.want {
			t.Errorf("NormalizeMeasured(%d, %v) = %d, want %d", tt.screenPx, tt.zoom, got, tt.want)
		}
	}
}

func TestVisibleRange(t *testing.T) {
	dims := Dimensions{WidthPx: 800, HeightPx: 1000}
	const gap = 24 // stride 1024

	tests := []struct {
		name                   string
		scrollTop, viewport    int
		pageCount, overscan    int
		wantFirst, wantLast    int
	}{
		{"empty list", 0, 768, 0, 1, 0, -1},
		{"top of document", 0, 768, 10, 0, 0, 0},
		{"top with overscan", 0, 768, 10, 1, 0, 1},
		{"mid document", 5 * 1024, 1024, 10, 1, 4, 7},
		{"clamped at end", 9 * 1024, 2048, 10, 2, 7, 9},
		{"negative scroll clamped", -500, 768, 10, 0, 0, 0},
		{"single page", 0, 768, 1, 3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := VisibleRange(tt.scrollTop, tt.viewport, dims, gap, tt.pageCount, tt.overscan)
			if first != tt.wantFirst || last != tt.wantLast {
				t.Errorf("VisibleRange() = [%d, %d], want [%d, %d]", first, last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}
