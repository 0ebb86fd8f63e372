// Package canvas decides when lesson pages overflow their body region and
// a new page must be appended. It performs no layout of its own: measured
// content heights are reported by an external layout host (see measure) and
// the engine only consumes those numbers. Page count is always derived from
// the page list, never persisted as a separate counter.
package canvas

import (
	"fmt"
	"math"
)

// Margins are the page margins in pixels.
type Margins struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Dimensions is the fixed page geometry.
type Dimensions struct {
	WidthPx  int     `json:"width_px"`
	HeightPx int     `json:"height_px"`
	Margins  Margins `json:"margins"`
}

// Validate checks the geometry invariant: margins are non-negative and
// strictly less than the corresponding dimension.
func (d Dimensions) Validate() error {
	if d.WidthPx <= 0 || d.HeightPx <= 0 {
		return fmt.Errorf("canvas: page dimensions must be positive, got %dx%d", d.WidthPx, d.HeightPx)
	}
	if d.Margins.Top < 0 || d.Margins.Right < 0 || d.Margins.Bottom < 0 || d.Margins.Left < 0 {
		return fmt.Errorf("canvas: margins must be non-negative, got %+v", d.Margins)
	}
	if d.Margins.Top+d.Margins.Bottom >= d.HeightPx {
		return fmt.Errorf("canvas: vertical margins %d+%d consume page height %d",
			d.Margins.Top, d.Margins.Bottom, d.HeightPx)
	}
	if d.Margins.Left+d.Margins.Right >= d.WidthPx {
		return fmt.Errorf("canvas: horizontal margins %d+%d consume page width %d",
			d.Margins.Left, d.Margins.Right, d.WidthPx)
	}
	return nil
}

// BodyHeightPx is the available content height: page height minus the top
// and bottom margins.
func (d Dimensions) BodyHeightPx() int {
	return d.HeightPx - d.Margins.Top - d.Margins.Bottom
}

// BodyWidthPx is the available content width.
func (d Dimensions) BodyWidthPx() int {
	return d.WidthPx - d.Margins.Left - d.Margins.Right
}

// Page is one physical page belonging to a session.
type Page struct {
	ID string `json:"id"`
	// Position is the ordered position within the session. Pages are only
	// ever appended, never inserted mid-sequence.
	Position int `json:"position"`
	// MeasuredHeightPx is the last content height reported by the layout
	// host, nil until a measurement has been recorded.
	MeasuredHeightPx *int `json:"measured_height_px,omitempty"`
	// BlockKeys is the set of content-block keys this page may render.
	BlockKeys []string `json:"block_keys,omitempty"`
}

// Session is the page list for one scheduled session.
type Session struct {
	ID    string `json:"id"`
	Pages []Page `json:"pages"`
}

// OverflowAnalysis is the derived per-page overflow state. It is computed
// fresh from the geometry and last known measurements, never stored.
type OverflowAnalysis struct {
	PageIndex         int  `json:"page_index"`
	Overflowing       bool `json:"overflowing"`
	MeasuredHeightPx  int  `json:"measured_height_px"`
	AvailableHeightPx int  `json:"available_height_px"`
}

// AnalyseSessionOverflow computes the overflow state of every page in the
// session. A page with no recorded measurement is treated as height 0 and
// therefore non-overflowing.
func AnalyseSessionOverflow(s Session, dims Dimensions) []OverflowAnalysis {
	available := dims.BodyHeightPx()

	out := make([]OverflowAnalysis, len(s.Pages))
	for i, p := range s.Pages {
		measured := 0
		if p.MeasuredHeightPx != nil {
			measured = *p.MeasuredHeightPx
		}
		out[i] = OverflowAnalysis{
			PageIndex:         i,
			Overflowing:       measured > available,
			MeasuredHeightPx:  measured,
			AvailableHeightPx: available,
		}
	}
	return out
}

// ShouldAppendPage reports whether the session's last page has overflowed
// and a blank page must follow it. Only the last page can trigger an
// append; earlier pages overflowing (e.g. from a transient measurement
// spike) must not grow the session unboundedly. An empty page list never
// appends.
func ShouldAppendPage(s Session, dims Dimensions) bool {
	if len(s.Pages) == 0 {
		return false
	}
	analyses := AnalyseSessionOverflow(s, dims)
	return analyses[len(analyses)-1].Overflowing
}

// DerivedPageCount is the session's page count; a session always renders at
// least one page.
func DerivedPageCount(s Session) int {
	if len(s.Pages) < 1 {
		return 1
	}
	return len(s.Pages)
}

// AppendPage returns the session with a blank page appended at the next
// position. This is the only forward transition of the per-session state
// machine (stable -> overflowing -> appended -> stable); the engine never
// removes pages.
func AppendPage(s Session, pageID string) Session {
	next := 0
	for _, p := range s.Pages {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	pages := make([]Page, 0, len(s.Pages)+1)
	pages = append(pages, s.Pages...)
	pages = append(pages, Page{ID: pageID, Position: next})
	s.Pages = pages
	return s
}

// RecordMeasurement returns the session with the given page's measured
// content height updated. Unknown page ids leave the session unchanged.
func RecordMeasurement(s Session, pageID string, heightPx int) Session {
	pages := make([]Page, len(s.Pages))
	copy(pages, s.Pages)
	for i := range pages {
		if pages[i].ID == pageID {
			h := heightPx
			pages[i].MeasuredHeightPx = &h
			break
		}
	}
	s.Pages = pages
	return s
}

// NormalizeMeasured converts a height measured in zoomed screen pixels back
// into page space, so persisted geometry stays zoom-independent. A zoom of
// zero or less is treated as 1.
func NormalizeMeasured(screenPx int, zoom float64) int {
	if zoom <= 0 {
		zoom = 1
	}
	return int(math.Round(float64(screenPx) / zoom))
}

// VisibleRange computes the inclusive [first, last] window of page indexes
// that intersect the viewport, padded by overscan pages on both sides.
// Pages are stacked vertically with gapPx between them. An empty page list
// yields first=0, last=-1.
func VisibleRange(scrollTopPx, viewportPx int, dims Dimensions, gapPx, pageCount, overscan int) (first, last int) {
	if pageCount <= 0 {
		return 0, -1
	}
	stride := dims.HeightPx + gapPx
	if stride <= 0 {
		return 0, pageCount - 1
	}
	if scrollTopPx < 0 {
		scrollTopPx = 0
	}
	if overscan < 0 {
		overscan = 0
	}

	first = scrollTopPx/stride - overscan
	if first < 0 {
		first = 0
	}
	last = (scrollTopPx+viewportPx)/stride + overscan
	if last > pageCount-1 {
		last = pageCount - 1
	}
	if last < first {
		last = first
	}
	return first, last
}
