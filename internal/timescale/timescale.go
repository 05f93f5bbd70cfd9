// Package timescale implements the bidirectional mapping between calendar
// dates and content-pixel X offsets under a variable pixels-per-month zoom.
package timescale

import (
	"math"
	"sort"
	"time"
)

// Scale pairs a pixel width per month with the ordered list of month-start
// instants currently in view. A lookup cache (month starts in unix-ms and
// days per month) is rebuilt as a whole whenever the month list or the month
// width changes; it is never partially updated or lazily recomputed per call.
type Scale struct {
	monthWidthPx  float64
	boardOffsetPx float64

	months   []time.Time
	startsMs []int64
	days     []int
}

// New creates a Scale. months must be strictly increasing month starts;
// an empty list yields a degenerate but defined scale (every date maps to
// the board offset).
func New(monthWidthPx, boardOffsetPx float64, months []time.Time) *Scale {
	s := &Scale{monthWidthPx: monthWidthPx, boardOffsetPx: boardOffsetPx}
	s.rebuild(months)
	return s
}

// MonthsRange returns n consecutive month starts beginning at the month
// containing start.
func MonthsRange(start time.Time, n int) []time.Time {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, first.AddDate(0, i, 0))
	}
	return out
}

func (s *Scale) rebuild(months []time.Time) {
	s.months = make([]time.Time, len(months))
	copy(s.months, months)
	s.startsMs = make([]int64, len(months))
	s.days = make([]int, len(months))
	for i, m := range months {
		s.startsMs[i] = m.UnixMilli()
		// Day 0 of the next month is the last day of this one.
		s.days[i] = time.Date(m.Year(), m.Month()+1, 0, 0, 0, 0, 0, m.Location()).Day()
	}
}

// SetMonths replaces the month list. The cache is rebuilt only when the list
// identity changed (length or first month start differ), which keeps repeated
// re-renders with the same reference list cheap.
func (s *Scale) SetMonths(months []time.Time) {
	if len(months) == len(s.months) &&
		(len(months) == 0 || months[0].UnixMilli() == s.startsMs[0]) {
		return
	}
	s.rebuild(months)
}

// SetMonthWidth changes the pixels-per-month zoom value.
func (s *Scale) SetMonthWidth(px float64) {
	s.monthWidthPx = px
}

// MonthWidth returns the configured pixels per month.
func (s *Scale) MonthWidth() float64 { return s.monthWidthPx }

// BoardOffset returns the fixed left offset of month index zero.
func (s *Scale) BoardOffset() float64 { return s.boardOffsetPx }

// MonthCount returns the number of configured months.
func (s *Scale) MonthCount() int { return len(s.months) }

// Months returns a copy of the configured month starts.
func (s *Scale) Months() []time.Time {
	out := make([]time.Time, len(s.months))
	copy(out, s.months)
	return out
}

// MonthStart returns the start instant of the month at index i, clamped to
// the configured range.
func (s *Scale) MonthStart(i int) time.Time {
	if len(s.months) == 0 {
		return time.Time{}
	}
	return s.months[s.clampIndex(i)]
}

func (s *Scale) clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(s.months) {
		return len(s.months) - 1
	}
	return i
}

// monthIndex locates i such that months[i] <= t < months[i+1], clamping
// out-of-range dates to the first or last index.
func (s *Scale) monthIndex(t time.Time) int {
	ms := t.UnixMilli()
	// First month start strictly after t, minus one.
	i := sort.Search(len(s.startsMs), func(k int) bool { return s.startsMs[k] > ms }) - 1
	return s.clampIndex(i)
}

// DateToContentX maps a date to its content-pixel X offset, rounded to the
// nearest integer pixel. Out-of-range dates clamp to the edge months; with no
// months configured the raw board offset is returned.
func (s *Scale) DateToContentX(t time.Time) float64 {
	if len(s.months) == 0 {
		return s.boardOffsetPx
	}
	i := s.monthIndex(t)
	days := s.days[i]
	fraction := float64(t.Day()-1) / float64(days)
	if fraction < 0 {
		fraction = 0
	}
	if fraction >= 1 {
		fraction = float64(days-1) / float64(days)
	}
	return math.Round(s.boardOffsetPx + (float64(i)+fraction)*s.monthWidthPx)
}

// ContentXToDate is the inverse mapping: a content-pixel X offset to the
// calendar day it falls on. X values outside the board clamp to the first or
// last configured month. With no months configured the zero time is returned.
func (s *Scale) ContentXToDate(x float64) time.Time {
	if len(s.months) == 0 || s.monthWidthPx <= 0 {
		return time.Time{}
	}
	rel := (x - s.boardOffsetPx) / s.monthWidthPx
	i := s.clampIndex(int(math.Floor(rel)))
	fraction := rel - float64(i)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	days := s.days[i]
	day := int(math.Round(fraction*float64(days))) + 1
	if day < 1 {
		day = 1
	}
	if day > days {
		day = days
	}
	m := s.months[i]
	return time.Date(m.Year(), m.Month(), day, 0, 0, 0, 0, m.Location())
}

// MinSpanWidth is the minimum visual width for span-based feature layout.
func (s *Scale) MinSpanWidth() float64 {
	return math.Max(5, s.monthWidthPx/6)
}

// SpanWidth expands a computed span to the minimum visual width. The left
// edge never shifts; narrow spans grow to the right.
func (s *Scale) SpanWidth(w float64) float64 {
	if min := s.MinSpanWidth(); w < min {
		return min
	}
	return w
}
