package timescale

import (
	"sort"
	"testing"
	"time"
)

func months2025(n int) []time.Time {
	return MonthsRange(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), n)
}

func TestDateToContentXKnownValues(t *testing.T) {
	s := New(120, 0, months2025(3))

	// Jan 16: (0 + 15/31) * 120 ≈ 58.
	got := s.DateToContentX(time.Date(2025, time.January, 16, 0, 0, 0, 0, time.UTC))
	if got != 58 {
		t.Errorf("Jan 16 = %v, want 58", got)
	}

	// Feb 1 is exactly one month width in.
	got = s.DateToContentX(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))
	if got != 120 {
		t.Errorf("Feb 1 = %v, want 120", got)
	}
}

func TestDateToContentXBoardOffset(t *testing.T) {
	s := New(120, 40, months2025(3))
	got := s.DateToContentX(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))
	if got != 160 {
		t.Errorf("Feb 1 with offset 40 = %v, want 160", got)
	}
}

func TestDateToContentXClampsOutOfRange(t *testing.T) {
	s := New(120, 0, months2025(3))

	before := s.DateToContentX(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	if before != 0 {
		t.Errorf("date before range = %v, want 0", before)
	}

	after := s.DateToContentX(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC))
	// Clamped into March (index 2, 31 days, day 15).
	want := float64(240 + 54) // round((2 + 14/31) * 120)
	if after != want {
		t.Errorf("date after range = %v, want %v", after, want)
	}
}

func TestEmptyMonthsDegenerate(t *testing.T) {
	s := New(120, 33, nil)
	if got := s.DateToContentX(time.Now()); got != 33 {
		t.Errorf("empty months = %v, want board offset 33", got)
	}
	if got := s.ContentXToDate(500); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}

func TestRoundTripWithinOneDay(t *testing.T) {
	s := New(120, 0, months2025(12))
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 365; d++ {
		day := start.AddDate(0, 0, d)
		back := s.ContentXToDate(s.DateToContentX(day))
		diff := back.Sub(day)
		if diff < 0 {
			diff = -diff
		}
		if diff > 24*time.Hour {
			t.Fatalf("round trip for %v drifted to %v", day, back)
		}
	}
}

func TestBinarySearchMatchesLinearScan(t *testing.T) {
	s := New(97, 12, months2025(24))
	linearIndex := func(t0 time.Time) int {
		ms := t0.UnixMilli()
		i := 0
		for k, m := range s.months {
			if m.UnixMilli() <= ms {
				i = k
			}
		}
		return i
	}
	probe := time.Date(2024, time.October, 3, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 900; d += 7 {
		t0 := probe.AddDate(0, 0, d)
		if got, want := s.monthIndex(t0), linearIndex(t0); got != want {
			t.Fatalf("monthIndex(%v) = %d, want %d", t0, got, want)
		}
	}
}

func TestMonthIndexIsSorted(t *testing.T) {
	s := New(120, 0, months2025(6))
	if !sort.SliceIsSorted(s.startsMs, func(i, j int) bool { return s.startsMs[i] < s.startsMs[j] }) {
		t.Fatal("month start cache is not sorted")
	}
	if len(s.startsMs) != len(s.days) {
		t.Fatal("cache arrays rebuilt partially")
	}
}

func TestSetMonthsIdentityCheck(t *testing.T) {
	ms := months2025(3)
	s := New(120, 0, ms)
	before := s.Months()

	// Same length and first start: cache kept.
	s.SetMonths(months2025(3))
	if got := s.Months(); !got[2].Equal(before[2]) {
		t.Error("cache rebuilt despite identical identity")
	}

	// Different length: rebuilt.
	s.SetMonths(months2025(6))
	if s.MonthCount() != 6 {
		t.Errorf("MonthCount = %d, want 6", s.MonthCount())
	}
}

func TestMinSpanWidth(t *testing.T) {
	if got := New(120, 0, nil).MinSpanWidth(); got != 20 {
		t.Errorf("MinSpanWidth at 120 = %v, want 20", got)
	}
	if got := New(12, 0, nil).MinSpanWidth(); got != 5 {
		t.Errorf("MinSpanWidth at 12 = %v, want 5 (floor)", got)
	}
	s := New(120, 0, nil)
	if got := s.SpanWidth(3); got != 20 {
		t.Errorf("SpanWidth(3) = %v, want 20", got)
	}
	if got := s.SpanWidth(75); got != 75 {
		t.Errorf("SpanWidth(75) = %v, want 75", got)
	}
}

func TestContentXToDateDayClamp(t *testing.T) {
	s := New(120, 0, months2025(3))
	// Far right edge of February must clamp to Feb 28, not spill over.
	x := s.DateToContentX(time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC))
	got := s.ContentXToDate(x + 1)
	if got.Month() != time.February && got.Month() != time.March {
		t.Fatalf("unexpected month %v", got.Month())
	}
	if got.Month() == time.February && got.Day() > 28 {
		t.Errorf("day %d spills past February", got.Day())
	}
}
