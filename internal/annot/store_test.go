package annot

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/testutil"
)

func newStore(t *testing.T) (*Store, *testutil.MemProvider) {
	t.Helper()
	mem := &testutil.MemProvider{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStore(mem, testutil.Scale(t), logger, WithDebounce(0))
	return s, mem
}

func TestAddAndSnapshot(t *testing.T) {
	s, mem := newStore(t)
	if err := s.Add(testutil.Note("a", 5)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(testutil.Rect("b", 10)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := s.Annotations()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("snapshot %+v, want a,b in insertion order", got)
	}

	// Mutating the snapshot must not affect the store.
	got[0].Text = "tampered"
	if s.Annotations()[0].Text == "tampered" {
		t.Error("snapshot is not a defensive copy")
	}

	if mem.Saves() != 2 {
		t.Errorf("saves = %d, want 2 (write-through with zero debounce)", mem.Saves())
	}
}

func TestAddRejectsDuplicateAndInvalid(t *testing.T) {
	s, _ := newStore(t)
	if err := s.Add(testutil.Note("a", 5)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(testutil.Note("a", 6)); err == nil {
		t.Error("expected error for duplicate id")
	}
	bad := testutil.Rect("c", 1)
	bad.Width = 0
	if err := s.Add(bad); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestUpdatePatch(t *testing.T) {
	s, _ := newStore(t)
	_ = s.Add(testutil.Note("a", 5))

	text := "revised"
	got := s.Update("a", models.Patch{Text: &text})
	if got == nil || got.Text != "revised" {
		t.Fatalf("Update = %+v", got)
	}
	if s.Annotations()[0].Text != "revised" {
		t.Error("update not applied to collection")
	}

	if got := s.Update("missing", models.Patch{Text: &text}); got != nil {
		t.Errorf("Update of unknown id = %+v, want nil", got)
	}

	// A patch that breaks invariants is rejected wholesale.
	zero := 0.0
	if got := s.Update("a", models.Patch{Width: &zero}); got != nil {
		t.Errorf("invalid patch accepted: %+v", got)
	}
	if s.Annotations()[0].Width != 160 {
		t.Error("rejected patch leaked into collection")
	}
}

func TestRemoveClearsSelection(t *testing.T) {
	s, _ := newStore(t)
	_ = s.Add(testutil.Note("a", 5))
	s.Select("a")

	removed := s.Remove("a")
	if removed == nil || removed.ID != "a" {
		t.Fatalf("Remove = %+v", removed)
	}
	if s.SelectedID() != "" {
		t.Error("selection not cleared by remove")
	}
	if len(s.Annotations()) != 0 {
		t.Error("annotation still present")
	}

	if got := s.Remove("a"); got != nil {
		t.Errorf("second Remove = %+v, want nil", got)
	}
}

func TestMovePreservesPixelDelta(t *testing.T) {
	s, _ := newStore(t)
	scale := testutil.Scale(t)
	a := testutil.Note("a", 10)
	_ = s.Add(a)

	oldX := scale.DateToContentX(a.Date)
	moved := s.Move("a", 39, 12)
	if moved == nil {
		t.Fatal("Move returned nil")
	}
	newX := scale.DateToContentX(moved.Date)
	if diff := newX - oldX - 39; diff < -1 || diff > 1 {
		t.Errorf("pixel delta = %v, want 39 ± 1", newX-oldX)
	}
	if moved.Y != a.Y+12 {
		t.Errorf("Y = %v, want %v", moved.Y, a.Y+12)
	}
}

func TestMoveLineShiftsBothEndpoints(t *testing.T) {
	s, _ := newStore(t)
	scale := testutil.Scale(t)
	l := testutil.Line("l", 5, 20)
	_ = s.Add(l)

	x1, x2 := scale.DateToContentX(l.Date), scale.DateToContentX(l.Date2)
	moved := s.Move("l", 121, -10)
	if moved == nil {
		t.Fatal("Move returned nil")
	}
	if d := scale.DateToContentX(moved.Date) - x1 - 121; d < -1 || d > 1 {
		t.Errorf("endpoint 1 delta off by %v", d)
	}
	if d := scale.DateToContentX(moved.Date2) - x2 - 121; d < -1 || d > 1 {
		t.Errorf("endpoint 2 delta off by %v", d)
	}
	if moved.Y != 30 || moved.Y2 != 130 {
		t.Errorf("Y/Y2 = %v/%v, want 30/130", moved.Y, moved.Y2)
	}
}

func TestResizeClampsToMinSize(t *testing.T) {
	s, _ := newStore(t)
	_ = s.Add(testutil.Rect("r", 3))

	got := s.Resize("r", 5, 400)
	if got == nil {
		t.Fatal("Resize returned nil")
	}
	if got.Width != MinSize || got.Height != 400 {
		t.Errorf("size = %vx%v, want %vx400", got.Width, got.Height, float64(MinSize))
	}

	_ = s.Add(testutil.Line("l", 1, 2))
	if got := s.Resize("l", 100, 100); got != nil {
		t.Error("lines must not be resizable")
	}
}

func TestSetToolIgnoresUnknown(t *testing.T) {
	s, _ := newStore(t)
	s.SetTool(ToolRect)
	if s.Tool() != ToolRect {
		t.Fatalf("tool = %v", s.Tool())
	}
	s.SetTool(Tool("lasso"))
	if s.Tool() != ToolRect {
		t.Errorf("unknown tool changed state to %v", s.Tool())
	}
}

func TestSubscribersIsolatedFromPanic(t *testing.T) {
	s, _ := newStore(t)

	var events []EventKind
	unsub := s.Subscribe(func(Event) { panic("boom") })
	defer unsub()
	s.Subscribe(func(ev Event) { events = append(events, ev.Kind) })

	if err := s.Add(testutil.Note("a", 5)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(events) != 1 || events[0] != EventCreated {
		t.Errorf("events = %v, want [created] despite panicking sibling", events)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s, _ := newStore(t)
	calls := 0
	unsub := s.Subscribe(func(Event) { calls++ })
	_ = s.Add(testutil.Note("a", 5))
	unsub()
	_ = s.Add(testutil.Note("b", 6))
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClear(t *testing.T) {
	s, mem := newStore(t)
	_ = s.Add(testutil.Note("a", 5))
	s.Select("a")
	s.Clear()
	if len(s.Annotations()) != 0 || s.SelectedID() != "" {
		t.Error("clear left state behind")
	}
	if len(mem.Saved) != 0 {
		t.Error("clear not persisted")
	}
}

func TestDebouncedPersistCoalesces(t *testing.T) {
	mem := &testutil.MemProvider{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStore(mem, testutil.Scale(t), logger, WithDebounce(20*time.Millisecond))

	_ = s.Add(testutil.Note("a", 5))
	_ = s.Add(testutil.Note("b", 6))
	_ = s.Add(testutil.Note("c", 7))
	if mem.Saves() != 0 {
		t.Fatalf("saves before debounce window = %d, want 0", mem.Saves())
	}
	s.Flush()
	if mem.Saves() != 1 {
		t.Errorf("saves after flush = %d, want 1 coalesced write", mem.Saves())
	}
	if len(mem.Saved) != 3 {
		t.Errorf("persisted %d annotations, want 3", len(mem.Saved))
	}
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	mem := &testutil.MemProvider{LoadErr: io.ErrUnexpectedEOF}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStore(mem, testutil.Scale(t), logger, WithDebounce(0))
	if len(s.Annotations()) != 0 {
		t.Error("expected empty collection on load failure")
	}
	if err := s.Add(testutil.Note("a", 5)); err != nil {
		t.Errorf("store unusable after load failure: %v", err)
	}
}

func TestReplaceDropsStaleSelection(t *testing.T) {
	s, _ := newStore(t)
	_ = s.Add(testutil.Note("a", 5))
	s.Select("a")
	s.Replace([]models.Annotation{testutil.Note("b", 6)})
	if s.SelectedID() != "" {
		t.Error("stale selection survived replace")
	}
	if got := s.Annotations(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("collection = %+v", got)
	}
}
