// Package annot owns the mutable annotation collection and funnels every
// mutation through one API, the way the rest of the system expects: change,
// schedule a persist, notify subscribers.
package annot

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/timescale"
)

// Tool identifies the active interaction tool.
type Tool string

// The closed tool set. SetTool ignores anything else.
const (
	ToolSelect Tool = "select"
	ToolNote   Tool = "note"
	ToolRect   Tool = "rect"
	ToolLine   Tool = "line"
)

// ValidTool reports whether t is a member of the tool set.
func ValidTool(t Tool) bool {
	switch t {
	case ToolSelect, ToolNote, ToolRect, ToolLine:
		return true
	}
	return false
}

// MinSize is the minimum width and height, in pixels, for a note or rect.
// Drafts smaller than this in either dimension are discarded, and resizes
// clamp to it, so stored dimensions are always strictly positive.
const MinSize = 20

// palette is the fill rotation for freshly drawn notes and rects.
var palette = []string{
	"#fde68a", "#bbf7d0", "#bfdbfe", "#fbcfe8", "#ddd6fe", "#fed7aa",
}

// RandomPaletteColor returns a random fill from the note/rect palette.
func RandomPaletteColor() string {
	return palette[rand.Intn(len(palette))]
}

// EventKind tags a store change notification.
type EventKind string

// Store change kinds.
const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventCleared  EventKind = "cleared"
	EventSelected EventKind = "selected"
	EventTool     EventKind = "tool"
	EventColor    EventKind = "color"
	EventReloaded EventKind = "reloaded"
)

// Event is delivered synchronously to subscribers after each change.
// Annotation is a copy and is nil for collection-level events.
type Event struct {
	Kind       EventKind
	Annotation *models.Annotation
}

// Store owns the annotation collection, the current tool/color, and the
// single selection. All mutation goes through its methods; reads return
// defensive copies. Every mutation schedules a debounced fire-and-forget
// persist and synchronously notifies subscribers.
type Store struct {
	mu       sync.Mutex
	scale    *timescale.Scale
	provider storage.Provider
	logger   *slog.Logger

	annotations []models.Annotation
	selectedID  string
	tool        Tool
	color       string

	subs    map[int]func(Event)
	nextSub int

	debounce     time.Duration
	persistTimer *time.Timer
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDebounce sets the persist debounce interval. Zero or negative makes
// every mutation persist synchronously (useful in tests).
func WithDebounce(d time.Duration) StoreOption {
	return func(s *Store) { s.debounce = d }
}

// NewStore creates a Store and loads the persisted collection. A provider
// load failure is downgraded to an empty collection with a warning: the board
// must stay usable even when persistence is broken.
func NewStore(provider storage.Provider, scale *timescale.Scale, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		scale:    scale,
		provider: provider,
		logger:   logger,
		tool:     ToolSelect,
		color:    palette[0],
		subs:     make(map[int]func(Event)),
		debounce: 150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	loaded, err := provider.Load()
	if err != nil {
		logger.Warn("annot: load failed, starting empty", slog.String("error", err.Error()))
	}
	s.annotations = loaded
	return s
}

// Annotations returns a snapshot copy of the collection in z-order.
func (s *Store) Annotations() []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Annotation, len(s.annotations))
	copy(out, s.annotations)
	return out
}

// SelectedAnnotation returns a copy of the selected annotation, or nil.
func (s *Store) SelectedAnnotation() *models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findLocked(s.selectedID); a != nil {
		cp := *a
		return &cp
	}
	return nil
}

// SelectedID returns the id of the selected annotation, or empty.
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Tool returns the active tool.
func (s *Store) Tool() Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// Color returns the active drawing color.
func (s *Store) Color() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}

// Add appends a new annotation. The id must be unique and the annotation
// structurally valid for its kind.
func (s *Store) Add(a models.Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.findLocked(a.ID) != nil {
		s.mu.Unlock()
		return fmt.Errorf("annot: id %s: %w", a.ID, apperr.ErrAlreadyExists)
	}
	s.annotations = append(s.annotations, a)
	s.schedulePersistLocked()
	s.mu.Unlock()

	cp := a
	s.notify(Event{Kind: EventCreated, Annotation: &cp})
	return nil
}

// Update applies a partial patch and returns a copy of the updated
// annotation, or nil when the id is unknown or the patch would make the
// annotation invalid.
func (s *Store) Update(id string, p models.Patch) *models.Annotation {
	s.mu.Lock()
	a := s.findLocked(id)
	if a == nil {
		s.mu.Unlock()
		return nil
	}
	patched := a.Apply(p)
	if err := patched.Validate(); err != nil {
		s.mu.Unlock()
		return nil
	}
	*a = patched
	s.schedulePersistLocked()
	s.mu.Unlock()

	cp := patched
	s.notify(Event{Kind: EventUpdated, Annotation: &cp})
	return &cp
}

// Remove deletes an annotation and returns a copy of it, or nil when the id
// is unknown. Removing the selected annotation clears the selection.
func (s *Store) Remove(id string) *models.Annotation {
	s.mu.Lock()
	idx := -1
	for i := range s.annotations {
		if s.annotations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.annotations[idx]
	s.annotations = append(s.annotations[:idx], s.annotations[idx+1:]...)
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.schedulePersistLocked()
	s.mu.Unlock()

	cp := removed
	s.notify(Event{Kind: EventDeleted, Annotation: &cp})
	return &cp
}

// Move shifts an annotation by a content-pixel delta. The horizontal delta
// round-trips through the time scale (contentX(date)+dx → new date) so the
// annotation stays date-anchored across zoom changes; lines shift both
// endpoints independently.
func (s *Store) Move(id string, dx, dy float64) *models.Annotation {
	s.mu.Lock()
	a := s.findLocked(id)
	if a == nil {
		s.mu.Unlock()
		return nil
	}
	a.Date = s.scale.ContentXToDate(s.scale.DateToContentX(a.Date) + dx)
	a.Y += dy
	if a.IsLine() {
		a.Date2 = s.scale.ContentXToDate(s.scale.DateToContentX(a.Date2) + dx)
		a.Y2 += dy
	}
	cp := *a
	s.schedulePersistLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Annotation: &cp})
	return &cp
}

// Resize sets a note/rect's dimensions, clamped to MinSize. Lines are not
// resizable (their endpoints are dragged instead).
func (s *Store) Resize(id string, w, h float64) *models.Annotation {
	s.mu.Lock()
	a := s.findLocked(id)
	if a == nil || a.IsLine() {
		s.mu.Unlock()
		return nil
	}
	if w < MinSize {
		w = MinSize
	}
	if h < MinSize {
		h = MinSize
	}
	a.Width, a.Height = w, h
	cp := *a
	s.schedulePersistLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Annotation: &cp})
	return &cp
}

// Select marks an annotation as the single selection. Unknown ids no-op.
func (s *Store) Select(id string) {
	s.mu.Lock()
	a := s.findLocked(id)
	if a == nil || s.selectedID == id {
		s.mu.Unlock()
		return
	}
	s.selectedID = id
	cp := *a
	s.mu.Unlock()

	s.notify(Event{Kind: EventSelected, Annotation: &cp})
}

// Deselect clears the selection.
func (s *Store) Deselect() {
	s.mu.Lock()
	if s.selectedID == "" {
		s.mu.Unlock()
		return
	}
	s.selectedID = ""
	s.mu.Unlock()

	s.notify(Event{Kind: EventSelected})
}

// SetTool switches the active tool. Values outside the tool set are ignored.
func (s *Store) SetTool(t Tool) {
	if !ValidTool(t) {
		return
	}
	s.mu.Lock()
	if s.tool == t {
		s.mu.Unlock()
		return
	}
	s.tool = t
	s.mu.Unlock()

	s.notify(Event{Kind: EventTool})
}

// SetColor sets the active drawing color.
func (s *Store) SetColor(c string) {
	if c == "" {
		return
	}
	s.mu.Lock()
	s.color = c
	s.mu.Unlock()

	s.notify(Event{Kind: EventColor})
}

// Clear removes every annotation and the selection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.annotations = nil
	s.selectedID = ""
	s.schedulePersistLocked()
	s.mu.Unlock()

	s.notify(Event{Kind: EventCleared})
}

// Replace swaps in an externally loaded collection (watcher reload). It does
// not persist: the data just came from the backing store.
func (s *Store) Replace(annotations []models.Annotation) {
	s.mu.Lock()
	s.annotations = make([]models.Annotation, len(annotations))
	copy(s.annotations, annotations)
	if s.findLocked(s.selectedID) == nil {
		s.selectedID = ""
	}
	s.mu.Unlock()

	s.notify(Event{Kind: EventReloaded})
}

// Subscribe registers a change listener and returns its unsubscribe func.
// Listeners run synchronously in the mutating call; a panicking listener is
// isolated and logged without stopping the broadcast.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Flush forces any pending debounced persist to complete synchronously.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.persistTimer != nil {
		s.persistTimer.Stop()
		s.persistTimer = nil
	}
	s.mu.Unlock()
	s.persistNow()
}

func (s *Store) findLocked(id string) *models.Annotation {
	if id == "" {
		return nil
	}
	for i := range s.annotations {
		if s.annotations[i].ID == id {
			return &s.annotations[i]
		}
	}
	return nil
}

func (s *Store) schedulePersistLocked() {
	if s.debounce <= 0 {
		snap := make([]models.Annotation, len(s.annotations))
		copy(snap, s.annotations)
		if err := s.provider.Save(snap); err != nil {
			s.logger.Warn("annot: persist failed", slog.String("error", err.Error()))
		}
		return
	}
	if s.persistTimer == nil {
		s.persistTimer = time.AfterFunc(s.debounce, s.persistNow)
	} else {
		s.persistTimer.Reset(s.debounce)
	}
}

// persistNow snapshots the collection and writes it out. Fire-and-forget:
// a failure is logged, never surfaced to the mutator (last write wins).
func (s *Store) persistNow() {
	s.mu.Lock()
	snap := make([]models.Annotation, len(s.annotations))
	copy(snap, s.annotations)
	s.persistTimer = nil
	s.mu.Unlock()

	if err := s.provider.Save(snap); err != nil {
		s.logger.Warn("annot: persist failed", slog.String("error", err.Error()))
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.safeNotify(fn, ev)
	}
}

func (s *Store) safeNotify(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("annot: subscriber panicked", slog.Any("panic", r))
		}
	}()
	fn(ev)
}
