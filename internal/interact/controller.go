// Package interact implements the pointer/keyboard state machine that drives
// annotation drawing, dragging, resizing and text editing on the board
// overlay. It owns only ephemeral gesture state; every durable change goes
// through the annotation store.
package interact

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/board"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/scene"
	"github.com/starford/dagaz/internal/timescale"
)

// State is the controller's gesture state.
type State string

const (
	StateIdle     State = "idle"
	StateDrawing  State = "drawing"
	StateDragging State = "dragging"
	StateEditing  State = "editing"
)

// DragMode says which part of the hit annotation a drag manipulates.
type DragMode string

const (
	DragMove      DragMode = "move"
	DragResize    DragMode = "resize"
	DragLineStart DragMode = "line-start"
	DragLineEnd   DragMode = "line-end"
)

const (
	// doubleClickWindow is the maximum interval between two pointer-downs on
	// the same note that opens its text editor.
	doubleClickWindow = 400 * time.Millisecond

	handleSize  = 8.0
	lineHitSlop = 6.0

	defaultStroke      = "#64748b"
	defaultStrokeWidth = 2.0
	defaultFontSize    = 13.0
)

// Controller translates a single pointer/keyboard stream into store
// mutations. All pointer positions arrive in viewport coordinates and are
// converted to content coordinates through the scroll provider; vertical
// positions are stored in content space as well.
type Controller struct {
	scale  *timescale.Scale
	store  *annot.Store
	scroll board.ScrollOffsetProvider
	logger *slog.Logger

	now   func() time.Time
	newID func() string

	visible bool

	state State

	// Drawing: anchor and current endpoint, content coordinates.
	drawTool         annot.Tool
	anchorX, anchorY float64
	curX, curY       float64

	// Dragging: incremental deltas from the previous sample, not the anchor,
	// so repeated date round-trips cannot accumulate drift.
	dragID       string
	dragMode     DragMode
	lastX, lastY float64

	editingID string

	lastDownID string
	lastDownAt time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source (double-click detection).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides the annotation id source.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// New creates a Controller over the given store and scroll provider.
func New(scale *timescale.Scale, store *annot.Store, scroll board.ScrollOffsetProvider, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		scale:   scale,
		store:   store,
		scroll:  scroll,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		visible: true,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current gesture state.
func (c *Controller) State() State { return c.state }

// EditingID returns the note id in text-edit mode, or empty.
func (c *Controller) EditingID() string { return c.editingID }

// Show makes the overlay active.
func (c *Controller) Show() { c.visible = true }

// Hide deactivates the overlay and cancels any gesture in progress.
func (c *Controller) Hide() {
	c.cancel()
	c.visible = false
}

// Toggle flips overlay visibility.
func (c *Controller) Toggle() {
	if c.visible {
		c.Hide()
	} else {
		c.Show()
	}
}

// Visible reports whether the overlay is active.
func (c *Controller) Visible() bool { return c.visible }

// coords converts a viewport position to content coordinates using the
// current scroll offsets.
func (c *Controller) coords(vx, vy float64) (float64, float64) {
	left, top := c.scroll.ScrollOffsets()
	return vx + left, vy + top
}

// PointerDown handles a primary-button press at a viewport position.
func (c *Controller) PointerDown(vx, vy float64) {
	if !c.visible {
		return
	}
	cx, cy := c.coords(vx, vy)

	if c.state == StateEditing {
		// Clicking anywhere else commits the edit, then the press is handled
		// normally below.
		c.stopEditing()
	}

	tool := c.store.Tool()
	if tool != annot.ToolSelect {
		c.state = StateDrawing
		c.drawTool = tool
		c.anchorX, c.anchorY = cx, cy
		c.curX, c.curY = cx, cy
		return
	}

	hit, mode := c.hitTest(cx, cy)
	if hit == nil {
		c.store.Deselect()
		c.lastDownID = ""
		return
	}

	// Two presses on the same note within the window open its editor.
	if hit.Kind == models.KindNote && hit.ID == c.lastDownID &&
		c.now().Sub(c.lastDownAt) <= doubleClickWindow {
		c.startEditing(hit.ID)
		return
	}
	c.lastDownID = hit.ID
	c.lastDownAt = c.now()

	c.store.Select(hit.ID)
	c.state = StateDragging
	c.dragID = hit.ID
	c.dragMode = mode
	c.lastX, c.lastY = cx, cy
}

// PointerMove handles pointer motion. During drawing it only updates the
// draft; during dragging it applies the delta since the previous sample.
func (c *Controller) PointerMove(vx, vy float64) {
	if !c.visible {
		return
	}
	cx, cy := c.coords(vx, vy)

	switch c.state {
	case StateDrawing:
		c.curX, c.curY = cx, cy
	case StateDragging:
		dx, dy := cx-c.lastX, cy-c.lastY
		c.lastX, c.lastY = cx, cy
		c.applyDrag(cx, cy, dx, dy)
	}
}

// PointerUp ends the gesture: a draft above the minimum size becomes a store
// entry and gets selected, anything smaller is discarded.
func (c *Controller) PointerUp(vx, vy float64) {
	if !c.visible {
		return
	}
	cx, cy := c.coords(vx, vy)

	switch c.state {
	case StateDrawing:
		c.curX, c.curY = cx, cy
		c.finishDraft()
		c.state = StateIdle
	case StateDragging:
		c.dragID = ""
		c.state = StateIdle
	}
}

// KeyDown handles Delete/Backspace (remove selection) and Escape (cancel
// everything and reset the tool).
func (c *Controller) KeyDown(key string) {
	if !c.visible {
		return
	}
	switch key {
	case "Delete", "Backspace":
		if c.state == StateEditing {
			return
		}
		if id := c.store.SelectedID(); id != "" {
			c.store.Remove(id)
		}
	case "Escape":
		c.cancel()
		c.store.Deselect()
		c.store.SetTool(annot.ToolSelect)
	}
}

// SetText forwards text input to the note being edited.
func (c *Controller) SetText(text string) {
	if c.state != StateEditing || c.editingID == "" {
		return
	}
	c.store.Update(c.editingID, models.Patch{Text: &text})
}

// Blur ends text editing, keeping the text entered so far.
func (c *Controller) Blur() {
	if c.state == StateEditing {
		c.stopEditing()
	}
}

func (c *Controller) startEditing(id string) {
	c.store.Select(id)
	c.editingID = id
	c.state = StateEditing
	c.lastDownID = ""
}

func (c *Controller) stopEditing() {
	c.editingID = ""
	c.state = StateIdle
}

// cancel drops any in-progress gesture without touching the store.
func (c *Controller) cancel() {
	c.dragID = ""
	c.editingID = ""
	c.lastDownID = ""
	c.state = StateIdle
}

// finishDraft turns the completed draw gesture into a store entry when it
// meets the minimum size, discarding it otherwise.
func (c *Controller) finishDraft() {
	switch c.drawTool {
	case annot.ToolNote, annot.ToolRect:
		w := math.Abs(c.curX - c.anchorX)
		h := math.Abs(c.curY - c.anchorY)
		if w < annot.MinSize || h < annot.MinSize {
			return
		}
		left := math.Min(c.anchorX, c.curX)
		top := math.Min(c.anchorY, c.curY)
		a := models.Annotation{
			ID:     c.newID(),
			Date:   c.scale.ContentXToDate(left),
			Y:      top,
			Width:  w,
			Height: h,
			Fill:   annot.RandomPaletteColor(),
			Stroke: defaultStroke,
		}
		if c.drawTool == annot.ToolNote {
			a.Kind = models.KindNote
			a.FontSize = defaultFontSize
		} else {
			a.Kind = models.KindRect
			a.StrokeWidth = defaultStrokeWidth
		}
		c.addAndSelect(a)
	case annot.ToolLine:
		if math.Hypot(c.curX-c.anchorX, c.curY-c.anchorY) < annot.MinSize {
			return
		}
		a := models.Annotation{
			ID:          c.newID(),
			Kind:        models.KindLine,
			Date:        c.scale.ContentXToDate(c.anchorX),
			Y:           c.anchorY,
			Date2:       c.scale.ContentXToDate(c.curX),
			Y2:          c.curY,
			Stroke:      defaultStroke,
			StrokeWidth: defaultStrokeWidth,
			Arrow:       true,
		}
		c.addAndSelect(a)
	}
}

func (c *Controller) addAndSelect(a models.Annotation) {
	if err := c.store.Add(a); err != nil {
		c.logger.Warn("interact: draft rejected", slog.String("error", err.Error()))
		return
	}
	c.store.Select(a.ID)
}

// applyDrag routes pointer motion to the matching store mutator. Resize and
// endpoint drags use the absolute pointer position (drift-free); move uses
// the incremental delta.
func (c *Controller) applyDrag(cx, cy, dx, dy float64) {
	switch c.dragMode {
	case DragMove:
		c.store.Move(c.dragID, dx, dy)
	case DragResize:
		a := c.store.SelectedAnnotation()
		if a == nil || a.ID != c.dragID {
			return
		}
		left := c.scale.DateToContentX(a.Date)
		c.store.Resize(c.dragID, cx-left, cy-a.Y)
	case DragLineStart:
		d := c.scale.ContentXToDate(cx)
		c.store.Update(c.dragID, models.Patch{Date: &d, Y: &cy})
	case DragLineEnd:
		d := c.scale.ContentXToDate(cx)
		c.store.Update(c.dragID, models.Patch{Date2: &d, Y2: &cy})
	}
}

// hitTest finds the topmost annotation under a content position and which
// part of it was hit. Resize and endpoint handles are live only on the
// current selection, matching what the overlay draws.
func (c *Controller) hitTest(cx, cy float64) (*models.Annotation, DragMode) {
	selected := c.store.SelectedID()
	annotations := c.store.Annotations()

	for i := len(annotations) - 1; i >= 0; i-- {
		a := annotations[i]
		if a.IsLine() {
			x1, y1 := c.scale.DateToContentX(a.Date), a.Y
			x2, y2 := c.scale.DateToContentX(a.Date2), a.Y2
			if a.ID == selected {
				if near(cx, cy, x1, y1) {
					return &a, DragLineStart
				}
				if near(cx, cy, x2, y2) {
					return &a, DragLineEnd
				}
			}
			if pointSegmentDist(cx, cy, x1, y1, x2, y2) <= lineHitSlop {
				return &a, DragMove
			}
			continue
		}

		left := c.scale.DateToContentX(a.Date)
		if a.ID == selected && near(cx, cy, left+a.Width, a.Y+a.Height) {
			return &a, DragResize
		}
		if cx >= left && cx <= left+a.Width && cy >= a.Y && cy <= a.Y+a.Height {
			return &a, DragMove
		}
	}
	return nil, DragMove
}

func near(px, py, hx, hy float64) bool {
	return math.Abs(px-hx) <= handleSize && math.Abs(py-hy) <= handleSize
}

func pointSegmentDist(px, py, x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-x1, py-y1)
	}
	t := ((px-x1)*dx + (py-y1)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(x1+t*dx), py-(y1+t*dy))
}

// Scene renders the overlay pass in viewport coordinates: all annotations,
// the selection adornments, and the in-progress draft preview. The render is
// a pure function of store state, gesture state and the current scroll.
func (c *Controller) Scene(width, height float64) *scene.Scene {
	sc := &scene.Scene{Width: width, Height: height}
	if !c.visible {
		return sc
	}
	left, top := c.scroll.ScrollOffsets()
	selected := c.store.SelectedID()

	for _, a := range c.store.Annotations() {
		c.renderAnnotation(sc, a, left, top)
		if a.ID == selected {
			c.renderAdornments(sc, a, left, top)
		}
	}
	c.renderDraft(sc, left, top)
	return sc
}

func (c *Controller) renderAnnotation(sc *scene.Scene, a models.Annotation, scrollLeft, scrollTop float64) {
	switch a.Kind {
	case models.KindNote:
		x := c.scale.DateToContentX(a.Date) - scrollLeft
		y := a.Y - scrollTop
		sc.Add(scene.Rect{
			X: x, Y: y, W: a.Width, H: a.Height,
			RadiusTL: 3, RadiusTR: 3, RadiusBR: 3, RadiusBL: 3,
			Fill: a.Fill, Stroke: a.Stroke, StrokeWidth: 1,
		})
		if a.Text != "" {
			size := a.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			sc.Add(scene.Text{X: x + 6, Y: y + size + 4, Content: a.Text, Size: size, Fill: "#1e293b"})
		}
	case models.KindRect:
		w := a.StrokeWidth
		if w <= 0 {
			w = defaultStrokeWidth
		}
		sc.Add(scene.Rect{
			X: c.scale.DateToContentX(a.Date) - scrollLeft, Y: a.Y - scrollTop,
			W: a.Width, H: a.Height,
			Fill: a.Fill, Stroke: a.Stroke, StrokeWidth: w,
		})
	case models.KindLine:
		w := a.StrokeWidth
		if w <= 0 {
			w = defaultStrokeWidth
		}
		sc.Add(scene.Line{
			X1: c.scale.DateToContentX(a.Date) - scrollLeft, Y1: a.Y - scrollTop,
			X2: c.scale.DateToContentX(a.Date2) - scrollLeft, Y2: a.Y2 - scrollTop,
			Stroke: a.Stroke, Width: w, Arrow: a.Arrow,
		})
	}
}

func (c *Controller) renderAdornments(sc *scene.Scene, a models.Annotation, scrollLeft, scrollTop float64) {
	if a.IsLine() {
		sc.Add(
			handleRect(c.scale.DateToContentX(a.Date)-scrollLeft, a.Y-scrollTop),
			handleRect(c.scale.DateToContentX(a.Date2)-scrollLeft, a.Y2-scrollTop),
		)
		return
	}
	x := c.scale.DateToContentX(a.Date) - scrollLeft
	y := a.Y - scrollTop
	sc.Add(scene.Rect{
		X: x - 2, Y: y - 2, W: a.Width + 4, H: a.Height + 4,
		Stroke: "#2563eb", StrokeWidth: 1, Dash: "4 3", Fill: "none",
	})
	sc.Add(handleRect(x+a.Width, y+a.Height))
}

func handleRect(cx, cy float64) scene.Rect {
	return scene.Rect{
		X: cx - handleSize/2, Y: cy - handleSize/2,
		W: handleSize, H: handleSize,
		Fill: "#ffffff", Stroke: "#2563eb", StrokeWidth: 1,
	}
}

func (c *Controller) renderDraft(sc *scene.Scene, scrollLeft, scrollTop float64) {
	if c.state != StateDrawing {
		return
	}
	switch c.drawTool {
	case annot.ToolNote, annot.ToolRect:
		x := math.Min(c.anchorX, c.curX) - scrollLeft
		y := math.Min(c.anchorY, c.curY) - scrollTop
		sc.Add(scene.Rect{
			X: x, Y: y,
			W: math.Abs(c.curX - c.anchorX), H: math.Abs(c.curY - c.anchorY),
			Stroke: "#2563eb", StrokeWidth: 1, Dash: "4 3", Fill: "none",
		})
	case annot.ToolLine:
		sc.Add(scene.Line{
			X1: c.anchorX - scrollLeft, Y1: c.anchorY - scrollTop,
			X2: c.curX - scrollLeft, Y2: c.curY - scrollTop,
			Stroke: defaultStroke, Width: 1, Dash: "4 3",
		})
	}
}
