// Package export builds the layered board scene for an explicit viewport
// window and rasterizes it to a PNG, independent of any live scroll state.
package export

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/board"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/scene"
	"github.com/starford/dagaz/internal/timescale"
)

// Fixed band heights, top to bottom: auxiliary chart, month header, board.
const (
	ChartBandHeight = 180.0
	HeaderHeight    = 40.0
	BoardTop        = ChartBandHeight + HeaderHeight

	cardHeight   = 36.0
	cardRadius   = 8.0
	accentWidth  = 4.0
	titleSize    = 12.0
	minBoardH    = 400.0
	ghostPadding = 8.0
	// Average glyph width as a fraction of font size, for the character
	// budget estimate used by title truncation and ghost sizing.
	glyphWidthRatio = 0.6
)

// Options selects what goes into an export and for which viewport window.
// Nil scroll overrides mean "use the live scroll provider".
type Options struct {
	Width               float64
	ScrollLeft          *float64
	ScrollTop           *float64
	IncludeAnnotations  bool
	IncludeDependencies bool
}

// Result is a finished export.
type Result struct {
	Bytes             []byte
	SuggestedFilename string
}

// Compositor assembles the layered scene. Scene building is synchronous and
// deterministic; rasterization is the single asynchronous step and the only
// one that can fail.
type Compositor struct {
	scale      *timescale.Scale
	store      *annot.Store
	layout     board.LayoutProvider
	scroll     board.ScrollOffsetProvider
	background board.BackgroundImageProvider
	rasterizer Rasterizer
	now        func() time.Time
}

// New creates a Compositor. layout and background may be nil; the affected
// layers are then skipped or replaced by a placeholder.
func New(scale *timescale.Scale, store *annot.Store, layout board.LayoutProvider,
	scroll board.ScrollOffsetProvider, background board.BackgroundImageProvider,
	rasterizer Rasterizer) *Compositor {
	return &Compositor{
		scale:      scale,
		store:      store,
		layout:     layout,
		scroll:     scroll,
		background: background,
		rasterizer: rasterizer,
		now:        time.Now,
	}
}

// Export builds the scene for opts and rasterizes it. A rasterization
// failure is the only error; everything else degrades inside BuildScene.
func (c *Compositor) Export(ctx context.Context, opts Options) (*Result, error) {
	sc := c.BuildScene(opts)
	png, err := c.rasterizer.Rasterize(ctx, scene.SVG(sc), int(sc.Width), int(sc.Height))
	if err != nil {
		return nil, fmt.Errorf("export: rasterize: %w", err)
	}
	name := fmt.Sprintf("dagaz-board-%s.png", c.now().Format("20060102-150405"))
	return &Result{Bytes: png, SuggestedFilename: name}, nil
}

// BuildScene composes all layers for the requested viewport window.
func (c *Compositor) BuildScene(opts Options) *scene.Scene {
	width := opts.Width
	if width <= 0 {
		width = 1200
	}
	scrollLeft, scrollTop := c.scrollOffsets(opts)
	_ = scrollTop // vertical extent is exported unclipped

	var features []board.FeatureItem
	if c.layout != nil {
		features = c.layout.Features()
	}

	boardH := c.boardExtent(features, opts)
	sc := &scene.Scene{Width: width, Height: BoardTop + boardH}

	c.addBackground(sc, width)
	c.addHeader(sc, width, scrollLeft)
	c.addStripes(sc, width, scrollLeft, boardH)

	if c.layout != nil {
		ghosts := c.addCards(sc, features, width, scrollLeft)
		c.addGhosts(sc, ghosts, width)
		if opts.IncludeDependencies {
			c.addDependencies(sc, features, scrollLeft)
		}
	}

	if opts.IncludeAnnotations {
		c.addAnnotations(sc, scrollLeft)
	}
	return sc
}

func (c *Compositor) scrollOffsets(opts Options) (float64, float64) {
	var left, top float64
	if c.scroll != nil {
		left, top = c.scroll.ScrollOffsets()
	}
	if opts.ScrollLeft != nil {
		left = *opts.ScrollLeft
	}
	if opts.ScrollTop != nil {
		top = *opts.ScrollTop
	}
	return left, top
}

// boardExtent is the full, unclipped vertical extent of the item board.
func (c *Compositor) boardExtent(features []board.FeatureItem, opts Options) float64 {
	extent := minBoardH
	for _, f := range features {
		if bottom := f.TopPx + cardHeight + 16; bottom > extent {
			extent = bottom
		}
	}
	if opts.IncludeAnnotations {
		for _, a := range c.store.Annotations() {
			bottom := a.Y + a.Height + 16
			if a.IsLine() {
				bottom = math.Max(a.Y, a.Y2) + 16
			}
			if bottom > extent {
				extent = bottom
			}
		}
	}
	return extent
}

// Layer 1: auxiliary chart raster, or a solid placeholder band.
func (c *Compositor) addBackground(sc *scene.Scene, width float64) {
	if c.background != nil {
		if png, ok := c.background.BackgroundPNG(); ok {
			sc.Add(scene.Image{X: 0, Y: 0, W: width, H: ChartBandHeight, PNG: png})
			return
		}
	}
	sc.Add(scene.Rect{X: 0, Y: 0, W: width, H: ChartBandHeight, Fill: "#f1f5f9"})
}

// Layer 2: header band with one label per visible month, computed the same
// way the live header does it.
func (c *Compositor) addHeader(sc *scene.Scene, width, scrollLeft float64) {
	sc.Add(scene.Rect{X: 0, Y: ChartBandHeight, W: width, H: HeaderHeight, Fill: "#f8fafc", Stroke: "#e2e8f0", StrokeWidth: 1})

	first, last, ok := c.visibleMonths(width, scrollLeft)
	if !ok {
		return
	}
	mw := c.scale.MonthWidth()
	for i := first; i <= last; i++ {
		x := c.scale.BoardOffset() + float64(i)*mw - scrollLeft
		sc.Add(scene.Text{
			X:       x + mw/2,
			Y:       ChartBandHeight + HeaderHeight/2 + 4,
			Content: c.scale.MonthStart(i).Format("Jan 2006"),
			Size:    titleSize,
			Fill:    "#475569",
			Anchor:  "middle",
		})
	}
}

// Layer 3: alternating month background stripes clipped to the viewport.
func (c *Compositor) addStripes(sc *scene.Scene, width, scrollLeft, boardH float64) {
	first, last, ok := c.visibleMonths(width, scrollLeft)
	if !ok {
		return
	}
	mw := c.scale.MonthWidth()
	for i := first; i <= last; i++ {
		if i%2 == 0 {
			continue
		}
		x := c.scale.BoardOffset() + float64(i)*mw - scrollLeft
		cx, cw := clipSpan(x, mw, width)
		if cw <= 0 {
			continue
		}
		sc.Add(scene.Rect{X: cx, Y: BoardTop, W: cw, H: boardH, Fill: "#f8fafc"})
	}
}

func (c *Compositor) visibleMonths(width, scrollLeft float64) (int, int, bool) {
	n := c.scale.MonthCount()
	if n == 0 || c.scale.MonthWidth() <= 0 {
		return 0, 0, false
	}
	mw := c.scale.MonthWidth()
	first := int(math.Floor(scrollLeft / mw))
	last := int(math.Ceil((scrollLeft + width) / mw))
	if first < 0 {
		first = 0
	}
	if last >= n {
		last = n - 1
	}
	if first > last {
		return 0, 0, false
	}
	return first, last, true
}

// ghost is a pending ghost-title callout for layer 5.
type ghost struct {
	feature  board.FeatureItem
	exportX  float64 // unclipped card left in export coordinates
	offLeft  bool
	offRight bool
}

// Layer 4: one rounded card per visible item, clipped square at the cut
// viewport edge, with an accent bar and a truncated title. Returns the
// features that need a ghost callout.
func (c *Compositor) addCards(sc *scene.Scene, features []board.FeatureItem, width, scrollLeft float64) []ghost {
	var ghosts []ghost
	for _, f := range features {
		x := f.LeftContentX - scrollLeft
		y := BoardTop + f.TopPx

		if x+f.WidthPx <= 0 {
			ghosts = append(ghosts, ghost{feature: f, exportX: x, offLeft: true})
			continue
		}
		if x >= width {
			ghosts = append(ghosts, ghost{feature: f, exportX: x, offRight: true})
			continue
		}

		cx, cw := clipSpan(x, f.WidthPx, width)
		leftClipped := x < 0
		rightClipped := x+f.WidthPx > width

		r := scene.Rect{
			X: cx, Y: y, W: cw, H: cardHeight,
			Fill: "#ffffff", Stroke: "#cbd5e1", StrokeWidth: 1,
		}
		if !leftClipped {
			r.RadiusTL, r.RadiusBL = cardRadius, cardRadius
		}
		if !rightClipped {
			r.RadiusTR, r.RadiusBR = cardRadius, cardRadius
		}
		sc.Add(r)
		sc.Add(scene.Rect{X: cx, Y: y, W: accentWidth, H: cardHeight, Fill: f.AccentColor})

		avail := cw - accentWidth - 2*ghostPadding
		title, fits := fitTitle(f.Title, avail)
		if title != "" {
			sc.Add(scene.Text{
				X:       cx + accentWidth + ghostPadding,
				Y:       y + cardHeight/2 + 4,
				Content: title,
				Size:    titleSize,
				Fill:    "#1e293b",
			})
		}
		if !fits {
			ghosts = append(ghosts, ghost{feature: f, exportX: x})
		}
	}
	return ghosts
}

// Layer 5: ghost-title callouts. On-screen sources get the box to their
// left; off-screen sources pin the box to the nearest visible edge with a
// solid accent border. A small triangular pointer connects box and source.
func (c *Compositor) addGhosts(sc *scene.Scene, ghosts []ghost, width float64) {
	for _, g := range ghosts {
		title := g.feature.Title
		if title == "" {
			continue
		}
		gw := estimateTextWidth(title) + 2*ghostPadding
		gh := cardHeight - 8
		gy := BoardTop + g.feature.TopPx + 4

		var gx float64
		pinned := g.offLeft || g.offRight
		switch {
		case g.offLeft:
			gx = ghostPadding
		case g.offRight:
			gx = width - gw - ghostPadding
		default:
			gx = g.exportX - gw - 12
			if gx < ghostPadding {
				gx = ghostPadding
			}
		}

		box := scene.Rect{
			X: gx, Y: gy, W: gw, H: gh,
			RadiusTL: 4, RadiusTR: 4, RadiusBR: 4, RadiusBL: 4,
			Fill: "#ffffff", Stroke: "#cbd5e1", StrokeWidth: 1,
		}
		if pinned {
			box.Stroke = g.feature.AccentColor
			box.StrokeWidth = 2
		}
		sc.Add(box)
		sc.Add(scene.Text{
			X:       gx + ghostPadding,
			Y:       gy + gh/2 + 4,
			Content: title,
			Size:    titleSize,
			Fill:    "#334155",
		})
		sc.Add(scene.Path{D: ghostPointer(gx, gy, gw, gh, g.offLeft), Fill: "#cbd5e1"})
	}
}

// ghostPointer is the small triangle pointing from the box toward the item.
func ghostPointer(gx, gy, gw, gh float64, pointLeft bool) string {
	midY := gy + gh/2
	if pointLeft {
		return fmt.Sprintf("M %.2f %.2f L %.2f %.2f L %.2f %.2f Z",
			gx, midY-4, gx-6, midY, gx, midY+4)
	}
	return fmt.Sprintf("M %.2f %.2f L %.2f %.2f L %.2f %.2f Z",
		gx+gw, midY-4, gx+gw+6, midY, gx+gw, midY+4)
}

// Layer 6: cubic bezier dependency curves, de-duplicated by unordered pair.
func (c *Compositor) addDependencies(sc *scene.Scene, features []board.FeatureItem, scrollLeft float64) {
	byID := make(map[string]board.FeatureItem, len(features))
	for _, f := range features {
		byID[f.ID] = f
	}

	seen := make(map[string]struct{})
	for _, fr := range c.layout.Relations() {
		src, ok := byID[fr.ID]
		if !ok {
			continue
		}
		for _, rel := range fr.Relations {
			dst, ok := byID[rel.TargetID]
			if !ok {
				continue
			}
			key := pairKey(fr.ID, rel.TargetID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			x1 := src.LeftContentX + src.WidthPx - scrollLeft
			y1 := BoardTop + src.TopPx + cardHeight/2
			x2 := dst.LeftContentX - scrollLeft
			y2 := BoardTop + dst.TopPx + cardHeight/2
			off := math.Max(20, math.Abs(x2-x1)/3)

			p := scene.Path{
				D: fmt.Sprintf("M %.2f %.2f C %.2f %.2f, %.2f %.2f, %.2f %.2f",
					x1, y1, x1+off, y1, x2-off, y2, x2, y2),
				Stroke:      "#94a3b8",
				StrokeWidth: 1.5,
			}
			if rel.Kind == board.RelationRelated {
				p.Dash = "6 4"
			}
			sc.Add(p)
		}
	}
}

// Layer 7: annotations in z-order, converted from content to export
// coordinates: x = contentX(date) - scrollLeft, y shifted by the band offset.
func (c *Compositor) addAnnotations(sc *scene.Scene, scrollLeft float64) {
	for _, a := range c.store.Annotations() {
		switch a.Kind {
		case models.KindNote:
			x := c.scale.DateToContentX(a.Date) - scrollLeft
			y := a.Y + BoardTop
			sc.Add(scene.Rect{
				X: x, Y: y, W: a.Width, H: a.Height,
				RadiusTL: 3, RadiusTR: 3, RadiusBR: 3, RadiusBL: 3,
				Fill: a.Fill, Stroke: a.Stroke, StrokeWidth: 1,
			})
			size := a.FontSize
			if size <= 0 {
				size = titleSize
			}
			for i, line := range noteLines(a.Text, a.Width, size) {
				sc.Add(scene.Text{
					X:       x + 6,
					Y:       y + size + 4 + float64(i)*(size+4),
					Content: line,
					Size:    size,
					Fill:    "#1e293b",
				})
			}
		case models.KindRect:
			x := c.scale.DateToContentX(a.Date) - scrollLeft
			w := a.StrokeWidth
			if w <= 0 {
				w = 2
			}
			sc.Add(scene.Rect{
				X: x, Y: a.Y + BoardTop, W: a.Width, H: a.Height,
				Fill: fillOrNone(a.Fill), Stroke: a.Stroke, StrokeWidth: w,
			})
		case models.KindLine:
			w := a.StrokeWidth
			if w <= 0 {
				w = 2
			}
			sc.Add(scene.Line{
				X1:     c.scale.DateToContentX(a.Date) - scrollLeft,
				Y1:     a.Y + BoardTop,
				X2:     c.scale.DateToContentX(a.Date2) - scrollLeft,
				Y2:     a.Y2 + BoardTop,
				Stroke: a.Stroke,
				Width:  w,
				Arrow:  a.Arrow,
			})
		}
	}
}

func fillOrNone(fill string) string {
	if fill == "" {
		return "none"
	}
	return fill
}

// clipSpan clips [x, x+w) to [0, width), returning the clipped span.
func clipSpan(x, w, width float64) (float64, float64) {
	left := math.Max(x, 0)
	right := math.Min(x+w, width)
	return left, right - left
}

// fitTitle truncates a title to the character budget estimated from the
// available width. fits is false when the title was truncated or suppressed
// entirely, i.e. the item needs a ghost callout.
func fitTitle(title string, availPx float64) (string, bool) {
	if title == "" {
		return "", true
	}
	budget := int(availPx / (titleSize * glyphWidthRatio))
	runes := []rune(title)
	if budget >= len(runes) {
		return title, true
	}
	if budget < 3 {
		return "", false
	}
	return string(runes[:budget-1]) + "…", false
}

// estimateTextWidth estimates a rendered single-line width in pixels.
func estimateTextWidth(text string) float64 {
	return float64(len([]rune(text))) * titleSize * glyphWidthRatio
}

// noteLines wraps note text to the note's width by the same character
// budget estimate used for titles.
func noteLines(text string, widthPx, size float64) []string {
	if text == "" {
		return nil
	}
	budget := int((widthPx - 12) / (size * glyphWidthRatio))
	if budget < 1 {
		budget = 1
	}
	var lines []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := budget
		if n > len(runes) {
			n = len(runes)
		}
		lines = append(lines, string(runes[:n]))
		runes = runes[n:]
	}
	return lines
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}
