package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/board"
	"github.com/starford/dagaz/internal/scene"
	"github.com/starford/dagaz/internal/testutil"
)

type stubLayout struct {
	feats []board.FeatureItem
	rels  []board.FeatureRelations
}

func (s stubLayout) Features() []board.FeatureItem       { return s.feats }
func (s stubLayout) Relations() []board.FeatureRelations { return s.rels }

type stubBackground struct{ png []byte }

func (s stubBackground) BackgroundPNG() ([]byte, bool) { return s.png, s.png != nil }

type stubRasterizer struct {
	svg string
	err error
}

func (r *stubRasterizer) Rasterize(_ context.Context, svg string, _, _ int) ([]byte, error) {
	r.svg = svg
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png-bytes"), nil
}

func newCompositor(t *testing.T, layout board.LayoutProvider, bg board.BackgroundImageProvider) (*Compositor, *annot.Store, *stubRasterizer) {
	t.Helper()
	scale := testutil.Scale(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := annot.NewStore(&testutil.MemProvider{}, scale, logger, annot.WithDebounce(0))
	raster := &stubRasterizer{}
	c := New(scale, store, layout, board.StaticScroll{}, bg, raster)
	return c, store, raster
}

func rectsOf(s *scene.Scene) []scene.Rect {
	var out []scene.Rect
	for _, sh := range s.Shapes {
		if r, ok := sh.(scene.Rect); ok {
			out = append(out, r)
		}
	}
	return out
}

func textsOf(s *scene.Scene) []scene.Text {
	var out []scene.Text
	for _, sh := range s.Shapes {
		if t, ok := sh.(scene.Text); ok {
			out = append(out, t)
		}
	}
	return out
}

func pathsOf(s *scene.Scene) []scene.Path {
	var out []scene.Path
	for _, sh := range s.Shapes {
		if p, ok := sh.(scene.Path); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestBackgroundPlaceholderWhenMissing(t *testing.T) {
	c, _, _ := newCompositor(t, nil, nil)
	sc := c.BuildScene(Options{Width: 800})

	first, ok := sc.Shapes[0].(scene.Rect)
	if !ok {
		t.Fatalf("first shape = %T, want placeholder rect", sc.Shapes[0])
	}
	if first.H != ChartBandHeight || first.Fill != "#f1f5f9" {
		t.Errorf("placeholder = %+v", first)
	}
}

func TestBackgroundImageWhenPresent(t *testing.T) {
	c, _, _ := newCompositor(t, nil, stubBackground{png: []byte{1, 2, 3}})
	sc := c.BuildScene(Options{Width: 800})

	img, ok := sc.Shapes[0].(scene.Image)
	if !ok {
		t.Fatalf("first shape = %T, want image", sc.Shapes[0])
	}
	if img.H != ChartBandHeight || len(img.PNG) != 3 {
		t.Errorf("background image = %+v", img)
	}
}

func TestHeaderLabelsCoverVisibleMonths(t *testing.T) {
	c, _, _ := newCompositor(t, nil, nil)
	left := 240.0
	sc := c.BuildScene(Options{Width: 480, ScrollLeft: &left})

	var labels []string
	for _, txt := range textsOf(sc) {
		if txt.Anchor == "middle" {
			labels = append(labels, txt.Content)
		}
	}
	// floor(240/120)=2 through ceil(720/120)=6: March through July.
	want := []string{"Mar 2025", "Apr 2025", "May 2025", "Jun 2025", "Jul 2025"}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for i, l := range labels {
		if l != want[i] {
			t.Errorf("label[%d] = %q, want %q", i, l, want[i])
		}
	}
}

func TestSceneHeightCoversFullBoardExtent(t *testing.T) {
	c, _, _ := newCompositor(t, nil, nil)
	sc := c.BuildScene(Options{Width: 800})
	if sc.Height != BoardTop+400 {
		t.Errorf("height = %v, want %v", sc.Height, BoardTop+400)
	}
}

func TestCardClippedAtLeftEdgeKeepsCutSideSquare(t *testing.T) {
	layout := stubLayout{feats: []board.FeatureItem{
		{ID: "f1", Title: "Go", LeftContentX: 200, WidthPx: 120, TopPx: 0, AccentColor: "#ef4444"},
	}}
	c, _, _ := newCompositor(t, layout, nil)
	left := 240.0
	sc := c.BuildScene(Options{Width: 800, ScrollLeft: &left})

	var card *scene.Rect
	for _, r := range rectsOf(sc) {
		if r.Fill == "#ffffff" && r.H == cardHeight {
			card = &r
			break
		}
	}
	if card == nil {
		t.Fatal("no card rect found")
	}
	if card.X != 0 || card.W != 80 {
		t.Errorf("clipped span = (%v, %v), want (0, 80)", card.X, card.W)
	}
	if card.RadiusTL != 0 || card.RadiusBL != 0 {
		t.Error("cut left side should be square")
	}
	if card.RadiusTR != cardRadius || card.RadiusBR != cardRadius {
		t.Error("free right side should stay rounded")
	}
}

func TestCardStraddlingRightEdgeClipsSquare(t *testing.T) {
	layout := stubLayout{feats: []board.FeatureItem{
		{ID: "f1", Title: "Go", LeftContentX: 760, WidthPx: 120, TopPx: 0, AccentColor: "#ef4444"},
	}}
	c, _, _ := newCompositor(t, layout, nil)
	sc := c.BuildScene(Options{Width: 800})

	var card *scene.Rect
	for _, r := range rectsOf(sc) {
		if r.Fill == "#ffffff" && r.H == cardHeight {
			card = &r
			break
		}
	}
	if card == nil {
		t.Fatal("no card rect found")
	}
	if card.X != 760 || card.W != 40 {
		t.Errorf("clipped span = (%v, %v), want (760, 40)", card.X, card.W)
	}
	if card.RadiusTR != 0 || card.RadiusBR != 0 {
		t.Error("cut right side should be square")
	}
	if card.RadiusTL != cardRadius || card.RadiusBL != cardRadius {
		t.Error("free left side should stay rounded")
	}
}

func TestExportZOrderFollowsInsertionOrder(t *testing.T) {
	c, store, _ := newCompositor(t, nil, nil)
	if err := store.Add(testutil.Note("a", 10)); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(testutil.Rect("b", 10)); err != nil {
		t.Fatal(err)
	}
	sc := c.BuildScene(Options{Width: 800, IncludeAnnotations: true})

	noteIdx, rectIdx := -1, -1
	for i, sh := range sc.Shapes {
		r, ok := sh.(scene.Rect)
		if !ok {
			continue
		}
		switch r.Fill {
		case "#fde68a":
			noteIdx = i
		case "#bfdbfe":
			rectIdx = i
		}
	}
	if noteIdx < 0 || rectIdx < 0 {
		t.Fatalf("annotations not rendered (note=%d rect=%d)", noteIdx, rectIdx)
	}
	if noteIdx > rectIdx {
		t.Error("earlier annotation draws above later one")
	}
}

func TestOffscreenItemGetsEdgePinnedGhost(t *testing.T) {
	layout := stubLayout{feats: []board.FeatureItem{
		{ID: "f1", Title: "Hidden item", LeftContentX: 0, WidthPx: 100, TopPx: 0, AccentColor: "#ef4444"},
	}}
	c, _, _ := newCompositor(t, layout, nil)
	left := 240.0
	sc := c.BuildScene(Options{Width: 800, ScrollLeft: &left})

	var ghostBox *scene.Rect
	for _, r := range rectsOf(sc) {
		if r.Stroke == "#ef4444" {
			ghostBox = &r
			break
		}
	}
	if ghostBox == nil {
		t.Fatal("no edge-pinned ghost with accent border")
	}
	if ghostBox.X != ghostPadding {
		t.Errorf("ghost x = %v, want pinned at left padding", ghostBox.X)
	}
	if ghostBox.StrokeWidth != 2 {
		t.Errorf("pinned ghost stroke width = %v, want 2", ghostBox.StrokeWidth)
	}

	found := false
	for _, txt := range textsOf(sc) {
		if txt.Content == "Hidden item" {
			found = true
		}
	}
	if !found {
		t.Error("ghost title missing")
	}
}

func TestNarrowCardGetsGhostWithFullTitle(t *testing.T) {
	layout := stubLayout{feats: []board.FeatureItem{
		{ID: "f1", Title: "A rather long feature title", LeftContentX: 300, WidthPx: 40, TopPx: 44, AccentColor: "#3b82f6"},
	}}
	c, _, _ := newCompositor(t, layout, nil)
	sc := c.BuildScene(Options{Width: 800})

	full := 0
	for _, txt := range textsOf(sc) {
		if txt.Content == "A rather long feature title" {
			full++
		}
	}
	if full != 1 {
		t.Errorf("full-title ghost count = %d, want 1", full)
	}
}

func TestDependenciesDeduplicatedByPair(t *testing.T) {
	layout := stubLayout{
		feats: []board.FeatureItem{
			{ID: "f1", LeftContentX: 100, WidthPx: 100, TopPx: 0},
			{ID: "f2", LeftContentX: 400, WidthPx: 100, TopPx: 44},
		},
		rels: []board.FeatureRelations{
			{ID: "f1", Relations: []board.Relation{{TargetID: "f2", Kind: board.RelationPredecessor}}},
			{ID: "f2", Relations: []board.Relation{{TargetID: "f1", Kind: board.RelationSuccessor}}},
		},
	}
	c, _, _ := newCompositor(t, layout, nil)
	sc := c.BuildScene(Options{Width: 800, IncludeDependencies: true})

	curves := 0
	for _, p := range pathsOf(sc) {
		if strings.Contains(p.D, " C ") {
			curves++
		}
	}
	if curves != 1 {
		t.Errorf("dependency curves = %d, want 1 after dedup", curves)
	}
}

func TestRelatedDependencyIsDashed(t *testing.T) {
	layout := stubLayout{
		feats: []board.FeatureItem{
			{ID: "f1", LeftContentX: 100, WidthPx: 100, TopPx: 0},
			{ID: "f2", LeftContentX: 400, WidthPx: 100, TopPx: 44},
		},
		rels: []board.FeatureRelations{
			{ID: "f1", Relations: []board.Relation{{TargetID: "f2", Kind: board.RelationRelated}}},
		},
	}
	c, _, _ := newCompositor(t, layout, nil)
	sc := c.BuildScene(Options{Width: 800, IncludeDependencies: true})

	for _, p := range pathsOf(sc) {
		if strings.Contains(p.D, " C ") {
			if p.Dash == "" {
				t.Error("related dependency should be dashed")
			}
			return
		}
	}
	t.Fatal("no dependency curve emitted")
}

func TestAnnotationsTranslateToExportCoordinates(t *testing.T) {
	c, store, _ := newCompositor(t, nil, nil)
	if err := store.Add(testutil.Note("n1", 16)); err != nil {
		t.Fatal(err)
	}
	left := 240.0
	sc := c.BuildScene(Options{Width: 800, ScrollLeft: &left, IncludeAnnotations: true})

	// March 16 at 120 px/month maps to content x 298; minus scroll 240.
	var noteRect *scene.Rect
	for _, r := range rectsOf(sc) {
		if r.Fill == "#fde68a" {
			noteRect = &r
			break
		}
	}
	if noteRect == nil {
		t.Fatal("note rect not rendered")
	}
	if noteRect.X != 58 {
		t.Errorf("note x = %v, want 58", noteRect.X)
	}
	if noteRect.Y != 50+BoardTop {
		t.Errorf("note y = %v, want band-shifted %v", noteRect.Y, 50+BoardTop)
	}
}

func TestAnnotationsSkippedWhenExcluded(t *testing.T) {
	c, store, _ := newCompositor(t, nil, nil)
	if err := store.Add(testutil.Note("n1", 16)); err != nil {
		t.Fatal(err)
	}
	sc := c.BuildScene(Options{Width: 800})
	for _, r := range rectsOf(sc) {
		if r.Fill == "#fde68a" {
			t.Fatal("annotation rendered despite IncludeAnnotations=false")
		}
	}
}

func TestExportPropagatesRasterizerError(t *testing.T) {
	c, _, raster := newCompositor(t, nil, nil)
	raster.err = errors.New("chrome exploded")
	if _, err := c.Export(context.Background(), Options{Width: 800}); err == nil {
		t.Fatal("expected rasterizer error")
	}
}

func TestExportReturnsBytesAndFilename(t *testing.T) {
	c, _, raster := newCompositor(t, nil, nil)
	res, err := c.Export(context.Background(), Options{Width: 800})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(res.Bytes) != "png-bytes" {
		t.Errorf("bytes = %q", res.Bytes)
	}
	if !strings.HasPrefix(res.SuggestedFilename, "dagaz-board-") || !strings.HasSuffix(res.SuggestedFilename, ".png") {
		t.Errorf("filename = %q", res.SuggestedFilename)
	}
	if !strings.HasPrefix(raster.svg, "<svg") {
		t.Error("rasterizer did not receive an SVG document")
	}
}

func TestFitTitle(t *testing.T) {
	// 72 px at 7.2 px/char is a 10 character budget.
	if got, fits := fitTitle("Launch", 72); got != "Launch" || !fits {
		t.Errorf("fitTitle short = (%q, %v)", got, fits)
	}
	if got, fits := fitTitle("A very long feature title", 72); got != "A very lo…" || fits {
		t.Errorf("fitTitle truncated = (%q, %v)", got, fits)
	}
	if got, fits := fitTitle("Anything", 10); got != "" || fits {
		t.Errorf("fitTitle tiny = (%q, %v)", got, fits)
	}
}
