package scene

import (
	"strings"
	"testing"
)

func TestSVGDocumentShell(t *testing.T) {
	s := &Scene{Width: 800, Height: 600}
	out := SVG(s)
	if !strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600"`) {
		t.Errorf("unexpected document start: %s", out[:60])
	}
	if !strings.HasSuffix(out, "</svg>") {
		t.Error("document not closed")
	}
}

func TestShapesRenderInOrder(t *testing.T) {
	s := &Scene{Width: 100, Height: 100}
	s.Add(
		Rect{X: 0, Y: 0, W: 50, H: 50, Fill: "#111111"},
		Rect{X: 10, Y: 10, W: 50, H: 50, Fill: "#222222"},
	)
	out := SVG(s)
	first := strings.Index(out, "#111111")
	second := strings.Index(out, "#222222")
	if first < 0 || second < 0 || first > second {
		t.Errorf("z-order lost: first=%d second=%d", first, second)
	}
}

func TestUniformRectUsesRectElement(t *testing.T) {
	s := &Scene{Width: 100, Height: 100}
	s.Add(Rect{X: 1, Y: 2, W: 30, H: 20, RadiusTL: 6, RadiusTR: 6, RadiusBR: 6, RadiusBL: 6, Fill: "#fff"})
	out := SVG(s)
	if !strings.Contains(out, `<rect x="1" y="2" width="30" height="20" rx="6"`) {
		t.Errorf("expected rect element, got: %s", out)
	}
}

func TestMixedRadiiRectUsesPath(t *testing.T) {
	s := &Scene{Width: 100, Height: 100}
	s.Add(Rect{X: 0, Y: 0, W: 40, H: 20, RadiusTL: 6, RadiusBL: 6, Fill: "#fff"})
	out := SVG(s)
	if strings.Contains(out, "<rect") {
		t.Error("mixed-radius rect should render as a path")
	}
	if !strings.Contains(out, "<path") {
		t.Error("no path emitted")
	}
}

func TestTextIsEscaped(t *testing.T) {
	s := &Scene{Width: 100, Height: 100}
	s.Add(Text{X: 5, Y: 10, Size: 12, Content: `a < b & "c"`})
	out := SVG(s)
	if !strings.Contains(out, "a &lt; b &amp; &quot;c&quot;") {
		t.Errorf("text not escaped: %s", out)
	}
}

func TestArrowMarkerOnlyWhenNeeded(t *testing.T) {
	plain := &Scene{Width: 10, Height: 10}
	plain.Add(Line{X1: 0, Y1: 0, X2: 5, Y2: 5, Stroke: "#000", Width: 1})
	if strings.Contains(SVG(plain), "<marker") {
		t.Error("marker def emitted without any arrow line")
	}

	arrow := &Scene{Width: 10, Height: 10}
	arrow.Add(Line{X1: 0, Y1: 0, X2: 5, Y2: 5, Stroke: "#000", Width: 1, Arrow: true})
	out := SVG(arrow)
	if !strings.Contains(out, "<marker") || !strings.Contains(out, `marker-end="url(#arrow)"`) {
		t.Errorf("arrow line missing marker wiring: %s", out)
	}
}

func TestDashedLine(t *testing.T) {
	s := &Scene{Width: 10, Height: 10}
	s.Add(Line{X1: 0, Y1: 0, X2: 9, Y2: 0, Stroke: "#000", Width: 2, Dash: "6 3"})
	if !strings.Contains(SVG(s), `stroke-dasharray="6 3"`) {
		t.Error("dash array not rendered")
	}
}

func TestImageEmbedsDataURI(t *testing.T) {
	s := &Scene{Width: 10, Height: 10}
	s.Add(Image{X: 0, Y: 0, W: 10, H: 10, PNG: []byte{0x89, 0x50, 0x4e, 0x47}})
	if !strings.Contains(SVG(s), `href="data:image/png;base64,`) {
		t.Error("image not embedded as data URI")
	}
}

func TestNumTrimsTrailingZeros(t *testing.T) {
	if got := num(120.0); got != "120" {
		t.Errorf("num(120.0) = %q", got)
	}
	if got := num(58.336); got != "58.34" {
		t.Errorf("num(58.336) = %q", got)
	}
}
