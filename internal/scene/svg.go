package scene

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const arrowMarker = `<defs><marker id="arrow" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="7" markerHeight="7" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="context-stroke"/></marker></defs>`

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// SVG renders the scene to an SVG document string. Rendering is pure and
// deterministic: the same scene always yields the same bytes.
func SVG(s *Scene) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="Helvetica, Arial, sans-serif">`,
		num(s.Width), num(s.Height), num(s.Width), num(s.Height))
	b.WriteByte('\n')

	if hasArrow(s) {
		b.WriteString(arrowMarker)
		b.WriteByte('\n')
	}

	for _, shape := range s.Shapes {
		switch sh := shape.(type) {
		case Rect:
			writeRect(&b, sh)
		case Text:
			writeText(&b, sh)
		case Line:
			writeLine(&b, sh)
		case Path:
			writePath(&b, sh)
		case Image:
			writeImage(&b, sh)
		}
		b.WriteByte('\n')
	}

	b.WriteString("</svg>")
	return b.String()
}

func hasArrow(s *Scene) bool {
	for _, shape := range s.Shapes {
		if l, ok := shape.(Line); ok && l.Arrow {
			return true
		}
	}
	return false
}

func writeRect(b *strings.Builder, r Rect) {
	uniform := r.RadiusTL == r.RadiusTR && r.RadiusTR == r.RadiusBR && r.RadiusBR == r.RadiusBL
	if uniform {
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s"`, num(r.X), num(r.Y), num(r.W), num(r.H))
		if r.RadiusTL > 0 {
			fmt.Fprintf(b, ` rx="%s"`, num(r.RadiusTL))
		}
		writePaint(b, r.Fill, r.Stroke, r.StrokeWidth, r.Dash)
		b.WriteString("/>")
		return
	}
	// Mixed corner radii need a path: clipped cards keep the cut side square.
	fmt.Fprintf(b, `<path d="%s"`, roundedRectPath(r))
	writePaint(b, r.Fill, r.Stroke, r.StrokeWidth, r.Dash)
	b.WriteString("/>")
}

func roundedRectPath(r Rect) string {
	tl, tr := r.RadiusTL, r.RadiusTR
	br, bl := r.RadiusBR, r.RadiusBL
	var p strings.Builder
	fmt.Fprintf(&p, "M %s %s", num(r.X+tl), num(r.Y))
	fmt.Fprintf(&p, " H %s", num(r.X+r.W-tr))
	if tr > 0 {
		fmt.Fprintf(&p, " A %s %s 0 0 1 %s %s", num(tr), num(tr), num(r.X+r.W), num(r.Y+tr))
	}
	fmt.Fprintf(&p, " V %s", num(r.Y+r.H-br))
	if br > 0 {
		fmt.Fprintf(&p, " A %s %s 0 0 1 %s %s", num(br), num(br), num(r.X+r.W-br), num(r.Y+r.H))
	}
	fmt.Fprintf(&p, " H %s", num(r.X+bl))
	if bl > 0 {
		fmt.Fprintf(&p, " A %s %s 0 0 1 %s %s", num(bl), num(bl), num(r.X), num(r.Y+r.H-bl))
	}
	fmt.Fprintf(&p, " V %s", num(r.Y+tl))
	if tl > 0 {
		fmt.Fprintf(&p, " A %s %s 0 0 1 %s %s", num(tl), num(tl), num(r.X+tl), num(r.Y))
	}
	p.WriteString(" Z")
	return p.String()
}

func writeText(b *strings.Builder, t Text) {
	fmt.Fprintf(b, `<text x="%s" y="%s" font-size="%s"`, num(t.X), num(t.Y), num(t.Size))
	if t.Fill != "" {
		fmt.Fprintf(b, ` fill="%s"`, t.Fill)
	}
	if t.Anchor != "" && t.Anchor != "start" {
		fmt.Fprintf(b, ` text-anchor="%s"`, t.Anchor)
	}
	if t.Weight != "" {
		fmt.Fprintf(b, ` font-weight="%s"`, t.Weight)
	}
	b.WriteString(">")
	b.WriteString(textEscaper.Replace(t.Content))
	b.WriteString("</text>")
}

func writeLine(b *strings.Builder, l Line) {
	fmt.Fprintf(b, `<line x1="%s" y1="%s" x2="%s" y2="%s"`, num(l.X1), num(l.Y1), num(l.X2), num(l.Y2))
	writePaint(b, "", l.Stroke, l.Width, l.Dash)
	if l.Arrow {
		b.WriteString(` marker-end="url(#arrow)"`)
	}
	b.WriteString("/>")
}

func writePath(b *strings.Builder, p Path) {
	fmt.Fprintf(b, `<path d="%s"`, p.D)
	fill := p.Fill
	if fill == "" {
		fill = "none"
	}
	writePaint(b, fill, p.Stroke, p.StrokeWidth, p.Dash)
	b.WriteString("/>")
}

func writeImage(b *strings.Builder, img Image) {
	href := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.PNG)
	fmt.Fprintf(b, `<image x="%s" y="%s" width="%s" height="%s" href="%s" preserveAspectRatio="xMidYMid slice"/>`,
		num(img.X), num(img.Y), num(img.W), num(img.H), href)
}

func writePaint(b *strings.Builder, fill, stroke string, width float64, dash string) {
	if fill != "" {
		fmt.Fprintf(b, ` fill="%s"`, fill)
	}
	if stroke != "" {
		fmt.Fprintf(b, ` stroke="%s"`, stroke)
		if width > 0 {
			fmt.Fprintf(b, ` stroke-width="%s"`, num(width))
		}
	}
	if dash != "" {
		fmt.Fprintf(b, ` stroke-dasharray="%s"`, dash)
	}
}

// num formats a coordinate with at most two decimal places and no trailing
// zeros, keeping the SVG output compact and stable.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
