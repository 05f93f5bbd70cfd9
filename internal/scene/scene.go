// Package scene defines typed shape descriptors for a render pass. Layout
// code builds a Scene as plain data; a renderer (SVG here) turns it into
// output. This keeps layout logic testable without any canvas or DOM.
package scene

// Shape is a drawable scene element. Shapes draw in slice order: later
// entries draw on top.
type Shape interface {
	isShape()
}

// Rect is an axis-aligned rectangle with independently rounded corners, so
// a card clipped at a viewport edge can stay square on the cut side.
type Rect struct {
	X, Y, W, H  float64
	RadiusTL    float64
	RadiusTR    float64
	RadiusBR    float64
	RadiusBL    float64
	Fill        string
	Stroke      string
	StrokeWidth float64
	Dash        string
}

// Text is a single text run.
type Text struct {
	X, Y    float64
	Content string
	Size    float64
	Fill    string
	Anchor  string // "start" (default), "middle", "end"
	Weight  string // "" or "bold"
}

// Line is a straight segment, optionally arrow-terminated.
type Line struct {
	X1, Y1, X2, Y2 float64
	Stroke         string
	Width          float64
	Dash           string
	Arrow          bool
}

// Path is a raw path in SVG path syntax, used for bezier dependency curves
// and ghost callout pointers.
type Path struct {
	D           string
	Stroke      string
	StrokeWidth float64
	Fill        string
	Dash        string
}

// Image places raster PNG bytes.
type Image struct {
	X, Y, W, H float64
	PNG        []byte
}

func (Rect) isShape()  {}
func (Text) isShape()  {}
func (Line) isShape()  {}
func (Path) isShape()  {}
func (Image) isShape() {}

// Scene is an ordered shape list with fixed output dimensions.
type Scene struct {
	Width  float64
	Height float64
	Shapes []Shape
}

// Add appends shapes in draw order.
func (s *Scene) Add(shapes ...Shape) {
	s.Shapes = append(s.Shapes, shapes...)
}
