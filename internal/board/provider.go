// Package board defines the collaborator interfaces the annotation and
// export layers consume: feature layout, scroll offsets, and the optional
// background chart image.
package board

// FeatureItem is one positioned planning item, in content coordinates.
type FeatureItem struct {
	ID           string
	Title        string
	LeftContentX float64
	WidthPx      float64
	TopPx        float64
	AccentColor  string
}

// RelationKind distinguishes dependency link styles.
type RelationKind string

// Relation kinds. Related links render dashed; predecessor/successor solid.
const (
	RelationRelated     RelationKind = "related"
	RelationPredecessor RelationKind = "predecessor"
	RelationSuccessor   RelationKind = "successor"
)

// Relation is a directed link from one feature to another.
type Relation struct {
	TargetID string
	Kind     RelationKind
}

// FeatureRelations lists the outgoing relations of one feature.
type FeatureRelations struct {
	ID        string
	Relations []Relation
}

// LayoutProvider supplies positioned features and their relation list for
// the current render.
type LayoutProvider interface {
	Features() []FeatureItem
	Relations() []FeatureRelations
}

// ScrollOffsetProvider reports the current scroll position of the two
// independent scroll containers (horizontal board, vertical canvas).
type ScrollOffsetProvider interface {
	ScrollOffsets() (left, top float64)
}

// BackgroundImageProvider supplies the PNG bytes for the auxiliary chart
// band, if any.
type BackgroundImageProvider interface {
	BackgroundPNG() ([]byte, bool)
}

// StaticScroll is a fixed-offset ScrollOffsetProvider.
type StaticScroll struct {
	Left, Top float64
}

// ScrollOffsets implements ScrollOffsetProvider.
func (s StaticScroll) ScrollOffsets() (float64, float64) {
	return s.Left, s.Top
}
