package board

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/dagaz/internal/timescale"
)

const dateLayout = "2006-01-02"

// featureSpec is the YAML shape of one planning item.
type featureSpec struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
	Row       int    `yaml:"row"`
	Accent    string `yaml:"accent"`
	Relations []struct {
		Target string `yaml:"target"`
		Kind   string `yaml:"kind"`
	} `yaml:"relations"`
}

type boardSpec struct {
	Features []featureSpec `yaml:"features"`
}

// FileLayout is a LayoutProvider backed by a YAML board file. Feature date
// spans are resolved to content pixels through the time scale, with the
// minimum-visual-width policy applied.
type FileLayout struct {
	scale     *timescale.Scale
	rowHeight float64
	now       func() time.Time

	features  []FeatureItem
	relations []FeatureRelations
}

// LoadFileLayout reads a YAML board file and positions its features on the
// given scale. rowHeight is the vertical pitch between feature rows.
func LoadFileLayout(path string, scale *timescale.Scale, rowHeight float64) (*FileLayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("board: read %s: %w", path, err)
	}
	var spec boardSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("board: parse %s: %w", path, err)
	}
	fl := &FileLayout{scale: scale, rowHeight: rowHeight, now: time.Now}
	fl.position(spec)
	return fl, nil
}

func (fl *FileLayout) position(spec boardSpec) {
	fl.features = fl.features[:0]
	fl.relations = fl.relations[:0]
	for _, f := range spec.Features {
		if f.ID == "" {
			continue
		}
		left, width := fl.span(f.Start, f.End)
		accent := f.Accent
		if accent == "" {
			accent = "#64748b"
		}
		fl.features = append(fl.features, FeatureItem{
			ID:           f.ID,
			Title:        f.Title,
			LeftContentX: left,
			WidthPx:      width,
			TopPx:        float64(f.Row) * fl.rowHeight,
			AccentColor:  accent,
		})
		if len(f.Relations) == 0 {
			continue
		}
		fr := FeatureRelations{ID: f.ID}
		for _, r := range f.Relations {
			kind := RelationKind(r.Kind)
			switch kind {
			case RelationRelated, RelationPredecessor, RelationSuccessor:
			default:
				kind = RelationRelated
			}
			fr.Relations = append(fr.Relations, Relation{TargetID: r.Target, Kind: kind})
		}
		fl.relations = append(fl.relations, fr)
	}
}

// span resolves a start/end date pair to a left offset and width. Items
// lacking valid dates are positioned at "today" with a synthetic one-month
// span rather than being dropped.
func (fl *FileLayout) span(start, end string) (float64, float64) {
	s, errS := time.Parse(dateLayout, start)
	e, errE := time.Parse(dateLayout, end)
	if errS != nil || errE != nil || e.Before(s) {
		today := fl.now()
		left := fl.scale.DateToContentX(today)
		return left, fl.scale.SpanWidth(fl.scale.MonthWidth())
	}
	left := fl.scale.DateToContentX(s)
	return left, fl.scale.SpanWidth(fl.scale.DateToContentX(e) - left)
}

// Features implements LayoutProvider.
func (fl *FileLayout) Features() []FeatureItem {
	out := make([]FeatureItem, len(fl.features))
	copy(out, fl.features)
	return out
}

// Relations implements LayoutProvider.
func (fl *FileLayout) Relations() []FeatureRelations {
	out := make([]FeatureRelations, len(fl.relations))
	copy(out, fl.relations)
	return out
}

// FileBackground is a BackgroundImageProvider reading a PNG from disk.
type FileBackground struct {
	Path string
}

// BackgroundPNG implements BackgroundImageProvider. A missing or unreadable
// file reports no background; the export layer degrades to a placeholder.
func (b FileBackground) BackgroundPNG() ([]byte, bool) {
	if b.Path == "" {
		return nil, false
	}
	data, err := os.ReadFile(b.Path)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
