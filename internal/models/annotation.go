// Package models defines the domain types for Dagaz.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind discriminates the annotation variants.
type Kind string

// Annotation kinds.
const (
	KindNote Kind = "note"
	KindRect Kind = "rect"
	KindLine Kind = "line"
)

// Annotation is a freeform board annotation anchored to calendar dates.
// Which fields are meaningful depends on Kind:
//
//   - note: Date, Y, Width, Height, Text, Fill, Stroke, FontSize
//   - rect: Date, Y, Width, Height, Fill, Stroke, StrokeWidth
//   - line: Date, Y, Date2, Y2, Stroke, StrokeWidth, Arrow
//
// ID and Kind are immutable after creation. Vertical positions are content
// coordinates (stable across scroll); horizontal positions are dates, so the
// annotation stays glued to its calendar position across zoom changes.
type Annotation struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Date        time.Time `json:"date"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width,omitempty"`
	Height      float64   `json:"height,omitempty"`
	Text        string    `json:"text,omitempty"`
	Fill        string    `json:"fill,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	FontSize    float64   `json:"font_size,omitempty"`
	StrokeWidth float64   `json:"stroke_width,omitempty"`
	Date2       time.Time `json:"date2,omitempty"`
	Y2          float64   `json:"y2,omitempty"`
	Arrow       bool      `json:"arrow,omitempty"`
}

// Validate checks structural invariants for the annotation's kind.
func (a Annotation) Validate() error {
	if err := validation.ValidateStruct(&a,
		validation.Field(&a.ID, validation.Required),
		validation.Field(&a.Kind, validation.Required, validation.In(KindNote, KindRect, KindLine)),
	); err != nil {
		return err
	}
	if a.Date.IsZero() {
		return fmt.Errorf("models: %s %s: date is required", a.Kind, a.ID)
	}
	switch a.Kind {
	case KindNote, KindRect:
		if a.Width <= 0 || a.Height <= 0 {
			return fmt.Errorf("models: %s %s: width and height must be positive", a.Kind, a.ID)
		}
	case KindLine:
		if a.Date2.IsZero() {
			return fmt.Errorf("models: line %s: date2 is required", a.ID)
		}
	}
	return nil
}

// IsLine reports whether the annotation is a two-endpoint line.
func (a Annotation) IsLine() bool { return a.Kind == KindLine }

// Patch carries a partial update; nil fields are left unchanged.
// ID and Kind cannot be patched.
type Patch struct {
	Date        *time.Time `json:"date,omitempty"`
	Y           *float64   `json:"y,omitempty"`
	Width       *float64   `json:"width,omitempty"`
	Height      *float64   `json:"height,omitempty"`
	Text        *string    `json:"text,omitempty"`
	Fill        *string    `json:"fill,omitempty"`
	Stroke      *string    `json:"stroke,omitempty"`
	FontSize    *float64   `json:"font_size,omitempty"`
	StrokeWidth *float64   `json:"stroke_width,omitempty"`
	Date2       *time.Time `json:"date2,omitempty"`
	Y2          *float64   `json:"y2,omitempty"`
	Arrow       *bool      `json:"arrow,omitempty"`
}

// Apply returns a copy of a with the patch's non-nil fields applied.
func (a Annotation) Apply(p Patch) Annotation {
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Y != nil {
		a.Y = *p.Y
	}
	if p.Width != nil {
		a.Width = *p.Width
	}
	if p.Height != nil {
		a.Height = *p.Height
	}
	if p.Text != nil {
		a.Text = *p.Text
	}
	if p.Fill != nil {
		a.Fill = *p.Fill
	}
	if p.Stroke != nil {
		a.Stroke = *p.Stroke
	}
	if p.FontSize != nil {
		a.FontSize = *p.FontSize
	}
	if p.StrokeWidth != nil {
		a.StrokeWidth = *p.StrokeWidth
	}
	if p.Date2 != nil {
		a.Date2 = *p.Date2
	}
	if p.Y2 != nil {
		a.Y2 = *p.Y2
	}
	if p.Arrow != nil {
		a.Arrow = *p.Arrow
	}
	return a
}

// DecodeList parses a persisted JSON array of annotations. Entries that fail
// to parse or validate are dropped individually; one corrupt entry never
// fails the whole load. Unknown extra fields are ignored.
func DecodeList(data []byte) ([]Annotation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("models: decode annotation list: %w", err)
	}
	out := make([]Annotation, 0, len(raw))
	for _, entry := range raw {
		var a Annotation
		if err := json.Unmarshal(entry, &a); err != nil {
			continue
		}
		if err := a.Validate(); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// EncodeList serializes annotations in their persisted JSON array form.
func EncodeList(annotations []Annotation) ([]byte, error) {
	if annotations == nil {
		annotations = []Annotation{}
	}
	data, err := json.MarshalIndent(annotations, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("models: encode annotation list: %w", err)
	}
	return data, nil
}
