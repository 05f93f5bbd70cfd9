package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/models"
)

// AnnotationListResponse wraps the annotation collection in z-order.
type AnnotationListResponse struct {
	Annotations []models.Annotation `json:"annotations" validate:"required"`
	Total       int                 `json:"total" example:"3" validate:"required"`
}

// BoardStateResponse reports the active tool, color and selection.
type BoardStateResponse struct {
	Tool       string `json:"tool" example:"select" validate:"required"`
	Color      string `json:"color" example:"#fde68a" validate:"required"`
	SelectedID string `json:"selected_id,omitempty" example:"9f1c"`
}

// SetToolRequest is the request body for switching the active tool.
type SetToolRequest struct {
	Tool string `json:"tool" example:"rect" validate:"required"`
}

// Validate checks the tool against the closed tool set.
func (r SetToolRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tool, validation.Required,
			validation.In(string(annot.ToolSelect), string(annot.ToolNote), string(annot.ToolRect), string(annot.ToolLine))),
	)
}

// SetColorRequest is the request body for setting the drawing color.
type SetColorRequest struct {
	Color string `json:"color" example:"#bbf7d0" validate:"required"`
}

// Validate requires a non-empty color.
func (r SetColorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Color, validation.Required),
	)
}

// ExportRequest is the request body for POST /export. Nil scroll values mean
// "use the live scroll position".
type ExportRequest struct {
	Width               float64  `json:"width" example:"1200"`
	ScrollLeft          *float64 `json:"scroll_left,omitempty" example:"240"`
	ScrollTop           *float64 `json:"scroll_top,omitempty" example:"0"`
	IncludeAnnotations  bool     `json:"include_annotations" example:"true"`
	IncludeDependencies bool     `json:"include_dependencies" example:"true"`
}
