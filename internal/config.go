package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Annotation storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Board       BoardConfig       `yaml:"board"`
	Annotations AnnotationsConfig `yaml:"annotations"`
	Export      ExportConfig      `yaml:"export"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Board.Validate(); err != nil {
		return err
	}
	if err := c.Annotations.Validate(); err != nil {
		return err
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BoardConfig holds the timeline geometry and the optional feature-board
// layout file.
type BoardConfig struct {
	MonthWidthPx  float64 `yaml:"month_width_px"`
	BoardOffsetPx float64 `yaml:"board_offset_px"`
	StartMonth    string  `yaml:"start_month"` // "2006-01"
	MonthCount    int     `yaml:"month_count"`
	RowHeight     float64 `yaml:"row_height"`
	LayoutPath    string  `yaml:"layout_path"` // optional board YAML
}

// Validate validates the board configuration.
func (c *BoardConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MonthWidthPx, validation.Required, validation.Min(1.0)),
		validation.Field(&c.StartMonth, validation.Required),
		validation.Field(&c.MonthCount, validation.Required, validation.Min(1), validation.Max(240)),
		validation.Field(&c.RowHeight, validation.Required, validation.Min(1.0)),
	); err != nil {
		return err
	}
	if _, err := c.StartMonthTime(); err != nil {
		return fmt.Errorf("board: start_month %q: want YYYY-MM", c.StartMonth)
	}
	return nil
}

// StartMonthTime parses the configured first month.
func (c *BoardConfig) StartMonthTime() (time.Time, error) {
	return time.Parse("2006-01", c.StartMonth)
}

// AnnotationsConfig selects the annotation persistence backend.
type AnnotationsConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	Path    string `yaml:"path"`
}

// Validate validates the annotations configuration.
func (c *AnnotationsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFile, BackendSQLite)),
		validation.Field(&c.Path, validation.Required),
	)
}

// ExportConfig holds image export defaults.
type ExportConfig struct {
	DefaultWidth   float64 `yaml:"default_width"`
	BackgroundPath string  `yaml:"background_path"` // optional chart band PNG
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultWidth, validation.Required, validation.Min(100.0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Board: BoardConfig{
			MonthWidthPx: 120,
			StartMonth:   "2025-01",
			MonthCount:   12,
			RowHeight:    44,
		},
		Annotations: AnnotationsConfig{
			Backend: BackendFile,
			Path:    "./annotations.json",
		},
		Export: ExportConfig{
			DefaultWidth: 1200,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
