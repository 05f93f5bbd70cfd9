package internal

import "github.com/starford/dagaz/internal/export"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	rasterizer export.Rasterizer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRasterizer overrides the image rasterizer (tests use a stub instead of
// headless Chrome).
func WithRasterizer(r export.Rasterizer) Option {
	return func(a *application) {
		a.rasterizer = r
	}
}
