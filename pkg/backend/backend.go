// Package backend abstracts the rendering engines that turn diagram text
// into image bytes.
//
// A backend is a black box implementing a probe/render contract. Two real
// backends exist: the external mermaid CLI (primary) and an embedded
// graphviz-based surface (fallback). The Selector chooses a usable backend
// per job, preferring the primary and falling back deterministically, with
// probe results cached for a short validity window because a backend's
// availability can change mid-session (its runtime dependency may be
// installed while the process is running).
package backend

import (
	"context"

	"diagramport/pkg/errors"
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatWebp = "webp"
	FormatJPG  = "jpg"
	FormatJPEG = "jpeg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatWebp: true,
	FormatJPG:  true,
	FormatJPEG: true,
}

// Theme constants for diagram themes.
const (
	ThemeDefault = "default"
	ThemeDark    = "dark"
	ThemeForest  = "forest"
	ThemeNeutral = "neutral"
)

// ValidThemes is the set of supported themes.
var ValidThemes = map[string]bool{
	ThemeDefault: true,
	ThemeDark:    true,
	ThemeForest:  true,
	ThemeNeutral: true,
}

// BackgroundTransparent is the literal background value for no background.
const BackgroundTransparent = "transparent"

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: svg, png, pdf, webp, jpg, jpeg)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTheme checks that a theme is valid.
func ValidateTheme(theme string) error {
	if !ValidThemes[theme] {
		return errors.New(errors.ErrCodeInvalidTheme,
			"invalid theme: %q (must be one of: default, dark, forest, neutral)", theme)
	}
	return nil
}

// RenderOptions carries the per-job rendering parameters handed to a
// backend. Background is a CSS-style color string or "transparent".
type RenderOptions struct {
	Format     string
	Theme      string
	Width      int
	Height     int
	Background string
}

// setDefaults fills unset option fields.
func (o *RenderOptions) setDefaults() {
	if o.Format == "" {
		o.Format = FormatSVG
	}
	if o.Theme == "" {
		o.Theme = ThemeDefault
	}
	if o.Background == "" {
		o.Background = "white"
	}
}

// Validate checks option values after applying defaults.
func (o *RenderOptions) Validate() error {
	o.setDefaults()
	if err := ValidateFormat(o.Format); err != nil {
		return err
	}
	return ValidateTheme(o.Theme)
}

// Backend is one rendering engine. Probe is a side-effect-free capability
// check; Render turns diagram text into artifact bytes for the requested
// format. Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend for logs, preferences, and probe caching.
	Name() string

	// Probe reports whether the backend can currently render.
	Probe(ctx context.Context) bool

	// Render produces artifact bytes for the diagram text. Errors are
	// per-job render failures, never fatal to a batch.
	Render(ctx context.Context, text string, opts RenderOptions) ([]byte, error)
}
