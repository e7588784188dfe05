package render

import (
	theme "github.com/goliatone/go-theme"
)

// RenderOptions describe per-request data that renderers use to customise
// their output without mutating the descriptor.
type RenderOptions struct {
	// Values pre-populates controls by element name. Submitted values win over
	// an element's default value when a form re-renders after errors.
	Values map[string]any
	// Errors carries field and form-level messages from the last submission.
	Errors ErrorMapping
	// Hidden lists extra hidden inputs (marker and session key included).
	Hidden map[string]string
	// Theme supplies CSS variables and asset URLs.
	Theme *theme.RendererConfig
	// Locale and Translator resolve *key metadata on elements.
	Locale     string
	Translator Translator
	OnMissing  MissingTranslationHandler
}
