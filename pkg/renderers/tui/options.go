package tui

import (
	"io"
)

// Theme captures optional message prefixes the filler applies when printing.
type Theme struct {
	PromptPrefix string
	InfoPrefix   string
	ErrorPrefix  string
}

// Option configures the filler.
type Option func(*Filler)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithOutput directs informational output of the default driver.
func WithOutput(out io.Writer) Option {
	return func(f *Filler) {
		f.out = out
	}
}

// WithSessionKey adds the session key field to the collected values.
func WithSessionKey(key string) Option {
	return func(f *Filler) {
		f.sessionKey = key
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(f *Filler) {
		f.theme = theme
	}
}
