package prompt

import (
	"io"
	"log/slog"

	"github.com/goliatone/go-formstate/pkg/schema"
)

// DefaultMaxAttempts is the number of prompt rounds before Fill gives up.
const DefaultMaxAttempts = 3

// Theme captures optional prefixes applied to printed messages.
type Theme struct {
	InfoPrefix  string
	ErrorPrefix string
}

// Option configures a Filler.
type Option func(*Filler)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithMaxAttempts bounds the number of prompt rounds.
func WithMaxAttempts(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(f *Filler) {
		f.theme = theme
	}
}

// WithOutput sets where the default survey driver prints messages.
func WithOutput(out io.Writer) Option {
	return func(f *Filler) {
		f.out = out
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// FieldFilter decides whether a field is prompted given the current values.
type FieldFilter func(field schema.Field, values map[string]any) bool

// WithFieldFilter skips fields the filter rejects. It runs before every
// prompt, so earlier answers can reveal or hide later fields.
func WithFieldFilter(filter FieldFilter) Option {
	return func(f *Filler) {
		f.filter = filter
	}
}
