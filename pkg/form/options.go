package form

import (
	"context"
	"io"
	"log/slog"

	"github.com/goliatone/go-formstate/pkg/schema"
)

// SubmitFunc handles a validated submission. output is the validator's
// parsed value; m exposes the store operations a handler may use to report
// server-side failures or reset the form. A returned error is logged and
// otherwise ignored: handlers report failures through m.AddError.
type SubmitFunc func(ctx context.Context, output any, m Methods) error

// Option configures a Store.
type Option func(*config)

type config struct {
	validator schema.Validator
	submit    SubmitFunc
	logger    *slog.Logger
	guard     bool
}

func defaultConfig() config {
	return config{
		validator: schema.Any(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithSchema validates values with v. Without it every value is accepted
// and the output echoes the values.
func WithSchema(v schema.Validator) Option {
	return func(c *config) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithSubmit sets the handler Submit calls after a successful validation.
func WithSubmit(fn SubmitFunc) Option {
	return func(c *config) {
		c.submit = fn
	}
}

// WithLogger sets the logger used for handler failures and discarded
// validation results.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSubmitGuard rejects a Submit call while another one is running with
// ErrSubmitInProgress. Stores accept overlapping submissions by default.
func WithSubmitGuard() Option {
	return func(c *config) {
		c.guard = true
	}
}
