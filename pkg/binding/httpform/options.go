package httpform

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultCookieName carries the session id.
const DefaultCookieName = "formstate_session"

// Options configures a Handler.
type Options struct {
	CookieName   string
	CookiePath   string
	SecureCookie bool
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// IdleTimeout drops sessions not seen for this long. Zero keeps them
	// until the handler is discarded.
	IdleTimeout time.Duration
	// Sanitizer cleans every string value before it reaches the store.
	// Defaults to bluemonday.StrictPolicy.
	Sanitizer *bluemonday.Policy
	Logger    *slog.Logger
	// Now is the clock used for idle tracking.
	Now func() time.Time
}

// OptionFn mutates Options.
type OptionFn func(*Options)

// NewOptions applies fns over the defaults.
func NewOptions(fns ...OptionFn) Options {
	opts := Options{}
	for _, fn := range fns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = bluemonday.StrictPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// WithCookie sets the session cookie name, path and Secure flag.
func WithCookie(name, path string, secure bool) OptionFn {
	return func(o *Options) {
		o.CookieName = name
		o.CookiePath = path
		o.SecureCookie = secure
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) OptionFn {
	return func(o *Options) {
		o.MaxBodyBytes = n
	}
}

// WithIdleTimeout expires sessions that have not been used for d.
func WithIdleTimeout(d time.Duration) OptionFn {
	return func(o *Options) {
		o.IdleTimeout = d
	}
}

// WithSanitizer replaces the strict HTML policy applied to input strings.
func WithSanitizer(policy *bluemonday.Policy) OptionFn {
	return func(o *Options) {
		o.Sanitizer = policy
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClock overrides the clock used for idle tracking.
func WithClock(now func() time.Time) OptionFn {
	return func(o *Options) {
		o.Now = now
	}
}

func (o Options) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     o.CookieName,
		Value:    id,
		Path:     o.CookiePath,
		HttpOnly: true,
		Secure:   o.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
