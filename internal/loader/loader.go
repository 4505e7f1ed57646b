// Package loader reads schema and form definition documents from files,
// fs.FS entries or HTTP endpoints.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goliatone/go-formstate/pkg/schema"
)

// Options configures how a Loader resolves sources. HTTP stays disabled
// unless a client is supplied or the fallback is enabled.
type Options struct {
	FileSystem        fs.FS
	HTTPClient        *http.Client
	AllowHTTPFallback bool
	RequestTimeout    time.Duration
}

// Option mutates Options prior to construction.
type Option func(*Options)

// WithFileSystem injects an fs.FS used for SourceKindFS sources.
func WithFileSystem(files fs.FS) Option {
	return func(opts *Options) {
		opts.FileSystem = files
	}
}

// WithHTTPClient injects a custom HTTP client for remote documents.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithHTTPFallback enables HTTP loading with a default client and an
// optional timeout.
func WithHTTPFallback(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.AllowHTTPFallback = true
		opts.RequestTimeout = timeout
	}
}

// Loader implements schema.Loader.
type Loader struct {
	fs      fs.FS
	http    *http.Client
	timeout time.Duration
}

var _ schema.Loader = (*Loader)(nil)

// New constructs a Loader from options.
func New(options ...Option) *Loader {
	cfg := Options{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	var client *http.Client
	switch {
	case cfg.HTTPClient != nil:
		clone := *cfg.HTTPClient
		if cfg.RequestTimeout > 0 && clone.Timeout == 0 {
			clone.Timeout = cfg.RequestTimeout
		}
		client = &clone
	case cfg.AllowHTTPFallback:
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Loader{
		fs:      cfg.FileSystem,
		http:    client,
		timeout: cfg.RequestTimeout,
	}
}

// Load fetches the document behind src.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("loader: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return schema.Document{}, err
	}

	var (
		data []byte
		err  error
	)

	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = loadFile(src.Location())
	case schema.SourceKindFS:
		data, err = l.loadFS(src.Location())
	case schema.SourceKindURL:
		if l.http == nil {
			return schema.Document{}, errors.New("loader: http support disabled")
		}
		data, err = loadHTTP(ctx, l.http, src.Location(), l.timeout)
	default:
		err = fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return schema.Document{}, err
	}

	return schema.NewDocument(src, data)
}

func loadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("loader: file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return data, nil
}

func (l *Loader) loadFS(name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("loader: fs path is required")
	}
	if l.fs == nil {
		return nil, errors.New("loader: fs is not configured")
	}
	data, err := fs.ReadFile(l.fs, name)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", name, err)
	}
	return data, nil
}
