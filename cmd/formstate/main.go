// Command formstate loads a form definition and drives it from the command
// line: validate a values file, fill the form interactively, or serve it
// over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate"
	"github.com/goliatone/go-formstate/pkg/binding/httpform"
	"github.com/goliatone/go-formstate/pkg/binding/prompt"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/formdef"
	"github.com/goliatone/go-formstate/pkg/schema"
)

const usage = `usage: formstate [-config formstate.toml] <command> [flags]

commands:
  validate -def form.yaml -values values.json   validate a values file
  fill     -def form.yaml                       fill the form in the terminal
  serve    -def form.yaml -listen :8080         serve the form over HTTP
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command struct {
	cfg    Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("formstate", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "TOML config file (default ./"+DefaultConfigFile+" when present)")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg := defaultConfig()
	path, explicit := *configPath, true
	if path == "" {
		path, explicit = DefaultConfigFile, false
	}
	if err := loadConfigFile(&cfg, path, explicit); err != nil {
		fmt.Fprintln(stderr, "formstate:", err)
		return 2
	}
	if err := loadFromEnv(&cfg, getenv); err != nil {
		fmt.Fprintln(stderr, "formstate:", err)
		return 2
	}

	name, rest := global.Arg(0), global.Args()[1:]
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(stderr)
	bindFlags(fset, &cfg)

	var valuesPath string
	switch name {
	case "validate":
		fset.StringVar(&valuesPath, "values", "", "values file (JSON or YAML)")
	case "fill":
		fset.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "prompt rounds before giving up")
	case "serve":
		fset.StringVar(&cfg.Listen, "listen", cfg.Listen, "listen address")
		fset.StringVar(&cfg.SessionIdle, "session-idle", cfg.SessionIdle, "drop sessions idle for this long")
	default:
		fmt.Fprintf(stderr, "formstate: unknown command %q\n", name)
		global.Usage()
		return 2
	}
	fset.BoolVar(&cfg.AllowHTTP, "allow-http", cfg.AllowHTTP, "allow definitions and schemas to load over HTTP")
	if err := fset.Parse(rest); err != nil {
		return 2
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintln(stderr, "formstate:", err)
		return 2
	}

	c := &command{cfg: cfg, logger: newLogger(stderr, cfg), stdout: stdout, stderr: stderr}
	var err error
	code := 0
	switch name {
	case "validate":
		code, err = c.validate(ctx, valuesPath)
	case "fill":
		code, err = c.fill(ctx)
	case "serve":
		err = c.serve(ctx)
	}
	if err != nil {
		c.logger.Error("command failed", "command", name, "error", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

func (c *command) loader() schema.Loader {
	if c.cfg.AllowHTTP {
		return formstate.NewLoader(formstate.WithHTTPFallback(30 * time.Second))
	}
	return formstate.NewLoader()
}

func (c *command) definition(ctx context.Context, l schema.Loader) (*formdef.Definition, error) {
	src, err := schema.ResolveSource(c.cfg.Definition)
	if err != nil {
		return nil, err
	}
	def, err := formdef.Load(ctx, l, src)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("definition loaded", "id", def.ID, "source", src.Location())
	return def, nil
}

func (c *command) buildOptions(l schema.Loader, storeOpts ...form.Option) []formdef.BuildOption {
	storeOpts = append([]form.Option{form.WithLogger(c.logger)}, storeOpts...)
	return []formdef.BuildOption{
		formdef.WithLoader(l),
		formdef.WithStoreOptions(storeOpts...),
	}
}

func (c *command) validate(ctx context.Context, valuesPath string) (int, error) {
	l := c.loader()
	def, err := c.definition(ctx, l)
	if err != nil {
		return 1, err
	}
	built, err := def.Build(ctx, c.buildOptions(l)...)
	if err != nil {
		return 1, err
	}
	if valuesPath != "" {
		values, err := readValues(valuesPath)
		if err != nil {
			return 1, err
		}
		built.Store.Update(values)
	}

	valid, err := built.Store.Validate(ctx)
	if err != nil {
		return 1, err
	}
	if err := writeJSON(c.stdout, built.Store.Snapshot()); err != nil {
		return 1, err
	}
	if !valid {
		c.logger.Warn("values are invalid", "form", def.ID, "fields", len(built.Store.Errors()))
		return 1, nil
	}
	return 0, nil
}

func (c *command) fill(ctx context.Context) (int, error) {
	l := c.loader()
	def, err := c.definition(ctx, l)
	if err != nil {
		return 1, err
	}
	submit := form.WithSubmit(func(_ context.Context, _ any, _ form.Methods) error {
		c.logger.Info("form submitted", "form", def.ID)
		return nil
	})
	built, err := def.Build(ctx, c.buildOptions(l, submit)...)
	if err != nil {
		return 1, err
	}

	result, err := formstate.Fill(ctx, built,
		prompt.WithMaxAttempts(c.cfg.MaxAttempts),
		prompt.WithOutput(c.stderr),
		prompt.WithLogger(c.logger),
	)
	switch {
	case errors.Is(err, prompt.ErrAborted):
		return 130, nil
	case err != nil:
		return 1, err
	}
	c.logger.Debug("fill finished", "attempts", result.Attempts)
	return 0, writeJSON(c.stdout, built.Store.Output())
}

func (c *command) serve(ctx context.Context) error {
	l := c.loader()
	def, err := c.definition(ctx, l)
	if err != nil {
		return err
	}
	idle, _ := c.cfg.idle()
	logger := c.logger.With("form", def.ID)
	submit := form.WithSubmit(func(_ context.Context, output any, _ form.Methods) error {
		logger.Info("form submitted", "output", output)
		return nil
	})
	handler := formstate.NewHandler(def, c.buildOptions(l, submit),
		httpform.WithLogger(logger),
		httpform.WithIdleTimeout(idle),
	)

	server := &http.Server{
		Addr:              c.cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if idle > 0 {
		go sweep(ctx, handler.Sessions(), idle, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", c.cfg.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

func sweep(ctx context.Context, sessions *httpform.Sessions, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.Debug("expired sessions dropped", "count", n)
			}
		}
	}
}

// readValues reads a JSON or YAML object. YAML is normalised through JSON
// so numbers reach validators as float64, the same as JSON input.
func readValues(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err == nil {
		return values, nil
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse values %s: %w", path, err)
	}
	normalised, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse values %s: %w", path, err)
	}
	if err := json.Unmarshal(normalised, &values); err != nil {
		return nil, fmt.Errorf("parse values %s: %w", path, err)
	}
	return values, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
