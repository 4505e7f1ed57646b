package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/form"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func noEnv(string) string { return "" }

func contactDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "contact.yaml", "id: contact\nschema:\n  source: contact.schema.json\n")
	writeFile(t, dir, "contact.schema.json", `{
  "type": "object",
  "required": ["email", "age"],
  "properties": {
    "email": {"type": "string", "format": "email"},
    "age": {"type": "integer", "minimum": 18}
  }
}`)
	return dir
}

func TestRun_Validate(t *testing.T) {
	dir := contactDir(t)
	def := filepath.Join(dir, "contact.yaml")

	tests := []struct {
		name       string
		values     string
		wantCode   int
		wantErrors []string
	}{
		{name: "valid json", values: `{"email": "a@b.com", "age": 30}`, wantCode: 0},
		{name: "valid yaml", values: "email: a@b.com\nage: 30\n", wantCode: 0},
		{name: "invalid", values: `{"email": "nope", "age": 12}`, wantCode: 1, wantErrors: []string{"age", "email"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			values := writeFile(t, t.TempDir(), "values.txt", tc.values)
			var stdout, stderr bytes.Buffer

			code := run(context.Background(), []string{"validate", "-def", def, "-values", values}, noEnv, &stdout, &stderr)
			if code != tc.wantCode {
				t.Fatalf("expected exit %d, got %d (stderr: %s)", tc.wantCode, code, stderr.String())
			}

			var snapshot form.Snapshot
			if err := json.Unmarshal(stdout.Bytes(), &snapshot); err != nil {
				t.Fatalf("decode snapshot: %v\n%s", err, stdout.String())
			}
			var got []string
			for _, name := range []string{"age", "email"} {
				if len(snapshot.Errors[name]) > 0 {
					got = append(got, name)
				}
			}
			if diff := cmp.Diff(tc.wantErrors, got); diff != "" {
				t.Fatalf("error fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"render"}},
		{name: "missing definition", args: []string{"validate"}},
		{name: "missing explicit config", args: []string{"-config", "/nonexistent/formstate.toml", "validate"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tc.args, noEnv, &stdout, &stderr); code != 2 {
				t.Fatalf("expected exit 2, got %d", code)
			}
		})
	}
}

func TestConfig_Precedence(t *testing.T) {
	path := writeFile(t, t.TempDir(), "formstate.toml", `
log_level = "debug"
definition = "from-file.yaml"
listen = ":9000"
max_attempts = 5
session_idle = "10m"
`)

	cfg := defaultConfig()
	if err := loadConfigFile(&cfg, path, true); err != nil {
		t.Fatalf("load config: %v", err)
	}
	env := map[string]string{"FORMSTATE_LISTEN": ":9100", "FORMSTATE_MAX_ATTEMPTS": "7"}
	if err := loadFromEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("load env: %v", err)
	}
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	bindFlags(fset, &cfg)
	if err := fset.Parse([]string{"-def", "from-flag.yaml"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	want := Config{
		LogLevel:    "debug",
		LogFormat:   "text",
		Definition:  "from-flag.yaml",
		Listen:      ":9100",
		MaxAttempts: 7,
		SessionIdle: "10m",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestConfig_MissingDefaultFileIsIgnored(t *testing.T) {
	cfg := defaultConfig()
	if err := loadConfigFile(&cfg, filepath.Join(t.TempDir(), DefaultConfigFile), false); err != nil {
		t.Fatalf("expected a missing default file to be ignored, got %v", err)
	}
	if diff := cmp.Diff(defaultConfig(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}
