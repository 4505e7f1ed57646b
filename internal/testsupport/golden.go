// Package testsupport holds fixture and golden file helpers shared by the
// package tests.
package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/internal/loader"
	"github.com/goliatone/go-formstate/pkg/formdef"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// UpdateEnv names the environment variable that rewrites golden files.
const UpdateEnv = "UPDATE_GOLDENS"

// BuildDefinition loads the definition file at path and builds it with a
// file loader, failing the test on error.
func BuildDefinition(t *testing.T, path string, opts ...formdef.BuildOption) *formdef.Form {
	t.Helper()

	l := loader.New()
	def, err := formdef.Load(context.Background(), l, schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("load definition: %v", err)
	}
	built, err := def.Build(context.Background(), append([]formdef.BuildOption{formdef.WithLoader(l)}, opts...)...)
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	return built
}

// AssertGolden compares got with the JSON golden file at path. The golden
// is decoded into a value of got's type before diffing. With UPDATE_GOLDENS
// set the file is rewritten instead.
func AssertGolden[T any](t *testing.T, path string, got T) {
	t.Helper()

	if os.Getenv(UpdateEnv) != "" {
		writeGolden(t, path, got)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	var want T
	if err := json.Unmarshal(data, &want); err != nil {
		t.Fatalf("unmarshal golden %s: %v", path, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("golden %s mismatch (-want +got):\n%s", path, diff)
	}
}

func writeGolden(t *testing.T, path string, value any) {
	t.Helper()

	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}
