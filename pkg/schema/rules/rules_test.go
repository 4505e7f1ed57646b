package rules_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/schema"
	"github.com/goliatone/go-formstate/pkg/schema/rules"
)

type issueSummary struct {
	Field   string
	Type    string
	Message string
}

func summarize(issues []schema.Issue) []issueSummary {
	out := make([]issueSummary, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issueSummary{Field: issue.Field(), Type: issue.Type, Message: issue.Message})
	}
	return out
}

func signupSchema() *rules.ObjectSchema {
	return rules.Object(rules.Fields{
		"email":    rules.String(rules.Email()),
		"password": rules.String(rules.MinLength(8)),
	})
}

func TestObject_ReportsEveryFailingField(t *testing.T) {
	result, err := signupSchema().Parse(context.Background(), map[string]any{
		"email":    "",
		"password": "",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected invalid result")
	}

	want := []issueSummary{
		{Field: "email", Type: "email", Message: `Invalid email: Received ""`},
		{Field: "password", Type: "min_length", Message: "Invalid length: Expected >=8 but received 0"},
	}
	if diff := cmp.Diff(want, summarize(result.Issues)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestObject_ValidInputStripsUnknownKeys(t *testing.T) {
	result, err := signupSchema().Parse(context.Background(), map[string]any{
		"email":    "a@b.com",
		"password": "12345678",
		"extra":    true,
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got %#v", result.Issues)
	}
	want := map[string]any{"email": "a@b.com", "password": "12345678"}
	if diff := cmp.Diff(want, result.Output); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestPipe_RunsAllChecksAndTransforms(t *testing.T) {
	s := rules.Object(rules.Fields{
		"code": rules.String(rules.Trim(), rules.MinLength(4), rules.Regex(regexp.MustCompile(`^[A-Z]+$`))),
	})

	result, err := s.Parse(context.Background(), map[string]any{"code": "  ab "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []issueSummary{
		{Field: "code", Type: "min_length", Message: "Invalid length: Expected >=4 but received 2"},
		{Field: "code", Type: "regex", Message: `Invalid format: Expected /^[A-Z]+$/ but received "ab"`},
	}
	if diff := cmp.Diff(want, summarize(result.Issues)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}

	ok, err := s.Parse(context.Background(), map[string]any{"code": " ABCD "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"code": "ABCD"}, ok.Output); diff != "" {
		t.Fatalf("expected trimmed output (-want +got):\n%s", diff)
	}
}

func TestNestedPaths(t *testing.T) {
	s := rules.Object(rules.Fields{
		"users": rules.Array(rules.Object(rules.Fields{
			"email": rules.String(rules.Email()),
			"age":   rules.Number(rules.Integer(), rules.MinValue(18)),
		}), rules.MinItems(1)),
		"role": rules.Picklist("admin", "member"),
	})

	result, err := s.Parse(context.Background(), map[string]any{
		"users": []any{
			map[string]any{"email": "ok@example.com", "age": 30},
			map[string]any{"email": "nope", "age": 16.5},
		},
		"role": "guest",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []issueSummary{
		{Field: "role", Type: "picklist", Message: `Invalid type: Expected "admin" | "member" but received "guest"`},
		{Field: "users[1].age", Type: "integer", Message: "Invalid integer: Received 16.5"},
		{Field: "users[1].age", Type: "min_value", Message: "Invalid value: Expected >=18 but received 16.5"},
		{Field: "users[1].email", Type: "email", Message: `Invalid email: Received "nope"`},
	}
	if diff := cmp.Diff(want, summarize(result.Issues)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeFailures(t *testing.T) {
	s := rules.Object(rules.Fields{
		"name":  rules.String(),
		"age":   rules.Number(),
		"agree": rules.Boolean(),
		"tags":  rules.Array(rules.String()),
	})

	result, err := s.Parse(context.Background(), map[string]any{
		"name":  5,
		"agree": nil,
		"tags":  "x",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []issueSummary{
		{Field: "age", Type: "number", Message: "Invalid type: Expected number but received undefined"},
		{Field: "agree", Type: "boolean", Message: "Invalid type: Expected boolean but received null"},
		{Field: "name", Type: "string", Message: "Invalid type: Expected string but received 5"},
		{Field: "tags", Type: "array", Message: `Invalid type: Expected array but received "x"`},
	}
	if diff := cmp.Diff(want, summarize(result.Issues)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}

	root, err := s.Parse(context.Background(), "oops")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(root.Issues) != 1 || root.Issues[0].Field() != "" || root.Issues[0].Type != "object" {
		t.Fatalf("expected a single root object issue, got %#v", root.Issues)
	}
}

func TestOptionalAndDefaults(t *testing.T) {
	s := rules.Object(rules.Fields{
		"nickname": rules.Optional(rules.String(rules.MinLength(3))),
		"role":     rules.Optional(rules.Picklist("admin", "member"), "member"),
	})

	result, err := s.Parse(context.Background(), map[string]any{"nickname": nil})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got %#v", result.Issues)
	}
	want := map[string]any{"nickname": nil, "role": "member"}
	if diff := cmp.Diff(want, result.Output); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	invalid, err := s.Parse(context.Background(), map[string]any{"nickname": "ab"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(invalid.Issues) != 1 || invalid.Issues[0].Type != "min_length" {
		t.Fatalf("expected wrapped schema to run for present values, got %#v", invalid.Issues)
	}
}

func TestRefine_CrossFieldCheck(t *testing.T) {
	s := rules.Object(rules.Fields{
		"password": rules.String(rules.MinLength(8)),
		"confirm":  rules.String(),
	}).Refine("confirm", func(values map[string]any) *rules.Failure {
		if values["password"] != values["confirm"] {
			return &rules.Failure{Type: "check", Message: "Passwords do not match"}
		}
		return nil
	})

	result, err := s.Parse(context.Background(), map[string]any{"password": "12345678", "confirm": "1234567"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []issueSummary{{Field: "confirm", Type: "check", Message: "Passwords do not match"}}
	if diff := cmp.Diff(want, summarize(result.Issues)); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}

	short, err := s.Parse(context.Background(), map[string]any{"password": "1", "confirm": "2"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(short.Issues) != 1 || short.Issues[0].Type != "min_length" {
		t.Fatalf("expected refinement to be skipped when fields fail, got %#v", short.Issues)
	}
}

func TestFieldsDescriber(t *testing.T) {
	s := rules.Object(rules.Fields{
		"email":    rules.Label(rules.String(rules.Email()), "E-mail"),
		"nickname": rules.Optional(rules.String()),
		"age":      rules.Number(rules.Integer()),
	})

	want := []schema.Field{
		{Name: "age", Type: schema.FieldTypeInteger, Required: true},
		{Name: "email", Type: schema.FieldTypeString, Format: "email", Label: "E-mail", Required: true},
		{Name: "nickname", Type: schema.FieldTypeString},
	}
	if diff := cmp.Diff(want, s.Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := signupSchema().Parse(ctx, map[string]any{}); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
