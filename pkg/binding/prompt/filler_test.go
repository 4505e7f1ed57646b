package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/schema"
	"github.com/goliatone/go-formstate/pkg/schema/rules"
)

type stubDriver struct {
	inputs       []string
	passwords    []string
	confirm      []bool
	selectIdx    []int
	multiIdx     [][]int
	infoMessages []string
	prompted     []string
	err          error
	inputPos     int
	passPos      int
	confirmPos   int
	selectPos    int
	multiPos     int
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	s.prompted = append(s.prompted, cfg.Message)
	if cfg.Validator != nil {
		if err := cfg.Validator(val); err != nil {
			return "", err
		}
	}
	return val, nil
}

func (s *stubDriver) Password(_ context.Context, cfg InputConfig) (string, error) {
	if s.passPos >= len(s.passwords) {
		return "", errors.New("no password scripted")
	}
	val := s.passwords[s.passPos]
	s.passPos++
	s.prompted = append(s.prompted, cfg.Message)
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	s.prompted = append(s.prompted, cfg.Message)
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	s.prompted = append(s.prompted, cfg.Message)
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg SelectConfig) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	s.prompted = append(s.prompted, cfg.Message)
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func TestFill_RepromptsOnlyFailingFields(t *testing.T) {
	signup := rules.Object(rules.Fields{
		"email":    rules.String(rules.Email()),
		"password": rules.String(rules.MinLength(8)),
		"role":     rules.Picklist("admin", "user"),
		"agree":    rules.Boolean(),
	})
	fields := []schema.Field{
		{Name: "email", Type: schema.FieldTypeString, Label: "Email"},
		{Name: "password", Type: schema.FieldTypeString, Secret: true},
		{Name: "role", Type: schema.FieldTypeString, Enum: []any{"admin", "user"}},
		{Name: "agree", Type: schema.FieldTypeBoolean},
	}

	var outputs []any
	store := form.New(map[string]any{"email": "", "password": "", "role": "admin", "agree": false},
		form.WithSchema(signup),
		form.WithSubmit(func(_ context.Context, output any, _ form.Methods) error {
			outputs = append(outputs, output)
			return nil
		}),
	)

	driver := &stubDriver{
		inputs:    []string{"nope", "a@b.com"},
		passwords: []string{"short", "12345678"},
		selectIdx: []int{1},
		confirm:   []bool{true},
	}
	filler := New(WithPromptDriver(driver), WithTheme(Theme{ErrorPrefix: "! "}))

	result, err := filler.Fill(context.Background(), store, fields)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if !result.Submitted || result.Attempts != 2 {
		t.Fatalf("expected submission on the second attempt, got %+v", result)
	}

	wantPrompted := []string{
		"Email", "Password", "Role", "Agree",
		`Email (Invalid email: Received "nope")`,
		"Password (Invalid length: Expected >=8 but received 5)",
	}
	if diff := cmp.Diff(wantPrompted, driver.prompted); diff != "" {
		t.Fatalf("prompted fields mismatch (-want +got):\n%s", diff)
	}

	wantInfo := []string{
		`! Email: Invalid email: Received "nope"`,
		"! Password: Invalid length: Expected >=8 but received 5",
	}
	if diff := cmp.Diff(wantInfo, driver.infoMessages); diff != "" {
		t.Fatalf("printed errors mismatch (-want +got):\n%s", diff)
	}

	want := []any{map[string]any{"email": "a@b.com", "password": "12345678", "role": "user", "agree": true}}
	if diff := cmp.Diff(want, outputs); diff != "" {
		t.Fatalf("submitted output mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_FormLevelErrorsRepromptEverything(t *testing.T) {
	passwords := rules.Object(rules.Fields{
		"password": rules.String(),
		"confirm":  rules.String(),
	}).Refine("", func(values map[string]any) *rules.Failure {
		if values["password"] != values["confirm"] {
			return &rules.Failure{Type: "custom", Message: "Passwords must match"}
		}
		return nil
	})
	store := form.New(map[string]any{"password": "", "confirm": ""}, form.WithSchema(passwords))

	driver := &stubDriver{inputs: []string{"aaaaaaaa", "bbbbbbbb", "aaaaaaaa", "aaaaaaaa"}}
	result, err := New(WithPromptDriver(driver)).Fill(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if !result.Submitted || result.Attempts != 2 {
		t.Fatalf("expected submission on the second attempt, got %+v", result)
	}
	if driver.inputPos != 4 {
		t.Fatalf("expected both fields asked twice, got %d answers", driver.inputPos)
	}
	if diff := cmp.Diff([]string{"✗ form: Passwords must match"}, driver.infoMessages); diff != "" {
		t.Fatalf("printed errors mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_GivesUpAfterMaxAttempts(t *testing.T) {
	store := form.New(map[string]any{"email": ""},
		form.WithSchema(rules.Object(rules.Fields{"email": rules.String(rules.Email())})),
	)
	driver := &stubDriver{inputs: []string{"x", "y"}}

	result, err := New(WithPromptDriver(driver), WithMaxAttempts(2)).Fill(context.Background(), store, nil)
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if result.Submitted || result.Attempts != 2 || !result.Errors.Has("email") {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := store.Values()["email"]; got != "y" {
		t.Fatalf("expected the last answer to be stored, got %#v", got)
	}
}

func TestFill_CoercesAnswers(t *testing.T) {
	fields := []schema.Field{
		{Name: "age", Type: schema.FieldTypeInteger},
		{Name: "tags", Type: schema.FieldTypeArray, Items: &schema.Field{Type: schema.FieldTypeString, Enum: []any{"go", "js", "rust"}}},
		{Name: "profile", Type: schema.FieldTypeObject, Nested: []schema.Field{
			{Name: "bio", Type: schema.FieldTypeString},
		}},
	}
	store := form.New(map[string]any{})
	driver := &stubDriver{inputs: []string{"42", "gopher"}, multiIdx: [][]int{{0, 2}}}

	result, err := New(WithPromptDriver(driver)).Fill(context.Background(), store, fields)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if !result.Submitted {
		t.Fatalf("expected submission, got %+v", result)
	}
	want := map[string]any{
		"age":     int64(42),
		"tags":    []any{"go", "rust"},
		"profile": map[string]any{"bio": "gopher"},
	}
	if diff := cmp.Diff(want, store.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_StopsWhenDriverFails(t *testing.T) {
	store := form.New(map[string]any{"name": ""})
	driver := &stubDriver{err: ErrAborted}
	fields := []schema.Field{{Name: "name", Type: schema.FieldTypeString}}

	_, err := New(WithPromptDriver(driver)).Fill(context.Background(), store, fields)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestFill_FieldFilterFollowsAnswers(t *testing.T) {
	fields := []schema.Field{
		{Name: "business", Type: schema.FieldTypeBoolean},
		{Name: "company", Type: schema.FieldTypeString},
		{Name: "name", Type: schema.FieldTypeString},
	}
	filter := func(field schema.Field, values map[string]any) bool {
		return field.Name != "company" || values["business"] == true
	}

	tests := []struct {
		name     string
		business bool
		inputs   []string
		want     map[string]any
	}{
		{
			name:     "shown",
			business: true,
			inputs:   []string{"Acme", "Ada"},
			want:     map[string]any{"business": true, "company": "Acme", "name": "Ada"},
		},
		{
			name:     "skipped",
			business: false,
			inputs:   []string{"Ada"},
			want:     map[string]any{"business": false, "name": "Ada"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := form.New(map[string]any{})
			driver := &stubDriver{confirm: []bool{tc.business}, inputs: tc.inputs}

			if _, err := New(WithPromptDriver(driver), WithFieldFilter(filter)).Fill(context.Background(), store, fields); err != nil {
				t.Fatalf("fill: %v", err)
			}
			if diff := cmp.Diff(tc.want, store.Values()); diff != "" {
				t.Fatalf("values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFill_HiddenFailingFieldOffersVisibleOnes(t *testing.T) {
	fields := []schema.Field{
		{Name: "business", Type: schema.FieldTypeBoolean},
		{Name: "company", Type: schema.FieldTypeString},
	}
	filter := func(field schema.Field, values map[string]any) bool {
		return field.Name != "company" || values["business"] == true
	}
	store := form.New(map[string]any{"business": false, "company": ""}, form.WithSchema(rules.Object(rules.Fields{
		"business": rules.Boolean(),
		"company":  rules.String(rules.NonEmpty()),
	})))
	driver := &stubDriver{confirm: []bool{false, true}, inputs: []string{"Acme"}}

	result, err := New(WithPromptDriver(driver), WithFieldFilter(filter)).Fill(context.Background(), store, fields)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if !result.Submitted || result.Attempts != 2 {
		t.Fatalf("expected submission on the second attempt, got %+v", result)
	}
	wantPrompts := []string{"Business", "Business", "Company (Invalid length: Expected !0 but received 0)"}
	if diff := cmp.Diff(wantPrompts, driver.prompted); diff != "" {
		t.Fatalf("prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_StopsWhenEveryFieldIsHidden(t *testing.T) {
	fields := []schema.Field{{Name: "company", Type: schema.FieldTypeString}}
	store := form.New(map[string]any{"company": ""}, form.WithSchema(rules.Object(rules.Fields{
		"company": rules.String(rules.NonEmpty()),
	})))
	driver := &stubDriver{}
	hidden := func(schema.Field, map[string]any) bool { return false }

	result, err := New(WithPromptDriver(driver), WithFieldFilter(hidden)).Fill(context.Background(), store, fields)
	if !errors.Is(err, ErrNothingToAsk) {
		t.Fatalf("expected ErrNothingToAsk, got %v", err)
	}
	if result.Attempts != 2 || len(driver.prompted) != 0 {
		t.Fatalf("expected to stop on the second attempt without prompting, got %+v (%v)", result, driver.prompted)
	}
}
