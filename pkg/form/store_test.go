package form_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/schema"
	"github.com/goliatone/go-formstate/pkg/schema/rules"
)

type errorSummary struct {
	Field string
	Type  string
}

func summarize(errs form.Errors) []errorSummary {
	var out []errorSummary
	for _, name := range sortedKeys(errs) {
		for _, fe := range errs[name] {
			out = append(out, errorSummary{Field: name, Type: fe.Type})
		}
	}
	return out
}

func sortedKeys(errs form.Errors) []string {
	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func signupSchema() schema.Validator {
	return rules.Object(rules.Fields{
		"email":    rules.String(rules.Email()),
		"password": rules.String(rules.MinLength(8)),
	})
}

func emptySignup() map[string]any {
	return map[string]any{"email": "", "password": ""}
}

func TestUpdateField_SetsOnlyThatPath(t *testing.T) {
	store := form.New(map[string]any{
		"email": "",
		"users": []any{map[string]any{"email": "a@b.com"}},
	})

	if err := store.UpdateField("users[1].email", "c@d.com"); err != nil {
		t.Fatalf("update field: %v", err)
	}
	field, err := store.Field("users[1].email")
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	if got := field.Value(); got != "c@d.com" {
		t.Fatalf("expected updated value, got %#v", got)
	}

	want := map[string]any{
		"email": "",
		"users": []any{
			map[string]any{"email": "a@b.com"},
			map[string]any{"email": "c@d.com"},
		},
	}
	if diff := cmp.Diff(want, store.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateField_RejectsBadPaths(t *testing.T) {
	store := form.New(emptySignup())

	if err := store.UpdateField("users[", "x"); !errors.Is(err, form.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for malformed path, got %v", err)
	}
	if err := store.UpdateField("", "x"); !errors.Is(err, form.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for the root path, got %v", err)
	}
	if _, err := store.Field("a..b"); !errors.Is(err, form.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath from Field, got %v", err)
	}
}

func TestUpdateField_RejectsHugeIndexes(t *testing.T) {
	store := form.New(map[string]any{"rows": []any{"a"}})

	for _, name := range []string{"x[9223372036854775807]", "x[5000000]", "rows.5000000"} {
		if err := store.UpdateField(name, 1); !errors.Is(err, form.ErrInvalidPath) {
			t.Fatalf("%s: expected ErrInvalidPath, got %v", name, err)
		}
	}
	want := map[string]any{"rows": []any{"a"}}
	if diff := cmp.Diff(want, store.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdate_ReplacesValuesAndKeepsErrors(t *testing.T) {
	store := form.New(emptySignup())
	store.AddError("email", form.NewFieldError("server", "taken"))

	store.Update(map[string]any{"email": "a@b.com"})

	if diff := cmp.Diff(map[string]any{"email": "a@b.com"}, store.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if !store.Errors().Has("email") {
		t.Fatalf("update must not clear errors")
	}
}

func TestValues_AreIsolatedFromCallers(t *testing.T) {
	initial := map[string]any{"tags": []any{"a"}}
	store := form.New(initial)

	initial["tags"].([]any)[0] = "mutated"
	values := store.Values()
	values["tags"].([]any)[0] = "mutated"

	if err := store.UpdateField("tags[0]", "b"); err != nil {
		t.Fatalf("update field: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"tags": []any{"a"}}, store.InitialValues()); diff != "" {
		t.Fatalf("baseline must not follow edits (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"tags": []any{"b"}}, store.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_GroupsIssuesAndIsIdempotent(t *testing.T) {
	store := form.New(emptySignup(), form.WithSchema(signupSchema()))

	valid, err := store.Validate(context.Background())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if valid {
		t.Fatalf("expected invalid form")
	}
	first := store.Errors()
	want := []errorSummary{{Field: "email", Type: "email"}, {Field: "password", Type: "min_length"}}
	if diff := cmp.Diff(want, summarize(first)); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if issue := first["email"][0].Issue; issue == nil || issue.Field() != "email" {
		t.Fatalf("expected source issue on field error, got %#v", issue)
	}

	if _, err := store.Validate(context.Background()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if diff := cmp.Diff(first, store.Errors()); diff != "" {
		t.Fatalf("second validation changed errors (-want +got):\n%s", diff)
	}

	store.Update(map[string]any{"email": "a@b.com", "password": "12345678"})
	valid, err = store.Validate(context.Background())
	if err != nil || !valid {
		t.Fatalf("expected valid form, got valid=%v err=%v", valid, err)
	}
	if got := len(store.Errors()); got != 0 {
		t.Fatalf("expected no errors, got %d", got)
	}
}

func TestValidate_WithoutSchemaEchoesValues(t *testing.T) {
	store := form.New(map[string]any{"anything": []any{1, "two"}})

	valid, err := store.Validate(context.Background())
	if err != nil || !valid {
		t.Fatalf("expected valid form, got valid=%v err=%v", valid, err)
	}
	if diff := cmp.Diff(store.Values(), store.Output()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_DiscardsAddedErrors(t *testing.T) {
	store := form.New(map[string]any{"email": "a@b.com", "password": "12345678"}, form.WithSchema(signupSchema()))
	store.AddError("email", form.NewFieldError("server", "taken"))
	store.AddError(form.FormErrorKey, form.NewFieldError("server", "try again"))

	if _, err := store.Validate(context.Background()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := len(store.Errors()); got != 0 {
		t.Fatalf("expected validation to replace every error, got %d keys", got)
	}
}

func TestValidate_EngineErrorLeavesStateAlone(t *testing.T) {
	boom := errors.New("engine down")
	store := form.New(emptySignup(), form.WithSchema(schema.ValidatorFunc(func(context.Context, any) (schema.Result, error) {
		return schema.Result{}, boom
	})))
	store.AddError("email", form.NewFieldError("server", "taken"))

	valid, err := store.Validate(context.Background())
	if !errors.Is(err, boom) || valid {
		t.Fatalf("expected engine error, got valid=%v err=%v", valid, err)
	}
	if !store.Errors().Has("email") {
		t.Fatalf("engine failure must not touch errors")
	}
}

func TestValidate_DropsOvertakenResult(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	validator := schema.ValidatorFunc(func(_ context.Context, input any) (schema.Result, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return schema.NewResult(input, []schema.Issue{{
				Type:    "stale",
				Message: "old result",
				Path:    fieldpath.MustParse("email"),
			}}), nil
		}
		return schema.NewResult(input, nil), nil
	})
	store := form.New(emptySignup(), form.WithSchema(validator))

	done := make(chan bool)
	go func() {
		valid, _ := store.Validate(context.Background())
		done <- valid
	}()
	<-started

	if valid, err := store.Validate(context.Background()); err != nil || !valid {
		t.Fatalf("expected newer validation to pass, got valid=%v err=%v", valid, err)
	}
	close(release)
	if valid := <-done; valid {
		t.Fatalf("overtaken validation should still report its own result")
	}
	if got := len(store.Errors()); got != 0 {
		t.Fatalf("overtaken result must not be applied, got %v", store.Errors())
	}
}

func TestSubmit_SkipsHandlerWhenInvalid(t *testing.T) {
	calls := 0
	store := form.New(emptySignup(),
		form.WithSchema(signupSchema()),
		form.WithSubmit(func(context.Context, any, form.Methods) error {
			calls++
			return nil
		}),
	)

	submitted, err := store.Submit(context.Background())
	if err != nil || submitted {
		t.Fatalf("expected rejected submit, got submitted=%v err=%v", submitted, err)
	}
	if calls != 0 {
		t.Fatalf("handler must not run for invalid values, ran %d times", calls)
	}
	if !store.Errors().Has("email") {
		t.Fatalf("expected validation errors after submit")
	}
}

func TestSubmit_ValidSignupScenario(t *testing.T) {
	var outputs []any
	var submittingDuringHandler bool
	var store *form.Store
	store = form.New(emptySignup(),
		form.WithSchema(signupSchema()),
		form.WithSubmit(func(_ context.Context, output any, _ form.Methods) error {
			outputs = append(outputs, output)
			submittingDuringHandler = store.IsSubmitting()
			return nil
		}),
	)

	if _, err := store.Validate(context.Background()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	want := []errorSummary{{Field: "email", Type: "email"}, {Field: "password", Type: "min_length"}}
	if diff := cmp.Diff(want, summarize(store.Errors())); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	store.Update(map[string]any{"email": "a@b.com", "password": "12345678"})
	submitted, err := store.Submit(context.Background())
	if err != nil || !submitted {
		t.Fatalf("expected submit, got submitted=%v err=%v", submitted, err)
	}

	wantOutputs := []any{map[string]any{"email": "a@b.com", "password": "12345678"}}
	if diff := cmp.Diff(wantOutputs, outputs); diff != "" {
		t.Fatalf("handler outputs mismatch (-want +got):\n%s", diff)
	}
	if got := len(store.Errors()); got != 0 {
		t.Fatalf("expected no errors, got %v", store.Errors())
	}
	if !submittingDuringHandler {
		t.Fatalf("expected IsSubmitting while the handler runs")
	}
	if store.IsSubmitting() {
		t.Fatalf("expected IsSubmitting to clear after submit")
	}

	var decoded struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := form.DecodeOutput(store.Output(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Email != "a@b.com" || decoded.Password != "12345678" {
		t.Fatalf("unexpected decoded output %+v", decoded)
	}
}

func TestSubmit_SwallowsHandlerFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler form.SubmitFunc
	}{
		{name: "error", handler: func(context.Context, any, form.Methods) error { return errors.New("backend down") }},
		{name: "panic", handler: func(context.Context, any, form.Methods) error { panic("boom") }},
		{name: "no handler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []form.Option{}
			if tt.handler != nil {
				opts = append(opts, form.WithSubmit(tt.handler))
			}
			store := form.New(emptySignup(), opts...)

			submitted, err := store.Submit(context.Background())
			if err != nil || !submitted {
				t.Fatalf("expected submit to succeed, got submitted=%v err=%v", submitted, err)
			}
			if store.IsSubmitting() {
				t.Fatalf("expected IsSubmitting to clear")
			}
		})
	}
}

func TestSubmit_HandlerReportsThroughMethods(t *testing.T) {
	store := form.New(map[string]any{"email": "a@b.com", "password": "12345678"},
		form.WithSchema(signupSchema()),
		form.WithSubmit(func(_ context.Context, _ any, m form.Methods) error {
			m.AddError("email", form.NewFieldError("server", "already registered"))
			return m.UpdateField("password", "")
		}),
	)

	if _, err := store.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if diff := cmp.Diff([]string{"already registered"}, store.Errors().Messages("email")); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if value, _ := store.Value("password"); value != "" {
		t.Fatalf("expected handler update to apply, got %#v", value)
	}
}

func TestSubmit_OutputIsACopy(t *testing.T) {
	store := form.New(map[string]any{"tags": []any{"a"}},
		form.WithSubmit(func(_ context.Context, output any, _ form.Methods) error {
			output.(map[string]any)["tags"].([]any)[0] = "mutated"
			return nil
		}),
	)
	if _, err := store.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"tags": []any{"a"}}, store.Output()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_Overlap(t *testing.T) {
	newStore := func(guard bool, entered chan<- struct{}, release <-chan struct{}, calls *atomic.Int32) *form.Store {
		opts := []form.Option{form.WithSubmit(func(context.Context, any, form.Methods) error {
			if calls.Add(1) == 1 {
				close(entered)
				<-release
			}
			return nil
		})}
		if guard {
			opts = append(opts, form.WithSubmitGuard())
		}
		return form.New(emptySignup(), opts...)
	}

	t.Run("guarded", func(t *testing.T) {
		var calls atomic.Int32
		entered, release := make(chan struct{}), make(chan struct{})
		store := newStore(true, entered, release, &calls)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Submit(context.Background())
		}()
		<-entered

		if _, err := store.Submit(context.Background()); !errors.Is(err, form.ErrSubmitInProgress) {
			t.Errorf("expected ErrSubmitInProgress, got %v", err)
		}
		if !store.IsSubmitting() {
			t.Errorf("expected first submit to be in flight")
		}
		close(release)
		wg.Wait()

		if got := calls.Load(); got != 1 {
			t.Fatalf("expected one handler call, got %d", got)
		}
		if store.IsSubmitting() {
			t.Fatalf("expected IsSubmitting to clear")
		}
	})

	t.Run("default", func(t *testing.T) {
		var calls atomic.Int32
		entered, release := make(chan struct{}), make(chan struct{})
		store := newStore(false, entered, release, &calls)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Submit(context.Background())
		}()
		<-entered

		if submitted, err := store.Submit(context.Background()); err != nil || !submitted {
			t.Errorf("expected overlapping submit to run, got submitted=%v err=%v", submitted, err)
		}
		if !store.IsSubmitting() {
			t.Errorf("expected first submit to still be in flight")
		}
		close(release)
		wg.Wait()

		if got := calls.Load(); got != 2 {
			t.Fatalf("expected two handler calls, got %d", got)
		}
		if store.IsSubmitting() {
			t.Fatalf("expected IsSubmitting to clear")
		}
	})
}

func TestAddError_AppendsInOrderAndClearErrorsScenario(t *testing.T) {
	store := form.New(emptySignup())
	store.AddError("email", form.NewFieldError("server", "taken"))
	store.AddError("password", form.NewFieldError("server", "too common"))
	store.AddError("password", form.NewFieldError("server", "seen in a breach"))

	store.ClearErrors("email")

	want := form.Errors{
		"password": {
			form.NewFieldError("server", "too common"),
			form.NewFieldError("server", "seen in a breach"),
		},
	}
	if diff := cmp.Diff(want, store.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	store.ClearErrors()
	if got := len(store.Errors()); got != 0 {
		t.Fatalf("expected every error cleared, got %v", store.Errors())
	}
}

func TestClearErrors_ManyNamesAndCanonicalKeys(t *testing.T) {
	store := form.New(map[string]any{})
	store.AddError("users[0].email", form.NewFieldError("server", "bad"))
	store.AddError("users.0.name", form.NewFieldError("server", "bad"))
	store.AddError("title", form.NewFieldError("server", "bad"))

	if got := store.FieldErrors("users[0][email]"); len(got) != 1 {
		t.Fatalf("expected canonical lookup to find the error, got %v", got)
	}

	store.ClearErrors("users[0].email", "users.0.name")
	if diff := cmp.Diff([]string{"title"}, sortedKeys(store.Errors())); diff != "" {
		t.Fatalf("remaining keys mismatch (-want +got):\n%s", diff)
	}
	if got := store.FieldErrors("missing"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestReset(t *testing.T) {
	dirty := func() *form.Store {
		store := form.New(emptySignup())
		store.Update(map[string]any{"email": "a@b.com", "password": "x"})
		store.AddError("email", form.NewFieldError("server", "taken"))
		return store
	}

	tests := []struct {
		name       string
		opts       []form.ResetOption
		wantValues map[string]any
		wantErrors bool
		wantBase   map[string]any
	}{
		{
			name:       "defaults",
			wantValues: emptySignup(),
			wantBase:   emptySignup(),
		},
		{
			name:       "keep values",
			opts:       []form.ResetOption{form.KeepValues()},
			wantValues: map[string]any{"email": "a@b.com", "password": "x"},
			wantBase:   emptySignup(),
		},
		{
			name:       "keep errors",
			opts:       []form.ResetOption{form.KeepErrors()},
			wantValues: emptySignup(),
			wantErrors: true,
			wantBase:   emptySignup(),
		},
		{
			name:       "new baseline",
			opts:       []form.ResetOption{form.WithInitialValues(map[string]any{"email": "new@b.com", "password": ""})},
			wantValues: map[string]any{"email": "new@b.com", "password": ""},
			wantBase:   map[string]any{"email": "new@b.com", "password": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := dirty()
			store.Reset(tt.opts...)

			if diff := cmp.Diff(tt.wantValues, store.Values()); diff != "" {
				t.Fatalf("values mismatch (-want +got):\n%s", diff)
			}
			if got := store.Errors().Has("email"); got != tt.wantErrors {
				t.Fatalf("expected errors kept=%v, got %v", tt.wantErrors, got)
			}
			if diff := cmp.Diff(tt.wantBase, store.InitialValues()); diff != "" {
				t.Fatalf("baseline mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResetField(t *testing.T) {
	store := form.New(map[string]any{"email": "", "password": "", "profile": map[string]any{"name": "Ada"}})
	store.Update(map[string]any{"email": "a@b.com", "password": "secret", "profile": map[string]any{"name": "Grace"}})
	store.AddError("email", form.NewFieldError("server", "taken"))
	store.AddError("password", form.NewFieldError("server", "weak"))

	if err := store.ResetField("email", form.WithInitialValue("seed@b.com")); err != nil {
		t.Fatalf("reset field: %v", err)
	}
	want := map[string]any{"email": "seed@b.com", "password": "secret", "profile": map[string]any{"name": "Grace"}}
	if diff := cmp.Diff(want, store.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	wantBase := map[string]any{"email": "seed@b.com", "password": "", "profile": map[string]any{"name": "Ada"}}
	if diff := cmp.Diff(wantBase, store.InitialValues()); diff != "" {
		t.Fatalf("baseline mismatch (-want +got):\n%s", diff)
	}
	if store.Errors().Has("email") || !store.Errors().Has("password") {
		t.Fatalf("expected only email errors cleared, got %v", store.Errors())
	}

	if err := store.ResetField("profile.name", form.KeepErrors()); err != nil {
		t.Fatalf("reset field: %v", err)
	}
	if value, _ := store.Value("profile.name"); value != "Ada" {
		t.Fatalf("expected nested reset, got %#v", value)
	}

	if err := store.ResetField("password", form.KeepValues()); err != nil {
		t.Fatalf("reset field: %v", err)
	}
	if value, _ := store.Value("password"); value != "secret" || store.Errors().Has("password") {
		t.Fatalf("expected value kept and errors cleared, got %#v %v", value, store.Errors())
	}

	if err := store.UpdateField("nickname", "ace"); err != nil {
		t.Fatalf("update field: %v", err)
	}
	if err := store.ResetField("nickname"); err != nil {
		t.Fatalf("reset field without baseline: %v", err)
	}
	if value, _ := store.Value("nickname"); value != "ace" {
		t.Fatalf("field without baseline should keep its value, got %#v", value)
	}
}
