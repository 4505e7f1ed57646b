// Package form holds the state of one HTML form: its values, the errors
// attached to each field path and whether a submission is in flight.
//
// A Store validates its values through a schema.Validator, groups the
// reported issues by canonical field path and hands the parsed output to a
// submit handler. Bindings (HTTP handlers, terminal prompts) observe the
// store through Subscribe or poll Snapshot and mutate it through Update,
// UpdateField, Field, AddError, ClearErrors, Reset and ResetField.
//
//	store := form.New(map[string]any{"email": "", "password": ""},
//		form.WithSchema(signup),
//		form.WithSubmit(func(ctx context.Context, output any, m form.Methods) error {
//			return createAccount(ctx, output)
//		}),
//	)
//	submitted, err := store.Submit(ctx)
//
// Field paths use dots for object keys and brackets for array indexes, for
// example "users[0].email". The empty path addresses the form as a whole.
package form
