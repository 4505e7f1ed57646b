package form

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeOutput copies a validator output into dst, which must be a non-nil
// pointer. Output trees are plain JSON values, so struct fields map through
// their json tags.
//
//	var signup struct {
//		Email    string `json:"email"`
//		Password string `json:"password"`
//	}
//	if err := form.DecodeOutput(output, &signup); err != nil { ... }
func DecodeOutput(output any, dst any) error {
	if dst == nil {
		return errors.New("form: decode output: destination is nil")
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("form: decode output: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("form: decode output: %w", err)
	}
	return nil
}
