package form

import "github.com/mohae/deepcopy"

// deepCopy copies a value tree so callers never share maps or slices with
// the store.
func deepCopy(value any) any {
	if value == nil {
		return nil
	}
	return deepcopy.Copy(value)
}

func cloneValues(src map[string]any) map[string]any {
	if src == nil {
		return make(map[string]any)
	}
	out, ok := deepCopy(src).(map[string]any)
	if !ok || out == nil {
		return make(map[string]any)
	}
	return out
}
