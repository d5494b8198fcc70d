package models

import "strconv"

// ResourceID reads a JSON:API id, which the API sends either as a string or
// as a number. ok is false for any other type.
func ResourceID(v any) (id string, ok bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	default:
		return "", false
	}
}
