package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Notes is the free-form notes context sent with a question.
//
// Clients send either a plain string or a JSON object/array of strings
// (e.g. {"currentNote": "Note Title: ..."}). Structured values are flattened
// into text, joining entries with a blank line and ordering object keys.
type Notes string

// String returns the notes text.
func (n Notes) String() string {
	return string(n)
}

// UnmarshalJSON accepts strings, numbers, booleans, arrays and objects.
func (n *Notes) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Notes(flattenNotes(v))
	return nil
}

func flattenNotes(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := flattenNotes(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := flattenNotes(val[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	default:
		return fmt.Sprint(val)
	}
}
