package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mahara/pieform/pkg/model"
)

// HiddenField represents a hidden input emitted alongside the visible
// elements.
type HiddenField struct {
	Name  string
	Value string
}

// Hidden returns a HiddenField for an arbitrary name/value pair.
func Hidden(name string, value any) HiddenField {
	return HiddenField{
		Name:  strings.TrimSpace(name),
		Value: fmt.Sprint(value),
	}
}

// Marker returns the hidden field that identifies a submission of desc.
func Marker(desc model.Descriptor) HiddenField {
	return HiddenField{Name: desc.Marker(), Value: ""}
}

// SessionKey returns the hidden field carrying the session key. An empty key
// yields a field with an empty name, which the merge helpers drop.
func SessionKey(key string) HiddenField {
	if strings.TrimSpace(key) == "" {
		return HiddenField{}
	}
	return HiddenField{Name: model.SessionKeyField, Value: key}
}

// SubmissionFields returns the hidden fields every rendered form carries.
func SubmissionFields(desc model.Descriptor, sessionKey string, extra map[string]string) map[string]string {
	out := MergeHiddenFields(extra, Marker(desc), SessionKey(sessionKey))
	if out == nil {
		out = map[string]string{desc.Marker(): ""}
	}
	return out
}

// MergeHiddenFields returns a copy of base with the provided fields applied.
// Empty names are ignored; later fields win on name collisions.
func MergeHiddenFields(base map[string]string, fields ...HiddenField) map[string]string {
	if len(base) == 0 && len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(fields))
	for key, value := range base {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			out[trimmed] = value
		}
	}
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		out[name] = field.Value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SortedHiddenFields normalises and sorts hidden fields for deterministic
// rendering. Empty names are dropped.
func SortedHiddenFields(fields map[string]string) []HiddenField {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	clean := make(map[string]string, len(fields))
	for name, value := range fields {
		key := strings.TrimSpace(name)
		if key == "" {
			continue
		}
		if _, dup := clean[key]; !dup {
			names = append(names, key)
		}
		clean[key] = value
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	result := make([]HiddenField, 0, len(names))
	for _, name := range names {
		result = append(result, HiddenField{Name: name, Value: clean[name]})
	}
	return result
}
