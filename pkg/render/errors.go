package render

import (
	"sort"
	"strings"

	"github.com/mahara/pieform/pkg/model"
)

// ErrorMapping splits submission errors into field-level messages keyed by
// element name and form-level messages.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// Empty reports whether the mapping holds no message.
func (m ErrorMapping) Empty() bool {
	return len(m.Fields) == 0 && len(m.Form) == 0
}

// Field returns the messages for one element.
func (m ErrorMapping) Field(name string) []string {
	return m.Fields[name]
}

// MergeFormErrors concatenates and normalises multiple form-level error
// slices, trimming whitespace and removing duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// MapErrors attaches field messages to the descriptor's elements. Messages for
// names the descriptor does not declare, or for form-level keys, are kept as
// form-level errors so nothing is lost.
func MapErrors(desc model.Descriptor, fields map[string][]string, form ...string) ErrorMapping {
	mapping := ErrorMapping{Form: normalizeMessages(form)}
	if len(fields) == 0 {
		return mapping
	}

	names := make(map[string]struct{})
	desc.Walk(func(el model.Element) bool {
		names[el.Name] = struct{}{}
		return true
	})

	mapping.Fields = make(map[string][]string)
	for _, raw := range sortedFieldKeys(fields) {
		messages := normalizeMessages(fields[raw])
		if len(messages) == 0 {
			continue
		}
		name := strings.TrimSpace(raw)
		if _, ok := names[name]; !ok || isFormLevelKey(name) {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		mapping.Fields[name] = append(mapping.Fields[name], messages...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))

	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedFieldKeys(fields map[string][]string) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", "form", "__all__", "non_field_errors":
		return true
	default:
		return false
	}
}
