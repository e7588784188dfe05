package html

import (
	"fmt"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/render"
)

// Row kinds. Fieldsets are flattened into open/close markers so the layout
// templates stay non-recursive.
const (
	rowElement = "element"
	rowOpen    = "open"
	rowClose   = "close"
)

func buildView(desc model.Descriptor, opts render.RenderOptions) map[string]any {
	hidden := render.MergeHiddenFields(opts.Hidden, render.Marker(desc))
	rows := make([]map[string]any, 0, len(desc.Elements))
	multipart := false

	var walk func(elements []model.Element)
	walk = func(elements []model.Element) {
		for _, el := range elements {
			switch el.Type {
			case model.ElementValue:
				continue
			case model.ElementHidden:
				hidden = render.MergeHiddenFields(hidden, render.Hidden(el.Name, currentText(el, opts.Values)))
				continue
			case model.ElementFieldset:
				rows = append(rows, map[string]any{
					"kind":  rowOpen,
					"id":    elementID(desc.Name, el.Name),
					"title": el.Title,
				})
				walk(el.Elements)
				rows = append(rows, map[string]any{"kind": rowClose})
				continue
			case model.ElementFile:
				multipart = true
			}
			rows = append(rows, elementRow(desc.Name, el, opts))
		}
	}
	walk(desc.Elements)

	fields := render.SortedHiddenFields(hidden)
	hiddenRows := make([]map[string]any, 0, len(fields))
	for _, field := range fields {
		hiddenRows = append(hiddenRows, map[string]any{"name": field.Name, "value": field.Value})
	}

	return map[string]any{
		"form": map[string]any{
			"name":      desc.Name,
			"method":    desc.Method,
			"action":    desc.Action,
			"jsform":    desc.JSONForm,
			"multipart": multipart,
		},
		"errors": opts.Errors.Form,
		"rows":   rows,
		"hidden": hiddenRows,
		"theme":  themeView(opts.Theme),
	}
}

func elementRow(form string, el model.Element, opts render.RenderOptions) map[string]any {
	row := map[string]any{
		"kind":        rowElement,
		"type":        string(el.Type),
		"input":       inputType(el.Type),
		"id":          elementID(form, el.Name),
		"name":        el.Name,
		"title":       el.Title,
		"required":    el.Required(),
		"description": sanitizeMarkup(el.Description),
		"help":        renderHelp(el.Help),
	}

	classes := []string{"pieform-element", string(el.Type)}
	if el.Required() {
		classes = append(classes, "required")
	}
	if messages := opts.Errors.Field(el.Name); len(messages) > 0 {
		row["error"] = strings.Join(messages, " ")
		classes = append(classes, "error")
	}
	row["classes"] = strings.Join(classes, " ")

	switch el.Type {
	case model.ElementSelect, model.ElementRadio:
		selected := make(map[string]struct{})
		for _, value := range currentList(el, opts.Values) {
			selected[value] = struct{}{}
		}
		options := make([]map[string]any, 0, len(el.Options))
		for _, opt := range el.Options {
			_, on := selected[opt.Value]
			options = append(options, map[string]any{"value": opt.Value, "label": opt.Label, "selected": on})
		}
		row["options"] = options
		row["multiple"] = el.Multiple
	case model.ElementCheckbox:
		row["checked"] = checked(el, opts.Values)
	case model.ElementSubmit, model.ElementCancel:
		row["label"] = fmt.Sprint(el.Value)
		row["cancel"] = model.CancelField(el.Name)
	case model.ElementSubmitCancel:
		labels := buttonLabels(el.Value)
		row["label"] = labels[0]
		row["cancel_label"] = labels[1]
		row["cancel"] = model.CancelField(el.Name)
	case model.ElementHTML, model.ElementMarkup:
		markup, _ := el.Value.(string)
		row["markup"] = sanitizeMarkup(markup)
	default:
		row["value"] = currentText(el, opts.Values)
	}
	return row
}

func elementID(form, name string) string {
	return form + "_" + name
}

func inputType(t model.ElementType) string {
	switch t {
	case model.ElementPassword:
		return "password"
	case model.ElementEmail:
		return "email"
	case model.ElementDate:
		return "date"
	case model.ElementFile:
		return "file"
	default:
		return "text"
	}
}

// current resolves the shown value: the submitted value, then the element
// value, then its default.
func current(el model.Element, values map[string]any) any {
	if v, ok := values[el.Name]; ok {
		return v
	}
	if el.Value != nil {
		return el.Value
	}
	return el.DefaultValue
}

func currentText(el model.Element, values map[string]any) string {
	switch v := current(el, values).(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	default:
		return fmt.Sprint(v)
	}
}

func currentList(el model.Element, values map[string]any) []string {
	switch v := current(el, values).(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func checked(el model.Element, values map[string]any) bool {
	switch v := current(el, values).(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "0"
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

func buttonLabels(value any) [2]string {
	labels := [2]string{"Submit", "Cancel"}
	switch v := value.(type) {
	case []string:
		for i := 0; i < len(v) && i < 2; i++ {
			labels[i] = v[i]
		}
	case []any:
		for i := 0; i < len(v) && i < 2; i++ {
			labels[i] = fmt.Sprint(v[i])
		}
	}
	return labels
}

func themeView(cfg *theme.RendererConfig) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	view := map[string]any{
		"name":     cfg.Theme,
		"variant":  cfg.Variant,
		"css_vars": cssVarsStyle(cfg.CSSVars),
	}
	if cfg.AssetURL != nil {
		view["stylesheet"] = cfg.AssetURL(StylesheetName)
	}
	return view
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(".pieform {")
	for _, key := range keys {
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";")
	}
	b.WriteString(" }")
	return b.String()
}
