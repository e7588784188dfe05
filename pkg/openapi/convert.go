package openapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mahara/pieform/pkg/model"
)

var (
	// ErrOperationNotFound is returned when no operation carries the id.
	ErrOperationNotFound = errors.New("openapi: operation not found")
	// ErrNoRequestBody is returned for operations without a usable form body.
	ErrNoRequestBody = errors.New("openapi: operation has no object request body")
)

// Strings longer than this are edited in a textarea.
const textareaThreshold = 255

// Metadata keys recorded on generated configs.
const (
	MetaOperation = "openapi.operation"
	MetaPath      = "openapi.path"
	MetaMethod    = "openapi.method"
)

// bodyContentTypes lists request body media types in preference order.
var bodyContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// Operation summarises one operation of a document.
type Operation struct {
	ID      string
	Method  string
	Path    string
	Summary string
	HasBody bool
}

type operationRef struct {
	Operation
	op *openapi3.Operation
}

// Options tunes document loading.
type Options struct {
	// AllowExternalRefs lets kin-openapi resolve references outside the document.
	AllowExternalRefs bool
	// Validate runs the document validator before conversion.
	Validate bool
}

// Operations lists the document's operations sorted by id. Operations without
// an operationId are named after their method and path.
func Operations(ctx context.Context, raw []byte, opts Options) ([]Operation, error) {
	refs, err := operations(ctx, raw, opts)
	if err != nil {
		return nil, err
	}
	out := make([]Operation, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Operation)
	}
	return out, nil
}

// ConfigFromOperation builds a form configuration from the request body of
// the operation named operationID. Body properties become elements sorted by
// name and a submit button is appended.
func ConfigFromOperation(ctx context.Context, raw []byte, operationID string, opts ...Options) (model.Config, error) {
	var options Options
	if len(opts) > 0 {
		options = opts[0]
	}
	refs, err := operations(ctx, raw, options)
	if err != nil {
		return model.Config{}, err
	}

	var found *operationRef
	for i := range refs {
		if refs[i].ID == operationID {
			found = &refs[i]
			break
		}
	}
	if found == nil {
		return model.Config{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}

	schema := bodySchema(found.op)
	if schema == nil {
		return model.Config{}, fmt.Errorf("%w: %q", ErrNoRequestBody, operationID)
	}

	method := model.MethodPost
	if found.Method == http.MethodGet {
		method = model.MethodGet
	}
	cfg := model.Config{
		Name:   identifier(found.ID),
		Method: method,
		Action: found.Path,
		Metadata: map[string]string{
			MetaOperation: found.ID,
			MetaPath:      found.Path,
			MetaMethod:    found.Method,
		},
	}

	cfg.Elements = elementsFrom(schema, "")
	cfg.Elements = append(cfg.Elements, model.ElementConfig{
		Name:  submitName(cfg.Elements),
		Type:  string(model.ElementSubmit),
		Value: "Submit",
	})
	return cfg, nil
}

func operations(ctx context.Context, raw []byte, opts Options) ([]operationRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{
		Context:               ctx,
		IsExternalRefsAllowed: opts.AllowExternalRefs,
	}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if opts.Validate {
		if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, errors.New("openapi: document does not contain any paths")
	}

	var refs []operationRef
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			refs = append(refs, operationRef{
				Operation: Operation{
					ID:      id,
					Method:  strings.ToUpper(method),
					Path:    path,
					Summary: op.Summary,
					HasBody: bodySchema(op) != nil,
				},
				op: op,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func bodySchema(op *openapi3.Operation) *openapi3.Schema {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	if len(content) == 0 {
		return nil
	}
	var media *openapi3.MediaType
	for _, typ := range bodyContentTypes {
		if media = content.Get(typ); media != nil {
			break
		}
	}
	if media == nil {
		keys := make([]string, 0, len(content))
		for key := range content {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		media = content[keys[0]]
	}
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}
	schema := media.Schema.Value
	if len(schema.Properties) == 0 {
		return nil
	}
	return schema
}

func elementsFrom(schema *openapi3.Schema, prefix string) model.ElementConfigs {
	required := make(map[string]struct{}, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	elements := make(model.ElementConfigs, 0, len(names))
	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil || ref.Value.ReadOnly {
			continue
		}
		_, isRequired := required[name]
		elements = append(elements, elementFrom(prefix+identifier(name), ref.Value, isRequired))
	}
	return elements
}

func elementFrom(name string, prop *openapi3.Schema, required bool) model.ElementConfig {
	el := model.ElementConfig{
		Name:         name,
		Title:        prop.Title,
		Description:  prop.Description,
		DefaultValue: prop.Default,
		Type:         string(model.ElementText),
	}
	rules := map[string]any{}
	if required {
		rules[model.RuleRequired] = true
	}

	switch {
	case is(prop, openapi3.TypeObject) && len(prop.Properties) > 0:
		el.Type = string(model.ElementFieldset)
		el.DefaultValue = nil
		el.Elements = elementsFrom(prop, name+"_")
		return el
	case is(prop, openapi3.TypeBoolean):
		el.Type = string(model.ElementCheckbox)
	case len(prop.Enum) > 0:
		el.Type = string(model.ElementSelect)
		el.Options = enumOptions(prop.Enum)
	case is(prop, openapi3.TypeArray) && prop.Items != nil && prop.Items.Value != nil && len(prop.Items.Value.Enum) > 0:
		el.Type = string(model.ElementSelect)
		el.Multiple = true
		el.Options = enumOptions(prop.Items.Value.Enum)
	case is(prop, openapi3.TypeInteger):
		rules[model.RuleInteger] = true
		numberRules(prop, rules)
	case is(prop, openapi3.TypeNumber):
		numberRules(prop, rules)
	case is(prop, openapi3.TypeString):
		switch prop.Format {
		case "email":
			el.Type = string(model.ElementEmail)
			rules[model.RuleEmail] = true
		case "password":
			el.Type = string(model.ElementPassword)
		case "date", "date-time":
			el.Type = string(model.ElementDate)
		case "binary":
			el.Type = string(model.ElementFile)
		case "uri", "url":
			rules[model.RuleURL] = true
		}
		if el.Type == string(model.ElementText) && prop.MaxLength != nil && *prop.MaxLength > textareaThreshold {
			el.Type = string(model.ElementTextarea)
		}
		if prop.MinLength > 0 {
			rules[model.RuleMinLength] = int(prop.MinLength)
		}
		if prop.MaxLength != nil {
			rules[model.RuleMaxLength] = int(*prop.MaxLength)
		}
		if prop.Pattern != "" {
			rules[model.RuleRegex] = undelimited(prop.Pattern)
		}
	}

	if len(rules) > 0 {
		el.Rules = rules
	}
	return el
}

func numberRules(prop *openapi3.Schema, rules map[string]any) {
	if prop.Min != nil {
		rules[model.RuleMinValue] = *prop.Min
	}
	if prop.Max != nil {
		rules[model.RuleMaxValue] = *prop.Max
	}
}

func is(prop *openapi3.Schema, typ string) bool {
	return prop.Type != nil && prop.Type.Is(typ)
}

func enumOptions(values []any) model.OptionConfigs {
	out := make(model.OptionConfigs, 0, len(values))
	for _, value := range values {
		text := fmt.Sprint(value)
		out = append(out, model.OptionConfig{Value: text, Label: text})
	}
	return out
}

// identifier maps arbitrary names onto [A-Za-z_][A-Za-z0-9_]*.
func identifier(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func submitName(elements model.ElementConfigs) string {
	taken := map[string]struct{}{}
	var walk func(model.ElementConfigs)
	walk = func(list model.ElementConfigs) {
		for _, el := range list {
			taken[el.Name] = struct{}{}
			walk(el.Elements)
		}
	}
	walk(elements)

	name := "submit"
	for {
		if _, ok := taken[name]; !ok {
			return name
		}
		name += "_"
	}
}

// undelimited keeps a schema pattern literal when regex rules read slash
// delimiters: a pattern starting with "/" is wrapped in an extra pair.
func undelimited(pattern string) string {
	if strings.HasPrefix(pattern, "/") {
		return "/" + pattern + "/"
	}
	return pattern
}
