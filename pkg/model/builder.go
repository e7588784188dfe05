package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrConfig marks every structural problem found while building a descriptor.
// Configuration errors are programming errors and are expected to be fatal
// for the page that produced them.
var ErrConfig = errors.New("model builder: invalid form configuration")

// Renderer layouts understood by the bundled HTML renderer.
const (
	RendererDiv   = "div"
	RendererTable = "table"
)

const (
	MethodPost = "post"
	MethodGet  = "get"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var knownRenderers = map[string]struct{}{
	RendererDiv:   {},
	RendererTable: {},
}

// BuilderOption configures the builder behaviour.
type BuilderOption func(*Builder)

// WithLabeler overrides the function used to derive element titles when the
// configuration leaves them empty. Pass nil to keep titles empty.
func WithLabeler(labeler func(string) string) BuilderOption {
	return func(b *Builder) {
		b.labeler = labeler
	}
}

// WithDecorators appends decorators that run after a descriptor is built.
func WithDecorators(decorators ...Decorator) BuilderOption {
	return func(b *Builder) {
		b.decorators = append(b.decorators, decorators...)
	}
}

// WithRenderers extends the set of accepted renderer hints, for callers that
// register renderers beyond the bundled layouts.
func WithRenderers(names ...string) BuilderOption {
	return func(b *Builder) {
		for _, name := range names {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				b.renderers[trimmed] = struct{}{}
			}
		}
	}
}

// Builder turns configuration literals into descriptors.
type Builder struct {
	labeler    func(string) string
	decorators []Decorator
	renderers  map[string]struct{}
}

// NewBuilder returns a Builder using DefaultLabeler unless overridden.
func NewBuilder(options ...BuilderOption) *Builder {
	b := &Builder{
		labeler:   DefaultLabeler,
		renderers: make(map[string]struct{}, len(knownRenderers)),
	}
	for name := range knownRenderers {
		b.renderers[name] = struct{}{}
	}
	for _, opt := range options {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

var defaultBuilder = NewBuilder()

// Build builds cfg with the default builder.
func Build(cfg Config) (Descriptor, error) {
	return defaultBuilder.Build(cfg)
}

// MustBuild panics when cfg is malformed. Useful for package-level forms.
func MustBuild(cfg Config) Descriptor {
	desc, err := Build(cfg)
	if err != nil {
		panic(err)
	}
	return desc
}

// Build validates the structure of cfg and returns the descriptor. Field
// values are not looked at here; only the shape of the configuration.
func (b *Builder) Build(cfg Config) (Descriptor, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return Descriptor{}, fmt.Errorf("%w: name is required", ErrConfig)
	}
	if !identifierPattern.MatchString(name) {
		return Descriptor{}, fmt.Errorf("%w: form %q: name must be an identifier", ErrConfig, name)
	}

	method := strings.ToLower(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = MethodPost
	}
	if method != MethodPost && method != MethodGet {
		return Descriptor{}, fmt.Errorf("%w: form %q: unsupported method %q", ErrConfig, name, cfg.Method)
	}

	renderer := strings.TrimSpace(cfg.Renderer)
	if renderer == "" {
		renderer = RendererDiv
	}
	if _, ok := b.renderers[renderer]; !ok {
		return Descriptor{}, fmt.Errorf("%w: form %q: unknown renderer %q", ErrConfig, name, renderer)
	}

	seen := make(map[string]struct{})
	elements, err := b.buildElements(name, cfg.Elements, seen)
	if err != nil {
		return Descriptor{}, err
	}

	desc := Descriptor{
		Name:             name,
		Method:           method,
		Action:           strings.TrimSpace(cfg.Action),
		Renderer:         renderer,
		PluginType:       strings.TrimSpace(cfg.PluginType),
		PluginName:       strings.TrimSpace(cfg.PluginName),
		SuccessCallback:  strings.TrimSpace(cfg.SuccessCallback),
		ValidateCallback: strings.TrimSpace(cfg.ValidateCallback),
		JSONForm:         cfg.JSONForm,
		Elements:         elements,
		Metadata:         copyStrings(cfg.Metadata),
	}

	for _, decorator := range b.decorators {
		if decorator == nil {
			continue
		}
		if err := decorator.Decorate(&desc); err != nil {
			return Descriptor{}, fmt.Errorf("model builder: decorate form %q: %w", name, err)
		}
	}
	return desc, nil
}

func (b *Builder) buildElements(form string, configs []ElementConfig, seen map[string]struct{}) ([]Element, error) {
	if len(configs) == 0 {
		return nil, nil
	}
	out := make([]Element, 0, len(configs))
	for _, cfg := range configs {
		el, err := b.buildElement(form, cfg, seen)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func (b *Builder) buildElement(form string, cfg ElementConfig, seen map[string]struct{}) (Element, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return Element{}, fmt.Errorf("%w: form %q: element name is required", ErrConfig, form)
	}
	if !identifierPattern.MatchString(name) {
		return Element{}, fmt.Errorf("%w: form %q: element %q: name must be an identifier", ErrConfig, form, name)
	}
	if _, dup := seen[name]; dup {
		return Element{}, fmt.Errorf("%w: form %q: duplicate element %q", ErrConfig, form, name)
	}
	seen[name] = struct{}{}

	typ := ElementType(strings.ToLower(strings.TrimSpace(cfg.Type)))
	if typ == "" {
		return Element{}, fmt.Errorf("%w: form %q: element %q: type is required", ErrConfig, form, name)
	}
	if !typ.Known() {
		return Element{}, fmt.Errorf("%w: form %q: element %q: unrecognised type %q", ErrConfig, form, name, cfg.Type)
	}

	rules, err := buildRules(cfg.Rules)
	if err != nil {
		return Element{}, fmt.Errorf("%w: form %q: element %q: %v", ErrConfig, form, name, err)
	}

	el := Element{
		Name:         name,
		Type:         typ,
		Title:        cfg.Title,
		Description:  cfg.Description,
		Help:         cfg.Help,
		Rules:        rules,
		DefaultValue: cfg.DefaultValue,
		Value:        cfg.Value,
		Multiple:     cfg.Multiple,
		Goto:         strings.TrimSpace(cfg.Goto),
		Metadata:     copyStrings(cfg.Metadata),
	}
	if el.Title == "" && b.labeler != nil && typ.CarriesValue() && typ != ElementHidden && typ != ElementValue {
		el.Title = b.labeler(name)
	}

	switch typ {
	case ElementSelect, ElementRadio:
		if len(cfg.Options) == 0 {
			return Element{}, fmt.Errorf("%w: form %q: element %q: %s requires options", ErrConfig, form, name, typ)
		}
		el.Options = make([]Option, 0, len(cfg.Options))
		values := make(map[string]struct{}, len(cfg.Options))
		for _, opt := range cfg.Options {
			if _, dup := values[opt.Value]; dup {
				return Element{}, fmt.Errorf("%w: form %q: element %q: duplicate option %q", ErrConfig, form, name, opt.Value)
			}
			values[opt.Value] = struct{}{}
			label := opt.Label
			if label == "" {
				label = opt.Value
			}
			el.Options = append(el.Options, Option{Value: opt.Value, Label: label})
		}
	case ElementFieldset:
		children, err := b.buildElements(form, cfg.Elements, seen)
		if err != nil {
			return Element{}, err
		}
		el.Elements = children
	case ElementSubmitCancel:
		el.Value = submitCancelLabels(cfg.Value)
	case ElementSubmit, ElementCancel:
		if el.Value == nil {
			el.Value = defaultButtonLabel(typ)
		}
	}

	if typ != ElementFieldset && len(cfg.Elements) > 0 {
		return Element{}, fmt.Errorf("%w: form %q: element %q: only fieldsets may nest elements", ErrConfig, form, name)
	}
	return el, nil
}

func buildRules(raw map[string]any) ([]Rule, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	known := make(map[string]struct{}, len(ruleOrder))
	for _, kind := range ruleOrder {
		known[kind] = struct{}{}
	}
	for kind := range raw {
		if _, ok := known[strings.ToLower(kind)]; !ok {
			return nil, fmt.Errorf("unrecognised rule %q", kind)
		}
	}

	normalised := make(map[string]any, len(raw))
	for kind, value := range raw {
		normalised[strings.ToLower(kind)] = value
	}

	var rules []Rule
	for _, kind := range ruleOrder {
		value, ok := normalised[kind]
		if !ok {
			continue
		}
		rule, keep, err := buildRule(kind, value)
		if err != nil {
			return nil, err
		}
		if keep {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func buildRule(kind string, value any) (Rule, bool, error) {
	switch kind {
	case RuleRequired, RuleEmail, RuleInteger, RuleURL:
		on, err := flagValue(value)
		if err != nil {
			return Rule{}, false, fmt.Errorf("rule %s: %w", kind, err)
		}
		return Rule{Kind: kind, Value: "true"}, on, nil
	case RuleMinLength, RuleMaxLength:
		n, err := intValue(value)
		if err != nil || n < 0 {
			return Rule{}, false, fmt.Errorf("rule %s: expected a non-negative integer, got %v", kind, value)
		}
		return Rule{Kind: kind, Value: strconv.Itoa(n)}, true, nil
	case RuleMinValue, RuleMaxValue:
		text := strings.TrimSpace(fmt.Sprint(value))
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return Rule{}, false, fmt.Errorf("rule %s: expected a number, got %v", kind, value)
		}
		return Rule{Kind: kind, Value: text}, true, nil
	case RuleRegex:
		pattern, ok := value.(string)
		if !ok || pattern == "" {
			return Rule{}, false, fmt.Errorf("rule regex: expected a pattern string")
		}
		if _, err := compilePattern(pattern); err != nil {
			return Rule{}, false, fmt.Errorf("rule regex: %w", err)
		}
		return Rule{Kind: kind, Value: pattern}, true, nil
	}
	return Rule{}, false, fmt.Errorf("unrecognised rule %q", kind)
}

// CompilePattern compiles a regex rule value. Patterns may be written with
// slash delimiters ("/^[a-z]+$/i") followed by any of the flags i, m and s.
// A pattern that starts with a slash but ends in anything other than flags,
// such as "/users/x", is compiled as written.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	return compilePattern(pattern)
}

const patternFlags = "ims"

func compilePattern(pattern string) (*regexp.Regexp, error) {
	expr := pattern
	if len(expr) >= 2 && expr[0] == '/' {
		end := strings.LastIndex(expr, "/")
		flags := expr[end+1:]
		if end > 0 && strings.Trim(flags, patternFlags) == "" {
			expr = expr[1:end]
			if flags != "" {
				expr = "(?" + flags + ")" + expr
			}
		}
	}
	return regexp.Compile(expr)
}

func flagValue(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("expected a boolean, got %q", v)
		}
		return parsed, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", value)
	}
}

func intValue(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("not an integer")
		}
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("not an integer")
	}
}

func submitCancelLabels(value any) []string {
	labels := []string{"Submit", "Cancel"}
	switch v := value.(type) {
	case []string:
		copy(labels, v)
	case []any:
		for i := 0; i < len(v) && i < 2; i++ {
			labels[i] = fmt.Sprint(v[i])
		}
	case string:
		if v != "" {
			labels[0] = v
		}
	}
	return labels
}

func defaultButtonLabel(typ ElementType) string {
	if typ == ElementCancel {
		return "Cancel"
	}
	return "Submit"
}

func copyStrings(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
