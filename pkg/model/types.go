package model

// ElementType is the closed set of element kinds a descriptor may declare.
type ElementType string

const (
	ElementText         ElementType = "text"
	ElementTextarea     ElementType = "textarea"
	ElementPassword     ElementType = "password"
	ElementSelect       ElementType = "select"
	ElementRadio        ElementType = "radio"
	ElementCheckbox     ElementType = "checkbox"
	ElementHidden       ElementType = "hidden"
	ElementValue        ElementType = "value"
	ElementDate         ElementType = "date"
	ElementEmail        ElementType = "email"
	ElementFile         ElementType = "file"
	ElementHTML         ElementType = "html"
	ElementMarkup       ElementType = "markup"
	ElementFieldset     ElementType = "fieldset"
	ElementSubmit       ElementType = "submit"
	ElementCancel       ElementType = "cancel"
	ElementSubmitCancel ElementType = "submitcancel"
)

var knownElementTypes = map[ElementType]struct{}{
	ElementText: {}, ElementTextarea: {}, ElementPassword: {}, ElementSelect: {},
	ElementRadio: {}, ElementCheckbox: {}, ElementHidden: {}, ElementValue: {},
	ElementDate: {}, ElementEmail: {}, ElementFile: {}, ElementHTML: {},
	ElementMarkup: {}, ElementFieldset: {}, ElementSubmit: {}, ElementCancel: {},
	ElementSubmitCancel: {},
}

// Known reports whether t is a recognised element type.
func (t ElementType) Known() bool {
	_, ok := knownElementTypes[t]
	return ok
}

// Submits reports whether the element renders a submit control.
func (t ElementType) Submits() bool {
	return t == ElementSubmit || t == ElementSubmitCancel
}

// Cancels reports whether the element renders a cancel control.
func (t ElementType) Cancels() bool {
	return t == ElementCancel || t == ElementSubmitCancel
}

// CarriesValue reports whether the element contributes a value to the
// submitted set. Buttons, markup and fieldsets do not.
func (t ElementType) CarriesValue() bool {
	switch t {
	case ElementHTML, ElementMarkup, ElementFieldset, ElementSubmit, ElementCancel, ElementSubmitCancel:
		return false
	default:
		return true
	}
}

// Rule kinds understood by the dispatcher's field checks.
const (
	RuleRequired  = "required"
	RuleMinLength = "minlength"
	RuleMaxLength = "maxlength"
	RuleRegex     = "regex"
	RuleEmail     = "email"
	RuleInteger   = "integer"
	RuleMinValue  = "minvalue"
	RuleMaxValue  = "maxvalue"
	RuleURL       = "url"
)

// ruleOrder fixes evaluation order so the first reported failure is stable
// regardless of how the configuration literal listed its rules.
var ruleOrder = []string{
	RuleRequired,
	RuleMinLength,
	RuleMaxLength,
	RuleInteger,
	RuleMinValue,
	RuleMaxValue,
	RuleEmail,
	RuleURL,
	RuleRegex,
}

// Rule is a single field constraint. Value carries the rule argument encoded
// as a string ("true" for flag rules, the bound for length/value rules, the
// expression for regex rules).
type Rule struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

// Option is one choice of a select or radio element.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Element is a single entry of a descriptor. Order inside Descriptor.Elements
// and Element.Elements is display order.
type Element struct {
	Name         string            `json:"name"`
	Type         ElementType       `json:"type"`
	Title        string            `json:"title,omitempty"`
	Description  string            `json:"description,omitempty"`
	Help         string            `json:"help,omitempty"`
	Rules        []Rule            `json:"rules,omitempty"`
	DefaultValue any               `json:"defaultvalue,omitempty"`
	Value        any               `json:"value,omitempty"`
	Options      []Option          `json:"options,omitempty"`
	Multiple     bool              `json:"multiple,omitempty"`
	Goto         string            `json:"goto,omitempty"`
	Elements     []Element         `json:"elements,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Rule returns the rule of the given kind, if declared.
func (e Element) Rule(kind string) (Rule, bool) {
	for _, rule := range e.Rules {
		if rule.Kind == kind {
			return rule, true
		}
	}
	return Rule{}, false
}

// Required reports whether the element carries a required rule.
func (e Element) Required() bool {
	rule, ok := e.Rule(RuleRequired)
	return ok && rule.Value != "false"
}

// Descriptor is the built, structurally valid form definition consumed by the
// renderers and the dispatcher.
type Descriptor struct {
	Name             string            `json:"name"`
	Method           string            `json:"method"`
	Action           string            `json:"action,omitempty"`
	Renderer         string            `json:"renderer"`
	PluginType       string            `json:"plugintype,omitempty"`
	PluginName       string            `json:"pluginname,omitempty"`
	SuccessCallback  string            `json:"successcallback,omitempty"`
	ValidateCallback string            `json:"validatecallback,omitempty"`
	JSONForm         bool              `json:"jsform,omitempty"`
	Elements         []Element         `json:"elements"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Walk visits every element depth first, fieldset children after their
// fieldset. Returning false stops the walk.
func (d Descriptor) Walk(fn func(Element) bool) {
	walkElements(d.Elements, fn)
}

func walkElements(elements []Element, fn func(Element) bool) bool {
	for _, el := range elements {
		if !fn(el) {
			return false
		}
		if len(el.Elements) > 0 && !walkElements(el.Elements, fn) {
			return false
		}
	}
	return true
}

// Element finds an element by name anywhere in the descriptor.
func (d Descriptor) Element(name string) (Element, bool) {
	var (
		found Element
		ok    bool
	)
	d.Walk(func(el Element) bool {
		if el.Name == name {
			found, ok = el, true
			return false
		}
		return true
	})
	return found, ok
}

// Marker returns the POST field whose presence identifies a submission of
// this descriptor.
func (d Descriptor) Marker() string {
	return MarkerField(d.Name)
}

// MarkerField derives the submission marker field for a form name.
func MarkerField(name string) string {
	return "pieform_" + name
}

// CancelField derives the field a cancel button submits for an element.
func CancelField(element string) string {
	return "cancel_" + element
}

// SessionKeyField is the hidden field carrying the session key.
const SessionKeyField = "sesskey"

// SetDefault replaces the default value of the named element. It reports
// whether the element exists.
func (d *Descriptor) SetDefault(name string, value any) bool {
	return updateElement(d.Elements, name, func(el *Element) { el.DefaultValue = value })
}

// SetValue replaces the stored value of the named element, which is what
// value, hidden and button elements use.
func (d *Descriptor) SetValue(name string, value any) bool {
	return updateElement(d.Elements, name, func(el *Element) { el.Value = value })
}

func updateElement(elements []Element, name string, fn func(*Element)) bool {
	for i := range elements {
		if elements[i].Name == name {
			fn(&elements[i])
			return true
		}
		if updateElement(elements[i].Elements, name, fn) {
			return true
		}
	}
	return false
}
