// Package tui fills descriptors in from a terminal. The collected values
// carry the form marker and the pressed button, so they can be handed
// straight to the dispatcher as if a browser had posted them.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mahara/pieform/internal/rules"
	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/render"
)

// Name is the registry name of the terminal renderer.
const Name = "tui"

// Filler prompts for every element of a descriptor.
type Filler struct {
	driver     PromptDriver
	out        io.Writer
	sessionKey string
	theme      Theme
}

var _ render.Renderer = (*Filler)(nil)

// New constructs a filler backed by survey unless a driver is supplied.
func New(options ...Option) *Filler {
	f := &Filler{}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver(f.out)
	}
	return f
}

// Name implements render.Renderer.
func (f *Filler) Name() string { return Name }

// ContentType implements render.Renderer.
func (f *Filler) ContentType() string { return "application/x-www-form-urlencoded" }

// Render implements render.Renderer by filling the form and encoding the
// collected values.
func (f *Filler) Render(ctx context.Context, desc model.Descriptor, opts render.RenderOptions) ([]byte, error) {
	if len(opts.Errors.Form) > 0 {
		for _, message := range opts.Errors.Form {
			if err := f.info(ctx, f.theme.ErrorPrefix+message); err != nil {
				return nil, err
			}
		}
	}
	values, err := f.fill(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	return []byte(values.Encode()), nil
}

// Fill prompts for each element in order and returns the submission values.
func (f *Filler) Fill(ctx context.Context, desc model.Descriptor) (url.Values, error) {
	return f.fill(ctx, desc, render.RenderOptions{})
}

func (f *Filler) fill(ctx context.Context, desc model.Descriptor, opts render.RenderOptions) (url.Values, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.driver == nil {
		return nil, errors.New("tui: prompt driver is nil")
	}

	values := url.Values{}
	values.Set(desc.Marker(), "")
	if f.sessionKey != "" {
		values.Set(model.SessionKeyField, f.sessionKey)
	}

	if err := f.fillElements(ctx, desc.Elements, values, opts); err != nil {
		return nil, err
	}
	return values, nil
}

func (f *Filler) fillElements(ctx context.Context, elements []model.Element, values url.Values, opts render.RenderOptions) error {
	for _, el := range elements {
		if err := f.fillElement(ctx, el, values, opts); err != nil {
			return fmt.Errorf("tui: element %q: %w", el.Name, err)
		}
	}
	return nil
}

func (f *Filler) fillElement(ctx context.Context, el model.Element, values url.Values, opts render.RenderOptions) error {
	message := f.theme.PromptPrefix + label(el)
	help := plainText(el.Description)
	if messages := opts.Errors.Field(el.Name); len(messages) > 0 {
		if err := f.info(ctx, f.theme.ErrorPrefix+strings.Join(messages, " ")); err != nil {
			return err
		}
	}

	switch el.Type {
	case model.ElementValue, model.ElementCancel:
		return nil
	case model.ElementHidden:
		values.Set(el.Name, textDefault(el))
		return nil
	case model.ElementHTML, model.ElementMarkup:
		markup, _ := el.Value.(string)
		if text := plainText(markup); text != "" {
			return f.info(ctx, f.theme.InfoPrefix+text)
		}
		return nil
	case model.ElementFieldset:
		if el.Title != "" {
			if err := f.info(ctx, f.theme.InfoPrefix+el.Title); err != nil {
				return err
			}
		}
		return f.fillElements(ctx, el.Elements, values, opts)
	case model.ElementSubmit:
		values.Set(el.Name, fmt.Sprint(el.Value))
		return nil
	case model.ElementSubmitCancel:
		labels := buttonLabels(el.Value)
		submit, err := f.driver.Confirm(ctx, ConfirmConfig{Message: labels[0] + "?", Default: true})
		if err != nil {
			return err
		}
		if submit {
			values.Set(el.Name, labels[0])
		} else {
			values.Set(model.CancelField(el.Name), labels[1])
		}
		return nil
	case model.ElementCheckbox:
		on, err := f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: truthy(defaultValue(el)), Help: help})
		if err != nil {
			return err
		}
		if on {
			values.Set(el.Name, "1")
		}
		return nil
	case model.ElementSelect, model.ElementRadio:
		return f.fillChoice(ctx, el, message, help, values)
	case model.ElementTextarea:
		answer, err := f.driver.TextArea(ctx, InputConfig{Message: message, Default: textDefault(el), Help: help, Validator: validator(el)})
		if err != nil {
			return err
		}
		values.Set(el.Name, answer)
		return nil
	case model.ElementPassword:
		answer, err := f.driver.Password(ctx, InputConfig{Message: message, Help: help, Validator: validator(el)})
		if err != nil {
			return err
		}
		values.Set(el.Name, answer)
		return nil
	default:
		answer, err := f.driver.Input(ctx, InputConfig{Message: message, Default: textDefault(el), Help: help, Validator: validator(el)})
		if err != nil {
			return err
		}
		values.Set(el.Name, answer)
		return nil
	}
}

func (f *Filler) fillChoice(ctx context.Context, el model.Element, message, help string, values url.Values) error {
	if len(el.Options) == 0 {
		return ErrNoOptions
	}
	labels := make([]string, len(el.Options))
	for i, opt := range el.Options {
		labels[i] = opt.Label
	}

	if el.Multiple {
		var defaults []int
		for _, value := range listDefault(el) {
			if i := optionIndex(el.Options, value); i >= 0 {
				defaults = append(defaults, i)
			}
		}
		picked, err := f.driver.MultiSelect(ctx, SelectConfig{Message: message, Options: labels, Defaults: defaults, Help: help})
		if err != nil {
			return err
		}
		for _, i := range picked {
			if i >= 0 && i < len(el.Options) {
				values.Add(el.Name, el.Options[i].Value)
			}
		}
		return nil
	}

	picked, err := f.driver.Select(ctx, SelectConfig{Message: message, Options: labels, DefaultIndex: optionIndex(el.Options, textDefault(el)), Help: help})
	if err != nil {
		return err
	}
	if picked >= 0 && picked < len(el.Options) {
		values.Set(el.Name, el.Options[picked].Value)
	}
	return nil
}

func (f *Filler) info(ctx context.Context, msg string) error {
	if strings.TrimSpace(msg) == "" {
		return nil
	}
	return f.driver.Info(ctx, msg)
}

// validator runs the element rules on each answer so the user is re-asked
// instead of the dispatcher rejecting the submission later.
func validator(el model.Element) func(string) error {
	if len(el.Rules) == 0 {
		return nil
	}
	return func(answer string) error {
		if msg, ok := rules.Check(el, strings.TrimSpace(answer)); !ok {
			return errors.New(msg)
		}
		return nil
	}
}

func label(el model.Element) string {
	title := el.Title
	if title == "" {
		title = el.Name
	}
	if el.Required() {
		title += " *"
	}
	return title
}

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

func plainText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(strictPolicy.Sanitize(raw))
}

func defaultValue(el model.Element) any {
	if el.Value != nil {
		return el.Value
	}
	return el.DefaultValue
}

func textDefault(el model.Element) string {
	switch v := defaultValue(el).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func listDefault(el model.Element) []string {
	switch v := defaultValue(el).(type) {
	case nil:
		return nil
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

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "0"
	case int:
		return v != 0
	default:
		return false
	}
}

func optionIndex(options []model.Option, value string) int {
	for i, opt := range options {
		if opt.Value == value {
			return i
		}
	}
	return -1
}

func buttonLabels(value any) [2]string {
	labels := [2]string{"Submit", "Cancel"}
	if v, ok := value.([]string); ok {
		for i := 0; i < len(v) && i < 2; i++ {
			labels[i] = v[i]
		}
	}
	return labels
}
