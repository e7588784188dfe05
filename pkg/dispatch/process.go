package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mahara/pieform/internal/rules"
	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/reply"
)

// Status is the result class of processing a request against a form.
type Status int

const (
	// StatusNotSubmitted means the request did not carry this form.
	StatusNotSubmitted Status = iota
	// StatusCancelled means a cancel button was pressed.
	StatusCancelled
	// StatusInvalid means errors were recorded and the form must re-render.
	StatusInvalid
	// StatusSubmitted means the submit hook ran and succeeded.
	StatusSubmitted
	// StatusFailed means a hook returned an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotSubmitted:
		return "not_submitted"
	case StatusCancelled:
		return "cancelled"
	case StatusInvalid:
		return "invalid"
	case StatusSubmitted:
		return "submitted"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Messages used for form-level problems.
const (
	MsgSessionKey = "Your session key was invalid or has expired. Please try submitting the form again."
	MsgInvalid    = "There was an error with submitting this form. Please check the marked fields and try again."
)

// Outcome describes what processing did.
type Outcome struct {
	Form     *Form
	Status   Status
	Values   Values
	Errors   ErrorSet
	Redirect string
	Reply    *reply.Envelope
}

// Submitted reports whether the request belonged to the form at all.
func (o Outcome) Submitted() bool {
	return o.Status != StatusNotSubmitted
}

// Submitted reports whether the request carries this form's marker with the
// form's method.
func (f *Form) Submitted(method string, values url.Values) bool {
	if !strings.EqualFold(method, f.desc.Method) {
		return false
	}
	_, ok := values[f.desc.Marker()]
	return ok
}

// Process runs the submission pipeline for this form. The returned error is
// only non-nil when a hook failed; validation problems are reported through
// StatusInvalid and the outcome's error set.
func (f *Form) Process(ctx context.Context, env Env, method string, values url.Values) (Outcome, error) {
	log := env.logger().With(zap.String("form", f.desc.Name))
	env.Logger = log
	if !f.Submitted(method, values) {
		return Outcome{Form: f, Status: StatusNotSubmitted}, nil
	}
	f.reset()

	if env.Session != nil && values.Get(model.SessionKeyField) != env.Session.Key {
		log.Warn("session key mismatch")
		f.SetError("", MsgSessionKey)
		return f.invalid(nil), nil
	}

	if button, ok := f.cancelPressed(values); ok {
		log.Debug("form cancelled", zap.String("button", button.Name))
		if f.hooks.Cancel != nil {
			if err := f.hooks.Cancel(ctx, env, f); err != nil {
				return f.outcome(StatusFailed, nil), fmt.Errorf("dispatch: cancel %q: %w", f.desc.Name, err)
			}
		}
		if f.redirect == "" && button.Goto != "" {
			f.redirect = button.Goto
		}
		return f.outcome(StatusCancelled, nil), nil
	}

	collected := f.collect(values)

	f.desc.Walk(func(el model.Element) bool {
		if !el.Type.CarriesValue() || el.Type == model.ElementValue {
			return true
		}
		if msg, ok := rules.Check(withImpliedRules(el), collected[el.Name]); !ok {
			f.SetError(el.Name, msg)
		}
		return true
	})

	if f.hooks.Validate != nil {
		f.hooks.Validate(ctx, env, f, collected)
	}
	if f.HasErrors() {
		log.Debug("form invalid", zap.Int("errors", f.errors.Len()))
		return f.invalid(collected), nil
	}

	if err := f.hooks.Submit(ctx, env, f, collected); err != nil {
		log.Error("submit failed", zap.Error(err))
		return f.outcome(StatusFailed, collected), fmt.Errorf("dispatch: submit %q: %w", f.desc.Name, err)
	}
	if f.HasErrors() {
		return f.invalid(collected), nil
	}
	if f.desc.JSONForm && f.reply == nil {
		ok := reply.OK("", nil)
		f.reply = &ok
	}
	log.Debug("form submitted")
	return f.outcome(StatusSubmitted, collected), nil
}

func (f *Form) invalid(collected Values) Outcome {
	if f.desc.JSONForm {
		message := MsgInvalid
		if len(f.errors.Form) > 0 {
			message = f.errors.Form[0]
		}
		failed := reply.Fail(message, map[string]any{"errors": f.errors.clone()})
		f.reply = &failed
	}
	return f.outcome(StatusInvalid, collected)
}

func (f *Form) outcome(status Status, collected Values) Outcome {
	return Outcome{
		Form:     f,
		Status:   status,
		Values:   collected,
		Errors:   f.errors.clone(),
		Redirect: f.redirect,
		Reply:    f.reply,
	}
}

func (f *Form) cancelPressed(values url.Values) (model.Element, bool) {
	var (
		button  model.Element
		pressed bool
	)
	f.desc.Walk(func(el model.Element) bool {
		if !el.Type.Cancels() {
			return true
		}
		if _, ok := values[model.CancelField(el.Name)]; ok {
			button, pressed = el, true
			return false
		}
		return true
	})
	return button, pressed
}

// withImpliedRules adds the email rule email elements carry implicitly.
func withImpliedRules(el model.Element) model.Element {
	if el.Type != model.ElementEmail {
		return el
	}
	if _, ok := el.Rule(model.RuleEmail); ok {
		return el
	}
	el.Rules = append(append([]model.Rule(nil), el.Rules...), model.Rule{Kind: model.RuleEmail, Value: "true"})
	return el
}

// collect extracts element values from the request. Value elements keep
// their stored value and never read the request.
func (f *Form) collect(values url.Values) Values {
	out := make(Values)
	f.desc.Walk(func(el model.Element) bool {
		if !el.Type.CarriesValue() {
			return true
		}
		switch el.Type {
		case model.ElementValue:
			out[el.Name] = el.Value
		case model.ElementCheckbox:
			raw, ok := values[el.Name]
			out[el.Name] = ok && len(raw) > 0 && raw[0] != ""
		case model.ElementSelect:
			if el.Multiple {
				out[el.Name] = append([]string{}, values[el.Name]...)
			} else {
				out[el.Name] = values.Get(el.Name)
			}
		case model.ElementText, model.ElementEmail, model.ElementDate:
			out[el.Name] = strings.TrimSpace(values.Get(el.Name))
		default:
			out[el.Name] = values.Get(el.Name)
		}
		return true
	})
	return out
}
