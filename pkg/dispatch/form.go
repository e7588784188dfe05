package dispatch

import (
	"strings"

	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/reply"
)

// ErrorSet holds the errors recorded while processing one submission.
type ErrorSet struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// Len counts every recorded message.
func (e ErrorSet) Len() int {
	n := len(e.Form)
	for _, messages := range e.Fields {
		n += len(messages)
	}
	return n
}

// Empty reports whether no error was recorded.
func (e ErrorSet) Empty() bool {
	return e.Len() == 0
}

// Field returns the messages recorded against one element.
func (e ErrorSet) Field(name string) []string {
	return e.Fields[name]
}

func (e ErrorSet) clone() ErrorSet {
	out := ErrorSet{Form: append([]string(nil), e.Form...)}
	if len(e.Fields) > 0 {
		out.Fields = make(map[string][]string, len(e.Fields))
		for name, messages := range e.Fields {
			out.Fields[name] = append([]string(nil), messages...)
		}
	}
	return out
}

// Form is a descriptor bound to its hooks for the duration of one request.
// It is not safe for concurrent use.
type Form struct {
	desc     model.Descriptor
	hooks    Hooks
	names    map[string]struct{}
	errors   ErrorSet
	redirect string
	reply    *reply.Envelope
}

func newForm(desc model.Descriptor, hooks Hooks) *Form {
	names := make(map[string]struct{})
	desc.Walk(func(el model.Element) bool {
		names[el.Name] = struct{}{}
		return true
	})
	return &Form{desc: desc, hooks: hooks, names: names}
}

// Name returns the descriptor name.
func (f *Form) Name() string { return f.desc.Name }

// Descriptor returns the bound descriptor. Pages may adjust element values
// before rendering.
func (f *Form) Descriptor() *model.Descriptor { return &f.desc }

// SetError records a message against a field. An empty or unknown field
// records a form-level error instead.
func (f *Form) SetError(field, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	field = strings.TrimSpace(field)
	if _, ok := f.names[field]; !ok || field == "" {
		f.errors.Form = append(f.errors.Form, message)
		return
	}
	if f.errors.Fields == nil {
		f.errors.Fields = make(map[string][]string)
	}
	f.errors.Fields[field] = append(f.errors.Fields[field], message)
}

// HasErrors reports whether any field or form-level error was recorded.
func (f *Form) HasErrors() bool {
	return !f.errors.Empty()
}

// HasError reports whether the field has a recorded error.
func (f *Form) HasError(field string) bool {
	return len(f.errors.Fields[field]) > 0
}

// Errors returns a copy of the recorded errors.
func (f *Form) Errors() ErrorSet {
	return f.errors.clone()
}

// Redirect asks the page to send the browser to url once processing ends.
func (f *Form) Redirect(url string) {
	f.redirect = url
}

// Reply sets the JSON envelope returned for JSON forms.
func (f *Form) Reply(env reply.Envelope) {
	f.reply = &env
}

func (f *Form) reset() {
	f.errors = ErrorSet{}
	f.redirect = ""
	f.reply = nil
}
