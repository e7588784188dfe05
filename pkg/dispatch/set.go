package dispatch

import (
	"context"
	"fmt"
	"net/url"
)

// Set is the group of forms one request renders. Form names are unique
// within a set, so at most one form matches a submission.
type Set struct {
	forms []*Form
	index map[string]*Form
}

// NewSet creates a set from bound forms.
func NewSet(forms ...*Form) (*Set, error) {
	s := &Set{index: make(map[string]*Form)}
	for _, form := range forms {
		if err := s.Add(form); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a form. A second form with the same name is rejected.
func (s *Set) Add(form *Form) error {
	if form == nil {
		return fmt.Errorf("dispatch: form is required")
	}
	if s.index == nil {
		s.index = make(map[string]*Form)
	}
	if _, exists := s.index[form.Name()]; exists {
		return fmt.Errorf("dispatch: duplicate form name %q in request", form.Name())
	}
	s.index[form.Name()] = form
	s.forms = append(s.forms, form)
	return nil
}

// Forms returns the forms in the order they were added.
func (s *Set) Forms() []*Form {
	return append([]*Form(nil), s.forms...)
}

// Get returns the form with the given name.
func (s *Set) Get(name string) (*Form, bool) {
	form, ok := s.index[name]
	return form, ok
}

// Process hands the request to the form whose marker it carries. When no
// form matches the outcome has StatusNotSubmitted and a nil Form.
func (s *Set) Process(ctx context.Context, env Env, method string, values url.Values) (Outcome, error) {
	for _, form := range s.forms {
		if form.Submitted(method, values) {
			return form.Process(ctx, env, method, values)
		}
	}
	return Outcome{Status: StatusNotSubmitted}, nil
}
