package dispatch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mahara/pieform/pkg/record"
	"github.com/mahara/pieform/pkg/session"
)

// Env is the request state handed to every hook. Process always hands hooks
// a non-nil Logger scoped to the form.
type Env struct {
	User    session.User
	Session *session.Session
	Records *record.Store
	Logger  *zap.Logger
}

func (e Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// ValidateFunc inspects collected values and records problems with
// Form.SetError. It runs after the field rules, even when they failed.
type ValidateFunc func(ctx context.Context, env Env, form *Form, values Values)

// SubmitFunc performs the form's side effects. It only runs when neither the
// rules nor the validate hook recorded an error. A returned error aborts the
// request; errors set on the form instead re-render it.
type SubmitFunc func(ctx context.Context, env Env, form *Form, values Values) error

// CancelFunc handles a press of one of the form's cancel buttons.
type CancelFunc func(ctx context.Context, env Env, form *Form) error

// Hooks groups the callbacks of one form. Submit is mandatory unless the
// descriptor names a registered success callback.
type Hooks struct {
	Validate ValidateFunc
	Submit   SubmitFunc
	Cancel   CancelFunc
}

// Values are the submitted values after collection, keyed by element name.
// Text-like elements hold a string, checkboxes a bool, multi-selects a
// []string, value elements whatever the descriptor stored.
type Values map[string]any

// String returns the named value as text.
func (v Values) String(name string) string {
	switch value := v[name].(type) {
	case string:
		return value
	case []string:
		return strings.Join(value, ",")
	case bool:
		if value {
			return "1"
		}
		return ""
	case nil:
		return ""
	default:
		return fmt.Sprint(value)
	}
}

// Bool returns the named value as a flag. Strings count as set when they are
// neither empty nor "0".
func (v Values) Bool(name string) bool {
	switch value := v[name].(type) {
	case bool:
		return value
	case string:
		return value != "" && value != "0"
	case []string:
		return len(value) > 0
	default:
		return value != nil
	}
}

// Strings returns the named value as a list.
func (v Values) Strings(name string) []string {
	switch value := v[name].(type) {
	case []string:
		return append([]string(nil), value...)
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	case nil:
		return nil
	default:
		return []string{v.String(name)}
	}
}
