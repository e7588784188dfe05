// Package param reads typed request parameters. Required accessors fail with
// a 400 access error when the parameter is missing or malformed; the *Or
// variants fall back to a default only when the parameter is absent, a
// present but malformed value still fails.
package param

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mahara/pieform/pkg/access"
)

var (
	unsignedPattern = regexp.MustCompile(`^[0-9]+$`)
	signedPattern   = regexp.MustCompile(`^-?[0-9]+$`)
	alphaPattern    = regexp.MustCompile(`^[A-Za-z]+$`)
	alphaNumPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// Values wraps the merged query and body parameters of a request.
type Values struct {
	raw url.Values
}

// maxMemory bounds the multipart body held in memory; larger parts spill to
// temporary files.
const maxMemory = 32 << 20

// From parses the request form, multipart bodies included, and returns its
// values. Body parameters win over query parameters of the same name. The
// body alone is left in r.PostForm.
func From(r *http.Request) (Values, error) {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return Values{}, access.BadParameter("Malformed request parameters", err)
	}
	return Values{raw: r.Form}, nil
}

// Wrap adapts an existing url.Values.
func Wrap(values url.Values) Values {
	return Values{raw: values}
}

// Raw exposes the underlying values.
func (v Values) Raw() url.Values {
	return v.raw
}

// Has reports whether name was supplied.
func (v Values) Has(name string) bool {
	_, ok := v.raw[name]
	return ok
}

func (v Values) lookup(name string) (string, bool) {
	values, ok := v.raw[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

func missing(name string) error {
	return access.BadParameter(fmt.Sprintf("Missing parameter %q", name), nil)
}

func malformed(name, kind string, cause error) error {
	return access.BadParameter(fmt.Sprintf("Parameter %q must be %s", name, kind), cause)
}

// Integer returns a required non-negative integer.
func (v Values) Integer(name string) (int64, error) {
	raw, ok := v.lookup(name)
	if !ok || raw == "" {
		return 0, missing(name)
	}
	return parseInteger(name, raw, unsignedPattern, "a non-negative integer")
}

// IntegerOr returns a non-negative integer or def when absent.
func (v Values) IntegerOr(name string, def int64) (int64, error) {
	raw, ok := v.lookup(name)
	if !ok || raw == "" {
		return def, nil
	}
	return parseInteger(name, raw, unsignedPattern, "a non-negative integer")
}

// SignedInteger returns a required integer that may be negative.
func (v Values) SignedInteger(name string) (int64, error) {
	raw, ok := v.lookup(name)
	if !ok || raw == "" {
		return 0, missing(name)
	}
	return parseInteger(name, raw, signedPattern, "an integer")
}

func parseInteger(name, raw string, pattern *regexp.Regexp, kind string) (int64, error) {
	if !pattern.MatchString(raw) {
		return 0, malformed(name, kind, nil)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, malformed(name, kind, err)
	}
	return n, nil
}

// Alpha returns a required letters-only string.
func (v Values) Alpha(name string) (string, error) {
	raw, ok := v.lookup(name)
	if !ok || raw == "" {
		return "", missing(name)
	}
	if !alphaPattern.MatchString(raw) {
		return "", malformed(name, "alphabetic", nil)
	}
	return raw, nil
}

// AlphaOr returns a letters-only string or def when absent.
func (v Values) AlphaOr(name, def string) (string, error) {
	raw, ok := v.lookup(name)
	if !ok || raw == "" {
		return def, nil
	}
	if !alphaPattern.MatchString(raw) {
		return "", malformed(name, "alphabetic", nil)
	}
	return raw, nil
}

// AlphaNum returns a required letters-and-digits string.
func (v Values) AlphaNum(name string) (string, error) {
	raw, ok := v.lookup(name)
	if !ok || raw == "" {
		return "", missing(name)
	}
	if !alphaNumPattern.MatchString(raw) {
		return "", malformed(name, "alphanumeric", nil)
	}
	return raw, nil
}

// Variable returns a required free-form string (trimmed).
func (v Values) Variable(name string) (string, error) {
	raw, ok := v.lookup(name)
	if !ok {
		return "", missing(name)
	}
	return raw, nil
}

// VariableOr returns a free-form string or def when absent.
func (v Values) VariableOr(name, def string) string {
	raw, ok := v.lookup(name)
	if !ok {
		return def
	}
	return raw
}

// Boolean returns a flag; absence, "", "0", "false", "off" and "no" are false.
func (v Values) Boolean(name string) bool {
	raw, ok := v.lookup(name)
	if !ok {
		return false
	}
	switch strings.ToLower(raw) {
	case "", "0", "false", "off", "no":
		return false
	default:
		return true
	}
}

// IntegerList returns a comma separated list of non-negative integers. An
// absent or empty parameter yields an empty list.
func (v Values) IntegerList(name string) ([]int64, error) {
	raw, ok := v.lookup(name)
	if !ok || raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		n, err := parseInteger(name, strings.TrimSpace(part), unsignedPattern, "a list of integers")
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
