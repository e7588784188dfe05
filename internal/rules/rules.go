package rules

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mahara/pieform/pkg/model"
)

// Default messages. Pages that need other wording translate on the way out.
const (
	MsgRequired      = "This field is required"
	MsgMinLength     = "This field must be at least %d characters long"
	MsgMaxLength     = "This field must be at most %d characters long"
	MsgRegex         = "This field is not in valid format"
	MsgEmail         = "Please enter a valid email address"
	MsgInteger       = "The value for this field must be a whole number"
	MsgNumber        = "The value for this field must be a number"
	MsgMinValue      = "This value must be at least %s"
	MsgMaxValue      = "This value must be at most %s"
	MsgURL           = "Please enter a valid URL"
	MsgInvalidOption = "Invalid option selected"
)

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

// Check evaluates the element's rules against value and returns the message
// of the first failing rule. Empty values of optional elements pass every
// other rule. Option membership is checked for select and radio elements.
func Check(el model.Element, value any) (string, bool) {
	if Empty(value) {
		if el.Required() {
			return MsgRequired, false
		}
		return "", true
	}

	if msg, ok := checkOptions(el, value); !ok {
		return msg, false
	}

	for _, rule := range el.Rules {
		if msg, ok := checkRule(rule, value); !ok {
			return msg, false
		}
	}
	return "", true
}

// Empty reports whether a collected value counts as "not provided".
func Empty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	case []string:
		for _, item := range v {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func checkOptions(el model.Element, value any) (string, bool) {
	if el.Type != model.ElementSelect && el.Type != model.ElementRadio {
		return "", true
	}
	allowed := make(map[string]struct{}, len(el.Options))
	for _, opt := range el.Options {
		allowed[opt.Value] = struct{}{}
	}
	for _, item := range valueStrings(value) {
		if _, ok := allowed[item]; !ok {
			return MsgInvalidOption, false
		}
	}
	return "", true
}

func checkRule(rule model.Rule, value any) (string, bool) {
	switch rule.Kind {
	case model.RuleRequired:
		return "", true
	case model.RuleMinLength:
		limit, _ := strconv.Atoi(rule.Value)
		for _, item := range valueStrings(value) {
			if utf8.RuneCountInString(item) < limit {
				return fmt.Sprintf(MsgMinLength, limit), false
			}
		}
	case model.RuleMaxLength:
		limit, _ := strconv.Atoi(rule.Value)
		for _, item := range valueStrings(value) {
			if utf8.RuneCountInString(item) > limit {
				return fmt.Sprintf(MsgMaxLength, limit), false
			}
		}
	case model.RuleInteger:
		for _, item := range valueStrings(value) {
			if !integerPattern.MatchString(strings.TrimSpace(item)) {
				return MsgInteger, false
			}
		}
	case model.RuleMinValue, model.RuleMaxValue:
		bound, err := strconv.ParseFloat(rule.Value, 64)
		if err != nil {
			return "", true
		}
		for _, item := range valueStrings(value) {
			n, err := strconv.ParseFloat(strings.TrimSpace(item), 64)
			if err != nil {
				return MsgNumber, false
			}
			if rule.Kind == model.RuleMinValue && n < bound {
				return fmt.Sprintf(MsgMinValue, rule.Value), false
			}
			if rule.Kind == model.RuleMaxValue && n > bound {
				return fmt.Sprintf(MsgMaxValue, rule.Value), false
			}
		}
	case model.RuleEmail:
		for _, item := range valueStrings(value) {
			if !validEmail(item) {
				return MsgEmail, false
			}
		}
	case model.RuleURL:
		for _, item := range valueStrings(value) {
			if !validURL(item) {
				return MsgURL, false
			}
		}
	case model.RuleRegex:
		re, err := pattern(rule.Value)
		if err != nil {
			return MsgRegex, false
		}
		for _, item := range valueStrings(value) {
			if !re.MatchString(item) {
				return MsgRegex, false
			}
		}
	}
	return "", true
}

func validEmail(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return false
	}
	// Reject display-name forms such as "Jo <jo@example.com>".
	return addr.Address == trimmed && strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".")
}

func validURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func pattern(expr string) (*regexp.Regexp, error) {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[expr]; ok {
		return re, nil
	}
	re, err := model.CompilePattern(expr)
	if err != nil {
		return nil, err
	}
	patternCache[expr] = re
	return re, nil
}

func valueStrings(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case bool:
		return []string{strconv.FormatBool(v)}
	default:
		return []string{fmt.Sprint(v)}
	}
}
