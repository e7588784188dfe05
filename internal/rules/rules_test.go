package rules

import (
	"testing"

	"github.com/mahara/pieform/pkg/model"
)

func TestCheck(t *testing.T) {
	required := model.Rule{Kind: model.RuleRequired, Value: "true"}
	selectEl := model.Element{
		Name:    "country",
		Type:    model.ElementSelect,
		Options: []model.Option{{Value: "nz", Label: "New Zealand"}, {Value: "au", Label: "Australia"}},
	}

	tests := []struct {
		name  string
		el    model.Element
		value any
		want  string
	}{
		{"required empty string", model.Element{Type: model.ElementText, Rules: []model.Rule{required}}, "", MsgRequired},
		{"required whitespace", model.Element{Type: model.ElementText, Rules: []model.Rule{required}}, "   ", MsgRequired},
		{"required unchecked checkbox", model.Element{Type: model.ElementCheckbox, Rules: []model.Rule{required}}, false, MsgRequired},
		{"optional empty skips rules", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleEmail, Value: "true"}}}, "", ""},
		{"minlength", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleMinLength, Value: "3"}}}, "ab", "This field must be at least 3 characters long"},
		{"maxlength counts runes", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleMaxLength, Value: "3"}}}, "ñññ", ""},
		{"maxlength", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleMaxLength, Value: "3"}}}, "abcd", "This field must be at most 3 characters long"},
		{"integer", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleInteger, Value: "true"}}}, "12a", MsgInteger},
		{"integer ok", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleInteger, Value: "true"}}}, "-12", ""},
		{"minvalue", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleMinValue, Value: "5"}}}, "4", "This value must be at least 5"},
		{"maxvalue", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleMaxValue, Value: "5"}}}, "6", "This value must be at most 5"},
		{"minvalue not a number", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleMinValue, Value: "2.5"}}}, "abc", MsgNumber},
		{"maxvalue decimal ok", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleMaxValue, Value: "2.5"}}}, "1.75", ""},
		{"email", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleEmail, Value: "true"}}}, "not-an-email", MsgEmail},
		{"email with display name", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleEmail, Value: "true"}}}, "Jo <jo@example.com>", MsgEmail},
		{"email ok", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleEmail, Value: "true"}}}, "jo@example.com", ""},
		{"url", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleURL, Value: "true"}}}, "ftp://example.com", MsgURL},
		{"url ok", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleURL, Value: "true"}}}, "https://mahara.org/", ""},
		{"regex", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleRegex, Value: "/^[a-z]+$/"}}}, "abc1", MsgRegex},
		{"regex case flag", model.Element{Type: model.ElementText, Rules: []model.Rule{{Kind: model.RuleRegex, Value: "/^[a-z]+$/i"}}}, "ABC", ""},
		{"select option", selectEl, "nz", ""},
		{"select invalid option", selectEl, "uk", MsgInvalidOption},
		{"multi select invalid option", selectEl, []string{"nz", "uk"}, MsgInvalidOption},
		{"first failing rule wins", model.Element{Type: model.ElementText, Rules: []model.Rule{
			{Kind: model.RuleMinLength, Value: "10"},
			{Kind: model.RuleEmail, Value: "true"},
		}}, "a@b", "This field must be at least 10 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Check(tt.el, tt.value)
			if ok != (tt.want == "") {
				t.Fatalf("ok = %v, message %q", ok, got)
			}
			if got != tt.want {
				t.Fatalf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !Empty([]string{"", " "}) {
		t.Fatalf("blank list should be empty")
	}
	if Empty([]string{"x"}) {
		t.Fatalf("non-blank list should not be empty")
	}
	if Empty(true) {
		t.Fatalf("checked checkbox should not be empty")
	}
}
