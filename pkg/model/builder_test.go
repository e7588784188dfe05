package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mahara/pieform/pkg/model"
)

func TestBuild_PreservesElementOrderAndDefaults(t *testing.T) {
	desc, err := model.Build(model.Config{
		Name: "close_site",
		Elements: model.ElementConfigs{
			{Name: "closesite", Type: "select", Options: model.Options("1", "Close", "0", "Open")},
			{Name: "reason", Type: "textarea", Rules: map[string]any{"maxlength": 255, "required": true}},
			{Name: "submit", Type: "submit"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := model.Descriptor{
		Name:     "close_site",
		Method:   model.MethodPost,
		Renderer: model.RendererDiv,
		Elements: []model.Element{
			{
				Name:    "closesite",
				Type:    model.ElementSelect,
				Title:   "Closesite",
				Options: []model.Option{{Value: "1", Label: "Close"}, {Value: "0", Label: "Open"}},
			},
			{
				Name:  "reason",
				Type:  model.ElementTextarea,
				Title: "Reason",
				Rules: []model.Rule{
					{Kind: model.RuleRequired, Value: "true"},
					{Kind: model.RuleMaxLength, Value: "255"},
				},
			},
			{Name: "submit", Type: model.ElementSubmit, Value: "Submit"},
		},
	}
	if diff := cmp.Diff(want, desc); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
	if got := desc.Marker(); got != "pieform_close_site" {
		t.Fatalf("marker = %q", got)
	}
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.Config
		message string
	}{
		{
			name:    "missing name",
			cfg:     model.Config{Elements: model.ElementConfigs{{Name: "a", Type: "text"}}},
			message: "name is required",
		},
		{
			name:    "name is not an identifier",
			cfg:     model.Config{Name: "close site"},
			message: "must be an identifier",
		},
		{
			name:    "unknown element type",
			cfg:     model.Config{Name: "f", Elements: model.ElementConfigs{{Name: "a", Type: "slider"}}},
			message: `unrecognised type "slider"`,
		},
		{
			name:    "missing element type",
			cfg:     model.Config{Name: "f", Elements: model.ElementConfigs{{Name: "a"}}},
			message: "type is required",
		},
		{
			name: "duplicate element inside fieldset",
			cfg: model.Config{Name: "f", Elements: model.ElementConfigs{
				{Name: "a", Type: "text"},
				{Name: "group", Type: "fieldset", Elements: model.ElementConfigs{{Name: "a", Type: "text"}}},
			}},
			message: `duplicate element "a"`,
		},
		{
			name:    "unknown rule",
			cfg:     model.Config{Name: "f", Elements: model.ElementConfigs{{Name: "a", Type: "text", Rules: map[string]any{"shout": true}}}},
			message: `unrecognised rule "shout"`,
		},
		{
			name:    "bad regex",
			cfg:     model.Config{Name: "f", Elements: model.ElementConfigs{{Name: "a", Type: "text", Rules: map[string]any{"regex": "([a-z"}}}},
			message: "rule regex",
		},
		{
			name:    "negative length",
			cfg:     model.Config{Name: "f", Elements: model.ElementConfigs{{Name: "a", Type: "text", Rules: map[string]any{"minlength": -1}}}},
			message: "non-negative integer",
		},
		{
			name:    "select without options",
			cfg:     model.Config{Name: "f", Elements: model.ElementConfigs{{Name: "a", Type: "select"}}},
			message: "requires options",
		},
		{
			name:    "unknown renderer",
			cfg:     model.Config{Name: "f", Renderer: "fancy"},
			message: `unknown renderer "fancy"`,
		},
		{
			name:    "unsupported method",
			cfg:     model.Config{Name: "f", Method: "put"},
			message: `unsupported method "put"`,
		},
		{
			name:    "nesting outside fieldset",
			cfg:     model.Config{Name: "f", Elements: model.ElementConfigs{{Name: "a", Type: "text", Elements: model.ElementConfigs{{Name: "b", Type: "text"}}}}},
			message: "only fieldsets may nest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.Build(tt.cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, model.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("error %q does not mention %q", err, tt.message)
			}
		})
	}
}

func TestBuild_RuleOrderIsCanonical(t *testing.T) {
	desc := model.MustBuild(model.Config{
		Name: "f",
		Elements: model.ElementConfigs{{
			Name: "code",
			Type: "text",
			Rules: map[string]any{
				"regex":     "/^[a-z]+$/i",
				"minlength": "2",
				"required":  "true",
				"integer":   false,
			},
		}},
	})

	want := []model.Rule{
		{Kind: model.RuleRequired, Value: "true"},
		{Kind: model.RuleMinLength, Value: "2"},
		{Kind: model.RuleRegex, Value: "/^[a-z]+$/i"},
	}
	if diff := cmp.Diff(want, desc.Elements[0].Rules); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
	if !desc.Elements[0].Required() {
		t.Fatalf("expected required element")
	}
}

func TestBuild_SubmitCancelLabelsAndDecorators(t *testing.T) {
	builder := model.NewBuilder(
		model.WithLabeler(nil),
		model.WithDecorators(model.DecoratorFunc(func(desc *model.Descriptor) error {
			desc.Action = "/admin/site/options.php"
			return nil
		})),
	)

	desc, err := builder.Build(model.Config{
		Name: "f",
		Elements: model.ElementConfigs{
			{Name: "title", Type: "text"},
			{Name: "buttons", Type: "submitcancel", Value: []any{"Save", "Back"}, Goto: "/index.php"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if desc.Action != "/admin/site/options.php" {
		t.Fatalf("decorator not applied: %q", desc.Action)
	}
	if desc.Elements[0].Title != "" {
		t.Fatalf("expected empty title without labeler, got %q", desc.Elements[0].Title)
	}
	if diff := cmp.Diff([]string{"Save", "Back"}, desc.Elements[1].Value); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_DecoratorErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	builder := model.NewBuilder(model.WithDecorators(model.DecoratorFunc(func(*model.Descriptor) error {
		return boom
	})))
	_, err := builder.Build(model.Config{Name: "f"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped decorator error, got %v", err)
	}
}

func TestDescriptor_WalkAndElement(t *testing.T) {
	desc := model.MustBuild(model.Config{
		Name: "profile",
		Elements: model.ElementConfigs{
			{Name: "names", Type: "fieldset", Elements: model.ElementConfigs{
				{Name: "firstname", Type: "text"},
				{Name: "lastname", Type: "text"},
			}},
			{Name: "submit", Type: "submit"},
		},
	})

	var visited []string
	desc.Walk(func(el model.Element) bool {
		visited = append(visited, el.Name)
		return true
	})
	if diff := cmp.Diff([]string{"names", "firstname", "lastname", "submit"}, visited); diff != "" {
		t.Fatalf("walk order mismatch (-want +got):\n%s", diff)
	}

	el, ok := desc.Element("lastname")
	if !ok || el.Type != model.ElementText {
		t.Fatalf("lookup failed: %+v %v", el, ok)
	}
	if _, ok := desc.Element("missing"); ok {
		t.Fatalf("unexpected element")
	}
}

func TestCompilePattern_SlashDelimiters(t *testing.T) {
	re, err := model.CompilePattern("/^abc$/i")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !re.MatchString("ABC") {
		t.Fatalf("expected case-insensitive match")
	}
}

func TestCompilePattern_LeadingSlashWithoutFlags(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{pattern: "/users/x", input: "/users/x", want: true},
		{pattern: "/users/x", input: "users", want: false},
		{pattern: "/^a.b$/s", input: "a\nb", want: true},
		{pattern: "/^a.b$/", input: "a\nb", want: false},
		{pattern: "/api/v1/", input: "api/v1", want: true},
	}
	for _, tc := range tests {
		re, err := model.CompilePattern(tc.pattern)
		if err != nil {
			t.Fatalf("compile %q: %v", tc.pattern, err)
		}
		if got := re.MatchString(tc.input); got != tc.want {
			t.Fatalf("%q matching %q = %v, want %v", tc.pattern, tc.input, got, tc.want)
		}
	}
}

func TestDefaultLabeler(t *testing.T) {
	tests := map[string]string{
		"site_closed": "Site Closed",
		"siteClosed":  "Site Closed",
		"email2":      "Email 2",
		"":            "",
	}
	for input, want := range tests {
		if got := model.DefaultLabeler(input); got != want {
			t.Fatalf("DefaultLabeler(%q) = %q, want %q", input, got, want)
		}
	}
}
