package tui

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mahara/pieform/internal/rules"
	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/render"
)

// stubDriver replays scripted answers. Text answers run through the prompt
// validator the way survey re-asks, so a rejected answer consumes the next one.
type stubDriver struct {
	inputs    []string
	passwords []string
	textAreas []string
	confirm   []bool
	selectIdx []int
	multiIdx  [][]int

	infoMessages []string
	rejected     []string
	messages     []string
}

func (s *stubDriver) nextText(queue *[]string, validator func(string) error, kind string) (string, error) {
	for {
		if len(*queue) == 0 {
			return "", errors.New("no " + kind + " scripted")
		}
		val := (*queue)[0]
		*queue = (*queue)[1:]
		if validator != nil {
			if err := validator(val); err != nil {
				s.rejected = append(s.rejected, err.Error())
				continue
			}
		}
		return val, nil
	}
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.messages = append(s.messages, cfg.Message)
	return s.nextText(&s.inputs, cfg.Validator, "input")
}

func (s *stubDriver) Password(_ context.Context, cfg InputConfig) (string, error) {
	s.messages = append(s.messages, cfg.Message)
	return s.nextText(&s.passwords, cfg.Validator, "password")
}

func (s *stubDriver) TextArea(_ context.Context, cfg InputConfig) (string, error) {
	s.messages = append(s.messages, cfg.Message)
	return s.nextText(&s.textAreas, cfg.Validator, "textarea")
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.messages = append(s.messages, cfg.Message)
	if len(s.confirm) == 0 {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[0]
	s.confirm = s.confirm[1:]
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.messages = append(s.messages, cfg.Message)
	if len(s.selectIdx) == 0 {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[0]
	s.selectIdx = s.selectIdx[1:]
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg SelectConfig) ([]int, error) {
	s.messages = append(s.messages, cfg.Message)
	if len(s.multiIdx) == 0 {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[0]
	s.multiIdx = s.multiIdx[1:]
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func profileForm(t *testing.T) model.Descriptor {
	t.Helper()
	desc, err := model.Build(model.Config{
		Name: "edit_profile",
		Elements: model.ElementConfigs{
			{Name: "intro", Type: "html", Value: "<p>Tell us <b>about</b> you</p>"},
			{Name: "firstname", Type: "text", Rules: map[string]any{"required": true, "maxlength": 5}},
			{Name: "password", Type: "password"},
			{Name: "bio", Type: "textarea"},
			{Name: "country", Type: "select", Options: model.Options("nz", "New Zealand", "au", "Australia")},
			{Name: "tags", Type: "select", Multiple: true, Options: model.Options("a", "Art", "b", "Books", "c", "Cars")},
			{Name: "subscribe", Type: "checkbox"},
			{Name: "userid", Type: "value", Value: 7},
			{Name: "token", Type: "hidden", Value: "t1"},
			{Name: "contact", Type: "fieldset", Title: "Contact", Elements: model.ElementConfigs{
				{Name: "phone", Type: "text"},
			}},
			{Name: "buttons", Type: "submitcancel", Value: []string{"Save", "Back"}},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return desc
}

func TestFill_CollectsSubmission(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"", "Josephine", "Jo", "021 555"},
		passwords: []string{"secret"},
		textAreas: []string{"Hello"},
		selectIdx: []int{1},
		multiIdx:  [][]int{{0, 2}},
		confirm:   []bool{true, true},
	}
	filler := New(WithPromptDriver(driver), WithSessionKey("key123"))

	values, err := filler.Fill(context.Background(), profileForm(t))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}

	want := url.Values{
		"pieform_edit_profile": {""},
		"sesskey":              {"key123"},
		"firstname":            {"Jo"},
		"password":             {"secret"},
		"bio":                  {"Hello"},
		"country":              {"au"},
		"tags":                 {"a", "c"},
		"subscribe":            {"1"},
		"token":                {"t1"},
		"phone":                {"021 555"},
		"buttons":              {"Save"},
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	wantRejected := []string{rules.MsgRequired, "This field must be at most 5 characters long"}
	if diff := cmp.Diff(wantRejected, driver.rejected); diff != "" {
		t.Fatalf("rejected answers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Tell us about you", "Contact"}, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}
	if driver.messages[0] != "Firstname *" {
		t.Fatalf("expected required marker in prompt, got %q", driver.messages[0])
	}
}

func TestFill_DecliningSubmitPressesCancel(t *testing.T) {
	desc, err := model.Build(model.Config{
		Name: "close_site",
		Elements: model.ElementConfigs{
			{Name: "buttons", Type: "submitcancel"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	values, err := New(WithPromptDriver(&stubDriver{confirm: []bool{false}})).Fill(context.Background(), desc)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	want := url.Values{"pieform_close_site": {""}, "cancel_buttons": {"Cancel"}}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_PlainSubmitNeedsNoPrompt(t *testing.T) {
	desc, err := model.Build(model.Config{
		Name: "close_site",
		Elements: model.ElementConfigs{
			{Name: "close", Type: "hidden", Value: "1"},
			{Name: "submit", Type: "submit", Value: "Close site"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	values, err := New(WithPromptDriver(&stubDriver{})).Fill(context.Background(), desc)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	want := url.Values{"pieform_close_site": {""}, "close": {"1"}, "submit": {"Close site"}}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_PropagatesAbort(t *testing.T) {
	desc, err := model.Build(model.Config{
		Name:     "f",
		Elements: model.ElementConfigs{{Name: "q", Type: "text"}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err = New(WithPromptDriver(abortDriver{&stubDriver{}})).Fill(context.Background(), desc)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestFill_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(WithPromptDriver(&stubDriver{})).Fill(ctx, profileForm(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRender_EncodesValuesAndShowsErrors(t *testing.T) {
	desc, err := model.Build(model.Config{
		Name:     "f",
		Elements: model.ElementConfigs{{Name: "q", Type: "text"}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	driver := &stubDriver{inputs: []string{"a b"}}
	filler := New(WithPromptDriver(driver), WithTheme(Theme{ErrorPrefix: "! "}))

	out, err := filler.Render(context.Background(), desc, render.RenderOptions{
		Errors: render.MapErrors(desc, map[string][]string{"q": {"Try again"}}, "Fix the form"),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != "pieform_f=&q=a+b" {
		t.Fatalf("encoded %q", out)
	}
	if diff := cmp.Diff([]string{"! Fix the form", "! Try again"}, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}
	if filler.Name() != Name || filler.ContentType() != "application/x-www-form-urlencoded" {
		t.Fatalf("metadata mismatch")
	}
}

type abortDriver struct{ *stubDriver }

func (abortDriver) Input(context.Context, InputConfig) (string, error) {
	return "", ErrAborted
}
