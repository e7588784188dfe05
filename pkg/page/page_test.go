package page_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mahara/pieform/pkg/access"
	"github.com/mahara/pieform/pkg/dispatch"
	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/page"
	"github.com/mahara/pieform/pkg/render"
	"github.com/mahara/pieform/pkg/renderers/html"
	"github.com/mahara/pieform/pkg/session"
)

type fixture struct {
	server   *page.Server
	sessions *session.MemoryStore
	submits  int
	submit   func(env dispatch.Env) error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{sessions: session.NewMemoryStore()}

	renderer, err := html.New()
	if err != nil {
		t.Fatalf("html renderer: %v", err)
	}
	registry, err := render.NewRegistry(renderer)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	catalog := dispatch.NewCatalog()
	catalog.MustRegister("close_site", dispatch.Hooks{
		Submit: func(ctx context.Context, env dispatch.Env, form *dispatch.Form, values dispatch.Values) error {
			f.submits++
			if f.submit != nil {
				return f.submit(env)
			}
			env.Session.AddOK("Site closed")
			return nil
		},
	})

	f.server = &page.Server{
		Sessions:  f.sessions,
		Catalog:   catalog,
		Renderers: registry,
	}
	return f
}

func closeSitePage(t *testing.T) page.Page {
	t.Helper()
	desc, err := model.Build(model.Config{
		Name: "close_site",
		Elements: model.ElementConfigs{
			{Name: "close", Type: "hidden", Value: "1"},
			{Name: "submit", Type: "submit", Value: "Close the site"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return page.Page{
		Title: "Close site",
		Forms: func(context.Context, page.Request) ([]model.Descriptor, error) {
			return []model.Descriptor{desc}, nil
		},
	}
}

func get(t *testing.T, handler http.Handler, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/close", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, handler http.Handler, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/close", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == page.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("response did not set the session cookie")
	return nil
}

func TestHandle_SubmitRedirectsAndFlashes(t *testing.T) {
	f := newFixture(t)
	handler := f.server.Handle(closeSitePage(t))

	first := get(t, handler)
	if first.Code != http.StatusOK {
		t.Fatalf("GET status %d", first.Code)
	}
	cookie := sessionCookie(t, first)
	sess, err := f.sessions.Load(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	body := first.Body.String()
	for _, fragment := range []string{
		"<title>Close site</title>",
		`<input type="hidden" name="pieform_close_site" value="">`,
		`<input type="hidden" name="sesskey" value="` + sess.Key + `">`,
	} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("GET body missing %q\n%s", fragment, body)
		}
	}

	submitted := post(t, handler, url.Values{
		"pieform_close_site": {""},
		"sesskey":            {sess.Key},
		"close":              {"1"},
		"submit":             {"Close the site"},
	}, cookie)
	if submitted.Code != http.StatusSeeOther || submitted.Header().Get("Location") != "/admin/close" {
		t.Fatalf("POST status %d location %q", submitted.Code, submitted.Header().Get("Location"))
	}
	if f.submits != 1 {
		t.Fatalf("submit ran %d times", f.submits)
	}

	after := get(t, handler, cookie)
	if !strings.Contains(after.Body.String(), `<div class="flash-ok" role="status">Site closed</div>`) {
		t.Fatalf("flash message not rendered\n%s", after.Body.String())
	}
	again := get(t, handler, cookie)
	if strings.Contains(again.Body.String(), "Site closed") {
		t.Fatalf("flash message shown twice")
	}
}

func TestHandle_WrongSessionKeyReRenders(t *testing.T) {
	f := newFixture(t)
	handler := f.server.Handle(closeSitePage(t))
	cookie := sessionCookie(t, get(t, handler))

	rec := post(t, handler, url.Values{
		"pieform_close_site": {""},
		"sesskey":            {"stale"},
		"submit":             {"Close the site"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Your session key was invalid") {
		t.Fatalf("session key error not rendered\n%s", rec.Body.String())
	}
	if f.submits != 0 {
		t.Fatalf("submit ran with a stale session key")
	}
}

func TestHandle_AccessDenied(t *testing.T) {
	f := newFixture(t)
	p := closeSitePage(t)
	p.Access = func(_ context.Context, req page.Request) error {
		if !req.Env.User.Admin {
			return access.Denied("")
		}
		return nil
	}

	rec := get(t, f.server.Handle(p))
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "Access denied") {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}

	p.JSON = true
	rec = get(t, f.server.Handle(p))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("JSON status %d", rec.Code)
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope["error"] != true || envelope["message"] != "Access denied" {
		t.Fatalf("envelope %v", envelope)
	}
}

func TestHandle_SubmitErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		want   string
		hidden string
	}{
		{name: "not found", err: access.NotFound("No such institution"), status: http.StatusNotFound, want: "No such institution"},
		{name: "internal", err: errors.New("disk on fire"), status: http.StatusInternalServerError, want: "An internal error occurred", hidden: "disk on fire"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.submit = func(dispatch.Env) error { return tc.err }
			handler := f.server.Handle(closeSitePage(t))
			cookie := sessionCookie(t, get(t, handler))
			sess, err := f.sessions.Load(context.Background(), cookie.Value)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}

			rec := post(t, handler, url.Values{
				"pieform_close_site": {""},
				"sesskey":            {sess.Key},
				"submit":             {"Close the site"},
			}, cookie)
			if rec.Code != tc.status || !strings.Contains(rec.Body.String(), tc.want) {
				t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
			}
			if tc.hidden != "" && strings.Contains(rec.Body.String(), tc.hidden) {
				t.Fatalf("internal detail leaked")
			}
		})
	}
}

func TestHandle_JSONFormReplies(t *testing.T) {
	f := newFixture(t)
	desc, err := model.Build(model.Config{
		Name:     "close_site",
		JSONForm: true,
		Elements: model.ElementConfigs{
			{Name: "reason", Type: "text", Rules: map[string]any{"required": true}},
			{Name: "submit", Type: "submit"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	handler := f.server.Handle(page.Page{
		Title: "Close site",
		Forms: func(context.Context, page.Request) ([]model.Descriptor, error) {
			return []model.Descriptor{desc}, nil
		},
	})

	rec := post(t, handler, url.Values{"pieform_close_site": {""}, "submit": {"Submit"}})
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("status %d content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope["error"] != true {
		t.Fatalf("expected error envelope, got %v", envelope)
	}
	if f.submits != 0 {
		t.Fatalf("submit ran for an invalid form")
	}
}

func TestHandle_PostIgnoresQueryString(t *testing.T) {
	f := newFixture(t)
	handler := f.server.Handle(closeSitePage(t))
	cookie := sessionCookie(t, get(t, handler))
	sess, err := f.sessions.Load(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	query := url.Values{"pieform_close_site": {""}, "sesskey": {sess.Key}, "close": {"1"}, "submit": {"Close the site"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/close?"+query.Encode(), nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if f.submits != 0 {
		t.Fatalf("submit ran from query string parameters")
	}
}
