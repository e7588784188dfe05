package site_test

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mahara/pieform/internal/site"
	"github.com/mahara/pieform/pkg/dispatch"
	"github.com/mahara/pieform/pkg/page"
	"github.com/mahara/pieform/pkg/record"
	"github.com/mahara/pieform/pkg/render"
	"github.com/mahara/pieform/pkg/renderers/html"
	"github.com/mahara/pieform/pkg/session"
)

var sessKeyPattern = regexp.MustCompile(`name="sesskey" value="([^"]+)"`)

type browser struct {
	t      *testing.T
	client *http.Client
	jar    http.CookieJar
	base   string
}

func (b *browser) sessionID() string {
	b.t.Helper()
	u, err := url.Parse(b.base)
	if err != nil {
		b.t.Fatalf("parse base: %v", err)
	}
	for _, c := range b.jar.Cookies(u) {
		if c.Name == page.DefaultCookieName {
			return c.Value
		}
	}
	return ""
}

func (b *browser) get(path string) (int, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	if err != nil {
		b.t.Fatalf("GET %s: %v", path, err)
	}
	return read(b.t, resp)
}

// submit loads path, copies the session key out of the page and posts the
// form fields back, the way a browser would.
func (b *browser) submit(path, form string, fields ...string) (int, string) {
	b.t.Helper()
	_, body := b.get(path)
	match := sessKeyPattern.FindStringSubmatch(body)
	if match == nil {
		b.t.Fatalf("no session key on %s\n%s", path, body)
	}
	values := url.Values{"pieform_" + form: {""}, "sesskey": {match[1]}}
	for i := 0; i+1 < len(fields); i += 2 {
		values.Add(fields[i], fields[i+1])
	}
	resp, err := b.client.PostForm(b.base+path, values)
	if err != nil {
		b.t.Fatalf("POST %s: %v", path, err)
	}
	return read(b.t, resp)
}

func read(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func setup(t *testing.T) (*record.Store, func() *browser) {
	t.Helper()
	ctx := context.Background()
	store, err := record.Open(record.DefaultDriver, filepath.Join(t.TempDir(), "site.db"), record.WithPrefix("m_"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := site.Migrate(ctx, store); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := site.Seed(ctx, store,
		session.User{Username: "admin", FirstName: "Site", LastName: "Admin", Email: "admin@example.com", Admin: true},
		session.User{Username: "jo", FirstName: "Jo", Email: "jo@example.com"},
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	demo, err := site.New(store, nil, nil)
	if err != nil {
		t.Fatalf("new site: %v", err)
	}
	catalog := dispatch.NewCatalog()
	if err := demo.Register(catalog); err != nil {
		t.Fatalf("register: %v", err)
	}
	renderer, err := html.New()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	registry, err := render.NewRegistry(renderer)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	server := &page.Server{
		Sessions:  session.NewMemoryStore(),
		Records:   store,
		Catalog:   catalog,
		Renderers: registry,
	}
	mux := http.NewServeMux()
	demo.Mount(mux, server)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return store, func() *browser {
		jar, err := cookiejar.New(nil)
		if err != nil {
			t.Fatalf("cookie jar: %v", err)
		}
		return &browser{t: t, client: &http.Client{Jar: jar}, jar: jar, base: ts.URL}
	}
}

func mustContain(t *testing.T, body string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if !strings.Contains(body, fragment) {
			t.Fatalf("body missing %q\n%s", fragment, body)
		}
	}
}

func TestSite_LoginEditProfileAndCloseSite(t *testing.T) {
	ctx := context.Background()
	store, newBrowser := setup(t)
	admin := newBrowser()

	_, body := admin.submit("/", site.FormLogin, "username", "nobody", "submit", "Log in")
	mustContain(t, body, site.MsgNoSuchUser)

	_, body = admin.submit("/", site.FormLogin, "username", "admin", "submit", "Log in")
	mustContain(t, body, site.MsgLoggedIn, `name="pieform_logout"`)

	_, body = admin.get("/account")
	mustContain(t, body, `value="Site"`, `value="admin@example.com"`)
	if strings.Contains(body, "userid") {
		t.Fatalf("value element leaked into the page")
	}

	_, body = admin.submit("/account", site.FormEditProfile,
		"firstname", "Ada", "lastname", "Admin", "email", "jo@example.com", "buttons", "Save profile")
	mustContain(t, body, site.MsgEmailTaken, `value="Ada"`)

	_, body = admin.submit("/account", site.FormEditProfile,
		"firstname", "", "lastname", "Admin", "email", "root@example.com", "buttons", "Save profile")
	mustContain(t, body, "This field is required")

	_, body = admin.submit("/account", site.FormEditProfile,
		"firstname", "Ada", "lastname", "Admin", "email", "root@example.com", "buttons", "Save profile")
	mustContain(t, body, site.MsgProfileSaved)
	rec, found, err := store.Get(ctx, site.TableUsers, record.Where("username", "admin"))
	if err != nil || !found || rec.String("firstname") != "Ada" || rec.String("email") != "root@example.com" {
		t.Fatalf("profile not stored: %v %v %v", rec, found, err)
	}

	_, body = admin.submit("/account", site.FormEditProfile, "cancel_buttons", "Cancel")
	mustContain(t, body, `name="pieform_logout"`)

	_, body = admin.submit("/admin/site", site.FormCloseSite, "close", "1", "submit", "Close the site")
	mustContain(t, body, site.MsgSiteClosed, `value="Open the site"`)
	if closed, err := site.Closed(ctx, store); err != nil || !closed {
		t.Fatalf("site not closed: %v %v", closed, err)
	}

	jo := newBrowser()
	if status, _ := jo.get("/admin/site"); status != http.StatusForbidden {
		t.Fatalf("anonymous /admin/site status %d", status)
	}
	jo.submit("/", site.FormLogin, "username", "jo", "submit", "Log in")
	status, body := jo.get("/account")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("closed site status %d", status)
	}
	mustContain(t, body, site.MsgClosedNotice)
	if status, _ := jo.get("/admin/site"); status != http.StatusForbidden {
		t.Fatalf("non-admin /admin/site status %d", status)
	}

	_, body = admin.submit("/admin/site", site.FormCloseSite, "close", "0", "submit", "Open the site")
	mustContain(t, body, site.MsgSiteOpened)
	if status, _ := jo.get("/account"); status != http.StatusOK {
		t.Fatalf("reopened site status %d", status)
	}

	_, body = jo.submit("/", site.FormLogout, "submit", "Log out")
	mustContain(t, body, site.MsgLoggedOut, `name="pieform_login"`)
}

func TestSeed_SkipsExistingUsers(t *testing.T) {
	store, _ := setup(t)
	added, err := site.Seed(context.Background(), store,
		session.User{Username: "admin"},
		session.User{Username: "sam"},
	)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if added != 1 {
		t.Fatalf("added %d users, want 1", added)
	}
}

func TestSite_LoginIssuesNewSessionID(t *testing.T) {
	_, newBrowser := setup(t)
	victim := newBrowser()
	victim.get("/")
	planted := victim.sessionID()
	if planted == "" {
		t.Fatalf("no session cookie before login")
	}

	_, body := victim.submit("/", site.FormLogin, "username", "admin", "submit", "Log in")
	mustContain(t, body, site.MsgLoggedIn)
	if id := victim.sessionID(); id == "" || id == planted {
		t.Fatalf("login kept session id %q", planted)
	}

	req, err := http.NewRequest(http.MethodGet, victim.base+"/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: page.DefaultCookieName, Value: planted})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with old cookie: %v", err)
	}
	_, body = read(t, resp)
	mustContain(t, body, `name="pieform_login"`)
	if strings.Contains(body, `name="pieform_logout"`) {
		t.Fatalf("old session id still logged in")
	}
}
