package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mahara/pieform/internal/config"
	"github.com/mahara/pieform/pkg/model"
)

// execute runs the root command with fresh global flags and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	verbose = false
	formsPath, rendererName, sessionKey, locale = "", "html", "", ""
	inlineStyles, lintStrict = false, false
	openapiOperation, openapiRender, openapiValidate, openapiExternal = "", false, false, false
	openapiTimeout = 30 * time.Second

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRenderCmd_BuiltinLogin(t *testing.T) {
	out, err := execute(t, "render", "login", "--session-key", "k1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, fragment := range []string{
		`name="login"`,
		`<input type="hidden" name="pieform_login" value="">`,
		`<input type="hidden" name="sesskey" value="k1">`,
		`value="Log in"`,
	} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("output missing %q\n%s", fragment, out)
		}
	}

	if _, err := execute(t, "render", "nope"); err == nil {
		t.Fatalf("expected an error for an unknown form")
	}
}

func TestRenderCmd_FormsFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "feedback.yaml", `
feedback:
  elements:
    comment:
      type: textarea
    send:
      type: submit
`)
	out, err := execute(t, "render", "feedback", "--forms", path)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `name="comment"`) {
		t.Fatalf("textarea not rendered\n%s", out)
	}
}

func TestLintCmd(t *testing.T) {
	good := t.TempDir()
	writeFile(t, good, "forms.yaml", `
contact:
  elements:
    email:
      type: email
    send:
      type: submit
notice:
  elements:
    text:
      type: html
      value: "<p>Read me</p>"
`)
	out, err := execute(t, "lint", good)
	if err != nil {
		t.Fatalf("lint: %v\n%s", err, out)
	}
	if !strings.Contains(out, "contact (2 elements: email=1 submit=1)") {
		t.Fatalf("unexpected report\n%s", out)
	}

	out, err = execute(t, "lint", "--strict", good)
	if err == nil || !strings.Contains(out, "notice: no submit button") {
		t.Fatalf("strict lint err %v\n%s", err, out)
	}

	bad := t.TempDir()
	writeFile(t, bad, "broken.yaml", `
broken:
  elements:
    thing:
      type: hologram
`)
	out, err = execute(t, "lint", bad)
	if err == nil || !strings.Contains(out, "FAIL") {
		t.Fatalf("broken lint err %v\n%s", err, out)
	}
}

const registerDocument = `
openapi: 3.0.3
info:
  title: Signup
  version: "1.0"
paths:
  /register:
    post:
      operationId: register
      summary: Create an account
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [username]
              properties:
                username:
                  type: string
                  maxLength: 30
                plan:
                  type: string
                  enum: [free, paid]
      responses:
        "201":
          description: created
`

func TestOpenAPICmd(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "api.yaml", registerDocument)

	out, err := execute(t, "openapi", doc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "register") || !strings.Contains(out, "/register") {
		t.Fatalf("operation not listed\n%s", out)
	}

	out, err = execute(t, "openapi", doc, "--operation", "register")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	configs, err := model.ParseConfigs([]byte(out), "register.yaml")
	if err != nil {
		t.Fatalf("parse generated descriptor: %v\n%s", err, out)
	}
	if len(configs) != 1 {
		t.Fatalf("got %d configs", len(configs))
	}
	desc, err := model.Build(configs[0])
	if err != nil {
		t.Fatalf("build generated descriptor: %v", err)
	}
	if el, ok := desc.Element("plan"); !ok || el.Type != model.ElementSelect {
		t.Fatalf("plan element %+v", el)
	}

	out, err = execute(t, "openapi", doc, "--operation", "register", "--render")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `name="pieform_register"`) {
		t.Fatalf("rendered form missing marker\n%s", out)
	}
}

func TestBuildSite_ServesPagesAndAssets(t *testing.T) {
	c := config.Default()
	c.Database.DSN = filepath.Join(t.TempDir(), "site.db")
	c.Theme.Variant = "dark"
	c.Theme.CSSVars = map[string]string{"pieform-accent": "#ff0000"}

	handler, cleanup, err := buildSite(context.Background(), c, zap.NewNop())
	if err != nil {
		t.Fatalf("build site: %v", err)
	}
	t.Cleanup(cleanup)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, fragment := range []string{
		`name="pieform_login"`,
		`<link rel="stylesheet" href="/static/pieform.css">`,
		`data-variant="dark"`,
		`--pieform-accent: #ff0000;`,
	} {
		if !strings.Contains(string(body), fragment) {
			t.Fatalf("home page missing %q\n%s", fragment, body)
		}
	}

	resp, err = http.Get(ts.URL + "/static/pieform.css")
	if err != nil {
		t.Fatalf("GET stylesheet: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stylesheet status %d", resp.StatusCode)
	}
}

func TestServeCmd_HelpWarnsAboutPasswordlessLogin(t *testing.T) {
	out, err := execute(t, "serve", "--help")
	if err != nil {
		t.Fatalf("serve --help: %v", err)
	}
	for _, fragment := range []string{"no passwords", "any seeded username", "administrator included"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("serve help missing %q\n%s", fragment, out)
		}
	}
}

func TestSelectTheme(t *testing.T) {
	if selected, err := selectTheme(config.ThemeConfig{}); err != nil || selected != nil {
		t.Fatalf("empty theme: %v %v", selected, err)
	}
	if _, err := selectTheme(config.ThemeConfig{Name: "neon"}); err == nil {
		t.Fatalf("expected an error for an unknown theme")
	}
	selected, err := selectTheme(config.ThemeConfig{Name: "raw", AssetBase: "/assets/"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := selected.AssetURL("pieform.css"); got != "/assets/pieform.css" {
		t.Fatalf("asset url %q", got)
	}
	if selected.CSSVars["--pieform-bg"] != "#ffffff" {
		t.Fatalf("css vars %v", selected.CSSVars)
	}
}
