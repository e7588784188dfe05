// Package page is the net/http glue around the dispatcher. One Page answers
// one URL: it loads the session, checks access, builds the page's forms,
// hands the request to the one that was submitted and then redirects,
// replies with JSON or renders every form inside the page layout.
package page

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	theme "github.com/goliatone/go-theme"
	"go.uber.org/zap"

	"github.com/mahara/pieform/pkg/access"
	"github.com/mahara/pieform/pkg/dispatch"
	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/param"
	"github.com/mahara/pieform/pkg/record"
	"github.com/mahara/pieform/pkg/render"
	rendertemplate "github.com/mahara/pieform/pkg/render/template"
	"github.com/mahara/pieform/pkg/render/template/pongo"
	"github.com/mahara/pieform/pkg/reply"
	"github.com/mahara/pieform/pkg/session"
)

// DefaultCookieName names the session cookie when Server.CookieName is empty.
const DefaultCookieName = "pieform_session"

// maxUploadSize bounds multipart bodies kept in memory.
const maxUploadSize = 32 << 20

//go:embed templates/*.tpl
var templateFS embed.FS

// Request is what access checks and form builders see of a request.
type Request struct {
	HTTP   *http.Request
	Env    dispatch.Env
	Params param.Values
}

// AccessFunc decides whether the request may proceed. Returning an
// *access.Error answers with its status; any other error is a 500.
type AccessFunc func(ctx context.Context, req Request) error

// FormsFunc returns the descriptors the page shows, in display order.
type FormsFunc func(ctx context.Context, req Request) ([]model.Descriptor, error)

// Page is one URL of the site.
type Page struct {
	Title  string
	Access AccessFunc
	Forms  FormsFunc
	// JSON makes access failures and errors answer with a reply envelope.
	JSON bool
	// Renderer names the registry entry used for the forms; empty picks the
	// registry fallback.
	Renderer string
}

// Server holds what every page shares.
type Server struct {
	Sessions   session.Store
	Records    *record.Store
	Catalog    *dispatch.Catalog
	Renderers  *render.Registry
	Logger     *zap.Logger
	Theme      *theme.RendererConfig
	CookieName string
	SessionTTL time.Duration
	// Secure marks the session cookie as HTTPS only.
	Secure bool
	// Layout renders layout.tpl and error.tpl; the embedded templates are
	// used when nil.
	Layout rendertemplate.TemplateRenderer
	// Now is the clock used for session expiry.
	Now func() time.Time

	layoutOnce sync.Once
	layoutErr  error
}

// Templates returns the embedded page templates.
func Templates() fs.FS {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Handle returns the handler serving p.
func (s *Server) Handle(p Page) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, p)
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, p Page) {
	ctx := r.Context()
	logger := s.logger().With(zap.String("method", r.Method), zap.String("path", r.URL.Path))

	sess, err := s.loadSession(ctx, r)
	if err != nil {
		logger.Error("load session", zap.Error(err))
		s.fail(w, p, nil, err)
		return
	}
	loadedID := sess.ID
	env := dispatch.Env{
		User:    sess.User,
		Session: sess,
		Records: s.Records,
		Logger:  logger,
	}

	params, err := s.params(w, r)
	if err != nil {
		s.fail(w, p, sess, err)
		return
	}
	req := Request{HTTP: r, Env: env, Params: params}

	if p.Access != nil {
		if err := p.Access(ctx, req); err != nil {
			s.finish(ctx, w, sess, loadedID, logger)
			s.fail(w, p, sess, err)
			return
		}
	}

	set, err := s.buildSet(ctx, p, req)
	if err != nil {
		logger.Error("build forms", zap.Error(err))
		s.fail(w, p, sess, err)
		return
	}

	outcome, err := set.Process(ctx, env, r.Method, submission(r))
	if err != nil {
		if access.StatusOf(err) == http.StatusInternalServerError {
			logger.Error("process form", zap.Stringer("status", outcome.Status), zap.Error(err))
		}
		s.finish(ctx, w, sess, loadedID, logger)
		s.fail(w, p, sess, err)
		return
	}
	if outcome.Form != nil {
		logger.Debug("form processed", zap.String("form", outcome.Form.Name()), zap.Stringer("status", outcome.Status))
	}

	switch {
	case outcome.Reply != nil:
		s.finish(ctx, w, sess, loadedID, logger)
		if err := reply.Write(w, http.StatusOK, *outcome.Reply); err != nil {
			logger.Warn("write reply", zap.Error(err))
		}
		return
	case outcome.Redirect != "":
		s.finish(ctx, w, sess, loadedID, logger)
		http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
		return
	case outcome.Status == dispatch.StatusSubmitted || outcome.Status == dispatch.StatusCancelled:
		s.finish(ctx, w, sess, loadedID, logger)
		http.Redirect(w, r, r.URL.RequestURI(), http.StatusSeeOther)
		return
	}

	body, err := s.renderPage(ctx, p, set, outcome, sess)
	if err != nil {
		logger.Error("render page", zap.Error(err))
		s.fail(w, p, sess, err)
		return
	}
	s.finish(ctx, w, sess, loadedID, logger)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) params(w http.ResponseWriter, r *http.Request) (param.Values, error) {
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	}
	return param.From(r)
}

// submission returns the values a form may be submitted with: the POST body
// for POST requests, the query string otherwise. Query parameters never count
// towards a POST submission.
func submission(r *http.Request) url.Values {
	if r.Method == http.MethodPost {
		if r.PostForm == nil {
			return url.Values{}
		}
		return r.PostForm
	}
	return r.URL.Query()
}

func (s *Server) buildSet(ctx context.Context, p Page, req Request) (*dispatch.Set, error) {
	set, err := dispatch.NewSet()
	if err != nil {
		return nil, err
	}
	if p.Forms == nil {
		return set, nil
	}
	descs, err := p.Forms(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.Catalog == nil && len(descs) > 0 {
		return nil, errors.New("page: no catalog configured")
	}
	for _, desc := range descs {
		form, err := s.Catalog.Bind(desc)
		if err != nil {
			return nil, err
		}
		if err := set.Add(form); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (s *Server) renderPage(ctx context.Context, p Page, set *dispatch.Set, outcome dispatch.Outcome, sess *session.Session) ([]byte, error) {
	if s.Renderers == nil && len(set.Forms()) > 0 {
		return nil, errors.New("page: no renderers configured")
	}

	forms := make([]string, 0, len(set.Forms()))
	for _, form := range set.Forms() {
		desc := *form.Descriptor()
		opts := render.RenderOptions{
			Hidden: render.SubmissionFields(desc, sess.Key, nil),
			Theme:  s.Theme,
		}
		if outcome.Form == form {
			opts.Values = map[string]any(outcome.Values)
			opts.Errors = render.MapErrors(desc, outcome.Errors.Fields, outcome.Errors.Form...)
		}
		out, err := s.Renderers.Render(ctx, p.Renderer, desc, opts)
		if err != nil {
			return nil, fmt.Errorf("page: render form %q: %w", desc.Name, err)
		}
		forms = append(forms, string(out))
	}

	messages := make([]map[string]any, 0, len(sess.Messages))
	for _, msg := range sess.TakeMessages() {
		messages = append(messages, map[string]any{"level": msg.Level, "text": msg.Text})
	}

	layout, err := s.layout()
	if err != nil {
		return nil, err
	}
	out, err := layout.RenderTemplate("layout", map[string]any{
		"title":    p.Title,
		"messages": messages,
		"forms":    forms,
		"theme":    s.themeView(),
	})
	if err != nil {
		return nil, fmt.Errorf("page: render layout: %w", err)
	}
	return []byte(out), nil
}

// fail answers with the status carried by err. Internal errors never show
// their text.
func (s *Server) fail(w http.ResponseWriter, p Page, sess *session.Session, err error) {
	status := access.StatusOf(err)
	message := access.Message(err)
	if status == http.StatusInternalServerError {
		message = "An internal error occurred. Please try again later."
	}

	if p.JSON {
		if writeErr := reply.Write(w, status, reply.Fail(message, nil)); writeErr != nil {
			s.logger().Warn("write error reply", zap.Error(writeErr))
		}
		return
	}

	body := message
	if layout, layoutErr := s.layout(); layoutErr == nil {
		rendered, renderErr := layout.RenderTemplate("error", map[string]any{
			"status":  status,
			"title":   http.StatusText(status),
			"message": message,
		})
		if renderErr == nil {
			body = rendered
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *Server) loadSession(ctx context.Context, r *http.Request) (*session.Session, error) {
	now := s.now()
	if cookie, err := r.Cookie(s.cookieName()); err == nil && cookie.Value != "" && s.Sessions != nil {
		sess, err := s.Sessions.Load(ctx, cookie.Value)
		switch {
		case err == nil && !sess.Expired(now):
			return sess, nil
		case err != nil && !errors.Is(err, session.ErrNotFound):
			return nil, err
		}
	}
	return session.New(now, s.SessionTTL), nil
}

// finish persists the session and sets the cookie. It must run before the
// response status is written. A session whose id changed since loadedID was
// read (login, logout) drops the old record.
func (s *Server) finish(ctx context.Context, w http.ResponseWriter, sess *session.Session, loadedID string, logger *zap.Logger) {
	if sess == nil || s.Sessions == nil {
		return
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		logger.Error("save session", zap.Error(err))
		return
	}
	if loadedID != "" && loadedID != sess.ID {
		if err := s.Sessions.Delete(ctx, loadedID); err != nil && !errors.Is(err, session.ErrNotFound) {
			logger.Warn("delete replaced session", zap.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) layout() (rendertemplate.TemplateRenderer, error) {
	s.layoutOnce.Do(func() {
		if s.Layout != nil {
			return
		}
		engine, err := pongo.New(pongo.WithName("pieform-page"), pongo.WithFS(Templates()))
		if err != nil {
			s.layoutErr = fmt.Errorf("page: configure layout: %w", err)
			return
		}
		s.Layout = engine
	})
	return s.Layout, s.layoutErr
}

func (s *Server) themeView() map[string]any {
	view := map[string]any{}
	if s.Theme == nil {
		return view
	}
	view["variant"] = s.Theme.Variant
	if s.Theme.AssetURL != nil {
		view["stylesheet"] = s.Theme.AssetURL("site.css")
	}
	return view
}

func (s *Server) cookieName() string {
	if s.CookieName != "" {
		return s.CookieName
	}
	return DefaultCookieName
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
