// Package site is the demo site served by "pieform serve": a login page, an
// administrator page that closes the site and a profile editor backed by the
// record store.
package site

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/mahara/pieform/pkg/access"
	"github.com/mahara/pieform/pkg/dispatch"
	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/page"
	"github.com/mahara/pieform/pkg/record"
	"github.com/mahara/pieform/pkg/session"
)

//go:embed forms/*.yaml
var formsFS embed.FS

// Form names.
const (
	FormLogin       = "login"
	FormLogout      = "logout"
	FormCloseSite   = "close_site"
	FormEditProfile = "edit_profile"
)

// Messages shown to users.
const (
	MsgNoSuchUser   = "No user with that username"
	MsgEmailTaken   = "This email address is already used by another account"
	MsgLoggedIn     = "You are now logged in"
	MsgLoggedOut    = "You have been logged out"
	MsgProfileSaved = "Profile saved"
	MsgSiteClosed   = "The site is now closed to non-administrators"
	MsgSiteOpened   = "The site is open again"
	MsgClosedNotice = "The site is closed for maintenance"
	MsgLoginFirst   = "You must log in to view this page"
)

// Forms resolves descriptors by name. *model.Library and *watch.Watcher
// both satisfy it.
type Forms interface {
	Descriptor(name string) (model.Descriptor, bool)
}

// Builtin loads the embedded site descriptors.
func Builtin() (*model.Library, error) {
	sub, err := fs.Sub(formsFS, "forms")
	if err != nil {
		return nil, err
	}
	return model.LoadFS(sub)
}

// Site wires the demo pages together.
type Site struct {
	records *record.Store
	forms   Forms
	logger  *zap.Logger
}

// New returns the site. Forms falls back to the builtin descriptors.
func New(records *record.Store, forms Forms, logger *zap.Logger) (*Site, error) {
	if records == nil {
		return nil, errors.New("site: record store is required")
	}
	if forms == nil {
		lib, err := Builtin()
		if err != nil {
			return nil, err
		}
		forms = lib
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Site{records: records, forms: forms, logger: logger}, nil
}

// Register adds the site's hooks to catalog.
func (s *Site) Register(catalog *dispatch.Catalog) error {
	hooks := map[string]dispatch.Hooks{
		FormLogin:       {Validate: s.validateLogin, Submit: s.submitLogin},
		FormLogout:      {Submit: s.submitLogout},
		FormCloseSite:   {Submit: s.submitCloseSite},
		FormEditProfile: {Validate: s.validateProfile, Submit: s.submitProfile},
	}
	for _, name := range []string{FormLogin, FormLogout, FormCloseSite, FormEditProfile} {
		if err := catalog.Register(name, hooks[name]); err != nil {
			return err
		}
	}
	return nil
}

// Mount registers the site pages on mux.
func (s *Site) Mount(mux *http.ServeMux, server *page.Server) {
	mux.Handle("/", server.Handle(page.Page{Title: "Home", Forms: s.homeForms}))
	mux.Handle("/admin/site", server.Handle(page.Page{Title: "Close site", Access: requireAdmin, Forms: s.closeSiteForms}))
	mux.Handle("/account", server.Handle(page.Page{Title: "Edit profile", Access: s.requireOpenSite, Forms: s.profileForms}))
}

func (s *Site) descriptor(name string) (model.Descriptor, error) {
	desc, ok := s.forms.Descriptor(name)
	if !ok {
		return model.Descriptor{}, fmt.Errorf("site: form %q is not defined", name)
	}
	return desc, nil
}

func (s *Site) homeForms(_ context.Context, req page.Request) ([]model.Descriptor, error) {
	name := FormLogin
	if req.Env.User.LoggedIn() {
		name = FormLogout
	}
	desc, err := s.descriptor(name)
	if err != nil {
		return nil, err
	}
	return []model.Descriptor{desc}, nil
}

func requireAdmin(_ context.Context, req page.Request) error {
	if !req.Env.User.LoggedIn() {
		return access.Denied(MsgLoginFirst)
	}
	if !req.Env.User.Admin {
		return access.Denied("")
	}
	return nil
}

func (s *Site) requireOpenSite(ctx context.Context, req page.Request) error {
	if !req.Env.User.LoggedIn() {
		return access.Denied(MsgLoginFirst)
	}
	if req.Env.User.Admin {
		return nil
	}
	closed, err := Closed(ctx, s.records)
	if err != nil {
		return err
	}
	if closed {
		return &access.Error{Code: http.StatusServiceUnavailable, Message: MsgClosedNotice}
	}
	return nil
}

func (s *Site) closeSiteForms(ctx context.Context, _ page.Request) ([]model.Descriptor, error) {
	desc, err := s.descriptor(FormCloseSite)
	if err != nil {
		return nil, err
	}
	closed, err := Closed(ctx, s.records)
	if err != nil {
		return nil, err
	}
	if closed {
		desc.SetValue("close", "0")
		desc.SetValue("submit", "Open the site")
	}
	return []model.Descriptor{desc}, nil
}

func (s *Site) profileForms(ctx context.Context, req page.Request) ([]model.Descriptor, error) {
	desc, err := s.descriptor(FormEditProfile)
	if err != nil {
		return nil, err
	}
	rec, found, err := req.Env.Records.Get(ctx, TableUsers, record.Where("id", req.Env.User.ID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, access.NotFound("Your account no longer exists")
	}
	desc.SetDefault("firstname", rec.String("firstname"))
	desc.SetDefault("lastname", rec.String("lastname"))
	desc.SetDefault("email", rec.String("email"))
	desc.SetValue("userid", rec.Int("id"))
	return []model.Descriptor{desc}, nil
}

func (s *Site) validateLogin(ctx context.Context, env dispatch.Env, form *dispatch.Form, values dispatch.Values) {
	if form.HasError("username") {
		return
	}
	exists, err := env.Records.Exists(ctx, TableUsers, record.Where("username", values.String("username")))
	if err != nil {
		env.Logger.Error("look up user", zap.Error(err))
		form.SetError("", "Logging in is not possible right now")
		return
	}
	if !exists {
		form.SetError("username", MsgNoSuchUser)
	}
}

// submitLogin signs in any existing username. The demo keeps no passwords.
func (s *Site) submitLogin(ctx context.Context, env dispatch.Env, form *dispatch.Form, values dispatch.Values) error {
	rec, found, err := env.Records.Get(ctx, TableUsers, record.Where("username", values.String("username")))
	if err != nil {
		return err
	}
	if !found {
		form.SetError("username", MsgNoSuchUser)
		return nil
	}
	env.Session.Login(userFromRecord(rec))
	env.Session.AddOK(MsgLoggedIn)
	env.Logger.Info("user logged in", zap.String("username", rec.String("username")))
	form.Redirect("/")
	return nil
}

func (s *Site) submitLogout(_ context.Context, env dispatch.Env, form *dispatch.Form, _ dispatch.Values) error {
	env.Session.Logout()
	env.Session.AddInfo(MsgLoggedOut)
	form.Redirect("/")
	return nil
}

func (s *Site) submitCloseSite(ctx context.Context, env dispatch.Env, _ *dispatch.Form, values dispatch.Values) error {
	closing := values.String("close") == "1"
	if err := SetClosed(ctx, env.Records, closing); err != nil {
		return err
	}
	if closing {
		env.Session.AddOK(MsgSiteClosed)
	} else {
		env.Session.AddOK(MsgSiteOpened)
	}
	env.Logger.Info("site status changed", zap.Bool("closed", closing), zap.Int64("by", env.User.ID))
	return nil
}

func (s *Site) validateProfile(ctx context.Context, env dispatch.Env, form *dispatch.Form, values dispatch.Values) {
	if form.HasError("email") {
		return
	}
	rec, found, err := env.Records.Get(ctx, TableUsers, record.Where("email", values.String("email")))
	if err != nil && !errors.Is(err, record.ErrMultipleRecords) {
		env.Logger.Error("check email", zap.Error(err))
		form.SetError("", "Your profile could not be checked right now")
		return
	}
	if errors.Is(err, record.ErrMultipleRecords) || (found && rec.Int("id") != env.User.ID) {
		form.SetError("email", MsgEmailTaken)
	}
}

func (s *Site) submitProfile(ctx context.Context, env dispatch.Env, _ *dispatch.Form, values dispatch.Values) error {
	id, _ := values["userid"].(int64)
	if id != env.User.ID {
		return access.Denied("You may only edit your own profile")
	}

	var updated session.User
	err := env.Records.WithTx(ctx, func(ctx context.Context, tx *record.Store) error {
		n, err := tx.Update(ctx, TableUsers, record.Record{
			"firstname": values.String("firstname"),
			"lastname":  values.String("lastname"),
			"email":     values.String("email"),
		}, record.Where("id", id))
		if err != nil {
			return err
		}
		if n == 0 {
			return access.NotFound("Your account no longer exists")
		}
		rec, _, err := tx.Get(ctx, TableUsers, record.Where("id", id))
		if err != nil {
			return err
		}
		updated = userFromRecord(rec)
		return nil
	})
	if err != nil {
		return err
	}

	env.Session.User = updated
	env.Session.AddOK(MsgProfileSaved)
	return nil
}
