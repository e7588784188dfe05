package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahara/pieform/internal/config"
	"github.com/mahara/pieform/internal/site"
	"github.com/mahara/pieform/internal/watch"
	"github.com/mahara/pieform/pkg/dispatch"
	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/page"
	"github.com/mahara/pieform/pkg/record"
	"github.com/mahara/pieform/pkg/render"
	"github.com/mahara/pieform/pkg/renderers/html"
	"github.com/mahara/pieform/pkg/renderers/tui"
	"github.com/mahara/pieform/pkg/session"
)

var serveAdmin string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo site",
	Long: `Starts the HTTP server hosting the login page, the profile editor and the
administrator page that closes the site. The database is migrated and an
administrator account is created on first start.

The demo has no passwords: the login form accepts any seeded username,
the administrator included. Do not expose it beyond a trusted network.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAdmin, "admin", "admin", "username of the administrator created on first start")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildSite(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx := context.Background()
	if timeout := config.Duration(cfg.Server.ShutdownTimeout); timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildSite wires the stores, forms, renderers and pages described by c.
// cleanup releases everything that was opened, in reverse order.
func buildSite(ctx context.Context, c *config.Config, log *zap.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	if c.Database.Driver == "" || c.Database.Driver == record.DefaultDriver {
		if err := ensureParent(c.Database.DSN); err != nil {
			return fail(err)
		}
	}
	store, err := record.Open(c.Database.Driver, c.Database.DSN,
		record.WithPrefix(c.Database.Prefix),
		record.WithLogger(log.Named("record")),
	)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = store.Close() })

	if err := site.Migrate(ctx, store); err != nil {
		return fail(err)
	}
	if serveAdmin != "" {
		added, err := site.Seed(ctx, store, session.User{Username: serveAdmin, FirstName: "Site", LastName: "Administrator", Admin: true})
		if err != nil {
			return fail(err)
		}
		if added > 0 {
			log.Info("created administrator", zap.String("username", serveAdmin))
		}
	}

	var sessions session.Store = session.NewMemoryStore()
	if c.Session.Path != "" {
		if err := ensureParent(c.Session.Path); err != nil {
			return fail(err)
		}
		bolt, err := session.OpenBolt(c.Session.Path)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = bolt.Close() })
		sessions = bolt
	}

	forms, err := siteForms(ctx, c.Forms, log)
	if err != nil {
		return fail(err)
	}
	if w, ok := forms.(*watch.Watcher); ok {
		closers = append(closers, func() { _ = w.Stop() })
	}

	htmlRenderer, err := html.New()
	if err != nil {
		return fail(err)
	}
	registry, err := render.NewRegistry(htmlRenderer, tui.New())
	if err != nil {
		return fail(err)
	}

	selected, err := selectTheme(c.Theme)
	if err != nil {
		return fail(err)
	}

	demo, err := site.New(store, forms, log.Named("site"))
	if err != nil {
		return fail(err)
	}
	catalog := dispatch.NewCatalog()
	if err := demo.Register(catalog); err != nil {
		return fail(err)
	}

	server := &page.Server{
		Sessions:   sessions,
		Records:    store,
		Catalog:    catalog,
		Renderers:  registry,
		Logger:     log.Named("page"),
		Theme:      selected,
		CookieName: c.Session.CookieName,
		SessionTTL: config.Duration(c.Session.TTL),
		Secure:     c.Session.Secure,
	}
	mux := http.NewServeMux()
	demo.Mount(mux, server)
	if base := c.Theme.AssetBase; strings.HasPrefix(base, "/") {
		base = strings.TrimSuffix(base, "/") + "/"
		mux.Handle(base, http.StripPrefix(base, http.FileServer(http.FS(html.AssetsFS()))))
	}
	return mux, cleanup, nil
}

// ensureParent creates the directory holding a database file. In-memory and
// URI style sqlite names are left alone.
func ensureParent(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// siteForms returns the builtin descriptors, or the configured directory,
// watched for changes when requested.
func siteForms(ctx context.Context, c config.FormsConfig, log *zap.Logger) (site.Forms, error) {
	if c.Dir == "" {
		return site.Builtin()
	}
	w, err := watch.New(c.Dir,
		watch.WithLogger(log.Named("watch")),
		watch.WithOnReload(func(lib *model.Library, err error) {
			if err == nil {
				log.Info("forms reloaded", zap.Strings("forms", lib.Names()))
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	if c.Watch {
		if err := w.Start(ctx); err != nil {
			return nil, err
		}
	}
	return w, nil
}
