package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/greencampus/internal/api"
	"github.com/sadopc/greencampus/internal/apiclient"
	"github.com/sadopc/greencampus/internal/config"
	"github.com/sadopc/greencampus/internal/dashboard"
	"github.com/sadopc/greencampus/internal/export"
	"github.com/sadopc/greencampus/internal/inbox"
	"github.com/sadopc/greencampus/internal/logging"
	"github.com/sadopc/greencampus/internal/metrics"
	"github.com/sadopc/greencampus/internal/notify"
	"github.com/sadopc/greencampus/internal/session"
	"github.com/sadopc/greencampus/internal/store"
	"github.com/sadopc/greencampus/internal/tui"
)

const usage = `usage: greencampus [-config path] [command]

commands:
  tui      terminal dashboard (default)
  serve    run the HTTP API server
  token    issue a bearer token: token -email addr [-role admin|user]
  export   write the snapshot: export [-format csv|json] [-out path]
`

// backend is what the terminal dashboard and export talk to: the local
// database or a remote API server.
type backend interface {
	dashboard.Remote
	inbox.Remote
}

func main() {
	fs := flag.NewFlagSet("greencampus", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (default ~/.config/greencampus/config.toml)")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	cmd, args := "tui", fs.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "tui":
		err = runTUI(cfg)
	case "serve":
		err = runServe(cfg, args)
	case "token":
		err = runToken(cfg, args)
	case "export":
		err = runExport(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, created, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if created {
		fmt.Fprintf(os.Stderr, "wrote default config to %s\n", path)
	}
	return cfg, nil
}

// openBackend returns the remote API client when a URL is configured,
// otherwise the local database. closeFn releases it.
func openBackend(cfg *config.Config, lg *slog.Logger) (b backend, closeFn func(), err error) {
	if url := strings.TrimSpace(cfg.Remote.URL); url != "" {
		c := apiclient.New(url, cfg.Session.Token, cfg.RemoteTimeout(), apiclient.WithLogger(lg))
		return c, func() {}, nil
	}
	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return s, func() { s.Close() }, nil
}

func runTUI(cfg *config.Config) error {
	// The terminal belongs to the UI; log to the file only.
	lg, _, cleanup, err := logging.New(cfg.Log.File, cfg.Log.Level, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	b, closeBackend, err := openBackend(cfg, lg)
	if err != nil {
		return err
	}
	defer closeBackend()

	id := cfg.Identity()
	lg.Info("starting dashboard", "identity", id.String(), "remote", cfg.Remote.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dash := dashboard.New(b, id, dashboard.WithLogger(lg))
	in := inbox.New(b, id, inbox.WithLogger(lg))
	defer dash.Retire()
	defer in.Retire()

	app := tui.NewApp(ctx, dash, in, tui.WithLogger(lg))
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	if dash.Dirty() && id.IsAdmin() {
		lg.Warn("exiting with unsaved dashboard edits")
	}
	return nil
}

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", cfg.Server.Listen, "address to listen on")
	_ = fs.Parse(args)

	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is empty")
	}

	lg, accessLog, cleanup, err := logging.New(cfg.Log.File, cfg.Log.Level, os.Stdout)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	notifier := notify.New(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if _, ok := notifier.(notify.Nop); ok {
		lg.Info("smtp not configured; reply notifications disabled")
	}

	srv := api.NewServer(s, session.NewTokens(cfg.Server.JWTSecret), notifier, lg)
	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           srv.Handler(accessLog, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", slog.String("addr", *listen), slog.String("db", cfg.Database.Path))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	email := fs.String("email", "", "identity email")
	role := fs.String("role", string(session.RoleUser), "admin or user")
	ttl := fs.Duration("ttl", cfg.TokenTTL(), "token lifetime")
	_ = fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("token: -email is required")
	}
	r, err := session.ParseRole(*role)
	if err != nil {
		return err
	}
	tok, err := session.NewTokens(cfg.Server.JWTSecret).Issue(session.Identity{Email: *email, Role: r}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func runExport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "csv", "csv or json")
	out := fs.String("out", "", "output file (default greencampus-export-DATE.<format>)")
	_ = fs.Parse(args)

	lg, _, cleanup, err := logging.New(cfg.Log.File, cfg.Log.Level, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	var write func(snap metrics.Snapshot, path string) error
	switch strings.ToLower(*format) {
	case "csv":
		write = export.ToCSV
	case "json":
		write = export.ToJSON
	default:
		return fmt.Errorf("export: unknown format %q", *format)
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("greencampus-export-%s.%s", time.Now().Format("2006-01-02"), strings.ToLower(*format))
	}

	b, closeBackend, err := openBackend(cfg, lg)
	if err != nil {
		return err
	}
	defer closeBackend()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout())
	defer cancel()
	dash := dashboard.New(b, cfg.Identity(), dashboard.WithLogger(lg))
	if err := dash.Load(ctx); err != nil {
		return err
	}
	if !dash.FromRemote() {
		fmt.Fprintln(os.Stderr, "no saved snapshot; exporting default data")
	}

	if err := write(dash.Snapshot(), path); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}
