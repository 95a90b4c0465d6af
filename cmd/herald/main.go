package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/darshan-rambhia/herald/internal/api"
	"github.com/darshan-rambhia/herald/internal/cache"
	"github.com/darshan-rambhia/herald/internal/config"
	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/darshan-rambhia/herald/internal/notify"
	"github.com/darshan-rambhia/herald/internal/store"
	"golang.org/x/sync/errgroup"
)

// @title Herald API
// @version 1.0
// @description Notification dispatch service API
// @host localhost:5700
// @BasePath /

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS details from the
// embedded Go build info. ldflags-injected values take priority; VCS info
// from debug.ReadBuildInfo fills in anything left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver = version
	sha = commit
	built = buildTime
	dirty = "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}

	return
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "send" {
		os.Exit(runSend(os.Args[2:], os.Stdout, os.Stderr))
	}

	configPath := flag.String("config", "", "path to herald.yml config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	ver, sha, built, dirty := buildInfo()

	if *showVersion {
		fmt.Printf("herald %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath, os.Stderr)
	if err != nil {
		os.Exit(1)
	}
	setupLogging(cfg, os.Stderr)

	slog.Info("starting herald",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"listen", cfg.Listen,
	)

	st, err := store.New(cfg.DBPath, store.WithSecretKey(cfg.SecretKey))
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	stats := cache.New()
	dispatcher := newDispatcher(cfg, st, notify.WithObserver(func(t model.ChannelType, ok bool, err error) {
		stats.Record(t, ok, err, time.Now())
		if err != nil {
			slog.Warn("notification failed", "channel", t, "error", err)
		}
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	server := api.NewServer(cfg.Listen, dispatcher, st, stats)
	g.Go(func() error { return server.Run(ctx) })

	slog.Info("all components started",
		"channels", len(dispatcher.Types()),
		"notify_file", cfg.NotifyFile,
		"system_channel", cfg.SystemChannel().Type,
		"encrypted_store", cfg.SecretKey != "",
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
	}

	slog.Info("herald stopped gracefully")
}

func loadConfig(path string, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			fmt.Fprintf(stderr, "error: %s\n\n", err)
			fmt.Fprintf(stderr, "Copy the example config to get started:\n")
			fmt.Fprintf(stderr, "  cp herald.example.yml %s\n", path)
		} else {
			fmt.Fprintf(stderr, "error: loading config (%s): %s\n", path, err)
		}
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, w io.Writer) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newDispatcher wires the system channel (notify file, falling back to the
// inline config) and the per-user store into a dispatcher.
func newDispatcher(cfg *config.Config, users notify.UserModes, opts ...notify.DispatcherOption) *notify.Dispatcher {
	env := notify.Env{
		HTTP: notify.NewHTTPClient(
			notify.WithTimeout(cfg.HTTP.Timeout.Duration),
			notify.WithRetries(cfg.HTTP.Retries),
		),
		Mailer: notify.NewSMTPMailer(),
		Brand:  cfg.Brand,
		Link:   cfg.Link,
	}
	system := notify.FileSource{Path: cfg.NotifyFile, Fallback: cfg.SystemChannel()}
	return notify.NewDispatcher(notify.NewRegistry(), env, system, users, opts...)
}

// runSend performs one dispatch and returns the process exit code:
// 0 delivered, 1 failed, 2 usage or config error, 3 no channel configured.
func runSend(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to herald.yml config file")
	title := fs.String("title", "", "notification title")
	content := fs.String("content", "", "notification content")
	user := fs.String("user", "", "deliver through this user's stored channel instead of the system channel")
	timeout := fs.Duration("timeout", time.Minute, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *title == "" {
		fmt.Fprintln(stderr, "error: -title is required")
		return 2
	}

	cfg, err := loadConfig(*configPath, stderr)
	if err != nil {
		return 2
	}
	setupLogging(cfg, stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		delivered bool
		users     notify.UserModes
	)
	if *user != "" {
		st, err := store.New(cfg.DBPath, store.WithSecretKey(cfg.SecretKey))
		if err != nil {
			fmt.Fprintf(stderr, "error: opening database: %s\n", err)
			return 1
		}
		defer st.Close()
		users = st
	}

	d := newDispatcher(cfg, users)
	if *user != "" {
		delivered, err = d.NotifyUser(ctx, *user, *title, *content)
	} else {
		delivered, err = d.NotifySystem(ctx, *title, *content)
	}
	switch {
	case err != nil:
		fmt.Fprintf(stderr, "error: %s\n", err)
		return 1
	case !delivered:
		fmt.Fprintln(stderr, "no notification channel configured")
		return 3
	}
	fmt.Fprintln(stdout, "delivered")
	return 0
}
