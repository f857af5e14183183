package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/darshan-rambhia/wxlog/internal/alerter"
	"github.com/darshan-rambhia/wxlog/internal/api"
	"github.com/darshan-rambhia/wxlog/internal/cache"
	"github.com/darshan-rambhia/wxlog/internal/collector"
	"github.com/darshan-rambhia/wxlog/internal/config"
	"github.com/darshan-rambhia/wxlog/internal/mqtt"
	"github.com/darshan-rambhia/wxlog/internal/notify"
	"github.com/darshan-rambhia/wxlog/internal/observability"
	"github.com/darshan-rambhia/wxlog/internal/store"
	"github.com/darshan-rambhia/wxlog/internal/wx"
)

// @title wxlog API
// @version 1.0
// @description Operations surface for the wxlog weather station logger
// @host localhost:8080
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

// cliFlags holds parsed command-line flags.
type cliFlags struct {
	configPath  string
	showVersion bool
	overrides   config.Overrides
}

// parseFlags parses args. Only flags present on the command line become
// overrides, so an absent -imperial does not reset metric from the file.
func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("wxlog", flag.ContinueOnError)

	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "path to wxlog.yml config file")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")
	passkey := fs.String("passkey", "", "upload passkey (overrides config)")
	dataDir := fs.String("dir", "", "database directory (overrides config)")
	imperial := fs.Bool("imperial", false, "store imperial units instead of metric")
	port := fs.Int("port", 0, "UDP port to listen on (overrides config)")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "passkey":
			f.overrides.Passkey = passkey
		case "dir":
			f.overrides.DataDir = dataDir
		case "imperial":
			metric := !*imperial
			f.overrides.Metric = &metric
		case "port":
			f.overrides.UDPPort = port
		}
	})
	return f, nil
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	ver, sha, built, dirty := buildInfo()

	if flags.showVersion {
		fmt.Printf("wxlog %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	cfg, err := config.LoadWithOverrides(flags.configPath, flags.overrides)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
			fmt.Fprintf(os.Stderr, "Copy the example config to get started:\n")
			fmt.Fprintf(os.Stderr, "  cp wxlog.example.yml %s\n", flags.configPath)
		} else {
			fmt.Fprintf(os.Stderr, "error: loading config (%s): %s\n", flags.configPath, err)
		}
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting wxlog",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
	)
	slog.Info("logger settings",
		"passkey_set", cfg.Passkey != "",
		"data_dir", cfg.DataDir,
		"metric", cfg.Metric,
		"udp_listen", cfg.UDPListen,
		"http_listen", cfg.HTTPListen,
	)

	if err := run(cfg, logger); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}

	slog.Info("wxlog stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	st := store.New(cfg.DataDir, logger.With("component", "store"))
	ex := wx.New(wx.Options{Passkey: cfg.Passkey, Metric: cfg.Metric}, logger.With("component", "extractor"))
	c := cache.New()
	metrics := observability.NewMetrics()

	opts := []collector.Option{collector.WithLogger(logger.With("component", "collector"))}

	if cfg.MQTT.Enabled {
		pub := mqtt.NewPublisher(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			Port:        cfg.MQTT.Port,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger.With("component", "mqtt"))
		g.Go(func() error { return pub.Run(ctx) })
		opts = append(opts, collector.WithPublisher(pub))
	}

	// Build notification providers
	var providers []notify.Provider
	for _, n := range cfg.Notifications {
		p, err := notify.New(notify.ProviderConfig{
			Type:    n.Type,
			URL:     n.URL,
			Topic:   n.Topic,
			Method:  n.Method,
			Headers: n.Headers,
		})
		if err != nil {
			return fmt.Errorf("notification provider: %w", err)
		}
		providers = append(providers, p)
	}

	if len(providers) > 0 {
		a := alerter.NewAlerter(c, providers, alertConfig(cfg.Alerts), nil)
		g.Go(func() error { return a.Run(ctx) })
	}

	if cfg.HTTPListen != "" {
		server := api.NewServer(cfg.HTTPListen, c, prometheus.DefaultGatherer)
		g.Go(func() error { return server.Run(ctx) })
	}

	udp := collector.NewUDPCollector(collector.Config{Addr: cfg.UDPListen}, ex, st, c, metrics, opts...)
	g.Go(func() error { return udp.Run(ctx) })

	slog.Info("all components started",
		"mqtt", cfg.MQTT.Enabled,
		"notifications", len(providers),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// alertConfig overlays configured rules on the defaults.
func alertConfig(a config.AlertsConfig) alerter.AlertConfig {
	cfg := alerter.DefaultAlertConfig()
	if s := a.StationSilent; s != nil {
		cfg.StationSilent.After = s.After.Duration
		if s.Severity != "" {
			cfg.StationSilent.Severity = s.Severity
		}
		if s.Cooldown.Duration > 0 {
			cfg.StationSilent.Cooldown = s.Cooldown.Duration
		}
	}
	if s := a.StorageFailing; s != nil {
		cfg.StorageFailing.Threshold = s.Threshold
		if s.Severity != "" {
			cfg.StorageFailing.Severity = s.Severity
		}
		if s.Cooldown.Duration > 0 {
			cfg.StorageFailing.Cooldown = s.Cooldown.Duration
		}
	}
	return cfg
}
