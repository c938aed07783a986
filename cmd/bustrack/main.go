package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"bustrack/internal/config"
	"bustrack/internal/tracker"
)

func main() {
	cliApp := &cli.App{
		Name:  "bustrack",
		Usage: "track live bus positions on monitored routes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML configuration file", EnvVars: []string{"BUSTRACK_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "pretty", Usage: "human-readable console logs"},
			&cli.IntFlag{Name: "port", Usage: "HTTP port (overrides configuration)"},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the poller and the HTTP API",
				Action: serveAction,
			},
			{
				Name:  "routes",
				Usage: "load the route directory once and print the monitored routes",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "print every route in the directory"},
				},
				Action: routesAction,
			},
			{
				Name:   "poll",
				Usage:  "load the route directory, poll the feed once and print the record",
				Action: pollAction,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		var cfgErr *tracker.ConfigError
		if errors.As(err, &cfgErr) {
			os.Stderr.WriteString(err.Error() + "\n")
		} else {
			logger := newLogger("error", false)
			logger.Error().Err(err).Str("kind", tracker.Kind(err)).Send()
		}
		os.Exit(1)
	}
}

func newLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

// setup loads configuration and builds the app. Configuration errors surface
// here, before anything is started.
func setup(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := newLogger(c.String("log-level"), c.Bool("pretty"))
	return newApp(cfg, logger), nil
}

func serveAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info().
		Strs("monitored", a.cfg.MonitoredRoutes).
		Dur("poll_interval", a.cfg.PollInterval).
		Str("feed_format", a.cfg.FeedFormat).
		Msg("bustrack starting")

	err = a.serve(ctx)
	if ctx.Err() != nil {
		a.logger.Info().Msg("shutting down")
		return nil
	}
	return err
}

func routesAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	if err := a.refresher.Refresh(c.Context); err != nil {
		return err
	}

	routes := a.selectedRoutes()
	if c.Bool("all") {
		routes = a.directory.Snapshot().Routes()
	}
	return printJSON(c, routes)
}

func pollAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, a.cfg.ArchiveTimeout+a.cfg.FetchTimeout)
	defer cancel()

	if err := a.refresher.Refresh(ctx); err != nil {
		return err
	}
	rec, err := a.poller.Poll(ctx)
	if err != nil {
		return err
	}
	return printJSON(c, rec)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
