// Command topology-editor is the terminal editor for a calculation's
// topology and cable routes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-topology/pkg/changefeed"
	"github.com/dd0wney/cluso-topology/pkg/config"
	"github.com/dd0wney/cluso-topology/pkg/editor"
	"github.com/dd0wney/cluso-topology/pkg/health"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
	"github.com/dd0wney/cluso-topology/pkg/selection"
	"github.com/dd0wney/cluso-topology/pkg/server"
	"github.com/dd0wney/cluso-topology/pkg/syncclient"
	"github.com/dd0wney/cluso-topology/pkg/tui"
)

const defaultLogFile = "topology-editor.log"

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	mode := flag.String("mode", "", "Editor mode: topology or routes")
	baseURL := flag.String("base-url", "", "API base URL (overrides server.base_url)")
	calc := flag.Int64("calc", 0, "Calculation id (overrides server.calculation_id)")
	logFile := flag.String("log-file", "", "Log file (default "+defaultLogFile+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Editor.Mode = *mode
	}
	if *baseURL != "" {
		cfg.Server.BaseURL = *baseURL
	}
	if *calc != 0 {
		cfg.Server.CalculationID = *calc
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaultLogFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.OpenFile(cfg.Logging.File, logging.ParseLevel(cfg.Logging.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	logging.SetDefaultLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Editor stopped", logging.Error(err))
		closer.Close()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	reg := metrics.DefaultRegistry()

	client := syncclient.New(syncclient.Options{
		BaseURL:       cfg.Server.BaseURL,
		CalculationID: cfg.Server.CalculationID,
		CSRFHeader:    cfg.Server.CSRF.Header,
		CSRFToken:     cfg.Server.CSRF.Token,
		HTTPClient:    &http.Client{Timeout: cfg.Server.Timeout},
		Logger:        logger,
		Metrics:       reg,
	})

	caps := selection.TopologyEditor
	if cfg.Editor.Mode == config.ModeRoutes {
		caps = selection.RoutesEditor
	}
	caps.KeepSelectionOnReload = cfg.Editor.KeepSelectionOnReload

	session := editor.New(client, editor.Options{Caps: caps, Logger: logger, Metrics: reg})
	defer session.Close()
	logger.Info("Editor starting",
		logging.String("session", session.ID()),
		logging.String("mode", cfg.Editor.Mode),
		logging.Calculation(cfg.Server.CalculationID),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		calc := cfg.Server.CalculationID
		checks := health.NewRegistry("topology-editor", func() int64 { return calc })
		checks.Register("data", health.Liveness|health.Readiness, health.LoadCheck(session.LoadErr))

		mux := http.NewServeMux()
		mux.Handle("GET /metrics", reg.Handler())
		checks.Mount(mux)

		gs := server.NewGracefulServer(cfg.Metrics.Addr, mux, logger)
		g.Go(func() error { return gs.Serve(gctx) })
	}

	if cfg.ChangeFeed.Addr != "" {
		sub, err := changefeed.NewSubscriber(changefeed.SubscriberConfig{
			Address:     cfg.ChangeFeed.Addr,
			Calculation: cfg.Server.CalculationID,
			Logger:      logger,
			Metrics:     reg,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sub.Run(gctx, func(ctx context.Context, c changefeed.Change) {
				logger.Debug("Remote change", logging.String("kind", c.Kind), logging.Int64("id", c.ID))
				if err := session.Reload(ctx, editor.TriggerChangeFeed); err != nil {
					logger.Warn("Reload after remote change failed", logging.Error(err))
				}
			})
		})
	}

	model, err := tui.New(ctx, session, tui.Options{
		Mode:   cfg.Editor.Mode,
		Scale:  cfg.Editor.Scale,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(gctx))
	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	cancel()
	return errors.Join(runErr, g.Wait())
}
