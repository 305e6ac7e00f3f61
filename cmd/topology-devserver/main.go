// Command topology-devserver serves the calculation API from YAML fixtures
// for local editing and end-to-end tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/changefeed"
	"github.com/dd0wney/cluso-topology/pkg/config"
	"github.com/dd0wney/cluso-topology/pkg/devserver"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
	"github.com/dd0wney/cluso-topology/pkg/server"
)

const systemMetricsInterval = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	listen := flag.String("listen", "", "Listen address (overrides devserver.listen)")
	fixtures := flag.String("fixtures", "", "Fixture file (default: built-in site)")
	feedAddr := flag.String("changefeed", "", "Change feed PUB address, e.g. tcp://127.0.0.1:40899")
	csrfToken := flag.String("csrf-token", "", "Require this token on mutations")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.DevServer.Listen = *listen
	}
	if *fixtures != "" {
		cfg.DevServer.Fixtures = *fixtures
	}
	if *feedAddr != "" {
		cfg.ChangeFeed.Addr = *feedAddr
	}
	if *csrfToken != "" {
		cfg.Server.CSRF.Token = *csrfToken
	}
	if err := cfg.ValidateDevServer(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	logging.SetDefaultLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Fixture server stopped", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	started := time.Now()
	reg := metrics.DefaultRegistry()

	opts := devserver.Options{
		FixturesPath: cfg.DevServer.Fixtures,
		CSRFHeader:   cfg.Server.CSRF.Header,
		CSRFToken:    cfg.Server.CSRF.Token,
		Logger:       logger,
		Metrics:      reg,
	}

	if cfg.ChangeFeed.Addr != "" {
		pub, err := changefeed.NewPublisher(changefeed.PublisherConfig{
			Address: cfg.ChangeFeed.Addr,
			Logger:  logger,
			Metrics: reg,
		})
		if err != nil {
			return err
		}
		if err := pub.Start(); err != nil {
			return err
		}
		defer pub.Close()
		opts.Feed = pub
		opts.FeedErr = pub.LastErr
	}

	srv, err := devserver.New(opts)
	if err != nil {
		return fmt.Errorf("failed to load fixtures: %w", err)
	}
	nodes, devices, links, routes := srv.Dataset().Counts()
	logger.Info("Fixtures loaded",
		logging.Calculation(srv.Dataset().Calculation()),
		logging.Int("nodes", nodes),
		logging.Int("devices", devices),
		logging.Int("links", links),
		logging.Int("routes", routes),
	)

	gs := server.NewGracefulServer(cfg.DevServer.Listen, srv.Handler(), logger)
	gs.SetReloadFunc(srv.ReloadFixtures)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(systemMetricsInterval)
		defer ticker.Stop()
		for {
			reg.UpdateSystemMetrics(started)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return gs.Serve(ctx)
}
