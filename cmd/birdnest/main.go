package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/birdnest/internal/api"
	"github.com/yegors/birdnest/internal/config"
	"github.com/yegors/birdnest/internal/feed"
	"github.com/yegors/birdnest/internal/geometry"
	"github.com/yegors/birdnest/internal/monitor"
	"github.com/yegors/birdnest/internal/operators"
	"github.com/yegors/birdnest/internal/publish"
	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/internal/storage/sqlite"
	"github.com/yegors/birdnest/internal/tracker"
	"github.com/yegors/birdnest/internal/websocket"
	"github.com/yegors/birdnest/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to the TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "birdnest:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	location, err := cfg.Report.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := feed.NewClient(cfg.Feed.DronesURL, cfg.Feed.UserAgent, cfg.Monitor.RequestTimeout, log)
	directory := operators.NewDirectory(cfg.Feed.PilotsURL, cfg.Feed.UserAgent, cfg.Monitor.RequestTimeout, log)
	builder := report.NewBuilder(report.Config{
		Precision:  cfg.Report.Precision,
		Divisor:    cfg.Report.Divisor,
		TimeLayout: cfg.Report.TimeLayout,
		Location:   location,
	}, log)

	filePublisher := publish.NewFilePublisher(cfg.Output.Path, log)
	memory := publish.NewMemory()
	sinks := publish.Fanout{filePublisher, memory}

	var history *sqlite.SightingStorage
	if cfg.History.Enabled {
		db, err := sqlite.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		history, err = sqlite.NewSightingStorage(db, cfg.History.Retention, log)
		if err != nil {
			return err
		}
		sinks = append(sinks, history)
	}

	var wsServer *websocket.Server
	if cfg.Server.Enabled {
		wsServer = websocket.NewServer(log)
		defer wsServer.Close()
		sinks = append(sinks, wsServer)
	}

	service := monitor.NewService(
		monitor.Config{
			Zone: tracker.Zone{
				Centre: geometry.Point{X: cfg.Monitor.CentreX, Y: cfg.Monitor.CentreY},
				Radius: cfg.Monitor.Radius,
			},
			PollInterval:   cfg.Monitor.PollInterval,
			ClearoutWindow: cfg.Monitor.ClearoutWindow,
		},
		fetcher,
		directory,
		builder,
		sinks,
		log,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Server.Enabled {
		var historySource api.HistorySource
		if history != nil {
			historySource = history
		}
		handler := api.NewHandler(service, memory, historySource, wsServer.HandleWebSocket, filePublisher.Path(), log)
		server := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           api.NewRouter(handler, cfg.Server.CORSAllowedOrigins, log).Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("HTTP server listening", logger.String("addr", cfg.Server.ListenAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	log.Info("birdnest monitor starting",
		logger.String("drones_url", cfg.Feed.DronesURL),
		logger.String("output", cfg.Output.Path),
		logger.Bool("server", cfg.Server.Enabled),
		logger.Bool("history", cfg.History.Enabled),
	)

	err = g.Wait()
	log.Info("birdnest monitor stopped")
	return err
}
