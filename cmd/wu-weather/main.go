package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/wu-weather/internal/api/http"
	"github.com/i474232898/wu-weather/internal/config"
	"github.com/i474232898/wu-weather/internal/logging"
	"github.com/i474232898/wu-weather/internal/scheduler"
	"github.com/i474232898/wu-weather/internal/store"
	"github.com/i474232898/wu-weather/internal/weather"
	"github.com/i474232898/wu-weather/internal/weather/providers"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "wu-weather",
		Short:         "Weather Underground PWS scraper",
		Long:          "Scrapes Weather Underground station dashboards and exposes normalized metric attributes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run a single refresh cycle for one station and print its attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			u, _ := cmd.Flags().GetString("url")
			stationID, _ := cmd.Flags().GetString("station-id")
			return fetchOnce(cmd.Context(), weather.StationConfig{Name: name, URL: u, StationID: stationID})
		},
	}
	fetchCmd.Flags().String("name", "WU Weather", "station name")
	fetchCmd.Flags().String("url", "", "current weather (dashboard) url")
	fetchCmd.Flags().String("station-id", "", "PWS station id (default: last path segment of --url)")
	_ = fetchCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(serveCmd, fetchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	service *weather.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for the page and the observations API.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	fetcher := providers.NewFetcher(httpClient, log)
	observations := providers.NewObservationClient(fetcher, cfg.ObservationsURL, cfg.APIRateLimit, cfg.APIRateBurst)

	service := weather.NewService(store.NewMemoryStore(), fetcher, observations, log)
	return &app{cfg: cfg, logger: log, service: service}, nil
}

func serve() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	if len(a.cfg.Stations) == 0 {
		return fmt.Errorf("no stations configured; set WU_CURRENT_WEATHER_URL or STATIONS_FILE")
	}
	for _, st := range a.cfg.Stations {
		if _, err := a.service.Configure(st); err != nil {
			return err
		}
	}

	// Scheduler that periodically refreshes every station.
	sched := scheduler.New(a.service, a.cfg.FetchInterval, a.logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	server := fiber.New(fiber.Config{
		AppName:               "wu-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          45 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	server.Use(logger.New())
	server.Use(recover.New())

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "wu-weather",
		})
	})

	httpapi.RegisterRoutes(server, a.service)

	go func() {
		a.logger.Info("http server listening", zap.String("port", a.cfg.Port))
		if err := server.Listen(":" + a.cfg.Port); err != nil {
			a.logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", zap.Error(err))
	}
	return nil
}

func fetchOnce(ctx context.Context, cfg weather.StationConfig) error {
	if err := config.ValidateStation(cfg); err != nil {
		return fmt.Errorf("invalid station: %w", err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	st, err := a.service.Configure(cfg)
	if err != nil {
		return err
	}

	attrs, err := st.Refresh(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Station    string             `json:"station"`
		Status     weather.Status     `json:"status"`
		Attributes weather.Attributes `json:"attributes"`
	}{st.Name(), st.Status(), attrs})
}
