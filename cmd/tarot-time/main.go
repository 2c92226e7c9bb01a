package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/Jereck/tarot-time/internal/config"
	"github.com/Jereck/tarot-time/internal/domain/booking"
	"github.com/Jereck/tarot-time/internal/domain/event"
	"github.com/Jereck/tarot-time/internal/domain/schedule"
	"github.com/Jereck/tarot-time/internal/platform/auth"
	"github.com/Jereck/tarot-time/internal/platform/calendar"
	"github.com/Jereck/tarot-time/internal/platform/db"
	"github.com/Jereck/tarot-time/internal/platform/idempotency"
	"github.com/Jereck/tarot-time/internal/platform/middleware"
	"github.com/Jereck/tarot-time/internal/platform/telemetry"
	"github.com/Jereck/tarot-time/migrations"
)

const (
	serviceName = "tarot-time"
	version     = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Tarot reading booking API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd, statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status, at := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, at)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsDev() && !cfg.AuthEnabled() {
		logger.Warn().Msg("owner authentication is disabled (ENV=development); do not expose this server")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	busy, committer, err := buildCalendar(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure calendar")
	}

	guard, closeGuard, err := buildGuard(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure booking guard")
	}
	defer closeGuard()

	tel := telemetry.NewProvider(serviceName)

	schedSvc := schedule.NewService(schedule.NewRepoPG(pool), logger)
	eventSvc := event.NewService(event.NewRepoPG(pool))
	bookingSvc := booking.NewService(booking.Deps{
		Schedules: schedSvc,
		Events:    eventSvc,
		Busy:      busy,
		Committer: committer,
		Guard:     guard,
		Metrics:   tel.Booking,
	}, booking.Config{
		FetchTimeout:  cfg.FetchTimeout,
		CreateTimeout: cfg.CreateTimeout,
		GuardTTL:      cfg.BookingGuardTTL,
		Step:          cfg.BookingStep(),
		Horizon:       cfg.BookingHorizon(),
	}, logger)

	e := newRouter(cfg, logger, tel, pool, schedSvc, eventSvc, bookingSvc)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("calendar", cfg.CalendarProvider).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newRouter(
	cfg *config.Config,
	logger zerolog.Logger,
	tel *telemetry.Provider,
	database db.Pinger,
	schedSvc *schedule.Service,
	eventSvc *event.Service,
	bookingSvc *booking.Service,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(tel.TracingMiddleware())
	e.Use(tel.MetricsMiddleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(database))
	e.GET("/metrics", tel.Handler())

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	owner := apiV1.Group("")
	if cfg.AuthEnabled() {
		owner.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	} else {
		owner.Use(auth.DevAuthMiddleware())
	}

	schedule.NewHandler(schedSvc).RegisterRoutes(owner)
	event.NewHandler(eventSvc).RegisterRoutes(owner, apiV1)
	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1)

	return e
}

// buildCalendar assembles the busy-time provider chain and the committer for
// the configured calendar backend. ICS feeds add busy time on top of it.
func buildCalendar(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (calendar.BusyProvider, calendar.Committer, error) {
	var (
		primary   calendar.BusyProvider
		committer calendar.Committer
	)
	switch cfg.CalendarProvider {
	case "google":
		g, err := calendar.NewGoogle(ctx, nil, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		if err != nil {
			return nil, nil, err
		}
		primary, committer = g, g
	case "memory", "":
		m := calendar.NewMemory()
		primary, committer = m, m
	default:
		return nil, nil, fmt.Errorf("unknown calendar provider %q", cfg.CalendarProvider)
	}

	providers := []calendar.BusyProvider{primary}
	if cfg.ICSFeeds != "" {
		feeds, err := calendar.ParseFeeds(cfg.ICSFeeds)
		if err != nil {
			return nil, nil, fmt.Errorf("ICS_FEEDS: %w", err)
		}
		loc, err := time.LoadLocation(cfg.ICSDefaultTZ)
		if err != nil {
			return nil, nil, fmt.Errorf("ICS_DEFAULT_TZ: %w", err)
		}
		providers = append(providers, calendar.NewICS(feeds, loc, &http.Client{Timeout: cfg.FetchTimeout}, logger))
		logger.Info().Int("owners", len(feeds)).Msg("ICS feeds configured")
	}

	var busy calendar.BusyProvider = primary
	if len(providers) > 1 {
		busy = calendar.NewComposite(providers...)
	}
	if cfg.CalendarFetchAttempts > 1 {
		busy = calendar.NewRetrying(busy, cfg.CalendarFetchAttempts, 100*time.Millisecond, logger)
	}
	return busy, committer, nil
}

// buildGuard uses Redis when REDIS_URL is set so that claims hold across
// replicas, and an in-process guard otherwise.
func buildGuard(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (idempotency.Guard, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("using in-memory booking guard")
		return idempotency.NewMemoryGuard(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info().Str("addr", opts.Addr).Msg("using redis booking guard")
	return idempotency.NewRedisGuard(client, serviceName+":booking:"), func() { client.Close() }, nil
}
