package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/auditsuite/tasktimer/internal/config"
	"github.com/auditsuite/tasktimer/internal/infrastructure/db"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/infrastructure/telemetry"
	transporthttp "github.com/auditsuite/tasktimer/internal/transport/http"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

type requestIDKey struct{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the floating surface bridge",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().String("db-driver", "postgres", "database driver: postgres | sqlite")
	serveCmd.Flags().String("session-store", "memory", "active session store: memory | redis")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("server.port", serveCmd.Flags(), "port")
	bindFlag("database.driver", serveCmd.Flags(), "db-driver")
	bindFlag("session.store", serveCmd.Flags(), "session-store")
	bindFlag("telemetry.otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("telemetry.otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.Telemetry.ServiceName, cfg.Telemetry.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	database, err := db.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Infow("database_connected", "driver", cfg.Database.Driver)

	if err := db.RunMigrations(database); err != nil {
		_ = db.Close(database)
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database migrations completed")

	comps, err := buildComponents(cfg, database, log)
	if err != nil {
		_ = db.Close(database)
		return err
	}

	app := newApp(cfg, log)
	transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
		Service: comps.service,
		Bus:     comps.bus,
		Logger:  log.Named("http"),
		Config:  cfg,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listenErr := make(chan error, 1)
	go func() {
		log.Infow("server_starting", "addr", addr)
		listenErr <- app.Listen(addr)
	}()

	return gracefulShutdown(app, database, comps, cfg.Server.ShutdownTimeout, log, listenErr)
}

func newApp(cfg *config.Config, log *logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		ErrorHandler:          globalErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	allowedOrigins := "http://localhost:3000"
	if len(cfg.Auth.AllowedOrigins) > 0 {
		allowedOrigins = strings.Join(cfg.Auth.AllowedOrigins, ",")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, " + cfg.Auth.UserHeader,
		AllowMethods: "GET, POST, HEAD",
	}))

	app.Use(func(c *fiber.Ctx) error {
		hdr := cfg.Features.RequestIDHeader
		var reqID string
		if hdr != "" {
			reqID = c.Get(hdr)
		}
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		c.SetUserContext(context.WithValue(c.UserContext(), requestIDKey{}, reqID))
		if hdr != "" {
			c.Set(hdr, reqID)
		}
		return c.Next()
	})

	if cfg.Features.EnableRequestLogging {
		app.Use(func(c *fiber.Ctx) error {
			start := time.Now()
			err := c.Next()
			routePath := ""
			if c.Route() != nil {
				routePath = c.Route().Path
			}
			log.Infow("http_access",
				"method", c.Method(),
				"path", c.Path(),
				"route", routePath,
				"query", string(c.Request().URI().QueryString()),
				"status", c.Response().StatusCode(),
				"latency_ms", time.Since(start).Milliseconds(),
				"client_ip", c.IP(),
				"user_agent", string(c.Request().Header.UserAgent()),
				"request_id", c.Locals("request_id"),
				"req_bytes", len(c.Request().Body()),
				"resp_bytes", len(c.Response().Body()),
			)
			return err
		})
	}

	return app
}

func globalErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code < fiber.StatusInternalServerError {
			log.Warnw("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", c.Locals("request_id"),
			)
		} else {
			log.Errorw("request error",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", c.Locals("request_id"),
			)
		}

		msg := err.Error()
		if code >= fiber.StatusInternalServerError {
			msg = "Something went wrong. Please try again."
		}
		return c.Status(code).JSON(fiber.Map{
			"error": msg,
		})
	}
}

func gracefulShutdown(app *fiber.App, database *gorm.DB, comps *components, timeout time.Duration, log *logger.Logger, listenErr <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case <-quit:
		log.Info("shutting down server...")
	case serveErr = <-listenErr:
		log.Errorw("server_failed", "error", serveErr)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	comps.Close(log)

	if err := db.Close(database); err != nil {
		log.Errorf("failed to close database connection: %v", err)
	}

	log.Info("server exited gracefully")
	return serveErr
}
