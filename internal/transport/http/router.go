package http

import (
	"github.com/auditsuite/tasktimer/internal/config"
	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/transport/http/handlers"
	httpmw "github.com/auditsuite/tasktimer/internal/transport/http/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Service ports.TimerService
	Bus     *notify.Bus
	Logger  *logger.Logger
	Config  *config.Config
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	taskHandler := handlers.NewTaskHandler(cfg.Service, cfg.Logger)
	sessionHandler := handlers.NewSessionHandler(cfg.Service, cfg.Logger)
	timelineHandler := handlers.NewTimelineHandler(cfg.Service, cfg.Logger)
	pipHandler := handlers.NewPiPHandler(cfg.Service, cfg.Bus, cfg.Logger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if cfg.Config.Features.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Floating surface bridge
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/pip",
		httpmw.APIKeyAuth(cfg.Config),
		httpmw.ActingUser(cfg.Config),
		websocket.New(pipHandler.Handle),
	)

	// API v1 routes
	api := app.Group("/api/v1", httpmw.APIKeyAuth(cfg.Config), httpmw.ActingUser(cfg.Config))

	api.Get("/my-tasks", taskHandler.ListMyTasks)

	// Session routes
	session := api.Group("/session")
	session.Get("/", sessionHandler.GetSession)
	session.Post("/refresh", sessionHandler.Refresh)
	session.Post("/pip", sessionHandler.OpenPiP)
	session.Post("/pip/pin", sessionHandler.Pin)

	// Task routes
	tasks := api.Group("/tasks")
	tasks.Post("/:id/start", taskHandler.Start)
	tasks.Post("/:id/resume", taskHandler.Resume)
	tasks.Post("/:id/hold", taskHandler.Hold)
	tasks.Post("/:id/incomplete", taskHandler.Incomplete)
	tasks.Post("/:id/complete", taskHandler.Complete)
	tasks.Post("/:id/for-review", taskHandler.ForReview)
	tasks.Post("/:id/finish", taskHandler.Finish)
	tasks.Get("/:id/timeline", timelineHandler.GetEvents)
}
