package cli

import (
	"fmt"

	"github.com/auditsuite/tasktimer/internal/config"
	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/core/services"
	"github.com/auditsuite/tasktimer/internal/core/session"
	"github.com/auditsuite/tasktimer/internal/infrastructure/db"
	"github.com/auditsuite/tasktimer/internal/infrastructure/kafka"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/infrastructure/metrics"
	redisstore "github.com/auditsuite/tasktimer/internal/infrastructure/redis"
	"gorm.io/gorm"
)

// components is everything serve needs besides the HTTP app.
type components struct {
	service ports.TimerService
	bus     *notify.Bus
	closers []func() error
}

func buildComponents(cfg *config.Config, database *gorm.DB, log *logger.Logger) (*components, error) {
	c := &components{}

	var store ports.SessionStore
	switch cfg.Session.Store {
	case "redis":
		client := redisstore.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		c.closers = append(c.closers, client.Close)
		store = redisstore.NewSessionStore(client, cfg.Session.TTL)
		log.Infow("session_store_ready", "store", "redis", "addr", cfg.Redis.Addr)
	case "memory":
		store = session.NewMemoryStore()
		log.Infow("session_store_ready", "store", "memory")
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Session.Store)
	}

	var publisher ports.TransitionPublisher = kafka.NopPublisher{}
	if cfg.Events.Enabled {
		publisher = kafka.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		c.closers = append(c.closers, publisher.Close)
		log.Infow("transition_publisher_ready", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	c.bus = notify.NewBus(log.Named("notify"))
	metrics.ObserveBus(c.bus)
	surfaces := notify.NewSurfaceState(c.bus)

	c.service = services.NewTimerService(services.TimerServiceConfig{
		Backend:     db.NewTaskRepository(database, log.Named("db")),
		Timeline:    db.NewTimelineRepository(database, log.Named("db")),
		Tracker:     session.NewTracker(store),
		Bus:         c.bus,
		Surfaces:    surfaces,
		Publisher:   publisher,
		Logger:      log.Named("timer"),
		EnableLocks: cfg.Features.EnableLocks,
	})
	c.closers = append(c.closers, func() error {
		surfaces.Close()
		return nil
	})
	return c, nil
}

func (c *components) Close(log *logger.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warnw("component_close_failed", "error", err)
		}
	}
}
