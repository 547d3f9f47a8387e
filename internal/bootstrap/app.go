package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/slotbot/api"
	"github.com/Domenick1991/slotbot/config"
	"github.com/Domenick1991/slotbot/internal/cache"
	"github.com/Domenick1991/slotbot/internal/clock"
	"github.com/Domenick1991/slotbot/internal/dialog"
	"github.com/Domenick1991/slotbot/internal/kafka"
	"github.com/Domenick1991/slotbot/internal/notify"
	"github.com/Domenick1991/slotbot/internal/scheduler"
	"github.com/Domenick1991/slotbot/internal/service/booking"
	"github.com/Domenick1991/slotbot/internal/service/schedule"
)

// App holds the wired services shared by the API and worker processes.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Clock    *clock.Clock
	Store    *Store
	Cache    *cache.RedisCache
	Producer *kafka.Producer
	Bookings *booking.BookingService
	Schedule *schedule.ScheduleService
	Sessions dialog.SessionStore
}

// NewApp opens the store and builds the services. Redis and Kafka are
// optional: without Redis the schedule is read from the store and
// conversations live in memory, without Kafka notices go to the log sender.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	clk, err := clock.New(cfg.Booking.Timezone)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, Clock: clk, Store: store}

	var (
		scheduleCache schedule.ScheduleCache
		opts          []booking.BookingServiceOption
	)
	if cfg.Redis.Addr != "" {
		app.Cache = cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.ScheduleCacheSeconds)*time.Second)
		if err := app.Cache.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, continuing", "addr", cfg.Redis.Addr, "error", err)
		}
		scheduleCache = app.Cache
		opts = append(opts, booking.WithCache(app.Cache))
		app.Sessions = dialog.NewRedisSessionStore(app.Cache, time.Duration(cfg.Booking.SessionTTLMinutes)*time.Minute)
	} else {
		app.Sessions = dialog.NewMemorySessionStore()
	}

	app.Schedule = schedule.NewScheduleService(store.Bookings, scheduleCache, clk, logger.With("component", "schedule"))
	opts = append(opts, booking.WithBusySource(app.Schedule), booking.WithLogger(logger.With("component", "booking")))

	notifyOpts := notify.Options{
		GroupChatID:  cfg.Chat.GroupChatID,
		ReminderLead: cfg.Booking.ReminderLead(),
		Grace:        cfg.Booking.Grace(),
		Now:          clk.Now,
	}
	var notifier booking.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		app.Producer = kafka.NewProducer(cfg.Kafka.Brokers, logger.With("component", "kafka"))
		notifier = notify.NewKafkaNotifier(app.Producer, cfg.Kafka.NotificationsTopic, notifyOpts)
		if cfg.Kafka.BookingEventsTopic != "" {
			opts = append(opts, booking.WithProducer(app.Producer, cfg.Kafka.BookingEventsTopic))
		}
	} else {
		notifier = notify.NewDirectNotifier(notify.NewLogSender(logger.With("component", "notify")), notifyOpts)
	}

	app.Bookings = booking.NewBookingService(store.Bookings, clk, notifier, booking.Settings{
		MaxDuration:     cfg.Booking.MaxDuration(),
		ReminderLead:    cfg.Booking.ReminderLead(),
		Grace:           cfg.Booking.Grace(),
		SlotLockTTL:     time.Duration(cfg.Booking.SlotLockSeconds) * time.Second,
		AdminIDs:        cfg.Chat.AdminIDs,
		GroupRetryAfter: cfg.Scheduler.Tick(),
	}, opts...)

	return app, nil
}

func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Store.Bookings, a.Bookings, a.Clock, a.Config.Scheduler.Tick(), a.Logger.With("component", "scheduler"))
}

// Handlers builds the HTTP handlers with a health check per configured dependency.
func (a *App) Handlers() api.Handlers {
	checks := map[string]api.HealthCheck{"database": a.Store.Ping}
	if a.Cache != nil {
		checks["redis"] = a.Cache.Ping
	}
	if a.Producer != nil {
		checks["kafka"] = a.Producer.CheckConnection
	}
	return api.Handlers{
		Bookings:      api.NewBookingHandler(a.Bookings),
		Schedule:      api.NewScheduleHandler(a.Schedule, a.Bookings),
		Conversations: api.NewConversationHandler(dialog.NewConversation(a.Bookings, a.Sessions)),
		Checks:        checks,
	}
}

func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Logger.Warn("close kafka producer", "error", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("close redis", "error", err)
		}
	}
	a.Store.Close()
}

func (a *App) String() string {
	return fmt.Sprintf("db=%s redis=%t kafka=%t", a.Config.Database.Driver, a.Cache != nil, a.Producer != nil)
}
