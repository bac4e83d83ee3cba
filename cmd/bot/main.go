package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/access"
	"github.com/Shorlotik/Bot-Stomatologija/internal/admin"
	"github.com/Shorlotik/Bot-Stomatologija/internal/api"
	"github.com/Shorlotik/Bot-Stomatologija/internal/booking"
	"github.com/Shorlotik/Bot-Stomatologija/internal/bot"
	"github.com/Shorlotik/Bot-Stomatologija/internal/cache"
	"github.com/Shorlotik/Bot-Stomatologija/internal/calendar"
	"github.com/Shorlotik/Bot-Stomatologija/internal/config"
	"github.com/Shorlotik/Bot-Stomatologija/internal/database"
	"github.com/Shorlotik/Bot-Stomatologija/internal/events"
	"github.com/Shorlotik/Bot-Stomatologija/internal/health"
	"github.com/Shorlotik/Bot-Stomatologija/internal/metrics"
	"github.com/Shorlotik/Bot-Stomatologija/internal/notify"
	"github.com/Shorlotik/Bot-Stomatologija/internal/reminders"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv(config.PathEnv))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	if err := database.NewBackupService(db, cfg.Backup, &logger).Start(ctx); err != nil {
		logger.Error().Err(err).Msg("backup service not started")
	}

	engine := schedule.NewEngine(db, schedule.Config{Location: loc}, logger)

	var (
		rdb       *redis.Client
		slotCache booking.SlotInvalidator
		allCache  admin.CacheInvalidator
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		c := cache.NewSlotCache(rdb, cfg.SlotTTL(), loc, logger)
		engine.UseCache(c)
		slotCache, allCache = c, c
		defer rdb.Close()
	}

	bus := events.NewEventBus(logger)
	bookings := booking.NewService(db, engine, bus, slotCache, nil, logger)
	adminSvc := admin.NewService(db, engine, bookings, bus, allCache, logger)
	accessSvc := access.NewService(cfg.Admin.IDs, cfg.Admin.Password, db, logger)

	watcher := &config.ScheduleWatcher{
		Path:     cfg.SchedulePath,
		Interval: 30 * time.Second,
		OnUpdate: func(sc *config.ScheduleConfig) {
			engine.Reload(sc.Template(), sc.RestrictedMode())
			bookings.SetCatalog(sc.Catalog())
			applied := db.SyncHolidays(ctx, sc.BlockedDates(loc))
			if allCache != nil {
				_ = allCache.InvalidateAll(ctx)
			}
			logger.Info().Int("holidays", applied).Msg("schedule config applied")
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("schedule config rejected, keeping previous")
		},
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn().Err(err).Str("path", cfg.SchedulePath).Msg("schedule config not loaded, using defaults")
	}

	tg, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram auth error")
	}
	tg.Debug = cfg.Telegram.Debug

	notifier := notify.NewNotifier(tg, notify.DefaultConfig(), cfg.Admin.IDs, accessSvc, logger)
	notifier.Register(bus)

	calendar.NewSyncer(calendar.New(ctx, cfg.Google, loc, logger), db, logger).Register(bus)

	var registry prometheus.Registerer
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		registry = prometheus.DefaultRegisterer
	}
	if cfg.Reminders.Enabled {
		rs := reminders.NewService(
			reminders.Config{Spec: cfg.Reminders.Spec, Location: loc},
			db, notifier, reminders.NewMetrics("dental_bot", registry), logger,
		)
		if err := rs.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("reminder service not started")
		}
	}

	b, err := bot.New(tg, bookings, engine, adminSvc, accessSvc, bot.Options{
		MaxAdvance:     cfg.BookingMaxAdvance(),
		SessionTimeout: cfg.SessionTimeout(),
		Clinic:         cfg.Clinic,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	checks := []health.Check{{Name: "db", Ping: db.PingContext}}
	if rdb != nil {
		checks = append(checks, health.Check{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}
	checker := health.NewChecker(logger, checks...)
	if cfg.Monitoring.HealthCheckPort > 0 {
		go func() {
			if err := checker.ServeHTTP(ctx, cfg.Monitoring.HealthCheckPort); err != nil {
				logger.Error().Err(err).Msg("health server error")
			}
		}()
	}
	if cfg.Monitoring.GRPCHealthPort > 0 {
		go func() {
			if err := checker.ServeGRPC(ctx, cfg.Monitoring.GRPCHealthPort, 15*time.Second); err != nil {
				logger.Error().Err(err).Msg("grpc health server error")
			}
		}()
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.API.Enabled {
		srv := api.NewHTTPServer(cfg.API, engine, bookings, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("api server error")
			}
		}()
	}

	logger.Info().Str("timezone", loc.String()).Msg("dental bot started")
	b.Start(ctx)
	logger.Info().Msg("dental bot stopped")
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
