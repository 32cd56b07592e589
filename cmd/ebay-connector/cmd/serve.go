package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/ebay-connector/api/openapi"
	"github.com/donaldgifford/ebay-connector/internal/api/handlers"
	"github.com/donaldgifford/ebay-connector/internal/api/middleware"
	"github.com/donaldgifford/ebay-connector/internal/config"
	"github.com/donaldgifford/ebay-connector/internal/core"
	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/engine"
	"github.com/donaldgifford/ebay-connector/internal/inventory"
	"github.com/donaldgifford/ebay-connector/internal/notification"
	"github.com/donaldgifford/ebay-connector/internal/notify"
	"github.com/donaldgifford/ebay-connector/internal/publish"
	"github.com/donaldgifford/ebay-connector/internal/store"
	"github.com/donaldgifford/ebay-connector/internal/syncer"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	"github.com/donaldgifford/ebay-connector/internal/tracing"
	"github.com/donaldgifford/ebay-connector/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, task workers and scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// app holds the long-lived components started by serve.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *store.PostgresStore
	rl     *ebay.RateLimiter
	ebay   *ebay.TradingClient
	core   *core.Client
	queue  taskQueue
	pub    *publish.Service
	syncer *syncer.Syncer
	sched  *engine.Scheduler
	disp   *notification.Dispatcher
	redis  *redis.Client
}

// taskQueue is a tasks.Queue with a lifecycle.
type taskQueue interface {
	tasks.Queue
	run(ctx context.Context)
	stop()
}

type memoryQueue struct{ *tasks.MemoryQueue }

func (q memoryQueue) run(ctx context.Context) { q.Start(ctx) }
func (q memoryQueue) stop()                   { q.Stop() }

type kafkaQueue struct {
	*tasks.KafkaQueue
	log *slog.Logger
}

func (q kafkaQueue) run(ctx context.Context) {
	go func() {
		if err := q.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			q.log.Error("kafka task consumer stopped", "error", err)
		}
	}()
}

func (q kafkaQueue) stop() {
	if err := q.Close(); err != nil {
		q.log.Error("closing kafka task queue", "error", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Setup(ctx, tracing.Config{
			Endpoint:       cfg.Tracing.Endpoint,
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: Version,
		})
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				log.Error("flushing telemetry", "error", err)
			}
		}()
		log.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	a.queue.run(ctx)
	a.sched.RecoverStaleJobRuns(ctx)
	a.sched.Start()
	a.sched.SyncNextRunTimestamps()

	e := a.newServer()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr, "version", Version)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()

	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	select {
	case <-a.sched.Stop().Done():
	case <-sctx.Done():
		log.Warn("scheduler did not stop in time")
	}

	log.Info("server stopped")
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	st, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.store = st

	a.rl = ebay.NewRateLimiter(cfg.Ebay.RateLimit.PerSecond, cfg.Ebay.RateLimit.Burst, cfg.Ebay.RateLimit.DailyLimit)
	a.ebay = ebay.NewTradingClient(
		ebay.Credentials{DevID: cfg.Ebay.DevID, AppID: cfg.Ebay.AppID, CertID: cfg.Ebay.CertID},
		ebay.WithTradingURL(cfg.Ebay.TradingURL),
		ebay.WithInventoryURL(cfg.Ebay.InventoryURL),
		ebay.WithCompatibilityLevel(cfg.Ebay.CompatibilityLevel),
		ebay.WithTimeout(cfg.Ebay.Timeout),
		ebay.WithRateLimiter(a.rl),
		ebay.WithLogger(logger.Component(log, "ebay")),
	)
	a.core = core.NewClient(
		cfg.Core.BaseURL,
		cfg.Core.APIKey,
		core.WithTimeout(cfg.Core.Timeout),
		core.WithPageSize(cfg.Sync.PageSize),
		core.WithLogger(logger.Component(log, "core")),
	)

	exec := tasks.NewExecutor(tasks.WithExecutorLogger(logger.Component(log, "tasks")))
	if a.queue, err = newTaskQueue(cfg.Tasks, exec, log); err != nil {
		st.Close()
		return nil, err
	}

	notifier := newNotifier(cfg.Alerts, log)

	if a.pub, err = newPublisher(cfg, st, a.ebay, a.queue, notifier, log); err != nil {
		a.close()
		return nil, err
	}
	a.pub.RegisterTasks(exec, tasks.RetryPolicy{
		MaxRetries: cfg.Publish.MaxRetries,
		Delay:      cfg.Publish.RetryDelay,
	})

	a.syncer = syncer.New(st, a.ebay, a.core, a.pub, a.queue,
		syncer.WithServiceLogger(logger.Component(log, "syncer")),
		syncer.WithSKUPrefix(cfg.SKU.Prefix),
		syncer.WithOrderPages(cfg.Sync.PageSize, 0),
		syncer.WithBatchSize(cfg.Sync.CategoryBatchSize),
	)
	a.syncer.RegisterTasks(exec, tasks.RetryPolicy{
		MaxRetries:  cfg.Publish.MaxRetries,
		Delay:       cfg.Publish.RetryDelay,
		Exponential: true,
	})

	eng := engine.NewEngine(st, a.syncer, notifier,
		engine.WithLogger(logger.Component(log, "engine")),
		engine.WithCountries(cfg.Sync.Countries),
	)
	a.sched, err = engine.NewScheduler(eng, st, map[string]time.Duration{
		engine.JobProducts:   cfg.Sync.ProductsInterval,
		engine.JobOrders:     cfg.Sync.OrdersInterval,
		engine.JobReturns:    cfg.Sync.ReturnsInterval,
		engine.JobCategories: cfg.Sync.CategoriesInterval,
		engine.JobShipping:   cfg.Sync.ShippingInterval,
	}, logger.Component(log, "scheduler"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	dopts := []notification.Option{
		notification.WithLogger(logger.Component(log, "notifications")),
		notification.WithWindow(cfg.Ebay.NotificationWindow),
	}
	if cfg.Redis.Enabled {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		a.redis = redis.NewClient(opt)
		dopts = append(dopts, notification.WithReplayGuard(notification.NewRedisReplayGuard(a.redis)))
	}
	a.disp = notification.NewDispatcher(
		notification.Credentials{DevID: cfg.Ebay.DevID, AppID: cfg.Ebay.AppID, CertID: cfg.Ebay.CertID},
		st, a.pub, a.syncer, dopts...,
	)

	return a, nil
}

func newTaskQueue(cfg config.TasksConfig, exec *tasks.Executor, log *slog.Logger) (taskQueue, error) {
	qlog := logger.Component(log, "queue")
	if cfg.Backend == "kafka" {
		q, err := tasks.NewKafkaQueue(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, exec,
			tasks.WithKafkaLogger(qlog))
		if err != nil {
			return nil, fmt.Errorf("creating kafka task queue: %w", err)
		}
		log.Info("task queue", "backend", "kafka", "topic", cfg.Kafka.Topic)
		return kafkaQueue{KafkaQueue: q, log: qlog}, nil
	}
	log.Info("task queue", "backend", "memory", "workers", cfg.Workers)
	return memoryQueue{tasks.NewMemoryQueue(exec, tasks.WithWorkers(cfg.Workers), tasks.WithMemoryLogger(qlog))}, nil
}

func newNotifier(cfg config.AlertsConfig, log *slog.Logger) notify.Notifier {
	if cfg.Discord.Enabled && cfg.Discord.WebhookURL != "" {
		return notify.NewDiscordNotifier(cfg.Discord.WebhookURL)
	}
	return notify.NewNoOpNotifier(logger.Component(log, "notify"))
}

func newPublisher(
	cfg *config.Config,
	st *store.PostgresStore,
	gw *ebay.TradingClient,
	q tasks.Queue,
	n notify.Notifier,
	log *slog.Logger,
) (*publish.Service, error) {
	minPrice, err := decimal.NewFromString(cfg.Publish.MinimumPrice)
	if err != nil {
		return nil, fmt.Errorf("parsing publish.minimum_price: %w", err)
	}
	images, err := wire.NewImageRewriter(cfg.Ebay.Images.FromHost, cfg.Ebay.Images.ToHost)
	if err != nil {
		return nil, fmt.Errorf("configuring image rewriting: %w", err)
	}
	return publish.NewService(st, gw, q,
		publish.WithLogger(logger.Component(log, "publish")),
		publish.WithNotifier(n),
		publish.WithSKUPrefix(cfg.SKU.Prefix),
		publish.WithMinimumPrice(minPrice),
		publish.WithItemDefaults(wire.ItemDefaults{
			ListingDuration: cfg.Publish.ListingDuration,
			DispatchDays:    cfg.Publish.DispatchDays,
			ConditionID:     cfg.Publish.ConditionID,
			Images:          images,
		}),
		publish.WithReturnPolicyMarkets(cfg.Publish.ReturnPolicyCountries...),
	), nil
}

func (a *app) newServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = a.cfg.Server.ReadTimeout
	e.Server.WriteTimeout = a.cfg.Server.WriteTimeout

	httpLog := logger.Component(a.log, "http")
	e.Use(middleware.Recovery(httpLog))
	e.Use(middleware.Tracing())
	e.Use(middleware.RequestLog(httpLog))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(a.store)
	if a.redis != nil {
		health.Check("redis", handlers.PingFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}))
	}
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("eBay Connector API", Version))
	auth := handlers.Authenticate(api, a.store, a.cfg.Server.AuthHeader, httpLog)

	handlers.RegisterProductRoutes(api, handlers.NewProductsHandler(a.core, a.pub, a.store), auth)
	handlers.RegisterListingRoutes(api, handlers.NewListingsHandler(a.store), auth)
	handlers.RegisterAccountRoutes(api, handlers.NewAccountsHandler(
		a.store, a.core,
		inventory.NewLocationUpdateService(a.ebay, logger.Component(a.log, "location")),
		httpLog,
	), auth)
	handlers.RegisterCatalogRoutes(api, handlers.NewCatalogHandler(a.store), auth)
	handlers.RegisterNotificationRoutes(api, handlers.NewNotificationsHandler(a.disp, a.store), auth)
	handlers.RegisterInventoryRoutes(api, handlers.NewInventoryHandler(
		a.store,
		inventory.NewChecker(a.core, a.cfg.SKU.Prefix, logger.Component(a.log, "inventory")),
	))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(a.store, a.sched))
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(a.rl))

	openapi.RegisterRoutes(e, api)
	return e
}

func (a *app) close() {
	if a.queue != nil {
		a.queue.stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("closing redis", "error", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}
