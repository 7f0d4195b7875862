package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ServiAPP/serviapp/app/controllers"
	"github.com/ServiAPP/serviapp/app/repository"
	"github.com/ServiAPP/serviapp/internal/pkg/billing"
	"github.com/ServiAPP/serviapp/internal/pkg/cache"
	"github.com/ServiAPP/serviapp/internal/pkg/database"
	"github.com/ServiAPP/serviapp/internal/pkg/env"
	"github.com/ServiAPP/serviapp/internal/pkg/jobqueue"
	"github.com/ServiAPP/serviapp/internal/pkg/mail"
	"github.com/ServiAPP/serviapp/internal/pkg/objectstore"
	"github.com/ServiAPP/serviapp/internal/pkg/ratelimit"
	"github.com/ServiAPP/serviapp/internal/pkg/router"
	"github.com/ServiAPP/serviapp/internal/pkg/verification"
)

func main() {
	env.SetupEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, shutdown, err := NewApplication(ctx)
	if err != nil {
		log.Fatalf("[App] startup failed: %v", err)
	}
	defer shutdown()

	go func() {
		<-ctx.Done()
		log.Info("[App] shutting down")
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			log.Errorf("[App] shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Errorf("[App] listen: %v", err)
	}
}

// NewApplication wires every dependency and returns the app plus a cleanup
// func for the background workers and connections.
func NewApplication(ctx context.Context) (*fiber.App, func(), error) {
	var closers []func()
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := database.Connect(database.LoadConfig())
	if err != nil {
		return nil, shutdown, fmt.Errorf("database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, func() { _ = sqlDB.Close() })
	}

	// Redis is optional: without it locks fall back to the ledger, limiter
	// counters stay in memory and emails are sent inline.
	cacheCfg := cache.LoadConfig()
	var redisClient *goredis.Client
	if env.GetEnvBool("CACHE_ENABLED", true) {
		client, err := cache.Connect(ctx, cacheCfg)
		if err != nil {
			log.Warnf("[App] cache unavailable, continuing without it: %v", err)
			_ = client.Close()
		} else {
			redisClient = client
			closers = append(closers, func() { _ = client.Close() })
		}
	}

	var (
		locker         billing.Locker
		limiterStorage fiber.Storage
	)
	if redisClient != nil {
		locker = cache.NewLocker(redisClient)
		limiterStorage = ratelimit.NewRedisStorage(cacheCfg)
	}

	sender, err := mail.NewSender(mail.LoadConfig())
	if err != nil {
		return nil, shutdown, fmt.Errorf("mail: %w", err)
	}
	var notifier mail.Sender = sender
	if redisClient != nil {
		queue := jobqueue.NewQueue(redisClient, env.GetEnvInt("JOB_WORKERS", 3))
		queue.Register(jobqueue.JobTypeSendEmail, jobqueue.NewSendEmailHandler(sender))
		queue.Start()
		closers = append(closers, queue.Stop)
		notifier = jobqueue.NewQueuedSender(queue)
	}

	storeCfg, err := objectstore.LoadConfig()
	if err != nil {
		return nil, shutdown, fmt.Errorf("object store: %w", err)
	}
	var (
		signer verification.ObjectSigner
		files  controllers.PrefixDeleter
	)
	if storeCfg.IsEnabled() {
		store, err := objectstore.NewClient(ctx, storeCfg)
		if err != nil {
			return nil, shutdown, fmt.Errorf("object store: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			log.Warnf("[App] object store not reachable yet: %v", err)
		}
		signer, files = store, store
	}

	verifyCfg := verification.LoadConfig()
	var matcher verification.Matcher
	if verifyCfg.IsConfigured() {
		m, err := verification.NewOpenAIMatcher(verifyCfg, nil)
		if err != nil {
			return nil, shutdown, fmt.Errorf("verification: %w", err)
		}
		matcher = m
	} else {
		log.Warn("[App] AI_API_KEY not set, identity verification disabled")
	}

	repos := repository.NewFactory(db).GetRepositories()
	billingSvc := billing.NewServiceFromDB(db)
	verifySvc := verification.NewService(verifyCfg, signer, matcher, repos.Profile, notifier)

	app := fiber.New(fiber.Config{
		AppName:   "ServiAPP",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./public/docs/v1/openapi.yml"),
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:        controllers.NewBillingController(billingSvc, env.GetEnv("LEMONSQUEEZY_WEBHOOK_SECRET", ""), locker),
		Account:        controllers.NewAccountController(repos.Profile, files),
		Verification:   controllers.NewVerificationController(verifySvc),
		Entitlements:   controllers.NewEntitlementsController(repos),
		Profiles:       repos.Profile,
		LimiterStorage: limiterStorage,
	})

	return app, shutdown, nil
}
