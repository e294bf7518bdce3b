package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/digitalcloudassets/kutable-sub001/internal/config"
	"github.com/digitalcloudassets/kutable-sub001/internal/database"
	"github.com/digitalcloudassets/kutable-sub001/internal/events"
	"github.com/digitalcloudassets/kutable-sub001/internal/handlers"
	applogger "github.com/digitalcloudassets/kutable-sub001/internal/logger"
	"github.com/digitalcloudassets/kutable-sub001/internal/middleware"
	"github.com/digitalcloudassets/kutable-sub001/internal/notify"
	"github.com/digitalcloudassets/kutable-sub001/internal/realtime"
	"github.com/digitalcloudassets/kutable-sub001/internal/repository"
	"github.com/digitalcloudassets/kutable-sub001/internal/routes"
	"github.com/digitalcloudassets/kutable-sub001/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := applogger.New(applogger.Config{
		Development: cfg.IsDevelopment(),
		Level:       cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
	zlog.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	// 2. Connect to Database
	if cfg.DBUrl == "" {
		return errors.New("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl, zlog)
	if err != nil {
		return err
	}
	defer pool.Close()

	bookingRepo := repository.NewBookingRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	// 3. Notifications
	var sms services.SMSSender
	if cfg.SMSEnabled() {
		sms = notify.NewBreakerSMS(
			notify.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber),
			notify.DefaultBreakerConfig(),
			zlog,
		)
	} else {
		zlog.Info("sms notifications disabled")
	}
	var email services.EmailSender
	if cfg.EmailEnabled() {
		email = notify.NewBreakerEmail(
			notify.NewBrevoEmail(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName),
			notify.DefaultBreakerConfig(),
			zlog,
		)
	} else {
		zlog.Info("email notifications disabled")
	}
	dispatcher := services.NewDispatcher(bookingRepo, sms, email, cfg.AppURL, zlog)

	g, gctx := errgroup.WithContext(ctx)

	var queue services.NotificationQueue
	switch cfg.NotifyDriver {
	case config.NotifyDriverKafka:
		kq := events.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, zlog)
		defer func() { _ = kq.Close() }()
		queue = kq
		consumer := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, dispatcher, zlog)
		g.Go(func() error { return consumer.Run(gctx) })
	default:
		workers := services.NewWorkerPool(dispatcher, cfg.NotifyWorkers, cfg.NotifyQueueSize, zlog)
		queue = workers
		g.Go(func() error { return workers.Run(gctx) })
	}

	conversationService := services.NewConversationService(bookingRepo, messageRepo, zlog)
	messageService := services.NewMessageService(bookingRepo, messageRepo, queue, zlog)

	// 4. Realtime
	broker := realtime.NewBroker()
	g.Go(func() error { return broker.Run(gctx) })

	switch cfg.RealtimeDriver {
	case config.RealtimeDriverRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		feed := realtime.NewRedisFeed(rdb, cfg.RedisChannel, zlog)
		messageService.SetPublisher(feed)
		g.Go(func() error { return feed.Run(gctx, broker) })
	default:
		listener := realtime.NewPGListener(cfg.DBUrl, zlog)
		g.Go(func() error { return listener.Run(gctx, broker) })
	}

	sendLimiter := middleware.NewUserRateLimiter(cfg.SendRatePerMinute, 5, zlog)
	g.Go(func() error { return sendLimiter.Cleanup(gctx) })

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(zlog),
	})

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	routes.RegisterRoutes(app, cfg, routes.Handlers{
		Messaging:   handlers.NewMessagingHandler(conversationService, messageService, zlog),
		Realtime:    handlers.NewRealtimeHandler(gctx, messageService, broker, cfg.JWTSecret, zlog),
		SendLimiter: sendLimiter,
	})

	// 6. Start Server
	g.Go(func() error {
		zlog.Info("server starting", zap.String("port", cfg.Port))
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}
