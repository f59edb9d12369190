package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kamalbura/lms-sub001/internal/config"
	"github.com/Kamalbura/lms-sub001/internal/database"
	"github.com/Kamalbura/lms-sub001/internal/handlers"
	"github.com/Kamalbura/lms-sub001/internal/middleware"
	"github.com/Kamalbura/lms-sub001/internal/realtime"
	"github.com/Kamalbura/lms-sub001/internal/repository"
	"github.com/Kamalbura/lms-sub001/internal/router"
	"github.com/Kamalbura/lms-sub001/internal/services"
	"github.com/Kamalbura/lms-sub001/internal/validation"
	"github.com/Kamalbura/lms-sub001/internal/websocket"
	"github.com/Kamalbura/lms-sub001/internal/worker"
)

func main() {
	log.Println("🚀 Starting LMS realtime backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	applied, err := database.RunMigrations(pool, "migrations")
	if err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Printf("✓ Database migrations applied (%d new)", applied)

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)
	threadRepo := repository.NewThreadRepo(pool)
	officeHourRepo := repository.NewOfficeHourRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	validator := validation.New()
	emailService := services.NewEmailService(services.EmailConfig{
		Provider:       cfg.EmailProvider,
		SendGridAPIKey: cfg.SendGridAPIKey,
		SMTPHost:       cfg.SMTPHost,
		SMTPPort:       cfg.SMTPPort,
		SMTPUser:       cfg.SMTPUser,
		SMTPPass:       cfg.SMTPPass,
		From:           cfg.SMTPFrom,
		FrontendURL:    cfg.FrontendURL,
	})
	notifier := services.NewRedisNotifier(redisClients.Queue)
	publisher := services.NewRedisPublisher(redisClients.Queue)
	officeHourService := services.NewOfficeHourService(officeHourRepo, userRepo, notifier, publisher)

	// ──── Step 5: Initialize Realtime Core ────
	coordinator := realtime.NewCoordinator(realtime.Deps{
		Messages:   messageRepo,
		Threads:    threadRepo,
		Users:      userRepo,
		Conference: officeHourService,
		Validator:  validator,
	})

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go coordinator.RunGraceSweeper(sweepCtx, cfg.GraceSweepInterval, cfg.ReconnectGracePeriod)
	log.Printf("✓ Realtime coordinator ready (reconnect grace %s)", cfg.ReconnectGracePeriod)

	// ──── Step 6: Start Notification Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, officeHourRepo, userRepo, emailService, cfg.NotificationWorkers)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.NotificationWorkers)

	reminderScheduler := services.NewReminderScheduler(officeHourRepo, notifier, cfg.ReminderPollInterval, cfg.ReminderLeadTime)
	reminderScheduler.Start()
	log.Println("✓ Office-hour reminder scheduler started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, coordinator, websocket.Options{
		PingInterval:    cfg.WSPingInterval,
		PongTimeout:     cfg.WSPongTimeout,
		WriteTimeout:    cfg.WSWriteTimeout,
		MaxMessageBytes: int64(cfg.WSMaxMessageLen),
	})
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(jwtAuth, router.Handlers{
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": pool,
			"redis":    redisClients,
		}),
		OfficeHour: handlers.NewOfficeHourHandler(officeHourService, validator),
		Message:    handlers.NewMessageHandler(messageRepo),
		Realtime:   handlers.NewRealtimeHandler(coordinator),
		WebSocket:  wsHub.HandleWebSocket,
	}, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		reminderScheduler.Stop()
		stopSweeper()
		wsHub.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ LMS realtime backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
