package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"taleweaver/internal/config"
	"taleweaver/internal/handler"
	"taleweaver/internal/logger"
	"taleweaver/internal/messaging"
	"taleweaver/internal/pipeline"
	"taleweaver/internal/repository"
	"taleweaver/internal/service"
	"taleweaver/migrations"
)

func main() {
	// .env is for local development only; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Service terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MaxConnIdleTime = cfg.DBIdleTimeout

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("Connected to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	if err := applyMigrations(cfg, log); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Redis (plan skeleton cache)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	var planCache repository.PlanCache
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The pipeline works without the cache, just slower on repeat topics.
		log.Warn("Redis unavailable, plan caching disabled", zap.Error(err))
	} else {
		planCache = repository.NewRedisPlanCache(redisClient, cfg.PlanCacheTTL, log)
		log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	// RabbitMQ (optional story event announcements)
	var events pipeline.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Warn("RabbitMQ unavailable, story events disabled", zap.Error(err))
		} else {
			defer conn.Close()
			events, err = messaging.NewStoryEventPublisher(conn, cfg.StoryEventQueue, log)
			if err != nil {
				log.Warn("Failed to initialize story event publisher", zap.Error(err))
				events = nil
			} else {
				log.Info("Story event publisher ready", zap.String("queue", cfg.StoryEventQueue))
			}
		}
	}

	// Generation backends
	textGen, err := service.NewTextGenerator(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize text generator: %w", err)
	}
	imageGen := service.NewImageGenerator(cfg, log)

	// Repositories and pipeline
	profiles := repository.NewPgProfileRepository(dbPool, log)
	history := repository.NewPgHistoryRepository(dbPool, log)

	storyPipeline := pipeline.New(
		profiles,
		imageGen,
		pipeline.NewPlanner(planCache, cfg.PromptMaxLength, log),
		pipeline.NewWriter(textGen, log),
		pipeline.NewValidator(log),
		pipeline.NewFormatter(log),
		pipeline.NewAssembler(history, events, cfg.ImagePlaceholderURL, log),
		pipeline.Options{
			MaxRevisions:        cfg.MaxRevisions,
			TextMaxAttempts:     cfg.AIMaxAttempts,
			TextBaseRetryDelay:  cfg.AIBaseRetryDelay,
			TextTimeout:         cfg.AITimeout,
			ImageMaxAttempts:    cfg.ImageMaxAttempts,
			ImageBaseRetryDelay: cfg.ImageBaseRetryDelay,
		},
		log,
	)

	// HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	prom := ginprometheus.NewPrometheus("taleweaver")
	prom.Use(router)

	storyHandler := handler.NewStoryHandler(storyPipeline, history, log)
	storyHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.Info("Service stopped cleanly")
	return nil
}

// applyMigrations runs the embedded SQL migrations to the current version.
// A database already at the latest version is not an error.
func applyMigrations(cfg *config.Config, log *zap.Logger) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	db, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Info("Database schema is up to date")
	return nil
}
