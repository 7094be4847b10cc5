package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"livepoll/internal/cache"
	"livepoll/internal/config"
	"livepoll/internal/repository"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest"
	"livepoll/internal/transport/ws"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		logger.Fatal("failed to ping MongoDB", zap.Error(err))
	}
	logger.Info("connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Fatal("failed to ping Redis", zap.Error(err))
	}
	logger.Info("connected to Redis")

	// Repositories and caches
	pollRepo := repository.NewPollRepo(db)
	pollCache := cache.NewPollCache(rdb)
	chatCache := cache.NewChatCache(rdb)

	// WebSocket hub
	hub := ws.NewHub(logger)

	// Services
	registry := service.NewSessionRegistry()
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.TeacherPassword)
	pollSvc := service.NewPollService(pollRepo, pollCache, logger)
	rosterSvc := service.NewRosterService(pollRepo, pollCache, registry, logger)
	questionSvc := service.NewQuestionService(pollRepo, pollCache, registry, logger)
	answerSvc := service.NewAnswerService(pollRepo, registry, logger)
	chatSvc := service.NewChatService(pollRepo, chatCache, registry, logger)

	// Inject broadcaster (hub implements service.Broadcaster)
	rosterSvc.SetBroadcaster(hub)
	questionSvc.SetBroadcaster(hub)
	answerSvc.SetBroadcaster(hub)
	chatSvc.SetBroadcaster(hub)

	wsHandler := ws.NewHandler(hub, authSvc, pollSvc, rosterSvc, questionSvc, answerSvc, chatSvc, logger)

	router := rest.NewRouter(&rest.Container{
		AuthService: authSvc,
		PollService: pollSvc,
		WSHandler:   wsHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ListenAndServe", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
