// server/cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"ambulance-dispatch-api-server/config"
	"ambulance-dispatch-api-server/internal/api/routes"
	"ambulance-dispatch-api-server/internal/auth"
	"ambulance-dispatch-api-server/internal/cache"
	"ambulance-dispatch-api-server/internal/database"
	"ambulance-dispatch-api-server/internal/dispatch"
	"ambulance-dispatch-api-server/internal/s3"
	"ambulance-dispatch-api-server/internal/socket"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if cfg.JWT.Secret != "" {
		auth.JwtSecret = []byte(cfg.JWT.Secret)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Could not create logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	// 2. Connect MongoDB
	db, mongoClient, err := database.Connect(cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// 3. Connect Redis (cache failures downstream are non-fatal, but a
	// dead Redis at boot is a deployment error worth failing on)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	cacheClient := cache.New(rdb)

	// 4. Seed admin account and demo fleet
	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	if err := database.SeedFleet(db); err != nil {
		log.Fatalf("Failed to seed fleet: %v", err)
	}

	// 5. S3 uploader for incident photos (optional)
	var s3Uploader *s3.Uploader
	if cfg.S3.Bucket != "" {
		s3Uploader, err = s3.NewUploader(cfg.S3)
		if err != nil {
			log.Fatalf("Failed to create S3 uploader: %v", err)
		}
	}

	// 6. Websocket hub and the dispatch core
	wsHub := socket.NewHub()
	dispatcher := dispatch.NewDispatcher(
		database.NewMongoStore(db),
		wsHub,
		logger,
		dispatchConfig(cfg.Dispatch),
	)
	defer dispatcher.Stop()

	// 7. Router
	router := routes.SetupRouter(dispatcher, db, cacheClient, s3Uploader, wsHub, tokenLifetime(cfg.JWT.Expiration))

	// 8. Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting API server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	logger.Info("Server exited")
}

func dispatchConfig(dc config.DispatchConfig) dispatch.Config {
	var out dispatch.Config
	if d, err := time.ParseDuration(dc.ConfirmTimeout); err == nil {
		out.ConfirmTimeout = d
	}
	if d, err := time.ParseDuration(dc.ETAOffset); err == nil {
		out.ETAOffset = d
	}
	if tz, err := time.LoadLocation(dc.Timezone); err == nil {
		out.Timezone = tz
	}
	return out
}

func tokenLifetime(expiration string) time.Duration {
	if d, err := time.ParseDuration(expiration); err == nil && d > 0 {
		return d
	}
	return auth.TokenLifetime
}
