package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/config"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/handler"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/handler/ws"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/uploader"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/wizard"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/notifier"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/observability"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/repository"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/router"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/service"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/storage"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/id"
)

func main() {
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// db connection
	dbpool, err := pgxpool.New(rootCtx, cfg.DBConnString)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer dbpool.Close()

	// redis
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr, Password: cfg.RedisPass,
	})
	defer rdb.Close()

	// snowflake
	sf, err := id.NewSnowflake(cfg.NodeID)
	if err != nil {
		log.Fatalf("sf: %v", err)
	}

	metrics := observability.NewMetrics()

	// upload storage with bucket fallback
	if _, err := os.Stat(cfg.UploadRoot); os.IsNotExist(err) {
		os.MkdirAll(cfg.UploadRoot, 0755)
	}
	disk := storage.NewDiskStore(cfg.UploadRoot)
	buckets := storage.NewFallbackStore(disk, cfg.UploadBucket, cfg.FallbackBuckets, logger)
	buckets.OnFallback = metrics.IncrBucketFallback

	// repos
	kycRepo := repository.NewKYCRepo(dbpool)
	chatRepo := repository.NewChatRepo(dbpool)
	typingStore := repository.NewTypingStore(rdb)

	// notification fan-out: websocket push plus kafka publish
	hub := ws.NewHub(rootCtx, logger)
	kafkaWriter := notifier.NewKafkaWriter(cfg.KafkaBrokers, cfg.NotificationTopic)
	defer kafkaWriter.Close()
	notify := notifier.New(kafkaWriter, hub, metrics, logger)

	uploads := uploader.New(buckets, kycRepo, uploader.Config{
		MaxSizeMB:       cfg.MaxUploadMB,
		MinImageWidth:   cfg.MinImageWidth,
		MinImageHeight:  cfg.MinImageHeight,
		CompressEnabled: cfg.CompressEnabled,
		CompressMaxDim:  cfg.CompressMaxDim,
		CompressQuality: cfg.CompressQuality,
	}, logger)

	// services
	kycSvc := service.NewKYCService(kycRepo, uploads, wizard.NewRedisStore(rdb), notify, metrics, sf, logger)
	chatSvc := service.NewChatService(chatRepo, typingStore, notify, hub, metrics, logger)

	// handlers
	kycHandler := handler.NewKYCHandler(kycSvc, int(cfg.MaxUploadMB), logger)
	chatHandler := handler.NewChatHandler(chatSvc, logger)
	wsHandler := ws.NewHandler(hub, ws.NewRouter(chatSvc, logger), logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.SetupRoutes(kycHandler, chatHandler, wsHandler, metrics, rdb, cfg.JWTSecret, logger),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown: %v", err)
	}
}
