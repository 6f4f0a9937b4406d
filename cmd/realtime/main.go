package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/gatherspace/realtime-service/internal/api"
	"github.com/gatherspace/realtime-service/internal/auth"
	"github.com/gatherspace/realtime-service/internal/broker"
	"github.com/gatherspace/realtime-service/internal/chat"
	"github.com/gatherspace/realtime-service/internal/config"
	"github.com/gatherspace/realtime-service/internal/dispatch"
	"github.com/gatherspace/realtime-service/internal/hub"
	"github.com/gatherspace/realtime-service/internal/kafka"
	"github.com/gatherspace/realtime-service/internal/logger"
	"github.com/gatherspace/realtime-service/internal/metrics"
	"github.com/gatherspace/realtime-service/internal/poll"
	"github.com/gatherspace/realtime-service/internal/presence"
	"github.com/gatherspace/realtime-service/internal/queue"
	"github.com/gatherspace/realtime-service/internal/repository"
	"github.com/gatherspace/realtime-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		zl.Fatalw("ensure indexes", "err", err)
	}
	members := repository.NewMembershipStore(db)
	messages := repository.NewMessageStore(mongoClient, db)
	directory := repository.NewUserDirectory(db)

	h := hub.New()
	pending := queue.NewPending(cfg.Poll.MaxQueueSize)
	dispatcher := dispatch.New(members, h, pending, zl)

	var tracker presence.Tracker
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Fatalw("redis connect", "err", err)
		}
		defer rdb.Close()

		tracker = presence.NewRedisTracker(rdb, cfg.Redis.Prefix, 60*time.Second)
		b := broker.NewRedisBroker(rdb, cfg.Redis.Prefix, h, zl)
		dispatcher.WithBroker(b)
		go b.Run(ctx)
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicChat)
		defer producer.Close()
		dispatcher.WithTap(producer)
	}

	verifier := auth.NewVerifier(cfg.JWT.Secret)
	if cfg.JWT.AllowDevToken {
		zl.Warn("dev token auth bypass is enabled; never run this in production")
		verifier = verifier.WithDevToken(cfg.JWT.DevToken, cfg.JWT.DevUserID)
	}

	svc := chat.NewService(members, messages, directory, dispatcher, zl)
	wsSrv := ws.NewServer(h, svc, verifier, tracker, cfg, zl)
	pollRooms := hub.NewRegistry()
	pollH := poll.NewHandler(svc, pending, pollRooms, cfg, zl)
	app := api.NewServer(cfg, svc, h, wsSrv, pollH, verifier, tracker, zl)

	// metrics on its own listener, away from the public surface
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.App.MetricsAddr, mux); err != nil {
			zl.Warnw("metrics server", "err", err)
		}
	}()

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.Port
		zl.Infow("starting realtime service", "addr", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zl.Fatalw("server error", "err", e)
	case s := <-sig:
		zl.Infow("signal received", "signal", s.String())
	}

	cancel()
	if err := app.Shutdown(); err != nil {
		zl.Warnw("fiber shutdown", "err", err)
	}
	zl.Info("shutting down")
}
