package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/config"
	"github.com/katuparan/farm2stall/internal/httpx"
	"github.com/katuparan/farm2stall/internal/kafka"
	"github.com/katuparan/farm2stall/internal/postgres"
	"github.com/katuparan/farm2stall/internal/redisx"
	"github.com/katuparan/farm2stall/internal/service"
	"github.com/katuparan/farm2stall/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.NewStatusCache(rdb)

	// The producer outlives the signal context: handlers still publish while
	// srv.Shutdown drains, so it is stopped only after the HTTP drain below.
	prodCtx, prodCancel := context.WithCancel(context.Background())
	defer prodCancel()
	producer := kafka.NewProducer(cfg.KafkaBrokers, 1024, log)
	producer.Start(prodCtx)
	bus := kafka.NewBus(producer)

	st := store.NewPostgres(pool)
	demands := service.NewDemandService(st, bus, cfg.ServiceName, log)
	requests := service.NewRequestService(st, bus, cfg.ServiceName, log)
	orders := service.NewOrderService(st, bus, cfg.ServiceName, log)
	inventory := service.NewInventoryService(st, log)

	r := httpx.NewRouter(log)
	r.Group(func(r chi.Router) {
		r.Use(httpx.Identity)
		httpx.NewDemandsHandler(demands, cache, log).Register(r)
		httpx.NewRequestsHandler(requests, cache, st, log).Register(r)
		httpx.NewOrdersHandler(orders, cache, st, log).Register(r)
		httpx.NewInventoryHandler(inventory).Register(r)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	// drain buffered events before exit
	producer.Close()
	producer.WaitClosed()
}
