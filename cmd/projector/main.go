package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/config"
	"github.com/katuparan/farm2stall/internal/kafka"
	"github.com/katuparan/farm2stall/internal/market"
	"github.com/katuparan/farm2stall/internal/projector"
	"github.com/katuparan/farm2stall/internal/redisx"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	p := projector.New(redisx.NewStatusCache(rdb), log)

	var wg sync.WaitGroup
	for _, topic := range market.ProjectorTopics {
		c := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, topic, cfg.Workers, log)
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			if err := c.Start(ctx, p.Handle); err != nil {
				log.Error("consumer stopped", zap.String("topic", topic), zap.Error(err))
				stop()
			}
		}(topic)
	}

	log.Info("projector running",
		zap.Strings("topics", market.ProjectorTopics),
		zap.String("group", cfg.ConsumerGroup))
	<-ctx.Done()
	wg.Wait()
}
