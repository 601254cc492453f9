package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func TestWorkerDrainsClosedJobsOnHandlerErrors(t *testing.T) {
	c := &Consumer{
		workers: 2,
		log:     zap.NewNop(),
		commit:  func(context.Context, ...kafka.Message) error { return nil },
	}

	jobs := make(chan kafka.Message, 8)
	for i := 0; i < 8; i++ {
		jobs <- kafka.Message{Topic: "market.order.created", Offset: int64(i)}
	}
	close(jobs)

	h := func(context.Context, kafka.Message) error { return errors.New("boom") }
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.runWorker(context.Background(), jobs, h)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker blocked instead of draining the closed jobs channel")
	}
}

func TestWorkerCommitsOnlyProcessedMessages(t *testing.T) {
	var commits atomic.Int64
	c := &Consumer{
		workers: 1,
		log:     zap.NewNop(),
		commit: func(_ context.Context, msgs ...kafka.Message) error {
			commits.Add(int64(len(msgs)))
			return nil
		},
	}

	jobs := make(chan kafka.Message, 4)
	for i := 0; i < 4; i++ {
		jobs <- kafka.Message{Topic: "market.request.created", Offset: int64(i)}
	}
	close(jobs)

	h := func(_ context.Context, m kafka.Message) error {
		if m.Offset%2 == 0 {
			return errors.New("poison")
		}
		return nil
	}
	c.runWorker(context.Background(), jobs, h)

	if got := commits.Load(); got != 2 {
		t.Fatalf("committed %d offsets, want 2", got)
	}
}
