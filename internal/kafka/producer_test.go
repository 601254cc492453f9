package kafka

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPublishAfterShutdownDropsMessage(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, 4, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	cancel()
	p.WaitClosed()

	// A handler finishing its request after the flush loop has exited must
	// not panic or block; the event is dropped.
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Publish("market.request.created", []byte("1"), []byte(`{}`))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after shutdown")
	}
}

func TestProducerCloseIsIdempotent(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, 4, zap.NewNop())
	p.Start(context.Background())

	p.Close()
	p.Close()
	p.WaitClosed()

	p.Publish("market.order.created", []byte("1"), []byte(`{}`))
}
