package pagebus

import (
	"testing"
	"time"

	"github.com/pvanko/walletgate/internal/model"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(model.Envelope{Kind: model.KindSurfaceClosed})

	for i, ch := range []<-chan model.Envelope{ch1, ch2} {
		select {
		case env := <-ch:
			if env.Kind != model.KindSurfaceClosed {
				t.Errorf("subscriber %d: unexpected kind %s", i, env.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no envelope delivered", i)
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	cancel()
	cancel() // idempotent

	// Channel is closed after cancel.
	if _, open := <-ch; open {
		t.Error("expected closed channel after cancel")
	}

	// Publishing after cancel must not panic.
	b.Publish(model.Envelope{Kind: model.KindSurfaceClosed})
}

func TestOverflowDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish(model.Envelope{Kind: model.KindSurfaceClosed})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// The subscriber sees at most its buffer worth of envelopes.
	var got int
	for {
		select {
		case <-ch:
			got++
		default:
			if got == 0 || got > subscriberBuffer {
				t.Errorf("expected 1..%d buffered envelopes, got %d", subscriberBuffer, got)
			}
			return
		}
	}
}

func TestCloseShutsSubscribers(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe()
	b.Close()
	b.Close() // idempotent

	if _, open := <-ch; open {
		t.Error("expected closed subscriber channel after bus Close")
	}

	// Subscribing after close yields a closed channel.
	ch2, cancel := b.Subscribe()
	defer cancel()
	if _, open := <-ch2; open {
		t.Error("expected closed channel from Subscribe after Close")
	}
}
