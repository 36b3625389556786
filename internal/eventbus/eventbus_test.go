package eventbus

import "testing"

func TestPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case e := <-sub:
		if e != "hello" {
			t.Fatalf("got %v", e)
		}
	default:
		t.Fatalf("no event delivered")
	}
}

func TestPublishNonBlocking(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	// Overfill the buffered channel; Publish must not block.
	for i := 0; i < 64; i++ {
		b.Publish(i)
	}
	n := 0
	for {
		select {
		case <-sub:
			n++
			continue
		default:
		}
		break
	}
	if n == 0 || n > 16 {
		t.Fatalf("expected up to buffer size events, got %d", n)
	}
}

func TestUnsubscribeCloses(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatalf("channel should be closed")
	}
	b.Publish("after") // must not panic
}

func TestCloseIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatalf("channel should be closed")
	}
	if ch := b.Subscribe(); ch == nil {
		t.Fatalf("subscribe after close should return a closed channel")
	}
}
