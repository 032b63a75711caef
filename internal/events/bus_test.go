package events

import (
	"bufio"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBus_PublishFanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(Event{Type: "new-signal"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != "new-signal" {
				t.Errorf("subscriber %d: expected new-signal, got %s", i, event.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event received", i)
		}
	}
}

func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the buffer; publishes must not block.
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Type: "tick"})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != subscriberBuffer {
				t.Errorf("expected %d buffered events, got %d", subscriberBuffer, received)
			}
			return
		}
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}

	// Publishing after cancel must not panic.
	bus.Publish(Event{Type: "tick"})
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after bus close")
	}

	// Subscribing after close yields a closed channel.
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()
	if _, ok := <-ch2; ok {
		t.Error("expected closed channel when subscribing after close")
	}
}

func TestSSEHandler_Stream(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	handler := NewSSEHandler(bus, log.New(io.Discard, "", 0))
	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", got)
	}

	reader := bufio.NewReader(resp.Body)

	readFrame := func() string {
		t.Helper()
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		// Consume the blank separator line.
		if _, err := reader.ReadString('\n'); err != nil {
			t.Fatalf("read separator: %v", err)
		}
		return strings.TrimSpace(line)
	}

	if frame := readFrame(); frame != `data: {"type":"connected"}` {
		t.Errorf("unexpected sentinel frame %q", frame)
	}

	// The sentinel arrived, so the handler's subscription exists.
	bus.Publish(Event{Type: "new-signal", Payload: map[string]string{"id": "sig1"}})

	frame := readFrame()
	if !strings.Contains(frame, `"type":"new-signal"`) {
		t.Errorf("expected new-signal frame, got %q", frame)
	}
	if !strings.Contains(frame, `"id":"sig1"`) {
		t.Errorf("expected payload in frame, got %q", frame)
	}
}
