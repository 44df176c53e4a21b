package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/wricardo/connectfour/game/match"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
	"github.com/wricardo/connectfour/game/store"
)

func TestMain(m *testing.M) {
	store.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}

	if hub.topics == nil {
		t.Error("Hub topics map is nil")
	}

	if hub.broadcast == nil {
		t.Error("Hub broadcast channel is nil")
	}

	if hub.register == nil {
		t.Error("Hub register channel is nil")
	}

	if hub.unregister == nil {
		t.Error("Hub unregister channel is nil")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()

	client := &Client{
		hub:   hub,
		topic: "match-1",
		send:  make(chan []byte, 256),
	}

	hub.registerClient(client)

	if !hub.topics["match-1"][client] {
		t.Error("Client was not registered in topic")
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()

	client := &Client{
		hub:   hub,
		topic: "match-1",
		send:  make(chan []byte, 256),
	}

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.topics["match-1"]; exists {
		t.Error("Empty topic was not removed")
	}

	if _, ok := <-client.send; ok {
		t.Error("Client send channel was not closed")
	}

	// Unregistering twice must not panic on the closed channel
	hub.unregisterClient(client)
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()

	all := &Client{hub: hub, topic: allTopic, send: make(chan []byte, 1)}
	mine := &Client{hub: hub, topic: "m1", send: make(chan []byte, 1)}
	other := &Client{hub: hub, topic: "m2", send: make(chan []byte, 1)}
	for _, c := range []*Client{all, mine, other} {
		hub.registerClient(c)
	}

	hub.broadcastEvent(service.Event{Type: service.EventGameOver, MatchID: "m1", Winner: "alice"})

	for name, c := range map[string]*Client{"firehose": all, "match topic": mine} {
		select {
		case data := <-c.send:
			var event service.Event
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("%s: invalid JSON: %v", name, err)
			}
			if event.Winner != "alice" {
				t.Errorf("%s: expected winner alice, got %q", name, event.Winner)
			}
		default:
			t.Errorf("%s: no event delivered", name)
		}
	}

	select {
	case <-other.send:
		t.Error("event leaked to another match topic")
	default:
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()

	slow := &Client{hub: hub, topic: allTopic, send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastEvent(service.Event{Type: service.EventQueueChanged})

	if _, exists := hub.topics[allTopic]; exists {
		t.Error("slow subscriber was not removed")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		// No Run loop: the buffer fills and the rest are dropped
		for i := 0; i < cap(hub.broadcast)*2; i++ {
			hub.Publish(service.Event{Type: service.EventQueueChanged, Queued: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no hub loop running")
	}
}

func TestServeWS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?match=m1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	// Registration happens asynchronously; publish until the event arrives
	received := make(chan service.Event, 1)
	go func() {
		var event service.Event
		if err := conn.ReadJSON(&event); err == nil {
			received <- event
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		hub.Publish(service.Event{Type: service.EventMatchStarted, MatchID: "m1", Players: []string{"alice", "bob"}})
		select {
		case event := <-received:
			if event.Type != service.EventMatchStarted || len(event.Players) != 2 {
				t.Errorf("unexpected event %+v", event)
			}
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("Timeout waiting for event")
		}
	}
}

func TestPlayOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	st := store.NewMemoryStore()
	matches := match.NewManager(ctx, match.Deps{Results: st})
	registry := session.NewRegistry(func(a, b *session.Session) { matches.Play(a, b) })
	gateway := session.NewGateway(registry, st, nil, 0)

	server := httptest.NewServer(NewPlayHandler(ctx, gateway))
	defer func() {
		server.Close()
		cancel()
		gateway.Wait()
		matches.Wait()
	}()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	roundTrip := func(send, want string) {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(send)); err != nil {
			t.Fatalf("write %q: %v", send, err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %q: %v", send, err)
		}
		if got := string(data); got != want {
			t.Errorf("after %q: expected %q, got %q", send, want, got)
		}
	}

	roundTrip("JOIN_QUEUE", "ERROR:Please register or login first")
	roundTrip("REGISTER:alice:pw", "REGISTER_SUCCESS")
	roundTrip("LOGIN:alice:pw", "LOGIN_SUCCESS")
	roundTrip("STATS_REQUEST\n", "STATS_RESPONSE:0,0,0")

	if !registry.IsOnline("alice") {
		t.Error("alice should be online")
	}
}
