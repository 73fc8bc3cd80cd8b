package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/mdelcroix/courier/internal/config"
	"github.com/mdelcroix/courier/internal/core"
	"github.com/mdelcroix/courier/internal/proto"
)

func dialTestWS(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") })
	return conn
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// mustOutbound reads envelopes until one with the wanted event (or type for
// errors) arrives.
func mustOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) proto.Outbound {
	t.Helper()

	deadline, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		var out proto.Outbound
		if err := wsjson.Read(deadline, conn, &out); err != nil {
			t.Fatalf("read while waiting for %q: %v", event, err)
		}
		if out.Type == proto.OutboundTypeError && event == proto.OutboundTypeError {
			return out
		}
		if out.Event == event {
			return out
		}
	}
}

func TestWSBridgeRoutesMessages(t *testing.T) {
	testStore := createTestStore(t)
	authService := createTestAuthService(t, testStore, "test-secret")

	hub := core.NewHub(testStore, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	cfg := config.Default()
	disabledLogger := zerolog.Nop()
	server := NewServer(hub, authService, testStore, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	alice := dialTestWS(t, ctx, wsURL)
	bob := dialTestWS(t, ctx, wsURL)

	mustOutbound(t, ctx, alice, "hello")
	mustOutbound(t, ctx, bob, "hello")

	sendInbound(t, ctx, alice, proto.InboundTypeHello, proto.HelloData{User: "alice"})
	sendInbound(t, ctx, bob, proto.InboundTypeHello, proto.HelloData{User: "bob"})
	mustOutbound(t, ctx, alice, "welcome")
	mustOutbound(t, ctx, bob, "welcome")

	sendInbound(t, ctx, alice, proto.InboundTypeMsg, proto.MsgData{Receiver: "bob", Text: "hi bob"})

	out := mustOutbound(t, ctx, bob, "message")
	raw, _ := json.Marshal(out.Data)
	var msg proto.EventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal event message: %v", err)
	}
	if msg.Sender != "alice" || msg.Receiver != "bob" || msg.Text != "hi bob" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.ID == 0 {
		t.Fatal("expected persisted message id")
	}

	// Sender echo arrives too.
	mustOutbound(t, ctx, alice, "message")
}

func TestWSRequiresHelloBeforeMsg(t *testing.T) {
	testStore := createTestStore(t)
	authService := createTestAuthService(t, testStore, "test-secret")

	hub := core.NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	cfg := config.Default()
	disabledLogger := zerolog.Nop()
	server := NewServer(hub, authService, testStore, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn := dialTestWS(t, ctx, wsURL)
	sendInbound(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Receiver: "home", Text: "hi"})

	out := mustOutbound(t, ctx, conn, proto.OutboundTypeError)
	if out.Error == nil || out.Error.Code != core.ErrCodeNotRegistered {
		t.Fatalf("expected not_registered error, got %+v", out)
	}
}

func TestWSHelloWithToken(t *testing.T) {
	testStore := createTestStore(t)
	authService := createTestAuthService(t, testStore, "test-secret")

	token, err := authService.Register(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	hub := core.NewHub(testStore, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	cfg := config.Default()
	disabledLogger := zerolog.Nop()
	server := NewServer(hub, authService, testStore, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn := dialTestWS(t, ctx, wsURL)

	// The username in the token wins over the one in the envelope.
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "mallory", Token: token})
	out := mustOutbound(t, ctx, conn, "welcome")
	raw, _ := json.Marshal(out.Data)
	var user proto.EventUser
	if err := json.Unmarshal(raw, &user); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	if user.User != "alice" {
		t.Fatalf("expected token identity alice, got %q", user.User)
	}

	// A bad token is rejected outright.
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "x", Token: "garbage"})
	errOut := mustOutbound(t, ctx, conn, proto.OutboundTypeError)
	if errOut.Error == nil || errOut.Error.Code != "invalid_token" {
		t.Fatalf("expected invalid_token, got %+v", errOut)
	}
}
