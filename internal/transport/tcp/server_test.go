package tcp

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdelcroix/courier/internal/config"
	"github.com/mdelcroix/courier/internal/core"
	"github.com/mdelcroix/courier/internal/proto"
	"github.com/mdelcroix/courier/internal/store/sqlite"
)

func startTestServer(t *testing.T, maxConns int, st *sqlite.SQLiteStore) string {
	cfg := config.Default()
	cfg.MaxConns = maxConns
	cfg.ReadTimeout = 5 * time.Second
	cfg.WriteTimeout = 5 * time.Second
	return startTestServerCfg(t, cfg, st)
}

func startTestServerCfg(t *testing.T, cfg config.Config, st *sqlite.SQLiteStore) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var hub *core.Hub
	if st != nil {
		hub = core.NewHub(st, nil)
	} else {
		hub = core.NewHub(nil, nil)
	}
	go hub.Run(ctx)

	disabledLogger := zerolog.Nop()
	srv := NewServer(hub, &cfg, &disabledLogger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(ctx, ln) }()

	return ln.Addr().String()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *proto.Reader
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: proto.NewReader(conn, 0)}
}

func (c *testClient) send(cmd proto.Command, payload string) {
	c.t.Helper()
	if err := proto.Write(c.conn, proto.Frame{Command: cmd, Payload: payload}); err != nil {
		c.t.Fatalf("write frame: %v", err)
	}
}

// mustFrame reads frames until one with the wanted command arrives.
func (c *testClient) mustFrame(cmd proto.Command) proto.Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		frame, err := c.r.Read()
		if err != nil {
			c.t.Fatalf("read frame while waiting for %v: %v", cmd, err)
		}
		if frame.Command == cmd {
			return frame
		}
	}
}

// mustMessage reads frames until a chat message containing sub arrives,
// skipping presence frames and earlier broadcasts.
func (c *testClient) mustMessage(sub string) proto.Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		frame, err := c.r.Read()
		if err != nil {
			c.t.Fatalf("read frame while waiting for message %q: %v", sub, err)
		}
		if frame.Command == proto.CommandMessage && strings.Contains(frame.Payload, sub) {
			return frame
		}
	}
}

func TestServerGreetsAndCountsConnections(t *testing.T) {
	addr := startTestServer(t, 0, nil)

	alice := dialTestClient(t, addr)
	greeting := alice.mustFrame(proto.CommandHelloWorld)
	if greeting.Payload != "server:hello" {
		t.Fatalf("unexpected greeting %q", greeting.Payload)
	}
	count := alice.mustFrame(proto.CommandConnNb)
	if count.Payload != "server:1" {
		t.Fatalf("unexpected count %q", count.Payload)
	}

	bob := dialTestClient(t, addr)
	bob.mustFrame(proto.CommandHelloWorld)

	// Both see the updated count.
	if f := alice.mustFrame(proto.CommandConnNb); f.Payload != "server:2" {
		t.Fatalf("unexpected count %q", f.Payload)
	}
}

func TestServerRoutesHomeAndDirect(t *testing.T) {
	addr := startTestServer(t, 0, nil)

	alice := dialTestClient(t, addr)
	bob := dialTestClient(t, addr)
	alice.mustFrame(proto.CommandHelloWorld)
	bob.mustFrame(proto.CommandHelloWorld)

	// Bind bob's username, then message him directly.
	bob.send(proto.CommandMessage, "bob:home:checking in")
	bob.mustFrame(proto.CommandWelcome)

	alice.send(proto.CommandMessage, "alice:bob:hi bob")

	// Direct delivery to bob, echo to alice; the "checking in" broadcast is
	// skipped by payload.
	bob.mustMessage("alice:bob:hi bob")
	alice.mustMessage("alice:bob:hi bob")
}

func TestServerPersistsAndPrefixesMessageID(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	addr := startTestServer(t, 0, st)

	alice := dialTestClient(t, addr)
	last := alice.mustFrame(proto.CommandLastID)
	if last.Payload != "server:0" {
		t.Fatalf("unexpected last id frame %q", last.Payload)
	}

	alice.send(proto.CommandMessage, "alice:home:stored")
	echo := alice.mustFrame(proto.CommandMessage)
	if !strings.HasPrefix(echo.Payload, "1:") {
		t.Fatalf("expected id-prefixed echo, got %q", echo.Payload)
	}

	msgs, err := st.ListMessages(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "stored" {
		t.Fatalf("unexpected stored messages: %+v", msgs)
	}
}

func TestServerRefusesOverCapacity(t *testing.T) {
	addr := startTestServer(t, 1, nil)

	alice := dialTestClient(t, addr)
	alice.mustFrame(proto.CommandHelloWorld)

	bob := dialTestClient(t, addr)
	goodbye := bob.mustFrame(proto.CommandGoodBye)
	if goodbye.Payload != "server:server full" {
		t.Fatalf("unexpected refusal %q", goodbye.Payload)
	}
}

func TestServerIdleReceiverKeepsConnection(t *testing.T) {
	cfg := config.Default()
	cfg.ReadTimeout = 300 * time.Millisecond
	addr := startTestServerCfg(t, cfg, nil)

	bob := dialTestClient(t, addr)
	bob.mustFrame(proto.CommandHelloWorld)
	bob.send(proto.CommandMessage, "bob:home:here")
	bob.mustFrame(proto.CommandWelcome)

	// Well past the read deadline: a bound client that only listens must
	// stay connected and receive routed messages.
	time.Sleep(800 * time.Millisecond)

	alice := dialTestClient(t, addr)
	alice.mustFrame(proto.CommandHelloWorld)
	alice.send(proto.CommandMessage, "alice:bob:you there?")
	bob.mustMessage("alice:bob:you there?")
}

func TestServerDropsSilentUnboundConnection(t *testing.T) {
	cfg := config.Default()
	cfg.ReadTimeout = 200 * time.Millisecond
	addr := startTestServerCfg(t, cfg, nil)

	conn := dialTestClient(t, addr)
	conn.mustFrame(proto.CommandHelloWorld)

	// Never sends a frame; the first-frame deadline should close it.
	_ = conn.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, err := conn.r.Read()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatal("expected server to drop the silent connection")
		}
		return
	}
}

func TestServerDisconnectBroadcastsGoodBye(t *testing.T) {
	addr := startTestServer(t, 0, nil)

	alice := dialTestClient(t, addr)
	bob := dialTestClient(t, addr)
	alice.mustFrame(proto.CommandHelloWorld)
	bob.mustFrame(proto.CommandHelloWorld)

	bob.send(proto.CommandMessage, "bob:home:here")
	bob.mustFrame(proto.CommandWelcome)

	bob.conn.Close()

	goodbye := alice.mustFrame(proto.CommandGoodBye)
	if goodbye.Payload != "server:bob" {
		t.Fatalf("unexpected goodbye %q", goodbye.Payload)
	}
	count := alice.mustFrame(proto.CommandConnNb)
	if count.Payload != "server:1" {
		t.Fatalf("unexpected count %q", count.Payload)
	}
}
