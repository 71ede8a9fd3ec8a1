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

	"github.com/polyglotchat/polyglot-server/internal/auth"
	"github.com/polyglotchat/polyglot-server/internal/config"
	"github.com/polyglotchat/polyglot-server/internal/core"
	"github.com/polyglotchat/polyglot-server/internal/proto"
	"github.com/polyglotchat/polyglot-server/internal/store/memory"
	"github.com/polyglotchat/polyglot-server/internal/translate"
)

type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func testJWTConfig() *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
	}
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	gateway := translate.NewGateway(nil, translate.Config{
		MaxConcurrent: 2,
		MaxRetries:    1,
		BackoffBase:   time.Millisecond,
		CacheSize:     16,
		CacheTTL:      time.Minute,
	}, &logger)

	hub := core.NewHub(memory.New(), gateway, core.NewRegistry(), core.NewLimiter(nil), &logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, auth.NewJWTVerifier(testJWTConfig()), &config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	return conn
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func sendHello(t *testing.T, ctx context.Context, conn *websocket.Conn, userID, username string) {
	t.Helper()

	token, err := auth.GenerateToken(testJWTConfig(), userID, username, "member")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token, Protocol: proto.ProtocolVersion})
}

// readUntilEvent drains frames until one carries the wanted event name.
func readUntilEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read while waiting for %s: %v", event, err)
		}
		if frame.Event == event {
			return frame
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketHelloJoinAndMessage(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts)
	connB := dialWS(t, ctx, ts)

	sendHello(t, ctx, connA, "u1", "alice")
	sendHello(t, ctx, connB, "u2", "bob")

	sendInbound(t, ctx, connA, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: "general", Lang: "en"})
	readUntilEvent(t, ctx, connA, proto.EventRoomInfo)
	sendInbound(t, ctx, connB, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: "general", Lang: "en"})
	readUntilEvent(t, ctx, connB, proto.EventRoomInfo)

	sendInbound(t, ctx, connA, proto.InboundTypeSendMessage, proto.SendMessageData{
		Room:         "general",
		Message:      "hi there",
		SourceLocale: "en",
		MsgID:        "m-1",
	})

	status := readUntilEvent(t, ctx, connA, proto.EventMessageStatus)
	var ack proto.EventMessageStatusData
	if err := json.Unmarshal(status.Data, &ack); err != nil {
		t.Fatalf("unmarshal message_status: %v", err)
	}
	if ack.MsgID != "m-1" || ack.Status != "sent" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	frame := readUntilEvent(t, ctx, connB, proto.EventReceiveMessage)
	if frame.Type != proto.OutboundTypeEvent {
		t.Fatalf("unexpected outbound type: %s", frame.Type)
	}

	var event proto.EventMessage
	if err := json.Unmarshal(frame.Data, &event); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
	if event.Author != "alice" || event.Message != "hi there" || event.MsgID != "m-1" {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: "not-a-token"})

	var frame outboundFrame
	err := wsjson.Read(ctx, conn, &frame)
	if err == nil {
		t.Fatal("expected connection to close after invalid token")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Fatalf("unexpected close status: %v (err: %v)", status, err)
	}
}

func TestWebSocketRejectsNonHelloFirstFrame(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendInbound(t, ctx, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: "general"})

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err == nil {
		t.Fatal("expected connection to close when first frame is not hello")
	}
}

func TestWebSocketRejectsUnsupportedProtocol(t *testing.T) {
	ts := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	token, err := auth.GenerateToken(testJWTConfig(), "u1", "alice", "member")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token, Protocol: proto.ProtocolVersion + 1})

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err == nil {
		t.Fatal("expected connection to close for unsupported protocol version")
	}
}
