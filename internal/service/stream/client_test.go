package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ovelo/moovy-go/internal/model/stream"
)

// testBackend 为每个连接完成握手后执行 handle，并统计拨号次数。
type testBackend struct {
	srv   *httptest.Server
	dials atomic.Int32
	mu    sync.Mutex
	conns []*websocket.Conn
}

// closeClientConnections 关闭所有已升级的 WebSocket 连接。
// httptest 的 CloseClientConnections 不追踪被劫持（hijacked）的连接，
// 对 WebSocket 无效，所以这里自行记录并关闭。
func (b *testBackend) closeClientConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		c.Close()
	}
	b.conns = nil
}

func newTestBackend(t *testing.T, connectionID string, handle func(conn *websocket.Conn)) *testBackend {
	t.Helper()

	backend := &testBackend{}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	backend.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backend.dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		backend.mu.Lock()
		backend.conns = append(backend.conns, conn)
		backend.mu.Unlock()
		if connectionID != "" {
			data, err := stream.EncodeConnected(connectionID)
			if err != nil {
				t.Errorf("encode connected failed: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		if handle != nil {
			handle(conn)
			return
		}
		// 保持连接直到客户端关闭
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(backend.srv.Close)

	return backend
}

func (b *testBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func testOptions() Options {
	return Options{
		ReconnectInterval:    20 * time.Millisecond,
		MaxReconnectAttempts: 0,
		HandshakeTimeout:     2 * time.Second,
	}
}

func TestConnectAdoptsServerConnectionID(t *testing.T) {
	backend := newTestBackend(t, "srv-42", nil)
	client := NewClient(backend.wsURL(), testOptions())
	defer client.Disconnect()

	connected := make(chan string, 1)
	ok := client.Connect(context.Background(), "local-placeholder", Callbacks{
		OnConnect: func(sessionID string) { connected <- sessionID },
	})
	if !ok {
		t.Fatal("expected Connect to succeed")
	}

	select {
	case id := <-connected:
		if id != "srv-42" {
			t.Fatalf("expected server id srv-42, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("OnConnect was not invoked")
	}

	if got := client.SessionID(); got != "srv-42" {
		t.Fatalf("expected session id replaced by srv-42, got %s", got)
	}
	if !client.IsConnected() {
		t.Fatal("expected IsConnected after handshake")
	}
	if status := client.ConnectionStatus(); status != stream.ConnConnected {
		t.Fatalf("expected connected status, got %s", status)
	}
}

func TestConnectIdempotentWhenOpen(t *testing.T) {
	backend := newTestBackend(t, "srv-1", nil)
	client := NewClient(backend.wsURL(), testOptions())
	defer client.Disconnect()

	if !client.Connect(context.Background(), "a", Callbacks{}) {
		t.Fatal("first Connect failed")
	}
	if !client.Connect(context.Background(), "b", Callbacks{}) {
		t.Fatal("second Connect should succeed on the open connection")
	}
	if got := backend.dials.Load(); got != 1 {
		t.Fatalf("expected a single dial, got %d", got)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/v1/ws/identify", testOptions())

	if client.SendFrame(stream.Frame{Type: "video", Data: "Zg=="}) {
		t.Fatal("SendFrame should fail without a connection")
	}
	if client.SendAudio(stream.Audio{Type: "audio", Data: "YQ=="}) {
		t.Fatal("SendAudio should fail without a connection")
	}
	if client.ConnectionStatus() != stream.ConnDisconnected {
		t.Fatal("expected disconnected status")
	}
}

func TestSendRejectsMismatchedPayloadType(t *testing.T) {
	backend := newTestBackend(t, "srv-1", nil)
	client := NewClient(backend.wsURL(), testOptions())
	defer client.Disconnect()

	if !client.Connect(context.Background(), "s", Callbacks{}) {
		t.Fatal("Connect failed")
	}

	if client.SendFrame(stream.Frame{Type: "audio", Data: "Zg=="}) {
		t.Fatal("SendFrame must reject non-video payloads")
	}
	if client.SendAudio(stream.Audio{Type: "video", Data: "YQ=="}) {
		t.Fatal("SendAudio must reject non-audio payloads")
	}
}

func TestConnectFailsWithoutHandshake(t *testing.T) {
	// 后端升级连接但从不发送 connected 事件
	backend := newTestBackend(t, "", nil)

	opts := testOptions()
	opts.HandshakeTimeout = 100 * time.Millisecond
	client := NewClient(backend.wsURL(), opts)

	if client.Connect(context.Background(), "s", Callbacks{}) {
		t.Fatal("Connect must fail when the server never completes the handshake")
	}
	if client.IsConnected() {
		t.Fatal("client must not report connected without a server id")
	}
}

func TestConnectDialFailureReportsConnectionError(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/v1/ws/identify", testOptions())

	errs := make(chan string, 1)
	ok := client.Connect(context.Background(), "s", Callbacks{
		OnError: func(message, code string) { errs <- code },
	})
	if ok {
		t.Fatal("expected Connect to fail")
	}

	select {
	case code := <-errs:
		if code != "CONNECTION_ERROR" {
			t.Fatalf("expected CONNECTION_ERROR, got %s", code)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError was not invoked")
	}
}

func TestNoReconnectWhenAttemptsZero(t *testing.T) {
	backend := newTestBackend(t, "srv-1", func(conn *websocket.Conn) {
		conn.Close() // 握手后立即断开
	})

	client := NewClient(backend.wsURL(), testOptions()) // MaxReconnectAttempts = 0
	defer client.Disconnect()

	disconnected := make(chan struct{}, 1)
	if !client.Connect(context.Background(), "s", Callbacks{
		OnDisconnect: func() { disconnected <- struct{}{} },
		OnReconnect:  func(attempt int) { t.Errorf("unexpected reconnect attempt %d", attempt) },
	}) {
		t.Fatal("Connect failed")
	}

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect was not invoked")
	}

	time.Sleep(150 * time.Millisecond)
	if got := backend.dials.Load(); got != 1 {
		t.Fatalf("expected no reconnect dials, got %d", got)
	}
}

func TestReconnectBoundedAndLinear(t *testing.T) {
	backend := newTestBackend(t, "srv-1", nil)

	opts := testOptions()
	opts.MaxReconnectAttempts = 2
	client := NewClient(backend.wsURL(), opts)
	defer client.Disconnect()

	attempts := make(chan int, 8)
	if !client.Connect(context.Background(), "s", Callbacks{
		OnReconnect: func(attempt int) { attempts <- attempt },
	}) {
		t.Fatal("Connect failed")
	}

	// 掐断现有连接并关停后端，让后续拨号失败，观察尝试次数封顶
	backend.closeClientConnections()
	backend.srv.Close()

	deadline := time.After(2 * time.Second)
	var seen []int
	for len(seen) < 2 {
		select {
		case a := <-attempts:
			seen = append(seen, a)
		case <-deadline:
			t.Fatalf("expected 2 reconnect attempts, saw %v", seen)
		}
	}
	if seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected attempts 1 then 2, got %v", seen)
	}

	select {
	case a := <-attempts:
		t.Fatalf("attempt budget exceeded with attempt %d", a)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReconnectDelayGrowsLinearly(t *testing.T) {
	backend := newTestBackend(t, "srv-1", nil)

	opts := testOptions()
	opts.ReconnectInterval = 50 * time.Millisecond
	opts.MaxReconnectAttempts = 2
	client := NewClient(backend.wsURL(), opts)
	defer client.Disconnect()

	disconnected := make(chan time.Time, 1)
	attempts := make(chan time.Time, 4)
	if !client.Connect(context.Background(), "s", Callbacks{
		OnDisconnect: func() {
			select {
			case disconnected <- time.Now():
			default:
			}
		},
		OnReconnect: func(attempt int) { attempts <- time.Now() },
	}) {
		t.Fatal("Connect failed")
	}

	backend.closeClientConnections()
	backend.srv.Close()

	var droppedAt time.Time
	select {
	case droppedAt = <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect was not invoked")
	}

	var firedAt []time.Time
	deadline := time.After(2 * time.Second)
	for len(firedAt) < 2 {
		select {
		case at := <-attempts:
			firedAt = append(firedAt, at)
		case <-deadline:
			t.Fatalf("expected 2 reconnect attempts, saw %d", len(firedAt))
		}
	}

	// 第 K 次重连延迟 = interval * K：第一次约 50ms，第二次约 100ms
	gap1 := firedAt[0].Sub(droppedAt)
	gap2 := firedAt[1].Sub(firedAt[0])
	if gap1 < opts.ReconnectInterval {
		t.Fatalf("first attempt fired after %s, want at least %s", gap1, opts.ReconnectInterval)
	}
	if gap2 < 2*opts.ReconnectInterval {
		t.Fatalf("second attempt fired after %s, want at least %s", gap2, 2*opts.ReconnectInterval)
	}
	if gap2 <= gap1 {
		t.Fatalf("delays must grow with the attempt number, got %s then %s", gap1, gap2)
	}
}

func TestReconnectCounterResetsOnSuccess(t *testing.T) {
	// 前两条连接握手后即被服务端掐断，第三条保持
	var served atomic.Int32
	backend := newTestBackend(t, "srv-1", func(conn *websocket.Conn) {
		if served.Add(1) <= 2 {
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	opts := testOptions()
	opts.MaxReconnectAttempts = 3
	client := NewClient(backend.wsURL(), opts)
	defer client.Disconnect()

	attempts := make(chan int, 8)
	if !client.Connect(context.Background(), "s", Callbacks{
		OnReconnect: func(attempt int) { attempts <- attempt },
	}) {
		t.Fatal("Connect failed")
	}

	deadline := time.After(2 * time.Second)
	var seen []int
	for len(seen) < 2 {
		select {
		case a := <-attempts:
			seen = append(seen, a)
		case <-deadline:
			t.Fatalf("expected 2 reconnect attempts, saw %v", seen)
		}
	}

	// 重连成功后计数清零，下一次非计划断开重新从第 1 次数起
	if seen[0] != 1 || seen[1] != 1 {
		t.Fatalf("expected attempts 1 then 1, got %v", seen)
	}

	select {
	case a := <-attempts:
		t.Fatalf("unexpected extra attempt %d", a)
	case <-time.After(200 * time.Millisecond):
	}

	if !client.IsConnected() {
		t.Fatal("client must end up connected on the surviving connection")
	}
	if got := backend.dials.Load(); got != 3 {
		t.Fatalf("expected 3 dials, got %d", got)
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	backend := newTestBackend(t, "srv-1", func(conn *websocket.Conn) {
		conn.Close()
	})

	opts := testOptions()
	opts.ReconnectInterval = 300 * time.Millisecond
	opts.MaxReconnectAttempts = 5
	client := NewClient(backend.wsURL(), opts)

	disconnected := make(chan struct{}, 1)
	if !client.Connect(context.Background(), "s", Callbacks{
		OnDisconnect: func() { disconnected <- struct{}{} },
		OnReconnect:  func(attempt int) { t.Errorf("reconnect fired after manual close (attempt %d)", attempt) },
	}) {
		t.Fatal("Connect failed")
	}

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect was not invoked")
	}

	// 重连定时器已排期，手动关闭必须取消它
	client.Disconnect()

	time.Sleep(500 * time.Millisecond)
	if got := backend.dials.Load(); got != 1 {
		t.Fatalf("expected no dials after manual close, got %d", got)
	}
}

func TestBackendErrorEventKeepsConnectionOpen(t *testing.T) {
	backend := newTestBackend(t, "srv-1", func(conn *websocket.Conn) {
		data, _ := stream.EncodeError(stream.ErrorPayload{SessionID: "srv-1", Error: "bad frame", Code: "E1"})
		conn.WriteMessage(websocket.TextMessage, data)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(backend.wsURL(), testOptions())
	defer client.Disconnect()

	errs := make(chan [2]string, 1)
	if !client.Connect(context.Background(), "s", Callbacks{
		OnError: func(message, code string) { errs <- [2]string{message, code} },
	}) {
		t.Fatal("Connect failed")
	}

	select {
	case got := <-errs:
		if got[0] != "bad frame" || got[1] != "E1" {
			t.Fatalf("unexpected error payload: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError was not invoked")
	}

	if !client.IsConnected() {
		t.Fatal("backend error event must not close the connection")
	}
}
