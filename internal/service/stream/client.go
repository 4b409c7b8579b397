package stream

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ovelo/moovy-go/internal/model/stream"
)

// Callbacks WebSocket 客户端的事件回调，未设置的回调直接跳过。
type Callbacks struct {
	OnConnect    func(sessionID string)
	OnResult     func(resp stream.Response)
	OnProgress   func(progress float64, message string)
	OnError      func(message, code string)
	OnDisconnect func()
	OnReconnect  func(attempt int)
}

// Options 客户端连接与重连配置。
type Options struct {
	ReconnectInterval    time.Duration // 第 N 次重连延迟 = ReconnectInterval * N
	MaxReconnectAttempts int           // 0 表示禁用自动重连
	HandshakeTimeout     time.Duration
}

// DefaultOptions 返回默认客户端配置。
func DefaultOptions() Options {
	return Options{
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 0,
		HandshakeTimeout:     30 * time.Second,
	}
}

// Client 持有到识别后端的单条 WebSocket 连接，负责出站帧/音频的发送、
// 入站事件的分发以及非计划断开后的线性退避重连。
//
// 物理连接打开并不等于可用：必须先收到服务端的 connected 事件并取得
// 服务端分配的 connection id，Connect 才会成功返回。
type Client struct {
	endpoint string
	opts     Options
	dialer   *websocket.Dialer

	mu             sync.Mutex
	writeMu        sync.Mutex // 串行化所有连接写操作
	conn           *websocket.Conn
	sessionID      string
	serverAssigned bool
	callbacks      Callbacks
	connecting     bool
	manualClose    bool
	attempts       int
	reconnectTimer *time.Timer
	handshake      chan string
}

// NewClient 创建指向给定端点的客户端。
func NewClient(endpoint string, opts Options) *Client {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 3 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		opts:     opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}
}

// Connect 建立连接并等待服务端握手完成。已连接时幂等返回 true。
// 失败通过返回值和 OnError 回调报告，从不 panic。
func (c *Client) Connect(ctx context.Context, sessionID string, callbacks Callbacks) bool {
	c.mu.Lock()
	if c.conn != nil && !c.connecting {
		c.mu.Unlock()
		log.Printf("[ws] already connected, reusing session %s", c.SessionID())
		return true
	}
	if c.connecting {
		// 已有握手在进行中，拒绝并发连接
		c.mu.Unlock()
		return false
	}

	c.sessionID = sessionID
	c.serverAssigned = false
	c.callbacks = callbacks
	c.manualClose = false
	c.connecting = true
	hs := make(chan string, 1)
	c.handshake = hs
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		log.Printf("[ws] dial %s failed: %v", c.endpoint, err)
		c.mu.Lock()
		c.connecting = false
		c.handshake = nil
		cb := c.callbacks.OnError
		c.mu.Unlock()
		if cb != nil {
			cb("failed to create ws connection", "CONNECTION_ERROR")
		}
		return false
	}

	c.mu.Lock()
	c.conn = conn
	// 计数在物理连接建立时清零，不等 connected 事件；一个只升级连接
	// 却从不握手的服务端因此会被无限重试，由握手超时兜底退出每一轮
	c.attempts = 0
	c.mu.Unlock()

	go c.readLoop(conn)

	select {
	case serverID, ok := <-hs:
		if !ok {
			// 握手完成前连接被关闭
			return false
		}
		log.Printf("[ws] server connection established with id %s", serverID)
		return true
	case <-time.After(c.opts.HandshakeTimeout):
		log.Printf("[ws] handshake timed out")
		conn.Close()
		return false
	case <-ctx.Done():
		conn.Close()
		return false
	}
}

// Disconnect 主动关闭连接。主动关闭永久抑制该实例的自动重连，幂等。
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manualClose = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// SendFrame 发送一帧视频。连接未打开时返回 false 且无副作用。
func (c *Client) SendFrame(frame stream.Frame) bool {
	if frame.Type != "video" {
		log.Printf("[ws] SendFrame called with non-video payload %q", frame.Type)
		return false
	}

	c.mu.Lock()
	conn := c.conn
	sessionID := c.sessionID
	c.mu.Unlock()
	if conn == nil {
		return false
	}

	return c.writeJSON(conn, stream.NewFrameEvent(sessionID, frame))
}

// SendAudio 发送一段音频。连接未打开时返回 false 且无副作用。
func (c *Client) SendAudio(audio stream.Audio) bool {
	if audio.Type != "audio" {
		log.Printf("[ws] SendAudio called with non-audio payload %q", audio.Type)
		return false
	}

	c.mu.Lock()
	conn := c.conn
	sessionID := c.sessionID
	c.mu.Unlock()
	if conn == nil {
		return false
	}

	return c.writeJSON(conn, stream.NewAudioEvent(sessionID, audio))
}

// IsConnected 仅当物理连接打开且服务端已分配 connection id 时为 true。
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.serverAssigned
}

// ConnectionStatus 返回派生连接状态，connecting 只覆盖握手窗口。
func (c *Client) ConnectionStatus() stream.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		if c.connecting {
			return stream.ConnConnecting
		}
		return stream.ConnDisconnected
	}
	if c.serverAssigned {
		return stream.ConnConnected
	}
	return stream.ConnConnecting
}

// SessionID 返回当前会话 id（握手后为服务端分配值）。
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		log.Printf("[ws] write failed: %v", err)
		return false
	}
	return true
}

// readLoop 按到达顺序解码并分发入站事件，连接断开时退出。
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn)
			return
		}

		event, err := stream.DecodeInbound(data)
		if err != nil {
			// 协议错误只记录，不中断会话
			log.Printf("[ws] dropping inbound message: %v", err)
			continue
		}

		c.dispatch(event)
	}
}

func (c *Client) dispatch(event *stream.InboundEvent) {
	c.mu.Lock()
	cb := c.callbacks
	c.mu.Unlock()

	switch event.Type {
	case stream.EventConnected:
		c.mu.Lock()
		c.sessionID = event.ConnectionID
		c.serverAssigned = true
		c.connecting = false
		c.attempts = 0
		hs := c.handshake
		c.handshake = nil
		c.mu.Unlock()
		if hs != nil {
			hs <- event.ConnectionID
		}
		if cb.OnConnect != nil {
			cb.OnConnect(event.ConnectionID)
		}

	case stream.EventResult:
		if cb.OnResult != nil {
			cb.OnResult(*event.Result)
		}

	case stream.EventProgress:
		if cb.OnProgress != nil {
			cb.OnProgress(event.Progress.Progress, event.Progress.Message)
		}

	case stream.EventError:
		// 后端报错不关闭连接，也不结束会话
		if cb.OnError != nil {
			cb.OnError(event.Error.Error, event.Error.Code)
		}
	}
}

// handleDisconnect 处理物理连接关闭；非主动关闭时按策略安排重连。
func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// 过期连接的尾随事件
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.serverAssigned = false
	c.connecting = false
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	hs := c.handshake
	c.handshake = nil
	manual := c.manualClose
	canRetry := !manual && c.attempts < c.opts.MaxReconnectAttempts
	cb := c.callbacks
	c.mu.Unlock()

	conn.Close()
	if hs != nil {
		close(hs)
	}

	log.Printf("[ws] disconnected (manual=%v)", manual)
	if cb.OnDisconnect != nil {
		cb.OnDisconnect()
	}

	if canRetry {
		c.scheduleReconnect()
	}
}

// scheduleReconnect 安排下一次重连，同一时刻最多一个待触发定时器。
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.manualClose {
		c.mu.Unlock()
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.attempts++
	attempt := c.attempts
	delay := c.opts.ReconnectInterval * time.Duration(attempt)
	sessionID := c.sessionID
	callbacks := c.callbacks
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		manual := c.manualClose
		c.mu.Unlock()
		if manual {
			return
		}
		log.Printf("[ws] attempting to reconnect (%d/%d)", attempt, c.opts.MaxReconnectAttempts)
		if callbacks.OnReconnect != nil {
			callbacks.OnReconnect(attempt)
		}
		if !c.Connect(context.Background(), sessionID, callbacks) {
			c.mu.Lock()
			exhausted := c.attempts >= c.opts.MaxReconnectAttempts
			dialFailed := c.conn == nil && c.reconnectTimer == nil && !c.connecting
			c.mu.Unlock()
			// 拨号阶段就失败时不会触发 handleDisconnect，这里补上下一次调度
			if dialFailed && !exhausted {
				c.scheduleReconnect()
			}
		}
	})
	c.mu.Unlock()

	log.Printf("[ws] reconnect %d scheduled in %s", attempt, delay)
}
