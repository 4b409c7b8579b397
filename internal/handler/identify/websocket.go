package identify

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ovelo/moovy-go/internal/model/stream"
)

// WebSocketHandler 模拟识别后端的 WebSocket 处理器。
// 它按协议握手下发 connection id，消费帧/音频信封，回推 progress，
// 并在累计足够帧后回推一条识别结果。
type WebSocketHandler struct {
	upgrader          websocket.Upgrader
	resultAfterFrames int
	catalog           []stream.VideoResult
}

// NewWebSocketHandler 创建 WebSocket 处理器。
func NewWebSocketHandler(resultAfterFrames int, catalog []stream.VideoResult) *WebSocketHandler {
	if resultAfterFrames <= 0 {
		resultAfterFrames = 3
	}
	if len(catalog) == 0 {
		catalog = SeedCatalog()
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		resultAfterFrames: resultAfterFrames,
		catalog:           catalog,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/identify", h.handleWebSocket)
}

// outboundEnvelope 客户端发来的帧/音频信封
type outboundEnvelope struct {
	Type stream.EventType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

type connectionState struct {
	connectionID string
	framesSeen   int
	audioSeen    int
	startedAt    time.Time
	resultSent   bool
}

// handleWebSocket 处理一条识别会话连接。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[identifyd] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	state := &connectionState{
		connectionID: uuid.NewString(),
		startedAt:    time.Now(),
	}

	log.Printf("[identifyd] new connection %s from %s", state.connectionID, r.RemoteAddr)

	// 握手：先下发服务端分配的 connection id
	if !h.sendConnected(conn, state.connectionID) {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[identifyd] read error: %v", err)
			}
			return
		}

		var env outboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(conn, state.connectionID, "invalid message payload", "BAD_PAYLOAD")
			continue
		}

		switch env.Type {
		case stream.EventFrame:
			h.handleFrame(conn, state, env.Data)
		case stream.EventAudio:
			h.handleAudio(conn, state, env.Data)
		default:
			h.sendError(conn, state.connectionID, "unsupported message type: "+string(env.Type), "UNSUPPORTED_TYPE")
		}
	}
}

func (h *WebSocketHandler) handleFrame(conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var payload stream.FrameData
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, state.connectionID, "invalid frame payload", "BAD_FRAME")
		return
	}
	if payload.Frame.Data == "" {
		h.sendError(conn, state.connectionID, "empty frame data", "BAD_FRAME")
		return
	}

	state.framesSeen++
	log.Printf("[identifyd] frame %d received conn=%s bytes=%d", state.framesSeen, state.connectionID, len(payload.Frame.Data))

	progress := float64(state.framesSeen) / float64(h.resultAfterFrames)
	if progress > 1 {
		progress = 1
	}
	h.sendProgress(conn, state.connectionID, progress, "analyzing frames")

	if state.framesSeen >= h.resultAfterFrames && !state.resultSent {
		h.sendResult(conn, state)
	}
}

func (h *WebSocketHandler) handleAudio(conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var payload stream.AudioData
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, state.connectionID, "invalid audio payload", "BAD_AUDIO")
		return
	}
	if payload.Audio.Data == "" {
		h.sendError(conn, state.connectionID, "empty audio data", "BAD_AUDIO")
		return
	}

	state.audioSeen++
	log.Printf("[identifyd] audio chunk %d received conn=%s", state.audioSeen, state.connectionID)
}

func (h *WebSocketHandler) sendConnected(conn *websocket.Conn, connectionID string) bool {
	data, err := stream.EncodeConnected(connectionID)
	if err != nil {
		log.Printf("[identifyd] encode connected failed: %v", err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[identifyd] write connected failed: %v", err)
		return false
	}
	return true
}

func (h *WebSocketHandler) sendProgress(conn *websocket.Conn, connectionID string, progress float64, message string) {
	data, err := stream.EncodeProgress(stream.ProgressPayload{
		SessionID: connectionID,
		Progress:  progress,
		Message:   message,
	})
	if err != nil {
		log.Printf("[identifyd] encode progress failed: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[identifyd] write progress failed: %v", err)
	}
}

func (h *WebSocketHandler) sendResult(conn *websocket.Conn, state *connectionState) {
	match := h.catalog[state.framesSeen%len(h.catalog)]
	match.IdentifiedAt = time.Now().UTC()

	resp := stream.Response{
		Success:        true,
		SessionID:      state.connectionID,
		Result:         &match,
		Confidence:     0.92,
		ProcessingTime: time.Since(state.startedAt).Milliseconds(),
	}
	if len(h.catalog) > 1 {
		alt := h.catalog[(state.framesSeen+1)%len(h.catalog)]
		resp.Alternatives = []stream.VideoResult{alt}
	}

	data, err := stream.EncodeResult(resp)
	if err != nil {
		log.Printf("[identifyd] encode result failed: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[identifyd] write result failed: %v", err)
		return
	}

	state.resultSent = true
	log.Printf("[identifyd] result sent conn=%s title=%q", state.connectionID, match.Title)
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, connectionID, message, code string) {
	data, err := stream.EncodeError(stream.ErrorPayload{
		SessionID: connectionID,
		Error:     message,
		Code:      code,
	})
	if err != nil {
		log.Printf("[identifyd] encode error failed: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[identifyd] write error failed: %v", err)
	}
}
