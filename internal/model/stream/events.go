package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType WebSocket 消息类型
type EventType string

const (
	// 出站
	EventFrame EventType = "frame"
	EventAudio EventType = "audio"
	// 入站
	EventConnected EventType = "connected"
	EventResult    EventType = "result"
	EventProgress  EventType = "progress"
	EventError     EventType = "error"
)

// ErrUnknownEventType 入站消息携带了未识别的 type。
// 调用方应记录日志后丢弃该消息，而不是中断会话。
var ErrUnknownEventType = errors.New("unknown event type")

// FrameEvent 出站视频帧信封
type FrameEvent struct {
	Type EventType `json:"type"` // EventFrame
	Data FrameData `json:"data"`
}

// FrameData 帧信封负载
type FrameData struct {
	SessionID string `json:"sessionId"`
	Frame     Frame  `json:"frame"`
}

// AudioEvent 出站音频块信封
type AudioEvent struct {
	Type EventType `json:"type"` // EventAudio
	Data AudioData `json:"data"`
}

// AudioData 音频信封负载
type AudioData struct {
	SessionID string `json:"sessionId"`
	Audio     Audio  `json:"audio"`
}

// NewFrameEvent 以当前会话 id 封装一帧视频
func NewFrameEvent(sessionID string, frame Frame) FrameEvent {
	return FrameEvent{Type: EventFrame, Data: FrameData{SessionID: sessionID, Frame: frame}}
}

// NewAudioEvent 以当前会话 id 封装一段音频
func NewAudioEvent(sessionID string, audio Audio) AudioEvent {
	return AudioEvent{Type: EventAudio, Data: AudioData{SessionID: sessionID, Audio: audio}}
}

// ProgressPayload 入站 progress 负载
type ProgressPayload struct {
	SessionID string  `json:"sessionId"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
}

// ErrorPayload 入站 error 负载
type ErrorPayload struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
}

// InboundEvent 解码后的入站消息，按 Type 取对应字段
type InboundEvent struct {
	Type         EventType
	ConnectionID string           // EventConnected
	Result       *Response        // EventResult
	Progress     *ProgressPayload // EventProgress
	Error        *ErrorPayload    // EventError
}

// inboundEnvelope 入站消息的原始信封
type inboundEnvelope struct {
	Type         EventType       `json:"type"`
	ConnectionID string          `json:"connection_id,omitempty"`
	Message      string          `json:"message,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// DecodeInbound 解析一条入站 WebSocket 消息。
// 未知 type 返回 ErrUnknownEventType，负载损坏返回解码错误。
func DecodeInbound(raw []byte) (*InboundEvent, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case EventConnected:
		if env.ConnectionID == "" {
			return nil, fmt.Errorf("connected event missing connection_id")
		}
		return &InboundEvent{Type: EventConnected, ConnectionID: env.ConnectionID}, nil

	case EventResult:
		var resp Response
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			return nil, fmt.Errorf("decode result payload: %w", err)
		}
		return &InboundEvent{Type: EventResult, Result: &resp}, nil

	case EventProgress:
		var p ProgressPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode progress payload: %w", err)
		}
		return &InboundEvent{Type: EventProgress, Progress: &p}, nil

	case EventError:
		var p ErrorPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode error payload: %w", err)
		}
		return &InboundEvent{Type: EventError, Error: &p}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}

// EncodeConnected 编码握手事件（模拟后端使用）
func EncodeConnected(connectionID string) ([]byte, error) {
	return json.Marshal(inboundEnvelope{Type: EventConnected, ConnectionID: connectionID})
}

// EncodeResult 编码 result 事件（模拟后端使用）
func EncodeResult(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inboundEnvelope{Type: EventResult, Data: data})
}

// EncodeProgress 编码 progress 事件（模拟后端使用）
func EncodeProgress(p ProgressPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inboundEnvelope{Type: EventProgress, Data: data})
}

// EncodeError 编码 error 事件（模拟后端使用）
func EncodeError(p ErrorPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inboundEnvelope{Type: EventError, Data: data})
}
