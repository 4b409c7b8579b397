package stream

// SessionStatus 识别会话的生命周期状态
type SessionStatus string

const (
	StatusConnecting SessionStatus = "connecting"
	StatusStreaming  SessionStatus = "streaming"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusError      SessionStatus = "error"
)

// Terminal 表示该状态是否为终态
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Session 一次端到端的识别尝试。SessionID 初始为客户端占位 id，
// 握手完成后被服务端下发的 connection id 覆盖。
type Session struct {
	SessionID  string        `json:"sessionId"`
	StartTime  int64         `json:"startTime"` // Unix milliseconds
	EndTime    int64         `json:"endTime,omitempty"`
	Status     SessionStatus `json:"status"`
	FramesSent int           `json:"framesSent"`
	AudioSent  int           `json:"audioSent"`
	Error      string        `json:"error,omitempty"`
}

// ConnectionStatus 传输连接的派生状态
type ConnectionStatus string

const (
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
)

// Stats 提供给 UI 轮询的只读统计视图，无会话时为零值
type Stats struct {
	SessionID        string           `json:"sessionId,omitempty"`
	Active           bool             `json:"active"`
	FramesSent       int              `json:"framesSent"`
	AudioSent        int              `json:"audioSent"`
	DurationMillis   int64            `json:"duration"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
}
