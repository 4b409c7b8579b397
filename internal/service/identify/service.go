// Package identify owns the streaming identification session lifecycle:
// it connects the transport, adopts the server assigned session id, wires
// the caller's frame/audio producers and forwards traffic and results.
package identify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ovelo/moovy-go/internal/config"
	"github.com/ovelo/moovy-go/internal/model/stream"
	streamsvc "github.com/ovelo/moovy-go/internal/service/stream"
)

var (
	ErrSessionInProgress = errors.New("streaming session already in progress")
	ErrConfigNotSet      = errors.New("streaming configuration is not set")
	ErrConnectFailed     = errors.New("failed to connect to websocket server")
)

// Transport is the connection surface the session manager drives. It is
// satisfied by *streamsvc.Client and by test fakes.
type Transport interface {
	Connect(ctx context.Context, sessionID string, callbacks streamsvc.Callbacks) bool
	Disconnect()
	SendFrame(frame stream.Frame) bool
	SendAudio(audio stream.Audio) bool
	IsConnected() bool
	ConnectionStatus() stream.ConnectionStatus
}

// Callbacks lets the caller observe one session end to end. The two
// producer hooks receive push functions the capture pipeline calls per
// encoded unit; the manager never depends on a concrete capture source.
type Callbacks struct {
	OnResult             func(resp stream.Response)
	OnProgress           func(progress float64, message string)
	OnError              func(message string)
	OnSessionStart       func(sessionID string)
	OnSessionEnd         func(sessionID string)
	OnFrameProducerReady func(push func(base64 string))
	OnAudioProducerReady func(push func(base64 string))
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithStopOnResult makes the manager call Stop after every delivered
// result. Off by default: the decision to stop and navigate belongs to
// the caller.
func WithStopOnResult() Option {
	return func(s *Service) { s.stopOnResult = true }
}

// Service is the session state machine. At most one live session exists
// per Service; a second Start while active is rejected, not queued.
type Service struct {
	transport    Transport
	video        config.Video
	audio        config.Audio
	stopOnResult bool

	mu        sync.Mutex
	session   *stream.Session
	streaming bool
	callbacks Callbacks
}

// NewService wires a session manager to its transport and capture
// configuration. The transport instance is exclusively owned.
func NewService(transport Transport, video config.Video, audio config.Audio, opts ...Option) *Service {
	s := &Service{transport: transport, video: video, audio: audio}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a session. It fails fast with ErrSessionInProgress or
// ErrConfigNotSet, and with ErrConnectFailed when the handshake never
// completes. The returned Session is shared: later field mutations are
// visible to the caller.
func (s *Service) Start(ctx context.Context, callbacks Callbacks) (*stream.Session, error) {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return nil, ErrSessionInProgress
	}
	if !s.video.Valid() || !s.audio.Valid() {
		s.mu.Unlock()
		return nil, ErrConfigNotSet
	}

	session := &stream.Session{
		SessionID: uuid.NewString(), // placeholder until the server assigns one
		StartTime: time.Now().UnixMilli(),
		Status:    stream.StatusConnecting,
	}
	s.session = session
	s.streaming = true
	s.callbacks = callbacks
	s.mu.Unlock()

	connected := s.transport.Connect(ctx, session.SessionID, streamsvc.Callbacks{
		OnConnect:    s.onConnect,
		OnResult:     s.onResult,
		OnProgress:   callbacks.OnProgress,
		OnError:      s.onError,
		OnDisconnect: s.onDisconnect,
	})

	if !connected {
		s.mu.Lock()
		s.streaming = false
		session.Status = stream.StatusError
		session.Error = ErrConnectFailed.Error()
		session.EndTime = time.Now().UnixMilli()
		s.mu.Unlock()
		return nil, ErrConnectFailed
	}

	return session, nil
}

// Stop finalises the active session and closes the transport. Manual
// close suppresses auto reconnect. No-op when idle.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return
	}
	s.streaming = false
	s.session.Status = stream.StatusCompleted
	s.session.EndTime = time.Now().UnixMilli()
	s.mu.Unlock()

	s.transport.Disconnect()
	log.Printf("[identify] streaming stopped")
}

// Active reports whether a session is currently live.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// CurrentSession returns the live session, or nil.
func (s *Service) CurrentSession() *stream.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// ConnectionStatus exposes the transport status for UI consumption.
func (s *Service) ConnectionStatus() stream.ConnectionStatus {
	return s.transport.ConnectionStatus()
}

// Stats derives a read-only snapshot. Safe to poll at any time; all
// fields are zero values when no session has run.
func (s *Service) Stats() stream.Stats {
	// 会话字段全部在锁内拷贝，推送与断开回调会并发修改它们
	s.mu.Lock()
	stats := stream.Stats{Active: s.streaming}
	if s.session != nil {
		end := s.session.EndTime
		if end == 0 {
			end = time.Now().UnixMilli()
		}
		stats.SessionID = s.session.SessionID
		stats.FramesSent = s.session.FramesSent
		stats.AudioSent = s.session.AudioSent
		stats.DurationMillis = end - s.session.StartTime
	}
	s.mu.Unlock()

	stats.ConnectionStatus = s.transport.ConnectionStatus()
	return stats
}

// onConnect adopts the server assigned connection id, flips the session
// to streaming and hands the caller the two producer push functions.
func (s *Service) onConnect(serverID string) {
	s.mu.Lock()
	if !s.streaming || s.session == nil {
		s.mu.Unlock()
		return
	}
	s.session.SessionID = serverID
	s.session.Status = stream.StatusStreaming
	cb := s.callbacks
	s.mu.Unlock()

	log.Printf("[identify] session started with server id %s", serverID)
	if cb.OnSessionStart != nil {
		cb.OnSessionStart(serverID)
	}
	if cb.OnFrameProducerReady != nil {
		cb.OnFrameProducerReady(s.pushFrame)
	}
	if cb.OnAudioProducerReady != nil {
		cb.OnAudioProducerReady(s.pushAudio)
	}
}

// pushFrame is handed to the caller's frame producer. Units produced
// while not streaming or not connected are dropped, never queued: a
// stale frame is worthless.
func (s *Service) pushFrame(base64 string) {
	s.mu.Lock()
	active := s.streaming
	video := s.video
	s.mu.Unlock()
	if !active || !s.transport.IsConnected() {
		return
	}

	frame := stream.Frame{
		Type: "video",
		Data: base64,
		Metadata: &stream.FrameMetadata{
			FPS:        video.FPS,
			Resolution: &stream.Resolution{Width: video.Width, Height: video.Height},
		},
	}
	if s.transport.SendFrame(frame) {
		s.mu.Lock()
		if s.session != nil {
			s.session.FramesSent++
		}
		s.mu.Unlock()
	}
}

// pushAudio is handed to the caller's audio producer.
func (s *Service) pushAudio(base64 string) {
	s.mu.Lock()
	active := s.streaming
	audio := s.audio
	s.mu.Unlock()
	if !active || !s.transport.IsConnected() {
		return
	}

	chunk := stream.Audio{
		Type: "audio",
		Data: base64,
		Metadata: &stream.AudioMetadata{
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
			Format:     audio.Format,
			Bitrate:    audio.Bits,
			Duration:   chunkDurationMillis(audio),
		},
	}
	if s.transport.SendAudio(chunk) {
		s.mu.Lock()
		if s.session != nil {
			s.session.AudioSent++
		}
		s.mu.Unlock()
	}
}

func chunkDurationMillis(a config.Audio) int64 {
	if a.BufferSize <= 0 || a.SampleRate <= 0 {
		return 0
	}
	return int64(a.BufferSize) * 1000 / int64(a.SampleRate)
}

// onResult forwards every backend result, success or failure, to the
// caller. Stopping on success is the caller's decision unless
// WithStopOnResult was chosen.
func (s *Service) onResult(resp stream.Response) {
	s.mu.Lock()
	cb := s.callbacks
	stopAfter := s.stopOnResult && s.streaming
	s.mu.Unlock()

	if cb.OnResult != nil {
		cb.OnResult(resp)
	}
	if stopAfter {
		s.Stop()
	}
}

// onError forwards backend reported errors verbatim. The session and the
// connection both stay up: the backend may still deliver a result.
func (s *Service) onError(message, code string) {
	s.mu.Lock()
	cb := s.callbacks
	s.mu.Unlock()

	if code != "" {
		log.Printf("[identify] backend error (%s): %s", code, message)
	} else {
		log.Printf("[identify] backend error: %s", message)
	}
	if cb.OnError != nil {
		cb.OnError(message)
	}
}

// onDisconnect terminates the session on an unplanned transport close.
// A close caused by Stop arrives here too, after streaming is already
// false, and is ignored.
func (s *Service) onDisconnect() {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return
	}
	s.streaming = false
	s.session.Status = stream.StatusError
	s.session.Error = "connection lost"
	s.session.EndTime = time.Now().UnixMilli()
	lastID := s.session.SessionID
	cb := s.callbacks
	s.mu.Unlock()

	log.Printf("[identify] connection lost, ending session %s", lastID)
	if cb.OnSessionEnd != nil {
		cb.OnSessionEnd(lastID)
	}
}
