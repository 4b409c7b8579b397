package identify

import (
	"context"
	"sync"

	"github.com/ovelo/moovy-go/internal/model/stream"
)

// Tracker is the thin application-facing state container over a Service:
// it intercepts session callbacks to maintain an identification history
// (most recent first), the last successful result and the active flag,
// and republishes the callbacks untouched.
//
// The Service is callback driven per event rather than a continuous
// stream, so consumers call Sync after externally observed changes.
type Tracker struct {
	svc *Service

	mu         sync.Mutex
	history    []stream.VideoResult
	current    *stream.VideoResult
	active     bool
	connStatus stream.ConnectionStatus
}

// NewTracker wraps a session manager.
func NewTracker(svc *Service) *Tracker {
	return &Tracker{
		svc:        svc,
		connStatus: svc.ConnectionStatus(),
	}
}

// Start passes through to the Service, intercepting callbacks to keep
// the tracker state current.
func (t *Tracker) Start(ctx context.Context, callbacks Callbacks) (*stream.Session, error) {
	wrapped := callbacks
	wrapped.OnSessionStart = func(sessionID string) {
		t.Sync()
		if callbacks.OnSessionStart != nil {
			callbacks.OnSessionStart(sessionID)
		}
	}
	wrapped.OnResult = func(resp stream.Response) {
		if resp.Success && resp.Result != nil {
			t.record(*resp.Result)
		}
		if callbacks.OnResult != nil {
			callbacks.OnResult(resp)
		}
	}
	wrapped.OnError = func(message string) {
		t.Sync()
		if callbacks.OnError != nil {
			callbacks.OnError(message)
		}
	}
	wrapped.OnSessionEnd = func(sessionID string) {
		t.Sync()
		if callbacks.OnSessionEnd != nil {
			callbacks.OnSessionEnd(sessionID)
		}
	}

	session, err := t.svc.Start(ctx, wrapped)
	if err != nil {
		t.Sync()
		return nil, err
	}
	return session, nil
}

// Stop passes through and resyncs.
func (t *Tracker) Stop() {
	t.svc.Stop()
	t.Sync()
}

// Sync re-reads the active flag and connection status from the Service.
func (t *Tracker) Sync() {
	active := t.svc.Active()
	status := t.svc.ConnectionStatus()

	t.mu.Lock()
	t.active = active
	t.connStatus = status
	t.mu.Unlock()
}

// Stats proxies the Service statistics snapshot.
func (t *Tracker) Stats() stream.Stats {
	return t.svc.Stats()
}

// History returns a copy of the identification history, newest first.
func (t *Tracker) History() []stream.VideoResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]stream.VideoResult, len(t.history))
	copy(out, t.history)
	return out
}

// Current returns the last successful result, or nil.
func (t *Tracker) Current() *stream.VideoResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	result := *t.current
	return &result
}

// Active reports the last synced active flag.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// ConnectionStatus reports the last synced connection status.
func (t *Tracker) ConnectionStatus() stream.ConnectionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connStatus
}

// AddToHistory prepends a result, e.g. one restored from persistence.
func (t *Tracker) AddToHistory(result stream.VideoResult) {
	t.record(result)
}

// ClearHistory drops the history and the current result.
func (t *Tracker) ClearHistory() {
	t.mu.Lock()
	t.history = nil
	t.current = nil
	t.mu.Unlock()
}

func (t *Tracker) record(result stream.VideoResult) {
	t.mu.Lock()
	t.history = append([]stream.VideoResult{result}, t.history...)
	t.current = &result
	t.mu.Unlock()
}
