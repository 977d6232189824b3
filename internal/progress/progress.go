// Package progress fans out per-session pipeline progress events. Each
// session gets an append-only sequence of events with a monotonically
// non-decreasing progress value; subscribers long-poll for events past a
// sequence cursor, and late subscribers always see the terminal event.
package progress

import (
	"context"
	"sync"
	"time"
)

// Pipeline stages reported over the progress channel.
const (
	StageAnalysis = "analysis"
	StageStrategy = "strategy"
	StageRender   = "render"
	StageComplete = "complete"
	StageError    = "error"
)

// Event is one progress update for a session.
type Event struct {
	Sequence  uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"ts"`
	Stage     string    `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
}

// Terminal reports whether the event ends the session's stream.
func (e Event) Terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError
}

const defaultCapacity = 256

type sessionStream struct {
	buffer   []Event
	nextSeq  uint64
	progress float64
	terminal *Event
}

// Hub buffers progress events per session and wakes long-poll waiters when
// new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	sessions map[string]*sessionStream
}

// NewHub constructs a hub with the given per-session buffer capacity.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	h := &Hub{capacity: capacity, sessions: make(map[string]*sessionStream)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends an event to the session's stream. Progress values are
// clamped into [0,1] and never regress below the session's high-water mark;
// error events additionally never reach 1.0. Complete events are pinned to
// exactly 1.0. Publishing after a terminal event is a no-op.
func (h *Hub) Publish(sessionID, stage string, progress float64, message string) Event {
	if h == nil || sessionID == "" {
		return Event{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	stream := h.sessions[sessionID]
	if stream == nil {
		stream = &sessionStream{}
		h.sessions[sessionID] = stream
	}
	if stream.terminal != nil {
		return *stream.terminal
	}

	switch {
	case stage == StageComplete:
		progress = 1.0
	case progress < stream.progress:
		progress = stream.progress
	case progress > 1:
		progress = 1
	}
	if stage == StageError && progress >= 1 {
		progress = stream.progress
		if progress >= 1 {
			progress = 0.99
		}
	}
	stream.progress = progress

	stream.nextSeq++
	evt := Event{
		Sequence:  stream.nextSeq,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		Progress:  progress,
		Message:   message,
	}
	if len(stream.buffer) == h.capacity {
		copy(stream.buffer, stream.buffer[1:])
		stream.buffer = stream.buffer[:h.capacity-1]
	}
	stream.buffer = append(stream.buffer, evt)
	if evt.Terminal() {
		terminal := evt
		stream.terminal = &terminal
	}
	h.cond.Broadcast()
	return evt
}

// Fetch returns the session's events with sequence greater than since. When
// wait is true and nothing is pending, Fetch blocks until an event arrives,
// the stream is already terminal, or the context ends.
func (h *Hub) Fetch(ctx context.Context, sessionID string, since uint64, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next, terminal := h.snapshotLocked(sessionID, since)
		if len(events) > 0 || terminal || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Latest returns the most recent event for the session, if any. For a
// session that ended before the subscriber arrived this replays the
// terminal event.
func (h *Hub) Latest(sessionID string) (Event, bool) {
	if h == nil {
		return Event{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	stream := h.sessions[sessionID]
	if stream == nil || len(stream.buffer) == 0 {
		return Event{}, false
	}
	return stream.buffer[len(stream.buffer)-1], true
}

// Drop discards a session's stream, typically after retention expiry.
func (h *Hub) Drop(sessionID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()
}

func (h *Hub) snapshotLocked(sessionID string, since uint64) ([]Event, uint64, bool) {
	stream := h.sessions[sessionID]
	if stream == nil {
		return nil, since, false
	}
	terminal := stream.terminal != nil
	if len(stream.buffer) == 0 {
		return nil, stream.nextSeq, terminal
	}
	// A subscriber that joins after the buffer rolled past its cursor
	// still gets the terminal event.
	if terminal && since >= stream.nextSeq {
		return nil, stream.nextSeq, true
	}
	startIdx := -1
	for i, evt := range stream.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, stream.nextSeq, terminal
	}
	out := make([]Event, len(stream.buffer)-startIdx)
	copy(out, stream.buffer[startIdx:])
	return out, stream.nextSeq, terminal
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
