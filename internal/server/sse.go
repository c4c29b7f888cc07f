package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/agora/internal/events"
)

const (
	// sseRingBufferSize is how many recent events are kept for replay.
	sseRingBufferSize = 1000

	sseKeepaliveInterval = 15 * time.Second

	// sseRetryMillis is the reconnect delay suggested to clients.
	sseRetryMillis = 2000

	// TopicStreamReset tells a reconnecting client that events were lost
	// and it should re-read whatever state it mirrors.
	TopicStreamReset = "agora.stream.reset"
)

// sseEvent is a single event stored in the ring buffer and sent to SSE clients.
type sseEvent struct {
	ID             uint64
	Topic          string
	DeliberationID string
	Data           []byte
}

// eventRing holds the most recent events in ID order.
type eventRing struct {
	mu   sync.RWMutex
	buf  [sseRingBufferSize]sseEvent
	next int // write position
	size int
}

func (r *eventRing) push(evt sseEvent) {
	r.mu.Lock()
	r.buf[r.next] = evt
	r.next = (r.next + 1) % sseRingBufferSize
	if r.size < sseRingBufferSize {
		r.size++
	}
	r.mu.Unlock()
}

// since returns the buffered events with ID > lastID, oldest first.
// complete is false when events after lastID have already been evicted,
// or when lastID is from before a server restart.
func (r *eventRing) since(lastID uint64) (evts []*sseEvent, complete bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size == 0 {
		return nil, lastID == 0
	}
	start := (r.next - r.size + sseRingBufferSize) % sseRingBufferSize
	oldest := r.buf[start].ID
	newest := r.buf[(r.next-1+sseRingBufferSize)%sseRingBufferSize].ID
	for i := range r.size {
		evt := &r.buf[(start+i)%sseRingBufferSize]
		if evt.ID > lastID {
			evts = append(evts, evt)
		}
	}
	return evts, oldest <= lastID+1 && lastID <= newest
}

// Hub fans engine events out to connected SSE clients. It implements
// events.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	nextID  atomic.Uint64
	ring    eventRing
}

type sseClient struct {
	topics         []string // topic patterns; empty matches all
	deliberationID string   // empty matches all
	ch             chan *sseEvent
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*sseClient]struct{})}
}

// Publish marshals event and broadcasts it to matching clients.
func (h *Hub) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	h.broadcast(topic, events.DeliberationOf(event), payload)
	return nil
}

// Close is a no-op; streams end when their requests do.
func (h *Hub) Close() error { return nil }

func (h *Hub) broadcast(topic, deliberationID string, payload []byte) {
	evt := sseEvent{
		ID:             h.nextID.Add(1),
		Topic:          topic,
		DeliberationID: deliberationID,
		Data:           payload,
	}
	h.ring.push(evt)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.matches(&evt) {
			select {
			case c.ch <- &evt:
			default:
				// Slow clients miss events.
			}
		}
	}
}

func (h *Hub) subscribe(topics []string, deliberationID string) *sseClient {
	c := &sseClient{
		topics:         topics,
		deliberationID: deliberationID,
		ch:             make(chan *sseEvent, 64),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) eventsSince(lastID uint64) ([]*sseEvent, bool) {
	return h.ring.since(lastID)
}

func (c *sseClient) matches(evt *sseEvent) bool {
	if c.deliberationID != "" && evt.DeliberationID != c.deliberationID {
		return false
	}
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, evt.Topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic NATS-style: "*" is one
// segment and a trailing ">" is one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")
	for i, pp := range patParts {
		if pp == ">" {
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}
	return len(patParts) == len(topParts)
}

// resumeFrom reads the replay position from the Last-Event-ID header, or
// from the "since" query parameter for clients that cannot set headers.
func resumeFrom(r *http.Request) (uint64, bool) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("since")
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil
}

func parseTopics(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream handles GET /v1/events/stream. Query parameters:
// topics (comma-separated patterns), deliberation, and since.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	client := s.hub.subscribe(parseTopics(r.URL.Query().Get("topics")), r.URL.Query().Get("deliberation"))
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry:%d\n\n", sseRetryMillis)

	// Events broadcast between subscribe and replay can arrive twice;
	// skip anything at or below the last replayed ID.
	var replayedUpTo uint64
	if lastID, ok := resumeFrom(r); ok {
		evts, complete := s.hub.eventsSince(lastID)
		if !complete {
			fmt.Fprintf(w, "event:%s\ndata:{\"last_event_id\":%d}\n\n", TopicStreamReset, lastID)
		}
		for _, evt := range evts {
			if client.matches(evt) {
				writeSSEEvent(w, evt)
			}
			replayedUpTo = evt.ID
		}
	}
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			if evt.ID <= replayedUpTo {
				continue
			}
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
