package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// HeaderDeliberation carries the deliberation id of a scoped event, so
// subscribers can filter without decoding the payload.
const HeaderDeliberation = "Agora-Deliberation"

// NATSPublisher publishes JSON-encoded events to NATS, one subject per topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("agora-engine"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	if id := DeliberationOf(event); id != "" {
		msg.Header.Set(HeaderDeliberation, id)
	}
	return p.conn.PublishMsg(msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber subscribes to events from NATS subjects.
type NATSSubscriber struct {
	conn         *nats.Conn
	deliberation string
}

// NATSSubscriberOption configures a NATSSubscriber.
type NATSSubscriberOption func(*NATSSubscriber)

// ForDeliberation drops events scoped to any other deliberation. Unscoped
// events still pass.
func ForDeliberation(id string) NATSSubscriberOption {
	return func(s *NATSSubscriber) { s.deliberation = id }
}

// NewNATSSubscriber connects to NATS, reconnecting forever. opts may mix
// nats.Option values (connection handlers) and NATSSubscriberOption values.
func NewNATSSubscriber(url string, opts ...any) (*NATSSubscriber, error) {
	s := &NATSSubscriber{}
	natsOpts := []nats.Option{
		nats.Name("agora-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	for _, o := range opts {
		switch o := o.(type) {
		case nats.Option:
			natsOpts = append(natsOpts, o)
		case NATSSubscriberOption:
			o(s)
		default:
			return nil, fmt.Errorf("unsupported subscriber option %T", o)
		}
	}
	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	s.conn = nc
	return s, nil
}

// Subscribe returns a channel of events on topic, which may use NATS
// wildcards such as All. The cancel function unsubscribes and closes the
// channel; it is safe to call more than once.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	ch := make(chan Message, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		m := Message{Topic: msg.Subject, Data: msg.Data}
		if msg.Header != nil {
			m.Deliberation = msg.Header.Get(HeaderDeliberation)
		}
		if s.deliberation != "" && m.Deliberation != "" && m.Deliberation != s.deliberation {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- m:
		default:
			// Full: drop rather than stall the NATS dispatcher.
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before we return, or events
	// published right after could be missed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
