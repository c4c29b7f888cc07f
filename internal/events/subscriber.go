package events

// Message is one event as received from the bus.
type Message struct {
	Topic string
	Data  []byte
	// Deliberation is set for events scoped to a deliberation, when the
	// transport carries it.
	Deliberation string
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
