package publisher

// Publisher broadcasts tracking events (price drops, triggered alerts) to
// downstream consumers.
type Publisher interface {
	// Publish sends a message under an event kind
	Publish(kind string, message []byte) error

	// Close closes the publisher connection
	Close() error
}

// Nop is a Publisher that drops every event; used when Redis is not configured.
type Nop struct{}

// Publish discards the message
func (Nop) Publish(kind string, message []byte) error { return nil }

// Close is a no-op
func (Nop) Close() error { return nil }
