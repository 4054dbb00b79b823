package core

// Client is one live transport connection as seen by the coordinator.
// A client starts anonymous; identity fields are set by the hub once a
// join succeeds and are only touched on the hub loop.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	UserID     int64
	Username   string
	Identified bool
}

// NewClient constructs an anonymous client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 16),
	}
}

// sendEvent pushes an event without blocking the hub loop. Events to a
// stalled consumer are dropped; roster and delivery notifications are
// best-effort, persisted messages are the source of truth.
func (c *Client) sendEvent(ev *Event) {
	select {
	case c.Events <- ev:
	default:
	}
}
