// Package events carries ticket activity to the operator live feed.
package events

const (
	TypeTaskOpened     = "task.opened"
	TypeTaskUpdated    = "task.updated"
	TypeMessageCreated = "message.created"
)

// Event is one frame of the live feed
type Event struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// Publisher fans events out to listeners. Publish must not block the caller.
type Publisher interface {
	Publish(evt Event)
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(Event) {}
