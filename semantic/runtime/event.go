package runtime

import (
	"time"

	"github.com/google/uuid"
)

// Event is the provider's actor/event/object/result shape: actor,
// event name, an optional object acted upon, and an optional result.
// The event name is a free-form "<Type>.<verb>" string or a global
// keyword, so callers can emit arbitrary type-specific events rather
// than a closed set.
type Event struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	ActorData  map[string]any `json:"actorData,omitempty"`
	EventName  string         `json:"event"`
	Object     string         `json:"object,omitempty"`
	ObjectData map[string]any `json:"objectData,omitempty"`
	Result     string         `json:"result,omitempty"`
	ResultData map[string]any `json:"resultData,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewEvent constructs an immutable Event record, stamping an id and
// timestamp. Events are never mutated once appended.
func NewEvent(actor, eventName string) *Event {
	return &Event{
		ID:        generateEventID(),
		Actor:     actor,
		EventName: eventName,
		Timestamp: time.Now(),
	}
}

// WithObject attaches the object this event concerns.
func (e *Event) WithObject(object string, data map[string]any) *Event {
	e.Object = object
	e.ObjectData = data
	return e
}

// WithResult attaches the outcome of the action this event describes.
func (e *Event) WithResult(result string, data map[string]any) *Event {
	e.Result = result
	e.ResultData = data
	return e
}

// WithMeta attaches free-form metadata.
func (e *Event) WithMeta(meta map[string]any) *Event {
	e.Meta = meta
	return e
}

// generateEventID generates a unique event identifier.
func generateEventID() string {
	return "evt-" + uuid.New().String()
}

