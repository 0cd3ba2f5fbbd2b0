// Package outbox implements the transactional outbox: mutations write their
// change events in the same transaction as the data change, and a background
// publisher drains them to Kafka. Consumers on other instances invalidate
// their availability caches from these events.
package outbox

// Event types carried on the bus.
const (
	EventReservationChanged = "clinic.reservation.changed.v1"
	EventClosureChanged     = "clinic.closure.changed.v1"
)

// Event is one pending change notification.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// ChangePayload is the wire payload for both event types. ServiceCode is empty
// on closure changes that affect all services.
type ChangePayload struct {
	Date        string `json:"date"`
	ServiceCode string `json:"service_code,omitempty"`
}
