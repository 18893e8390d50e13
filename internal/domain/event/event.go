package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

// Event represents a voucher domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	VoucherID     string                 `json:"voucher_id"`
	VoucherNumber string                 `json:"voucher_number"`
	ActorID       string                 `json:"actor_id,omitempty"`
	ActorType     entity.ActorType       `json:"actor_type"`
	IPAddress     string                 `json:"ip_address,omitempty"`
	UserAgent     string                 `json:"user_agent,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, voucherID, voucherNumber string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		VoucherID:     voucherID,
		VoucherNumber: voucherNumber,
		ActorType:     entity.ActorTypeSystem,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: id,
	}
}

// ForVoucher creates an event about a voucher performed by an actor
func ForVoucher(eventType Type, v *entity.Voucher, actor entity.Actor, at time.Time) *Event {
	evt := NewEvent(eventType, v.ID, v.VoucherNumber, nil).WithActor(actor)
	evt.Timestamp = at
	return evt
}

// WithActor returns a copy of the event attributed to the actor
func (e *Event) WithActor(actor entity.Actor) *Event {
	c := e.clone()
	c.ActorID = actor.ID()
	c.ActorType = actor.Type()
	c.IPAddress = actor.IPAddress
	c.UserAgent = actor.UserAgent
	return c
}

// WithCorrelation returns a copy of the event linked to a correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	c := e.clone()
	if correlationID != "" {
		c.CorrelationID = correlationID
	}
	return c
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	c := e.clone()
	c.Payload[key] = value
	return c
}

func (e *Event) clone() *Event {
	c := *e
	c.Payload = make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		c.Payload[k] = v
	}
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
