package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventUserCreated      = "user_created"
	EventPaymentConfirmed = "payment_confirmed"
	EventNodeRegistered   = "node_registered"
)

// UserCreatedPayload is the snapshot published on registration.
type UserCreatedPayload struct {
	UserID       int64  `json:"user_id"`
	UUID         string `json:"uuid"`
	Nickname     string `json:"nickname"`
	ReferralCode string `json:"referral_code"`
	ReferredBy   int64  `json:"referred_by,omitempty"`
}

// PaymentConfirmedPayload is published once per settled invoice.
type PaymentConfirmedPayload struct {
	UserID    int64   `json:"user_id"`
	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	DaysAdded int64   `json:"days_added"`
}

// NodeRegisteredPayload is published on node self-registration.
type NodeRegisteredPayload struct {
	NodeID   string `json:"node_id"`
	NodeName string `json:"node_name"`
	ServerIP string `json:"server_ip"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
