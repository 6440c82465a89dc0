package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entities that produce ledger-change events.
const (
	EntityAccount     = "account"
	EntityTransaction = "transaction"
	EntityCreditCard  = "credit_card"
	EntityInvoice     = "invoice"
	EntityException   = "exception"
)

// Operations carried by a ledger-change event.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// LedgerChangeMessage announces that one ledger record changed. Consumers
// reload whatever they need; the message carries no record data.
type LedgerChangeMessage struct {
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage creates a change message stamped with the current time
func NewLedgerChangeMessage(entity, id, operation string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Entity:    entity,
		ID:        id,
		Operation: operation,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes and validates a change message
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.ID == "" {
		return nil, fmt.Errorf("ledger change message missing entity or id")
	}
	switch msg.Operation {
	case OpUpsert, OpDelete:
	default:
		return nil, fmt.Errorf("unknown ledger change operation %q", msg.Operation)
	}
	return &msg, nil
}
