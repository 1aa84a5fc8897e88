package amqp

import (
	"encoding/json"
	"time"
)

// Mirror operations carried by the queue.
const (
	OpCreate = "create"
	OpStatus = "status"
	OpDelete = "delete"
)

// MirrorMessage tells the worker one journal row needs to reach the
// remote store. It carries only ids; the worker reads the journal and
// re-folds the ledger to build the full document.
type MirrorMessage struct {
	Op        string    `json:"op"`
	PaymentID int64     `json:"payment_id"`
	RemoteID  int64     `json:"remote_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMirrorMessage creates a mirror message for one journaled payment.
func NewMirrorMessage(op string, paymentID, remoteID int64) *MirrorMessage {
	return &MirrorMessage{
		Op:        op,
		PaymentID: paymentID,
		RemoteID:  remoteID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *MirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MirrorMessageFromJSON creates a message from JSON bytes.
func MirrorMessageFromJSON(data []byte) (*MirrorMessage, error) {
	var msg MirrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
