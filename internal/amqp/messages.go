package amqp

import (
	"encoding/json"
	"time"
)

// ChangeEvent announces that a transaction operation touched rows. It
// carries ids only; consumers re-read the rows they care about.
type ChangeEvent struct {
	Operation     string    `json:"operation"`
	Scope         string    `json:"scope,omitempty"`
	GroupID       string    `json:"group_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Rows          int       `json:"rows"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewChangeEvent(operation, scope, groupID, transactionID string, rows int) ChangeEvent {
	return ChangeEvent{
		Operation:     operation,
		Scope:         scope,
		GroupID:       groupID,
		TransactionID: transactionID,
		Rows:          rows,
		Timestamp:     time.Now().UTC(),
	}
}

func (e ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	err := json.Unmarshal(data, &ev)
	return ev, err
}
