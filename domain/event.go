package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names one of the account event variants as persisted in the log.
type EventType string

const (
	EventAccountOpened          EventType = "AccountOpened"
	EventCustomerDepositedMoney EventType = "CustomerDepositedMoney"
	EventCustomerWithdrewCash   EventType = "CustomerWithdrewCash"
	EventCustomerWroteCheck     EventType = "CustomerWroteCheck"
)

// Event is an immutable fact about one account. The set of implementations is
// closed: only the variants declared in this package satisfy it.
type Event interface {
	EventType() EventType
	isEvent()
}

// AccountOpened starts an account stream.
type AccountOpened struct {
	AccountID string `json:"account_id"`
}

// CustomerDepositedMoney records a deposit and the resulting balance.
type CustomerDepositedMoney struct {
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

// CustomerWithdrewCash records an ATM withdrawal and the resulting balance.
type CustomerWithdrewCash struct {
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

// CustomerWroteCheck records a written check and the resulting balance.
type CustomerWroteCheck struct {
	CheckNumber string  `json:"check_number"`
	Amount      float64 `json:"amount"`
	Balance     float64 `json:"balance"`
}

func (AccountOpened) EventType() EventType          { return EventAccountOpened }
func (CustomerDepositedMoney) EventType() EventType { return EventCustomerDepositedMoney }
func (CustomerWithdrewCash) EventType() EventType   { return EventCustomerWithdrewCash }
func (CustomerWroteCheck) EventType() EventType     { return EventCustomerWroteCheck }

func (AccountOpened) isEvent()          {}
func (CustomerDepositedMoney) isEvent() {}
func (CustomerWithdrewCash) isEvent()   {}
func (CustomerWroteCheck) isEvent()     {}

// Envelope is a committed event together with its stream position and metadata.
type Envelope struct {
	ID          string            `json:"id"`
	AggregateID string            `json:"aggregate_id"`
	Sequence    int64             `json:"sequence"`
	Type        EventType         `json:"event_type"`
	Event       Event             `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// EncodeEvent serializes the event payload for storage.
func EncodeEvent(evt Event) ([]byte, error) {
	if evt == nil {
		return nil, ErrUnknownEvent
	}
	return json.Marshal(evt)
}

// DecodeEvent restores a payload written by EncodeEvent.
func DecodeEvent(eventType EventType, payload []byte) (Event, error) {
	var (
		evt Event
		err error
	)
	switch eventType {
	case EventAccountOpened:
		var e AccountOpened
		err = json.Unmarshal(payload, &e)
		evt = e
	case EventCustomerDepositedMoney:
		var e CustomerDepositedMoney
		err = json.Unmarshal(payload, &e)
		evt = e
	case EventCustomerWithdrewCash:
		var e CustomerWithdrewCash
		err = json.Unmarshal(payload, &e)
		evt = e
	case EventCustomerWroteCheck:
		var e CustomerWroteCheck
		err = json.Unmarshal(payload, &e)
		evt = e
	default:
		return nil, WrapError(ErrCodeInternal, "decode event", fmt.Errorf("%w: %q", ErrUnknownEvent, eventType))
	}
	if err != nil {
		return nil, WrapError(ErrCodeInternal, fmt.Sprintf("decode %s payload", eventType), err)
	}
	return evt, nil
}

// Stamp turns freshly decided events into envelopes positioned after the
// given sequence. Every envelope gets its own copy of the metadata.
func Stamp(aggregateID string, after int64, events []Event, metadata map[string]string, now time.Time) []Envelope {
	envelopes := make([]Envelope, 0, len(events))
	for i, evt := range events {
		envelopes = append(envelopes, Envelope{
			ID:          uuid.NewString(),
			AggregateID: aggregateID,
			Sequence:    after + int64(i) + 1,
			Type:        evt.EventType(),
			Event:       evt,
			Metadata:    CloneMetadata(metadata),
			CreatedAt:   now.UTC(),
		})
	}
	return envelopes
}

// CloneMetadata copies a metadata map, returning nil for an empty one.
func CloneMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
