package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrMalformed   = errors.New("malformed envelope")
	ErrUnknownType = errors.New("unknown message type")
)

// MessageType identifies the kind of an envelope.
type MessageType string

// Query messages
const (
	TypeGetState              MessageType = "GET_STATE"
	TypeStateResponse         MessageType = "STATE_RESPONSE"
	TypeGetMedications        MessageType = "GET_MEDICATIONS"
	TypeMedicationsResponse   MessageType = "MEDICATIONS_RESPONSE"
	TypeUpdateMedications     MessageType = "UPDATE_MEDICATIONS"
	TypeUpdateAck             MessageType = "UPDATE_ACK"
	TypeGetAlertHistory       MessageType = "GET_ALERT_HISTORY"
	TypeAlertHistoryResponse  MessageType = "ALERT_HISTORY_RESPONSE"
	TypeGetHealthHistory      MessageType = "GET_HEALTH_HISTORY"
	TypeHealthHistoryResponse MessageType = "HEALTH_HISTORY_RESPONSE"
	TypeAlertEvent            MessageType = "ALERT_EVENT"
)

// Command messages (guardian -> elder) and their responses
const (
	TypeAddMedication          MessageType = "ADD_MEDICATION"
	TypeUpdateMedication       MessageType = "UPDATE_MEDICATION"
	TypeDeleteMedication       MessageType = "DELETE_MEDICATION"
	TypeSendReminder           MessageType = "SEND_REMINDER"
	TypeSendMessage            MessageType = "SEND_MESSAGE"
	TypeUpdateEmergencyContact MessageType = "UPDATE_EMERGENCY_CONTACT"
	TypeDeleteEmergencyContact MessageType = "DELETE_EMERGENCY_CONTACT"
	TypeCommandSuccess         MessageType = "COMMAND_SUCCESS"
	TypeCommandError           MessageType = "COMMAND_ERROR"
)

// Control messages
const (
	TypeError         MessageType = "ERROR"
	TypeConnectionAck MessageType = "CONNECTION_ACK"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	_, ok := shapes[t]
	return ok
}

// IsResponse reports whether t is sent by the elder in reply to a request.
func (t MessageType) IsResponse() bool {
	switch t {
	case TypeStateResponse, TypeMedicationsResponse, TypeUpdateAck,
		TypeAlertHistoryResponse, TypeHealthHistoryResponse,
		TypeCommandSuccess, TypeCommandError, TypeError:
		return true
	}
	return false
}

// timestampLayout matches JavaScript's Date.toISOString (millisecond precision, UTC).
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the unit exchanged over the relay connection.
type Envelope struct {
	Type      MessageType     `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// NewEnvelope builds an outbound envelope with a fresh request id and the
// current time. A nil payload is sent as an empty object.
func NewEnvelope(msgType MessageType, from, to string, payload any) (Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Type:      msgType,
		From:      from,
		To:        to,
		RequestID: NewRequestID(),
		Payload:   raw,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	}, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return p, nil
	}

	if v, ok := payload.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// ParseEnvelope decodes a raw frame. Frames that are not JSON objects or
// carry no type are rejected with ErrMalformed.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// Marshal encodes the envelope for transmission.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Time parses the envelope timestamp. It returns the zero time when the
// timestamp is absent or unparseable.
func (e Envelope) Time() time.Time {
	if e.Timestamp == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
