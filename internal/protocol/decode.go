package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode maps the envelope payload onto the struct registered for its type.
// Unknown fields are ignored. Payloads implementing Validator are validated
// after decoding.
func Decode(env Envelope) (Payload, error) {
	newShape, ok := shapes[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	p := newShape()
	raw := bytes.TrimSpace(env.Payload)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
		}
	}

	if v, ok := p.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DecodeAs decodes the envelope payload into T without consulting the
// registry. It is used for response bodies whose shape the caller knows.
func DecodeAs[T any](raw json.RawMessage) (T, error) {
	var out T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

// ErrorMessage extracts the "error" field from an ERROR or COMMAND_ERROR
// payload. It returns "" when the field is absent.
func ErrorMessage(raw json.RawMessage) (message, details string) {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", ""
	}
	return body.Error, body.Details
}
