package directive

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Envelope is the body of every API response.
type Envelope struct {
	Code      int        `json:"code"`
	Message   string     `json:"message"`
	Data      any        `json:"data"`
	Directive *Directive `json:"directive,omitempty"`
}

// OK builds a 200 envelope.
func OK(message string, data any) Envelope {
	return Envelope{Code: 200, Message: message, Data: data}
}

// Fail builds an envelope with a non-200 code and null data.
func Fail(code int, message string) Envelope {
	return Envelope{Code: code, Message: message}
}

// With attaches d and returns the envelope. A nil d leaves it without a directive.
func (e Envelope) With(d *Directive) Envelope {
	e.Directive = d
	return e
}

// RawEnvelope is the client-side view, with data left undecoded.
type RawEnvelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Directive *Directive      `json:"directive,omitempty"`
}

// ParseEnvelope decodes a response body.
func ParseEnvelope(body []byte) (*RawEnvelope, error) {
	var env RawEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

// HasData reports whether data is present and not null.
func (e *RawEnvelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// DecodeData unmarshals data into dst.
func (e *RawEnvelope) DecodeData(dst any) error {
	if !e.HasData() {
		return nil
	}
	return sonic.Unmarshal(e.Data, dst)
}
