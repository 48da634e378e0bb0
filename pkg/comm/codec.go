// Package comm speaks the widget wire protocol between models living in
// this process and a host front-end. A Session owns the open comms of one
// connection: it forwards committed model changes out as update/echo_update
// messages and applies inbound state documents under the comm's origin tag,
// so local views can tell host-initiated changes from their own.
package comm

import (
	"errors"

	json "github.com/goccy/go-json"
)

// MessageCodec encodes and decodes payloads for comm transmission.
type MessageCodec interface {
	// Encode converts a Go value to bytes for transmission to the host.
	Encode(value any) ([]byte, error)

	// Decode converts bytes received from the host to a Go value.
	Decode(data []byte) (any, error)
}

// JSONCodec implements MessageCodec using JSON encoding. JSON is what the
// widget protocol mandates on the wire; it is also the only encoding every
// host front-end understands.
type JSONCodec struct{}

// Encode serializes the value to JSON bytes.
func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode deserializes JSON bytes to a Go value.
func (JSONCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeInto deserializes JSON bytes into a specific type.
func (JSONCodec) DecodeInto(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// DefaultCodec is the codec sessions use unless configured otherwise.
var DefaultCodec MessageCodec = JSONCodec{}

// Standard errors for comm operations.
var (
	// ErrCommNotFound indicates no open comm carries the given id.
	ErrCommNotFound = errors.New("comm not found")

	// ErrCommClosed indicates a send on a comm that is not open.
	ErrCommClosed = errors.New("comm is closed")

	// ErrCommOpen indicates an open on a comm that is already open.
	ErrCommOpen = errors.New("comm is already open")

	// ErrUnknownMethod indicates a message method this package does not speak.
	ErrUnknownMethod = errors.New("unknown message method")

	// ErrUnknownTarget indicates a comm open on a target this package does
	// not serve.
	ErrUnknownTarget = errors.New("unknown comm target")

	// ErrModelNotFound indicates no registered model carries the given id.
	ErrModelNotFound = errors.New("model not found")
)
