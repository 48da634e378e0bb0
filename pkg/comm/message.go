package comm

import (
	json "github.com/goccy/go-json"
)

// Wire constants fixed by the host widget protocol. They must be emitted
// exactly as declared; the host routes on them.
const (
	// TargetName is the comm target widget models open against.
	TargetName = "jupyter.widget"

	// ControlTarget is the side channel the host uses for bulk state
	// requests across all live widgets.
	ControlTarget = "jupyter.widget.control"

	// ProtocolVersion is the widget message protocol version this package
	// speaks.
	ProtocolVersion = "2.1.0"
)

// Message methods.
const (
	// MethodUpdate carries a state document: outbound for locally
	// committed changes, inbound for host-initiated ones.
	MethodUpdate = "update"

	// MethodEchoUpdate is the outbound echo of a change the host itself
	// initiated, so every other front-end observes the same ordering.
	MethodEchoUpdate = "echo_update"

	// MethodRequestState asks for a full state document.
	MethodRequestState = "request_state"

	// MethodCustom carries an opaque payload, such as a view's click event.
	MethodCustom = "custom"
)

// Routing keys embedded in every full state document. The host reads them
// to pick the model and view classes on its side.
const (
	KeyModelModule  = "_model_module"
	KeyModelVersion = "_model_module_version"
	KeyModelName    = "_model_name"
	KeyViewModule   = "_view_module"
	KeyViewVersion  = "_view_module_version"
	KeyViewName     = "_view_name"
)

// Message is one comm payload. State carries an attribute document for
// update/echo_update; Content carries opaque custom payloads. A
// request_state message has neither.
type Message struct {
	Method  string          `json:"method"`
	State   json.RawMessage `json:"state,omitempty"`
	Content map[string]any  `json:"content,omitempty"`
}

// OpenPayload is the body of a comm open: the full initial state document,
// routing keys included.
type OpenPayload struct {
	State json.RawMessage `json:"state"`
}

// updateMessage wraps a state document in an update or echo_update frame.
func updateMessage(method string, doc StateDoc) *Message {
	return &Message{Method: method, State: json.RawMessage(doc.Bytes())}
}
