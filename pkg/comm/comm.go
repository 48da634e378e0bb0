package comm

import (
	"github.com/google/uuid"

	"github.com/go-prism/prism/pkg/model"
)

// Comm is one open channel between a model and the host. Its id doubles as
// the origin tag on mutations the host initiates, which is how local views
// and the outbound forwarder tell host changes from their own.
type Comm struct {
	id     string
	target string
	bridge Bridge
	codec  MessageCodec
	open   bool
}

// newComm builds an unopened comm with a fresh id for the local side.
func newComm(bridge Bridge, target string, codec MessageCodec) *Comm {
	if codec == nil {
		codec = DefaultCodec
	}
	return &Comm{id: uuid.NewString(), target: target, bridge: bridge, codec: codec}
}

// adoptComm wraps a comm the host already opened under its own id.
func adoptComm(id string, bridge Bridge, target string, codec MessageCodec) *Comm {
	if codec == nil {
		codec = DefaultCodec
	}
	return &Comm{id: id, target: target, bridge: bridge, codec: codec, open: true}
}

// ID returns the comm id shared with the host.
func (c *Comm) ID() string { return c.id }

// Target returns the comm target name.
func (c *Comm) Target() string { return c.target }

// IsOpen reports whether the comm accepts sends.
func (c *Comm) IsOpen() bool { return c.open }

// Origin is the tag put on mutations that arrived over this comm.
func (c *Comm) Origin() model.Origin { return model.Origin(c.id) }

// Open announces the comm to the host with its initial payload. Opening an
// already-open comm is an error.
func (c *Comm) Open(payload any) error {
	if c.open {
		return ErrCommOpen
	}
	data, err := c.codec.Encode(payload)
	if err != nil {
		return err
	}
	if err := c.bridge.OpenComm(c.id, c.target, data); err != nil {
		return err
	}
	c.open = true
	return nil
}

// Send delivers msg to the host. Sends on a closed comm fail with
// ErrCommClosed.
func (c *Comm) Send(msg *Message) error {
	if !c.open {
		return ErrCommClosed
	}
	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	return c.bridge.Send(c.id, data)
}

// Close tears the comm down on the host side. Closing twice is a no-op.
func (c *Comm) Close() error {
	if !c.open {
		return nil
	}
	c.open = false
	return c.bridge.CloseComm(c.id, nil)
}

// markClosed records a host-initiated close without sending anything back.
func (c *Comm) markClosed() { c.open = false }
