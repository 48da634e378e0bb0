package comm

import "sync"

// Bridge is the transport half the host provides. Payloads arrive already
// codec-encoded; implementations move bytes and nothing else. Inbound
// traffic flows the other way: the transport calls the Session's
// HandleOpen/HandleMessage/HandleClose on the session loop.
type Bridge interface {
	// OpenComm announces a new comm on target with its initial payload.
	OpenComm(commID, target string, data []byte) error

	// Send delivers one message on an open comm.
	Send(commID string, data []byte) error

	// CloseComm tears the comm down. data may carry a final payload and
	// may be nil.
	CloseComm(commID string, data []byte) error
}

// Frame op names recorded by the loopback bridge.
const (
	FrameOpen  = "open"
	FrameSend  = "send"
	FrameClose = "close"
)

// Frame is one outbound transmission captured by the loopback bridge.
type Frame struct {
	Op     string
	CommID string
	Target string
	Data   []byte
}

// LoopbackBridge keeps every outbound frame in memory. It backs tests and
// in-process embedding where host and kernel share a binary.
type LoopbackBridge struct {
	mu     sync.Mutex
	frames []Frame
}

// NewLoopbackBridge returns an empty loopback bridge.
func NewLoopbackBridge() *LoopbackBridge {
	return &LoopbackBridge{}
}

func (b *LoopbackBridge) OpenComm(commID, target string, data []byte) error {
	b.record(Frame{Op: FrameOpen, CommID: commID, Target: target, Data: data})
	return nil
}

func (b *LoopbackBridge) Send(commID string, data []byte) error {
	b.record(Frame{Op: FrameSend, CommID: commID, Data: data})
	return nil
}

func (b *LoopbackBridge) CloseComm(commID string, data []byte) error {
	b.record(Frame{Op: FrameClose, CommID: commID, Data: data})
	return nil
}

func (b *LoopbackBridge) record(f Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, f)
	b.mu.Unlock()
}

// Frames returns a copy of every captured frame in transmission order.
func (b *LoopbackBridge) Frames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// FramesFor returns the captured frames of one comm.
func (b *LoopbackBridge) FramesFor(commID string) []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Frame
	for _, f := range b.frames {
		if f.CommID == commID {
			out = append(out, f)
		}
	}
	return out
}

// Reset discards captured frames.
func (b *LoopbackBridge) Reset() {
	b.mu.Lock()
	b.frames = nil
	b.mu.Unlock()
}
