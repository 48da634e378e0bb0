package hostrpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/go-prism/prism/pkg/comm"
)

// ErrNotAttached indicates outbound traffic while no host is connected.
var ErrNotAttached = errors.New("no host attached")

// Bridge forwards outbound comm traffic to the connected host as
// JSON-RPC notifications. Between connections sends fail with
// ErrNotAttached; a host that attaches later recovers the missed state
// through widget/list and widget/state.
type Bridge struct {
	mu   sync.Mutex
	ctx  context.Context
	conn *jsonrpc2.Conn
}

// NewBridge returns an unbound bridge. Server.Serve binds it to each
// connection it accepts.
func NewBridge() *Bridge { return &Bridge{} }

func (b *Bridge) bind(ctx context.Context, conn *jsonrpc2.Conn) {
	b.mu.Lock()
	b.ctx, b.conn = ctx, conn
	b.mu.Unlock()
}

// unbind detaches conn if it is still the bound connection.
func (b *Bridge) unbind(conn *jsonrpc2.Conn) {
	b.mu.Lock()
	if b.conn == conn {
		b.ctx, b.conn = nil, nil
	}
	b.mu.Unlock()
}

func (b *Bridge) connection() (context.Context, *jsonrpc2.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil, nil, ErrNotAttached
	}
	return b.ctx, b.conn, nil
}

// OpenComm announces a comm to the host.
func (b *Bridge) OpenComm(commID, target string, data []byte) error {
	ctx, conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Notify(ctx, MethodOpen, &openParams{
		CommID: commID,
		Target: target,
		Data:   json.RawMessage(data),
	})
}

// Send splits an encoded comm message into the matching host
// notification, so the host sees the same method vocabulary it speaks.
func (b *Bridge) Send(commID string, data []byte) error {
	ctx, conn, err := b.connection()
	if err != nil {
		return err
	}
	var msg comm.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	switch msg.Method {
	case comm.MethodUpdate:
		return conn.Notify(ctx, MethodUpdate, &updateParams{CommID: commID, State: msg.State})
	case comm.MethodEchoUpdate:
		return conn.Notify(ctx, MethodEchoUpdate, &updateParams{CommID: commID, State: msg.State})
	case comm.MethodCustom:
		return conn.Notify(ctx, MethodCustom, &customParams{CommID: commID, Content: msg.Content})
	default:
		return fmt.Errorf("%w: %q", comm.ErrUnknownMethod, msg.Method)
	}
}

// CloseComm tells the host the comm is gone.
func (b *Bridge) CloseComm(commID string, data []byte) error {
	ctx, conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Notify(ctx, MethodClose, &commParams{CommID: commID})
}
