package hostrpc

import (
	"context"
	"io"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/go-prism/prism/pkg/comm"
)

// NotifyFunc receives one kernel notification. params is the raw params
// document; notifications without params deliver nil.
type NotifyFunc func(method string, params json.RawMessage)

// Client is the host side of the widget RPC protocol, for Go front-ends
// and tests.
type Client struct {
	conn *jsonrpc2.Conn
}

// Dial speaks the protocol over stream. onNotify may be nil to drop
// kernel pushes.
func Dial(ctx context.Context, stream io.ReadWriteCloser, onNotify NotifyFunc) *Client {
	h := handlerFunc(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) {
		if onNotify == nil || !req.Notif {
			return
		}
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}
		onNotify(req.Method, params)
	})
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(stream, jsonrpc2.VSCodeObjectCodec{}), h)
	return &Client{conn: conn}
}

// Ping returns the protocol version the kernel speaks.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var res pingResult
	if err := c.conn.Call(ctx, MethodPing, nil, &res); err != nil {
		return "", err
	}
	return res.Protocol, nil
}

// Open asks the kernel to build a widget from a state document. The
// document must carry the routing keys of a registered class.
func (c *Client) Open(ctx context.Context, commID string, state []byte) error {
	data, err := json.Marshal(&comm.OpenPayload{State: json.RawMessage(state)})
	if err != nil {
		return err
	}
	return c.conn.Call(ctx, MethodOpen, &openParams{
		CommID: commID,
		Target: comm.TargetName,
		Data:   json.RawMessage(data),
	}, nil)
}

// Update applies a state document to the widget behind commID.
func (c *Client) Update(ctx context.Context, commID string, state []byte) error {
	return c.conn.Call(ctx, MethodUpdate, &updateParams{
		CommID: commID,
		State:  json.RawMessage(state),
	}, nil)
}

// Custom delivers an opaque payload, such as {"event":"click"}.
func (c *Client) Custom(ctx context.Context, commID string, content map[string]any) error {
	return c.conn.Call(ctx, MethodCustom, &customParams{CommID: commID, Content: content}, nil)
}

// CloseComm tears down the widget behind commID.
func (c *Client) CloseComm(ctx context.Context, commID string) error {
	return c.conn.Call(ctx, MethodClose, &commParams{CommID: commID}, nil)
}

// State fetches the authoritative full state document of a comm.
func (c *Client) State(ctx context.Context, commID string) ([]byte, error) {
	var res stateResult
	if err := c.conn.Call(ctx, MethodState, &commParams{CommID: commID}, &res); err != nil {
		return nil, err
	}
	return res.State, nil
}

// List enumerates the kernel's live widgets.
func (c *Client) List(ctx context.Context) ([]WidgetInfo, error) {
	var res listResult
	if err := c.conn.Call(ctx, MethodList, nil, &res); err != nil {
		return nil, err
	}
	return res.Widgets, nil
}

// Close drops the connection.
func (c *Client) Close() error { return c.conn.Close() }

// DisconnectNotify is closed when the connection goes away.
func (c *Client) DisconnectNotify() <-chan struct{} { return c.conn.DisconnectNotify() }
