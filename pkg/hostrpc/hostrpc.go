// Package hostrpc serves a widget session to a remote front-end over
// JSON-RPC 2.0. The host drives models with widget/open, widget/update,
// widget/custom and widget/close; the kernel pushes commits back as
// widget/update and widget/echo_update notifications on the same
// connection. Streams are framed with the VS Code object codec, so any
// LSP-style client can speak the protocol.
package hostrpc

import (
	"context"
	"io"
	"net"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/go-prism/prism/pkg/comm"
)

// RPC method names. The same vocabulary flows both directions: the host
// calls them on the kernel, the kernel notifies the host with them.
const (
	MethodOpen       = "widget/open"
	MethodUpdate     = "widget/update"
	MethodEchoUpdate = "widget/echo_update"
	MethodCustom     = "widget/custom"
	MethodClose      = "widget/close"
	MethodState      = "widget/state"
	MethodList       = "widget/list"
	MethodPing       = "widget/ping"
)

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)

type openParams struct {
	CommID string          `json:"comm_id"`
	Target string          `json:"target_name"`
	Data   json.RawMessage `json:"data"`
}

type updateParams struct {
	CommID string          `json:"comm_id"`
	State  json.RawMessage `json:"state"`
}

type customParams struct {
	CommID  string         `json:"comm_id"`
	Content map[string]any `json:"content"`
}

type commParams struct {
	CommID string `json:"comm_id"`
}

type stateResult struct {
	State json.RawMessage `json:"state"`
}

type pingResult struct {
	Protocol string `json:"protocol_version"`
}

// WidgetInfo describes one live widget comm.
type WidgetInfo struct {
	CommID        string `json:"comm_id"`
	ModelID       string `json:"model_id"`
	Module        string `json:"module"`
	ModuleVersion string `json:"module_version"`
	ModelName     string `json:"model_name"`
	ViewName      string `json:"view_name"`
}

type listResult struct {
	Widgets []WidgetInfo `json:"widgets"`
}

// Server serves one widget session to one host connection at a time.
// Handlers hop onto the session loop, which must be running for the
// lifetime of the server.
type Server struct {
	session *comm.Session
	bridge  *Bridge
}

// NewServer wires a server around session. bridge must be the bridge the
// session sends through; Serve binds it to each connection.
func NewServer(session *comm.Session, bridge *Bridge) *Server {
	return &Server{session: session, bridge: bridge}
}

// Serve speaks the protocol over stream until the host disconnects or
// ctx is canceled. No request is served before the connection is bound
// to the bridge, so a handler never runs against a half-attached server.
func (s *Server) Serve(ctx context.Context, stream io.ReadWriteCloser) error {
	bound := make(chan struct{})
	inner := s.handler()
	gated := handlerFunc(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
		<-bound
		inner.Handle(ctx, conn, req)
	})
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(stream, jsonrpc2.VSCodeObjectCodec{}), gated)
	s.bridge.bind(ctx, conn)
	close(bound)
	defer s.bridge.unbind(conn)

	select {
	case <-conn.DisconnectNotify():
		return nil
	case <-ctx.Done():
		conn.Close()
		<-conn.DisconnectNotify()
		return ctx.Err()
	}
}

// ServeListener accepts and serves connections one at a time. A widget
// session talks to a single front-end; the next connection is served
// once the previous one disconnects.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := s.Serve(ctx, conn); err != nil {
			return err
		}
	}
}

// handlerFunc adapts a function to jsonrpc2.Handler.
type handlerFunc func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request)

func (f handlerFunc) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	f(ctx, conn, req)
}

type method func(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error)

func (s *Server) handler() jsonrpc2.Handler {
	return routingHandler(map[string]method{
		MethodOpen:   s.widgetOpen,
		MethodUpdate: s.widgetUpdate,
		MethodCustom: s.widgetCustom,
		MethodClose:  s.widgetClose,
		MethodState:  s.widgetState,
		MethodList:   s.widgetList,
		MethodPing:   s.widgetPing,
	})
}

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}
		return fn(ctx, conn, params)
	})
}

// Handler implementations. Each hops onto the session loop and returns
// the session's verdict as the RPC result.

func (s *Server) widgetPing(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error) {
	return &pingResult{Protocol: comm.ProtocolVersion}, nil
}

func (s *Server) widgetOpen(_ context.Context, _ jsonrpc2.JSONRPC2, raw json.RawMessage) (any, error) {
	var params openParams
	if json.Unmarshal(raw, &params) != nil || params.CommID == "" {
		return nil, errInvalidParams
	}
	var err error
	s.session.Loop().PostWait(func() {
		err = s.session.HandleOpen(params.CommID, params.Target, params.Data)
	})
	return nil, err
}

func (s *Server) widgetUpdate(_ context.Context, _ jsonrpc2.JSONRPC2, raw json.RawMessage) (any, error) {
	var params updateParams
	if json.Unmarshal(raw, &params) != nil || params.CommID == "" {
		return nil, errInvalidParams
	}
	data, err := json.Marshal(&comm.Message{Method: comm.MethodUpdate, State: params.State})
	if err != nil {
		return nil, errInvalidParams
	}
	s.session.Loop().PostWait(func() {
		err = s.session.HandleMessage(params.CommID, data)
	})
	return nil, err
}

func (s *Server) widgetCustom(_ context.Context, _ jsonrpc2.JSONRPC2, raw json.RawMessage) (any, error) {
	var params customParams
	if json.Unmarshal(raw, &params) != nil || params.CommID == "" {
		return nil, errInvalidParams
	}
	data, err := json.Marshal(&comm.Message{Method: comm.MethodCustom, Content: params.Content})
	if err != nil {
		return nil, errInvalidParams
	}
	s.session.Loop().PostWait(func() {
		err = s.session.HandleMessage(params.CommID, data)
	})
	return nil, err
}

func (s *Server) widgetClose(_ context.Context, _ jsonrpc2.JSONRPC2, raw json.RawMessage) (any, error) {
	var params commParams
	if json.Unmarshal(raw, &params) != nil || params.CommID == "" {
		return nil, errInvalidParams
	}
	var err error
	s.session.Loop().PostWait(func() {
		err = s.session.HandleClose(params.CommID, nil)
	})
	return nil, err
}

func (s *Server) widgetState(_ context.Context, _ jsonrpc2.JSONRPC2, raw json.RawMessage) (any, error) {
	var params commParams
	if json.Unmarshal(raw, &params) != nil || params.CommID == "" {
		return nil, errInvalidParams
	}
	var doc comm.StateDoc
	var err error
	s.session.Loop().PostWait(func() {
		m, ok := s.session.ModelByComm(params.CommID)
		if !ok {
			err = comm.ErrCommNotFound
			return
		}
		doc, err = comm.FullStateDoc(m)
	})
	if err != nil {
		return nil, err
	}
	return &stateResult{State: json.RawMessage(doc.Bytes())}, nil
}

func (s *Server) widgetList(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error) {
	result := &listResult{Widgets: []WidgetInfo{}}
	s.session.Loop().PostWait(func() {
		for _, id := range s.session.ModelIDs() {
			m, _ := s.session.Model(id)
			c, _ := s.session.CommFor(id)
			spec := m.Spec()
			result.Widgets = append(result.Widgets, WidgetInfo{
				CommID:        c.ID(),
				ModelID:       id,
				Module:        spec.Module,
				ModuleVersion: spec.ModuleVersion,
				ModelName:     spec.Model,
				ViewName:      spec.View,
			})
		}
	})
	return result, nil
}

// StdioStream adapts separate read and write files into the single
// stream jsonrpc2 frames over, for serving on stdin/stdout.
type StdioStream struct {
	In  io.ReadCloser
	Out io.WriteCloser
}

func (s StdioStream) Read(p []byte) (int, error)  { return s.In.Read(p) }
func (s StdioStream) Write(p []byte) (int, error) { return s.Out.Write(p) }

func (s StdioStream) Close() error {
	if err := s.In.Close(); err != nil {
		s.Out.Close()
		return err
	}
	return s.Out.Close()
}
