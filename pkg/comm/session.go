package comm

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/registry"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// CustomHandler receives custom payloads the session has no built-in
// routing for.
type CustomHandler func(modelID string, payload map[string]any)

// Option configures a Session.
type Option func(*Session)

// WithCodec overrides the wire codec.
func WithCodec(codec MessageCodec) Option {
	return func(s *Session) { s.codec = codec }
}

// WithSurfaceFactory overrides the surface given to views the session
// creates. The default is an in-memory text surface.
func WithSurfaceFactory(fn func() surface.Surface) Option {
	return func(s *Session) { s.surfaces = fn }
}

// binding ties one model to its comm, its outbound forwarder, and the
// views the session created for it.
type binding struct {
	comm  *Comm
	model *model.Model
	fwd   *commView
	views []view.View
}

// Session owns the open comms of one host connection. It forwards
// committed model changes to the host and applies inbound state under
// each comm's origin tag. Every method must run on the session loop;
// transports hop with Loop().PostWait. The session is the view.Emitter
// for views it creates, so their custom payloads go out over the owning
// model's comm.
type Session struct {
	lp       *loop.Loop
	reg      *registry.Registry
	bridge   Bridge
	codec    MessageCodec
	surfaces func() surface.Surface

	comms    map[string]*binding
	byModel  map[string]*binding
	control  *Comm
	onCustom CustomHandler
}

// NewSession wires a session over bridge. reg resolves host-opened widget
// classes; it may be nil for sessions that only register local models.
func NewSession(lp *loop.Loop, reg *registry.Registry, bridge Bridge, opts ...Option) *Session {
	s := &Session{
		lp:       lp,
		reg:      reg,
		bridge:   bridge,
		codec:    DefaultCodec,
		surfaces: func() surface.Surface { return surface.NewTextSurface() },
		comms:    make(map[string]*binding),
		byModel:  make(map[string]*binding),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Loop returns the session loop. Transports post inbound work onto it.
func (s *Session) Loop() *loop.Loop { return s.lp }

// SetCustomHandler routes custom payloads that no session view handled.
func (s *Session) SetCustomHandler(fn CustomHandler) { s.onCustom = fn }

// Model returns a session model by id.
func (s *Session) Model(modelID string) (*model.Model, bool) {
	b, ok := s.byModel[modelID]
	if !ok {
		return nil, false
	}
	return b.model, true
}

// CommFor returns the comm carrying a session model.
func (s *Session) CommFor(modelID string) (*Comm, bool) {
	b, ok := s.byModel[modelID]
	if !ok {
		return nil, false
	}
	return b.comm, true
}

// ModelByComm returns the model behind an open comm.
func (s *Session) ModelByComm(commID string) (*model.Model, bool) {
	b, ok := s.comms[commID]
	if !ok {
		return nil, false
	}
	return b.model, true
}

// ModelIDs returns the ids of the session's models in sorted order.
func (s *Session) ModelIDs() []string {
	ids := make([]string, 0, len(s.byModel))
	for id := range s.byModel {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegisterModel announces m to the host on a fresh comm and forwards its
// commits from then on. The open payload carries the full state document.
func (s *Session) RegisterModel(m *model.Model) (*Comm, error) {
	if _, ok := s.byModel[m.ID()]; ok {
		return nil, fmt.Errorf("model %s already registered", m.ID())
	}
	doc, err := FullStateDoc(m)
	if err != nil {
		return nil, err
	}
	c := newComm(s.bridge, TargetName, s.codec)
	if err := c.Open(&OpenPayload{State: json.RawMessage(doc.Bytes())}); err != nil {
		return nil, err
	}
	b := &binding{comm: c, model: m}
	b.fwd = &commView{comm: c, model: m.ID()}
	m.Attach(b.fwd)
	s.comms[c.ID()] = b
	s.byModel[m.ID()] = b
	return c, nil
}

// CreateView instantiates the registered view class for a session model,
// mounts it, and returns it. The view renders onto a surface from the
// session's factory and emits custom payloads through the session.
func (s *Session) CreateView(modelID string) (view.View, error) {
	b, ok := s.byModel[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	if s.reg == nil {
		return nil, registry.ErrNotRegistered
	}
	spec := b.model.Spec()
	e, err := s.reg.LookupView(spec.Module, spec.ModuleVersion, spec.View)
	if err != nil {
		return nil, err
	}
	v, err := e.NewView(s.surfaces(), s)
	if err != nil {
		return nil, err
	}
	if err := v.Mount(b.model); err != nil {
		return nil, err
	}
	b.views = append(b.views, v)
	return v, nil
}

// EmitCustom implements view.Emitter: payload goes out as a custom
// message on the model's comm. Emits are fire-and-forget, so failures
// are reported rather than returned.
func (s *Session) EmitCustom(modelID string, payload map[string]any) {
	b, ok := s.byModel[modelID]
	if !ok {
		errors.Report(&errors.SyncError{
			Op:    "comm.EmitCustom",
			Kind:  errors.KindComm,
			Model: modelID,
			Err:   ErrModelNotFound,
		})
		return
	}
	if err := b.comm.Send(&Message{Method: MethodCustom, Content: payload}); err != nil {
		errors.Report(&errors.SyncError{
			Op:    "comm.EmitCustom",
			Kind:  errors.KindComm,
			Model: modelID,
			Err:   err,
		})
	}
}

// HandleOpen serves an inbound comm open. Widget opens resolve the model
// class through the registry and apply the host's initial attributes
// under the comm's origin; control opens just adopt the channel.
func (s *Session) HandleOpen(commID, target string, data []byte) error {
	if _, ok := s.comms[commID]; ok {
		return fmt.Errorf("comm %s already open", commID)
	}
	switch target {
	case ControlTarget:
		s.control = adoptComm(commID, s.bridge, target, s.codec)
		return nil
	case TargetName:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}

	var open OpenPayload
	if err := json.Unmarshal(data, &open); err != nil {
		return fmt.Errorf("comm open payload: %w", err)
	}
	doc, err := ParseStateDoc(open.State)
	if err != nil {
		return err
	}
	if s.reg == nil {
		return registry.ErrNotRegistered
	}
	m, err := s.reg.NewModel(
		doc.GetString(KeyModelModule),
		doc.GetString(KeyModelVersion),
		doc.GetString(KeyModelName),
	)
	if err != nil {
		return err
	}

	c := adoptComm(commID, s.bridge, target, s.codec)
	b := &binding{comm: c, model: m}
	// Initial attributes apply before the forwarder attaches, so the host
	// does not get its own open echoed back.
	s.applyStateDoc(b, doc)
	b.fwd = &commView{comm: c, model: m.ID()}
	m.Attach(b.fwd)
	s.comms[commID] = b
	s.byModel[m.ID()] = b
	return nil
}

// HandleMessage serves one inbound comm message. Rejected state changes
// are handled conditions: they leave prior state intact, get reported,
// and get answered with an authoritative update; the call still succeeds.
// Protocol faults (unknown comm, undecodable payload, unknown method)
// return errors.
func (s *Session) HandleMessage(commID string, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("comm message payload: %w", err)
	}
	if s.control != nil && commID == s.control.ID() {
		return s.handleControl(&msg)
	}
	b, ok := s.comms[commID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommNotFound, commID)
	}

	switch msg.Method {
	case MethodUpdate:
		doc, err := ParseStateDoc(msg.State)
		if err != nil {
			return err
		}
		s.applyStateDoc(b, doc)
		return nil
	case MethodEchoUpdate:
		// Echoes carry changes this side already committed.
		return nil
	case MethodRequestState:
		s.sendFullState(b)
		return nil
	case MethodCustom:
		s.dispatchCustom(b, msg.Content)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, msg.Method)
	}
}

// HandleClose serves a host-initiated comm close: session views unmount,
// the forwarder detaches, and the model is dropped. Nothing is sent back.
func (s *Session) HandleClose(commID string, data []byte) error {
	if s.control != nil && commID == s.control.ID() {
		s.control.markClosed()
		s.control = nil
		return nil
	}
	b, ok := s.comms[commID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommNotFound, commID)
	}
	s.teardown(b, false)
	return nil
}

// Close shuts the session down: every comm closes toward the host and
// every session view unmounts. The first close error wins; teardown
// continues regardless.
func (s *Session) Close() error {
	var firstErr error
	for _, id := range s.ModelIDs() {
		if err := s.teardown(s.byModel[id], true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.control != nil {
		if err := s.control.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.control = nil
	}
	return firstErr
}

// teardown unwires a binding. When notify is true the close is sent to
// the host.
func (s *Session) teardown(b *binding, notify bool) error {
	for _, v := range b.views {
		v.Unmount()
	}
	b.views = nil
	if b.fwd != nil {
		b.model.Detach(b.fwd)
		b.fwd = nil
	}
	delete(s.comms, b.comm.ID())
	delete(s.byModel, b.model.ID())
	if notify {
		return b.comm.Close()
	}
	b.comm.markClosed()
	return nil
}

// applyStateDoc commits the non-routing attributes of doc under the
// comm's origin. Each rejection is reported and answered with one
// authoritative full-state update.
func (s *Session) applyStateDoc(b *binding, doc StateDoc) {
	rejected := false
	for _, attr := range doc.Keys() {
		if isRoutingKey(attr) {
			continue
		}
		value, _ := doc.Get(attr)
		if err := b.model.Set(attr, value, b.comm.Origin()); err != nil {
			rejected = true
			kind := errors.KindValidation
			if _, ok := err.(*model.SchemaError); ok {
				kind = errors.KindSchema
			}
			errors.Report(&errors.SyncError{
				Op:    "comm.update",
				Kind:  kind,
				Model: b.model.ID(),
				Attr:  attr,
				Err:   err,
			})
		}
	}
	if rejected {
		s.sendFullState(b)
	}
}

// sendFullState answers with the model's full document.
func (s *Session) sendFullState(b *binding) {
	doc, err := FullStateDoc(b.model)
	if err == nil {
		err = b.comm.Send(updateMessage(MethodUpdate, doc))
	}
	if err != nil {
		errors.Report(&errors.SyncError{
			Op:    "comm.sendFullState",
			Kind:  errors.KindComm,
			Model: b.model.ID(),
			Err:   err,
		})
	}
}

// dispatchCustom routes a host payload. Click and key events synthesize
// the matching view events on the model's session views; anything not
// handled there goes to the custom handler.
func (s *Session) dispatchCustom(b *binding, payload map[string]any) {
	handled := false
	switch payload["event"] {
	case "click":
		for _, v := range b.views {
			if v.DispatchEvent(view.NewClickEvent()) {
				handled = true
			}
		}
	case "key":
		if key, ok := payload["key"].(string); ok {
			for _, v := range b.views {
				if v.DispatchEvent(view.NewKeyEvent(key)) {
					handled = true
				}
			}
		}
	}
	if !handled && s.onCustom != nil {
		s.onCustom(b.model.ID(), payload)
	}
}

// handleControl serves the control channel: request_state answers with
// every live model's full document keyed by model id.
func (s *Session) handleControl(msg *Message) error {
	if msg.Method != MethodRequestState {
		return fmt.Errorf("%w: %q on control channel", ErrUnknownMethod, msg.Method)
	}
	doc := NewStateDoc()
	var err error
	for _, id := range s.ModelIDs() {
		full, ferr := FullStateDoc(s.byModel[id].model)
		if ferr != nil {
			return ferr
		}
		if doc, err = doc.SetRaw(id, full.Bytes()); err != nil {
			return err
		}
	}
	return s.control.Send(updateMessage(MethodUpdate, doc))
}

// commView is the hidden model view forwarding commits to the host.
// Commits the host itself initiated go back out as echo_update so every
// front-end observes the same ordering; local commits go out as update.
// Send failures are reported, never propagated into the notification
// round.
type commView struct {
	comm  *Comm
	model string
}

func (v *commView) ViewID() string { return "comm:" + v.comm.ID() }

func (v *commView) OnModelChanged(attr string, value any, origin model.Origin) {
	method := MethodUpdate
	if origin == v.comm.Origin() {
		method = MethodEchoUpdate
	}
	doc, err := partialStateDoc(attr, value)
	if err == nil {
		err = v.comm.Send(updateMessage(method, doc))
	}
	if err != nil {
		errors.Report(&errors.SyncError{
			Op:    "comm.forward",
			Kind:  errors.KindComm,
			Model: v.model,
			Attr:  attr,
			Err:   err,
		})
	}
}
