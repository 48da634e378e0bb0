package comm

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/registry"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

var testSpec = model.Spec{
	Module:        "prism-test",
	ModuleVersion: "1.0.0",
	Model:         "ToggleModel",
	View:          "ToggleView",
}

func newTestModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New(testSpec, model.Schema{
		"selected_link": {Kind: model.KindBool},
		"description":   {Kind: model.KindString},
	})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	return m
}

// echoView records events routed to it and renders the description attr.
type echoView struct {
	view.ViewBase
	clicks int
	keys   []string
}

func newEchoView(surf surface.Surface, em view.Emitter) (view.View, error) {
	v := &echoView{ViewBase: view.NewBase(surf, em)}
	v.SetSelf(v)
	v.Bind(view.EventClick, func(*view.Event) { v.clicks++ })
	v.Bind(view.EventKeyPress, func(ev *view.Event) { v.keys = append(v.keys, ev.Key) })
	return v, nil
}

func (v *echoView) Render() error {
	desc, err := v.Model().String("description")
	if err != nil {
		return err
	}
	return v.Surface().SetContent(surface.Text(desc))
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	err := r.Register(registry.Entry{
		Spec: testSpec,
		NewModel: func() (*model.Model, error) {
			return model.New(testSpec, model.Schema{
				"selected_link": {Kind: model.KindBool},
				"description":   {Kind: model.KindString},
			})
		},
		NewView: newEchoView,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func newTestSession(t *testing.T) (*Session, *LoopbackBridge) {
	t.Helper()
	bridge := NewLoopbackBridge()
	return NewSession(loop.New(), newTestRegistry(t), bridge), bridge
}

func decodeMessage(t *testing.T, data []byte) *Message {
	t.Helper()
	var msg Message
	if err := (JSONCodec{}).DecodeInto(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return &msg
}

func stateOf(t *testing.T, msg *Message) StateDoc {
	t.Helper()
	doc, err := ParseStateDoc(msg.State)
	if err != nil {
		t.Fatalf("parse state: %v", err)
	}
	return doc
}

type captureHandler struct {
	syncErrs []*errors.SyncError
}

func (h *captureHandler) HandleError(err *errors.SyncError) { h.syncErrs = append(h.syncErrs, err) }
func (h *captureHandler) HandlePanic(*errors.PanicError)    {}
func (h *captureHandler) HandleRenderError(*errors.RenderError) {}

func TestRegisterModelOpensComm(t *testing.T) {
	s, bridge := newTestSession(t)
	m := newTestModel(t)

	c, err := s.RegisterModel(m)
	if err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}

	frames := bridge.Frames()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 open", len(frames))
	}
	f := frames[0]
	if f.Op != FrameOpen || f.CommID != c.ID() || f.Target != TargetName {
		t.Errorf("open frame = %+v", f)
	}

	var open OpenPayload
	if err := json.Unmarshal(f.Data, &open); err != nil {
		t.Fatalf("decode open payload: %v", err)
	}
	doc, err := ParseStateDoc(open.State)
	if err != nil {
		t.Fatalf("parse open state: %v", err)
	}
	if got := doc.GetString(KeyModelName); got != "ToggleModel" {
		t.Errorf("%s = %q, want ToggleModel", KeyModelName, got)
	}
	if got, _ := doc.Get("selected_link"); got != false {
		t.Errorf("initial selected_link = %v, want false", got)
	}

	if _, err := s.RegisterModel(m); err == nil {
		t.Error("registering the same model twice should fail")
	}
}

func TestLocalCommitForwardsUpdate(t *testing.T) {
	s, bridge := newTestSession(t)
	m := newTestModel(t)
	if _, err := s.RegisterModel(m); err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}

	if err := m.Set("description", "hello", model.OriginNone); err != nil {
		t.Fatalf("Set: %v", err)
	}

	frames := bridge.Frames()
	last := frames[len(frames)-1]
	if last.Op != FrameSend {
		t.Fatalf("last frame = %+v, want send", last)
	}
	msg := decodeMessage(t, last.Data)
	if msg.Method != MethodUpdate {
		t.Errorf("method = %q, want update", msg.Method)
	}
	if got := stateOf(t, msg).GetString("description"); got != "hello" {
		t.Errorf("state.description = %q, want hello", got)
	}
}

func TestHostUpdateAppliesAndEchoes(t *testing.T) {
	s, bridge := newTestSession(t)
	m := newTestModel(t)
	if _, err := s.RegisterModel(m); err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}
	c, _ := s.CommFor(m.ID())

	payload := []byte(`{"method":"update","state":{"selected_link":true}}`)
	if err := s.HandleMessage(c.ID(), payload); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if got, _ := m.Bool("selected_link"); !got {
		t.Error("host update did not commit")
	}

	frames := bridge.Frames()
	last := frames[len(frames)-1]
	msg := decodeMessage(t, last.Data)
	if msg.Method != MethodEchoUpdate {
		t.Errorf("method = %q, want echo_update for a host-initiated change", msg.Method)
	}
	if got, _ := stateOf(t, msg).Get("selected_link"); got != true {
		t.Errorf("echoed selected_link = %v, want true", got)
	}
}

func TestHostUpdateRejectionReconciles(t *testing.T) {
	handler := &captureHandler{}
	errors.SetHandler(handler)
	defer errors.SetHandler(nil)

	s, bridge := newTestSession(t)
	m := newTestModel(t)
	if _, err := s.RegisterModel(m); err != nil {
		t.Fatalf("RegisterModel: %v", err)
	}
	m.Set("description", "keep", model.OriginNone)
	c, _ := s.CommFor(m.ID())
	before := len(bridge.Frames())

	payload := []byte(`{"method":"update","state":{"description":12,"junk":1}}`)
	if err := s.HandleMessage(c.ID(), payload); err != nil {
		t.Fatalf("HandleMessage: %v, rejections are handled conditions", err)
	}

	if got, _ := m.String("description"); got != "keep" {
		t.Errorf("description = %q, rejection must leave prior state", got)
	}
	if len(handler.syncErrs) != 2 {
		t.Fatalf("reported %d errors, want 2 (validation + schema)", len(handler.syncErrs))
	}
	kinds := map[errors.ErrorKind]bool{}
	for _, e := range handler.syncErrs {
		kinds[e.Kind] = true
	}
	if !kinds[errors.KindValidation] || !kinds[errors.KindSchema] {
		t.Errorf("reported kinds = %v, want validation and schema", kinds)
	}

	frames := bridge.Frames()[before:]
	if len(frames) != 1 {
		t.Fatalf("got %d corrective frames, want 1", len(frames))
	}
	msg := decodeMessage(t, frames[0].Data)
	if msg.Method != MethodUpdate {
		t.Errorf("corrective method = %q, want update", msg.Method)
	}
	if got := stateOf(t, msg).GetString("description"); got != "keep" {
		t.Errorf("corrective description = %q, want keep", got)
	}
}

func TestHandleOpenBuildsModelFromRegistry(t *testing.T) {
	s, bridge := newTestSession(t)

	openState := `{"_model_module":"prism-test","_model_module_version":"1.0.0",` +
		`"_model_name":"ToggleModel","_view_module":"prism-test",` +
		`"_view_module_version":"1.0.0","_view_name":"ToggleView","selected_link":true}`
	data, err := (JSONCodec{}).Encode(&OpenPayload{State: json.RawMessage(openState)})
	if err != nil {
		t.Fatalf("encode open: %v", err)
	}

	if err := s.HandleOpen("host-comm-1", TargetName, data); err != nil {
		t.Fatalf("HandleOpen: %v", err)
	}
	if len(bridge.Frames()) != 0 {
		t.Errorf("host-opened comm echoed its own open: %d frames", len(bridge.Frames()))
	}

	ids := s.ModelIDs()
	if len(ids) != 1 {
		t.Fatalf("session holds %d models, want 1", len(ids))
	}
	m, _ := s.Model(ids[0])
	if got, _ := m.Bool("selected_link"); !got {
		t.Error("initial attribute from the open payload was not applied")
	}

	// Local commits now flow out on the host's comm id.
	m.Set("description", "after", model.OriginNone)
	frames := bridge.FramesFor("host-comm-1")
	if len(frames) != 1 || frames[0].Op != FrameSend {
		t.Fatalf("frames on host comm = %+v", frames)
	}
	if decodeMessage(t, frames[0].Data).Method != MethodUpdate {
		t.Error("local commit should forward as update")
	}
}

func TestHandleOpenUnknownTarget(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.HandleOpen("c", "jupyter.unknown", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown comm target") {
		t.Errorf("err = %v, want unknown comm target", err)
	}
}

func TestHandleOpenUnregisteredClass(t *testing.T) {
	s, _ := newTestSession(t)
	openState := `{"_model_module":"nowhere","_model_module_version":"1.0.0","_model_name":"Nope"}`
	data, _ := (JSONCodec{}).Encode(&OpenPayload{State: json.RawMessage(openState)})
	if err := s.HandleOpen("c", TargetName, data); err == nil {
		t.Error("open for an unregistered class should fail")
	}
}

func TestRequestStateSendsFullDocument(t *testing.T) {
	s, bridge := newTestSession(t)
	m := newTestModel(t)
	s.RegisterModel(m)
	m.Set("description", "full", model.OriginNone)
	c, _ := s.CommFor(m.ID())
	before := len(bridge.Frames())

	if err := s.HandleMessage(c.ID(), []byte(`{"method":"request_state"}`)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	frames := bridge.Frames()[before:]
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	doc := stateOf(t, decodeMessage(t, frames[0].Data))
	if got := doc.GetString(KeyModelModule); got != "prism-test" {
		t.Errorf("%s = %q", KeyModelModule, got)
	}
	if got := doc.GetString("description"); got != "full" {
		t.Errorf("description = %q, want full", got)
	}
}

func TestCustomClickDispatchesToSessionViews(t *testing.T) {
	s, _ := newTestSession(t)
	m := newTestModel(t)
	s.RegisterModel(m)
	v, err := s.CreateView(m.ID())
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	ev := v.(*echoView)
	c, _ := s.CommFor(m.ID())

	var fallback []map[string]any
	s.SetCustomHandler(func(_ string, payload map[string]any) {
		fallback = append(fallback, payload)
	})

	if err := s.HandleMessage(c.ID(), []byte(`{"method":"custom","content":{"event":"click"}}`)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if ev.clicks != 1 {
		t.Errorf("clicks = %d, want 1", ev.clicks)
	}
	if len(fallback) != 0 {
		t.Errorf("handled event leaked to the custom handler: %v", fallback)
	}

	if err := s.HandleMessage(c.ID(), []byte(`{"method":"custom","content":{"event":"key","key":"a"}}`)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(ev.keys) != 1 || ev.keys[0] != "a" {
		t.Errorf("keys = %v, want [a]", ev.keys)
	}

	if err := s.HandleMessage(c.ID(), []byte(`{"method":"custom","content":{"event":"mystery"}}`)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(fallback) != 1 || fallback[0]["event"] != "mystery" {
		t.Errorf("fallback = %v, want the mystery payload", fallback)
	}
}

func TestEmitCustomSendsOnModelComm(t *testing.T) {
	s, bridge := newTestSession(t)
	m := newTestModel(t)
	s.RegisterModel(m)
	c, _ := s.CommFor(m.ID())
	before := len(bridge.Frames())

	s.EmitCustom(m.ID(), map[string]any{"event": "click"})

	frames := bridge.FramesFor(c.ID())[before:]
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	msg := decodeMessage(t, frames[0].Data)
	if msg.Method != MethodCustom || msg.Content["event"] != "click" {
		t.Errorf("custom frame = %+v", msg)
	}
}

func TestHandleCloseDropsBinding(t *testing.T) {
	s, bridge := newTestSession(t)
	m := newTestModel(t)
	s.RegisterModel(m)
	v, _ := s.CreateView(m.ID())
	c, _ := s.CommFor(m.ID())
	before := len(bridge.Frames())

	if err := s.HandleClose(c.ID(), nil); err != nil {
		t.Fatalf("HandleClose: %v", err)
	}

	if v.(*echoView).Mounted() {
		t.Error("session view still mounted after host close")
	}
	if _, ok := s.Model(m.ID()); ok {
		t.Error("model still registered after host close")
	}
	if got := len(bridge.Frames()) - before; got != 0 {
		t.Errorf("host close sent %d frames back, want 0", got)
	}
	if m.NumViews() != 0 {
		t.Errorf("model still has %d attached views", m.NumViews())
	}
}

func TestSessionCloseClosesEveryComm(t *testing.T) {
	s, bridge := newTestSession(t)
	a := newTestModel(t)
	b := newTestModel(t)
	s.RegisterModel(a)
	s.RegisterModel(b)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	closes := 0
	for _, f := range bridge.Frames() {
		if f.Op == FrameClose {
			closes++
		}
	}
	if closes != 2 {
		t.Errorf("sent %d close frames, want 2", closes)
	}
	if len(s.ModelIDs()) != 0 {
		t.Errorf("session still holds models: %v", s.ModelIDs())
	}
}

func TestControlChannelRequestState(t *testing.T) {
	s, bridge := newTestSession(t)
	m := newTestModel(t)
	s.RegisterModel(m)

	if err := s.HandleOpen("ctrl-1", ControlTarget, nil); err != nil {
		t.Fatalf("HandleOpen control: %v", err)
	}
	if err := s.HandleMessage("ctrl-1", []byte(`{"method":"request_state"}`)); err != nil {
		t.Fatalf("HandleMessage control: %v", err)
	}

	frames := bridge.FramesFor("ctrl-1")
	if len(frames) != 1 {
		t.Fatalf("got %d control frames, want 1", len(frames))
	}
	doc := stateOf(t, decodeMessage(t, frames[0].Data))
	keys := doc.Keys()
	if len(keys) != 1 || keys[0] != m.ID() {
		t.Fatalf("control state keys = %v, want [%s]", keys, m.ID())
	}
	if got := doc.GetString(m.ID() + "." + KeyModelName); got != "ToggleModel" {
		t.Errorf("nested model name = %q, want ToggleModel", got)
	}
}

func TestHandleMessageProtocolFaults(t *testing.T) {
	s, _ := newTestSession(t)
	m := newTestModel(t)
	s.RegisterModel(m)
	c, _ := s.CommFor(m.ID())

	if err := s.HandleMessage("no-such-comm", []byte(`{"method":"update"}`)); err == nil {
		t.Error("unknown comm should fail")
	}
	if err := s.HandleMessage(c.ID(), []byte(`{"method":"sideload"}`)); err == nil {
		t.Error("unknown method should fail")
	}
	if err := s.HandleMessage(c.ID(), []byte(`{"method":`)); err == nil {
		t.Error("malformed payload should fail")
	}
	if err := s.HandleMessage(c.ID(), []byte(`{"method":"echo_update","state":{}}`)); err != nil {
		t.Errorf("inbound echo should be ignored, got %v", err)
	}
}
