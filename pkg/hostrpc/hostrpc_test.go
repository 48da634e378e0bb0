package hostrpc

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/go-prism/prism/pkg/comm"
	"github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/registry"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

var toggleSpec = model.Spec{
	Module:        "prism-test",
	ModuleVersion: "1.0.0",
	Model:         "ToggleModel",
	View:          "ToggleView",
}

const toggleOpenState = `{"_model_module":"prism-test","_model_module_version":"1.0.0",` +
	`"_model_name":"ToggleModel","_view_module":"prism-test",` +
	`"_view_module_version":"1.0.0","_view_name":"ToggleView","selected_link":false}`

func newToggleModel() (*model.Model, error) {
	return model.New(toggleSpec, model.Schema{
		"selected_link": {Kind: model.KindBool},
		"description":   {Kind: model.KindString},
	})
}

type nullView struct {
	view.ViewBase
}

func (v *nullView) Render() error { return nil }

func newToggleView(surf surface.Surface, em view.Emitter) (view.View, error) {
	v := &nullView{ViewBase: view.NewBase(surf, em)}
	v.SetSelf(v)
	return v, nil
}

type note struct {
	method string
	params json.RawMessage
}

// notifySink collects kernel notifications for the test to await.
type notifySink struct {
	mu    sync.Mutex
	notes []note
	ch    chan struct{}
}

func newNotifySink() *notifySink {
	return &notifySink{ch: make(chan struct{}, 64)}
}

func (s *notifySink) handle(method string, params json.RawMessage) {
	s.mu.Lock()
	s.notes = append(s.notes, note{method, params})
	s.mu.Unlock()
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// await consumes and returns the first notification with the given
// method, waiting for it to arrive if needed.
func (s *notifySink) await(t *testing.T, method string) json.RawMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		for i, n := range s.notes {
			if n.method == method {
				s.notes = append(s.notes[:i], s.notes[i+1:]...)
				s.mu.Unlock()
				return n.params
			}
		}
		s.mu.Unlock()
		select {
		case <-s.ch:
		case <-deadline:
			t.Fatalf("no %s notification arrived", method)
		}
	}
}

type testKernel struct {
	client  *Client
	session *comm.Session
	lp      *loop.Loop
	sink    *notifySink
}

func startKernel(t *testing.T) *testKernel {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := registry.New()
	err := reg.Register(registry.Entry{
		Spec:     toggleSpec,
		NewModel: newToggleModel,
		NewView:  newToggleView,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	lp := loop.New()
	go lp.Run(ctx)

	bridge := NewBridge()
	session := comm.NewSession(lp, reg, bridge)
	srv := NewServer(session, bridge)

	serverEnd, clientEnd := net.Pipe()
	go srv.Serve(ctx, serverEnd)

	sink := newNotifySink()
	client := Dial(ctx, clientEnd, sink.handle)
	t.Cleanup(func() { client.Close() })

	return &testKernel{client: client, session: session, lp: lp, sink: sink}
}

func TestPing(t *testing.T) {
	k := startKernel(t)
	got, err := k.client.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if got != comm.ProtocolVersion {
		t.Errorf("Ping = %q, want %q", got, comm.ProtocolVersion)
	}
}

func TestOpenUpdateStateRoundTrip(t *testing.T) {
	k := startKernel(t)
	ctx := context.Background()

	if err := k.client.Open(ctx, "c-1", []byte(toggleOpenState)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := k.client.Update(ctx, "c-1", []byte(`{"selected_link":true}`)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A host-initiated change comes back as echo_update.
	params := k.sink.await(t, MethodEchoUpdate)
	if got := gjson.GetBytes(params, "comm_id").String(); got != "c-1" {
		t.Errorf("echo comm_id = %q, want c-1", got)
	}
	if !gjson.GetBytes(params, "state.selected_link").Bool() {
		t.Errorf("echoed state = %s, want selected_link true", params)
	}

	state, err := k.client.State(ctx, "c-1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !gjson.GetBytes(state, "selected_link").Bool() {
		t.Errorf("state = %s, want selected_link true", state)
	}
	if got := gjson.GetBytes(state, "_model_name").String(); got != "ToggleModel" {
		t.Errorf("_model_name = %q", got)
	}
}

func TestKernelModelAnnouncesOnOpenAndForwards(t *testing.T) {
	k := startKernel(t)

	// The ping round trip guarantees the connection is bound before the
	// kernel registers its model.
	if _, err := k.client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	var m *model.Model
	var regErr error
	k.lp.PostWait(func() {
		m, regErr = newToggleModel()
		if regErr == nil {
			_, regErr = k.session.RegisterModel(m)
		}
	})
	if regErr != nil {
		t.Fatalf("RegisterModel: %v", regErr)
	}

	params := k.sink.await(t, MethodOpen)
	if got := gjson.GetBytes(params, "target_name").String(); got != comm.TargetName {
		t.Errorf("target = %q, want %q", got, comm.TargetName)
	}
	if got := gjson.GetBytes(params, "data.state._model_name").String(); got != "ToggleModel" {
		t.Errorf("announced model = %q, want ToggleModel", got)
	}

	k.lp.PostWait(func() {
		m.Set("description", "pushed", model.OriginNone)
	})
	params = k.sink.await(t, MethodUpdate)
	if got := gjson.GetBytes(params, "state.description").String(); got != "pushed" {
		t.Errorf("forwarded state = %s, want description pushed", params)
	}
}

func TestCustomRoundTrip(t *testing.T) {
	k := startKernel(t)
	ctx := context.Background()

	if err := k.client.Open(ctx, "c-2", []byte(toggleOpenState)); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var got []map[string]any
	k.lp.PostWait(func() {
		k.session.SetCustomHandler(func(_ string, payload map[string]any) {
			got = append(got, payload)
		})
	})

	if err := k.client.Custom(ctx, "c-2", map[string]any{"event": "poke"}); err != nil {
		t.Fatalf("Custom: %v", err)
	}
	k.lp.PostWait(func() {})
	if len(got) != 1 || got[0]["event"] != "poke" {
		t.Errorf("custom payloads = %v, want one poke", got)
	}

	// Kernel-side emit arrives as a widget/custom notification.
	k.lp.PostWait(func() {
		m, ok := k.session.ModelByComm("c-2")
		if !ok {
			t.Error("model for c-2 vanished")
			return
		}
		k.session.EmitCustom(m.ID(), map[string]any{"event": "click"})
	})
	params := k.sink.await(t, MethodCustom)
	if gjson.GetBytes(params, "content.event").String() != "click" {
		t.Errorf("emitted custom = %s, want click", params)
	}
}

func TestCloseRemovesWidget(t *testing.T) {
	k := startKernel(t)
	ctx := context.Background()

	if err := k.client.Open(ctx, "c-3", []byte(toggleOpenState)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	widgets, err := k.client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(widgets) != 1 || widgets[0].CommID != "c-3" || widgets[0].ModelName != "ToggleModel" {
		t.Fatalf("List = %+v, want one c-3 toggle", widgets)
	}

	if err := k.client.CloseComm(ctx, "c-3"); err != nil {
		t.Fatalf("CloseComm: %v", err)
	}
	widgets, err = k.client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(widgets) != 0 {
		t.Errorf("List after close = %+v, want none", widgets)
	}
}

func TestUpdateRejectionReconcilesOverRPC(t *testing.T) {
	handler := &captureHandler{}
	errors.SetHandler(handler)
	defer errors.SetHandler(nil)

	k := startKernel(t)
	ctx := context.Background()

	if err := k.client.Open(ctx, "c-4", []byte(toggleOpenState)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Type violation: the call still succeeds, the kernel reconciles.
	if err := k.client.Update(ctx, "c-4", []byte(`{"selected_link":"yes"}`)); err != nil {
		t.Fatalf("Update with rejected value: %v", err)
	}

	params := k.sink.await(t, MethodUpdate)
	res := gjson.GetBytes(params, "state.selected_link")
	if !res.Exists() || res.Bool() {
		t.Errorf("corrective state = %s, want authoritative selected_link false", params)
	}
}

func TestProtocolFaults(t *testing.T) {
	k := startKernel(t)
	ctx := context.Background()

	err := k.client.conn.Call(ctx, "widget/bogus", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "method not found") {
		t.Errorf("unknown method err = %v", err)
	}

	err = k.client.conn.Call(ctx, MethodOpen, &openParams{}, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid params") {
		t.Errorf("missing comm_id err = %v", err)
	}

	if err := k.client.Update(ctx, "never-opened", []byte(`{}`)); err == nil {
		t.Error("update on unknown comm should fail")
	}
}

type captureHandler struct {
	mu       sync.Mutex
	syncErrs []*errors.SyncError
}

func (h *captureHandler) HandleError(err *errors.SyncError) {
	h.mu.Lock()
	h.syncErrs = append(h.syncErrs, err)
	h.mu.Unlock()
}
func (h *captureHandler) HandlePanic(*errors.PanicError)        {}
func (h *captureHandler) HandleRenderError(*errors.RenderError) {}
