package testing

import (
	"fmt"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/go-prism/prism/pkg/comm"
	"github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/registry"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
	"github.com/go-prism/prism/pkg/widgets"
)

// Tester provides isolated widget testing without a host front-end. It
// assembles the same loop, registry, session, and bridge a live kernel
// uses, except the bridge records frames instead of transmitting them
// and the test goroutine drives the loop by hand.
type Tester struct {
	lp       *loop.Loop
	reg      *registry.Registry
	bridge   *comm.LoopbackBridge
	session  *comm.Session
	surfaces []*surface.TextSurface

	prevHandler errors.ErrorHandler
	errs        *captureHandler
}

// captureHandler records every reported error for assertions.
type captureHandler struct {
	syncErrs   []*errors.SyncError
	panics     []*errors.PanicError
	renderErrs []*errors.RenderError
}

func (h *captureHandler) HandleError(err *errors.SyncError)  { h.syncErrs = append(h.syncErrs, err) }
func (h *captureHandler) HandlePanic(err *errors.PanicError) { h.panics = append(h.panics, err) }
func (h *captureHandler) HandleRenderError(err *errors.RenderError) {
	h.renderErrs = append(h.renderErrs, err)
}

// NewTester creates a tester serving the built-in widget classes.
// Call Cleanup() when done, or use NewTesterWithT() instead.
func NewTester() *Tester {
	t := &Tester{
		lp:     loop.New(),
		reg:    registry.New(),
		bridge: comm.NewLoopbackBridge(),
		errs:   &captureHandler{},
	}
	if err := widgets.RegisterBuiltins(t.reg); err != nil {
		panic(fmt.Sprintf("prismtest: register builtins: %v", err))
	}
	t.session = comm.NewSession(t.lp, t.reg, t.bridge,
		comm.WithSurfaceFactory(t.newSurface))
	t.prevHandler = errors.DefaultHandler
	errors.SetHandler(t.errs)
	return t
}

// NewTesterWithT creates a tester that auto-cleans up via t.Cleanup().
// This is the recommended constructor for tests.
func NewTesterWithT(t *testing.T) *Tester {
	tester := NewTester()
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup closes the session and restores the global error handler.
// Must be called if not using NewTesterWithT.
func (t *Tester) Cleanup() {
	t.session.Close()
	t.lp.Pump()
	errors.SetHandler(t.prevHandler)
}

// Loop returns the session loop. The test goroutine owns it; drain
// posted work with Pump.
func (t *Tester) Loop() *loop.Loop { return t.lp }

// Session returns the comm session under test.
func (t *Tester) Session() *comm.Session { return t.session }

// Registry returns the widget class registry, preloaded with the
// built-in classes.
func (t *Tester) Registry() *registry.Registry { return t.reg }

// Bridge returns the recording bridge.
func (t *Tester) Bridge() *comm.LoopbackBridge { return t.bridge }

// Pump runs work posted onto the loop until the queue is empty and
// returns how many callbacks ran.
func (t *Tester) Pump() int { return t.lp.Pump() }

// RegisterModel announces m to the recorded host.
func (t *Tester) RegisterModel(m *model.Model) (*comm.Comm, error) {
	return t.session.RegisterModel(m)
}

// CreateView instantiates and mounts the registered view class for a
// session model. The view renders onto a fresh recording surface.
func (t *Tester) CreateView(modelID string) (view.View, error) {
	return t.session.CreateView(modelID)
}

// Click delivers a click event to v and reports whether a handler ran.
func (t *Tester) Click(v view.View) bool {
	return v.DispatchEvent(view.NewClickEvent())
}

// Key delivers a key press to v and reports whether a handler ran.
func (t *Tester) Key(v view.View, key string) bool {
	return v.DispatchEvent(view.NewKeyEvent(key))
}

// Surfaces returns every surface the session handed to a view, in
// creation order.
func (t *Tester) Surfaces() []*surface.TextSurface {
	out := make([]*surface.TextSurface, len(t.surfaces))
	copy(out, t.surfaces)
	return out
}

// LastSurface returns the most recently created surface, or nil when no
// view exists yet.
func (t *Tester) LastSurface() *surface.TextSurface {
	if len(t.surfaces) == 0 {
		return nil
	}
	return t.surfaces[len(t.surfaces)-1]
}

// Frames returns every outbound frame the session transmitted.
func (t *Tester) Frames() []comm.Frame { return t.bridge.Frames() }

// Messages decodes the send frames of one comm, in transmission order.
func (t *Tester) Messages(commID string) ([]*comm.Message, error) {
	var msgs []*comm.Message
	for _, f := range t.bridge.FramesFor(commID) {
		if f.Op != comm.FrameSend {
			continue
		}
		var msg comm.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(msgs), err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

// SyncErrors returns the sync errors reported since the tester was
// created.
func (t *Tester) SyncErrors() []*errors.SyncError { return t.errs.syncErrs }

// Panics returns the panics reported since the tester was created.
func (t *Tester) Panics() []*errors.PanicError { return t.errs.panics }

// RenderErrors returns the render errors reported since the tester was
// created.
func (t *Tester) RenderErrors() []*errors.RenderError { return t.errs.renderErrs }

func (t *Tester) newSurface() surface.Surface {
	s := surface.NewTextSurface()
	t.surfaces = append(t.surfaces, s)
	return s
}
