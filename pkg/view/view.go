// Package view implements the observer half of a Prism widget: a
// projection of one model onto a display surface, plus typed input
// event bindings.
//
// A view attaches to exactly one model at a time. Mounting renders the
// current state immediately; afterwards the view repaints in response to
// model notifications. A view recognizes its own mutations by origin tag
// and skips the repaint when its last render already reflects the
// committed value, which is what makes optimistic rendering cheap.
//
// Views are confined to the session loop. Blocking projections go
// through RenderAsync, which runs the projection off-loop and discards
// the result if the view was unmounted or re-rendered in the meantime.
package view

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/surface"
)

// EventKind identifies a host input event type.
type EventKind int

const (
	// EventClick is a pointer click on the view.
	EventClick EventKind = iota
	// EventKeyPress is a key press while the view has focus.
	EventKeyPress
)

func (k EventKind) String() string {
	switch k {
	case EventClick:
		return "click"
	case EventKeyPress:
		return "keypress"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one host input event delivered to a view.
type Event struct {
	// Kind is the event type.
	Kind EventKind
	// Key carries the key value for EventKeyPress events.
	Key string

	defaultPrevented bool
}

// NewClickEvent returns a click event.
func NewClickEvent() *Event {
	return &Event{Kind: EventClick}
}

// NewKeyEvent returns a key press event for key.
func NewKeyEvent(key string) *Event {
	return &Event{Kind: EventKeyPress, Key: key}
}

// PreventDefault marks the event as consumed so the host does not apply
// its default behavior (navigation, focus change).
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Binding pairs an event kind with its handler. Views declare their
// bindings at construction instead of switching on event name strings.
type Binding struct {
	Kind    EventKind
	Handler func(*Event)
}

/// View is a concrete view: the model-side notification contract plus the
// Render projection and the lifecycle ViewBase provides.
type View interface {
	model.View
	// Render projects the model's current state onto the surface. It must
	// be idempotent for unchanged state and must not block.
	Render() error
	// Mount attaches the view to m and renders the current state.
	Mount(m *model.Model) error
	// Unmount detaches from the model and clears the surface.
	Unmount()
	// DispatchEvent routes ev to the view's event bindings and reports
	// whether any handler ran.
	DispatchEvent(ev *Event) bool
}

// Emitter forwards fire-and-forget payloads from views to the host. The
// comm session implements it; tests substitute a recorder.
type Emitter interface {
	EmitCustom(modelID string, payload map[string]any)
}

// ViewBase carries the lifecycle, reconciliation, and event dispatch
// shared by all views. Concrete views embed it, call SetSelf with
// themselves, and implement Render.
type ViewBase struct {
	self    View
	id      string
	model   *model.Model
	surface surface.Surface
	emitter Emitter

	mounted bool
	// epoch increments on every mount and unmount; in-flight async work
	// compares epochs to detect staleness.
	epoch     uint64
	renderSeq uint64

	// snapshot is the model state as of the last successful render; the
	// origin-skip check compares against it.
	snapshot map[string]any
	lastRev  uint64

	bindings []Binding
}

// NewBase returns a base projecting onto surf and emitting through em.
// em may be nil for views that never emit.
func NewBase(surf surface.Surface, em Emitter) ViewBase {
	return ViewBase{
		id:      uuid.NewString(),
		surface: surf,
		emitter: em,
	}
}

// SetSelf registers the concrete view so the base can dispatch Render and
// attach the right value to models. Constructors call it once.
func (b *ViewBase) SetSelf(self View) {
	b.self = self
}

// ViewID returns the view's unique identifier.
func (b *ViewBase) ViewID() string { return b.id }

// Origin is the tag this view puts on its own mutations.
func (b *ViewBase) Origin() model.Origin { return model.Origin(b.id) }

// Model returns the attached model, or nil when unmounted.
func (b *ViewBase) Model() *model.Model { return b.model }

// Surface returns the display target.
func (b *ViewBase) Surface() surface.Surface { return b.surface }

// Mounted reports whether the view is attached to a model.
func (b *ViewBase) Mounted() bool { return b.mounted }

// Epoch returns the current mount epoch.
func (b *ViewBase) Epoch() uint64 { return b.epoch }

// StillMounted reports whether the view is mounted and has not been
// unmounted since epoch was observed.
func (b *ViewBase) StillMounted(epoch uint64) bool {
	return b.mounted && b.epoch == epoch
}

// RenderedRev returns the model revision of the last successful render.
func (b *ViewBase) RenderedRev() uint64 { return b.lastRev }

// Bind registers a handler for an event kind. Multiple bindings for the
// same kind all fire, in registration order.
func (b *ViewBase) Bind(kind EventKind, handler func(*Event)) {
	if handler == nil {
		return
	}
	b.bindings = append(b.bindings, Binding{Kind: kind, Handler: handler})
}

// Bindings returns the registered bindings.
func (b *ViewBase) Bindings() []Binding { return b.bindings }

// DispatchEvent routes ev to the bindings matching its kind and reports
// whether any handler ran. Events on unmounted views are dropped.
func (b *ViewBase) DispatchEvent(ev *Event) bool {
	if ev == nil || !b.mounted {
		return false
	}
	handled := false
	for _, binding := range b.bindings {
		if binding.Kind == ev.Kind {
			binding.Handler(ev)
			handled = true
		}
	}
	return handled
}

// Mount attaches the view to m and renders the current state. Mounting
// an already mounted view is an error; unmount first.
func (b *ViewBase) Mount(m *model.Model) error {
	if b.self == nil {
		return fmt.Errorf("view %s: SetSelf not called before Mount", b.id)
	}
	if b.mounted {
		return fmt.Errorf("view %s: already mounted", b.id)
	}
	if m == nil {
		return fmt.Errorf("view %s: Mount with nil model", b.id)
	}
	b.model = m
	b.mounted = true
	b.epoch++
	m.Attach(b.self)
	b.RequestRender()
	return nil
}

// Unmount detaches from the model and clears the surface. It is
// idempotent; a view may be mounted again afterwards.
func (b *ViewBase) Unmount() {
	if !b.mounted {
		return
	}
	b.model.Detach(b.self)
	b.mounted = false
	b.epoch++
	b.model = nil
	b.snapshot = nil
	b.lastRev = 0
	if b.surface != nil {
		if err := b.surface.Clear(); err != nil {
			errors.ReportRenderError(&errors.RenderError{
				View:      b.id,
				Err:       err,
				Timestamp: time.Now(),
			})
		}
	}
}

// OnModelChanged is the default reconciliation policy: repaint on every
// notification except when the change carries this view's own origin and
// the last render already reflects the committed value.
func (b *ViewBase) OnModelChanged(attr string, value any, origin model.Origin) {
	if !b.mounted {
		return
	}
	if origin == b.Origin() {
		if prev, ok := b.snapshot[attr]; ok && reflect.DeepEqual(prev, value) {
			return
		}
	}
	b.RequestRender()
}

// RequestRender runs the concrete Render synchronously, reporting errors
// and containing panics. On success the state snapshot advances; on
// failure the previous surface content and snapshot stay in place.
// Starting a render supersedes any in-flight RenderAsync.
func (b *ViewBase) RequestRender() {
	if !b.mounted || b.model == nil {
		return
	}
	b.renderSeq++
	var rerr *errors.RenderError
	func() {
		defer func() {
			if r := recover(); r != nil {
				rerr = &errors.RenderError{
					View:       b.id,
					Model:      b.model.ID(),
					Recovered:  r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
			}
		}()
		if err := b.self.Render(); err != nil {
			rerr = &errors.RenderError{
				View:      b.id,
				Model:     b.model.ID(),
				Err:       err,
				Timestamp: time.Now(),
			}
		}
	}()
	if rerr != nil {
		errors.ReportRenderError(rerr)
		return
	}
	b.markRendered()
}

// EmitCustom sends a fire-and-forget payload for the attached model
// through the configured emitter. Dropped when unmounted or no emitter
// is configured.
func (b *ViewBase) EmitCustom(payload map[string]any) {
	if !b.mounted || b.model == nil || b.emitter == nil {
		return
	}
	b.emitter.EmitCustom(b.model.ID(), payload)
}

// RenderAsync runs project on its own goroutine and applies the produced
// display data on the loop. The result is discarded if the view was
// unmounted or a newer RenderAsync was started in the meantime. The
// returned channel closes once the result has been applied or discarded.
//
// RenderAsync must be called from the loop, like every other view method.
func (b *ViewBase) RenderAsync(lp *loop.Loop, project func() (surface.DisplayData, error)) <-chan struct{} {
	done := make(chan struct{})
	if !b.mounted || project == nil || lp == nil {
		close(done)
		return done
	}
	epoch := b.epoch
	b.renderSeq++
	seq := b.renderSeq
	modelID := b.model.ID()

	go func() {
		data, err := project()
		lp.Post(func() {
			defer close(done)
			if !b.StillMounted(epoch) || b.renderSeq != seq {
				return
			}
			if err != nil {
				errors.ReportRenderError(&errors.RenderError{
					View:      b.id,
					Model:     modelID,
					Err:       err,
					Timestamp: time.Now(),
				})
				return
			}
			if serr := b.surface.SetContent(data); serr != nil {
				errors.ReportRenderError(&errors.RenderError{
					View:      b.id,
					Model:     modelID,
					Err:       serr,
					Timestamp: time.Now(),
				})
				return
			}
			b.markRendered()
		})
	}()
	return done
}

func (b *ViewBase) markRendered() {
	b.snapshot = b.model.Values()
	b.lastRev = b.model.Rev()
}
