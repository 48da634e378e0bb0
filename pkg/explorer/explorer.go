// Package explorer implements the interactive object explorer: one
// explored value, a property table whose rows propagate clicks back into
// the explored value, a member search with help text, and member
// invocation through an external evaluator.
//
// The explorer owns two models. The main model carries the explored
// value plus the selection, argument, output, and help attributes; the
// property model carries the row selection and is linked one-way into
// the main model's value, so a row click ripples into a full recompute.
// What an object's properties and members are is the backend's business,
// reached through the Provider and Evaluator interfaces.
//
// Like everything built on package model, an explorer is confined to
// its session loop.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	prismerrors "github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/store"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// Explorer model attributes.
const (
	// AttrValue is the currently explored object.
	AttrValue = "value"
	// AttrSelectedMethod is the name of the member picked in the search
	// box, or "".
	AttrSelectedMethod = "selected_method"
	// AttrMethodArgs is the raw argument text for the next invocation.
	AttrMethodArgs = "method_args"
	// AttrOutput is the text of the last invocation result or failure.
	AttrOutput = "output"
	// AttrHelp is the help text for the explored object or the selected
	// member.
	AttrHelp = "help"
)

const (
	// MaxHistory bounds the explored-value history.
	MaxHistory = 50
	// DefaultTimeout bounds one member invocation.
	DefaultTimeout = 15 * time.Second
)

// ErrNoHistory is returned by PopValue when the history is empty.
var ErrNoHistory = errors.New("explorer: no more history")

// Evaluator invokes a member of an object with raw argument text. It is
// the bridge to the computer-algebra backend and may block; the explorer
// always calls it off the loop, under a deadline.
type Evaluator interface {
	Invoke(ctx context.Context, obj Object, member string, args string) (Object, error)
}

// Spec identifies the explorer widget to the host.
func Spec() model.Spec {
	return model.Spec{
		Module:        "prism-explorer",
		ModuleVersion: "1.0.0",
		Model:         "ExplorerModel",
		View:          "ExplorerView",
	}
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithEvaluator supplies the invocation backend. Without one, Invoke
// fails into the output attribute.
func WithEvaluator(ev Evaluator) Option {
	return func(e *Explorer) { e.eval = ev }
}

// WithTimeout overrides the invocation deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Explorer) { e.timeout = d }
}

// WithStore records every explored value as a visit in st.
func WithStore(st *store.Store) Option {
	return func(e *Explorer) { e.st = st }
}

// WithSurfaceFactory overrides the surface given to the property row
// views. The default is an in-memory text surface per row.
func WithSurfaceFactory(fn func() surface.Surface) Option {
	return func(e *Explorer) { e.surfaces = fn }
}

// WithEmitter forwards the row views' custom payloads through em.
func WithEmitter(em view.Emitter) Option {
	return func(e *Explorer) { e.emitter = em }
}

// Explorer drives one explored value and its derived presentation.
type Explorer struct {
	lp       *loop.Loop
	provider Provider
	eval     Evaluator
	timeout  time.Duration
	st       *store.Store
	surfaces func() surface.Surface
	emitter  view.Emitter

	main    *model.Model
	props   *model.Model
	link    *model.Link
	tracker *trackerView
	rows    []*ExplorableValue

	// origin tags the explorer's own derived commits, so the tracker can
	// tell a user-driven value change from its own recompute writes. It
	// is what keeps a recompute from re-triggering itself.
	origin model.Origin

	history []Object
	last    Object
	members map[string]Member

	invokeSeq uint64
	closed    bool
}

// New builds an explorer for obj. The provider supplies everything shown;
// construction fails only if the models cannot be assembled.
func New(lp *loop.Loop, provider Provider, obj Object, opts ...Option) (*Explorer, error) {
	if provider == nil {
		return nil, errors.New("explorer: nil provider")
	}
	e := &Explorer{
		lp:       lp,
		provider: provider,
		timeout:  DefaultTimeout,
		surfaces: func() surface.Surface { return surface.NewTextSurface() },
		origin:   model.Origin("explorer:" + uuid.NewString()),
	}
	for _, opt := range opts {
		opt(e)
	}

	main, err := model.New(Spec(), model.Schema{
		AttrValue:          {Kind: model.KindObject, Default: obj},
		AttrSelectedMethod: {Kind: model.KindString},
		AttrMethodArgs:     {Kind: model.KindString},
		AttrOutput:         {Kind: model.KindString},
		AttrHelp:           {Kind: model.KindString},
	})
	if err != nil {
		return nil, err
	}
	props, err := model.New(model.Spec{
		Module:        Spec().Module,
		ModuleVersion: Spec().ModuleVersion,
		Model:         "ExplorerPropertiesModel",
		View:          "ExplorerPropertiesView",
	}, model.Schema{
		AttrValue: {Kind: model.KindObject, Default: obj},
	})
	if err != nil {
		return nil, err
	}
	link, err := model.NewLink(props, AttrValue, main, AttrValue)
	if err != nil {
		return nil, err
	}

	e.main = main
	e.props = props
	e.link = link
	e.last = obj
	e.tracker = &trackerView{explorer: e}
	main.Attach(e.tracker)

	e.compute()
	e.recordVisit(obj)
	return e, nil
}

// Model returns the explorer's main model, for attaching views or
// registering with a session.
func (e *Explorer) Model() *model.Model { return e.main }

// Origin is the tag on the explorer's own derived commits.
func (e *Explorer) Origin() model.Origin { return e.origin }

// Properties returns the property row views of the current object, in
// table order.
func (e *Explorer) Properties() []*ExplorableValue { return e.rows }

// Members returns the searchable members of the current object, keyed
// by name.
func (e *Explorer) Members() map[string]Member {
	out := make(map[string]Member, len(e.members))
	for name, m := range e.members {
		out[name] = m
	}
	return out
}

// Value returns the explored object.
func (e *Explorer) Value() Object {
	v, err := e.main.Get(AttrValue)
	if err != nil {
		return nil
	}
	obj, _ := v.(Object)
	return obj
}

// SetValue explores obj. The previous object is pushed onto the history
// and the whole presentation recomputes.
func (e *Explorer) SetValue(obj Object) error {
	return e.main.Set(AttrValue, obj, model.OriginNone)
}

// PopValue returns to the previously explored object. The rollback is
// committed under the explorer's own origin, so it does not push what it
// just replaced.
func (e *Explorer) PopValue() error {
	if e.closed {
		return errors.New("explorer: closed")
	}
	if len(e.history) == 0 {
		return ErrNoHistory
	}
	prev := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]

	if err := e.main.Set(AttrValue, prev, e.origin); err != nil {
		return err
	}
	e.last = prev
	e.compute()
	return nil
}

// History returns the pushed-down objects, oldest first.
func (e *Explorer) History() []Object {
	out := make([]Object, len(e.history))
	copy(out, e.history)
	return out
}

// SelectMethod picks a member by name and surfaces its documentation in
// the help attribute. An unknown name is a validation error.
func (e *Explorer) SelectMethod(name string) error {
	if _, ok := e.members[name]; !ok && name != "" {
		return &model.ValidationError{
			Model: e.main.ID(),
			Attr:  AttrSelectedMethod,
			Value: name,
			Err:   fmt.Errorf("no member %q", name),
		}
	}
	return e.main.Set(AttrSelectedMethod, name, model.OriginNone)
}

// Invoke evaluates the selected member with the current argument text.
// The evaluator runs off the loop under the configured deadline; the
// result, error text, or timeout text lands in the output attribute.
// The returned channel closes once the outcome has been applied.
//
// Invoke must be called from the loop.
func (e *Explorer) Invoke() <-chan struct{} {
	done := make(chan struct{})
	name, _ := e.main.String(AttrSelectedMethod)
	args, _ := e.main.String(AttrMethodArgs)

	if e.closed {
		close(done)
		return done
	}
	if e.eval == nil || name == "" {
		e.setOutput(fmt.Sprintf("Error: no method selected; method_name=%s; input=%s;", name, args))
		close(done)
		return done
	}

	obj := e.Value()
	e.invokeSeq++
	seq := e.invokeSeq
	eval := e.eval
	timeout := e.timeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out, err := eval.Invoke(ctx, obj, name, args)
		e.lp.Post(func() {
			defer close(done)
			if e.closed || e.invokeSeq != seq {
				return
			}
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				e.setOutput("Timeout!")
			case err != nil:
				e.setOutput(fmt.Sprintf("Error: %s; method_name=%s; input=%s;", err, name, args))
			default:
				e.setOutput(out.String())
				e.recordInvocation(obj, name, args)
			}
		})
	}()
	return done
}

// Close tears the explorer down: rows unmount, the property link stops
// propagating, and in-flight invocations are discarded on arrival.
func (e *Explorer) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.invokeSeq++
	for _, row := range e.rows {
		row.Unmount()
	}
	e.rows = nil
	e.link.Unlink()
	e.main.Detach(e.tracker)
}

// compute rebuilds the derived presentation from the current value: help
// text, member table, and one property row view per backend property.
// Every commit carries the explorer's origin.
func (e *Explorer) compute() {
	obj := e.Value()

	for _, row := range e.rows {
		row.Unmount()
	}
	e.rows = nil

	members := e.provider.Members(obj)
	e.members = make(map[string]Member, len(members))
	for _, m := range members {
		e.members[m.Name] = m
	}

	e.setDerived(AttrSelectedMethod, "")
	e.setDerived(AttrHelp, e.provider.Doc(obj))
	if err := e.props.Set(AttrValue, obj, e.origin); err != nil {
		e.report("explorer.compute", AttrValue, err)
	}

	for _, p := range e.provider.Properties(obj) {
		row := newExplorableValue(e.surfaces(), e.emitter, p.Label, p.Value)
		if err := row.Mount(e.props); err != nil {
			e.report("explorer.compute", AttrValue, err)
			continue
		}
		e.rows = append(e.rows, row)
	}
}

// valueChanged is the tracker's reaction to an externally committed
// explored value.
func (e *Explorer) valueChanged(value any) {
	obj, _ := value.(Object)
	e.pushHistory(e.last)
	e.last = obj
	e.compute()
	e.recordVisit(obj)
}

// methodChanged surfaces the selected member's documentation.
func (e *Explorer) methodChanged(name string) {
	doc := ""
	if m, ok := e.members[name]; ok {
		doc = m.Doc
	}
	e.setDerived(AttrHelp, doc)
}

// pushHistory appends obj, keeping the history bounded.
func (e *Explorer) pushHistory(obj Object) {
	e.history = append(e.history, obj)
	if len(e.history) > MaxHistory {
		e.history = e.history[1:]
	}
}

func (e *Explorer) setOutput(text string) {
	if err := e.main.Set(AttrOutput, text, e.origin); err != nil {
		e.report("explorer.Invoke", AttrOutput, err)
	}
}

// setDerived commits a derived attribute under the explorer's origin.
func (e *Explorer) setDerived(attr, text string) {
	if err := e.main.Set(attr, text, e.origin); err != nil {
		e.report("explorer.compute", attr, err)
	}
}

func (e *Explorer) recordVisit(obj Object) {
	if e.st == nil || obj == nil {
		return
	}
	_, err := e.st.AddVisit(store.Visit{Label: e.provider.DisplayName(obj)})
	if err != nil {
		e.report("explorer.recordVisit", AttrValue, err)
	}
}

func (e *Explorer) recordInvocation(obj Object, name, args string) {
	if e.st == nil || obj == nil {
		return
	}
	_, err := e.st.AddVisit(store.Visit{
		Label: e.provider.DisplayName(obj),
		Expr:  fmt.Sprintf("%s.%s(%s)", obj, name, args),
	})
	if err != nil {
		e.report("explorer.recordInvocation", AttrOutput, err)
	}
}

func (e *Explorer) report(op, attr string, err error) {
	kind := prismerrors.KindStorage
	switch err.(type) {
	case *model.SchemaError:
		kind = prismerrors.KindSchema
	case *model.ValidationError:
		kind = prismerrors.KindValidation
	}
	prismerrors.Report(&prismerrors.SyncError{
		Op:    op,
		Kind:  kind,
		Model: e.main.ID(),
		Attr:  attr,
		Err:   err,
	})
}

// trackerView is the hidden view through which the explorer observes its
// own model. Commits carrying the explorer's origin are its own derived
// writes and are skipped.
type trackerView struct {
	explorer *Explorer
}

func (v *trackerView) ViewID() string { return "tracker:" + v.explorer.main.ID() }

func (v *trackerView) OnModelChanged(attr string, value any, origin model.Origin) {
	e := v.explorer
	if e.closed || origin == e.origin {
		return
	}
	switch attr {
	case AttrValue:
		e.valueChanged(value)
	case AttrSelectedMethod:
		name, _ := value.(string)
		e.methodChanged(name)
	}
}
