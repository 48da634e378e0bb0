// Package model implements the synchronized attribute bag at the center
// of a Prism widget: a schema-validated set of named values that any
// number of views observe.
//
// A model accepts mutations tagged with an origin, validates them against
// its schema, and notifies attached views synchronously, in attachment
// order. Mutations issued while a notification round is in flight are
// deferred and applied in FIFO order after the round completes, so a view
// callback never re-enters another view on the same call stack.
//
// Models are confined to the session loop: every method must be called
// from the loop goroutine (see package loop). They perform no internal
// locking.
package model

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/go-prism/prism/pkg/errors"
)

// SchemaError reports a reference to an attribute the model's schema does
// not declare.
type SchemaError struct {
	// Model is the model ID.
	Model string
	// Attr is the undeclared attribute name.
	Attr string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model %s: unknown attribute %q", e.Model, e.Attr)
}

// ValidationError reports a candidate value outside an attribute's domain.
// The model state is unchanged and no notification was delivered.
type ValidationError struct {
	// Model is the model ID.
	Model string
	// Attr is the attribute that rejected the value.
	Attr string
	// Value is the rejected candidate.
	Value any
	// Err is the underlying reason.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model %s: invalid value for %q: %v", e.Model, e.Attr, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Spec identifies a widget class to the host: which front-end package
// provides it and the class names of its model and view halves.
type Spec struct {
	Module        string
	ModuleVersion string
	Model         string
	View          string
}

// Origin tags a mutation with its initiator, so the initiator can
// recognize its own change when the notification comes back around.
type Origin string

// OriginNone marks a mutation with no interested initiator.
const OriginNone Origin = ""

// View is the model-side contract of an attached view. Concrete views
// live in package view; the comm layer attaches its own implementation to
// forward commits to the host.
type View interface {
	// ViewID returns a stable identifier. Attachment is keyed by it.
	ViewID() string
	// OnModelChanged is called synchronously after a commit. It runs on
	// the session loop and must not block.
	OnModelChanged(attr string, value any, origin Origin)
}

type pendingSet struct {
	attr   string
	value  any
	origin Origin
}

// Model is a schema-validated attribute bag observed by views.
type Model struct {
	id     string
	spec   Spec
	schema Schema
	values map[string]any
	rev    uint64

	// views holds attached views in attachment order.
	views     []View
	notifying bool
	pending   []pendingSet
}

// New builds a model from its spec and schema, populating every attribute
// with its declared default. Defaults are validated like any other value;
// a bad default fails construction.
func New(spec Spec, schema Schema) (*Model, error) {
	m := &Model{
		id:     uuid.NewString(),
		spec:   spec,
		schema: schema,
		values: make(map[string]any, len(schema)),
	}
	for name, attr := range schema {
		def := attr.Default
		if def == nil {
			def = attr.Kind.zero()
		}
		v, err := m.normalize(name, def)
		if err != nil {
			return nil, fmt.Errorf("default for %q: %w", name, err)
		}
		m.values[name] = v
	}
	return m, nil
}

// ID returns the model's unique identifier.
func (m *Model) ID() string { return m.id }

// Spec returns the host routing identity of this model.
func (m *Model) Spec() Spec { return m.spec }

// Rev returns the revision counter. It increments once per committed
// change and never otherwise.
func (m *Model) Rev() uint64 { return m.rev }

// Keys returns the declared attribute names in sorted order.
func (m *Model) Keys() []string {
	keys := make([]string, 0, len(m.schema))
	for name := range m.schema {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Declares reports whether the schema declares attr.
func (m *Model) Declares(attr string) bool {
	_, ok := m.schema[attr]
	return ok
}

// KindOf returns the declared kind of attr.
func (m *Model) KindOf(attr string) (Kind, error) {
	a, ok := m.schema[attr]
	if !ok {
		return 0, &SchemaError{Model: m.id, Attr: attr}
	}
	return a.Kind, nil
}

// Get returns the committed value of attr.
func (m *Model) Get(attr string) (any, error) {
	if _, ok := m.schema[attr]; !ok {
		return nil, &SchemaError{Model: m.id, Attr: attr}
	}
	return m.values[attr], nil
}

// Bool returns the committed value of a KindBool attribute.
func (m *Model) Bool(attr string) (bool, error) {
	v, err := m.Get(attr)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("model %s: attribute %q holds %T, not bool", m.id, attr, v)
	}
	return b, nil
}

// Int returns the committed value of a KindInt attribute.
func (m *Model) Int(attr string) (int64, error) {
	v, err := m.Get(attr)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("model %s: attribute %q holds %T, not int64", m.id, attr, v)
	}
	return n, nil
}

// Float returns the committed value of a KindFloat attribute.
func (m *Model) Float(attr string) (float64, error) {
	v, err := m.Get(attr)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("model %s: attribute %q holds %T, not float64", m.id, attr, v)
	}
	return f, nil
}

// String returns the committed value of a KindString attribute.
func (m *Model) String(attr string) (string, error) {
	v, err := m.Get(attr)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("model %s: attribute %q holds %T, not string", m.id, attr, v)
	}
	return s, nil
}

// Values returns a copy of the committed state, keyed by attribute name.
func (m *Model) Values() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Set validates value against attr's declaration and, if it differs from
// the committed value, commits it and notifies attached views in
// attachment order, tagged with origin.
//
// Validation failures return *SchemaError or *ValidationError and leave
// state and views untouched. Committing a value equal to the current one
// is a silent no-op: no revision bump, no notification.
//
// Calling Set from inside a notification callback is allowed: the
// mutation is validated immediately but its commit and notification round
// are deferred until the in-flight round completes. Deferred mutations
// apply in submission order.
func (m *Model) Set(attr string, value any, origin Origin) error {
	v, err := m.normalize(attr, value)
	if err != nil {
		return err
	}
	if m.notifying {
		m.pending = append(m.pending, pendingSet{attr: attr, value: v, origin: origin})
		return nil
	}
	m.apply(attr, v, origin)
	m.drainPending()
	return nil
}

// Attach registers v to receive change notifications after views attached
// earlier. Attaching a view whose ViewID is already attached is a no-op.
// A view attached during a notification round does not receive
// notifications for that round.
func (m *Model) Attach(v View) {
	if v == nil {
		return
	}
	if m.indexOf(v.ViewID()) >= 0 {
		return
	}
	m.views = append(m.views, v)
}

// Detach removes v from the notification set. Detaching a view that is
// not attached is a no-op. A view detached during a notification round
// receives no further notifications, including the remainder of that
// round.
func (m *Model) Detach(v View) {
	if v == nil {
		return
	}
	if i := m.indexOf(v.ViewID()); i >= 0 {
		m.views = append(m.views[:i], m.views[i+1:]...)
	}
}

// NumViews returns how many views are attached.
func (m *Model) NumViews() int { return len(m.views) }

func (m *Model) indexOf(viewID string) int {
	for i, v := range m.views {
		if v.ViewID() == viewID {
			return i
		}
	}
	return -1
}

// normalize resolves attr, checks value against the attribute kind, and
// runs the declared Normalize hook.
func (m *Model) normalize(attr string, value any) (any, error) {
	a, ok := m.schema[attr]
	if !ok {
		return nil, &SchemaError{Model: m.id, Attr: attr}
	}
	v, err := a.Kind.coerce(value)
	if err != nil {
		return nil, &ValidationError{Model: m.id, Attr: attr, Value: value, Err: err}
	}
	if a.Normalize != nil {
		v, err = a.Normalize(v)
		if err != nil {
			return nil, &ValidationError{Model: m.id, Attr: attr, Value: value, Err: err}
		}
	}
	return v, nil
}

// apply commits one validated mutation and runs its notification round.
func (m *Model) apply(attr string, value any, origin Origin) {
	if valuesEqual(m.values[attr], value) {
		return
	}
	m.values[attr] = value
	m.rev++

	m.notifying = true
	defer func() { m.notifying = false }()

	// Snapshot so views attached mid-round are excluded; views detached
	// mid-round are checked against the live set and skipped.
	snapshot := make([]View, len(m.views))
	copy(snapshot, m.views)
	for _, v := range snapshot {
		if m.indexOf(v.ViewID()) < 0 {
			continue
		}
		m.dispatch(v, attr, value, origin)
	}
}

func (m *Model) drainPending() {
	for len(m.pending) > 0 {
		p := m.pending[0]
		m.pending = m.pending[1:]
		m.apply(p.attr, p.value, p.origin)
	}
}

// dispatch delivers one notification, containing any panic to the
// reporting pipeline so the rest of the round still runs.
func (m *Model) dispatch(v View, attr string, value any, origin Origin) {
	defer func() {
		if r := recover(); r != nil {
			errors.ReportPanic(&errors.PanicError{
				Op:         "model.OnModelChanged",
				Value:      r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			})
		}
	}()
	v.OnModelChanged(attr, value, origin)
}

// valuesEqual compares committed values. Object attributes may hold maps
// and slices, so this is a deep comparison.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
