package explorer

import (
	prismerrors "github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// ExplorableValue is one clickable row of the property table: a label
// and the computed value it stands for. A click commits the row's object
// into the shared property model, whose link ripples it into the
// explorer's value.
type ExplorableValue struct {
	view.ViewBase
	label string
	obj   Object
}

func newExplorableValue(surf surface.Surface, em view.Emitter, label string, obj Object) *ExplorableValue {
	v := &ExplorableValue{
		ViewBase: view.NewBase(surf, em),
		label:    label,
		obj:      obj,
	}
	v.SetSelf(v)
	v.Bind(view.EventClick, v.handleClick)
	return v
}

// Label returns the row label.
func (v *ExplorableValue) Label() string { return v.label }

// Object returns the row's value.
func (v *ExplorableValue) Object() Object { return v.obj }

// Render projects the row as "label: value". The row shows its captured
// object, not the shared selection, so re-renders are trivially
// idempotent.
func (v *ExplorableValue) Render() error {
	text := v.obj.String()
	if v.label != "" {
		text = v.label + ": " + text
	}
	return v.Surface().SetContent(surface.Text(text))
}

// handleClick consumes the event and commits the row's object into the
// property model under this row's origin.
func (v *ExplorableValue) handleClick(ev *view.Event) {
	ev.PreventDefault()
	m := v.Model()
	if m == nil {
		return
	}
	if err := m.Set(AttrValue, v.obj, v.Origin()); err != nil {
		prismerrors.Report(&prismerrors.SyncError{
			Op:    "explorer.ExplorableValue.handleClick",
			Kind:  prismerrors.KindValidation,
			Model: m.ID(),
			Attr:  AttrValue,
			Err:   err,
		})
		return
	}
	v.RequestRender()
	v.EmitCustom(map[string]any{"event": "click"})
}
