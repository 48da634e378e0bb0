package widgets

import (
	"github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// TextSpec identifies the text input widget to the host.
func TextSpec() model.Spec {
	return model.Spec{
		Module:        Module,
		ModuleVersion: ModuleVersion,
		Model:         "TextModel",
		View:          "TextView",
	}
}

// NewTextModel builds the model half of a text input: the committed
// value plus a placeholder shown while it is empty.
func NewTextModel() (*model.Model, error) {
	return model.New(TextSpec(), model.Schema{
		AttrValue:       {Kind: model.KindString},
		AttrPlaceholder: {Kind: model.KindString},
	})
}

// TextView is a single-line text input. Key presses edit a view-local
// buffer; Enter commits the buffer to the model under this view's
// origin, Escape abandons the edit. The buffer never touches the model
// until commit, so other views of the same model keep showing the
// committed value while the user types.
type TextView struct {
	view.ViewBase
	buffer  string
	editing bool
}

// NewTextView returns an unmounted text view projecting onto surf.
func NewTextView(surf surface.Surface, em view.Emitter) *TextView {
	v := &TextView{ViewBase: view.NewBase(surf, em)}
	v.SetSelf(v)
	v.Bind(view.EventKeyPress, v.handleKey)
	return v
}

func newTextViewEntry(surf surface.Surface, em view.Emitter) (view.View, error) {
	return NewTextView(surf, em), nil
}

// Editing reports whether an uncommitted edit is in progress.
func (v *TextView) Editing() bool { return v.editing }

// Render shows the edit buffer while editing, otherwise the committed
// value, falling back to the placeholder while the value is empty.
func (v *TextView) Render() error {
	if v.editing {
		return v.Surface().SetContent(surface.Text(v.buffer))
	}
	m := v.Model()
	value, err := m.String(AttrValue)
	if err != nil {
		return err
	}
	if value == "" {
		placeholder, err := m.String(AttrPlaceholder)
		if err != nil {
			return err
		}
		return v.Surface().SetContent(surface.Text(placeholder))
	}
	return v.Surface().SetContent(surface.Text(value))
}

func (v *TextView) handleKey(ev *view.Event) {
	ev.PreventDefault()
	m := v.Model()
	if m == nil {
		return
	}

	switch ev.Key {
	case "Enter":
		if !v.editing {
			return
		}
		buffer := v.buffer
		v.editing = false
		v.buffer = ""
		if err := m.Set(AttrValue, buffer, v.Origin()); err != nil {
			errors.Report(&errors.SyncError{
				Op:    "widgets.TextView.handleKey",
				Kind:  errors.KindValidation,
				Model: m.ID(),
				Attr:  AttrValue,
				Err:   err,
			})
			v.RequestRender()
			return
		}
		v.RequestRender()
		v.EmitCustom(map[string]any{"event": "submit", "value": buffer})
	case "Escape":
		v.editing = false
		v.buffer = ""
		v.RequestRender()
	case "Backspace":
		v.beginEdit()
		if runes := []rune(v.buffer); len(runes) > 0 {
			v.buffer = string(runes[:len(runes)-1])
		}
		v.RequestRender()
	default:
		if len(ev.Key) != 1 {
			return
		}
		v.beginEdit()
		v.buffer += ev.Key
		v.RequestRender()
	}
}

// beginEdit seeds the buffer with the committed value on the first
// keystroke of an edit.
func (v *TextView) beginEdit() {
	if v.editing {
		return
	}
	committed, err := v.Model().String(AttrValue)
	if err == nil {
		v.buffer = committed
	}
	v.editing = true
}
