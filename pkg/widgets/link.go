package widgets

import (
	"github.com/go-prism/prism/pkg/errors"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// LinkSpec identifies the link widget to the host.
func LinkSpec() model.Spec {
	return model.Spec{
		Module:        Module,
		ModuleVersion: ModuleVersion,
		Model:         "LinkModel",
		View:          "LinkView",
	}
}

// NewLinkModel builds the model half of a link widget: a boolean
// selected_link toggle plus a description label.
func NewLinkModel() (*model.Model, error) {
	return model.New(LinkSpec(), model.Schema{
		AttrSelectedLink: {Kind: model.KindBool},
		AttrDescription:  {Kind: model.KindString},
	})
}

// LinkView is a clickable text rendering of a link widget. A click
// toggles selected_link, repaints optimistically, and tells the backend
// a click happened.
type LinkView struct {
	view.ViewBase
}

// NewLinkView returns an unmounted link view projecting onto surf. em
// may be nil for views that never reach a backend.
func NewLinkView(surf surface.Surface, em view.Emitter) *LinkView {
	v := &LinkView{ViewBase: view.NewBase(surf, em)}
	v.SetSelf(v)
	v.Bind(view.EventClick, v.handleClick)
	return v
}

func newLinkViewEntry(surf surface.Surface, em view.Emitter) (view.View, error) {
	return NewLinkView(surf, em), nil
}

// Render projects the toggle state and description as text.
func (v *LinkView) Render() error {
	m := v.Model()
	selected, err := m.Bool(AttrSelectedLink)
	if err != nil {
		return err
	}
	desc, err := m.String(AttrDescription)
	if err != nil {
		return err
	}
	marker := "[ ]"
	if selected {
		marker = "[x]"
	}
	text := marker
	if desc != "" {
		text = marker + " " + desc
	}
	return v.Surface().SetContent(surface.Text(text))
}

// handleClick consumes the event, reads the current toggle state, commits
// its inverse under this view's origin, repaints optimistically, and
// emits a click payload. A rejected commit keeps the previous rendering.
func (v *LinkView) handleClick(ev *view.Event) {
	ev.PreventDefault()
	m := v.Model()
	if m == nil {
		return
	}
	current, err := m.Bool(AttrSelectedLink)
	if err != nil {
		errors.Report(&errors.SyncError{
			Op:    "widgets.LinkView.handleClick",
			Kind:  errors.KindSchema,
			Model: m.ID(),
			Attr:  AttrSelectedLink,
			Err:   err,
		})
		return
	}
	if err := m.Set(AttrSelectedLink, !current, v.Origin()); err != nil {
		errors.Report(&errors.SyncError{
			Op:    "widgets.LinkView.handleClick",
			Kind:  errors.KindValidation,
			Model: m.ID(),
			Attr:  AttrSelectedLink,
			Err:   err,
		})
		return
	}
	v.RequestRender()
	v.EmitCustom(map[string]any{"event": "click"})
}
