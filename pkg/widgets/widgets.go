package widgets

import (
	"github.com/go-prism/prism/pkg/registry"
)

// Module identity of the built-in widget set. The front-end package
// serving these classes reports the same name and version.
const (
	Module        = "prism-widgets"
	ModuleVersion = "1.0.0"
)

// Attribute names shared across the built-in schemas.
const (
	// AttrValue is the principal content attribute of display widgets.
	AttrValue = "value"
	// AttrSelectedLink is the toggle state of a link widget.
	AttrSelectedLink = "selected_link"
	// AttrDescription is the user-facing label of a widget.
	AttrDescription = "description"
	// AttrPlaceholder is shown by input widgets while value is empty.
	AttrPlaceholder = "placeholder"
)

// RegisterBuiltins registers every built-in widget class with r.
func RegisterBuiltins(r *registry.Registry) error {
	for _, e := range []registry.Entry{
		{Spec: LinkSpec(), NewModel: NewLinkModel, NewView: newLinkViewEntry},
		{Spec: LabelSpec(), NewModel: NewLabelModel, NewView: newLabelViewEntry},
		{Spec: OutputSpec(), NewModel: NewOutputModel, NewView: newOutputViewEntry},
		{Spec: TextSpec(), NewModel: NewTextModel, NewView: newTextViewEntry},
	} {
		if err := r.Register(e); err != nil {
			return err
		}
	}
	return nil
}
