package widgets

import (
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// LabelSpec identifies the label widget to the host.
func LabelSpec() model.Spec {
	return model.Spec{
		Module:        Module,
		ModuleVersion: ModuleVersion,
		Model:         "LabelModel",
		View:          "LabelView",
	}
}

// NewLabelModel builds the model half of a label: a single string value.
func NewLabelModel() (*model.Model, error) {
	return model.New(LabelSpec(), model.Schema{
		AttrValue: {Kind: model.KindString},
	})
}

// LabelView renders the label's value as plain text.
type LabelView struct {
	view.ViewBase
}

// NewLabelView returns an unmounted label view projecting onto surf.
func NewLabelView(surf surface.Surface, em view.Emitter) *LabelView {
	v := &LabelView{ViewBase: view.NewBase(surf, em)}
	v.SetSelf(v)
	return v
}

func newLabelViewEntry(surf surface.Surface, em view.Emitter) (view.View, error) {
	return NewLabelView(surf, em), nil
}

// Render projects the value attribute verbatim.
func (v *LabelView) Render() error {
	text, err := v.Model().String(AttrValue)
	if err != nil {
		return err
	}
	return v.Surface().SetContent(surface.Text(text))
}
