package widgets

import (
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// OutputSpec identifies the output widget to the host.
func OutputSpec() model.Spec {
	return model.Spec{
		Module:        Module,
		ModuleVersion: ModuleVersion,
		Model:         "OutputModel",
		View:          "OutputView",
	}
}

// NewOutputModel builds the model half of an output area: a string value
// holding whatever the backend last produced.
func NewOutputModel() (*model.Model, error) {
	return model.New(OutputSpec(), model.Schema{
		AttrValue: {Kind: model.KindString},
	})
}

// ProjectFunc formats output text into display data. Projections may be
// expensive (rasterizing, syntax highlighting) and run off the loop.
type ProjectFunc func(text string) (surface.DisplayData, error)

// OutputView renders an output area. Without a projection it paints the
// value synchronously; with one it kicks the projection off-loop and
// returns immediately, applying the result through the loop when it
// lands. Stale results are discarded.
type OutputView struct {
	view.ViewBase
	lp      *loop.Loop
	project ProjectFunc
	async   <-chan struct{}
}

// NewOutputView returns an unmounted output view. lp and project may be
// nil together for a plain synchronous output area.
func NewOutputView(surf surface.Surface, em view.Emitter, lp *loop.Loop, project ProjectFunc) *OutputView {
	v := &OutputView{
		ViewBase: view.NewBase(surf, em),
		lp:       lp,
		project:  project,
	}
	v.SetSelf(v)
	return v
}

func newOutputViewEntry(surf surface.Surface, em view.Emitter) (view.View, error) {
	return NewOutputView(surf, em, nil, nil), nil
}

// Render paints the value, or starts the asynchronous projection and
// returns without blocking.
func (v *OutputView) Render() error {
	text, err := v.Model().String(AttrValue)
	if err != nil {
		return err
	}
	if v.lp == nil || v.project == nil {
		return v.Surface().SetContent(surface.Text(text))
	}
	project := v.project
	v.async = v.RenderAsync(v.lp, func() (surface.DisplayData, error) {
		return project(text)
	})
	return nil
}

// AsyncDone returns the completion signal of the most recent asynchronous
// projection, or nil if none was started. The channel closes when the
// result is applied or discarded.
func (v *OutputView) AsyncDone() <-chan struct{} {
	return v.async
}
