// Package widgets provides the built-in widget classes: model/view pairs
// wired to the prism-widgets front-end module.
//
// Every widget here is two halves. The model half is a plain
// *model.Model built from the widget's schema; the view half embeds
// view.ViewBase and implements Render plus whatever event bindings the
// widget needs. The halves meet only through Mount:
//
//	m, _ := widgets.NewLinkModel()
//	v := widgets.NewLinkView(surface.NewTextSurface(), session)
//	v.Mount(m)
//
// Models carry no view state and views carry no business state, so any
// number of views can share one model; they stay consistent through the
// model's notification rounds.
//
// RegisterBuiltins puts the whole set into a registry so hosts can
// construct widgets by class name.
package widgets
