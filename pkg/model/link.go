package model

import (
	"github.com/google/uuid"

	"github.com/go-prism/prism/pkg/errors"
)

// Link is a directional binding between two model attributes: every
// commit of the source attribute is re-applied to the destination
// attribute, tagged with the link's own origin.
//
// Links are how composite widgets ripple a selection from a child model
// into their parent model without either side knowing about the other.
// Propagated values go through the destination's normal validation; a
// rejection is reported and the destination keeps its value.
type Link struct {
	id      string
	src     *Model
	srcAttr string
	dst     *Model
	dstAttr string
	view    *linkView
	active  bool
}

// NewLink connects src.srcAttr to dst.dstAttr and immediately propagates
// the current source value. Construction fails if either attribute is
// undeclared or the initial propagation is rejected.
func NewLink(src *Model, srcAttr string, dst *Model, dstAttr string) (*Link, error) {
	initial, err := src.Get(srcAttr)
	if err != nil {
		return nil, err
	}
	if !dst.Declares(dstAttr) {
		return nil, &SchemaError{Model: dst.ID(), Attr: dstAttr}
	}

	l := &Link{
		id:      "link:" + uuid.NewString(),
		src:     src,
		srcAttr: srcAttr,
		dst:     dst,
		dstAttr: dstAttr,
	}
	l.view = &linkView{link: l}

	if err := dst.Set(dstAttr, initial, l.Origin()); err != nil {
		return nil, err
	}
	src.Attach(l.view)
	l.active = true
	return l, nil
}

// Origin is the origin tag carried by values this link propagates.
func (l *Link) Origin() Origin { return Origin(l.id) }

// Active reports whether the link is still propagating.
func (l *Link) Active() bool { return l.active }

// Unlink stops propagation. Safe to call more than once.
func (l *Link) Unlink() {
	if !l.active {
		return
	}
	l.active = false
	l.src.Detach(l.view)
}

// linkView is the hidden view a link attaches to its source model.
type linkView struct {
	link *Link
}

func (v *linkView) ViewID() string { return v.link.id }

func (v *linkView) OnModelChanged(attr string, value any, origin Origin) {
	l := v.link
	if attr != l.srcAttr {
		return
	}
	if err := l.dst.Set(l.dstAttr, value, l.Origin()); err != nil {
		errors.Report(&errors.SyncError{
			Op:    "model.Link",
			Kind:  errors.KindValidation,
			Model: l.dst.ID(),
			Attr:  l.dstAttr,
			Err:   err,
		})
	}
}
