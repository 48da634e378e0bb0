// Package prism bundles a ready-to-run widget kernel: one session loop,
// a registry preloaded with the built-in widget classes, and a comm
// session over a bridge of the embedder's choosing.
//
// It is convenience glue over the underlying packages; anything built
// here can equally be assembled by hand from loop, registry, comm, and
// explorer.
package prism

import (
	"context"

	"github.com/go-prism/prism/pkg/comm"
	"github.com/go-prism/prism/pkg/explorer"
	"github.com/go-prism/prism/pkg/loop"
	"github.com/go-prism/prism/pkg/registry"
	"github.com/go-prism/prism/pkg/widgets"
)

// Option configures a Kernel.
type Option func(*Kernel)

// WithBridge sends comm traffic through bridge instead of the default
// in-process loopback.
func WithBridge(bridge comm.Bridge) Option {
	return func(k *Kernel) { k.bridge = bridge }
}

// WithRegistry replaces the default registry. The caller is then
// responsible for registering whatever widget classes the host may open.
func WithRegistry(reg *registry.Registry) Option {
	return func(k *Kernel) { k.reg = reg }
}

// WithSessionOptions forwards options to the underlying comm session.
func WithSessionOptions(opts ...comm.Option) Option {
	return func(k *Kernel) { k.sessionOpts = opts }
}

// WithExploreOptions sets default options for every Explore call, such
// as a shared history store. Per-call options are applied after these.
func WithExploreOptions(opts ...explorer.Option) Option {
	return func(k *Kernel) { k.exploreOpts = opts }
}

// Kernel is one assembled widget kernel.
type Kernel struct {
	lp      *loop.Loop
	reg     *registry.Registry
	bridge  comm.Bridge
	session *comm.Session

	sessionOpts []comm.Option
	exploreOpts []explorer.Option
}

// NewKernel assembles a kernel. Without options it talks to an
// in-process loopback bridge and serves the built-in widget classes.
func NewKernel(opts ...Option) (*Kernel, error) {
	k := &Kernel{lp: loop.New()}
	for _, opt := range opts {
		opt(k)
	}
	if k.bridge == nil {
		k.bridge = comm.NewLoopbackBridge()
	}
	if k.reg == nil {
		k.reg = registry.New()
		if err := widgets.RegisterBuiltins(k.reg); err != nil {
			return nil, err
		}
	}
	k.session = comm.NewSession(k.lp, k.reg, k.bridge, k.sessionOpts...)
	return k, nil
}

// Loop returns the session loop.
func (k *Kernel) Loop() *loop.Loop { return k.lp }

// Registry returns the widget class registry.
func (k *Kernel) Registry() *registry.Registry { return k.reg }

// Session returns the comm session.
func (k *Kernel) Session() *comm.Session { return k.session }

// Bridge returns the transport the session sends through.
func (k *Kernel) Bridge() comm.Bridge { return k.bridge }

// Run drives the loop on the calling goroutine until ctx is done. Most
// embedders run it on a dedicated goroutine and talk to the kernel with
// Dispatch.
func (k *Kernel) Run(ctx context.Context) error {
	return k.lp.Run(ctx)
}

// Dispatch hands fn to the session loop from any goroutine.
func (k *Kernel) Dispatch(fn func()) {
	k.lp.Post(fn)
}

// Explore builds an explorer for obj and announces its model to the
// host. Like every model operation it must run on the loop; callers off
// the loop go through Dispatch or PostWait.
func (k *Kernel) Explore(provider explorer.Provider, obj explorer.Object, opts ...explorer.Option) (*explorer.Explorer, error) {
	e, err := explorer.New(k.lp, provider, obj, append(k.exploreOpts, opts...)...)
	if err != nil {
		return nil, err
	}
	if _, err := k.session.RegisterModel(e.Model()); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// Close shuts the session down. Call it from the loop, or through
// PostWait when the loop is running elsewhere.
func (k *Kernel) Close() error {
	return k.session.Close()
}
