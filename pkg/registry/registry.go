// Package registry resolves widget class identities to constructors.
//
// The host names widget classes by (module, module version, class name)
// tuples; the registry maps those tuples to the Go constructors for the
// model and view halves. Registration is explicit: nothing registers
// itself from init(), callers decide which widget sets a session exposes.
//
// Version requests are npm-style semver ranges, because that is what
// widget front-ends send: "1.2.0" (exact), "^1.2.0" (compatible),
// "~1.2.0" (patch-level), "*" or "" (any). When several registered
// versions satisfy a range the highest wins.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/go-prism/prism/pkg/model"
	"github.com/go-prism/prism/pkg/surface"
	"github.com/go-prism/prism/pkg/view"
)

// Registry lookup and registration errors.
var (
	// ErrNotRegistered indicates no entry satisfies the requested tuple.
	ErrNotRegistered = errors.New("registry: class not registered")
	// ErrDuplicate indicates the tuple is already registered.
	ErrDuplicate = errors.New("registry: class already registered")
	// ErrInvalidSpec indicates an entry with missing names, a bad version,
	// or missing constructors.
	ErrInvalidSpec = errors.New("registry: invalid spec")
)

// ModelCtor builds the model half of a widget.
type ModelCtor func() (*model.Model, error)

// ViewCtor builds the view half of a widget, projecting onto surf and
// emitting custom payloads through em (which may be nil).
type ViewCtor func(surf surface.Surface, em view.Emitter) (view.View, error)

// Entry describes one registered widget class.
type Entry struct {
	// Spec is the host-facing identity.
	Spec model.Spec
	// NewModel builds the model half.
	NewModel ModelCtor
	// NewView builds the view half.
	NewView ViewCtor
}

// Registry is safe for concurrent use; registration typically happens at
// startup, lookups whenever the host opens a widget.
type Registry struct {
	mu      sync.RWMutex
	order   []*Entry
	byModel map[string][]*Entry
	byView  map[string][]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byModel: make(map[string][]*Entry),
		byView:  make(map[string][]*Entry),
	}
}

// Register adds an entry. The spec must carry a module, a valid semver
// module version, both class names, and both constructors. Registering
// the same (module, version, model class) twice fails.
func (r *Registry) Register(e Entry) error {
	s := e.Spec
	if s.Module == "" || s.Model == "" || s.View == "" {
		return fmt.Errorf("%w: empty name in %+v", ErrInvalidSpec, s)
	}
	if !semver.IsValid(canon(s.ModuleVersion)) {
		return fmt.Errorf("%w: bad module version %q", ErrInvalidSpec, s.ModuleVersion)
	}
	if e.NewModel == nil || e.NewView == nil {
		return fmt.Errorf("%w: nil constructor for %s.%s", ErrInvalidSpec, s.Module, s.Model)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, prev := range r.byModel[key(s.Module, s.Model)] {
		if prev.Spec.ModuleVersion == s.ModuleVersion {
			return fmt.Errorf("%w: %s@%s %s", ErrDuplicate, s.Module, s.ModuleVersion, s.Model)
		}
	}
	entry := &e
	r.order = append(r.order, entry)
	r.byModel[key(s.Module, s.Model)] = append(r.byModel[key(s.Module, s.Model)], entry)
	r.byView[key(s.Module, s.View)] = append(r.byView[key(s.Module, s.View)], entry)
	return nil
}

// Lookup resolves a model class name against a module and version range.
func (r *Registry) Lookup(module, versionRange, modelClass string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return pick(r.byModel[key(module, modelClass)], module, versionRange, modelClass)
}

// LookupView resolves a view class name against a module and version range.
func (r *Registry) LookupView(module, versionRange, viewClass string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return pick(r.byView[key(module, viewClass)], module, versionRange, viewClass)
}

// NewModel resolves a model class and builds a model from it.
func (r *Registry) NewModel(module, versionRange, modelClass string) (*model.Model, error) {
	e, err := r.Lookup(module, versionRange, modelClass)
	if err != nil {
		return nil, err
	}
	return e.NewModel()
}

// List returns the registered specs in registration order.
func (r *Registry) List() []model.Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Spec, len(r.order))
	for i, e := range r.order {
		out[i] = e.Spec
	}
	return out
}

// ResetForTest clears all registrations.
func (r *Registry) ResetForTest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byModel = make(map[string][]*Entry)
	r.byView = make(map[string][]*Entry)
}

func key(module, class string) string {
	return module + "\x00" + class
}

// pick returns the highest-versioned candidate satisfying versionRange.
func pick(candidates []*Entry, module, versionRange, class string) (*Entry, error) {
	var matched []*Entry
	for _, e := range candidates {
		if matchVersion(versionRange, e.Spec.ModuleVersion) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s@%q %s", ErrNotRegistered, module, versionRange, class)
	}
	sort.Slice(matched, func(i, j int) bool {
		return semver.Compare(canon(matched[i].Spec.ModuleVersion), canon(matched[j].Spec.ModuleVersion)) > 0
	})
	return matched[0], nil
}

// matchVersion implements the npm range subset widget front-ends send:
// "", "*" (any), "^X.Y.Z", "~X.Y.Z", and exact versions.
func matchVersion(rangeExpr, version string) bool {
	v := canon(version)
	if !semver.IsValid(v) {
		return false
	}
	switch rangeExpr {
	case "", "*":
		return true
	}

	op := byte(0)
	base := rangeExpr
	if rangeExpr[0] == '^' || rangeExpr[0] == '~' {
		op = rangeExpr[0]
		base = rangeExpr[1:]
	}
	b := canon(base)
	if !semver.IsValid(b) {
		return false
	}

	switch op {
	case '^':
		if semver.Compare(v, b) < 0 {
			return false
		}
		// Caret pins the major; for 0.x majors npm pins the minor too.
		if semver.Major(v) != semver.Major(b) {
			return false
		}
		if semver.Major(b) == "v0" && semver.MajorMinor(v) != semver.MajorMinor(b) {
			return false
		}
		return true
	case '~':
		return semver.Compare(v, b) >= 0 && semver.MajorMinor(v) == semver.MajorMinor(b)
	default:
		return semver.Compare(v, b) == 0
	}
}

// canon prefixes the "v" golang.org/x/mod/semver requires; widget specs
// carry bare "1.2.0" strings.
func canon(version string) string {
	if version == "" {
		return version
	}
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}
