package explorer

import "fmt"

// Object is an explorable domain value. The backend decides what an
// object is; the explorer only ever displays it and hands it back.
type Object interface {
	fmt.Stringer
}

// MemberKind classifies how a member is reached on its object.
type MemberKind int

const (
	// KindMethod is a callable member.
	KindMethod MemberKind = iota
	// KindAttribute is a plain data member.
	KindAttribute
	// KindProperty is a computed, argument-free member shown in the
	// property table.
	KindProperty
)

func (k MemberKind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindAttribute:
		return "attribute"
	case KindProperty:
		return "property"
	default:
		return fmt.Sprintf("MemberKind(%d)", int(k))
	}
}

// Member describes one invocable or readable member of an object, as
// reported by the backend.
type Member struct {
	// Name is the member's identifier on the object.
	Name string
	// Kind classifies the member.
	Kind MemberKind
	// Doc is the member's first documentation line.
	Doc string
	// Origin names the type that declares the member, when it differs
	// from the explored object's own type.
	Origin string
	// Args lists the argument names, in call order.
	Args []string
	// Defaults lists default values aligned with the tail of Args.
	Defaults []string
}

// Property is one row of the property table: a label and the already
// computed value it links to.
type Property struct {
	// Label is the user-facing row label.
	Label string
	// Value is the computed property value.
	Value Object
}

// Provider supplies everything the explorer shows about an object. The
// implementation lives in the computer-algebra backend; the explorer
// never inspects objects itself.
type Provider interface {
	// DisplayName returns the title line for obj.
	DisplayName(obj Object) string
	// Doc returns the first documentation line for obj, or "".
	Doc(obj Object) string
	// Properties returns the property table rows for obj.
	Properties(obj Object) []Property
	// Members returns the searchable members of obj.
	Members(obj Object) []Member
}
