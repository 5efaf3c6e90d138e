// Package view defines the values that identify what a span measures: the
// view instance and the rendering phase.
package view

import (
	"strconv"
	"strings"
)

// Identity is an opaque handle of a view instance. It is used as a label only;
// holding an Identity never keeps the underlying view alive.
type Identity struct {
	// Handle is the identity hash of the view, assigned by whatever observes
	// the rendering pipeline. Two identities refer to the same view if and only
	// if their handles are equal.
	Handle uint64

	// Class is the simple class name of the view, e.g. "LinearLayout".
	Class string

	// Name is the resource entry name of the view id. It may be empty.
	Name string
}

// None is the identity used by spans that do not belong to a view, such as the
// steps issued by the root coordinator.
var None = Identity{}

// IsNone returns true if the identity does not refer to any view.
func (id Identity) IsNone() bool {
	return id.Handle == 0 && id.Class == "" && id.Name == ""
}

// Same returns true if both identities refer to the same view instance.
func (id Identity) Same(other Identity) bool {
	return id.Handle == other.Handle
}

// String formats the identity as Class#handle[:name].
func (id Identity) String() string {
	if id.IsNone() {
		return "-"
	}

	var b strings.Builder

	b.WriteString(id.Class)
	b.WriteByte('#')
	b.WriteString(strconv.FormatUint(id.Handle, 10))

	if id.Name != "" {
		b.WriteByte(':')
		b.WriteString(id.Name)
	}

	return b.String()
}

// Label formats the identity the way layout inspectors show it, e.g.
// "LinearLayout(@id/content)".
func (id Identity) Label() string {
	if id.Name == "" {
		return id.Class
	}

	return id.Class + "(@id/" + id.Name + ")"
}
