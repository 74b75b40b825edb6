package errutil

import (
	"errors"
	"strings"
)

// ScopeDelimiter separates the segments of a scope path, as in
// "repositories/cloudify-manager/build-rpms".
const ScopeDelimiter = "/"

// Scoped is an error labeled with the path of the document node or
// component it belongs to.
type Scoped struct {
	path  []string
	inner error
}

// Scope labels an error with the given path segments. Scoping an already
// scoped error prepends the segments to its existing path, so errors can be
// scoped bottom-up while walking out of a tree. A nil error stays nil.
func Scope(err error, paths ...string) error {
	if err == nil {
		return nil
	}
	if scoped, ok := err.(Scoped); ok {
		path := make([]string, 0, len(paths)+len(scoped.path))
		path = append(path, paths...)
		path = append(path, scoped.path...)
		return Scoped{path: path, inner: scoped.inner}
	}
	return Scoped{path: append([]string(nil), paths...), inner: err}
}

// ScopeSlice scopes every error in the slice with the same path segments.
func ScopeSlice(errs Slice, paths ...string) Slice {
	result := make(Slice, len(errs))
	for i, err := range errs {
		result[i] = Scope(err, paths...)
	}
	return result
}

// AsScope returns the scope path of the outermost scoped error in the chain,
// or an empty string if there is none.
func AsScope(err error) string {
	var scoped Scoped
	if errors.As(err, &scoped) {
		return scoped.Scope()
	}
	return ""
}

// Scope returns the full scope path.
func (err Scoped) Scope() string {
	return strings.Join(err.path, ScopeDelimiter)
}

// Error implements the error interface. The scope is not part of the
// message; use AsScope to get it.
func (err Scoped) Error() string {
	if err.inner == nil {
		return ""
	}
	return err.inner.Error()
}

// Unwrap implements the interface to support errors.Is and errors.As.
func (err Scoped) Unwrap() error {
	return err.inner
}
