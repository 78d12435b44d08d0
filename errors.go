package statepath

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedPath indicates a path string with empty segments.
	ErrMalformedPath = errors.New("statepath: malformed path")
	// ErrScopeNotFound indicates a scope name that does not resolve to a state root.
	ErrScopeNotFound = errors.New("statepath: scope not found")
	// ErrScopeNameRequired indicates a state root registered without a name.
	ErrScopeNameRequired = errors.New("statepath: scope name must be provided")
	// ErrDuplicateScopeName indicates two state roots registered under one name.
	ErrDuplicateScopeName = errors.New("statepath: scope names must be unique")
	// ErrNoMappingRule indicates an inner path with no ancestor primary mapping.
	ErrNoMappingRule = errors.New("statepath: no mapping rule")
	// ErrDuplicateMappingRule indicates two mapping rules tied in segment length
	// for the same inner path.
	ErrDuplicateMappingRule = errors.New("statepath: duplicate mapping rule")
	// ErrEmptyBindings indicates a primary mapping build without bindings.
	ErrEmptyBindings = errors.New("statepath: bindings must not be empty")
	// ErrRootNotReady indicates access to a state root before Init completed.
	ErrRootNotReady = errors.New("statepath: state root not ready")
	// ErrReadOnly indicates a write attempted through a read-only accessor.
	ErrReadOnly = errors.New("statepath: state is read-only")
	// ErrComputedCycle indicates a computed path that depends on itself.
	ErrComputedCycle = errors.New("statepath: computed dependency cycle")
)

// ResolutionError carries the operation, path and scope of a failed
// resolution alongside the originating error.
type ResolutionError struct {
	Op    string
	Path  string
	Scope string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("statepath: ")
	b.WriteString(e.Op)
	fmt.Fprintf(&b, " path=%q", e.Path)
	if e.Scope != "" {
		fmt.Fprintf(&b, " scope=%s", e.Scope)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapResolutionError(op, path, scope string, err error) error {
	if err == nil {
		return nil
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		if resErr.Op == "" {
			resErr.Op = op
		}
		if resErr.Path == "" {
			resErr.Path = path
		}
		if resErr.Scope == "" {
			resErr.Scope = scope
		}
		return resErr
	}

	return &ResolutionError{
		Op:    op,
		Path:  path,
		Scope: scope,
		Err:   err,
	}
}
