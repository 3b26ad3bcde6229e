package helper

import (
	"errors"
	"fmt"
)

var (
	// ErrBuiltinOverride is matched by BuiltinOverrideError.
	ErrBuiltinOverride = errors.New("helper name collides with built-in syntax")
	// ErrUnsupportedContext is matched by UnsupportedContextError.
	ErrUnsupportedContext = errors.New("helper used in unsupported context")
	// ErrDynamicReference is matched by DynamicReferenceDisallowedError.
	ErrDynamicReference = errors.New("dynamic helper reference disallowed")
	// ErrUnknownHelper is matched by UnknownHelperError.
	ErrUnknownHelper = errors.New("unknown helper")
	// ErrMissingSuperInit is matched by MissingSuperInitError.
	ErrMissingSuperInit = errors.New("base initializer not applied")
	// ErrFrozenArgument is matched by FrozenArgumentMutationError.
	ErrFrozenArgument = errors.New("helper arguments are frozen")
	// ErrTracking is matched by TrackingError.
	ErrTracking = errors.New("tracked value read and written in one computation")
	// ErrLifecycle is matched by LifecycleError.
	ErrLifecycle = errors.New("helper lifecycle violation")

	// ErrNotHelperReference is returned when an invoked value is not a helper reference.
	ErrNotHelperReference = errors.New("value is not a helper reference")
	// ErrNotStateful is returned by Build for functional helpers.
	ErrNotStateful = errors.New("helper is not stateful")
	// ErrPassInProgress is returned by Begin while another pass is running.
	ErrPassInProgress = errors.New("rendering pass already in progress")
	// ErrNoPass is returned when a call-site is evaluated outside a pass.
	ErrNoPass = errors.New("no rendering pass in progress")
)

// BuiltinOverrideError reports a helper name reserved for built-in control syntax.
type BuiltinOverrideError struct {
	Name string
}

func (e *BuiltinOverrideError) Error() string {
	return fmt.Sprintf("cannot use %q as a helper name: it is reserved for built-in syntax", e.Name)
}

func (e *BuiltinOverrideError) Unwrap() error { return ErrBuiltinOverride }

// UnsupportedContextError reports a helper used as a block or an element modifier.
type UnsupportedContextError struct {
	Name     string
	Context  Context
	Expected string
}

func (e *UnsupportedContextError) Error() string {
	return fmt.Sprintf("helper %q cannot be used in %s position: expected a %s", e.Name, e.Context, e.Expected)
}

func (e *UnsupportedContextError) Unwrap() error { return ErrUnsupportedContext }

// DynamicReferenceDisallowedError reports a raw string passed where a helper
// reference is required.
type DynamicReferenceDisallowedError struct {
	Value string
	Site  string
}

func (e *DynamicReferenceDisallowedError) Error() string {
	return fmt.Sprintf("%s: string %q passed where a helper reference is expected, resolve it with the dynamic helper operator", e.Site, e.Value)
}

func (e *DynamicReferenceDisallowedError) Unwrap() error { return ErrDynamicReference }

// UnknownHelperError reports a name with no registered definition.
type UnknownHelperError struct {
	Name string
}

func (e *UnknownHelperError) Error() string {
	return fmt.Sprintf("no helper registered as %q", e.Name)
}

func (e *UnknownHelperError) Unwrap() error { return ErrUnknownHelper }

// MissingSuperInitError reports a stateful helper whose base state was not
// left in place by its initializer.
type MissingSuperInitError struct {
	Name string
	Site string
}

func (e *MissingSuperInitError) Error() string {
	return fmt.Sprintf("helper %q at %s: initializer discarded the base helper state", e.Name, e.Site)
}

func (e *MissingSuperInitError) Unwrap() error { return ErrMissingSuperInit }

// FrozenArgumentMutationError reports an attempted write to an argument snapshot.
type FrozenArgumentMutationError struct {
	Name string
	Site string
	Op   string
}

func (e *FrozenArgumentMutationError) Error() string {
	return fmt.Sprintf("helper %q at %s: cannot %s, arguments are read-only", e.Name, e.Site, e.Op)
}

func (e *FrozenArgumentMutationError) Unwrap() error { return ErrFrozenArgument }

// TrackingError reports a computation writing a tracked value it read.
type TrackingError struct {
	Name string
	Site string
	Cell string
}

func (e *TrackingError) Error() string {
	return fmt.Sprintf("helper %q at %s read %q and then wrote it in the same computation", e.Name, e.Site, e.Cell)
}

func (e *TrackingError) Unwrap() error { return ErrTracking }

// LifecycleError reports a duplicate teardown or use of a torn-down call-site.
type LifecycleError struct {
	Name   string
	Site   string
	Reason string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("helper %q at %s: %s", e.Name, e.Site, e.Reason)
}

func (e *LifecycleError) Unwrap() error { return ErrLifecycle }
