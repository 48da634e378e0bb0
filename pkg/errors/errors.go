// Package errors provides structured error handling for the Prism framework.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindSchema indicates a reference to an attribute a model does not declare.
	KindSchema
	// KindValidation indicates a value outside an attribute's declared domain.
	KindValidation
	// KindComm indicates a comm channel or host bridge error.
	KindComm
	// KindRegistry indicates a widget class registration or lookup failure.
	KindRegistry
	// KindRender indicates a view projection error.
	KindRender
	// KindStorage indicates a history store error.
	KindStorage
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindValidation:
		return "validation"
	case KindComm:
		return "comm"
	case KindRegistry:
		return "registry"
	case KindRender:
		return "render"
	case KindStorage:
		return "storage"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// SyncError represents a structured error in the Prism framework.
type SyncError struct {
	// Op is the operation that failed (e.g., "model.Set").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Model is the model ID, if applicable.
	Model string
	// Attr is the attribute name, if applicable.
	Attr string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *SyncError) Error() string {
	switch {
	case e.Model != "" && e.Attr != "":
		return fmt.Sprintf("%s [%s] model=%s attr=%s: %v", e.Op, e.Kind, e.Model, e.Attr, e.Err)
	case e.Model != "":
		return fmt.Sprintf("%s [%s] model=%s: %v", e.Op, e.Kind, e.Model, e.Err)
	default:
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "loop.Run").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// RenderError represents a failure during a view render.
type RenderError struct {
	// View is the view ID of the view that failed.
	View string
	// Model is the model ID the view was attached to, if any.
	Model string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *RenderError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s.Render(): %v", e.View, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s.Render(): %v", e.View, e.Err)
	}
	return fmt.Sprintf("unknown error in %s.Render()", e.View)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the Prism framework.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *SyncError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleRenderError is called when a view render fails.
	HandleRenderError(err *RenderError)
}
