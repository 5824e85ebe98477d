package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tools package.
var (
	// ErrFunctionNotFound is returned when a function is not in the catalog.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrFunctionAlreadyExists is returned when registering a duplicate
	// plugin/name pair.
	ErrFunctionAlreadyExists = errors.New("function already exists")

	// ErrInvalidFunction is returned when registering a nil or unnamed function.
	ErrInvalidFunction = errors.New("invalid function")

	// ErrReadOnly is returned when mutating a catalog snapshot.
	ErrReadOnly = errors.New("catalog is read-only")
)

// FunctionNotFoundError provides detailed information about a missing function.
type FunctionNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function not found: %s", e.Name)
}

// Is allows errors.Is to match against ErrFunctionNotFound.
func (e *FunctionNotFoundError) Is(target error) bool {
	return target == ErrFunctionNotFound
}

// FunctionAlreadyExistsError provides detailed information about a duplicate function.
type FunctionAlreadyExistsError struct {
	Name string
}

// Error implements the error interface.
func (e *FunctionAlreadyExistsError) Error() string {
	return fmt.Sprintf("function already exists: %s", e.Name)
}

// Is allows errors.Is to match against ErrFunctionAlreadyExists.
func (e *FunctionAlreadyExistsError) Is(target error) bool {
	return target == ErrFunctionAlreadyExists
}

// NewFunctionNotFoundError creates a FunctionNotFoundError for the qualified name.
func NewFunctionNotFoundError(name string) error {
	return &FunctionNotFoundError{Name: name}
}

// NewFunctionAlreadyExistsError creates a FunctionAlreadyExistsError for the qualified name.
func NewFunctionAlreadyExistsError(name string) error {
	return &FunctionAlreadyExistsError{Name: name}
}
