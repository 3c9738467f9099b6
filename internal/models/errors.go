package models

import (
	"errors"
	"fmt"
)

// Error classes shared by the repository, the asset store and the services.
// Callers classify with errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrValidation          = errors.New("validation failed")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrAssetWrite          = errors.New("asset write failed")
	ErrAssetRead           = errors.New("asset read failed")
	ErrInconsistentState   = errors.New("inconsistent state")
)

// ValidationError names the offending field and the violated constraint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError with a formatted reason
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AssetError reports a failed asset store operation.
// Kind is ErrAssetWrite or ErrAssetRead.
type AssetError struct {
	Kind error
	Op   string
	Key  string
	Err  error
}

func (e *AssetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s %s", e.Kind, e.Op, e.Key)
	}
	return fmt.Sprintf("%v: %s %s: %v", e.Kind, e.Op, e.Key, e.Err)
}

func (e *AssetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewAssetWriteError wraps err as an asset write failure
func NewAssetWriteError(op, key string, err error) *AssetError {
	return &AssetError{Kind: ErrAssetWrite, Op: op, Key: key, Err: err}
}

// NewAssetReadError wraps err as an asset read failure
func NewAssetReadError(op, key string, err error) *AssetError {
	return &AssetError{Kind: ErrAssetRead, Op: op, Key: key, Err: err}
}
