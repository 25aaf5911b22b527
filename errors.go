// Package gitmirror provides sentinel errors for mirror operations.
// All errors can be checked using errors.Is() for programmatic handling.
package gitmirror

import (
	"errors"
	"fmt"
)

// ErrWorkspace is returned when the local workspace directory cannot be
// established (cannot be created, or exists but is not a directory).
// It is fatal to the calling operation and must not be retried automatically.
var ErrWorkspace = errors.New("workspace unavailable")

// ErrSync is returned when fetch, pull or the initial checkout failed and the
// recovery fallback was disabled or failed as well.
var ErrSync = errors.New("synchronization failed")

// ErrRecovery is returned when the recovery fallback itself failed. Update
// reports it together with ErrSync.
var ErrRecovery = errors.New("recovery failed")

// ErrCheckoutConflict is returned when a checkout in conflict-failing mode
// would overwrite local modifications. Nothing is written in that case.
var ErrCheckoutConflict = errors.New("checkout would overwrite local changes")

// ErrInvalidPath is returned when a mutation is given an absolute path or a
// path that escapes the workspace root.
var ErrInvalidPath = errors.New("invalid path")

// ErrMissingFile is returned when a removal target is absent from the workspace.
var ErrMissingFile = errors.New("file does not exist")

// ErrTagExists is returned when attempting to create a tag that already exists.
var ErrTagExists = errors.New("tag already exists")

// ErrTagMissing is returned when a tag name does not resolve.
var ErrTagMissing = errors.New("tag does not exist")

// ErrUnknownRevision is returned when a revision reference cannot be resolved
// to a commit.
var ErrUnknownRevision = errors.New("unknown revision")

// ErrPathNotFound is returned by Read when the path does not exist in the
// tree of the requested revision.
var ErrPathNotFound = errors.New("path not found")

// ErrInvalidRef is returned when a reference, branch or tag name is malformed.
var ErrInvalidRef = errors.New("invalid reference")

// ErrInvalidOptions is returned when Options or another call argument is
// missing or out of range.
var ErrInvalidOptions = errors.New("invalid options")

// ErrInconsistentWorkspace is returned when an export could not restore the
// working directory to the recorded HEAD after a detour checkout.
var ErrInconsistentWorkspace = errors.New("workspace inconsistent with HEAD")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// ErrorCode is a stable, string-typed classification of an error.
type ErrorCode string

// Error codes reported by CodeOf.
const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeUnavailable     ErrorCode = "UNAVAILABLE"
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"
	CodeInternal        ErrorCode = "INTERNAL"
)

var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrRecovery, CodeExecutionFailed},
	{ErrWorkspace, CodeUnavailable},
	{ErrSync, CodeUnavailable},
	{ErrCheckoutConflict, CodeConflict},
	{ErrInconsistentWorkspace, CodeConflict},
	{ErrInvalidPath, CodeInvalidInput},
	{ErrInvalidRef, CodeInvalidInput},
	{ErrInvalidOptions, CodeInvalidInput},
	{ErrMissingFile, CodeNotFound},
	{ErrTagMissing, CodeNotFound},
	{ErrUnknownRevision, CodeNotFound},
	{ErrPathNotFound, CodeNotFound},
	{ErrTagExists, CodeAlreadyExists},
}

// CodeOf classifies err. It returns an empty code for nil and CodeInternal
// for errors that do not wrap one of the package sentinels. When err wraps
// several sentinels the first one in the table wins.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range codeTable {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
