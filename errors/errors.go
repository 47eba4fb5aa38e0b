// Package errors defines the error taxonomy shared by all layers of fsh.
// Callers should use the Is* predicates instead of comparing errors directly,
// since every layer wraps errors with some context on the way up.
package errors

import (
	"errors"
	"fmt"

	e "github.com/pkg/errors"
)

var (
	// ErrNotADirectory is returned when a directory operation hits a file.
	ErrNotADirectory = errors.New("not a directory")
	// ErrIsDir is returned by non-recursive operations that were given a directory.
	ErrIsDir = errors.New("is a directory, use a recursive operation")
	// ErrNotEmpty is returned when removing a non-empty directory without recursion.
	ErrNotEmpty = errors.New("directory is not empty")
	// ErrInvalidPath is returned when a path cannot be parsed.
	ErrInvalidPath = errors.New("invalid path")
	// ErrRoot is returned when an operation may not touch the root directory.
	ErrRoot = errors.New("operation not permitted on root")
)

//////////////

type errNotFound struct {
	path string
}

func (err *errNotFound) Error() string {
	return "no such file or directory: " + err.path
}

// NotFound creates a new error that reports `path` as missing.
func NotFound(path string) error {
	return &errNotFound{path}
}

// IsNotFound asserts that `err` means that a path could not be found.
func IsNotFound(err error) bool {
	var target *errNotFound
	return as(err, &target)
}

//////////////

type errAlreadyExists struct {
	path string
}

func (err *errAlreadyExists) Error() string {
	return "file exists: " + err.path
}

// AlreadyExists reports that `path` exists, but should not.
func AlreadyExists(path string) error {
	return &errAlreadyExists{path}
}

// IsAlreadyExists checks if `err` was created by AlreadyExists.
func IsAlreadyExists(err error) bool {
	var target *errAlreadyExists
	return as(err, &target)
}

//////////////

type errPermission struct {
	path   string
	reason string
}

func (err *errPermission) Error() string {
	if err.reason == "" {
		return "permission denied: " + err.path
	}

	return fmt.Sprintf("permission denied: %s (%s)", err.path, err.reason)
}

// PermissionDenied reports that the caller may not modify `path`.
// `reason` is optional and may be empty.
func PermissionDenied(path, reason string) error {
	return &errPermission{path: path, reason: reason}
}

// IsPermission checks if `err` was created by PermissionDenied.
func IsPermission(err error) bool {
	var target *errPermission
	return as(err, &target)
}

//////////////

type errIsADirectory struct {
	path string
}

func (err *errIsADirectory) Error() string {
	return "is a directory: " + err.path
}

// IsADirectory reports that `path` is a directory where a file was expected.
func IsADirectory(path string) error {
	return &errIsADirectory{path}
}

// IsDirectoryError checks if `err` was created by IsADirectory.
func IsDirectoryError(err error) bool {
	var target *errIsADirectory
	return as(err, &target)
}

//////////////

// ConnectivityError is returned when the remote store could not be reached.
// It is the only error class that is considered transient.
type ConnectivityError struct {
	Addr  string
	Cause error
}

func (err *ConnectivityError) Error() string {
	if err.Cause == nil {
		return "cannot reach " + err.Addr
	}

	return fmt.Sprintf("cannot reach %s: %v", err.Addr, err.Cause)
}

// Unwrap returns the underlying transport error.
func (err *ConnectivityError) Unwrap() error {
	return err.Cause
}

// Connectivity creates a new ConnectivityError for `addr`.
func Connectivity(addr string, cause error) error {
	return &ConnectivityError{Addr: addr, Cause: cause}
}

// IsConnectivity checks if `err` means that the store was unreachable.
func IsConnectivity(err error) bool {
	var target *ConnectivityError
	return as(err, &target)
}

// IsLogical is true for errors that describe the state of the store
// and will not go away by trying again.
func IsLogical(err error) bool {
	return IsNotFound(err) ||
		IsAlreadyExists(err) ||
		IsPermission(err) ||
		IsDirectoryError(err)
}

// as looks through both pkg/errors causes and Unwrap() chains.
func as(err error, target interface{}) bool {
	if err == nil {
		return false
	}

	if errors.As(err, target) {
		return true
	}

	return errors.As(e.Cause(err), target)
}
