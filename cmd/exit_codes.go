package cmd

const (
	// Success is the same as EXIT_SUCCESS in C
	Success = iota

	// BadArgs passed to cli; not our fault.
	BadArgs

	// NotFound means that a path did not exist.
	NotFound

	// AlreadyExists means that a path existed although it should not.
	AlreadyExists

	// PermissionDenied means the store refused the operation for this user.
	PermissionDenied

	// Unreachable means the store could not be reached (network, offline).
	Unreachable

	// TestFailed is returned by `test` when the path did not match.
	TestFailed

	// UnknownError is an uncategorized error, probably our fault.
	UnknownError

	// IsADirectory means a file was expected, but a directory was given.
	IsADirectory
)
