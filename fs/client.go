package fs

import (
	"context"
	"io"
	"os"
	"path"
	"time"
)

// FileStatus describes a single node in a store.
type FileStatus struct {
	// Path is the absolute path of the node inside its store.
	Path       string
	Length     int64
	IsDir      bool
	Permission os.FileMode
	Owner      string
	Group      string
	ModTime    time.Time
}

// Name returns the last element of the status' path.
func (st *FileStatus) Name() string {
	return path.Base(st.Path)
}

// ContentSummary is the accumulated size of a subtree.
type ContentSummary struct {
	Length         int64
	FileCount      int64
	DirectoryCount int64
}

// FilesystemClient is the interface that needs to be implemented by every
// store that a Handle can talk to. All paths given to a client are absolute,
// cleaned and do not carry scheme or authority; the Handle takes care of that.
//
// Implementations must be safe for concurrent use and must report errors
// using the constructors of the errors package (NotFound, AlreadyExists,
// PermissionDenied, IsADirectory, Connectivity).
type FilesystemClient interface {
	// Stat returns the status of `path` or a NotFound error.
	Stat(ctx context.Context, path string) (*FileStatus, error)

	// List returns the direct children of the directory at `path`.
	// A file lists itself. The order is not specified.
	List(ctx context.Context, path string) ([]FileStatus, error)

	// Mkdirs creates `path` and all missing parents with `perm`.
	// Existing directories are not touched; a file in the way is an
	// AlreadyExists error.
	Mkdirs(ctx context.Context, path string, perm os.FileMode) error

	// Create writes all of `r` to a file at `path` and returns the number
	// of bytes written. Parent directories are created as needed.
	// If the file exists and `overwrite` is false, AlreadyExists is returned.
	Create(ctx context.Context, path string, r io.Reader, overwrite bool) (int64, error)

	// Open returns the content of the file at `path`.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes `path`. Non-empty directories need `recursive`.
	Delete(ctx context.Context, path string, recursive bool) error

	// Rename moves `src` to `dst`. `dst` may not exist.
	Rename(ctx context.Context, src, dst string) error

	// SetPermission changes the mode bits of a single node.
	SetPermission(ctx context.Context, path string, perm os.FileMode) error

	// SetOwner changes owner and/or group of a single node.
	// Empty strings leave the respective value untouched.
	SetOwner(ctx context.Context, path string, owner, group string) error

	// HomeDirectory returns the home of `user` as seen by the store.
	HomeDirectory(ctx context.Context, user string) (string, error)

	// Close releases all resources of the client.
	Close() error
}

// UserScoper is implemented by clients that can act on behalf of another
// user while sharing the same store. Clients returned by AsUser must not
// be closed; the store is released by closing the original client.
type UserScoper interface {
	AsUser(user string) FilesystemClient
}

// ForUser returns `client` acting as `user` if the client supports it.
// Otherwise, or if `user` is empty, `client` itself is returned.
func ForUser(client FilesystemClient, user string) FilesystemClient {
	if scoper, ok := client.(UserScoper); ok && user != "" {
		return scoper.AsUser(user)
	}

	return client
}
