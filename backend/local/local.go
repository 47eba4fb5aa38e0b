// Package local implements a store on top of a directory of the local disk.
// All paths are relative to that directory; nothing outside of it is reachable.
package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"syscall"

	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
)

// Backend is a FilesystemClient working on a local directory.
type Backend struct {
	root       string
	homePrefix string
}

// New returns a Backend rooted at `root`. The directory is created if needed.
func New(root, homePrefix string) (*Backend, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, e.Wrapf(err, "failed to create root %s", absRoot)
	}

	if homePrefix == "" {
		homePrefix = fs.DefaultHomePrefix
	}

	return &Backend{root: absRoot, homePrefix: homePrefix}, nil
}

// Root returns the absolute local directory that "/" maps to.
func (bk *Backend) Root() string {
	return bk.root
}

func (bk *Backend) local(p string) string {
	return filepath.Join(bk.root, filepath.FromSlash(path.Clean("/"+p)))
}

// mapErr translates os errors into the errors of the ie package.
func mapErr(p string, err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err), errors.Is(err, syscall.ENOTDIR):
		return ie.NotFound(p)
	case os.IsPermission(err):
		return ie.PermissionDenied(p, err.Error())
	case errors.Is(err, syscall.ENOTEMPTY):
		// Must come before os.IsExist, which matches ENOTEMPTY too.
		return e.Wrap(ie.ErrNotEmpty, p)
	case os.IsExist(err):
		return ie.AlreadyExists(p)
	case errors.Is(err, syscall.EISDIR):
		return ie.IsADirectory(p)
	default:
		return err
	}
}

func (bk *Backend) status(p string, info os.FileInfo) *fs.FileStatus {
	st := &fs.FileStatus{
		Path:       path.Clean("/" + p),
		IsDir:      info.IsDir(),
		Permission: info.Mode().Perm(),
		ModTime:    info.ModTime(),
	}

	if !st.IsDir {
		st.Length = info.Size()
	}

	st.Owner, st.Group = ownerOf(info)
	return st
}

// Stat implements fs.FilesystemClient.Stat
func (bk *Backend) Stat(ctx context.Context, p string) (*fs.FileStatus, error) {
	info, err := os.Stat(bk.local(p))
	if err != nil {
		return nil, mapErr(p, err)
	}

	return bk.status(p, info), nil
}

// List implements fs.FilesystemClient.List
func (bk *Backend) List(ctx context.Context, p string) ([]fs.FileStatus, error) {
	info, err := os.Stat(bk.local(p))
	if err != nil {
		return nil, mapErr(p, err)
	}

	if !info.IsDir() {
		return []fs.FileStatus{*bk.status(p, info)}, nil
	}

	fd, err := os.Open(bk.local(p))
	if err != nil {
		return nil, mapErr(p, err)
	}

	defer fd.Close()

	infos, err := fd.Readdir(-1)
	if err != nil {
		return nil, mapErr(p, err)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})

	entries := make([]fs.FileStatus, 0, len(infos))
	for _, child := range infos {
		entries = append(entries, *bk.status(path.Join(p, child.Name()), child))
	}

	return entries, nil
}

// Mkdirs implements fs.FilesystemClient.Mkdirs
func (bk *Backend) Mkdirs(ctx context.Context, p string, perm os.FileMode) error {
	err := os.MkdirAll(bk.local(p), perm)
	if err == nil {
		return nil
	}

	// MkdirAll fails with ENOTDIR or EEXIST when a file is in the way.
	if errors.Is(err, syscall.ENOTDIR) || os.IsExist(err) {
		return ie.AlreadyExists(p)
	}

	return mapErr(p, err)
}

// Create implements fs.FilesystemClient.Create
func (bk *Backend) Create(ctx context.Context, p string, r io.Reader, overwrite bool) (n int64, err error) {
	localPath := bk.local(p)
	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		return 0, ie.IsADirectory(p)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), fs.DefaultDirPerm); err != nil {
		return 0, mapErr(path.Dir(p), err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}

	fd, err := os.OpenFile(localPath, flags, 0644)
	if err != nil {
		return 0, mapErr(p, err)
	}

	defer func() {
		if closeErr := fd.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return io.Copy(fd, r)
}

// Open implements fs.FilesystemClient.Open
func (bk *Backend) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	localPath := bk.local(p)
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, mapErr(p, err)
	}

	if info.IsDir() {
		return nil, ie.IsADirectory(p)
	}

	fd, err := os.Open(localPath)
	if err != nil {
		return nil, mapErr(p, err)
	}

	return fd, nil
}

// Delete implements fs.FilesystemClient.Delete
func (bk *Backend) Delete(ctx context.Context, p string, recursive bool) error {
	if path.Clean("/"+p) == "/" {
		return ie.ErrRoot
	}

	localPath := bk.local(p)
	if _, err := os.Lstat(localPath); err != nil {
		return mapErr(p, err)
	}

	if recursive {
		return mapErr(p, os.RemoveAll(localPath))
	}

	return mapErr(p, os.Remove(localPath))
}

// Rename implements fs.FilesystemClient.Rename
func (bk *Backend) Rename(ctx context.Context, src, dst string) error {
	srcPath, dstPath := bk.local(src), bk.local(dst)
	if _, err := os.Lstat(srcPath); err != nil {
		return mapErr(src, err)
	}

	if _, err := os.Lstat(dstPath); err == nil {
		return ie.AlreadyExists(dst)
	}

	info, err := os.Stat(filepath.Dir(dstPath))
	if err != nil {
		return mapErr(path.Dir(dst), err)
	}

	if !info.IsDir() {
		return e.Wrap(ie.ErrNotADirectory, path.Dir(dst))
	}

	return mapErr(src, os.Rename(srcPath, dstPath))
}

// SetPermission implements fs.FilesystemClient.SetPermission
func (bk *Backend) SetPermission(ctx context.Context, p string, perm os.FileMode) error {
	return mapErr(p, os.Chmod(bk.local(p), perm.Perm()))
}

// SetOwner implements fs.FilesystemClient.SetOwner
func (bk *Backend) SetOwner(ctx context.Context, p string, owner, group string) error {
	localPath := bk.local(p)
	if _, err := os.Lstat(localPath); err != nil {
		return mapErr(p, err)
	}

	uid, gid, err := lookupIDs(owner, group)
	if err != nil {
		return err
	}

	return mapErr(p, os.Lchown(localPath, uid, gid))
}

// HomeDirectory implements fs.FilesystemClient.HomeDirectory
func (bk *Backend) HomeDirectory(ctx context.Context, user string) (string, error) {
	return path.Join(bk.homePrefix, user), nil
}

// Close implements fs.FilesystemClient.Close
func (bk *Backend) Close() error {
	return nil
}
