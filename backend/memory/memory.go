// Package memory implements an in-process store that keeps everything in RAM.
// It is mostly useful for tests, but it models owners, groups and mode bits
// well enough to exercise permission handling.
package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
)

var (
	// ErrOffline is returned (wrapped in a ConnectivityError) by all
	// operations while the backend is switched offline.
	ErrOffline = errors.New("backend is in offline mode")
)

const (
	// DefaultSuperuser may change anything regardless of ownership.
	DefaultSuperuser = "fsh"
)

type node struct {
	isDir    bool
	data     []byte
	perm     os.FileMode
	owner    string
	group    string
	modTime  time.Time
	children map[string]*node
}

// tree is shared between a Backend and all of its AsUser views.
type tree struct {
	mu     sync.RWMutex
	root   *node
	online bool
}

// Backend is a FilesystemClient that operates only in memory
// and does not use any resources outliving the own process.
type Backend struct {
	*tree

	user       string
	group      string
	superuser  string
	homePrefix string
}

// Option configures a Backend.
type Option func(bk *Backend)

// WithUser sets the user that all operations are done as.
func WithUser(user string) Option {
	return func(bk *Backend) {
		bk.user = user
		bk.group = user
	}
}

// WithSuperuser sets the name of the user that bypasses permission checks.
func WithSuperuser(superuser string) Option {
	return func(bk *Backend) {
		bk.superuser = superuser
	}
}

// WithHomePrefix sets the parent directory of all home directories.
func WithHomePrefix(prefix string) Option {
	return func(bk *Backend) {
		bk.homePrefix = prefix
	}
}

// New returns an empty store with a world-writable root.
func New(opts ...Option) *Backend {
	bk := &Backend{
		tree:       &tree{online: true},
		user:       DefaultSuperuser,
		group:      DefaultSuperuser,
		superuser:  DefaultSuperuser,
		homePrefix: fs.DefaultHomePrefix,
	}

	for _, opt := range opts {
		opt(bk)
	}

	bk.root = &node{
		isDir:    true,
		perm:     0777,
		owner:    bk.superuser,
		group:    bk.superuser,
		modTime:  time.Now(),
		children: make(map[string]*node),
	}

	return bk
}

// AsUser returns a view on the same tree that acts as `user`.
// Permission checks and ownership of new nodes follow `user`.
func (bk *Backend) AsUser(user string) fs.FilesystemClient {
	view := *bk
	view.user = user
	view.group = user
	return &view
}

// SetOnline switches the backend on- or offline.
// While offline, every operation fails with a ConnectivityError.
func (bk *Backend) SetOnline(online bool) {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	bk.online = online
}

// IsOnline tells if the backend currently accepts requests.
func (bk *Backend) IsOnline() bool {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	return bk.online
}

func (bk *Backend) checkOnline() error {
	if !bk.online {
		return ie.Connectivity("mem", ErrOffline)
	}

	return nil
}

func split(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}

	return strings.Split(p, "/")
}

// lookup returns the node at `p` or nil. Must be called with mu held.
func (bk *Backend) lookup(p string) *node {
	curr := bk.root
	for _, elem := range split(p) {
		if !curr.isDir {
			return nil
		}

		child, ok := curr.children[elem]
		if !ok {
			return nil
		}

		curr = child
	}

	return curr
}

func (bk *Backend) canWrite(nd *node) bool {
	switch {
	case bk.user == bk.superuser:
		return true
	case nd.owner == bk.user:
		return nd.perm&0200 != 0
	case nd.group == bk.group:
		return nd.perm&0020 != 0
	default:
		return nd.perm&0002 != 0
	}
}

func (bk *Backend) status(p string, nd *node) *fs.FileStatus {
	return &fs.FileStatus{
		Path:       path.Clean("/" + p),
		Length:     int64(len(nd.data)),
		IsDir:      nd.isDir,
		Permission: nd.perm,
		Owner:      nd.owner,
		Group:      nd.group,
		ModTime:    nd.modTime,
	}
}

func (bk *Backend) newNode(isDir bool, perm os.FileMode) *node {
	nd := &node{
		isDir:   isDir,
		perm:    perm,
		owner:   bk.user,
		group:   bk.group,
		modTime: time.Now(),
	}

	if isDir {
		nd.children = make(map[string]*node)
	}

	return nd
}

// Stat implements fs.FilesystemClient.Stat
func (bk *Backend) Stat(ctx context.Context, p string) (*fs.FileStatus, error) {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	if err := bk.checkOnline(); err != nil {
		return nil, err
	}

	nd := bk.lookup(p)
	if nd == nil {
		return nil, ie.NotFound(p)
	}

	return bk.status(p, nd), nil
}

// List implements fs.FilesystemClient.List
func (bk *Backend) List(ctx context.Context, p string) ([]fs.FileStatus, error) {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	if err := bk.checkOnline(); err != nil {
		return nil, err
	}

	nd := bk.lookup(p)
	if nd == nil {
		return nil, ie.NotFound(p)
	}

	if !nd.isDir {
		return []fs.FileStatus{*bk.status(p, nd)}, nil
	}

	names := make([]string, 0, len(nd.children))
	for name := range nd.children {
		names = append(names, name)
	}

	sort.Strings(names)

	entries := make([]fs.FileStatus, 0, len(names))
	for _, name := range names {
		entries = append(entries, *bk.status(path.Join(p, name), nd.children[name]))
	}

	return entries, nil
}

// mkdirs creates all directories up to `p`. Must be called with mu held.
func (bk *Backend) mkdirs(p string, perm os.FileMode) (*node, error) {
	curr := bk.root
	elems := split(p)

	for idx, elem := range elems {
		child, ok := curr.children[elem]
		if ok {
			if !child.isDir {
				return nil, ie.AlreadyExists("/" + strings.Join(elems[:idx+1], "/"))
			}

			curr = child
			continue
		}

		if !bk.canWrite(curr) {
			return nil, ie.PermissionDenied("/"+strings.Join(elems[:idx], "/"), "no write access")
		}

		child = bk.newNode(true, perm)
		curr.children[elem] = child
		curr.modTime = child.modTime
		curr = child
	}

	return curr, nil
}

// Mkdirs implements fs.FilesystemClient.Mkdirs
func (bk *Backend) Mkdirs(ctx context.Context, p string, perm os.FileMode) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	if err := bk.checkOnline(); err != nil {
		return err
	}

	_, err := bk.mkdirs(p, perm)
	return err
}

// Create implements fs.FilesystemClient.Create
func (bk *Backend) Create(ctx context.Context, p string, r io.Reader, overwrite bool) (int64, error) {
	// Read outside of the lock; `r` might be slow.
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return 0, e.Wrap(err, "read input")
	}

	bk.mu.Lock()
	defer bk.mu.Unlock()

	if err := bk.checkOnline(); err != nil {
		return 0, err
	}

	dirname, basename := path.Split(path.Clean("/" + p))
	if basename == "" {
		return 0, ie.IsADirectory(p)
	}

	parent, err := bk.mkdirs(dirname, fs.DefaultDirPerm)
	if err != nil {
		return 0, err
	}

	if old, ok := parent.children[basename]; ok {
		if old.isDir {
			return 0, ie.IsADirectory(p)
		}

		if !overwrite {
			return 0, ie.AlreadyExists(p)
		}
	}

	if !bk.canWrite(parent) {
		return 0, ie.PermissionDenied(dirname, "no write access")
	}

	nd := bk.newNode(false, 0644)
	nd.data = data
	parent.children[basename] = nd
	parent.modTime = nd.modTime
	return int64(len(data)), nil
}

// Open implements fs.FilesystemClient.Open
func (bk *Backend) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	if err := bk.checkOnline(); err != nil {
		return nil, err
	}

	nd := bk.lookup(p)
	if nd == nil {
		return nil, ie.NotFound(p)
	}

	if nd.isDir {
		return nil, ie.IsADirectory(p)
	}

	// data is never modified in place, only replaced.
	return ioutil.NopCloser(bytes.NewReader(nd.data)), nil
}

func (bk *Backend) checkRemovable(p string, nd *node) error {
	if !nd.isDir || len(nd.children) == 0 {
		return nil
	}

	if !bk.canWrite(nd) {
		return ie.PermissionDenied(p, "no write access")
	}

	for name, child := range nd.children {
		if err := bk.checkRemovable(path.Join(p, name), child); err != nil {
			return err
		}
	}

	return nil
}

// Delete implements fs.FilesystemClient.Delete
func (bk *Backend) Delete(ctx context.Context, p string, recursive bool) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	if err := bk.checkOnline(); err != nil {
		return err
	}

	dirname, basename := path.Split(path.Clean("/" + p))
	if basename == "" {
		return ie.ErrRoot
	}

	parent := bk.lookup(dirname)
	if parent == nil || !parent.isDir {
		return ie.NotFound(p)
	}

	nd, ok := parent.children[basename]
	if !ok {
		return ie.NotFound(p)
	}

	if nd.isDir && len(nd.children) > 0 && !recursive {
		return e.Wrap(ie.ErrNotEmpty, p)
	}

	if !bk.canWrite(parent) {
		return ie.PermissionDenied(dirname, "no write access")
	}

	// Check everything first, so we either remove all or nothing.
	if err := bk.checkRemovable(p, nd); err != nil {
		return err
	}

	delete(parent.children, basename)
	parent.modTime = time.Now()
	return nil
}

// Rename implements fs.FilesystemClient.Rename
func (bk *Backend) Rename(ctx context.Context, src, dst string) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	if err := bk.checkOnline(); err != nil {
		return err
	}

	src, dst = path.Clean("/"+src), path.Clean("/"+dst)
	if src == "/" {
		return ie.ErrRoot
	}

	if strings.HasPrefix(dst, src+"/") {
		return e.Errorf("cannot move %s below itself (%s)", src, dst)
	}

	srcDir, srcBase := path.Split(src)
	srcParent := bk.lookup(srcDir)
	if srcParent == nil || srcParent.children[srcBase] == nil {
		return ie.NotFound(src)
	}

	if bk.lookup(dst) != nil {
		return ie.AlreadyExists(dst)
	}

	dstDir, dstBase := path.Split(dst)
	dstParent := bk.lookup(dstDir)
	if dstParent == nil {
		return ie.NotFound(dstDir)
	}

	if !dstParent.isDir {
		return e.Wrap(ie.ErrNotADirectory, dstDir)
	}

	if !bk.canWrite(srcParent) {
		return ie.PermissionDenied(srcDir, "no write access")
	}

	if !bk.canWrite(dstParent) {
		return ie.PermissionDenied(dstDir, "no write access")
	}

	dstParent.children[dstBase] = srcParent.children[srcBase]
	delete(srcParent.children, srcBase)
	now := time.Now()
	srcParent.modTime, dstParent.modTime = now, now
	return nil
}

// SetPermission implements fs.FilesystemClient.SetPermission
func (bk *Backend) SetPermission(ctx context.Context, p string, perm os.FileMode) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	if err := bk.checkOnline(); err != nil {
		return err
	}

	nd := bk.lookup(p)
	if nd == nil {
		return ie.NotFound(p)
	}

	if bk.user != bk.superuser && bk.user != nd.owner {
		return ie.PermissionDenied(p, "not the owner")
	}

	nd.perm = perm.Perm()
	return nil
}

// SetOwner implements fs.FilesystemClient.SetOwner
func (bk *Backend) SetOwner(ctx context.Context, p string, owner, group string) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	if err := bk.checkOnline(); err != nil {
		return err
	}

	nd := bk.lookup(p)
	if nd == nil {
		return ie.NotFound(p)
	}

	// Like HDFS: only the superuser may give files away,
	// the owner may change the group.
	isSuper := bk.user == bk.superuser
	if owner != "" && owner != nd.owner && !isSuper {
		return ie.PermissionDenied(p, "only the superuser may change the owner")
	}

	if group != "" && !isSuper && bk.user != nd.owner {
		return ie.PermissionDenied(p, "not the owner")
	}

	if owner != "" {
		nd.owner = owner
	}

	if group != "" {
		nd.group = group
	}

	return nil
}

// HomeDirectory implements fs.FilesystemClient.HomeDirectory
func (bk *Backend) HomeDirectory(ctx context.Context, user string) (string, error) {
	if user == "" {
		user = bk.user
	}

	return path.Join(bk.homePrefix, user), nil
}

// Close implements fs.FilesystemClient.Close
func (bk *Backend) Close() error {
	return nil
}
