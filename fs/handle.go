// Package fs implements the filesystem handle: a thin, concurrency safe
// wrapper around a FilesystemClient that qualifies every path against its
// working directory before dispatching it to the store.
package fs

import (
	"context"
	"io"
	"os"
	"os/user"
	"path"
	"sort"
	"sync"

	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fspath"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultHomePrefix is the parent of all home directories,
	// unless the store tells us otherwise.
	DefaultHomePrefix = "/user"

	// DefaultDirPerm is used for directories created by the handle.
	DefaultDirPerm = os.FileMode(0755)
)

// Handle is a configured connection to a single store.
// It is safe to use a Handle from several goroutines.
type Handle struct {
	mu sync.RWMutex

	client     FilesystemClient
	root       fspath.Path
	user       string
	homePrefix string
	home       fspath.Path
	wd         fspath.Path
	overwrite  bool
}

// Option configures a Handle in New.
type Option func(hd *Handle)

// WithUser sets the acting user. The default is the current OS user.
func WithUser(name string) Option {
	return func(hd *Handle) {
		if name != "" {
			hd.user = name
		}
	}
}

// WithHome sets the home directory explicitly,
// instead of asking the store for it.
func WithHome(home string) Option {
	return func(hd *Handle) {
		if home != "" {
			hd.home = hd.root.WithPath(home)
		}
	}
}

// WithHomePrefix sets the fallback parent of the home directory.
func WithHomePrefix(prefix string) Option {
	return func(hd *Handle) {
		if prefix != "" {
			hd.homePrefix = prefix
		}
	}
}

// WithOverwrite allows CopyFromLocal to replace existing files.
func WithOverwrite(overwrite bool) Option {
	return func(hd *Handle) {
		hd.overwrite = overwrite
	}
}

// CurrentUser returns the name of the user running this process.
func CurrentUser() string {
	if usr, err := user.Current(); err == nil && usr.Username != "" {
		return usr.Username
	}

	return "fsh"
}

// New creates a handle for the store at `uri` that talks over `client`.
// Only scheme and authority of `uri` are used.
func New(ctx context.Context, client FilesystemClient, uri fspath.Path, opts ...Option) (*Handle, error) {
	if uri.Scheme() == "" {
		return nil, e.Errorf("store uri needs a scheme: %s", uri)
	}

	hd := &Handle{
		client:     client,
		root:       fspath.New(uri.Scheme(), uri.Authority(), "/"),
		user:       CurrentUser(),
		homePrefix: DefaultHomePrefix,
	}

	for _, opt := range opts {
		opt(hd)
	}

	if hd.home.IsZero() {
		home, err := client.HomeDirectory(ctx, hd.user)
		if err != nil {
			// The store might be down right now; that should not stop
			// anyone from creating a handle. Later calls will fail anyway.
			home = path.Join(hd.homePrefix, hd.user)
			log.Warningf("failed to query home of %s, assuming %s: %v", hd.user, home, err)
		}

		hd.home = hd.root.WithPath(home)
	}

	hd.wd = hd.home
	log.WithFields(log.Fields{
		"uri":  hd.root.String(),
		"user": hd.user,
		"home": hd.home.Path(),
	}).Debug("opened filesystem handle")

	return hd, nil
}

// Client returns the client that the handle dispatches to.
func (hd *Handle) Client() FilesystemClient {
	return hd.client
}

// URI returns the qualified root of the store.
func (hd *Handle) URI() fspath.Path {
	return hd.root
}

// User returns the acting user.
func (hd *Handle) User() string {
	return hd.user
}

// Overwrite tells if CopyFromLocal may replace existing files.
func (hd *Handle) Overwrite() bool {
	return hd.overwrite
}

// HomeDirectory returns the home of the acting user.
func (hd *Handle) HomeDirectory() fspath.Path {
	return hd.home
}

// WorkingDirectory returns the directory relative paths are resolved against.
func (hd *Handle) WorkingDirectory() fspath.Path {
	hd.mu.RLock()
	defer hd.mu.RUnlock()

	return hd.wd
}

// SetWorkingDirectory changes the working directory.
// Relative paths are resolved against the old working directory.
// The directory does not need to exist.
func (hd *Handle) SetWorkingDirectory(p fspath.Path) error {
	qp := hd.MakeQualified(p)
	if err := hd.checkStore(qp); err != nil {
		return err
	}

	hd.mu.Lock()
	hd.wd = qp
	hd.mu.Unlock()
	return nil
}

// MakeQualified resolves `p` against the working directory and the
// scheme and authority of the store.
func (hd *Handle) MakeQualified(p fspath.Path) fspath.Path {
	return p.Qualify(hd.root.Scheme(), hd.root.Authority(), hd.WorkingDirectory())
}

// Resolve parses `s` and qualifies it.
func (hd *Handle) Resolve(s string) (fspath.Path, error) {
	p, err := fspath.Parse(s)
	if err != nil {
		return fspath.Path{}, e.Wrapf(err, "%q", s)
	}

	qp := hd.MakeQualified(p)
	return qp, hd.checkStore(qp)
}

func (hd *Handle) checkStore(qp fspath.Path) error {
	if fspath.CanonicalScheme(qp.Scheme()) != fspath.CanonicalScheme(hd.root.Scheme()) ||
		qp.Authority() != hd.root.Authority() {
		return e.Errorf("wrong filesystem: %s, expected %s", qp, hd.root)
	}

	return nil
}

// dispatch qualifies `p` and returns the path part as seen by the client.
func (hd *Handle) dispatch(op string, p fspath.Path) (string, error) {
	qp := hd.MakeQualified(p)
	if err := hd.checkStore(qp); err != nil {
		return "", e.Wrap(err, op)
	}

	log.WithFields(log.Fields{"op": op, "path": qp.Path()}).Debug("dispatch")
	return qp.Path(), nil
}

// Exists tells if there is a node at `p`.
// A missing node is never an error, an unreachable store always is.
func (hd *Handle) Exists(ctx context.Context, p fspath.Path) (bool, error) {
	_, err := hd.Stat(ctx, p)
	if ie.IsNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// Stat returns the status of the node at `p`.
func (hd *Handle) Stat(ctx context.Context, p fspath.Path) (*FileStatus, error) {
	cp, err := hd.dispatch("stat", p)
	if err != nil {
		return nil, err
	}

	st, err := hd.client.Stat(ctx, cp)
	if err != nil {
		return nil, e.Wrap(err, "stat")
	}

	return st, nil
}

// Length returns the size of the file at `p` in bytes.
// Directories are reported as missing files.
func (hd *Handle) Length(ctx context.Context, p fspath.Path) (int64, error) {
	st, err := hd.Stat(ctx, p)
	if err != nil {
		return 0, err
	}

	if st.IsDir {
		return 0, e.Wrap(ie.NotFound(st.Path), "length: is a directory")
	}

	return st.Length, nil
}

// List returns the children of the directory at `p`, sorted by name.
func (hd *Handle) List(ctx context.Context, p fspath.Path) ([]FileStatus, error) {
	cp, err := hd.dispatch("list", p)
	if err != nil {
		return nil, err
	}

	entries, err := hd.client.List(ctx, cp)
	if err != nil {
		return nil, e.Wrap(err, "list")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return entries, nil
}

// Mkdirs creates `p` and all missing parents.
func (hd *Handle) Mkdirs(ctx context.Context, p fspath.Path, perm os.FileMode) error {
	cp, err := hd.dispatch("mkdirs", p)
	if err != nil {
		return err
	}

	return e.Wrap(hd.client.Mkdirs(ctx, cp, perm), "mkdirs")
}

// Create writes `r` to a new file at `p`.
func (hd *Handle) Create(ctx context.Context, p fspath.Path, r io.Reader, overwrite bool) (int64, error) {
	cp, err := hd.dispatch("create", p)
	if err != nil {
		return 0, err
	}

	n, err := hd.client.Create(ctx, cp, r, overwrite)
	return n, e.Wrap(err, "create")
}

// Open returns a reader for the file at `p`. The caller has to close it.
func (hd *Handle) Open(ctx context.Context, p fspath.Path) (io.ReadCloser, error) {
	cp, err := hd.dispatch("open", p)
	if err != nil {
		return nil, err
	}

	rc, err := hd.client.Open(ctx, cp)
	if err != nil {
		return nil, e.Wrap(err, "open")
	}

	return rc, nil
}

// Delete removes `p`; directories with children need `recursive`.
func (hd *Handle) Delete(ctx context.Context, p fspath.Path, recursive bool) error {
	cp, err := hd.dispatch("delete", p)
	if err != nil {
		return err
	}

	if cp == "/" {
		return e.Wrap(ie.ErrRoot, "delete")
	}

	return e.Wrap(hd.client.Delete(ctx, cp, recursive), "delete")
}

// Rename moves `src` to `dst`.
func (hd *Handle) Rename(ctx context.Context, src, dst fspath.Path) error {
	csrc, err := hd.dispatch("rename", src)
	if err != nil {
		return err
	}

	cdst, err := hd.dispatch("rename", dst)
	if err != nil {
		return err
	}

	return e.Wrap(hd.client.Rename(ctx, csrc, cdst), "rename")
}

// SetPermission changes the mode of a single node.
func (hd *Handle) SetPermission(ctx context.Context, p fspath.Path, perm os.FileMode) error {
	cp, err := hd.dispatch("chmod", p)
	if err != nil {
		return err
	}

	return e.Wrap(hd.client.SetPermission(ctx, cp, perm.Perm()), "chmod")
}

// SetOwner changes owner and group of a single node.
func (hd *Handle) SetOwner(ctx context.Context, p fspath.Path, owner, group string) error {
	cp, err := hd.dispatch("chown", p)
	if err != nil {
		return err
	}

	return e.Wrap(hd.client.SetOwner(ctx, cp, owner, group), "chown")
}

// Close closes the underlying client.
func (hd *Handle) Close() error {
	return hd.client.Close()
}
