// Package shell implements shell-like verbs on top of a filesystem handle.
//
// Every verb takes paths as strings, resolves them against the working
// directory of the handle and expands glob patterns. Recursive verbs stop
// at the first error; the tree is left partially changed in that case.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/fspath"
	log "github.com/sirupsen/logrus"
)

// Shell offers shell verbs for a single handle.
// It has no state of its own and is as concurrency safe as the handle.
type Shell struct {
	hd *fs.Handle
}

// New returns a shell working on `hd`.
func New(hd *fs.Handle) *Shell {
	return &Shell{hd: hd}
}

// Handle returns the handle the shell operates on.
func (sh *Shell) Handle() *fs.Handle {
	return sh.hd
}

// expand resolves `pattern` and returns all matching nodes.
func (sh *Shell) expand(ctx context.Context, pattern string) ([]fs.FileStatus, error) {
	p, err := sh.hd.Resolve(pattern)
	if err != nil {
		return nil, err
	}

	return sh.hd.Glob(ctx, p)
}

// Test tells if `p` exists. It fails only if the store cannot be asked.
func (sh *Shell) Test(ctx context.Context, p string) (bool, error) {
	qp, err := sh.hd.Resolve(p)
	if err != nil {
		return false, err
	}

	return sh.hd.Exists(ctx, qp)
}

// TestOptions select additional conditions for TestWith.
type TestOptions struct {
	// Zero requires a file of length zero.
	Zero bool
	// Directory requires a directory.
	Directory bool
}

// TestWith is like Test, but additionally checks `opts`.
func (sh *Shell) TestWith(ctx context.Context, p string, opts TestOptions) (bool, error) {
	qp, err := sh.hd.Resolve(p)
	if err != nil {
		return false, err
	}

	st, err := sh.hd.Stat(ctx, qp)
	if ie.IsNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if opts.Directory && !st.IsDir {
		return false, nil
	}

	if opts.Zero && (st.IsDir || st.Length != 0) {
		return false, nil
	}

	return true, nil
}

// Mkdir creates `p` and all missing parents.
// Existing directories are fine; anything else in the way is not.
func (sh *Shell) Mkdir(ctx context.Context, p string) error {
	qp, err := sh.hd.Resolve(p)
	if err != nil {
		return err
	}

	st, err := sh.hd.Stat(ctx, qp)
	if err == nil {
		if st.IsDir {
			return nil
		}

		return ie.AlreadyExists(qp.String())
	}

	if !ie.IsNotFound(err) {
		return err
	}

	return sh.hd.Mkdirs(ctx, qp, fs.DefaultDirPerm)
}

// CatTo writes the content of all files matching `p` to `w`.
func (sh *Shell) CatTo(ctx context.Context, w io.Writer, p string) error {
	matches, err := sh.expand(ctx, p)
	if err != nil {
		return err
	}

	for idx := range matches {
		if err := sh.catOne(ctx, w, &matches[idx], false); err != nil {
			return err
		}
	}

	return nil
}

// Cat returns the content of all files matching `p`.
// Directories are an error.
func (sh *Shell) Cat(ctx context.Context, p string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := sh.CatTo(ctx, buf, p); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

var gzipMagic = []byte{0x1f, 0x8b}

func (sh *Shell) catOne(ctx context.Context, w io.Writer, st *fs.FileStatus, decompress bool) error {
	p := sh.hd.PathOf(st)
	if st.IsDir {
		return ie.IsADirectory(p.String())
	}

	rc, err := sh.hd.Open(ctx, p)
	if err != nil {
		return err
	}

	defer rc.Close()

	var src io.Reader = rc
	if decompress {
		buffered := bufio.NewReader(rc)
		if magic, err := buffered.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
			zr, err := gzip.NewReader(buffered)
			if err != nil {
				return e.Wrapf(err, "text %s", p)
			}

			defer zr.Close()
			src = zr
		} else {
			src = buffered
		}
	}

	if _, err := io.Copy(w, src); err != nil {
		return e.Wrapf(err, "cat %s", p)
	}

	return nil
}

// TextTo is like CatTo, but gzip compressed files are decompressed.
func (sh *Shell) TextTo(ctx context.Context, w io.Writer, p string) error {
	matches, err := sh.expand(ctx, p)
	if err != nil {
		return err
	}

	for idx := range matches {
		if err := sh.catOne(ctx, w, &matches[idx], true); err != nil {
			return err
		}
	}

	return nil
}

// Text is like Cat, but gzip compressed files are decompressed.
func (sh *Shell) Text(ctx context.Context, p string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := sh.TextTo(ctx, buf, p); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Ls lists the children of every directory matching `p`, sorted by name.
// Matching files list themselves.
func (sh *Shell) Ls(ctx context.Context, p string) ([]fs.FileStatus, error) {
	matches, err := sh.expand(ctx, p)
	if err != nil {
		return nil, err
	}

	entries := []fs.FileStatus{}
	for idx := range matches {
		st := &matches[idx]
		if !st.IsDir {
			entries = append(entries, *st)
			continue
		}

		children, err := sh.hd.List(ctx, sh.hd.PathOf(st))
		if err != nil {
			return nil, err
		}

		entries = append(entries, children...)
	}

	return entries, nil
}

// Lsr is like Ls, but descends into sub directories.
// Directories come before their children.
func (sh *Shell) Lsr(ctx context.Context, p string) ([]fs.FileStatus, error) {
	matches, err := sh.expand(ctx, p)
	if err != nil {
		return nil, err
	}

	entries := []fs.FileStatus{}
	for idx := range matches {
		root := &matches[idx]
		if !root.IsDir {
			entries = append(entries, *root)
			continue
		}

		err := sh.hd.Walk(ctx, sh.hd.PathOf(root), -1, func(_ fspath.Path, st *fs.FileStatus) error {
			if st.Path != root.Path {
				entries = append(entries, *st)
			}

			return nil
		})

		if err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// Rm deletes the files matching `p`. Directories are refused.
func (sh *Shell) Rm(ctx context.Context, p string) error {
	matches, err := sh.expand(ctx, p)
	if err != nil {
		return err
	}

	for idx := range matches {
		st := &matches[idx]
		qp := sh.hd.PathOf(st)
		if st.IsDir {
			return e.Wrapf(ie.ErrIsDir, "rm %s", qp)
		}

		if err := sh.hd.Delete(ctx, qp, false); err != nil {
			return err
		}
	}

	return nil
}

// Rmr deletes everything matching `p` recursively.
// Deleting something that does not exist is not an error.
func (sh *Shell) Rmr(ctx context.Context, p string) error {
	matches, err := sh.expand(ctx, p)
	if ie.IsNotFound(err) {
		log.Debugf("rmr: nothing to delete at %s", p)
		return nil
	}

	if err != nil {
		return err
	}

	for idx := range matches {
		qp := sh.hd.PathOf(&matches[idx])
		if err := sh.hd.Delete(ctx, qp, true); err != nil && !ie.IsNotFound(err) {
			return err
		}
	}

	return nil
}

// Touchz creates an empty file at `p`.
// An existing empty file is left alone.
func (sh *Shell) Touchz(ctx context.Context, p string) error {
	qp, err := sh.hd.Resolve(p)
	if err != nil {
		return err
	}

	st, err := sh.hd.Stat(ctx, qp)
	switch {
	case err == nil && st.IsDir:
		return ie.IsADirectory(qp.String())
	case err == nil && st.Length != 0:
		return e.Wrap(ie.AlreadyExists(qp.String()), "touchz: not a zero length file")
	case err == nil:
		return nil
	case !ie.IsNotFound(err):
		return err
	}

	_, err = sh.hd.Create(ctx, qp, bytes.NewReader(nil), false)
	return err
}
