package shell

import (
	"context"
	"os"
	"path/filepath"

	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/fspath"
	log "github.com/sirupsen/logrus"
)

// localSource returns the local path of `src` if it explicitly points to
// the local disk (file:///...) while the handle talks to another store.
func (sh *Shell) localSource(src string) (string, bool) {
	p, err := fspath.Parse(src)
	if err != nil || p.Scheme() != "file" {
		return "", false
	}

	if sh.hd.URI().Scheme() == "file" {
		return "", false
	}

	return filepath.FromSlash(p.Path()), true
}

// destination resolves `dst` and checks that it can take `nSources` nodes.
func (sh *Shell) destination(ctx context.Context, dst string, nSources int) (fspath.Path, error) {
	qdst, err := sh.hd.Resolve(dst)
	if err != nil {
		return fspath.Path{}, err
	}

	if nSources <= 1 {
		return qdst, nil
	}

	st, err := sh.hd.Stat(ctx, qdst)
	if err != nil {
		return fspath.Path{}, e.Wrapf(err, "%s must be a directory for several sources", qdst)
	}

	if !st.IsDir {
		return fspath.Path{}, e.Wrapf(ie.ErrNotADirectory, "%s", qdst)
	}

	return qdst, nil
}

// target returns the path `src` will have below `dst`.
func (sh *Shell) target(ctx context.Context, dst fspath.Path, name string) (fspath.Path, error) {
	st, err := sh.hd.Stat(ctx, dst)
	if err != nil && !ie.IsNotFound(err) {
		return fspath.Path{}, err
	}

	if st != nil && st.IsDir {
		return dst.Join(name), nil
	}

	return dst, nil
}

// Cp copies the files or directory trees matching `src` to `dst`.
// If `dst` is a directory, the copies keep their name inside of it.
// A `src` given as file:///... is read from the local disk.
func (sh *Shell) Cp(ctx context.Context, src, dst string) error {
	if local, ok := sh.localSource(src); ok {
		return sh.CopyFromLocal(ctx, local, dst)
	}

	matches, err := sh.expand(ctx, src)
	if err != nil {
		return err
	}

	qdst, err := sh.destination(ctx, dst, len(matches))
	if err != nil {
		return err
	}

	for idx := range matches {
		st := &matches[idx]
		from := sh.hd.PathOf(st)

		to, err := sh.target(ctx, qdst, st.Name())
		if err != nil {
			return err
		}

		if to.Equal(from) || to.IsDescendantOf(from) {
			return e.Errorf("cp: cannot copy %s into itself (%s)", from, to)
		}

		if err := sh.copyTree(ctx, st, to); err != nil {
			return err
		}
	}

	return nil
}

func (sh *Shell) copyTree(ctx context.Context, st *fs.FileStatus, to fspath.Path) error {
	from := sh.hd.PathOf(st)
	if !st.IsDir {
		return sh.copyFile(ctx, from, to)
	}

	if err := sh.hd.Mkdirs(ctx, to, st.Permission); err != nil {
		return err
	}

	children, err := sh.hd.List(ctx, from)
	if err != nil {
		return err
	}

	for idx := range children {
		child := &children[idx]
		if err := sh.copyTree(ctx, child, to.Join(child.Name())); err != nil {
			return err
		}
	}

	return nil
}

func (sh *Shell) copyFile(ctx context.Context, from, to fspath.Path) error {
	rc, err := sh.hd.Open(ctx, from)
	if err != nil {
		return err
	}

	defer rc.Close()

	n, err := sh.hd.Create(ctx, to, rc, sh.hd.Overwrite())
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"src": from.String(), "dst": to.String(), "size": n}).Debug("copied")
	return nil
}

// Mv moves the nodes matching `src` to `dst`.
// If `dst` is a directory, the nodes keep their name inside of it.
func (sh *Shell) Mv(ctx context.Context, src, dst string) error {
	matches, err := sh.expand(ctx, src)
	if err != nil {
		return err
	}

	qdst, err := sh.destination(ctx, dst, len(matches))
	if err != nil {
		return err
	}

	for idx := range matches {
		st := &matches[idx]
		from := sh.hd.PathOf(st)

		to, err := sh.target(ctx, qdst, st.Name())
		if err != nil {
			return err
		}

		if to.IsDescendantOf(from) {
			return e.Errorf("mv: cannot move %s into itself (%s)", from, to)
		}

		if err := sh.hd.Rename(ctx, from, to); err != nil {
			return err
		}
	}

	return nil
}

// CopyFromLocal copies the local file or directory `local` to `dst`.
func (sh *Shell) CopyFromLocal(ctx context.Context, local, dst string) error {
	qdst, err := sh.hd.Resolve(dst)
	if err != nil {
		return err
	}

	return sh.hd.CopyFromLocal(ctx, local, qdst)
}

// Put copies all of `locals` to `dst`.
// Several sources need an existing directory as `dst`.
func (sh *Shell) Put(ctx context.Context, locals []string, dst string) error {
	qdst, err := sh.destination(ctx, dst, len(locals))
	if err != nil {
		return err
	}

	for _, local := range locals {
		if err := sh.hd.CopyFromLocal(ctx, local, qdst); err != nil {
			return err
		}
	}

	return nil
}

// MoveFromLocal is like Put, but removes the local sources afterwards.
// A source is only removed once it was copied completely.
func (sh *Shell) MoveFromLocal(ctx context.Context, locals []string, dst string) error {
	qdst, err := sh.destination(ctx, dst, len(locals))
	if err != nil {
		return err
	}

	for _, local := range locals {
		if err := sh.hd.CopyFromLocal(ctx, local, qdst); err != nil {
			return err
		}

		if err := os.RemoveAll(local); err != nil {
			return e.Wrapf(err, "moveFromLocal: remove %s", local)
		}
	}

	return nil
}

// CopyToLocal copies the nodes matching `src` to the local path `local`.
func (sh *Shell) CopyToLocal(ctx context.Context, src, local string) error {
	matches, err := sh.expand(ctx, src)
	if err != nil {
		return err
	}

	if len(matches) > 1 {
		info, err := os.Stat(local)
		if err != nil || !info.IsDir() {
			return e.Wrapf(ie.ErrNotADirectory, "%s must be a directory for several sources", local)
		}
	}

	for idx := range matches {
		if err := sh.hd.CopyToLocal(ctx, sh.hd.PathOf(&matches[idx]), local); err != nil {
			return err
		}
	}

	return nil
}

// Get is an alias for CopyToLocal.
func (sh *Shell) Get(ctx context.Context, src, local string) error {
	return sh.CopyToLocal(ctx, src, local)
}

// GetMerge concatenates all files in the directory `src` (sorted by name)
// into the single local file `local`. If `addNewline` is true, a newline
// is written after every file.
func (sh *Shell) GetMerge(ctx context.Context, src, local string, addNewline bool) error {
	entries, err := sh.Ls(ctx, src)
	if err != nil {
		return err
	}

	fd, err := os.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return e.Wrap(err, "getmerge")
	}

	for idx := range entries {
		st := &entries[idx]
		if st.IsDir {
			continue
		}

		if err := sh.catOne(ctx, fd, st, false); err != nil {
			fd.Close()
			return err
		}

		if addNewline {
			if _, err := fd.Write([]byte{'\n'}); err != nil {
				fd.Close()
				return e.Wrap(err, "getmerge")
			}
		}
	}

	return fd.Close()
}
