package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fspath"
	log "github.com/sirupsen/logrus"
)

// copyingSuffix marks files that are still being copied into the store.
const copyingSuffix = "._COPYING_"

// CopyFromLocal copies the local file or directory `local` to `remote`.
// If `remote` is an existing directory, the copy is placed inside of it.
// Existing files are only replaced if the handle was created WithOverwrite.
func (hd *Handle) CopyFromLocal(ctx context.Context, local string, remote fspath.Path) error {
	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return ie.NotFound(local)
		}

		return e.Wrap(err, "copyFromLocal")
	}

	dst, err := hd.targetFor(ctx, remote, filepath.Base(local))
	if err != nil {
		return err
	}

	if info.IsDir() {
		return hd.copyDirFromLocal(ctx, local, dst)
	}

	return hd.copyFileFromLocal(ctx, local, dst)
}

// targetFor returns `dst/name` if `dst` is an existing directory, else `dst`.
func (hd *Handle) targetFor(ctx context.Context, dst fspath.Path, name string) (fspath.Path, error) {
	dst = hd.MakeQualified(dst)
	st, err := hd.Stat(ctx, dst)
	if err != nil && !ie.IsNotFound(err) {
		return fspath.Path{}, err
	}

	if st != nil && st.IsDir {
		return dst.Join(name), nil
	}

	return dst, nil
}

func (hd *Handle) copyDirFromLocal(ctx context.Context, local string, dst fspath.Path) error {
	if err := hd.Mkdirs(ctx, dst, DefaultDirPerm); err != nil {
		return err
	}

	entries, err := os.ReadDir(local)
	if err != nil {
		return e.Wrap(err, "copyFromLocal")
	}

	for _, entry := range entries {
		src := filepath.Join(local, entry.Name())
		child := dst.Join(entry.Name())

		if entry.IsDir() {
			err = hd.copyDirFromLocal(ctx, src, child)
		} else {
			err = hd.copyFileFromLocal(ctx, src, child)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (hd *Handle) copyFileFromLocal(ctx context.Context, local string, dst fspath.Path) error {
	st, err := hd.Stat(ctx, dst)
	if err != nil && !ie.IsNotFound(err) {
		return err
	}

	if st != nil {
		if st.IsDir {
			return ie.IsADirectory(st.Path)
		}

		if !hd.overwrite {
			return ie.AlreadyExists(st.Path)
		}
	}

	fd, err := os.Open(local)
	if err != nil {
		return e.Wrap(err, "copyFromLocal")
	}

	defer fd.Close()

	// Write to a temporary file first and move it in place afterwards.
	// Readers never see a half written file this way.
	tmp := dst.Parent().Join(fmt.Sprintf("%s.%s%s", dst.Base(), uuid.New().String(), copyingSuffix))
	if _, err := hd.Create(ctx, tmp, fd, false); err != nil {
		hd.dropTemp(tmp)
		return err
	}

	if st != nil {
		if err := hd.Delete(ctx, dst, false); err != nil && !ie.IsNotFound(err) {
			hd.dropTemp(tmp)
			return err
		}
	}

	if err := hd.Rename(ctx, tmp, dst); err != nil {
		hd.dropTemp(tmp)
		return err
	}

	return nil
}

func (hd *Handle) dropTemp(tmp fspath.Path) {
	// Use a fresh context; the original one might be the reason we failed.
	if err := hd.Delete(context.Background(), tmp, false); err != nil && !ie.IsNotFound(err) {
		log.Warningf("failed to remove temporary file %s: %v", tmp, err)
	}
}

// CopyToLocal copies the file or directory `remote` to the local path `local`.
// If `local` is an existing directory, the copy is placed inside of it.
func (hd *Handle) CopyToLocal(ctx context.Context, remote fspath.Path, local string) error {
	st, err := hd.Stat(ctx, remote)
	if err != nil {
		return err
	}

	if info, err := os.Stat(local); err == nil && info.IsDir() {
		local = filepath.Join(local, st.Name())
	}

	return hd.Walk(ctx, remote, -1, func(p fspath.Path, child *FileStatus) error {
		rel, err := filepath.Rel(st.Path, child.Path)
		if err != nil {
			return err
		}

		dst := filepath.Join(local, filepath.FromSlash(rel))
		if child.IsDir {
			return os.MkdirAll(dst, DefaultDirPerm)
		}

		return hd.copyFileToLocal(ctx, p, dst)
	})
}

func (hd *Handle) copyFileToLocal(ctx context.Context, remote fspath.Path, local string) (err error) {
	rc, err := hd.Open(ctx, remote)
	if err != nil {
		return err
	}

	defer rc.Close()

	fd, err := os.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return e.Wrap(err, "copyToLocal")
	}

	defer func() {
		if closeErr := fd.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(fd, rc)
	return e.Wrap(err, "copyToLocal")
}
