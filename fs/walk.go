package fs

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fspath"
)

// WalkFunc is called for every node visited by Walk.
// If it returns an error, the walk stops and Walk returns that error.
type WalkFunc func(p fspath.Path, st *FileStatus) error

// PathOf returns the qualified path of a status returned by this handle.
func (hd *Handle) PathOf(st *FileStatus) fspath.Path {
	return hd.root.WithPath(st.Path)
}

// Walk visits `root` and, if it is a directory, all of its descendants
// depth-first. A directory is visited before its children; children are
// visited in name order. `maxDepth` < 0 means no limit, 0 visits only `root`.
func (hd *Handle) Walk(ctx context.Context, root fspath.Path, maxDepth int, fn WalkFunc) error {
	st, err := hd.Stat(ctx, root)
	if err != nil {
		return err
	}

	return hd.walk(ctx, st, 0, maxDepth, fn)
}

func (hd *Handle) walk(ctx context.Context, st *FileStatus, depth, maxDepth int, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := hd.PathOf(st)
	if err := fn(p, st); err != nil {
		return err
	}

	if !st.IsDir || (maxDepth >= 0 && depth >= maxDepth) {
		return nil
	}

	children, err := hd.List(ctx, p)
	if err != nil {
		return err
	}

	for idx := range children {
		if err := hd.walk(ctx, &children[idx], depth+1, maxDepth, fn); err != nil {
			return err
		}
	}

	return nil
}

// ContentSummary adds up the sizes below `p`.
// A directory counts itself in DirectoryCount.
func (hd *Handle) ContentSummary(ctx context.Context, p fspath.Path) (*ContentSummary, error) {
	sum := &ContentSummary{}
	err := hd.Walk(ctx, p, -1, func(_ fspath.Path, st *FileStatus) error {
		if st.IsDir {
			sum.DirectoryCount++
		} else {
			sum.FileCount++
			sum.Length += st.Length
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return sum, nil
}

// HasGlob tells if `pattern` contains any glob meta characters.
func HasGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{\\")
}

// Glob returns the status of every node matching `pattern`, sorted by path.
// Patterns without meta characters match at most the path itself.
// If nothing matches, a NotFound error is returned.
func (hd *Handle) Glob(ctx context.Context, pattern fspath.Path) ([]FileStatus, error) {
	qp := hd.MakeQualified(pattern)
	if !HasGlob(qp.Path()) {
		st, err := hd.Stat(ctx, qp)
		if err != nil {
			return nil, err
		}

		return []FileStatus{*st}, nil
	}

	if !doublestar.ValidatePattern(qp.Path()) {
		return nil, e.Wrapf(ie.ErrInvalidPath, "glob %s", qp)
	}

	// Only walk below the part of the pattern that has no meta characters.
	elems := strings.Split(strings.TrimPrefix(qp.Path(), "/"), "/")
	base := "/"
	idx := 0
	for ; idx < len(elems) && !HasGlob(elems[idx]); idx++ {
		base = base + elems[idx] + "/"
	}

	maxDepth := len(elems) - idx
	if strings.Contains(qp.Path(), "**") {
		maxDepth = -1
	}

	matches := []FileStatus{}
	err := hd.Walk(ctx, qp.WithPath(base), maxDepth, func(_ fspath.Path, st *FileStatus) error {
		ok, err := doublestar.Match(qp.Path(), st.Path)
		if err != nil {
			return err
		}

		if ok {
			matches = append(matches, *st)
		}

		return nil
	})

	if err != nil && !ie.IsNotFound(err) {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, ie.NotFound(qp.String())
	}

	return matches, nil
}
