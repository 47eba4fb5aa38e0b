package shell

import (
	"context"

	"github.com/sahib/fsh/fs"
)

// Usage is the accumulated size of a single path.
type Usage struct {
	Path    string
	Summary fs.ContentSummary
}

func (sh *Shell) summarize(ctx context.Context, st *fs.FileStatus) (Usage, error) {
	sum, err := sh.hd.ContentSummary(ctx, sh.hd.PathOf(st))
	if err != nil {
		return Usage{}, err
	}

	return Usage{Path: st.Path, Summary: *sum}, nil
}

// Du returns the size of every entry Ls would show for `p`.
func (sh *Shell) Du(ctx context.Context, p string) ([]Usage, error) {
	entries, err := sh.Ls(ctx, p)
	if err != nil {
		return nil, err
	}

	usages := make([]Usage, 0, len(entries))
	for idx := range entries {
		usage, err := sh.summarize(ctx, &entries[idx])
		if err != nil {
			return nil, err
		}

		usages = append(usages, usage)
	}

	return usages, nil
}

// Dus returns one summary per path matching `p`.
// Count uses the same data, but shows more of it.
func (sh *Shell) Dus(ctx context.Context, p string) ([]Usage, error) {
	matches, err := sh.expand(ctx, p)
	if err != nil {
		return nil, err
	}

	usages := make([]Usage, 0, len(matches))
	for idx := range matches {
		usage, err := sh.summarize(ctx, &matches[idx])
		if err != nil {
			return nil, err
		}

		usages = append(usages, usage)
	}

	return usages, nil
}

// Count is an alias of Dus. It exists for the count command,
// which prints directory and file counts as well.
func (sh *Shell) Count(ctx context.Context, p string) ([]Usage, error) {
	return sh.Dus(ctx, p)
}
