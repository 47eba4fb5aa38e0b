package shell

import (
	"context"
	"regexp"
	"strings"

	e "github.com/pkg/errors"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/fspath"
)

var ownerPattern = regexp.MustCompile(`^[-_./@a-zA-Z0-9]*$`)

// ParseOwner splits "owner[:group]" into its parts.
// Either part may be empty, but not both.
func ParseOwner(spec string) (owner, group string, err error) {
	owner = spec
	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		owner, group = spec[:idx], spec[idx+1:]
	}

	if owner == "" && group == "" {
		return "", "", e.Errorf("invalid owner %q: need owner or group", spec)
	}

	if !ownerPattern.MatchString(owner) || !ownerPattern.MatchString(group) {
		return "", "", e.Errorf("invalid owner %q", spec)
	}

	return owner, group, nil
}

// visit calls `fn` on every node matching `p`.
// If `recursive` is true, all nodes below matching directories are
// visited too, parents before their children.
func (sh *Shell) visit(ctx context.Context, p string, recursive bool, fn func(qp fspath.Path, st *fs.FileStatus) error) error {
	matches, err := sh.expand(ctx, p)
	if err != nil {
		return err
	}

	maxDepth := 0
	if recursive {
		maxDepth = -1
	}

	for idx := range matches {
		if err := sh.hd.Walk(ctx, sh.hd.PathOf(&matches[idx]), maxDepth, fn); err != nil {
			return err
		}
	}

	return nil
}

func (sh *Shell) chmod(ctx context.Context, mode, p string, recursive bool) error {
	changer, err := ParseMode(mode)
	if err != nil {
		return err
	}

	return sh.visit(ctx, p, recursive, func(qp fspath.Path, st *fs.FileStatus) error {
		return sh.hd.SetPermission(ctx, qp, changer.Apply(st.Permission, st.IsDir))
	})
}

// Chmod sets the permission of every node matching `p` to `mode`.
// See ParseMode for the accepted formats.
func (sh *Shell) Chmod(ctx context.Context, mode, p string) error {
	return sh.chmod(ctx, mode, p, false)
}

// Chmodr is like Chmod, but works on whole trees.
func (sh *Shell) Chmodr(ctx context.Context, mode, p string) error {
	return sh.chmod(ctx, mode, p, true)
}

func (sh *Shell) chown(ctx context.Context, owner, group, p string, recursive bool) error {
	return sh.visit(ctx, p, recursive, func(qp fspath.Path, st *fs.FileStatus) error {
		return sh.hd.SetOwner(ctx, qp, owner, group)
	})
}

// Chown changes owner and/or group ("owner[:group]") of the nodes matching `p`.
func (sh *Shell) Chown(ctx context.Context, spec, p string) error {
	owner, group, err := ParseOwner(spec)
	if err != nil {
		return err
	}

	return sh.chown(ctx, owner, group, p, false)
}

// Chownr is like Chown, but works on whole trees.
func (sh *Shell) Chownr(ctx context.Context, spec, p string) error {
	owner, group, err := ParseOwner(spec)
	if err != nil {
		return err
	}

	return sh.chown(ctx, owner, group, p, true)
}

// Chgrp changes the group of the nodes matching `p`.
func (sh *Shell) Chgrp(ctx context.Context, group, p string) error {
	if group == "" || !ownerPattern.MatchString(group) {
		return e.Errorf("invalid group %q", group)
	}

	return sh.chown(ctx, "", group, p, false)
}

// Chgrpr is like Chgrp, but works on whole trees.
func (sh *Shell) Chgrpr(ctx context.Context, group, p string) error {
	if group == "" || !ownerPattern.MatchString(group) {
		return e.Errorf("invalid group %q", group)
	}

	return sh.chown(ctx, "", group, p, true)
}
