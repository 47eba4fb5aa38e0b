//go:build !windows
// +build !windows

package local

import (
	"os"
	"os/user"
	"strconv"
	"syscall"

	e "github.com/pkg/errors"
)

func ownerOf(info os.FileInfo) (string, string) {
	sysStat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}

	uid := strconv.FormatUint(uint64(sysStat.Uid), 10)
	gid := strconv.FormatUint(uint64(sysStat.Gid), 10)

	owner, group := uid, gid
	if usr, err := user.LookupId(uid); err == nil {
		owner = usr.Username
	}

	if grp, err := user.LookupGroupId(gid); err == nil {
		group = grp.Name
	}

	return owner, group
}

// lookupIDs resolves names to numeric ids. -1 means "leave unchanged".
func lookupIDs(owner, group string) (int, int, error) {
	uid, gid := -1, -1

	if owner != "" {
		usr, err := user.Lookup(owner)
		if err != nil {
			return -1, -1, e.Wrapf(err, "unknown user %s", owner)
		}

		if uid, err = strconv.Atoi(usr.Uid); err != nil {
			return -1, -1, err
		}
	}

	if group != "" {
		grp, err := user.LookupGroup(group)
		if err != nil {
			return -1, -1, e.Wrapf(err, "unknown group %s", group)
		}

		if gid, err = strconv.Atoi(grp.Gid); err != nil {
			return -1, -1, err
		}
	}

	return uid, gid, nil
}
