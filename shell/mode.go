package shell

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	e "github.com/pkg/errors"
)

// ModeChanger computes the new permission bits of a node.
type ModeChanger interface {
	Apply(old os.FileMode, isDir bool) os.FileMode
}

type octalMode os.FileMode

func (m octalMode) Apply(old os.FileMode, isDir bool) os.FileMode {
	return os.FileMode(m)
}

type symbolicClause struct {
	who  os.FileMode
	op   byte
	what string
}

type symbolicMode []symbolicClause

var (
	octalPattern    = regexp.MustCompile(`^[0-7]{1,4}$`)
	symbolicPattern = regexp.MustCompile(`^([ugoa]*)([+\-=])([rwxX]*)$`)
)

// ParseMode parses `spec` either as octal mode (e.g. "700" or "0644") or as
// comma separated list of symbolic clauses like "u+rwx,go-w" or "a=rX".
func ParseMode(spec string) (ModeChanger, error) {
	if octalPattern.MatchString(spec) {
		val, err := strconv.ParseUint(spec, 8, 32)
		if err != nil {
			return nil, e.Wrapf(err, "invalid mode %q", spec)
		}

		// Sticky and set-id bits are not supported by any store.
		return octalMode(os.FileMode(val) & os.ModePerm), nil
	}

	mode := symbolicMode{}
	for _, part := range strings.Split(spec, ",") {
		match := symbolicPattern.FindStringSubmatch(part)
		if match == nil {
			return nil, e.Errorf("invalid mode %q", spec)
		}

		clause := symbolicClause{op: match[2][0], what: match[3]}
		who := match[1]
		if who == "" {
			who = "a"
		}

		for _, c := range who {
			switch c {
			case 'u':
				clause.who |= 0700
			case 'g':
				clause.who |= 0070
			case 'o':
				clause.who |= 0007
			case 'a':
				clause.who |= 0777
			}
		}

		mode = append(mode, clause)
	}

	return mode, nil
}

func (m symbolicMode) Apply(old os.FileMode, isDir bool) os.FileMode {
	perm := old & os.ModePerm
	for _, clause := range m {
		bits := os.FileMode(0)
		for _, c := range clause.what {
			switch c {
			case 'r':
				bits |= 0444
			case 'w':
				bits |= 0222
			case 'x':
				bits |= 0111
			case 'X':
				// Execute only for directories or if anyone may execute already.
				if isDir || perm&0111 != 0 {
					bits |= 0111
				}
			}
		}

		bits &= clause.who
		switch clause.op {
		case '+':
			perm |= bits
		case '-':
			perm &^= bits
		case '=':
			perm = (perm &^ clause.who) | bits
		}
	}

	return perm
}
