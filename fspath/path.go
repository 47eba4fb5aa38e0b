// Package fspath implements the path type used to address nodes in a store.
//
// A Path is either bare (`a/b`, `/a/b`) or a URI with scheme and authority
// (`webhdfs://namenode:9870/a/b`). Bare paths are resolved against a working
// directory and the default scheme of a handle with Qualify().
package fspath

import (
	"net/url"
	"path"
	"strings"

	ie "github.com/sahib/fsh/errors"
)

// Path is an immutable location inside a store.
type Path struct {
	scheme    string
	authority string
	path      string
}

// Root is the bare root path.
var Root = Path{path: "/"}

func prefixSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}

	return p
}

func clean(p string) string {
	if p == "" {
		return "."
	}

	return path.Clean(p)
}

// Parse reads `s` either as URI or as bare path.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, ie.ErrInvalidPath
	}

	if !strings.Contains(s, "://") {
		return Path{path: clean(s)}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return Path{}, ie.ErrInvalidPath
	}

	if u.Scheme == "" || u.Opaque != "" {
		return Path{}, ie.ErrInvalidPath
	}

	return New(u.Scheme, u.Host, u.Path), nil
}

// MustParse is like Parse but panics on bad input.
// Only useful for constants and tests.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return p
}

// New returns a qualified path for `scheme`, `authority` and `p`.
// `p` is always treated as absolute.
func New(scheme, authority, p string) Path {
	return Path{
		scheme:    strings.ToLower(scheme),
		authority: authority,
		path:      clean(prefixSlash(p)),
	}
}

// Scheme returns the scheme part or "" for bare paths.
func (p Path) Scheme() string { return p.scheme }

// Authority returns the host[:port] part or "".
func (p Path) Authority() string { return p.authority }

// Path returns the slash separated path part without scheme and authority.
func (p Path) Path() string { return p.path }

// IsZero is true for the zero value.
func (p Path) IsZero() bool { return p.path == "" }

// IsAbs is true if the path part starts with a slash.
func (p Path) IsAbs() bool { return strings.HasPrefix(p.path, "/") }

// IsQualified is true if the path carries a scheme and is absolute.
func (p Path) IsQualified() bool { return p.scheme != "" && p.IsAbs() }

// IsRoot is true for "/" of any store.
func (p Path) IsRoot() bool { return p.path == "/" }

// Base returns the last element of the path.
func (p Path) Base() string {
	return path.Base(p.path)
}

// Parent returns the directory containing `p`. The parent of root is root.
func (p Path) Parent() Path {
	p.path = path.Dir(p.path)
	return p
}

// Join appends `elems` to `p`.
func (p Path) Join(elems ...string) Path {
	all := append([]string{p.path}, elems...)
	p.path = clean(path.Join(all...))
	return p
}

// WithPath returns a copy of `p` with the path part replaced.
func (p Path) WithPath(s string) Path {
	p.path = clean(s)
	return p
}

// Equal compares all parts of both paths.
func (p Path) Equal(o Path) bool {
	return p.scheme == o.scheme && p.authority == o.authority && p.path == o.path
}

// IsDescendantOf is true if `p` is strictly below `o` in the same store.
func (p Path) IsDescendantOf(o Path) bool {
	if p.scheme != o.scheme || p.authority != o.authority {
		return false
	}

	if o.path == "/" {
		return p.path != "/"
	}

	return strings.HasPrefix(p.path, o.path+"/")
}

// CanonicalScheme maps scheme aliases onto one name; hdfs is webhdfs.
func CanonicalScheme(scheme string) string {
	scheme = strings.ToLower(scheme)
	if scheme == "hdfs" {
		return "webhdfs"
	}

	return scheme
}

// Qualify resolves `p` against the working directory `wd` and fills in
// `scheme` and `authority` if `p` does not have its own. A path of the
// same scheme without authority (mem:///x) gets `authority`.
// Qualifying an already qualified path with the same arguments returns
// it unchanged.
func (p Path) Qualify(scheme, authority string, wd Path) Path {
	if p.IsQualified() {
		if p.authority == "" && CanonicalScheme(p.scheme) == CanonicalScheme(scheme) {
			p.authority = authority
		}

		return p
	}

	if !p.IsAbs() {
		base := wd.path
		if !wd.IsAbs() {
			base = "/"
		}

		p.path = clean(path.Join(base, p.path))
	}

	if p.scheme == "" {
		p.scheme = strings.ToLower(scheme)
		p.authority = authority
	}

	return p
}

func (p Path) String() string {
	if p.scheme == "" {
		return p.path
	}

	return p.scheme + "://" + p.authority + p.path
}
