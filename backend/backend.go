// Package backend selects and configures the store behind a uri.
package backend

import (
	"context"
	"errors"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	e "github.com/pkg/errors"
	"github.com/sahib/config"
	"github.com/sahib/fsh/backend/kv"
	"github.com/sahib/fsh/backend/local"
	"github.com/sahib/fsh/backend/memory"
	"github.com/sahib/fsh/backend/webhdfs"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/fspath"
)

var (
	// ErrNoSuchBackend is returned when passing an uri with an unknown scheme
	ErrNoSuchBackend = errors.New("no such backend")
)

// Schemes of the supported stores.
const (
	SchemeMemory        = "mem"
	SchemeLocal         = "file"
	SchemeKV            = "kv"
	SchemeWebHDFS       = "webhdfs"
	SchemeSecureWebHDFS = "swebhdfs"
	SchemeHDFS          = "hdfs"
)

// IsValidScheme tells you if `scheme` names a supported store.
func IsValidScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case SchemeMemory, SchemeLocal, SchemeKV, SchemeWebHDFS, SchemeSecureWebHDFS, SchemeHDFS:
		return true
	default:
		return false
	}
}

// Schemes returns all schemes accepted by FromURI.
func Schemes() []string {
	return []string{
		SchemeMemory,
		SchemeLocal,
		SchemeKV,
		SchemeWebHDFS,
		SchemeSecureWebHDFS,
		SchemeHDFS,
	}
}

func expandPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", e.Wrapf(err, "failed to expand %s", p)
	}

	return expanded, nil
}

// FromURI returns a client for the store that `uri` points to.
// `cfg` is the root config; `user` is the acting user.
func FromURI(uri fspath.Path, cfg *config.Config, user string) (fs.FilesystemClient, error) {
	homePrefix := cfg.String("fs.home_prefix")

	switch uri.Scheme() {
	case SchemeMemory:
		return memory.New(
			memory.WithUser(user),
			memory.WithSuperuser(cfg.String("fs.superuser")),
			memory.WithHomePrefix(homePrefix),
		), nil
	case SchemeLocal:
		root, err := expandPath(cfg.String("local.root"))
		if err != nil {
			return nil, err
		}

		return local.New(root, homePrefix)
	case SchemeKV:
		dir, err := expandPath(cfg.String("kv.path"))
		if err != nil {
			return nil, err
		}

		return kv.Open(dir, kv.Options{
			Compression: cfg.String("kv.compression"),
			BlockSize:   int(cfg.Int("kv.block_size")),
			User:        user,
			Superuser:   cfg.String("fs.superuser"),
			HomePrefix:  homePrefix,
		})
	case SchemeWebHDFS, SchemeSecureWebHDFS, SchemeHDFS:
		return webhdfs.New(uri.Authority(), webhdfs.Options{
			User:                 user,
			Timeout:              cfg.Duration("webhdfs.timeout"),
			RetryMax:             int(cfg.Int("webhdfs.retry_max")),
			RetryWaitMin:         cfg.Duration("webhdfs.retry_wait_min"),
			RetryWaitMax:         cfg.Duration("webhdfs.retry_wait_max"),
			MaxRequestsPerSecond: cfg.Float("webhdfs.max_requests_per_second"),
			TLS:                  uri.Scheme() == SchemeSecureWebHDFS,
		})
	}

	return nil, e.Wrapf(ErrNoSuchBackend, "%q", uri.Scheme())
}

// Open creates a handle from the config. `rawURI` overrides fs.default_uri
// and `user` overrides fs.user, if they are not empty.
func Open(ctx context.Context, cfg *config.Config, rawURI, user string) (*fs.Handle, error) {
	if rawURI == "" {
		rawURI = cfg.String("fs.default_uri")
	}

	uri, err := fspath.Parse(rawURI)
	if err != nil {
		return nil, err
	}

	if !uri.IsQualified() {
		return nil, e.Errorf("store uri needs a scheme: %s", rawURI)
	}

	if user == "" {
		user = cfg.String("fs.user")
	}

	if user == "" {
		user = fs.CurrentUser()
	}

	client, err := FromURI(uri, cfg, user)
	if err != nil {
		return nil, err
	}

	hd, err := fs.New(
		ctx,
		client,
		uri,
		fs.WithUser(user),
		fs.WithHomePrefix(cfg.String("fs.home_prefix")),
		fs.WithOverwrite(cfg.Bool("fs.overwrite")),
	)

	if err != nil {
		client.Close()
		return nil, err
	}

	return hd, nil
}
