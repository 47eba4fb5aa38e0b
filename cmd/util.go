package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	homedir "github.com/mitchellh/go-homedir"
	e "github.com/pkg/errors"
	"github.com/sahib/config"
	"github.com/sahib/fsh/backend"
	"github.com/sahib/fsh/defaults"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/shell"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// ExitCode is an error that maps the error interface to a specific error
// message and a unix exit code
type ExitCode struct {
	Code    int
	Message string
}

func (err ExitCode) Error() string {
	return err.Message
}

// exitCodeFor classifies `err` into one of the exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return Success
	case ie.IsNotFound(err):
		return NotFound
	case ie.IsAlreadyExists(err):
		return AlreadyExists
	case ie.IsPermission(err):
		return PermissionDenied
	case ie.IsDirectoryError(err), e.Cause(err) == ie.ErrIsDir:
		return IsADirectory
	case ie.IsConnectivity(err):
		return Unreachable
	}

	if code, ok := err.(ExitCode); ok {
		return code.Code
	}

	return UnknownError
}

// toExitCode prefixes `err` with `verb` and attaches the matching exit code.
func toExitCode(verb string, err error) error {
	if err == nil {
		return nil
	}

	if code, ok := err.(ExitCode); ok {
		return code
	}

	return ExitCode{
		Code:    exitCodeFor(err),
		Message: fmt.Sprintf("%s: %v", verb, err),
	}
}

func yesify(val bool) string {
	if val {
		return color.GreenString("yes")
	}

	return color.RedString("no")
}

// guessConfigPath returns the path of the config file.
// It is either given by --config or defaults to ~/.fsh/config.yml
func guessConfigPath(ctx *cli.Context) (string, error) {
	path := ctx.GlobalString("config")
	if path == "" {
		path = defaultConfigPath
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}

	return filepath.Abs(expanded)
}

func openConfig(ctx *cli.Context) (*config.Config, string, error) {
	path, err := guessConfigPath(ctx)
	if err != nil {
		return nil, "", ExitCode{BadArgs, fmt.Sprintf("bad config path: %v", err)}
	}

	cfg, err := defaults.OpenConfig(path)
	if err != nil {
		return nil, "", ExitCode{BadArgs, fmt.Sprintf("failed to load config: %v", err)}
	}

	if err := setupLogging(ctx, cfg); err != nil {
		return nil, "", ExitCode{BadArgs, fmt.Sprintf("failed to setup logging: %v", err)}
	}

	return cfg, path, nil
}

type cmdHandlerWithConfig func(ctx *cli.Context, cfg *config.Config, path string) error

func withConfig(handler cmdHandlerWithConfig) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		cfg, path, err := openConfig(ctx)
		if err != nil {
			return err
		}

		return handler(ctx, cfg, path)
	}
}

type cmdHandlerWithShell func(ctx *cli.Context, sh *shell.Shell) error

// withShell opens the store given by --uri (or fs.default_uri)
// and hands a shell on top of it to `handler`.
func withShell(handler cmdHandlerWithShell) cli.ActionFunc {
	return withConfig(func(ctx *cli.Context, cfg *config.Config, path string) error {
		hd, err := backend.Open(
			context.Background(),
			cfg,
			ctx.GlobalString("uri"),
			ctx.GlobalString("user"),
		)

		if err != nil {
			return toExitCode("open", err)
		}

		defer func() {
			if err := hd.Close(); err != nil {
				log.Warningf("failed to close store: %v", err)
			}
		}()

		log.Debugf("using store %s as %s", hd.URI(), hd.User())
		return toExitCode(ctx.Command.Name, handler(ctx, shell.New(hd)))
	})
}

type checkFunc func(ctx *cli.Context) int

func withArgCheck(checker checkFunc, handler cli.ActionFunc) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if code := checker(ctx); code != Success {
			return ExitCode{code, ""}
		}

		return handler(ctx)
	}
}

func needAtLeast(min int) checkFunc {
	return func(ctx *cli.Context) int {
		if ctx.NArg() < min {
			if min == 1 {
				log.Warningf("Need at least %d argument.", min)
			} else {
				log.Warningf("Need at least %d arguments.", min)
			}

			if err := cli.ShowCommandHelp(ctx, ctx.Command.Name); err != nil {
				log.Warningf("Failed to display --help: %v", err)
			}

			return BadArgs
		}

		return Success
	}
}
