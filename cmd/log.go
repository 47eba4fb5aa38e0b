package cmd

import (
	"io"
	"os"

	"github.com/sahib/config"
	fshlog "github.com/sahib/fsh/util/log"
	"github.com/urfave/cli"
)

func logOutput(path string) (io.Writer, error) {
	switch path {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}
}

// setupLogging configures logrus from --log-path and --log-level.
// The level falls back to log.level of the config.
func setupLogging(ctx *cli.Context, cfg *config.Config) error {
	w, err := logOutput(ctx.GlobalString("log-path"))
	if err != nil {
		return err
	}

	level := ctx.GlobalString("log-level")
	if level == "" {
		level = cfg.String("log.level")
	}

	return fshlog.Setup(w, level, cfg.Bool("log.colors"))
}
