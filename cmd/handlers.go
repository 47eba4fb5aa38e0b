package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sahib/config"
	"github.com/sahib/fsh/backend"
	"github.com/sahib/fsh/backend/webhdfs"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/fspath"
	"github.com/sahib/fsh/gateway"
	"github.com/sahib/fsh/version"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func handleVersion(ctx *cli.Context) error {
	fmt.Fprintln(ctx.App.Writer, version.String())
	if version.BuildTime != "" {
		fmt.Fprintf(ctx.App.Writer, "Built at: %s\n", version.BuildTime)
	}

	return nil
}

func handleGateway(ctx *cli.Context, cfg *config.Config, path string) error {
	if ctx.IsSet("host") {
		if err := cfg.SetString("gateway.host", ctx.String("host")); err != nil {
			return ExitCode{BadArgs, fmt.Sprintf("gateway: %v", err)}
		}
	}

	if ctx.IsSet("port") {
		if err := cfg.SetInt("gateway.port", int64(ctx.Int("port"))); err != nil {
			return ExitCode{BadArgs, fmt.Sprintf("gateway: %v", err)}
		}
	}

	rawURI := ctx.GlobalString("uri")
	if rawURI == "" {
		rawURI = cfg.String("fs.default_uri")
	}

	uri, err := fspath.Parse(rawURI)
	if err != nil {
		return ExitCode{BadArgs, fmt.Sprintf("gateway: %v", err)}
	}

	user := ctx.GlobalString("user")
	if user == "" {
		user = cfg.String("fs.user")
	}

	if user == "" {
		user = fs.CurrentUser()
	}

	client, err := backend.FromURI(uri, cfg, user)
	if err != nil {
		return toExitCode("gateway", err)
	}

	defer func() {
		if err := client.Close(); err != nil {
			log.Warningf("failed to close store: %v", err)
		}
	}()

	gw, err := gateway.NewGateway(client, cfg.Section("gateway"))
	if err != nil {
		return toExitCode("gateway", err)
	}

	if err := gw.Start(); err != nil {
		return ExitCode{Unreachable, fmt.Sprintf("gateway: %v", err)}
	}

	defer func() {
		if err := gw.Stop(); err != nil {
			log.Warningf("failed to stop properly: %v", err)
		}
	}()

	fmt.Fprintf(
		ctx.App.Writer,
		"Serving %s on http://%s%s (use webhdfs://%s/ to connect)\n",
		uri,
		gw.Addr(),
		webhdfs.PathPrefix,
		gw.Addr(),
	)

	// Block until hitting Ctrl-C
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ch)

	fmt.Fprintln(ctx.App.Writer, "Hit Ctrl-C to interrupt.")
	<-ch
	fmt.Fprintln(ctx.App.Writer, "Interrupted. Shutting down.")
	return nil
}
