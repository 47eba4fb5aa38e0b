package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/sahib/config"
	"github.com/sahib/fsh/backend"
	"github.com/sahib/fsh/fspath"
	"github.com/sahib/fsh/version"
	"github.com/toqueteos/webbrowser"
	"github.com/urfave/cli"
)

const issueURL = "https://github.com/sahib/fsh/issues"

// printError simply prints a nicely formatted error to stderr.
func printError(msg string) {
	fmt.Fprintln(os.Stderr, color.RedString("*** ")+msg)
}

// cmdOutput runs a command at `path` with `args` and returns it's output.
// No real error checking is done, on errors an empty string is returned.
func cmdOutput(path string, args ...string) string {
	out, err := exec.Command(path, args...).Output() // #nosec
	if err != nil {
		// No other error checking here, `fsh bug` is best effort.
		printError(fmt.Sprintf("failed to run %s %s", path, strings.Join(args, " ")))
		return ""
	}

	return strings.TrimSpace(string(out))
}

// writeStoreInfo writes what store is used and if it can be reached.
func writeStoreInfo(w io.Writer, ctx *cli.Context, cfg *config.Config) {
	rawURI := ctx.GlobalString("uri")
	if rawURI == "" {
		rawURI = cfg.String("fs.default_uri")
	}

	scheme := "unknown"
	if uri, err := fspath.Parse(rawURI); err == nil {
		scheme = uri.Scheme()
	}

	fmt.Fprintf(w, "store scheme:   ``%s``\n", scheme)

	hd, err := backend.Open(context.Background(), cfg, rawURI, ctx.GlobalString("user"))
	if err != nil {
		fmt.Fprintf(w, "store open:     ``%v``\n", err)
		return
	}

	defer hd.Close()

	_, err = hd.Exists(context.Background(), hd.HomeDirectory())
	fmt.Fprintf(w, "store reached:  ``%s``\n", yesOrErr(err))
}

func yesOrErr(err error) string {
	if err != nil {
		return err.Error()
	}

	return "yes"
}

// handleBugReport compiles a report of useful info when providing a bug report.
func handleBugReport(ctx *cli.Context, cfg *config.Config, path string) error {
	buf := &bytes.Buffer{}
	fmt.Fprintln(buf, `Please answer these questions before submitting your issue.
Please include anything else you think is helpful. Thanks!

### What did you do?

### What did you expect to see?

### What did you see instead?

### Do you still see this issue with a development binary?

### Did you check if a similar bug report was already opened?

### System details:`)

	fmt.Fprintf(buf, "go version:     ``%s``\n", runtime.Version())
	fmt.Fprintf(buf, "uname -s -v -m: ``%s``\n", cmdOutput("uname", "-s", "-v", "-m"))
	fmt.Fprintf(
		buf,
		"fsh version:    ``%s [build: %s]``\n",
		version.String(),
		version.BuildTime,
	)

	writeStoreInfo(buf, ctx, cfg)

	printToStdout := ctx.Bool("stdout")
	if !printToStdout {
		// Try to open the issue tracker for convinience:
		urlVal := url.Values{}
		urlVal.Set("body", buf.String())

		if err := webbrowser.Open(issueURL + "/new?" + urlVal.Encode()); err != nil {
			printToStdout = true
		}
	}

	if printToStdout {
		// If not, ask the user to print it directly:
		if !ctx.Bool("stdout") {
			printError("I failed to open the issue tracker in your browser.")
			printError("Please paste the underlying text manually at this URL:")
			printError(issueURL)
		}

		fmt.Fprintln(ctx.App.Writer, buf.String())
	}

	return nil
}
