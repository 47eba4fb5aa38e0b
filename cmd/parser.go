package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sahib/fsh/version"
	"github.com/urfave/cli"
)

const defaultConfigPath = "~/.fsh/config.yml"

func formatGroup(category string) string {
	return strings.ToUpper(category) + " COMMANDS"
}

var (
	recursiveFlag = cli.BoolFlag{
		Name:  "recursive,R",
		Usage: "Apply the operation to all children too",
	}
	humanFlag = cli.BoolFlag{
		Name:  "human,H",
		Usage: "Print sizes in human readable form",
	}
)

////////////////////////////
// Commandline definition //
////////////////////////////

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "fsh"
	app.Usage = "Shell for HDFS-like file systems"
	app.EnableBashCompletion = true
	app.Version = version.String()
	app.CommandNotFound = commandNotFound

	// Groups:
	readGroup := formatGroup("reading")
	writGroup := formatGroup("writing")
	permGroup := formatGroup("permission")
	xferGroup := formatGroup("transfer")
	miscGroup := formatGroup("misc")

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config,c",
			Usage:  "Path of the config file",
			Value:  defaultConfigPath,
			EnvVar: "FSH_CONFIG",
		},
		cli.StringFlag{
			Name:   "uri,u",
			Usage:  "Store to work on, like kv:/// or webhdfs://host:9870 (default: fs.default_uri)",
			EnvVar: "FSH_URI",
		},
		cli.StringFlag{
			Name:   "user",
			Usage:  "Act as this user (default: fs.user or the current user)",
			EnvVar: "FSH_USER",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warning, error (default: log.level)",
		},
		cli.StringFlag{
			Name:   "log-path,l",
			Usage:  "Where to output the log. May be 'stderr' (default), 'stdout' or a file",
			Value:  "stderr",
			EnvVar: "FSH_LOG",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "test",
			Category:  readGroup,
			Usage:     "Check if a path exists",
			ArgsUsage: "[-z|-d] <path>",
			Description: "Exits with 0 if the path exists and with 6 if not.\n" +
				"   With -z the path must be an empty file, with -d a directory.",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "zero,z",
					Usage: "Check if the path is a file of length zero",
				},
				cli.BoolFlag{
					Name:  "dir,d",
					Usage: "Check if the path is a directory",
				},
			},
			Action: withArgCheck(needAtLeast(1), withShell(handleTest)),
		}, {
			Name:      "cat",
			Category:  readGroup,
			Usage:     "Print the content of files",
			ArgsUsage: "<path>...",
			Action:    withArgCheck(needAtLeast(1), withShell(handleCat)),
		}, {
			Name:      "text",
			Category:  readGroup,
			Usage:     "Like cat, but decompress gzip files",
			ArgsUsage: "<path>...",
			Action:    withArgCheck(needAtLeast(1), withShell(handleText)),
		}, {
			Name:      "ls",
			Category:  readGroup,
			Usage:     "List directories",
			ArgsUsage: "[-R] [-H] [<path>...]",
			Flags:     []cli.Flag{recursiveFlag, humanFlag},
			Action:    withShell(handleLs),
		}, {
			Name:      "lsr",
			Category:  readGroup,
			Usage:     "List directories recursively",
			ArgsUsage: "[-H] [<path>...]",
			Flags:     []cli.Flag{humanFlag},
			Action:    withShell(handleLsr),
		}, {
			Name:      "tree",
			Category:  readGroup,
			Usage:     "Show a directory as tree",
			ArgsUsage: "[<path>]",
			Action:    withShell(handleTree),
		}, {
			Name:      "du",
			Category:  readGroup,
			Usage:     "Show the size of every entry of a directory",
			ArgsUsage: "[-s] [-H] [<path>...]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "summary,s",
					Usage: "Show one total per path",
				},
				humanFlag,
			},
			Action: withShell(handleDu),
		}, {
			Name:      "dus",
			Category:  readGroup,
			Usage:     "Show the total size of paths",
			ArgsUsage: "[-H] [<path>...]",
			Flags:     []cli.Flag{humanFlag},
			Action:    withShell(handleDus),
		}, {
			Name:      "count",
			Category:  readGroup,
			Usage:     "Count directories, files and bytes below paths",
			ArgsUsage: "[-H] [<path>...]",
			Flags:     []cli.Flag{humanFlag},
			Action:    withShell(handleCount),
		}, {
			Name:      "length",
			Category:  readGroup,
			Usage:     "Print the length of files",
			ArgsUsage: "[-H] <path>...",
			Flags:     []cli.Flag{humanFlag},
			Action:    withArgCheck(needAtLeast(1), withShell(handleLength)),
		}, {
			Name:     "home",
			Category: readGroup,
			Usage:    "Print the home directory of the user",
			Action:   withShell(handleHome),
		}, {
			Name:     "pwd",
			Category: readGroup,
			Usage:    "Print the working directory",
			Action:   withShell(handlePwd),
		}, {
			Name:      "mkdir",
			Category:  writGroup,
			Usage:     "Create directories and their parents",
			ArgsUsage: "<path>...",
			Action:    withArgCheck(needAtLeast(1), withShell(handleMkdir)),
		}, {
			Name:      "touchz",
			Category:  writGroup,
			Usage:     "Create empty files",
			ArgsUsage: "<path>...",
			Action:    withArgCheck(needAtLeast(1), withShell(handleTouchz)),
		}, {
			Name:      "cp",
			Category:  writGroup,
			Usage:     "Copy files and directories inside the store",
			ArgsUsage: "<src>... <dst>",
			Description: "Sources may be glob patterns. A source starting with file://\n" +
				"   is read from the local disk, unless the store itself is file://.",
			Action: withArgCheck(needAtLeast(2), withShell(handleCp)),
		}, {
			Name:      "mv",
			Category:  writGroup,
			Usage:     "Move files and directories inside the store",
			ArgsUsage: "<src>... <dst>",
			Action:    withArgCheck(needAtLeast(2), withShell(handleMv)),
		}, {
			Name:      "rm",
			Category:  writGroup,
			Usage:     "Remove files",
			ArgsUsage: "[-R] <path>...",
			Flags:     []cli.Flag{recursiveFlag},
			Action:    withArgCheck(needAtLeast(1), withShell(handleRm)),
		}, {
			Name:      "rmr",
			Category:  writGroup,
			Usage:     "Remove files and directories recursively",
			ArgsUsage: "<path>...",
			Action:    withArgCheck(needAtLeast(1), withShell(handleRmr)),
		}, {
			Name:        "chmod",
			Category:    permGroup,
			Usage:       "Change the permission bits",
			ArgsUsage:   "[-R] <mode> <path>...",
			Description: "Mode is either octal (755) or symbolic (u+x,go-w).",
			Flags:       []cli.Flag{recursiveFlag},
			Action:      withArgCheck(needAtLeast(2), withShell(handleChmod)),
		}, {
			Name:      "chmodr",
			Category:  permGroup,
			Usage:     "Change the permission bits recursively",
			ArgsUsage: "<mode> <path>...",
			Action:    withArgCheck(needAtLeast(2), withShell(handleChmodr)),
		}, {
			Name:      "chown",
			Category:  permGroup,
			Usage:     "Change the owner (and group)",
			ArgsUsage: "[-R] <owner>[:<group>] <path>...",
			Flags:     []cli.Flag{recursiveFlag},
			Action:    withArgCheck(needAtLeast(2), withShell(handleChown)),
		}, {
			Name:      "chgrp",
			Category:  permGroup,
			Usage:     "Change the group",
			ArgsUsage: "[-R] <group> <path>...",
			Flags:     []cli.Flag{recursiveFlag},
			Action:    withArgCheck(needAtLeast(2), withShell(handleChgrp)),
		}, {
			Name:      "put",
			Category:  xferGroup,
			Usage:     "Copy local files into the store",
			ArgsUsage: "<local>... <dst>",
			Action:    withArgCheck(needAtLeast(2), withShell(handlePut)),
		}, {
			Name:      "copyFromLocal",
			Category:  xferGroup,
			Usage:     "Copy local files into the store",
			ArgsUsage: "<local>... <dst>",
			Description: "Files are written under a temporary name first and renamed\n" +
				"   when complete. Existing files are only replaced if fs.overwrite is set.",
			Action: withArgCheck(needAtLeast(2), withShell(handleCopyFromLocal)),
		}, {
			Name:      "moveFromLocal",
			Category:  xferGroup,
			Usage:     "Like put, but delete the local files afterwards",
			ArgsUsage: "<local>... <dst>",
			Action:    withArgCheck(needAtLeast(2), withShell(handleMoveFromLocal)),
		}, {
			Name:      "get",
			Category:  xferGroup,
			Usage:     "Copy files from the store to the local disk",
			ArgsUsage: "<src>... [<local>]",
			Action:    withArgCheck(needAtLeast(1), withShell(handleGet)),
		}, {
			Name:      "copyToLocal",
			Category:  xferGroup,
			Usage:     "Copy files from the store to the local disk",
			ArgsUsage: "<src>... [<local>]",
			Action:    withArgCheck(needAtLeast(1), withShell(handleGet)),
		}, {
			Name:      "getmerge",
			Category:  xferGroup,
			Usage:     "Concatenate the files of a directory into a local file",
			ArgsUsage: "[--nl] <src-dir> <local>",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "nl",
					Usage: "Add a newline after every file",
				},
			},
			Action: withArgCheck(needAtLeast(2), withShell(handleGetMerge)),
		}, {
			Name:      "gateway",
			Category:  miscGroup,
			Usage:     "Serve the store over WebHDFS",
			ArgsUsage: "[--host <host>] [--port <port>]",
			Description: "Starts a WebHDFS server for the store given by --uri.\n" +
				"   Other fsh instances may use it via webhdfs://host:port/",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "host",
					Usage: "Interface to listen on (default: gateway.host)",
				},
				cli.IntFlag{
					Name:  "port,p",
					Usage: "Port to listen on (default: gateway.port)",
				},
			},
			Action: withConfig(handleGateway),
		}, {
			Name:     "config",
			Category: miscGroup,
			Usage:    "Show and modify the config",
			Subcommands: []cli.Command{
				{
					Name:   "ls",
					Usage:  "Show all config values",
					Action: withConfig(handleConfigList),
				}, {
					Name:      "get",
					Usage:     "Get a specific config value",
					ArgsUsage: "<key>",
					Action:    withArgCheck(needAtLeast(1), withConfig(handleConfigGet)),
				}, {
					Name:      "set",
					Usage:     "Set a specific config value",
					ArgsUsage: "<key> <value>",
					Action:    withArgCheck(needAtLeast(2), withConfig(handleConfigSet)),
				}, {
					Name:      "doc",
					Usage:     "Show the documentation of a config key",
					ArgsUsage: "<key>",
					Action:    withArgCheck(needAtLeast(1), withConfig(handleConfigDoc)),
				},
			},
		}, {
			Name:     "bug",
			Category: miscGroup,
			Usage:    "Print a template for a bug report",
			Description: "Collects version and system details and opens the issue tracker.\n" +
				"   Use --stdout to print the report instead.",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "stdout,s",
					Usage: "Print the report to stdout",
				},
			},
			Action: withConfig(handleBugReport),
		}, {
			Name:     "version",
			Category: miscGroup,
			Usage:    "Show the version of fsh",
			Action:   handleVersion,
		},
	}

	return app
}

// runApp runs `app` and translates the result into an exit code.
func runApp(app *cli.App, args []string, errW io.Writer) int {
	err := app.Run(args)
	if err == nil {
		return Success
	}

	code := exitCodeFor(err)
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(errW, msg)
	}

	return code
}

// RunCmdline starts the fsh commandline tool.
func RunCmdline(args []string) int {
	return runApp(newApp(), args, os.Stderr)
}
