package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/shell"
	"github.com/urfave/cli"
)

const timeFormat = "2006-01-02 15:04"

// argsOr returns the arguments of `ctx` or `def` if there are none.
func argsOr(ctx *cli.Context, def string) []string {
	if !ctx.Args().Present() {
		return []string{def}
	}

	return ctx.Args()
}

// splitDest splits the arguments into sources and the last argument.
func splitDest(ctx *cli.Context) ([]string, string) {
	args := ctx.Args()
	return args[:len(args)-1], args[len(args)-1]
}

func formatSize(size int64, human bool) string {
	if human {
		return humanize.Bytes(uint64(size))
	}

	return strconv.FormatInt(size, 10)
}

func formatMode(st *fs.FileStatus) string {
	mode := st.Permission & os.ModePerm
	if st.IsDir {
		mode |= os.ModeDir
	}

	return mode.String()
}

func printStatus(w io.Writer, entries []fs.FileStatus, human bool) error {
	tabW := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for idx := range entries {
		st := &entries[idx]
		path := st.Path
		if st.IsDir {
			path = color.BlueString(path)
		}

		fmt.Fprintf(
			tabW,
			"%s\t%s\t%s\t%s\t%s\t %s\n",
			formatMode(st),
			st.Owner,
			st.Group,
			formatSize(st.Length, human),
			st.ModTime.Format(timeFormat),
			path,
		)
	}

	return tabW.Flush()
}

func handleTest(ctx *cli.Context, sh *shell.Shell) error {
	opts := shell.TestOptions{
		Zero:      ctx.Bool("zero"),
		Directory: ctx.Bool("dir"),
	}

	var (
		ok  bool
		err error
	)

	if opts.Zero || opts.Directory {
		ok, err = sh.TestWith(context.Background(), ctx.Args().First(), opts)
	} else {
		ok, err = sh.Test(context.Background(), ctx.Args().First())
	}

	if err != nil {
		return err
	}

	if !ok {
		return ExitCode{TestFailed, ""}
	}

	return nil
}

func handleMkdir(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range ctx.Args() {
		if err := sh.Mkdir(context.Background(), path); err != nil {
			return err
		}
	}

	return nil
}

// needDirForMany checks that `dst` is a directory if there is more than one source.
func needDirForMany(sh *shell.Shell, srcs []string, dst string) error {
	if len(srcs) <= 1 {
		return nil
	}

	isDir, err := sh.TestWith(context.Background(), dst, shell.TestOptions{Directory: true})
	if err != nil {
		return err
	}

	if !isDir {
		return ExitCode{BadArgs, fmt.Sprintf("%s must be a directory for several sources", dst)}
	}

	return nil
}

func handleCp(ctx *cli.Context, sh *shell.Shell) error {
	srcs, dst := splitDest(ctx)
	if err := needDirForMany(sh, srcs, dst); err != nil {
		return err
	}

	for _, src := range srcs {
		if err := sh.Cp(context.Background(), src, dst); err != nil {
			return err
		}
	}

	return nil
}

func handleMv(ctx *cli.Context, sh *shell.Shell) error {
	srcs, dst := splitDest(ctx)
	if err := needDirForMany(sh, srcs, dst); err != nil {
		return err
	}

	for _, src := range srcs {
		if err := sh.Mv(context.Background(), src, dst); err != nil {
			return err
		}
	}

	return nil
}

func chmod(ctx *cli.Context, sh *shell.Shell, recursive bool) error {
	mode := ctx.Args().First()
	for _, path := range ctx.Args().Tail() {
		var err error
		if recursive {
			err = sh.Chmodr(context.Background(), mode, path)
		} else {
			err = sh.Chmod(context.Background(), mode, path)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func handleChmod(ctx *cli.Context, sh *shell.Shell) error {
	return chmod(ctx, sh, ctx.Bool("recursive"))
}

func handleChmodr(ctx *cli.Context, sh *shell.Shell) error {
	return chmod(ctx, sh, true)
}

func handleChown(ctx *cli.Context, sh *shell.Shell) error {
	spec := ctx.Args().First()
	for _, path := range ctx.Args().Tail() {
		var err error
		if ctx.Bool("recursive") {
			err = sh.Chownr(context.Background(), spec, path)
		} else {
			err = sh.Chown(context.Background(), spec, path)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func handleChgrp(ctx *cli.Context, sh *shell.Shell) error {
	group := ctx.Args().First()
	for _, path := range ctx.Args().Tail() {
		var err error
		if ctx.Bool("recursive") {
			err = sh.Chgrpr(context.Background(), group, path)
		} else {
			err = sh.Chgrp(context.Background(), group, path)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func handleCat(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range ctx.Args() {
		if err := sh.CatTo(context.Background(), ctx.App.Writer, path); err != nil {
			return err
		}
	}

	return nil
}

func handleText(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range ctx.Args() {
		if err := sh.TextTo(context.Background(), ctx.App.Writer, path); err != nil {
			return err
		}
	}

	return nil
}

func list(ctx *cli.Context, sh *shell.Shell, recursive bool) error {
	for _, path := range argsOr(ctx, ".") {
		var (
			entries []fs.FileStatus
			err     error
		)

		if recursive {
			entries, err = sh.Lsr(context.Background(), path)
		} else {
			entries, err = sh.Ls(context.Background(), path)
		}

		if err != nil {
			return err
		}

		if err := printStatus(ctx.App.Writer, entries, ctx.Bool("human")); err != nil {
			return err
		}
	}

	return nil
}

func handleLs(ctx *cli.Context, sh *shell.Shell) error {
	return list(ctx, sh, ctx.Bool("recursive"))
}

func handleLsr(ctx *cli.Context, sh *shell.Shell) error {
	return list(ctx, sh, true)
}

func handleTree(ctx *cli.Context, sh *shell.Shell) error {
	root := ctx.Args().First()
	if root == "" {
		root = "."
	}

	rootPath, err := sh.Handle().Resolve(root)
	if err != nil {
		return err
	}

	entries, err := sh.Lsr(context.Background(), root)
	if err != nil {
		return err
	}

	showTree(ctx.App.Writer, rootPath.Path(), entries, &treeCfg{})
	return nil
}

func handleRm(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range ctx.Args() {
		var err error
		if ctx.Bool("recursive") {
			err = sh.Rmr(context.Background(), path)
		} else {
			err = sh.Rm(context.Background(), path)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func handleRmr(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range ctx.Args() {
		if err := sh.Rmr(context.Background(), path); err != nil {
			return err
		}
	}

	return nil
}

func handlePut(ctx *cli.Context, sh *shell.Shell) error {
	locals, dst := splitDest(ctx)
	return sh.Put(context.Background(), locals, dst)
}

func handleCopyFromLocal(ctx *cli.Context, sh *shell.Shell) error {
	locals, dst := splitDest(ctx)
	if len(locals) == 1 {
		return sh.CopyFromLocal(context.Background(), locals[0], dst)
	}

	return sh.Put(context.Background(), locals, dst)
}

func handleMoveFromLocal(ctx *cli.Context, sh *shell.Shell) error {
	locals, dst := splitDest(ctx)
	return sh.MoveFromLocal(context.Background(), locals, dst)
}

func handleGet(ctx *cli.Context, sh *shell.Shell) error {
	srcs, local := []string{ctx.Args().First()}, "."
	if ctx.NArg() > 1 {
		srcs, local = splitDest(ctx)
	}

	for _, src := range srcs {
		if err := sh.CopyToLocal(context.Background(), src, local); err != nil {
			return err
		}
	}

	return nil
}

func handleGetMerge(ctx *cli.Context, sh *shell.Shell) error {
	src := ctx.Args().Get(0)
	local := ctx.Args().Get(1)
	return sh.GetMerge(context.Background(), src, local, ctx.Bool("nl"))
}

func printUsages(w io.Writer, usages []shell.Usage, human bool) {
	for _, usage := range usages {
		fmt.Fprintf(w, "%-12s %s\n", formatSize(usage.Summary.Length, human), usage.Path)
	}
}

func handleDu(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range argsOr(ctx, ".") {
		var (
			usages []shell.Usage
			err    error
		)

		if ctx.Bool("summary") {
			usages, err = sh.Dus(context.Background(), path)
		} else {
			usages, err = sh.Du(context.Background(), path)
		}

		if err != nil {
			return err
		}

		printUsages(ctx.App.Writer, usages, ctx.Bool("human"))
	}

	return nil
}

func handleDus(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range argsOr(ctx, ".") {
		usages, err := sh.Dus(context.Background(), path)
		if err != nil {
			return err
		}

		printUsages(ctx.App.Writer, usages, ctx.Bool("human"))
	}

	return nil
}

func handleCount(ctx *cli.Context, sh *shell.Shell) error {
	human := ctx.Bool("human")
	for _, path := range argsOr(ctx, ".") {
		usages, err := sh.Count(context.Background(), path)
		if err != nil {
			return err
		}

		for _, usage := range usages {
			fmt.Fprintf(
				ctx.App.Writer,
				"%12d %12d %12s %s\n",
				usage.Summary.DirectoryCount,
				usage.Summary.FileCount,
				formatSize(usage.Summary.Length, human),
				usage.Path,
			)
		}
	}

	return nil
}

func handleTouchz(ctx *cli.Context, sh *shell.Shell) error {
	for _, path := range ctx.Args() {
		if err := sh.Touchz(context.Background(), path); err != nil {
			return err
		}
	}

	return nil
}

func handleLength(ctx *cli.Context, sh *shell.Shell) error {
	hd := sh.Handle()
	for _, path := range ctx.Args() {
		qp, err := hd.Resolve(path)
		if err != nil {
			return err
		}

		length, err := hd.Length(context.Background(), qp)
		if err != nil {
			if ie.IsNotFound(err) {
				return ExitCode{NotFound, fmt.Sprintf("length: %s is not a file", qp)}
			}

			return err
		}

		fmt.Fprintln(ctx.App.Writer, formatSize(length, ctx.Bool("human")))
	}

	return nil
}

func handleHome(ctx *cli.Context, sh *shell.Shell) error {
	fmt.Fprintln(ctx.App.Writer, sh.Handle().HomeDirectory())
	return nil
}

func handlePwd(ctx *cli.Context, sh *shell.Shell) error {
	fmt.Fprintln(ctx.App.Writer, sh.Handle().WorkingDirectory())
	return nil
}
