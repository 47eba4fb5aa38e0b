package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sahib/config"
	"github.com/sahib/fsh/defaults"
	"github.com/urfave/cli"
)

type configEntry struct {
	Key          string
	Val          string
	Default      string
	Doc          string
	NeedsRestart bool
}

func configEntryFor(cfg *config.Config, key string) configEntry {
	def := cfg.GetDefault(key)
	return configEntry{
		Key:          key,
		Val:          cfg.Uncast(key),
		Default:      fmt.Sprintf("%v", def.Default),
		Doc:          strings.TrimSpace(def.Docs),
		NeedsRestart: def.NeedsRestart,
	}
}

func printConfigDocEntry(w io.Writer, entry configEntry) {
	val := entry.Val
	if val == "" {
		val = color.YellowString("(empty)")
	}

	defaultMarker := ""
	if entry.Val == entry.Default {
		defaultMarker = color.CyanString("(default)")
	}

	fmt.Fprintf(w, "%s: %v %s\n", color.GreenString(entry.Key), val, defaultMarker)

	needsRestart := yesify(entry.NeedsRestart)
	defaultVal := entry.Default
	if entry.Default == "" {
		defaultVal = color.YellowString("(empty)")
	}

	fmt.Fprintf(w, "  Default:       %v\n", defaultVal)
	fmt.Fprintf(w, "  Documentation: %v\n", entry.Doc)
	fmt.Fprintf(w, "  Needs restart: %v\n", needsRestart)
}

func checkKey(cfg *config.Config, key string) error {
	if !cfg.IsValidKey(key) {
		return ExitCode{BadArgs, fmt.Sprintf("no such config key: %s", key)}
	}

	return nil
}

func handleConfigList(ctx *cli.Context, cfg *config.Config, path string) error {
	for _, key := range cfg.Keys() {
		printConfigDocEntry(ctx.App.Writer, configEntryFor(cfg, key))
	}

	return nil
}

func handleConfigGet(ctx *cli.Context, cfg *config.Config, path string) error {
	key := ctx.Args().Get(0)
	if err := checkKey(cfg, key); err != nil {
		return err
	}

	for _, elem := range strings.Split(cfg.Uncast(key), " ;; ") {
		fmt.Fprintln(ctx.App.Writer, elem)
	}

	return nil
}

func handleConfigSet(ctx *cli.Context, cfg *config.Config, path string) error {
	key := ctx.Args().Get(0)
	if err := checkKey(cfg, key); err != nil {
		return err
	}

	val := ctx.Args().Get(1)
	if len(ctx.Args()) > 2 {
		val = strings.Join(ctx.Args()[1:], " ;; ")
	}

	casted, err := cfg.Cast(key, val)
	if err != nil {
		return ExitCode{BadArgs, fmt.Sprintf("config set: %v", err)}
	}

	if err := cfg.Set(key, casted); err != nil {
		return ExitCode{BadArgs, fmt.Sprintf("config set: %v", err)}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return ExitCode{UnknownError, fmt.Sprintf("config set: %v", err)}
	}

	if err := defaults.SaveConfig(path, cfg); err != nil {
		return ExitCode{UnknownError, fmt.Sprintf("config set: %v", err)}
	}

	if cfg.GetDefault(key).NeedsRestart {
		fmt.Fprintln(ctx.App.Writer, "NOTE: A running gateway needs a restart for this option to take effect.")
	}

	return nil
}

func handleConfigDoc(ctx *cli.Context, cfg *config.Config, path string) error {
	key := ctx.Args().Get(0)
	if err := checkKey(cfg, key); err != nil {
		return err
	}

	printConfigDocEntry(ctx.App.Writer, configEntryFor(cfg, key))
	return nil
}
