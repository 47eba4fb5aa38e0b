package cmd

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sahib/fsh/defaults"
	ie "github.com/sahib/fsh/errors"
	"github.com/stretchr/testify/require"
)

type runFunc func(args ...string) (int, string)

func withApp(t *testing.T, fn func(run runFunc, dir string)) {
	dir, err := ioutil.TempDir("", "fsh-cmd-test")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	cfg, err := defaults.OpenDefaultConfig()
	require.Nil(t, err)

	dataDir := filepath.Join(dir, "data")
	require.Nil(t, os.MkdirAll(dataDir, 0700))
	require.Nil(t, cfg.SetString("local.root", dataDir))
	require.Nil(t, cfg.SetString("kv.path", filepath.Join(dir, "kv")))
	require.Nil(t, cfg.SetString("fs.default_uri", "file:///"))

	cfgPath := filepath.Join(dir, "config.yml")
	require.Nil(t, defaults.SaveConfig(cfgPath, cfg))

	run := func(args ...string) (int, string) {
		out := &bytes.Buffer{}
		app := newApp()
		app.Writer = out
		app.ErrWriter = out

		base := []string{
			"fsh",
			"--config", cfgPath,
			"--user", "ali",
			"--log-level", "error",
		}

		code := runApp(app, append(base, args...), out)
		return code, out.String()
	}

	fn(run, dir)
}

func writeLocal(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.Nil(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCmdRoundTrip(t *testing.T) {
	withApp(t, func(run runFunc, dir string) {
		local := writeLocal(t, dir, "hello.txt", "hello world")

		code, _ := run("mkdir", "docs")
		require.Equal(t, Success, code)

		code, _ = run("put", local, "docs")
		require.Equal(t, Success, code)

		code, out := run("cat", "docs/hello.txt")
		require.Equal(t, Success, code)
		require.Equal(t, "hello world", out)

		code, out = run("length", "docs/hello.txt")
		require.Equal(t, Success, code)
		require.Equal(t, "11\n", out)

		code, _ = run("test", "docs/hello.txt")
		require.Equal(t, Success, code)

		code, _ = run("test", "-d", "docs/hello.txt")
		require.Equal(t, TestFailed, code)

		code, out = run("ls", "docs")
		require.Equal(t, Success, code)
		require.Contains(t, out, "/user/ali/docs/hello.txt")
		require.Contains(t, out, "-rw-")

		code, _ = run("chmodr", "700", "docs")
		require.Equal(t, Success, code)

		code, _ = run("rmr", "docs")
		require.Equal(t, Success, code)

		code, _ = run("test", "docs")
		require.Equal(t, TestFailed, code)

		// rmr on a missing path is fine:
		code, _ = run("rmr", "docs")
		require.Equal(t, Success, code)
	})
}

func TestCmdExitCodes(t *testing.T) {
	withApp(t, func(run runFunc, dir string) {
		code, out := run("cat", "nope")
		require.Equal(t, NotFound, code)
		require.True(t, strings.HasPrefix(out, "cat: "), out)

		code, _ = run("mkdir", "dir")
		require.Equal(t, Success, code)

		code, _ = run("cat", "dir")
		require.Equal(t, IsADirectory, code)

		code, _ = run("rm", "dir")
		require.Equal(t, IsADirectory, code)

		code, _ = run("rm", "-R", "dir")
		require.Equal(t, Success, code)

		code, _ = run("touchz", "empty")
		require.Equal(t, Success, code)

		code, _ = run("test", "-z", "empty")
		require.Equal(t, Success, code)

		code, _ = run("cat")
		require.Equal(t, BadArgs, code)

		local := writeLocal(t, dir, "a", "a")
		code, _ = run("copyFromLocal", local, "a")
		require.Equal(t, Success, code)

		code, _ = run("copyFromLocal", local, "a")
		require.Equal(t, AlreadyExists, code)

		code, _ = run("length", "/")
		require.Equal(t, NotFound, code)
	})
}

func TestCmdHomeAndPwd(t *testing.T) {
	withApp(t, func(run runFunc, dir string) {
		code, out := run("home")
		require.Equal(t, Success, code)
		require.Equal(t, "file:///user/ali\n", out)

		code, out = run("--uri", "mem:///", "--user", "bob", "pwd")
		require.Equal(t, Success, code)
		require.Equal(t, "mem:///user/bob\n", out)
	})
}

func TestCmdGetAndGetMerge(t *testing.T) {
	withApp(t, func(run runFunc, dir string) {
		require.Equal(t, Success, first(run("mkdir", "parts")))
		for _, name := range []string{"b", "a"} {
			local := writeLocal(t, dir, name, name+name)
			require.Equal(t, Success, first(run("put", local, "parts")))
		}

		merged := filepath.Join(dir, "merged")
		require.Equal(t, Success, first(run("getmerge", "--nl", "parts", merged)))

		data, err := ioutil.ReadFile(merged)
		require.Nil(t, err)
		require.Equal(t, "aa\nbb\n", string(data))

		outDir := filepath.Join(dir, "out")
		require.Nil(t, os.Mkdir(outDir, 0700))
		require.Equal(t, Success, first(run("get", "parts/*", outDir)))

		data, err = ioutil.ReadFile(filepath.Join(outDir, "b"))
		require.Nil(t, err)
		require.Equal(t, "bb", string(data))

		code, out := run("count", "parts")
		require.Equal(t, Success, code)
		require.Equal(t, []string{"1", "2", "4", "/user/ali/parts"}, strings.Fields(out))
	})
}

func TestCmdTree(t *testing.T) {
	withApp(t, func(run runFunc, dir string) {
		require.Equal(t, Success, first(run("mkdir", "t/sub")))
		require.Equal(t, Success, first(run("touchz", "t/sub/x", "t/y")))

		code, out := run("tree", "t")
		require.Equal(t, Success, code)
		require.Contains(t, out, "sub")
		require.Contains(t, out, "x")
		require.Contains(t, out, "1 directory, 2 files")
	})
}

func TestCmdConfig(t *testing.T) {
	withApp(t, func(run runFunc, dir string) {
		require.Equal(t, Success, first(run("config", "set", "kv.compression", "lz4")))

		code, out := run("config", "get", "kv.compression")
		require.Equal(t, Success, code)
		require.Equal(t, "lz4\n", out)

		require.Equal(t, BadArgs, first(run("config", "set", "kv.compression", "zip")))
		require.Equal(t, BadArgs, first(run("config", "get", "no.such.key")))

		code, out = run("config", "doc", "kv.block_size")
		require.Equal(t, Success, code)
		require.Contains(t, out, "65536")
	})
}

func first(code int, out string) int {
	return code
}

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, Success, exitCodeFor(nil))
	require.Equal(t, NotFound, exitCodeFor(ie.NotFound("/x")))
	require.Equal(t, AlreadyExists, exitCodeFor(ie.AlreadyExists("/x")))
	require.Equal(t, PermissionDenied, exitCodeFor(ie.PermissionDenied("/x", "not owner")))
	require.Equal(t, IsADirectory, exitCodeFor(ie.IsADirectory("/x")))
	require.Equal(t, Unreachable, exitCodeFor(ie.Connectivity("host:1", os.ErrClosed)))
	require.Equal(t, TestFailed, exitCodeFor(ExitCode{TestFailed, ""}))
	require.Equal(t, UnknownError, exitCodeFor(os.ErrInvalid))
}

func TestSuggestions(t *testing.T) {
	app := newApp()

	similars := findSimilarCommands("mkdri", app.Commands)
	require.NotEmpty(t, similars)
	require.Equal(t, "mkdir", similars[0].name)

	similars = findSimilarCommands("copy", app.Commands)
	require.True(t, hasSuggestion(similars, "cp"))

	require.Empty(t, findSimilarCommands("xyzzy", app.Commands))
}

func TestCmdBugAndVersion(t *testing.T) {
	withApp(t, func(run runFunc, dir string) {
		code, out := run("bug", "--stdout")
		require.Equal(t, Success, code)
		require.Contains(t, out, "store scheme:   ``file``")
		require.Contains(t, out, "store reached:  ``yes``")

		code, out = run("version")
		require.Equal(t, Success, code)
		require.Equal(t, "unreleased\n", out)
	})
}
