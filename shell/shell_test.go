package shell

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	e "github.com/pkg/errors"
	"github.com/sahib/fsh/backend/kv"
	"github.com/sahib/fsh/backend/local"
	"github.com/sahib/fsh/backend/memory"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/fspath"
	"github.com/stretchr/testify/require"
)

const testUser = "ali"

func withHandle(t *testing.T, client fs.FilesystemClient, uri string, fn func(sh *Shell)) {
	hd, err := fs.New(context.Background(), client, fspath.MustParse(uri), fs.WithUser(testUser))
	require.Nil(t, err)

	defer func() {
		require.Nil(t, hd.Close())
	}()

	fn(New(hd))
}

func withMemoryShell(t *testing.T, fn func(sh *Shell, bk *memory.Backend)) {
	bk := memory.New(memory.WithUser(testUser))
	withHandle(t, bk, "mem:///", func(sh *Shell) {
		fn(sh, bk)
	})
}

func withLocalShell(t *testing.T, fn func(sh *Shell)) {
	root, err := ioutil.TempDir("", "fsh-shell-local")
	require.Nil(t, err)
	defer os.RemoveAll(root)

	bk, err := local.New(root, fs.DefaultHomePrefix)
	require.Nil(t, err)
	withHandle(t, bk, "file:///", fn)
}

func withKVShell(t *testing.T, fn func(sh *Shell)) {
	bk, err := kv.New(kv.NewMemoryDatabase(), kv.Options{
		User:      testUser,
		BlockSize: 16,
	})
	require.Nil(t, err)
	withHandle(t, bk, "kv:///", fn)
}

// withEachShell runs `fn` once per backend type.
func withEachShell(t *testing.T, fn func(t *testing.T, sh *Shell)) {
	t.Run("memory", func(t *testing.T) {
		withMemoryShell(t, func(sh *Shell, _ *memory.Backend) { fn(t, sh) })
	})
	t.Run("local", func(t *testing.T) {
		withLocalShell(t, func(sh *Shell) { fn(t, sh) })
	})
	t.Run("kv", func(t *testing.T) {
		withKVShell(t, func(sh *Shell) { fn(t, sh) })
	})
}

func withLocalFile(t *testing.T, data []byte, fn func(path string)) {
	dir, err := ioutil.TempDir("", "fsh-shell-src")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "file")
	require.Nil(t, ioutil.WriteFile(path, data, 0644))
	fn(path)
}

func mustPut(t *testing.T, sh *Shell, p string, data []byte) {
	qp, err := sh.Handle().Resolve(p)
	require.Nil(t, err)

	n, err := sh.Handle().Create(context.Background(), qp, bytes.NewReader(data), false)
	require.Nil(t, err)
	require.Equal(t, int64(len(data)), n)
}

func names(entries []fs.FileStatus) []string {
	result := []string{}
	for idx := range entries {
		result = append(result, entries[idx].Name())
	}

	return result
}

func TestRoundTrip(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		data := []byte("hello world")

		withLocalFile(t, data, func(localPath string) {
			require.Nil(t, sh.Mkdir(ctx, "script-dir/"))
			require.Nil(t, sh.CopyFromLocal(ctx, localPath, "script-dir/"))
			require.Nil(t, sh.Chmodr(ctx, "700", "script-dir"))

			content, err := sh.Cat(ctx, "script-dir/file")
			require.Nil(t, err)
			require.Equal(t, data, content)

			st, err := sh.Handle().Stat(ctx, fspath.MustParse("script-dir/file"))
			require.Nil(t, err)
			require.Equal(t, os.FileMode(0700), st.Permission)

			require.Nil(t, sh.Rmr(ctx, "script-dir"))

			exists, err := sh.Test(ctx, "script-dir")
			require.Nil(t, err)
			require.False(t, exists)
		})
	})
}

func TestCpFromLocalURI(t *testing.T) {
	withMemoryShell(t, func(sh *Shell, _ *memory.Backend) {
		ctx := context.Background()
		withLocalFile(t, []byte("xyz"), func(localPath string) {
			require.Nil(t, sh.Mkdir(ctx, "script-dir/"))
			require.Nil(t, sh.Cp(ctx, "file://"+filepath.ToSlash(localPath), "script-dir/"))

			content, err := sh.Cat(ctx, "script-dir/file")
			require.Nil(t, err)
			require.Equal(t, []byte("xyz"), content)
		})
	})
}

func TestTestWith(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		require.Nil(t, sh.Mkdir(ctx, "dir"))
		require.Nil(t, sh.Touchz(ctx, "dir/empty"))
		mustPut(t, sh, "dir/full", []byte("x"))

		check := func(p string, opts TestOptions, expect bool) {
			ok, err := sh.TestWith(ctx, p, opts)
			require.Nil(t, err)
			require.Equal(t, expect, ok, p)
		}

		check("dir", TestOptions{Directory: true}, true)
		check("dir/empty", TestOptions{Directory: true}, false)
		check("dir/empty", TestOptions{Zero: true}, true)
		check("dir/full", TestOptions{Zero: true}, false)
		check("dir/full", TestOptions{}, true)
		check("dir/nope", TestOptions{}, false)
	})
}

func TestMkdir(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		require.Nil(t, sh.Mkdir(ctx, "a/b/c"))
		require.Nil(t, sh.Mkdir(ctx, "a/b/c"))

		ok, err := sh.TestWith(ctx, "a/b", TestOptions{Directory: true})
		require.Nil(t, err)
		require.True(t, ok)

		mustPut(t, sh, "a/file", []byte("x"))
		require.True(t, ie.IsAlreadyExists(sh.Mkdir(ctx, "a/file")))
	})
}

func TestCp(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		mustPut(t, sh, "src/x", []byte("1"))
		mustPut(t, sh, "src/sub/y", []byte("22"))
		require.Nil(t, sh.Mkdir(ctx, "dst"))

		require.Nil(t, sh.Cp(ctx, "src", "dst"))

		content, err := sh.Cat(ctx, "dst/src/sub/y")
		require.Nil(t, err)
		require.Equal(t, []byte("22"), content)

		// The source stays untouched:
		content, err = sh.Cat(ctx, "src/x")
		require.Nil(t, err)
		require.Equal(t, []byte("1"), content)

		// Copying again does not silently overwrite.
		require.True(t, ie.IsAlreadyExists(sh.Cp(ctx, "src/x", "dst/src")))
		require.True(t, ie.IsNotFound(sh.Cp(ctx, "nope", "dst")))
		require.NotNil(t, sh.Cp(ctx, "src", "src/sub"))
	})
}

func TestCpGlob(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		mustPut(t, sh, "logs/a.log", []byte("a"))
		mustPut(t, sh, "logs/b.log", []byte("b"))
		mustPut(t, sh, "logs/c.txt", []byte("c"))

		// Several sources need a directory:
		require.NotNil(t, sh.Cp(ctx, "logs/*.log", "archive"))
		require.Nil(t, sh.Mkdir(ctx, "archive"))
		require.Nil(t, sh.Cp(ctx, "logs/*.log", "archive"))

		entries, err := sh.Ls(ctx, "archive")
		require.Nil(t, err)
		require.Equal(t, []string{"a.log", "b.log"}, names(entries))
	})
}

func TestMv(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		mustPut(t, sh, "a", []byte("data"))
		require.Nil(t, sh.Mkdir(ctx, "dir"))
		require.Nil(t, sh.Mv(ctx, "a", "dir"))

		exists, err := sh.Test(ctx, "a")
		require.Nil(t, err)
		require.False(t, exists)

		content, err := sh.Cat(ctx, "dir/a")
		require.Nil(t, err)
		require.Equal(t, []byte("data"), content)

		require.NotNil(t, sh.Mv(ctx, "dir", "dir/a/deeper"))
	})
}

func TestCatDirectory(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		require.Nil(t, sh.Mkdir(ctx, "dir"))

		_, err := sh.Cat(ctx, "dir")
		require.True(t, ie.IsDirectoryError(err))

		_, err = sh.Cat(ctx, "missing")
		require.True(t, ie.IsNotFound(err))
	})
}

func TestCatGlob(t *testing.T) {
	withMemoryShell(t, func(sh *Shell, _ *memory.Backend) {
		ctx := context.Background()
		mustPut(t, sh, "parts/2", []byte("world"))
		mustPut(t, sh, "parts/1", []byte("hello "))

		content, err := sh.Cat(ctx, "parts/*")
		require.Nil(t, err)
		require.Equal(t, []byte("hello world"), content)
	})
}

func TestText(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()

		buf := &bytes.Buffer{}
		zw := gzip.NewWriter(buf)
		_, err := zw.Write([]byte("compressed text"))
		require.Nil(t, err)
		require.Nil(t, zw.Close())

		mustPut(t, sh, "text.gz", buf.Bytes())
		mustPut(t, sh, "plain", []byte("p"))
		mustPut(t, sh, "short", []byte{0x1f})

		content, err := sh.Text(ctx, "text.gz")
		require.Nil(t, err)
		require.Equal(t, []byte("compressed text"), content)

		content, err = sh.Text(ctx, "plain")
		require.Nil(t, err)
		require.Equal(t, []byte("p"), content)

		content, err = sh.Text(ctx, "short")
		require.Nil(t, err)
		require.Equal(t, []byte{0x1f}, content)
	})
}

func TestLs(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		mustPut(t, sh, "dir/c", []byte("c"))
		mustPut(t, sh, "dir/a", []byte("a"))
		require.Nil(t, sh.Mkdir(ctx, "dir/b"))
		mustPut(t, sh, "dir/b/deep", []byte("d"))

		entries, err := sh.Ls(ctx, "dir")
		require.Nil(t, err)
		require.Equal(t, []string{"a", "b", "c"}, names(entries))

		entries, err = sh.Ls(ctx, "dir/a")
		require.Nil(t, err)
		require.Equal(t, []string{"a"}, names(entries))

		entries, err = sh.Lsr(ctx, "dir")
		require.Nil(t, err)
		require.Equal(t, []string{"a", "b", "deep", "c"}, names(entries))

		_, err = sh.Ls(ctx, "nothing")
		require.True(t, ie.IsNotFound(err))
	})
}

func TestMkdirThenLsIsEmpty(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		require.Nil(t, sh.Mkdir(ctx, "fresh"))

		entries, err := sh.Ls(ctx, "fresh")
		require.Nil(t, err)
		require.NotNil(t, entries)
		require.Len(t, entries, 0)
	})
}

func TestChmodrTree(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		require.Nil(t, sh.Mkdir(ctx, "tree/sub/deeper"))
		require.Nil(t, sh.Mkdir(ctx, "tree/empty"))
		mustPut(t, sh, "tree/a", []byte("a"))
		mustPut(t, sh, "tree/sub/b", []byte("b"))
		mustPut(t, sh, "tree/sub/deeper/c", []byte("c"))

		require.Nil(t, sh.Chmodr(ctx, "750", "tree"))

		nodes := []string{
			"tree",
			"tree/a",
			"tree/empty",
			"tree/sub",
			"tree/sub/b",
			"tree/sub/deeper",
			"tree/sub/deeper/c",
		}

		for _, node := range nodes {
			st, err := sh.Handle().Stat(ctx, fspath.MustParse(node))
			require.Nil(t, err, node)
			require.Equal(t, os.FileMode(0750), st.Permission, node)
		}

		seen := 0
		root := fspath.MustParse("tree")
		err := sh.Handle().Walk(ctx, root, -1, func(p fspath.Path, st *fs.FileStatus) error {
			seen++
			return nil
		})

		require.Nil(t, err)
		require.Equal(t, len(nodes), seen)
	})
}

func TestRm(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		mustPut(t, sh, "dir/file", []byte("x"))

		require.Equal(t, ie.ErrIsDir, e.Cause(sh.Rm(ctx, "dir")))
		require.Nil(t, sh.Rm(ctx, "dir/file"))
		require.True(t, ie.IsNotFound(sh.Rm(ctx, "dir/file")))

		// Rmr is fine with missing paths:
		require.Nil(t, sh.Rmr(ctx, "dir"))
		require.Nil(t, sh.Rmr(ctx, "dir"))
		require.Nil(t, sh.Rmr(ctx, "never/*/existed"))
	})
}

func TestTouchz(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		require.Nil(t, sh.Touchz(ctx, "empty"))
		require.Nil(t, sh.Touchz(ctx, "empty"))

		mustPut(t, sh, "full", []byte("x"))
		require.True(t, ie.IsAlreadyExists(sh.Touchz(ctx, "full")))

		require.Nil(t, sh.Mkdir(ctx, "dir"))
		require.True(t, ie.IsDirectoryError(sh.Touchz(ctx, "dir")))
	})
}

func TestChmodSymbolic(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		mustPut(t, sh, "f", []byte("x"))
		require.Nil(t, sh.Chmod(ctx, "600", "f"))
		require.Nil(t, sh.Chmod(ctx, "g+r,o+r", "f"))

		st, err := sh.Handle().Stat(ctx, fspath.MustParse("f"))
		require.Nil(t, err)
		require.Equal(t, os.FileMode(0644), st.Permission)

		require.NotNil(t, sh.Chmod(ctx, "u+q", "f"))
		require.NotNil(t, sh.Chmod(ctx, "999", "f"))
	})
}

func TestChmodrNotOwner(t *testing.T) {
	withMemoryShell(t, func(sh *Shell, _ *memory.Backend) {
		// The root belongs to the superuser.
		err := sh.Chmodr(context.Background(), "700", "/")
		require.True(t, ie.IsPermission(err), "%v", err)
	})
}

func TestChown(t *testing.T) {
	withMemoryShell(t, func(sh *Shell, _ *memory.Backend) {
		ctx := context.Background()
		mustPut(t, sh, "dir/f", []byte("x"))

		require.Nil(t, sh.Chgrpr(ctx, "staff", "dir"))
		st, err := sh.Handle().Stat(ctx, fspath.MustParse("dir/f"))
		require.Nil(t, err)
		require.Equal(t, "staff", st.Group)
		require.Equal(t, testUser, st.Owner)

		// Only the superuser may give files away:
		require.True(t, ie.IsPermission(sh.Chown(ctx, "bob", "dir/f")))
		require.NotNil(t, sh.Chown(ctx, ":", "dir/f"))
	})
}

func TestOffline(t *testing.T) {
	withMemoryShell(t, func(sh *Shell, bk *memory.Backend) {
		ctx := context.Background()
		bk.SetOnline(false)
		defer bk.SetOnline(true)

		_, err := sh.Test(ctx, "anything")
		require.True(t, ie.IsConnectivity(err))
		require.True(t, ie.IsConnectivity(sh.Mkdir(ctx, "dir")))
		require.True(t, ie.IsConnectivity(sh.Rmr(ctx, "dir")))
	})
}

func TestPutGetMerge(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		dir, err := ioutil.TempDir("", "fsh-shell-put")
		require.Nil(t, err)
		defer os.RemoveAll(dir)

		a := filepath.Join(dir, "a")
		b := filepath.Join(dir, "b")
		require.Nil(t, ioutil.WriteFile(a, []byte("A"), 0644))
		require.Nil(t, ioutil.WriteFile(b, []byte("B"), 0644))

		require.Nil(t, sh.Mkdir(ctx, "in"))
		require.Nil(t, sh.Put(ctx, []string{a, b}, "in"))

		merged := filepath.Join(dir, "merged")
		require.Nil(t, sh.GetMerge(ctx, "in", merged, true))

		data, err := ioutil.ReadFile(merged)
		require.Nil(t, err)
		require.Equal(t, "A\nB\n", string(data))

		out := filepath.Join(dir, "out")
		require.Nil(t, os.Mkdir(out, 0755))
		require.Nil(t, sh.Get(ctx, "in", out))

		data, err = ioutil.ReadFile(filepath.Join(out, "in", "b"))
		require.Nil(t, err)
		require.Equal(t, "B", string(data))

		require.Nil(t, sh.MoveFromLocal(ctx, []string{a}, "moved"))
		_, err = os.Stat(a)
		require.True(t, os.IsNotExist(err))

		content, err := sh.Cat(ctx, "moved")
		require.Nil(t, err)
		require.Equal(t, []byte("A"), content)
	})
}

func TestUsage(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		mustPut(t, sh, "du/a", []byte("123"))
		mustPut(t, sh, "du/sub/b", []byte("45"))

		usages, err := sh.Du(ctx, "du")
		require.Nil(t, err)
		require.Len(t, usages, 2)
		require.Equal(t, int64(3), usages[0].Summary.Length)
		require.Equal(t, int64(2), usages[1].Summary.Length)

		usages, err = sh.Count(ctx, "du")
		require.Nil(t, err)
		require.Len(t, usages, 1)
		require.Equal(t, fs.ContentSummary{
			Length:         5,
			FileCount:      2,
			DirectoryCount: 2,
		}, usages[0].Summary)
	})
}

func TestConcurrentReaders(t *testing.T) {
	withEachShell(t, func(t *testing.T, sh *Shell) {
		ctx := context.Background()
		data := bytes.Repeat([]byte("abc"), 100)
		mustPut(t, sh, "shared", data)

		wg := &sync.WaitGroup{}
		errs := make(chan error, 10)
		for idx := 0; idx < 10; idx++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				content, err := sh.Cat(ctx, "shared")
				if err == nil && !bytes.Equal(content, data) {
					err = ie.NotFound("shared")
				}

				errs <- err
			}()
		}

		wg.Wait()
		close(errs)

		for err := range errs {
			require.Nil(t, err)
		}
	})
}
