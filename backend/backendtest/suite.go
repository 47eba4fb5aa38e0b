// Package backendtest contains a test suite that every FilesystemClient
// is expected to pass. It is imported by the tests of the backends.
package backendtest

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"sync"
	"testing"

	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh, empty client and a function to tear it down.
type Factory func(t *testing.T) (fs.FilesystemClient, func())

type testCase struct {
	name string
	fn   func(t *testing.T, client fs.FilesystemClient)
}

var testCases = []testCase{
	{"stat-root", testStatRoot},
	{"create-open", testCreateOpen},
	{"create-overwrite", testCreateOverwrite},
	{"create-large", testCreateLarge},
	{"create-on-dir", testCreateOnDir},
	{"mkdirs", testMkdirs},
	{"list", testList},
	{"delete", testDelete},
	{"rename", testRename},
	{"set-permission", testSetPermission},
	{"home", testHome},
	{"concurrent", testConcurrent},
}

// Run runs the whole suite; every case gets its own client from `factory`.
func Run(t *testing.T, factory Factory) {
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client, teardown := factory(t)
			defer teardown()

			tc.fn(t, client)
		})
	}
}

// MustCreate creates `p` with `data` or fails the test.
func MustCreate(t *testing.T, client fs.FilesystemClient, p string, data []byte) {
	n, err := client.Create(context.Background(), p, bytes.NewReader(data), false)
	require.Nil(t, err, "create %s", p)
	require.Equal(t, int64(len(data)), n)
}

// MustRead returns the content of `p` or fails the test.
func MustRead(t *testing.T, client fs.FilesystemClient, p string) []byte {
	rc, err := client.Open(context.Background(), p)
	require.Nil(t, err, "open %s", p)

	data, err := ioutil.ReadAll(rc)
	require.Nil(t, err)
	require.Nil(t, rc.Close())
	return data
}

func testStatRoot(t *testing.T, client fs.FilesystemClient) {
	st, err := client.Stat(context.Background(), "/")
	require.Nil(t, err)
	require.True(t, st.IsDir)
	require.Equal(t, "/", st.Path)

	_, err = client.Stat(context.Background(), "/does/not/exist")
	require.True(t, ie.IsNotFound(err), "%v", err)
}

func testCreateOpen(t *testing.T, client fs.FilesystemClient) {
	MustCreate(t, client, "/a/b/file", []byte("hello"))

	st, err := client.Stat(context.Background(), "/a/b/file")
	require.Nil(t, err)
	require.False(t, st.IsDir)
	require.Equal(t, int64(5), st.Length)
	require.Equal(t, "/a/b/file", st.Path)

	// Parents were created on the way:
	st, err = client.Stat(context.Background(), "/a/b")
	require.Nil(t, err)
	require.True(t, st.IsDir)

	require.Equal(t, []byte("hello"), MustRead(t, client, "/a/b/file"))

	_, err = client.Open(context.Background(), "/a/b/nope")
	require.True(t, ie.IsNotFound(err), "%v", err)

	_, err = client.Open(context.Background(), "/a/b")
	require.True(t, ie.IsDirectoryError(err), "%v", err)
}

func testCreateOverwrite(t *testing.T, client fs.FilesystemClient) {
	ctx := context.Background()
	MustCreate(t, client, "/file", []byte("first"))

	_, err := client.Create(ctx, "/file", bytes.NewReader([]byte("second")), false)
	require.True(t, ie.IsAlreadyExists(err), "%v", err)
	require.Equal(t, []byte("first"), MustRead(t, client, "/file"))

	_, err = client.Create(ctx, "/file", bytes.NewReader([]byte("2nd")), true)
	require.Nil(t, err)
	require.Equal(t, []byte("2nd"), MustRead(t, client, "/file"))
}

func testCreateLarge(t *testing.T, client fs.FilesystemClient) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024+7)
	MustCreate(t, client, "/large", data)
	require.Equal(t, data, MustRead(t, client, "/large"))

	MustCreate(t, client, "/empty", nil)
	require.Equal(t, 0, len(MustRead(t, client, "/empty")))
}

func testCreateOnDir(t *testing.T, client fs.FilesystemClient) {
	require.Nil(t, client.Mkdirs(context.Background(), "/dir", 0755))

	_, err := client.Create(context.Background(), "/dir", bytes.NewReader(nil), true)
	require.NotNil(t, err)
}

func testMkdirs(t *testing.T, client fs.FilesystemClient) {
	ctx := context.Background()
	require.Nil(t, client.Mkdirs(ctx, "/x/y/z", 0755))
	require.Nil(t, client.Mkdirs(ctx, "/x/y/z", 0755))

	st, err := client.Stat(ctx, "/x/y")
	require.Nil(t, err)
	require.True(t, st.IsDir)

	MustCreate(t, client, "/x/file", []byte("x"))
	err = client.Mkdirs(ctx, "/x/file/sub", 0755)
	require.True(t, ie.IsAlreadyExists(err) || ie.IsNotFound(err) || e.Cause(err) == ie.ErrNotADirectory, "%v", err)
}

func testList(t *testing.T, client fs.FilesystemClient) {
	ctx := context.Background()
	MustCreate(t, client, "/l/b", []byte("b"))
	MustCreate(t, client, "/l/a", []byte("aa"))
	require.Nil(t, client.Mkdirs(ctx, "/l/c", 0755))

	entries, err := client.List(ctx, "/l")
	require.Nil(t, err)
	require.Len(t, entries, 3)

	byName := map[string]fs.FileStatus{}
	for _, entry := range entries {
		byName[entry.Name()] = entry
	}

	require.Equal(t, int64(2), byName["a"].Length)
	require.Equal(t, "/l/a", byName["a"].Path)
	require.True(t, byName["c"].IsDir)

	// A file lists itself:
	entries, err = client.List(ctx, "/l/a")
	require.Nil(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/l/a", entries[0].Path)

	_, err = client.List(ctx, "/nope")
	require.True(t, ie.IsNotFound(err), "%v", err)
}

func testDelete(t *testing.T, client fs.FilesystemClient) {
	ctx := context.Background()
	MustCreate(t, client, "/d/sub/file", []byte("x"))

	err := client.Delete(ctx, "/d", false)
	require.Equal(t, ie.ErrNotEmpty, e.Cause(err), "%v", err)

	require.Nil(t, client.Delete(ctx, "/d/sub/file", false))
	require.Nil(t, client.Delete(ctx, "/d", true))

	_, err = client.Stat(ctx, "/d/sub")
	require.True(t, ie.IsNotFound(err))

	err = client.Delete(ctx, "/d", true)
	require.True(t, ie.IsNotFound(err), "%v", err)
}

func testRename(t *testing.T, client fs.FilesystemClient) {
	ctx := context.Background()
	MustCreate(t, client, "/r/src/file", []byte("data"))
	require.Nil(t, client.Mkdirs(ctx, "/r/dst", 0755))

	require.Nil(t, client.Rename(ctx, "/r/src", "/r/dst/moved"))
	require.Equal(t, []byte("data"), MustRead(t, client, "/r/dst/moved/file"))

	_, err := client.Stat(ctx, "/r/src")
	require.True(t, ie.IsNotFound(err))

	err = client.Rename(ctx, "/r/src", "/r/other")
	require.True(t, ie.IsNotFound(err), "%v", err)

	MustCreate(t, client, "/r/taken", nil)
	err = client.Rename(ctx, "/r/dst/moved/file", "/r/taken")
	require.True(t, ie.IsAlreadyExists(err), "%v", err)
}

func testSetPermission(t *testing.T, client fs.FilesystemClient) {
	ctx := context.Background()
	MustCreate(t, client, "/p", []byte("x"))

	require.Nil(t, client.SetPermission(ctx, "/p", 0600))
	st, err := client.Stat(ctx, "/p")
	require.Nil(t, err)
	require.Equal(t, os.FileMode(0600), st.Permission)

	err = client.SetPermission(ctx, "/nope", 0600)
	require.True(t, ie.IsNotFound(err), "%v", err)
}

func testHome(t *testing.T, client fs.FilesystemClient) {
	home, err := client.HomeDirectory(context.Background(), "ali")
	require.Nil(t, err)
	require.Equal(t, "/user/ali", home)
}

func testConcurrent(t *testing.T, client fs.FilesystemClient) {
	ctx := context.Background()
	wg := &sync.WaitGroup{}
	errs := make(chan error, 32)

	for idx := 0; idx < 16; idx++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			p := "/conc/" + string(rune('a'+idx))
			data := bytes.Repeat([]byte{byte(idx)}, 100+idx)
			if _, err := client.Create(ctx, p, bytes.NewReader(data), false); err != nil {
				errs <- err
				return
			}

			rc, err := client.Open(ctx, p)
			if err != nil {
				errs <- err
				return
			}

			defer rc.Close()

			read, err := ioutil.ReadAll(rc)
			if err == nil && !bytes.Equal(read, data) {
				err = e.Errorf("content of %s differs", p)
			}

			errs <- err
		}(idx)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.Nil(t, err)
	}

	entries, err := client.List(ctx, "/conc")
	require.Nil(t, err)
	require.Len(t, entries, 16)
}
