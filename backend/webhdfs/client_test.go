package webhdfs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sahib/fsh/backend/backendtest"
	"github.com/sahib/fsh/backend/memory"
	"github.com/sahib/fsh/backend/webhdfs"
	"github.com/sahib/fsh/defaults"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	"github.com/sahib/fsh/gateway"
	"github.com/stretchr/testify/require"
)

var testOptions = webhdfs.Options{
	User:         "ali",
	RetryMax:     3,
	RetryWaitMin: time.Millisecond,
	RetryWaitMax: 5 * time.Millisecond,
}

func newGatewayHandler(t *testing.T, store fs.FilesystemClient) http.Handler {
	cfg, err := defaults.OpenDefaultConfig()
	require.Nil(t, err)

	gw, err := gateway.NewGateway(store, cfg.Section("gateway"))
	require.Nil(t, err)
	return gw.Handler()
}

func withServer(t *testing.T, handler http.Handler, fn func(cl *webhdfs.Client)) {
	srv := httptest.NewServer(handler)
	defer srv.Close()

	cl, err := webhdfs.New(strings.TrimPrefix(srv.URL, "http://"), testOptions)
	require.Nil(t, err)
	defer cl.Close()

	fn(cl)
}

func withClient(t *testing.T, fn func(cl *webhdfs.Client, store *memory.Backend)) {
	store := memory.New(memory.WithUser("ali"))
	withServer(t, newGatewayHandler(t, store), func(cl *webhdfs.Client) {
		fn(cl, store)
	})
}

func TestSuite(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) (fs.FilesystemClient, func()) {
		store := memory.New(memory.WithUser("ali"))
		srv := httptest.NewServer(newGatewayHandler(t, store))

		cl, err := webhdfs.New(strings.TrimPrefix(srv.URL, "http://"), testOptions)
		require.Nil(t, err)

		return cl, func() {
			cl.Close()
			srv.Close()
		}
	})
}

func TestDefaultPort(t *testing.T) {
	cl, err := webhdfs.New("namenode", webhdfs.Options{})
	require.Nil(t, err)
	require.Equal(t, "namenode:9870", cl.Addr())

	_, err = webhdfs.New("", webhdfs.Options{})
	require.NotNil(t, err)
}

func TestRetryOnUnavailable(t *testing.T) {
	store := memory.New(memory.WithUser("ali"))
	backendtest.MustCreate(t, store, "/file", []byte("x"))
	next := newGatewayHandler(t, store)

	var hits int32
	flaky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r)
	})

	withServer(t, flaky, func(cl *webhdfs.Client) {
		st, err := cl.Stat(context.Background(), "/file")
		require.Nil(t, err)
		require.Equal(t, int64(1), st.Length)
		require.Equal(t, int32(3), atomic.LoadInt32(&hits))
	})
}

func TestRetryOnTooManyRequests(t *testing.T) {
	store := memory.New(memory.WithUser("ali"))
	next := newGatewayHandler(t, store)

	var hits int32
	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})

	withServer(t, limited, func(cl *webhdfs.Client) {
		_, err := cl.Stat(context.Background(), "/")
		require.Nil(t, err)
		require.Equal(t, int32(2), atomic.LoadInt32(&hits))
	})
}

func TestNoRetryOnNotFound(t *testing.T) {
	next := newGatewayHandler(t, memory.New())

	var hits int32
	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		next.ServeHTTP(w, r)
	})

	withServer(t, counting, func(cl *webhdfs.Client) {
		_, err := cl.Stat(context.Background(), "/nope")
		require.True(t, ie.IsNotFound(err), "%v", err)
		require.Equal(t, int32(1), atomic.LoadInt32(&hits))
	})
}

func TestUnavailableForever(t *testing.T) {
	var hits int32
	down := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	withServer(t, down, func(cl *webhdfs.Client) {
		_, err := cl.Stat(context.Background(), "/")
		require.True(t, ie.IsConnectivity(err), "%v", err)
		require.Equal(t, int32(testOptions.RetryMax+1), atomic.LoadInt32(&hits))
	})
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	cl, err := webhdfs.New(addr, testOptions)
	require.Nil(t, err)

	_, err = cl.Stat(context.Background(), "/")
	require.True(t, ie.IsConnectivity(err), "%v", err)

	exists, err := fsExists(cl)
	require.False(t, exists)
	require.True(t, ie.IsConnectivity(err))
}

func fsExists(cl *webhdfs.Client) (bool, error) {
	_, err := cl.Stat(context.Background(), "/something")
	if ie.IsNotFound(err) {
		return false, nil
	}

	return err == nil, err
}

func TestPermissionDenied(t *testing.T) {
	withClient(t, func(cl *webhdfs.Client, store *memory.Backend) {
		err := cl.SetPermission(context.Background(), "/", 0700)
		require.True(t, ie.IsPermission(err), "%v", err)
	})
}

func TestOfflineStore(t *testing.T) {
	withClient(t, func(cl *webhdfs.Client, store *memory.Backend) {
		store.SetOnline(false)
		defer store.SetOnline(true)

		_, err := cl.Stat(context.Background(), "/")
		require.True(t, ie.IsConnectivity(err), "%v", err)
	})
}

func TestSetOwner(t *testing.T) {
	withClient(t, func(cl *webhdfs.Client, store *memory.Backend) {
		ctx := context.Background()
		backendtest.MustCreate(t, cl, "/owned", []byte("x"))
		require.Nil(t, cl.SetOwner(ctx, "/owned", "", "staff"))

		st, err := cl.Stat(ctx, "/owned")
		require.Nil(t, err)
		require.Equal(t, "staff", st.Group)
		require.Equal(t, "ali", st.Owner)
	})
}

func TestCanceledContext(t *testing.T) {
	withClient(t, func(cl *webhdfs.Client, store *memory.Backend) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := cl.Stat(ctx, "/")
		require.NotNil(t, err)
		require.False(t, ie.IsNotFound(err))
	})
}

func TestOtherUserIsDenied(t *testing.T) {
	withClient(t, func(cl *webhdfs.Client, store *memory.Backend) {
		ctx := context.Background()
		require.Nil(t, cl.Mkdirs(ctx, "/user/ali", 0755))
		backendtest.MustCreate(t, cl, "/user/ali/owned", []byte("x"))

		bob := cl.AsUser("bob")
		require.True(t, ie.IsPermission(bob.SetPermission(ctx, "/user/ali/owned", 0777)))
		require.True(t, ie.IsPermission(bob.Delete(ctx, "/user/ali/owned", false)))

		st, err := store.Stat(ctx, "/user/ali/owned")
		require.Nil(t, err)
		require.Equal(t, "ali", st.Owner)
	})
}
