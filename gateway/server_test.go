package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/sahib/config"
	"github.com/sahib/fsh/backend/memory"
	"github.com/sahib/fsh/backend/webhdfs"
	"github.com/sahib/fsh/defaults"
	"github.com/stretchr/testify/require"
)

func withBasicGateway(t *testing.T, fn func(gw *Gateway, store *memory.Backend), tweaks ...func(cfg *config.Config)) {
	cfg, err := defaults.OpenDefaultConfig()
	require.Nil(t, err)

	cfg.SetInt("gateway.port", 0)
	cfg.SetString("gateway.host", "127.0.0.1")
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	store := memory.New(memory.WithUser("ali"))
	gw, err := NewGateway(store, cfg.Section("gateway"))
	require.Nil(t, err)

	fn(gw, store)
}

func buildURL(p, op string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}

	params.Set("op", op)
	return fmt.Sprintf("%s%s?%s", webhdfs.PathPrefix, p, params.Encode())
}

func query(t *testing.T, gw *Gateway, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestGatewayStatus(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		_, err := store.Create(context.Background(), "/hello/world.txt", bytes.NewReader([]byte("Hello world")), false)
		require.Nil(t, err)

		rec := query(t, gw, http.MethodGet, buildURL("/hello/world.txt", webhdfs.OpGetFileStatus, nil), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := webhdfs.FileStatusResponse{}
		decode(t, rec, &resp)
		require.Equal(t, int64(11), resp.FileStatus.Length)
		require.Equal(t, "FILE", resp.FileStatus.Type)
		require.Equal(t, "644", resp.FileStatus.Permission)
		require.Equal(t, "", resp.FileStatus.PathSuffix)
	})
}

func TestGatewayListStatus(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		require.Nil(t, store.Mkdirs(context.Background(), "/dir/b", 0755))
		_, err := store.Create(context.Background(), "/dir/a", bytes.NewReader([]byte("a")), false)
		require.Nil(t, err)

		// Operation names are not case sensitive:
		rec := query(t, gw, http.MethodGet, buildURL("/dir", "liststatus", nil), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := webhdfs.ListStatusResponse{}
		decode(t, rec, &resp)
		require.Len(t, resp.FileStatuses.FileStatus, 2)
		require.Equal(t, "a", resp.FileStatuses.FileStatus[0].PathSuffix)
		require.Equal(t, "DIRECTORY", resp.FileStatuses.FileStatus[1].Type)
	})
}

func TestGatewayNoSuchFile(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		rec := query(t, gw, http.MethodGet, buildURL("/nope", webhdfs.OpGetFileStatus, nil), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		resp := webhdfs.RemoteExceptionResponse{}
		decode(t, rec, &resp)
		require.Equal(t, webhdfs.ExFileNotFound, resp.RemoteException.Exception)
		require.Equal(t, "java.io.FileNotFoundException", resp.RemoteException.JavaClassName)
	})
}

func TestGatewayUnknownOp(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		rec := query(t, gw, http.MethodGet, buildURL("/", "GETCONTENTSUMMARY", nil), nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		// Known op, wrong method:
		rec = query(t, gw, http.MethodGet, buildURL("/", webhdfs.OpMkdirs, nil), nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGatewayCreate(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		params := url.Values{}
		params.Set("permission", "600")

		rec := query(t, gw, http.MethodPut, buildURL("/new", webhdfs.OpCreate, params), nil)
		require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

		location, err := url.Parse(rec.Header().Get("Location"))
		require.Nil(t, err)
		require.Equal(t, "true", location.Query().Get("data"))

		rec = query(t, gw, http.MethodPut, location.RequestURI(), bytes.NewReader([]byte("data")))
		require.Equal(t, http.StatusCreated, rec.Code)

		st, err := store.Stat(context.Background(), "/new")
		require.Nil(t, err)
		require.Equal(t, int64(4), st.Length)
		require.Equal(t, "-rw-------", st.Permission.String())

		// A second create without overwrite fails before any data is sent.
		rec = query(t, gw, http.MethodPut, buildURL("/new", webhdfs.OpCreate, nil), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGatewayOpenRange(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		_, err := store.Create(context.Background(), "/range", bytes.NewReader([]byte("0123456789")), false)
		require.Nil(t, err)

		params := url.Values{}
		params.Set("offset", "2")
		params.Set("length", "3")

		rec := query(t, gw, http.MethodGet, buildURL("/range", webhdfs.OpOpen, params), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "234", rec.Body.String())

		params.Set("offset", "-1")
		rec = query(t, gw, http.MethodGet, buildURL("/range", webhdfs.OpOpen, params), nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGatewayDeleteMissing(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		rec := query(t, gw, http.MethodDelete, buildURL("/nope", webhdfs.OpDelete, nil), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := webhdfs.BooleanResponse{}
		decode(t, rec, &resp)
		require.False(t, resp.Boolean)
	})
}

func TestGatewayHomeDirectory(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		rec := query(t, gw, http.MethodGet, buildURL("/", webhdfs.OpGetHomeDirectory, nil), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := webhdfs.PathResponse{}
		decode(t, rec, &resp)
		require.Equal(t, "/user/dr.who", resp.Path)
	})
}

func TestGatewayRateLimit(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		target := buildURL("/", webhdfs.OpGetFileStatus, nil)
		require.Equal(t, http.StatusOK, query(t, gw, http.MethodGet, target, nil).Code)
		require.Equal(t, http.StatusOK, query(t, gw, http.MethodGet, target, nil).Code)
		require.Equal(t, http.StatusTooManyRequests, query(t, gw, http.MethodGet, target, nil).Code)
	}, func(cfg *config.Config) {
		cfg.SetString("gateway.rate_limit", "2-M")
	})
}

func TestGatewayStartStop(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		require.Equal(t, "", gw.Addr())
		require.Nil(t, gw.Start())

		addr := gw.Addr()
		require.NotEqual(t, "", addr)

		resp, err := http.Get(fmt.Sprintf("http://%s%s", addr, buildURL("/", webhdfs.OpGetFileStatus, nil)))
		require.Nil(t, err)

		_, err = ioutil.ReadAll(resp.Body)
		require.Nil(t, err)
		require.Nil(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Nil(t, gw.Stop())
		require.Equal(t, "", gw.Addr())
		require.Nil(t, gw.Stop())
	})
}

func TestGatewayActsAsRequestUser(t *testing.T) {
	withBasicGateway(t, func(gw *Gateway, store *memory.Backend) {
		ctx := context.Background()
		require.Nil(t, store.Mkdirs(ctx, "/user/ali", 0755))
		_, err := store.Create(ctx, "/user/ali/owned", bytes.NewReader([]byte("x")), false)
		require.Nil(t, err)

		asUser := func(user string) url.Values {
			params := url.Values{}
			params.Set("user.name", user)
			return params
		}

		chmod := asUser("bob")
		chmod.Set("permission", "777")
		rec := query(t, gw, http.MethodPut, buildURL("/user/ali/owned", webhdfs.OpSetPermission, chmod), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		resp := webhdfs.RemoteExceptionResponse{}
		decode(t, rec, &resp)
		require.Equal(t, webhdfs.ExAccessControl, resp.RemoteException.Exception)

		rec = query(t, gw, http.MethodDelete, buildURL("/user/ali/owned", webhdfs.OpDelete, asUser("bob")), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		// Requests without user.name act as gateway.default_user:
		rec = query(t, gw, http.MethodDelete, buildURL("/user/ali/owned", webhdfs.OpDelete, nil), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		st, err := store.Stat(ctx, "/user/ali/owned")
		require.Nil(t, err)
		require.Equal(t, os.FileMode(0644), st.Permission)

		chmod.Set("user.name", "ali")
		rec = query(t, gw, http.MethodPut, buildURL("/user/ali/owned", webhdfs.OpSetPermission, chmod), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = query(t, gw, http.MethodDelete, buildURL("/user/ali/owned", webhdfs.OpDelete, asUser("ali")), nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
