package webhdfs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Client implements fs.FilesystemClient by talking to a namenode
// (or the gateway) over http.
type Client struct {
	addr    string
	scheme  string
	user    string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// New returns a client for the namenode at `addr` (host[:port]).
// No request is made until the first operation.
func New(addr string, opts Options) (*Client, error) {
	if addr == "" {
		return nil, e.Wrap(ie.ErrInvalidPath, "webhdfs needs a host")
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
	}

	opts = opts.withDefaults()

	scheme := "http"
	if opts.TLS {
		scheme = "https"
	}

	return &Client{
		addr:    addr,
		scheme:  scheme,
		user:    opts.User,
		http:    newTransport(addr, opts),
		limiter: newLimiter(opts.MaxRequestsPerSecond),
	}, nil
}

// AsUser returns a client that sends its requests as `user`.
// Transport and rate limit are shared with `cl`.
func (cl *Client) AsUser(user string) fs.FilesystemClient {
	view := *cl
	view.user = user
	return &view
}

// Addr returns host:port of the namenode.
func (cl *Client) Addr() string {
	return cl.addr
}

func (cl *Client) endpoint(p, op string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}

	params.Set("op", op)
	if cl.user != "" {
		params.Set("user.name", cl.user)
	}

	u := url.URL{
		Scheme:   cl.scheme,
		Host:     cl.addr,
		Path:     PathPrefix + p,
		RawQuery: params.Encode(),
	}

	return u.String()
}

// send does a single logical request to `rawURL`, including retries.
// Responses with an error status are converted to errors.
func (cl *Client) send(ctx context.Context, method, rawURL, p string, body interface{}) (*http.Response, error) {
	if err := cl.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	log.WithFields(log.Fields{
		"method": method,
		"url":    rawURL,
	}).Debug("webhdfs request")

	resp, err := cl.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, ie.Connectivity(cl.addr, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, cl.decodeError(resp, p)
	}

	return resp, nil
}

func (cl *Client) do(ctx context.Context, method, p, op string, params url.Values, body interface{}) (*http.Response, error) {
	return cl.send(ctx, method, cl.endpoint(p, op, params), p, body)
}

func (cl *Client) decodeError(resp *http.Response, p string) error {
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return ie.Connectivity(cl.addr, err)
	}

	exResp := RemoteExceptionResponse{}
	if err := json.Unmarshal(data, &exResp); err != nil || exResp.RemoteException.Exception == "" {
		return ErrorFromException(cl.addr, p, resp.StatusCode, nil)
	}

	return ErrorFromException(cl.addr, p, resp.StatusCode, &exResp.RemoteException)
}

// call does a request and decodes the json response into `out`.
func (cl *Client) call(ctx context.Context, method, p, op string, params url.Values, out interface{}) error {
	resp, err := cl.do(ctx, method, p, op, params, nil)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if out == nil {
		_, err := io.Copy(ioutil.Discard, resp.Body)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return e.Wrapf(err, "bad %s response for %s", op, p)
	}

	return nil
}

// Stat implements fs.FilesystemClient.Stat
func (cl *Client) Stat(ctx context.Context, p string) (*fs.FileStatus, error) {
	resp := FileStatusResponse{}
	if err := cl.call(ctx, http.MethodGet, p, OpGetFileStatus, nil, &resp); err != nil {
		return nil, err
	}

	return DecodeStatus(p, &resp.FileStatus)
}

// List implements fs.FilesystemClient.List
func (cl *Client) List(ctx context.Context, p string) ([]fs.FileStatus, error) {
	resp := ListStatusResponse{}
	if err := cl.call(ctx, http.MethodGet, p, OpListStatus, nil, &resp); err != nil {
		return nil, err
	}

	entries := make([]fs.FileStatus, 0, len(resp.FileStatuses.FileStatus))
	for idx := range resp.FileStatuses.FileStatus {
		ws := &resp.FileStatuses.FileStatus[idx]

		// A file lists itself with an empty suffix.
		st, err := DecodeStatus(p, ws)
		if err != nil {
			return nil, err
		}

		entries = append(entries, *st)
	}

	return entries, nil
}

// Mkdirs implements fs.FilesystemClient.Mkdirs
func (cl *Client) Mkdirs(ctx context.Context, p string, perm os.FileMode) error {
	params := url.Values{}
	params.Set("permission", FormatPermission(perm))

	resp := BooleanResponse{}
	if err := cl.call(ctx, http.MethodPut, p, OpMkdirs, params, &resp); err != nil {
		return err
	}

	if !resp.Boolean {
		return e.Errorf("mkdirs failed for %s", p)
	}

	return nil
}

// Create implements fs.FilesystemClient.Create
//
// The namenode answers the first request with a redirect to the node
// that accepts the data. The data is buffered so that it can be resent
// on retries.
func (cl *Client) Create(ctx context.Context, p string, r io.Reader, overwrite bool) (int64, error) {
	params := url.Values{}
	params.Set("overwrite", strconv.FormatBool(overwrite))

	resp, err := cl.do(ctx, http.MethodPut, p, OpCreate, params, nil)
	if err != nil {
		return 0, err
	}

	io.Copy(ioutil.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		return 0, e.Errorf("create %s: expected a redirect, got status %d", p, resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return 0, e.Errorf("create %s: redirect without location", p)
	}

	buf := &bytes.Buffer{}
	n, err := io.Copy(buf, r)
	if err != nil {
		return 0, e.Wrap(err, "read input")
	}

	dataResp, err := cl.send(ctx, http.MethodPut, location, p, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return 0, err
	}

	io.Copy(ioutil.Discard, dataResp.Body)
	dataResp.Body.Close()

	if dataResp.StatusCode != http.StatusCreated && dataResp.StatusCode != http.StatusOK {
		return 0, e.Errorf("create %s: unexpected status %d", p, dataResp.StatusCode)
	}

	return n, nil
}

// Open implements fs.FilesystemClient.Open
func (cl *Client) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := cl.do(ctx, http.MethodGet, p, OpOpen, nil, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusTemporaryRedirect {
		return resp.Body, nil
	}

	io.Copy(ioutil.Discard, resp.Body)
	resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, e.Errorf("open %s: redirect without location", p)
	}

	dataResp, err := cl.send(ctx, http.MethodGet, location, p, nil)
	if err != nil {
		return nil, err
	}

	return dataResp.Body, nil
}

// Delete implements fs.FilesystemClient.Delete
func (cl *Client) Delete(ctx context.Context, p string, recursive bool) error {
	params := url.Values{}
	params.Set("recursive", strconv.FormatBool(recursive))

	resp := BooleanResponse{}
	if err := cl.call(ctx, http.MethodDelete, p, OpDelete, params, &resp); err != nil {
		return err
	}

	// The namenode answers false when there was nothing to delete.
	if !resp.Boolean {
		return ie.NotFound(p)
	}

	return nil
}

// Rename implements fs.FilesystemClient.Rename
func (cl *Client) Rename(ctx context.Context, src, dst string) error {
	params := url.Values{}
	params.Set("destination", dst)

	resp := BooleanResponse{}
	if err := cl.call(ctx, http.MethodPut, src, OpRename, params, &resp); err != nil {
		return err
	}

	if resp.Boolean {
		return nil
	}

	// A plain false does not say why; find out.
	if _, err := cl.Stat(ctx, src); err != nil {
		return err
	}

	if _, err := cl.Stat(ctx, dst); err == nil {
		return ie.AlreadyExists(dst)
	}

	return e.Errorf("rename %s to %s failed", src, dst)
}

// SetPermission implements fs.FilesystemClient.SetPermission
func (cl *Client) SetPermission(ctx context.Context, p string, perm os.FileMode) error {
	params := url.Values{}
	params.Set("permission", FormatPermission(perm))
	return cl.call(ctx, http.MethodPut, p, OpSetPermission, params, nil)
}

// SetOwner implements fs.FilesystemClient.SetOwner
func (cl *Client) SetOwner(ctx context.Context, p string, owner, group string) error {
	params := url.Values{}
	if owner != "" {
		params.Set("owner", owner)
	}

	if group != "" {
		params.Set("group", group)
	}

	return cl.call(ctx, http.MethodPut, p, OpSetOwner, params, nil)
}

// HomeDirectory implements fs.FilesystemClient.HomeDirectory
//
// The namenode always answers for the user the request is made as.
func (cl *Client) HomeDirectory(ctx context.Context, user string) (string, error) {
	resp := PathResponse{}
	if err := cl.call(ctx, http.MethodGet, "/", OpGetHomeDirectory, nil, &resp); err != nil {
		return "", err
	}

	if resp.Path == "" {
		return "", e.Errorf("empty home directory for %s", user)
	}

	return path.Clean(resp.Path), nil
}

// Close implements fs.FilesystemClient.Close
func (cl *Client) Close() error {
	cl.http.HTTPClient.CloseIdleConnections()
	return nil
}
