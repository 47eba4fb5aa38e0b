package gateway

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"

	e "github.com/pkg/errors"
	"github.com/sahib/fsh/backend/webhdfs"
	ie "github.com/sahib/fsh/errors"
	log "github.com/sirupsen/logrus"
)

func (gw *Gateway) handleGetFileStatus(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	st, err := client.Stat(r.Context(), storePath(r))
	if err != nil {
		jsonifyErr(w, err)
		return
	}

	jsonify(w, http.StatusOK, &webhdfs.FileStatusResponse{
		FileStatus: webhdfs.EncodeStatus(st, ""),
	})
}

func (gw *Gateway) handleListStatus(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	p := storePath(r)
	entries, err := client.List(r.Context(), p)
	if err != nil {
		jsonifyErr(w, err)
		return
	}

	resp := &webhdfs.ListStatusResponse{}
	resp.FileStatuses.FileStatus = []webhdfs.FileStatus{}
	for idx := range entries {
		st := &entries[idx]

		suffix := st.Name()
		if st.Path == p {
			suffix = ""
		}

		resp.FileStatuses.FileStatus = append(
			resp.FileStatuses.FileStatus,
			webhdfs.EncodeStatus(st, suffix),
		)
	}

	jsonify(w, http.StatusOK, resp)
}

func permissionParam(r *http.Request, def string) (os.FileMode, error) {
	raw := r.URL.Query().Get("permission")
	if raw == "" {
		raw = def
	}

	return webhdfs.ParsePermission(raw)
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}

	return strconv.ParseBool(raw)
}

func (gw *Gateway) handleMkdirs(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	perm, err := permissionParam(r, "755")
	if err != nil {
		jsonifyBadRequest(w, err.Error())
		return
	}

	if err := client.Mkdirs(r.Context(), storePath(r), perm); err != nil {
		jsonifyErr(w, err)
		return
	}

	jsonify(w, http.StatusOK, &webhdfs.BooleanResponse{Boolean: true})
}

// dataLocation is the url the second step of CREATE goes to.
func dataLocation(r *http.Request) string {
	query := r.URL.Query()
	query.Set("data", "true")

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: query.Encode(),
	}

	return u.String()
}

func (gw *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	p := storePath(r)
	overwrite, err := boolParam(r, "overwrite")
	if err != nil {
		jsonifyBadRequest(w, "bad overwrite parameter")
		return
	}

	isData, err := boolParam(r, "data")
	if err != nil {
		jsonifyBadRequest(w, "bad data parameter")
		return
	}

	if !isData {
		// Fail before the client sends any data.
		st, err := client.Stat(r.Context(), p)
		switch {
		case err == nil && st.IsDir:
			jsonifyErr(w, ie.IsADirectory(p))
			return
		case err == nil && !overwrite:
			jsonifyErr(w, ie.AlreadyExists(p))
			return
		case err != nil && !ie.IsNotFound(err):
			jsonifyErr(w, err)
			return
		}

		io.Copy(ioutil.Discard, r.Body)
		w.Header().Set("Location", dataLocation(r))
		w.WriteHeader(http.StatusTemporaryRedirect)
		return
	}

	n, err := client.Create(r.Context(), p, r.Body, overwrite)
	if err != nil {
		jsonifyErr(w, err)
		return
	}

	if perm, err := permissionParam(r, ""); err == nil && perm != 0 {
		if err := client.SetPermission(r.Context(), p, perm); err != nil {
			log.Warningf("failed to set permission of %s: %v", p, err)
		}
	}

	log.Debugf("gateway: created %s (%d bytes)", p, n)
	w.Header().Set("Location", fmt.Sprintf("webhdfs://%s%s", r.Host, p))
	w.WriteHeader(http.StatusCreated)
}

func (gw *Gateway) handleOpen(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	p := storePath(r)

	var offset, length int64 = 0, -1
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			jsonifyBadRequest(w, "bad offset parameter")
			return
		}

		offset = n
	}

	if raw := r.URL.Query().Get("length"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			jsonifyBadRequest(w, "bad length parameter")
			return
		}

		length = n
	}

	stream, err := client.Open(r.Context(), p)
	if err != nil {
		jsonifyErr(w, err)
		return
	}

	defer stream.Close()

	if offset > 0 {
		if _, err := io.CopyN(ioutil.Discard, stream, offset); err != nil && err != io.EOF {
			jsonifyErr(w, e.Wrapf(err, "seek %s", p))
			return
		}
	}

	var src io.Reader = stream
	if length >= 0 {
		src = io.LimitReader(stream, length)
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, src); err != nil {
		log.Warningf("gateway: failed to stream %s: %v", p, err)
	}
}

func (gw *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	recursive, err := boolParam(r, "recursive")
	if err != nil {
		jsonifyBadRequest(w, "bad recursive parameter")
		return
	}

	err = client.Delete(r.Context(), storePath(r), recursive)
	if ie.IsNotFound(err) {
		jsonify(w, http.StatusOK, &webhdfs.BooleanResponse{Boolean: false})
		return
	}

	if err != nil {
		jsonifyErr(w, err)
		return
	}

	jsonify(w, http.StatusOK, &webhdfs.BooleanResponse{Boolean: true})
}

func (gw *Gateway) handleRename(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	dst := r.URL.Query().Get("destination")
	if dst == "" || !path.IsAbs(dst) {
		jsonifyBadRequest(w, "destination must be an absolute path")
		return
	}

	if err := client.Rename(r.Context(), storePath(r), path.Clean(dst)); err != nil {
		jsonifyErr(w, err)
		return
	}

	jsonify(w, http.StatusOK, &webhdfs.BooleanResponse{Boolean: true})
}

func (gw *Gateway) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	perm, err := permissionParam(r, "755")
	if err != nil {
		jsonifyBadRequest(w, err.Error())
		return
	}

	if err := client.SetPermission(r.Context(), storePath(r), perm); err != nil {
		jsonifyErr(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (gw *Gateway) handleSetOwner(w http.ResponseWriter, r *http.Request) {
	client := gw.clientFor(r)
	owner := r.URL.Query().Get("owner")
	group := r.URL.Query().Get("group")
	if owner == "" && group == "" {
		jsonifyBadRequest(w, "need at least one of owner and group")
		return
	}

	if err := client.SetOwner(r.Context(), storePath(r), owner, group); err != nil {
		jsonifyErr(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (gw *Gateway) handleGetHomeDirectory(w http.ResponseWriter, r *http.Request) {
	home, err := gw.client.HomeDirectory(r.Context(), requestUser(gw.cfg, r))
	if err != nil {
		jsonifyErr(w, err)
		return
	}

	jsonify(w, http.StatusOK, &webhdfs.PathResponse{Path: home})
}

func (gw *Gateway) handleUnknownOp(w http.ResponseWriter, r *http.Request) {
	op := r.URL.Query().Get("op")
	jsonify(w, http.StatusBadRequest, &webhdfs.RemoteExceptionResponse{
		RemoteException: webhdfs.RemoteException{
			Exception:     webhdfs.ExUnsupportedOperation,
			JavaClassName: "java.lang.UnsupportedOperationException",
			Message:       fmt.Sprintf("%s %s is not supported", r.Method, op),
		},
	})
}
