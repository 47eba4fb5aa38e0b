package gateway

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/sahib/config"
	"github.com/sahib/fsh/backend/webhdfs"
	log "github.com/sirupsen/logrus"
)

func jsonify(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warningf("failed to encode json: %v", err)
	}
}

// jsonifyErr sends `err` as RemoteException.
func jsonifyErr(w http.ResponseWriter, err error) {
	status, ex := webhdfs.NewRemoteException(err)
	if status >= 500 {
		log.Warningf("request failed: %v", err)
	} else {
		log.Debugf("request failed: %v", err)
	}

	jsonify(w, status, &webhdfs.RemoteExceptionResponse{RemoteException: *ex})
}

func jsonifyBadRequest(w http.ResponseWriter, msg string) {
	jsonify(w, http.StatusBadRequest, &webhdfs.RemoteExceptionResponse{
		RemoteException: webhdfs.RemoteException{
			Exception:     webhdfs.ExIllegalArgument,
			JavaClassName: "java.lang.IllegalArgumentException",
			Message:       msg,
		},
	})
}

// storePath extracts the store path from the request url.
func storePath(r *http.Request) string {
	return path.Clean("/" + strings.TrimPrefix(r.URL.Path, webhdfs.PathPrefix))
}

// requestUser is the user given by user.name or the configured default.
func requestUser(cfg *config.Config, r *http.Request) string {
	if user := r.URL.Query().Get("user.name"); user != "" {
		return user
	}

	return cfg.String("default_user")
}
