// Package webhdfs talks the WebHDFS REST protocol. It contains a client
// that implements fs.FilesystemClient and the wire types that are shared
// with the gateway, which serves any store over the same protocol.
package webhdfs

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
)

const (
	// PathPrefix is the root of all REST endpoints.
	PathPrefix = "/webhdfs/v1"

	// DefaultPort is the namenode's default http port.
	DefaultPort = 9870

	typeFile      = "FILE"
	typeDirectory = "DIRECTORY"
)

// Operations understood by the client and the gateway.
const (
	OpGetFileStatus    = "GETFILESTATUS"
	OpListStatus       = "LISTSTATUS"
	OpMkdirs           = "MKDIRS"
	OpCreate           = "CREATE"
	OpOpen             = "OPEN"
	OpDelete           = "DELETE"
	OpRename           = "RENAME"
	OpSetPermission    = "SETPERMISSION"
	OpSetOwner         = "SETOWNER"
	OpGetHomeDirectory = "GETHOMEDIRECTORY"
)

// Exception names as sent in a RemoteException.
const (
	ExFileNotFound         = "FileNotFoundException"
	ExFileAlreadyExists    = "FileAlreadyExistsException"
	ExAccessControl        = "AccessControlException"
	ExSecurity             = "SecurityException"
	ExPathIsDirectory      = "PathIsDirectoryException"
	ExPathIsNotEmptyDir    = "PathIsNotEmptyDirectoryException"
	ExParentNotDirectory   = "ParentNotDirectoryException"
	ExIllegalArgument      = "IllegalArgumentException"
	ExStandby              = "StandbyException"
	ExRetriable            = "RetriableException"
	ExUnsupportedOperation = "UnsupportedOperationException"
	ExIO                   = "IOException"
)

var javaClassNames = map[string]string{
	ExFileNotFound:         "java.io.FileNotFoundException",
	ExFileAlreadyExists:    "org.apache.hadoop.fs.FileAlreadyExistsException",
	ExAccessControl:        "org.apache.hadoop.security.AccessControlException",
	ExSecurity:             "java.lang.SecurityException",
	ExPathIsDirectory:      "org.apache.hadoop.fs.PathIsDirectoryException",
	ExPathIsNotEmptyDir:    "org.apache.hadoop.fs.PathIsNotEmptyDirectoryException",
	ExParentNotDirectory:   "org.apache.hadoop.fs.ParentNotDirectoryException",
	ExIllegalArgument:      "java.lang.IllegalArgumentException",
	ExStandby:              "org.apache.hadoop.ipc.StandbyException",
	ExRetriable:            "org.apache.hadoop.ipc.RetriableException",
	ExUnsupportedOperation: "java.lang.UnsupportedOperationException",
	ExIO:                   "java.io.IOException",
}

// FileStatus is a single node as it is encoded on the wire.
type FileStatus struct {
	AccessTime       int64  `json:"accessTime"`
	BlockSize        int64  `json:"blockSize"`
	Group            string `json:"group"`
	Length           int64  `json:"length"`
	ModificationTime int64  `json:"modificationTime"`
	Owner            string `json:"owner"`
	PathSuffix       string `json:"pathSuffix"`
	Permission       string `json:"permission"`
	Replication      int    `json:"replication"`
	Type             string `json:"type"`
}

// FileStatusResponse is the body of a GETFILESTATUS response.
type FileStatusResponse struct {
	FileStatus FileStatus `json:"FileStatus"`
}

// ListStatusResponse is the body of a LISTSTATUS response.
type ListStatusResponse struct {
	FileStatuses struct {
		FileStatus []FileStatus `json:"FileStatus"`
	} `json:"FileStatuses"`
}

// BooleanResponse is returned by MKDIRS, DELETE and RENAME.
type BooleanResponse struct {
	Boolean bool `json:"boolean"`
}

// PathResponse is the body of a GETHOMEDIRECTORY response.
type PathResponse struct {
	Path string `json:"Path"`
}

// RemoteException describes a failed request.
type RemoteException struct {
	Exception     string `json:"exception"`
	JavaClassName string `json:"javaClassName"`
	Message       string `json:"message"`
}

// RemoteExceptionResponse wraps a RemoteException.
type RemoteExceptionResponse struct {
	RemoteException RemoteException `json:"RemoteException"`
}

func (re *RemoteException) Error() string {
	return fmt.Sprintf("%s: %s", re.Exception, re.Message)
}

// EncodeStatus converts `st` to its wire form.
// The path suffix is the node's name, or empty for GETFILESTATUS.
func EncodeStatus(st *fs.FileStatus, suffix string) FileStatus {
	typ := typeFile
	if st.IsDir {
		typ = typeDirectory
	}

	return FileStatus{
		Group:            st.Group,
		Length:           st.Length,
		ModificationTime: st.ModTime.UnixNano() / int64(time.Millisecond),
		Owner:            st.Owner,
		PathSuffix:       suffix,
		Permission:       strconv.FormatUint(uint64(st.Permission.Perm()), 8),
		Type:             typ,
	}
}

// DecodeStatus converts a wire status below `dir` into a fs.FileStatus.
// `dir` is the path of the node itself when the suffix is empty.
func DecodeStatus(dir string, ws *FileStatus) (*fs.FileStatus, error) {
	perm, err := ParsePermission(ws.Permission)
	if err != nil {
		return nil, err
	}

	return &fs.FileStatus{
		Path:       path.Join(dir, ws.PathSuffix),
		Length:     ws.Length,
		IsDir:      ws.Type == typeDirectory,
		Permission: perm,
		Owner:      ws.Owner,
		Group:      ws.Group,
		ModTime:    time.Unix(0, ws.ModificationTime*int64(time.Millisecond)),
	}, nil
}

// ParsePermission parses an octal permission string like "755".
func ParsePermission(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}

	perm, err := strconv.ParseUint(s, 8, 32)
	if err != nil || perm > 01777 {
		return 0, e.Errorf("bad permission: %q", s)
	}

	return os.FileMode(perm).Perm(), nil
}

// FormatPermission renders `perm` the way the permission parameter expects.
func FormatPermission(perm os.FileMode) string {
	return strconv.FormatUint(uint64(perm.Perm()), 8)
}

// NewRemoteException builds the exception that describes `err`
// together with the http status it should be sent with.
func NewRemoteException(err error) (int, *RemoteException) {
	name, status := ExIO, http.StatusInternalServerError

	switch {
	case ie.IsNotFound(err):
		name, status = ExFileNotFound, http.StatusNotFound
	case ie.IsAlreadyExists(err):
		name, status = ExFileAlreadyExists, http.StatusForbidden
	case ie.IsPermission(err):
		name, status = ExAccessControl, http.StatusForbidden
	case ie.IsDirectoryError(err):
		name, status = ExPathIsDirectory, http.StatusForbidden
	case ie.IsConnectivity(err):
		name, status = ExStandby, http.StatusServiceUnavailable
	default:
		switch e.Cause(err) {
		case ie.ErrNotEmpty:
			name, status = ExPathIsNotEmptyDir, http.StatusForbidden
		case ie.ErrNotADirectory:
			name, status = ExParentNotDirectory, http.StatusForbidden
		case ie.ErrInvalidPath, ie.ErrRoot:
			name, status = ExIllegalArgument, http.StatusBadRequest
		}
	}

	return status, &RemoteException{
		Exception:     name,
		JavaClassName: javaClassNames[name],
		Message:       err.Error(),
	}
}

// ErrorFromException converts a RemoteException (or, if it is nil,
// a bare status code) into an error of the errors package.
func ErrorFromException(addr, p string, status int, re *RemoteException) error {
	if re == nil {
		re = &RemoteException{Message: http.StatusText(status)}
	}

	switch re.Exception {
	case ExFileNotFound:
		return ie.NotFound(p)
	case ExFileAlreadyExists:
		return ie.AlreadyExists(p)
	case ExAccessControl, ExSecurity:
		return ie.PermissionDenied(p, re.Message)
	case ExPathIsDirectory:
		return ie.IsADirectory(p)
	case ExPathIsNotEmptyDir:
		return e.Wrap(ie.ErrNotEmpty, p)
	case ExParentNotDirectory:
		return e.Wrap(ie.ErrNotADirectory, re.Message)
	case ExStandby, ExRetriable:
		return ie.Connectivity(addr, re)
	}

	switch status {
	case http.StatusNotFound:
		return ie.NotFound(p)
	case http.StatusUnauthorized, http.StatusForbidden:
		return ie.PermissionDenied(p, re.Message)
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ie.Connectivity(addr, e.Errorf("status %d", status))
	}

	if re.Exception == "" {
		return e.Errorf("request for %s failed with status %d", p, status)
	}

	return re
}
