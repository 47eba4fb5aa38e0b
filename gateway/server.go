// Package gateway serves a store over the WebHDFS REST protocol.
// Any FilesystemClient can be exposed this way, so other tools that
// speak WebHDFS (including the webhdfs backend) can reach it.
package gateway

import (
	"context"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/sahib/config"
	"github.com/sahib/fsh/backend/webhdfs"
	"github.com/sahib/fsh/fs"
	fshlog "github.com/sahib/fsh/util/log"
	log "github.com/sirupsen/logrus"
	"github.com/ulule/limiter"
	"github.com/ulule/limiter/drivers/middleware/stdlib"
	"github.com/ulule/limiter/drivers/store/memory"
)

// Gateway is a small HTTP server that talks WebHDFS.
type Gateway struct {
	mu sync.Mutex

	client  fs.FilesystemClient
	cfg     *config.Config
	handler http.Handler
	srv     *http.Server
	addr    string
}

// NewGateway returns a newly built gateway for `client`.
// `cfg` is the gateway section of the config.
// This function does not yet start a server.
func NewGateway(client fs.FilesystemClient, cfg *config.Config) (*Gateway, error) {
	gw := &Gateway{
		client: client,
		cfg:    cfg,
	}

	handler, err := gw.buildHandler()
	if err != nil {
		return nil, err
	}

	gw.handler = handler
	return gw, nil
}

// clientFor returns the store as seen by the user of `r`.
// Stores that cannot act as another user are shared by everyone.
func (gw *Gateway) clientFor(r *http.Request) fs.FilesystemClient {
	return fs.ForUser(gw.client, requestUser(gw.cfg, r))
}

type route struct {
	method  string
	op      string
	handler http.HandlerFunc
}

func (gw *Gateway) routes() []route {
	return []route{
		{http.MethodGet, webhdfs.OpGetFileStatus, gw.handleGetFileStatus},
		{http.MethodGet, webhdfs.OpListStatus, gw.handleListStatus},
		{http.MethodGet, webhdfs.OpOpen, gw.handleOpen},
		{http.MethodGet, webhdfs.OpGetHomeDirectory, gw.handleGetHomeDirectory},
		{http.MethodPut, webhdfs.OpMkdirs, gw.handleMkdirs},
		{http.MethodPut, webhdfs.OpCreate, gw.handleCreate},
		{http.MethodPut, webhdfs.OpRename, gw.handleRename},
		{http.MethodPut, webhdfs.OpSetPermission, gw.handleSetPermission},
		{http.MethodPut, webhdfs.OpSetOwner, gw.handleSetOwner},
		{http.MethodDelete, webhdfs.OpDelete, gw.handleDelete},
	}
}

// opIs matches the op parameter case insensitively.
func opIs(op string) mux.MatcherFunc {
	return func(r *http.Request, rm *mux.RouteMatch) bool {
		return strings.EqualFold(r.URL.Query().Get("op"), op)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"op":     r.URL.Query().Get("op"),
			"user":   r.URL.Query().Get("user.name"),
		}).Debug("gateway request")

		next.ServeHTTP(w, r)
	})
}

func (gw *Gateway) buildHandler() (http.Handler, error) {
	router := mux.NewRouter()
	router.Use(logRequests)

	// Rate limiting is optional:
	if formatted := gw.cfg.String("rate_limit"); formatted != "" {
		rate, err := limiter.NewRateFromFormatted(formatted)
		if err != nil {
			return nil, err
		}

		router.Use(
			stdlib.NewMiddleware(
				limiter.New(memory.NewStore(), rate),
				stdlib.WithForwardHeader(true),
			).Handler,
		)
	}

	apiRouter := router.PathPrefix(webhdfs.PathPrefix).Subrouter()
	for _, rt := range gw.routes() {
		apiRouter.PathPrefix("/").
			Methods(rt.method).
			MatcherFunc(opIs(rt.op)).
			HandlerFunc(rt.handler)
	}

	// Everything else below the prefix is an op we do not know.
	apiRouter.PathPrefix("/").HandlerFunc(gw.handleUnknownOp)

	if gw.cfg.Bool("compress") {
		return gziphandler.GzipHandler(router), nil
	}

	return router, nil
}

// Handler returns the http.Handler of the gateway.
// It can be used without starting the server, e.g. in tests.
func (gw *Gateway) Handler() http.Handler {
	return gw.handler
}

// Addr returns the address the gateway listens on,
// or an empty string if it is not running.
func (gw *Gateway) Addr() string {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	return gw.addr
}

// Start will start the gateway in the background.
// An error is only returned if the port could not be opened.
func (gw *Gateway) Start() error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.srv != nil {
		return nil
	}

	tlsConfig, err := getTLSConfig(gw.cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", gw.cfg.String("host"), gw.cfg.Int("port"))
	lst, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	gw.addr = lst.Addr().String()
	gw.srv = &http.Server{
		Handler:           gw.handler,
		TLSConfig:         tlsConfig,
		ErrorLog:          stdlog.New(&fshlog.Writer{Level: log.WarnLevel}, "", 0),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       360 * time.Second,
	}

	log.Infof("starting gateway on %s", gw.addr)

	srv := gw.srv
	go func() {
		var err error
		if tlsConfig != nil {
			err = srv.ServeTLS(lst, "", "")
		} else {
			err = srv.Serve(lst)
		}

		if err != nil && err != http.ErrServerClosed {
			log.Errorf("serve failed: %v", err)
		}
	}()

	return nil
}

// Stop stops the gateway gracefully.
func (gw *Gateway) Stop() error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := gw.srv.Shutdown(ctx)
	gw.srv = nil
	gw.addr = ""
	return err
}
