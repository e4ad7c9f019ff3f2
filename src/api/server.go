// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.

// Package api implements the HTTP server that exposes pastes as a small
// JSON API. Everything except the API key bootstrap endpoint, the health
// check and metrics requires the x-api-key header.
package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/go-pkgz/lgr"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/iliafrenkel/unbin/src/metrics"
	"github.com/iliafrenkel/unbin/src/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOptions defines various parameters needed to run the Server
type ServerOptions struct {
	Addr           string        // address to listen on, see http.Server docs for details
	ReadTimeout    time.Duration // maximum duration for reading the entire request.
	WriteTimeout   time.Duration // maximum duration before timing out writes of the response
	IdleTimeout    time.Duration // maximum amount of time to wait for the next request
	LogFile        string        // if not empty, will write access logs to the file
	LogMode        string        // can be either "debug" or "production"
	APIKey         string        // shared secret, fixed for the lifetime of the process
	AllowedOrigins []string      // CORS origins, "*" allows any
	Version        string        // app version, comes from build
}

// Server encapsulates a router and a server.
// Normally, you'd create a new instance by calling New which configures the
// router and then call ListenAndServe to start serving incoming requests.
type Server struct {
	router  *mux.Router
	server  *http.Server
	options ServerOptions
	log     lgr.L
	service *service.Service
}

var dbgLogFormatter handlers.LogFormatter = func(writer io.Writer, params handlers.LogFormatterParams) {
	const (
		green   = "\033[97;42m"
		white   = "\033[90;47m"
		yellow  = "\033[90;43m"
		red     = "\033[97;41m"
		blue    = "\033[97;44m"
		magenta = "\033[97;45m"
		cyan    = "\033[97;46m"
		reset   = "\033[0m"
	)

	code := params.StatusCode
	cclr := ""
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		cclr = green
	case code >= http.StatusMultipleChoices && code < http.StatusBadRequest:
		cclr = white
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		cclr = yellow
	default:
		cclr = red
	}

	method := params.Request.Method
	mclr := ""
	switch method {
	case http.MethodGet:
		mclr = blue
	case http.MethodPost:
		mclr = cyan
	case http.MethodPut:
		mclr = yellow
	case http.MethodDelete:
		mclr = red
	case http.MethodPatch:
		mclr = green
	case http.MethodHead:
		mclr = magenta
	case http.MethodOptions:
		mclr = white
	default:
		mclr = reset
	}

	host, _, err := net.SplitHostPort(params.Request.RemoteAddr)
	if err != nil {
		host = params.Request.RemoteAddr
	}

	fmt.Fprintf(writer, "|%s %3d %s| %15s |%s %-7s %s| %8d | %s \n",
		cclr, code, reset,
		host,
		mclr, method, reset,
		params.Size,
		params.URL.RequestURI(),
	)
}

// recoveryLog passes panics caught by handlers.RecoveryHandler to our logger.
type recoveryLog struct {
	log lgr.L
}

func (r recoveryLog) Println(v ...interface{}) {
	r.log.Logf("ERROR recovered from panic: %s", fmt.Sprint(v...))
}

// Handler returns the router wrapped with access logging, CORS and panic
// recovery. Access logs go to w.
func (h *Server) Handler(w io.Writer) http.Handler {
	var hdlr http.Handler
	if h.options.LogMode == "debug" {
		hdlr = handlers.CustomLoggingHandler(w, h.router, dbgLogFormatter)
	} else {
		hdlr = handlers.CombinedLoggingHandler(w, h.router)
	}

	origins := h.options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	hdlr = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", APIKeyHeader}),
	)(hdlr)

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLog{log: h.log}),
		handlers.PrintRecoveryStack(h.options.LogMode == "debug"),
	)(hdlr)
}

// ListenAndServe starts an HTTP server and binds it to the provided address.
// You have to call New() first to initialise the Server.
func (h *Server) ListenAndServe() error {
	var w io.Writer
	var err error
	if h.options.LogFile == "" {
		w = lgr.ToWriter(h.log, "")
	} else {
		w, err = os.OpenFile(h.options.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("Server.ListenAndServe: cannot open log file: [%s]: %w", h.options.LogFile, err)
		}
	}
	h.server = &http.Server{
		Addr:         h.options.Addr,
		WriteTimeout: h.options.WriteTimeout,
		ReadTimeout:  h.options.ReadTimeout,
		IdleTimeout:  h.options.IdleTimeout,
		Handler:      h.Handler(w),
	}

	return h.server.ListenAndServe()
}

// Shutdown gracefully shutdown the server with the given context.
func (h *Server) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// measure records request duration labeled with the route template.
func (h *Server) measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m := httpsnoop.CaptureMetrics(next, w, r)
		metrics.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(m.Code)).
			Observe(m.Duration.Seconds())
	})
}

// New returns an instance of the Server with initialised middleware and
// routes. You can call ListenAndServe on a newly created instance to
// initialise the HTTP server and start handling incoming requests.
//
// The routes are:
//
//	GET    /apikey            - current API key, not guarded
//	GET    /pastes            - all pastes
//	POST   /create-paste      - create new paste
//	PUT    /update-paste/{id} - update paste title and text
//	DELETE /delete-paste/{id} - delete paste by id
//	GET    /ping              - health check, not guarded
//	GET    /metrics           - Prometheus metrics, not guarded
func New(l lgr.L, svc *service.Service, opts ServerOptions) *Server {
	var handler Server
	handler.log = l
	handler.options = opts
	handler.service = svc

	// Initialise the router
	handler.router = mux.NewRouter()
	handler.router.Use(handler.measure)

	// Open routes
	handler.router.HandleFunc("/apikey", handler.handleGetAPIKey).Methods("GET")
	handler.router.HandleFunc("/ping", handler.handlePing).Methods("GET")
	handler.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Routes behind the API key
	guarded := handler.router.NewRoute().Subrouter()
	guarded.Use(handler.requireAPIKey)
	guarded.HandleFunc("/pastes", handler.handleGetPastes).Methods("GET")
	guarded.HandleFunc("/create-paste", handler.handleCreatePaste).Methods("POST")
	guarded.HandleFunc("/update-paste/{id:[0-9]+}", handler.handleUpdatePaste).Methods("PUT")
	guarded.HandleFunc("/delete-paste/{id:[0-9]+}", handler.handleDeletePaste).Methods("DELETE")

	// Common error routes
	handler.router.NotFoundHandler = http.HandlerFunc(handler.notFound)
	handler.router.MethodNotAllowedHandler = http.HandlerFunc(handler.methodNotAllowed)

	return &handler
}
