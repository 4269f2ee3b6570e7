/*
	Package server implements a protocol-faithful mock of the voxel
	cutout HTTP service.  It serves the dataset → node → volume address
	space from a storage.Store, enforcing the same validation, status
	codes, and chunked-transfer behavior as the production service so
	client tests exercise real protocol logic.
*/
package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/cors"
	"github.com/zenazn/goji/web"

	"github.com/voxelio/voxeld/codec"
	"github.com/voxelio/voxeld/storage"
	"github.com/voxelio/voxeld/voxel"
)

const (
	// WebAPIPath is the prefix for all REST endpoints.
	WebAPIPath = "/api/"

	// DefaultWebAddress is the default listen address.
	DefaultWebAddress = "localhost:8000"
)

// Engine routes cutout REST requests onto a backing store.  It implements
// http.Handler and can be mounted under httptest for in-process tests.
type Engine struct {
	store     storage.Store
	chunkSize int
	handler   http.Handler
}

// NewEngine returns an engine over the given store.  A non-positive
// chunkSize selects codec.DefaultChunkSize for all streamed transfers.
func NewEngine(store storage.Store, chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = codec.DefaultChunkSize
	}
	e := &Engine{store: store, chunkSize: chunkSize}

	m := web.New()
	m.Use(recoverPanics)

	m.Get(WebAPIPath+"datasets/list", e.datasetsList)
	m.Get(WebAPIPath+"datasets/info", e.datasetsInfo)
	m.Post(WebAPIPath+"datasets/new", e.datasetsNew)

	m.Post(WebAPIPath+"dataset/:uuid/new/:typename/:dataname", e.volumeNew)
	m.Post(WebAPIPath+"node/:uuid/branch", e.nodeBranch)
	m.Post(WebAPIPath+"repo/:uuid/instance", e.instanceNew)

	// Order matters below: fixed path segments must be registered before
	// the keyvalue catch-all.
	m.Get(WebAPIPath+"node/:uuid/:name/metadata", e.volumeMetadata)
	m.Get(WebAPIPath+"node/:uuid/:name/raw/:dims/:shape/:offset", e.rawGet)
	m.Post(WebAPIPath+"node/:uuid/:name/raw/:dims/:shape/:offset", e.rawPost)
	m.Get(WebAPIPath+"node/:uuid/:name/keys", e.kvKeys)
	m.Get(WebAPIPath+"node/:uuid/:name/subgraph", e.graphGet)
	m.Post(WebAPIPath+"node/:uuid/:name/weight", e.graphWeight)
	m.Get(WebAPIPath+"node/:uuid/:name/:key", e.kvGet)
	m.Post(WebAPIPath+"node/:uuid/:name/:key", e.kvPut)

	m.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, fmt.Sprintf("bad query syntax: %s %s", r.Method, r.URL.Path), http.StatusBadRequest)
	})

	e.handler = cors.AllowAll().Handler(m)
	return e
}

// ServeHTTP implements http.Handler.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.handler.ServeHTTP(w, r)
}

// Serve blocks, listening for HTTP requests on the given address.
func (e *Engine) Serve(address string) error {
	if address == "" {
		address = DefaultWebAddress
	}
	voxel.Infof("Web server listening at %s ...\n", address)
	return http.ListenAndServe(address, e)
}

// recoverPanics converts a handler panic into a 500 so one bad request
// can't take down the server or corrupt the engine's address space.
func recoverPanics(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				voxel.Errorf("Panic on %s %s: %v\n%s\n", r.Method, r.URL.Path, err, debug.Stack())
				http.Error(w, "server error", http.StatusInternalServerError)
			}
		}()
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// statusForError maps engine error kinds onto deterministic status codes
// so tests can assert exact protocol behavior.
func statusForError(err error) int {
	var notFound voxel.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	var exists storage.ExistsError
	if errors.As(err, &exists) {
		return http.StatusConflict
	}
	var truncated voxel.TruncatedPayloadError
	var oversized voxel.OversizedPayloadError
	if errors.As(err, &truncated) || errors.As(err, &oversized) {
		return http.StatusBadRequest
	}
	var schemaErr voxel.SchemaError
	var boundsErr voxel.BoundsError
	var axisErr voxel.AxisMismatchError
	if errors.As(err, &schemaErr) || errors.As(err, &boundsErr) || errors.As(err, &axisErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// BadRequest writes a 400 response.  The msg can be an error or a format
// string with args.
func BadRequest(w http.ResponseWriter, r *http.Request, msg interface{}, args ...interface{}) {
	errorMsg := fmt.Sprintf("%s (%s %s)", formatMessage(msg, args...), r.Method, r.URL.Path)
	voxel.Errorf("%s\n", errorMsg)
	http.Error(w, errorMsg, http.StatusBadRequest)
}

// serverError writes a response whose status is derived from the error kind.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	errorMsg := fmt.Sprintf("%v (%s %s)", err, r.Method, r.URL.Path)
	voxel.Errorf("%s\n", errorMsg)
	http.Error(w, errorMsg, statusForError(err))
}

func formatMessage(msg interface{}, args ...interface{}) string {
	switch t := msg.(type) {
	case string:
		return fmt.Sprintf(t, args...)
	case error:
		return t.Error()
	default:
		return fmt.Sprintf("%v", msg)
	}
}
