/*
	This file contains functions useful for testing the engine from other
	packages.  Due to the way Go compiles *_test.go files, these helpers
	cannot live in server_test.go or they would be unavailable to test
	files in external packages, so they are exported here.
*/

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxelio/voxeld/storage"
)

// NewTestEngine returns an engine over a fresh in-memory store, suitable
// for in-process protocol tests.
func NewTestEngine(t *testing.T) *Engine {
	return NewEngine(storage.NewMemStore(), 0)
}

// TestHTTPResponse returns the recorded response from a test request
// against the engine.  Use TestHTTP if you just want the body bytes.
func TestHTTPResponse(t *testing.T, e *Engine, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making
// sure the response has a success status.
func TestHTTP(t *testing.T, e *Engine, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, e, method, urlStr, payload)
	if resp.Code != http.StatusOK && resp.Code != http.StatusNoContent {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a response with the given error status code.
func TestBadHTTP(t *testing.T, e *Engine, method, urlStr string, payload io.Reader, expectCode int) {
	resp := TestHTTPResponse(t, e, method, urlStr, payload)
	if resp.Code != expectCode {
		t.Fatalf("Expected status %d to %s on %q, got %d instead: %s\n",
			expectCode, method, urlStr, resp.Code, resp.Body.String())
	}
}

// NewTestDataset creates a dataset on the engine and returns its root UUID.
func NewTestDataset(t *testing.T, e *Engine, name string) (root string) {
	body := map[string]string{"name": name}
	jsonBytes, _ := json.Marshal(body)
	response := TestHTTP(t, e, "POST", WebAPIPath+"datasets/new", bytes.NewBuffer(jsonBytes))

	parsedResponse := struct {
		Root string `json:"root"`
	}{}
	if err := json.Unmarshal(response, &parsedResponse); err != nil {
		t.Fatalf("Couldn't decode JSON response to new dataset request: %v\n", err)
	}
	return parsedResponse.Root
}
