/*
	Package client provides a Go API for the voxel cutout REST service:
	dataset administration, N-d subvolume reads and writes with explicit
	slice specifications, and keyvalue access.  All remote calls go
	through an explicit Session so connection lifetime is scoped by the
	caller rather than shared process-wide.
*/
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Session is a scoped connection to one service instance.  It is safe
// for concurrent use and should be closed when no longer needed.
type Session struct {
	base *url.URL
	hc   *http.Client
}

// NewSession returns a session for the service at addr, e.g.
// "localhost:8000" or "http://localhost:8000".
func NewSession(addr string) (*Session, error) {
	return NewSessionWithClient(addr, &http.Client{})
}

// NewSessionWithClient returns a session using the caller's http.Client,
// e.g. one with custom timeouts or an httptest transport.
func NewSessionWithClient(addr string, hc *http.Client) (*Session, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("bad service address %q: %v", addr, err)
	}
	return &Session{base: base, hc: hc}, nil
}

// Close releases the session's idle connections.  The session must not
// be used afterwards.
func (s *Session) Close() {
	s.hc.CloseIdleConnections()
}

// HTTPError is a non-success response from the service.
type HTTPError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// do runs one request against the service.  The returned body must be
// closed by the caller; non-2xx responses are drained here and surface
// as HTTPError.
func (s *Session) do(ctx context.Context, method, path string, contentType string, contentLength int64, body io.Reader) (io.ReadCloser, error) {
	u := *s.base
	u.Path = path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if contentLength > 0 {
		req.ContentLength = contentLength
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, HTTPError{
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	return resp.Body, nil
}

// doBytes runs a request and returns the fully read response body.
func (s *Session) doBytes(ctx context.Context, method, path string, contentType string, body io.Reader) ([]byte, error) {
	rc, err := s.do(ctx, method, path, contentType, -1, body)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// doDiscard runs a request whose response body carries no payload.
func (s *Session) doDiscard(ctx context.Context, method, path string, contentType string, body io.Reader) error {
	rc, err := s.do(ctx, method, path, contentType, -1, body)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, rc)
	return rc.Close()
}
