// Package httputil carries the HTTP plumbing shared by the daemon's API
// handlers and the offline tooling: JSON response helpers on the server
// side and a small client abstraction on the consumer side.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Client is the subset of HTTP operations the tooling needs to talk to a
// running junctiond daemon. Production code wraps *http.Client via
// StandardClient; tests substitute a RecordingClient with canned responses.
type Client interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
	// Get issues a GET to the specified URL.
	Get(url string) (*http.Response, error)
	// Post issues a POST to the specified URL.
	Post(url, contentType string, body io.Reader) (*http.Response, error)
}

// StandardClient adapts *http.Client to the Client interface.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c, falling back to http.DefaultClient when nil.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

func (c *StandardClient) Get(url string) (*http.Response, error) {
	return c.Client.Get(url)
}

func (c *StandardClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	return c.Client.Post(url, contentType, body)
}

// RecordingClient implements Client for tests. It records every request it
// sees and replays a queue of canned responses in order; once the queue is
// drained it answers 200 with an empty body.
type RecordingClient struct {
	mu        sync.Mutex
	requests  []*http.Request
	responses []cannedResponse
	next      int
}

type cannedResponse struct {
	status int
	body   string
	err    error
}

// NewRecordingClient creates an empty RecordingClient.
func NewRecordingClient() *RecordingClient {
	return &RecordingClient{}
}

// Queue appends a canned response with the given status and body.
func (m *RecordingClient) Queue(status int, body string) *RecordingClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, cannedResponse{status: status, body: body})
	return m
}

// QueueError appends a canned transport-level failure.
func (m *RecordingClient) QueueError(err error) *RecordingClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, cannedResponse{err: err})
	return m
}

// Do records req and replays the next canned response.
func (m *RecordingClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.next < len(m.responses) {
		canned := m.responses[m.next]
		m.next++
		if canned.err != nil {
			return nil, canned.err
		}
		return &http.Response{
			StatusCode: canned.status,
			Body:       io.NopCloser(bytes.NewBufferString(canned.body)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString("")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Get issues a GET request through Do.
func (m *RecordingClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return m.Do(req)
}

// Post issues a POST request through Do.
func (m *RecordingClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return m.Do(req)
}

// Requests returns a copy of the recorded requests in arrival order.
func (m *RecordingClient) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}
