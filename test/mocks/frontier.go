package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse represents a mocked HTTP response
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Headers    map[string]string
}

// MockRequest represents a recorded HTTP request
type MockRequest struct {
	Method  string
	Path    string
	Form    map[string]string
	Headers map[string]string
	Time    time.Time
}

// MockFrontier serves both the Frontier authorization server (/auth, /token)
// and the companion API resources from one httptest server.
type MockFrontier struct {
	Server *httptest.Server

	mu            sync.Mutex
	requests      []MockRequest
	tokenResponse *MockResponse
	refreshResp   *MockResponse
	resources     map[string]*MockResponse
	issued        int
	expiresIn     int
	delay         time.Duration
}

// NewMockFrontier starts a fake Frontier. Close it when done.
func NewMockFrontier() *MockFrontier {
	m := &MockFrontier{
		resources: make(map[string]*MockResponse),
		expiresIn: 7200,
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL is the base URL to use for both auth_url and the CAPI live/beta URLs.
func (m *MockFrontier) URL() string {
	return m.Server.URL
}

// Close shuts the server down.
func (m *MockFrontier) Close() {
	m.Server.Close()
}

// SetTokenResponse overrides every /token answer.
func (m *MockFrontier) SetTokenResponse(resp *MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenResponse = resp
}

// SetRefreshResponse overrides /token answers for the refresh_token grant only.
func (m *MockFrontier) SetRefreshResponse(resp *MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshResp = resp
}

// SetExpiresIn changes expires_in for generated tokens.
func (m *MockFrontier) SetExpiresIn(seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresIn = seconds
}

// SetDelay delays every response.
func (m *MockFrontier) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetResource sets the response for a CAPI path such as "/profile".
func (m *MockFrontier) SetResource(path string, resp *MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[path] = resp
}

// GetRequests returns all recorded requests
func (m *MockFrontier) GetRequests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CountRequests counts recorded requests whose path starts with prefix.
func (m *MockFrontier) CountRequests(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// ClearRequests clears the recorded requests
func (m *MockFrontier) ClearRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

func (m *MockFrontier) handle(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	rec := MockRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Form:    make(map[string]string),
		Headers: make(map[string]string),
		Time:    time.Now(),
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			rec.Form[k] = v[0]
		}
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			rec.Headers[k] = v[0]
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if r.URL.Path == "/token" {
		writeResponse(w, m.tokenAnswer(rec.Form["grant_type"]))
		return
	}

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeResponse(w, MockErrorResponse(http.StatusUnauthorized, "missing bearer token"))
		return
	}

	m.mu.Lock()
	resp, ok := m.resources[r.URL.Path]
	if !ok && strings.HasPrefix(r.URL.Path, "/journal") {
		resp, ok = m.resources["/journal"]
	}
	m.mu.Unlock()

	if !ok {
		writeResponse(w, MockErrorResponse(http.StatusNotFound, "not found"))
		return
	}
	writeResponse(w, resp)
}

func (m *MockFrontier) tokenAnswer(grantType string) *MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	if grantType == "refresh_token" && m.refreshResp != nil {
		return m.refreshResp
	}
	if m.tokenResponse != nil {
		return m.tokenResponse
	}

	m.issued++
	return &MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]interface{}{
			"access_token":  fmt.Sprintf("access-%d", m.issued),
			"refresh_token": fmt.Sprintf("refresh-%d", m.issued),
			"token_type":    "Bearer",
			"expires_in":    m.expiresIn,
			"scope":         "auth capi",
		},
	}
}

func writeResponse(w http.ResponseWriter, resp *MockResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if raw, ok := resp.Body.(string); ok {
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write([]byte(raw))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// MockErrorResponse creates a mock error response
func MockErrorResponse(statusCode int, message string) *MockResponse {
	return &MockResponse{
		StatusCode: statusCode,
		Body: map[string]interface{}{
			"error":             "invalid_request",
			"error_description": message,
		},
	}
}
