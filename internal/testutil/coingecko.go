package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// CoinGeckoServer is a fake /simple/price endpoint. Bodies are served per asset id,
// so a single asset can be made to fail while others keep working.
type CoinGeckoServer struct {
	*httptest.Server

	mu       sync.RWMutex
	bodies   map[string]string
	statuses map[string]int
	requests atomic.Int64
	lastKey  atomic.Value
}

// StartCoinGecko starts a fake serving {"<id>":{"usd":<price>}} for every given price.
func StartCoinGecko(t *testing.T, prices map[string]string) *CoinGeckoServer {
	t.Helper()

	s := &CoinGeckoServer{
		bodies:   make(map[string]string),
		statuses: make(map[string]int),
	}
	for id, price := range prices {
		s.SetPrice(id, price)
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)

	return s
}

// SetPrice serves a well-formed quote for id.
func (s *CoinGeckoServer) SetPrice(id, price string) {
	s.SetBody(id, `{"`+id+`":{"usd":`+price+`}}`)
}

// SetBody serves an arbitrary body for id.
func (s *CoinGeckoServer) SetBody(id, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bodies[id] = body
}

// SetStatus makes requests for id answer with the given HTTP status.
func (s *CoinGeckoServer) SetStatus(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[id] = status
}

// Requests returns the number of requests served so far.
func (s *CoinGeckoServer) Requests() int {
	return int(s.requests.Load())
}

// LastAPIKey returns the API key header of the latest request.
func (s *CoinGeckoServer) LastAPIKey() string {
	v, _ := s.lastKey.Load().(string)
	return v
}

func (s *CoinGeckoServer) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	key := r.Header.Get("x-cg-demo-api-key")
	if key == "" {
		key = r.Header.Get("x-cg-pro-api-key")
	}
	s.lastKey.Store(key)

	if !strings.HasSuffix(r.URL.Path, "/simple/price") || r.URL.Query().Get("vs_currencies") != "usd" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
		return
	}

	id := r.URL.Query().Get("ids")

	s.mu.RLock()
	status, hasStatus := s.statuses[id]
	body, hasBody := s.bodies[id]
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if hasStatus {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit"}}`))
		return
	}

	if !hasBody {
		_, _ = w.Write([]byte(`{}`))
		return
	}

	_, _ = w.Write([]byte(body))
}
