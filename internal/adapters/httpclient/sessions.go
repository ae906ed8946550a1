package httpclient

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// SessionStore holds one persistent HTTP client per API id so sequential
// runs of the same API carry cookies forward. Sessions live until the
// batch-level reset.
type SessionStore struct {
	mu      sync.Mutex
	entries map[int64]*session
	logger  *slog.Logger
}

type session struct {
	client    *http.Client
	transport *http.Transport
}

// NewSessionStore creates an empty store.
func NewSessionStore(logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		entries: map[int64]*session{},
		logger:  logger,
	}
}

// Get returns the session client for an API id, creating it on first use.
// The TLS config only applies at creation; sessions are keyed per API so
// later calls for the same id carry the same materials.
func (s *SessionStore) Get(apiID int64, tlsConf *tls.Config) *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[apiID]; ok {
		return entry.client
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		s.logger.Warn("create cookie jar", slog.Int64("api_id", apiID), slog.Any("error", err))
	}
	transport := newTransport(tlsConf)
	entry := &session{
		client:    &http.Client{Jar: jar, Transport: transport},
		transport: transport,
	}
	s.entries[apiID] = entry
	return entry.client
}

// Len reports how many sessions are live.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CloseAll drops every session and its pooled connections. Wired to the
// variable store reset so each batch starts with fresh cookies.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		entry.transport.CloseIdleConnections()
	}
	s.entries = map[int64]*session{}
}

func newTransport(tlsConf *tls.Config) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConf != nil {
		transport.TLSClientConfig = tlsConf
	}
	return transport
}
