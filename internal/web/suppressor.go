package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/mrjaymac/weekly-wrapped/internal/metrics"
)

// suppressionTTL is how long a repeated identical request is rejected.
const suppressionTTL = 10 * time.Second

// Suppressor rejects a request repeated with the same access token and
// path within the TTL. Process-local and non-durable: it guards against a
// client double-firing, not against multiple server instances.
type Suppressor struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewSuppressor creates a duplicate-request suppressor with the default TTL.
func NewSuppressor() *Suppressor {
	return &Suppressor{
		seen: make(map[string]time.Time),
		ttl:  suppressionTTL,
		now:  time.Now,
	}
}

// Allow records the request key and reports whether it may proceed.
func (s *Suppressor) Allow(key string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Lazy purge keeps the map from growing unbounded.
	for k, t := range s.seen {
		if now.Sub(t) > s.ttl {
			delete(s.seen, k)
		}
	}

	if t, ok := s.seen[key]; ok && now.Sub(t) <= s.ttl {
		return false
	}
	s.seen[key] = now
	return true
}

// Middleware applies duplicate suppression keyed by access token and path.
func (s *Suppressor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		if token == "" {
			// The token guard rejects these; nothing to key on here.
			next.ServeHTTP(w, r)
			return
		}

		if !s.Allow(token + " " + r.URL.Path) {
			metrics.DuplicatesSuppressed.Inc()
			writeError(w, r, http.StatusTooManyRequests, "Duplicate request")
			return
		}
		next.ServeHTTP(w, r)
	})
}
