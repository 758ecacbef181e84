package http

import (
	"container/list"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"spendlens/internal/core"
	"spendlens/internal/store"
	appweb "spendlens/web"
)

// LRU cache with TTL and size-based eviction, keyed by user. Cached
// receipt lists must be dropped whenever a write lands for that user.
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries.
func (c *lruCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Processor is the ingestion port consumed by the upload handler.
type Processor interface {
	Process(ctx context.Context, image []byte, userID string) (core.Receipt, error)
}

type Server struct {
	http.Server
	receipts  store.ReceiptStore
	processor Processor

	maxUploadBytes int64
	rateLimiter    *rateLimiter

	// Per-user receipt list cache; loads are deduplicated so concurrent
	// page polls hit the store once.
	receiptsCache *lruCache[[]core.Receipt]
	loads         singleflight.Group

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and the embedded UI, returning a
// ready-to-run http.Server.
func NewServer(addr string, receipts store.ReceiptStore, processor Processor, maxUploadBytes int64) *Server {
	mux := http.NewServeMux()

	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		receipts:         receipts,
		processor:        processor,
		maxUploadBytes:   maxUploadBytes,
		rateLimiter:      newRateLimiter(),
		receiptsCache:    newLRUCache[[]core.Receipt](200, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	// Static UI (embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withMiddleware("/", s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.Handle("/metrics", metricsHandler())

	mux.HandleFunc("/api/receipts", s.withMiddleware("/api/receipts", s.handleReceipts))
	mux.HandleFunc("/api/receipts/recent", s.withMiddleware("/api/receipts/recent", s.handleRecentReceipts))
	mux.HandleFunc("/api/receipts/process", s.withMiddleware("/api/receipts/process", s.handleProcessReceipt))
	mux.HandleFunc("/api/spending", s.withMiddleware("/api/spending", s.handleSpending))

	return s
}

// startCacheCleanup runs periodic cleanup of the receipts cache.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.receiptsCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, request IDs,
// metrics and request logging. Metrics are labeled with the registered
// route, not the raw URL path, so unmatched paths falling through the "/"
// catch-all cannot grow the label space without bound.
func (s *Server) withMiddleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit writes (manual creates and uploads).
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		observeRequest(r.Method, route, rw.statusCode, duration)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getReceipts returns the user's receipts, serving from cache when fresh.
// Concurrent cold loads for the same user collapse into one store read.
func (s *Server) getReceipts(ctx context.Context, userID string) ([]core.Receipt, error) {
	if receipts, found := s.receiptsCache.Get(userID); found {
		slog.DebugContext(ctx, "Receipts cache hit", "user_id", userID, "count", len(receipts))
		result := make([]core.Receipt, len(receipts))
		copy(result, receipts)
		return result, nil
	}

	v, err, _ := s.loads.Do(userID, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
		defer cancel()
		receipts, err := s.receipts.ListAll(cctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list receipts (user=%s): %w", userID, err)
		}
		s.receiptsCache.Set(userID, receipts)
		return receipts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Receipt), nil
}

// invalidateReceipts drops the cached list after a successful write.
func (s *Server) invalidateReceipts(userID string) {
	s.receiptsCache.Delete(userID)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleIndex serves the embedded single-page UI.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := appweb.TemplatesFS.ReadFile("templates/index.html")
	if err != nil {
		slog.ErrorContext(r.Context(), "Index page not embedded", "error", err)
		http.Error(w, "index not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
