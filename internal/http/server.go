package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"backoffice/internal/cache"
	"backoffice/internal/core"
	"backoffice/internal/log"
	"backoffice/internal/middleware/ratelimit"
	"backoffice/internal/middleware/trace"
	"backoffice/internal/storage"
)

// Saver runs one coordinated save.
type Saver interface {
	Save(ctx context.Context, req core.SaveRequest) core.SaveResult
}

// Journal is the read side of the save journal.
type Journal interface {
	GetBatch(ctx context.Context, id string) (core.BatchRecord, error)
	ListRecentBatches(ctx context.Context, limit int) ([]core.BatchRecord, error)
	ListFailedEdits(ctx context.Context, limit int) ([]storage.FailedEdit, error)
	Ping(ctx context.Context) error
}

// Options tune the API server. Zero values pick defaults.
type Options struct {
	Logger       *log.Logger
	RateLimit    ratelimit.Config
	CacheSize    int
	CacheTTL     time.Duration
	MaxBodyBytes int64
}

const (
	defaultCacheSize    = 256
	defaultCacheTTL     = 10 * time.Minute
	defaultMaxBodyBytes = 1 << 20
)

type Server struct {
	http.Server
	saver   Saver
	journal Journal
	logger  *log.Logger
	maxBody int64

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	// Journal entries never change once written, so lookups by id are cached.
	batchCache *cache.LRUCache[core.BatchRecord]
	caches     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// journal may be nil, in which case the batch endpoints answer 503.
func NewServer(addr string, saver Saver, journal Journal, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		saver:      saver,
		journal:    journal,
		logger:     opts.Logger.WithComponent(log.ComponentHTTP),
		maxBody:    opts.MaxBodyBytes,
		limiter:    ratelimit.NewLimiter(opts.RateLimit),
		tracer:     trace.NewMiddleware(extractClientIP, opts.Logger),
		batchCache: cache.NewLRUCache[core.BatchRecord](opts.CacheSize, opts.CacheTTL),
		caches:     cache.NewManager(),
	}
	s.caches.Register(s.batchCache)
	s.caches.StartCleanup(opts.CacheTTL)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /api/bulk-edits", s.handleSave)
	mux.HandleFunc("POST /api/bulk-edits/plan", s.handlePlan)
	mux.HandleFunc("GET /api/save-batches", s.handleListBatches)
	mux.HandleFunc("GET /api/save-batches/{id}", s.handleGetBatch)
	mux.HandleFunc("GET /api/failed-edits", s.handleListFailedEdits)
	mux.HandleFunc("GET /api/activity-types", handleActivityTypes)

	limited := s.limiter.Middleware(extractClientIP, s.onRateLimit, http.MethodPost)(mux)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(withSecurityHeaders(limited)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Saves wait on the backend for every edit in the batch.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, extractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
