package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"dentalstudio/internal/cache"
	"dentalstudio/internal/log"
	"dentalstudio/internal/middleware/ratelimit"
	"dentalstudio/internal/middleware/security"
	"dentalstudio/internal/middleware/trace"
	"dentalstudio/internal/pdf"
	"dentalstudio/internal/services"
)

// Options tunes the server. Zero values select defaults.
type Options struct {
	Logger    *log.Logger
	RateLimit ratelimit.Config
	// Ready reports whether dependencies (the database) are reachable.
	Ready       func(ctx context.Context) error
	PDFCacheTTL time.Duration
	PDFCacheMax int
}

type Server struct {
	http.Server
	svc      *services.QuotationService
	exporter pdf.Exporter
	validate *validator.Validate
	logger   *log.Logger
	ready    func(ctx context.Context) error

	clientIP *security.ClientIP
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	// Rendered PDFs by quotation id, dropped on every mutation of the quotation.
	pdfCache *cache.LRU[cachedPDF]

	stopBackground context.CancelFunc
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.QuotationService, exporter pdf.Exporter, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.PDFCacheTTL <= 0 {
		opts.PDFCacheTTL = 10 * time.Minute
	}
	if opts.PDFCacheMax <= 0 {
		opts.PDFCacheMax = 100
	}

	s := &Server{
		svc:      svc,
		exporter: exporter,
		validate: newValidator(),
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		ready:    opts.Ready,
		clientIP: security.NewClientIP(),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		pdfCache: cache.NewLRU[cachedPDF](opts.PDFCacheMax, opts.PDFCacheTTL),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.clientIP.Extract)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	go cache.NewJanitor(s.pdfCache).Run(ctx, 5*time.Minute)
	go s.limiter.Run(ctx, 5*time.Minute)

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NotFound", "", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "", "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	writeLimit := s.limiter.Middleware(s.clientIP.Extract, s.handleRateLimited)

	r.Route("/api", func(r chi.Router) {
		r.Get("/doctors", s.handleListDoctors)
		r.Get("/specialties", s.handleListSpecialties)
		r.Get("/specialties/{id}/doctors", s.handleEligibleDoctors)

		r.Get("/reports/commissions", s.handleCommissionReport)
		r.Get("/reports/quotations", s.handleQuotationReport)
		r.Get("/reports/expenses", s.handleExpenseReport)
		r.Get("/cashbox", s.handleCashBox)

		r.Route("/quotations", func(r chi.Router) {
			r.Get("/", s.handleListQuotations)
			r.With(writeLimit).Post("/", s.handleCreateQuotation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetQuotation)
				r.Get("/summary", s.handleSummary)
				r.Get("/pdf", s.handlePDF)
				r.Get("/payments/suggest", s.handleSuggestSplit)

				r.Group(func(r chi.Router) {
					r.Use(writeLimit)
					r.Delete("/", s.handleDeleteQuotation)
					r.Post("/services", s.handleAddService)
					r.Patch("/services/{index}", s.handleUpdateService)
					r.Delete("/services/{index}", s.handleRemoveService)
					r.Put("/services/{index}/commissions/{doctorId}", s.handleUpdateCommission)
					r.Post("/payments", s.handleRegisterPayment)
				})
			})
		})
	})

	return r
}

// Shutdown stops the background cleaners and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down", log.FieldOperation, log.OpShutdown)
		s.stopBackground()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.clientIP.Extract(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "RateLimited", "", "rate limit exceeded, try again later")
}
