// Package http is the JSON transport over the ledger storage contract.
// Authentication happens upstream; the gateway forwards the caller's id and
// role in the X-Actor-ID and X-Actor-Role headers.
package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"accounting/internal/ledger"
	"accounting/internal/log"
	"accounting/internal/metrics"
	"accounting/internal/middleware/ratelimit"
	"accounting/internal/middleware/security"
	"accounting/internal/middleware/trace"
)

// Store is what the transport needs from a backend. Money capitals and
// documents are served only when the store also implements
// ledger.MoneyCapitalStore or ledger.DocumentStore.
type Store interface {
	ledger.Store
	ledger.Pinger
}

type Options struct {
	Logger             *log.Logger
	Metrics            *metrics.Metrics // nil disables /metrics
	CORSAllowedOrigins []string
	RateLimit          ratelimit.Config
}

type Server struct {
	http.Server

	store     Store
	capitals  ledger.MoneyCapitalStore
	documents ledger.DocumentStore

	logger   *log.Logger
	events   *log.StructuredLogger
	metrics  *metrics.Metrics
	detector *security.Detector
	limiter  *ratelimit.Limiter
}

func NewServer(addr string, store Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		store:    store,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		metrics:  opts.Metrics,
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
	}
	s.capitals, _ = store.(ledger.MoneyCapitalStore)
	s.documents, _ = store.(ledger.DocumentStore)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var observe trace.Observer
	if s.metrics != nil {
		observe = s.metrics.ObserveHTTP
	}

	r := chi.NewRouter()
	r.Use(trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, observe).Middleware)
	r.Use(trace.LoggerMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderActorID, HeaderActorRole, trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(identify)
		r.Use(s.limiter.Middleware(s.rateKey, s.rateLimited))

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", s.registerUser)
			r.Post("/login", s.loginUser)
			r.With(requireAdmin).Get("/", s.listUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(requireActor)
				r.Get("/", s.getUser)
				r.Put("/", s.updateUser)
				r.With(requireAdmin).Put("/pay", s.payUser)
				r.With(requireAdmin).Delete("/", s.deleteUser)
			})
		})

		r.Route("/company", func(r chi.Router) {
			r.Use(requireActor)
			r.Get("/", s.searchCompanies)
			r.With(requireAdmin).Post("/", s.createCompany)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCompany)
				r.With(requireAdmin).Put("/", s.updateCompany)
				r.With(requireAdmin).Delete("/", s.deleteCompany)

				r.Get("/funders", s.listFunders)
				r.With(requireAdmin).Post("/funders", s.createFunder)
				r.Post("/expenses", s.createExpense)
				r.With(requireAdmin).Post("/incomes", s.createIncome)
				if s.capitals != nil {
					r.Post("/money_capitals", s.createMoneyCapital)
				}
				if s.documents != nil {
					r.Post("/documents", s.uploadDocument)
					r.With(requireAdmin).Get("/documents", s.listDocuments)
				}
			})
		})

		r.Route("/funders", func(r chi.Router) {
			r.With(requireAdmin).Delete("/{id}", s.deleteFunder)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Use(requireActor)
			r.Get("/", s.listExpenses)
			r.Delete("/{id}", s.deleteExpense)
		})

		r.Route("/incomes", func(r chi.Router) {
			r.Use(requireActor)
			r.Get("/", s.listIncomes)
			r.With(requireAdmin).Delete("/{id}", s.deleteIncome)
		})

		if s.capitals != nil {
			r.Route("/money_capitals", func(r chi.Router) {
				r.Use(requireActor)
				r.Get("/", s.listMoneyCapitals)
				r.Delete("/{id}", s.deleteMoneyCapital)
			})
		}

		if s.documents != nil {
			r.Route("/documents", func(r chi.Router) {
				r.Use(requireActor)
				r.Get("/{id}", s.downloadDocument)
				r.With(requireAdmin).Delete("/{id}", s.deleteDocument)
				r.With(requireAdmin).Delete("/path/*", s.deleteDocumentByPath)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
	return r
}

// Shutdown stops the rate limiter and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "ok", nil)
}

// rateKey buckets identified callers by actor and anonymous ones by address.
func (s *Server) rateKey(r *http.Request) string {
	if a, found := actorFrom(r.Context()); found {
		return "actor:" + strconv.FormatInt(a.ID, 10)
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RateLimited()
	}
	s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, s.detector.ExtractClientIP(r))
	writeJSON(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
}

// observe counts a store call by operation, kind and outcome.
func (s *Server) observe(op, kind string, err error) {
	if s.metrics != nil {
		s.metrics.LedgerOp(op, kind, err)
	}
}
