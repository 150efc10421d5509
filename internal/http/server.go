package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pennywise/internal/log"
	"pennywise/internal/middleware/auth"
	"pennywise/internal/middleware/ratelimit"
	"pennywise/internal/middleware/security"
	"pennywise/internal/middleware/trace"
	"pennywise/internal/reconcile"
	"pennywise/internal/services"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes to. Finance, Dashboard, Guard,
// Store and Auth are required.
type Deps struct {
	Finance   *services.FinanceService
	Dashboard *services.DashboardService
	Guard     *reconcile.Guard
	Store     Pinger
	Auth      auth.Authenticator

	RateLimitPerMinute int
	Logger             *log.Logger
	// Now is the clock for goal progress. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server

	finance   *services.FinanceService
	dashboard *services.DashboardService
	guard     *reconcile.Guard
	store     Pinger
	now       func() time.Time
	startedAt time.Time

	logger   *log.StructuredLogger
	detector *security.Detector
	limiter  *ratelimit.Limiter
	trace    *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		finance:   deps.Finance,
		dashboard: deps.Dashboard,
		guard:     deps.Guard,
		store:     deps.Store,
		now:       now,
		startedAt: time.Now(),
		logger:    log.NewStructuredLogger(logger),
		detector:  security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
		}),
	}
	s.trace = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	api := http.NewServeMux()
	s.routes(api)

	protected := auth.Middleware(deps.Auth, s.handleAuthFailure)(
		s.limiter.Middleware(s.rateLimitKey, s.handleRateLimited)(api),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/v1/", protected)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr: addr,
		Handler: s.trace.Middleware(
			s.detector.Middleware(
				headers.Middleware(
					log.Middleware(logger)(mux),
				),
			),
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/v1/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/v1/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/v1/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/v1/incomes", s.handleListIncomes)
	mux.HandleFunc("POST /api/v1/incomes", s.handleCreateIncome)
	mux.HandleFunc("GET /api/v1/incomes/{id}", s.handleGetIncome)
	mux.HandleFunc("PUT /api/v1/incomes/{id}", s.handleUpdateIncome)
	mux.HandleFunc("DELETE /api/v1/incomes/{id}", s.handleDeleteIncome)

	mux.HandleFunc("GET /api/v1/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/v1/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/v1/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PUT /api/v1/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/v1/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("GET /api/v1/goals/{id}/progress", s.handleGoalProgress)
	mux.HandleFunc("GET /api/v1/goals/{id}/linkable-incomes", s.handleLinkableIncomes)
	mux.HandleFunc("POST /api/v1/goals/{id}/links", s.handleLinkIncomes)
	mux.HandleFunc("DELETE /api/v1/goals/{id}/links/{incomeID}", s.handleUnlinkIncome)

	mux.HandleFunc("GET /api/v1/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/v1/budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /api/v1/budgets/{id}", s.handleGetBudget)
	mux.HandleFunc("PUT /api/v1/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/v1/budgets/{id}", s.handleDeleteBudget)
	mux.HandleFunc("GET /api/v1/budgets/{id}/utilization", s.handleBudgetUtilization)

	mux.HandleFunc("GET /api/v1/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/v1/dashboard/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/v1/import", s.handleImport)
}

// rateLimitKey limits per user. Auth runs first, so the IP fallback only
// applies when the limiter is mounted without it.
func (s *Server) rateLimitKey(r *http.Request) string {
	if uid, err := auth.UserIDFromContext(r.Context()); err == nil {
		return "user:" + uid.String()
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request, retryAfter int) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldRequestID, trace.GetRequestID(r.Context()),
		log.FieldPath, r.URL.Path,
		"retry_after", retryAfter)
	TooManyRequestsError(retryAfter).Write(w)
}

func (s *Server) handleAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).InfoContext(r.Context(), "Authentication failed",
		log.FieldRequestID, trace.GetRequestID(r.Context()),
		log.FieldPath, r.URL.Path,
		log.FieldErrorType, log.ErrorTypeAuth,
		log.FieldError, err.Error())
	UnauthorizedError().Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
