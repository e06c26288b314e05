// Package http serves the entry form, the table editor and the charts.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"expenselog/internal/cache"
	"expenselog/internal/config"
	"expenselog/internal/core"
	"expenselog/internal/log"
	"expenselog/internal/middleware/ratelimit"
	"expenselog/internal/middleware/security"
	"expenselog/internal/middleware/trace"
	"expenselog/internal/rollup"
	"expenselog/internal/services"
	appweb "expenselog/web"
)

// ExpenseService is what the handlers need from the service layer.
type ExpenseService interface {
	Rows(ctx context.Context) ([]core.Row, error)
	Summary(ctx context.Context, today core.Date, period services.Period) (rollup.Summary, error)
	Submit(ctx context.Context, date core.Date, lines []services.Line) (services.Result, error)
	SaveTable(ctx context.Context, rows []core.Row) (services.Result, error)
	Categories(ctx context.Context) ([]string, error)
	AddCategory(ctx context.Context, name string) error
	Ready(ctx context.Context) error
}

type Server struct {
	http.Server
	templates *template.Template
	svc       ExpenseService
	logger    *log.Logger
	formRows  int
	now       func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics
}

type appMetrics struct {
	uptime       time.Time
	savedRecords int64
	syncWarnings int64
}

type Option func(*serverOptions)

type serverOptions struct {
	formRows    int
	now         func() time.Time
	logger      *log.Logger
	rateLimit   ratelimit.Config
	templatesFS fs.FS
	proxies     []string
}

// WithFormRows sets the default number of line rows on the entry form.
func WithFormRows(n int) Option {
	return func(o *serverOptions) { o.formRows = n }
}

// WithClock overrides time.Now; "today" is derived from it.
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) { o.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithRateLimit configures the limiter guarding POST routes.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(o *serverOptions) { o.rateLimit = cfg }
}

// WithTemplatesFS replaces the embedded templates. The FS must hold
// templates/*.html.
func WithTemplatesFS(fsys fs.FS) Option {
	return func(o *serverOptions) { o.templatesFS = fsys }
}

// WithTrustedProxies adds CIDRs whose forwarded headers are believed.
func WithTrustedProxies(cidrs ...string) Option {
	return func(o *serverOptions) { o.proxies = append(o.proxies, cidrs...) }
}

// NewServer wires routes and middleware around svc. A template parse error is
// logged and leaves the server up but not ready.
func NewServer(addr string, svc ExpenseService, opts ...Option) *Server {
	o := serverOptions{
		formRows:    3,
		now:         time.Now,
		rateLimit:   ratelimit.DefaultConfig(),
		templatesFS: appweb.TemplatesFS,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.FromContext(context.Background()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		svc:              svc,
		logger:           o.logger,
		formRows:         clampRows(o.formRows),
		now:              o.now,
		rateLimiter:      ratelimit.NewLimiter(o.rateLimit),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	for _, cidr := range o.proxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	tmpl, err := parseTemplates(o.templatesFS)
	if err != nil {
		s.logger.Error("Template parse failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldError, err)
	}
	s.templates = tmpl

	mux := http.NewServeMux()
	if static, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		files := http.StripPrefix("/static/", http.FileServer(http.FS(static)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(files))
	}

	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, try again shortly").
			TriggerErrorNotification("Too many requests").
			Write(w)
	})

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/form", s.handleForm)
	mux.Handle("POST /expenses", limit(http.HandlerFunc(s.handleSubmit)))
	mux.HandleFunc("GET /records", s.handleRecords)
	mux.Handle("POST /records", limit(http.HandlerFunc(s.handleSaveRecords)))
	mux.HandleFunc("GET /ui/summary", s.handleSummary)
	mux.HandleFunc("GET /api/summary", s.handleSummaryJSON)
	mux.HandleFunc("GET /export.xlsx", s.handleExport)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.Handle("POST /categories", limit(http.HandlerFunc(s.handleAddCategory)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.securityDetector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// Shutdown stops the limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

// today is the calendar date of the server clock.
func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
	}
}

// cacheStats reports service cache counters when the service exposes them.
func (s *Server) cacheStats() (cache.Stats, bool) {
	if c, ok := s.svc.(interface{ CacheStats() cache.Stats }); ok {
		return c.CacheStats(), true
	}
	return cache.Stats{}, false
}

func clampRows(n int) int {
	if n < 1 {
		return 1
	}
	if n > config.MaxFormRows {
		return config.MaxFormRows
	}
	return n
}
