package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"
	"github.com/unrolled/secure"
)

// mutation limit per company on the expensive compute routes
const computeRateLimit = 10

type RouterConfig struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	Production     bool
	JWTService     jwt.Service
	Metrics        http.Handler

	PayrollHandler    PayrollHandler
	SettlementHandler SettlementHandler
	TaxRuleHandler    TaxRuleHandler
}

func companyRateKey(r *http.Request) (string, error) {
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		return "company:" + actor.CompanyID, nil
	}
	return httprate.KeyByIP(r)
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !cfg.Production,
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))
	r.Use(secureMiddleware.Handler)

	r.Use(httplog.RequestLogger(cfg.Logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	computeLimiter := httprate.Limit(computeRateLimit, time.Minute,
		httprate.WithKeyFuncs(companyRateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
		}),
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(cfg.JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)
			r.Use(middleware.RequireCompany)
			r.Use(middleware.RequireManager)

			r.Route("/tax-rules", func(r chi.Router) {
				r.Get("/", cfg.TaxRuleHandler.List)
				r.Post("/", cfg.TaxRuleHandler.Create)
				r.Get("/{id}", cfg.TaxRuleHandler.Get)
			})

			r.Route("/payroll/cycles", func(r chi.Router) {
				r.Get("/", cfg.PayrollHandler.ListCycles)
				r.Post("/", cfg.PayrollHandler.CreateCycle)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.PayrollHandler.GetCycle)
					r.Get("/entries", cfg.PayrollHandler.ListEntries)
					r.Get("/snapshot", cfg.PayrollHandler.Snapshot)
					r.With(computeLimiter).Post("/process", cfg.PayrollHandler.ProcessCycle)
					r.Post("/approve", cfg.PayrollHandler.ApproveCycle)
					r.Post("/settle", cfg.PayrollHandler.SettleEntries)
					r.Post("/pay", cfg.PayrollHandler.MarkPaid)
					r.Post("/lock", cfg.PayrollHandler.LockCycle)
				})
			})

			r.Route("/settlements/exits", func(r chi.Router) {
				r.Get("/", cfg.SettlementHandler.ListExits)
				r.Post("/", cfg.SettlementHandler.InitiateExit)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.SettlementHandler.GetExit)
					r.Get("/snapshot", cfg.SettlementHandler.Snapshot)
					r.With(computeLimiter).Post("/calculate", cfg.SettlementHandler.Calculate)
					r.Post("/approve", cfg.SettlementHandler.Approve)
					r.Post("/pay", cfg.SettlementHandler.MarkPaid)
					r.Post("/complete", cfg.SettlementHandler.Complete)
				})
			})
		})
	})
	return r
}
