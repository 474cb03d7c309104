package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/move-leads-platform/internal/http/middleware"
	"github.com/wolfman30/move-leads-platform/internal/intake"
	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	IntakeHandler      *intake.Handler
	LeadsHandler       *leads.Handler
	SubmitLimiter      httpmiddleware.Limiter
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.IntakeHandler != nil {
			public.Get("/estimate", cfg.IntakeHandler.Estimate)
			submit := public.With()
			if cfg.SubmitLimiter != nil {
				submit = public.With(httpmiddleware.RateLimit(cfg.SubmitLimiter, cfg.Logger))
			}
			submit.Post("/leads", cfg.IntakeHandler.SubmitLead)
		}
	})

	if cfg.LeadsHandler != nil {
		r.Route("/admin/leads", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/", cfg.LeadsHandler.ListLeads)
			admin.Get("/export.csv", cfg.LeadsHandler.ExportCSV)
			admin.Delete("/", cfg.LeadsHandler.DeleteAll)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
