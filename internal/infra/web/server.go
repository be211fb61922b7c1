package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ai-entitlement-service/internal/usecase"
)

type Server struct {
	entitlements usecase.EntitlementUseCase
	settlement   usecase.SettlementUseCase
	redeem       usecase.RedeemUseCase
	auth         *AuthManager
	apiKey       string
	metrics      http.Handler
	log          *zerolog.Logger
}

func NewServer(
	entitlements usecase.EntitlementUseCase,
	settlement usecase.SettlementUseCase,
	redeem usecase.RedeemUseCase,
	auth *AuthManager,
	apiKey string,
	metrics http.Handler,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		entitlements: entitlements,
		settlement:   settlement,
		redeem:       redeem,
		auth:         auth,
		apiKey:       apiKey,
		metrics:      metrics,
		log:          logger,
	}
}

// Router assembles the full HTTP surface. The admin subtree sits behind the
// bearer-key middleware; everything else is open to the app backends.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/entitlements", func(r chi.Router) {
			r.Get("/", entitlementGetHandler(s.entitlements))
			r.Post("/consume", entitlementConsumeHandler(s.entitlements))
			r.Post("/gift", entitlementGiftHandler(s.entitlements))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderCreateHandler(s.settlement))
			r.Post("/callback", orderCallbackHandler(s.settlement))
			r.Post("/{id}/repay", orderRepayHandler(s.settlement))
		})
		r.Post("/codes/redeem", codeRedeemHandler(s.redeem))

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Post("/codes", codeGenerateHandler(s.redeem))
			if s.auth != nil {
				r.Post("/session", s.auth.MintHandler(s.apiKey))
			}
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
