package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

type Server struct {
	router         *chi.Mux
	uc             *usecase.UseCases
	requestTimeout time.Duration
}

type Options func(*Server)

// WithRequestTimeout bounds every API request. Zero disables the limit.
func WithRequestTimeout(d time.Duration) Options {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler)

		r.Post("/chat", chatHandler(uc.Chat))

		r.Get("/context/{user_id}", getContextHandler(uc.Context))
		r.Put("/context/{user_id}", updateContextHandler(uc.Context))
		r.Delete("/context/{user_id}", deleteContextHandler(uc.Context))

		r.Get("/history/{user_id}", historyHandler(uc.Context))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/collections", createCollectionHandler())
			r.Delete("/collections/{collection}", deleteCollectionHandler(uc.Document))
			r.Post("/{collection}/documents", addDocumentsHandler(uc.Document))
			r.Delete("/{collection}/documents", deleteDocumentsHandler(uc.Document))
			r.Post("/{collection}/query", queryDocumentsHandler(uc.Document))
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// logger of the request, tagged with the chi request ID
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.With(r.Context(), logger)))
	})
}
