package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	APIKeys []string
	Logger  *zap.Logger
}

// NewRouter assembles middleware and mounts the server routes.
// Order: request id, panic recovery, request logging, metrics, auth.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(recoverJSON(log))
	r.Use(accessLog(log))
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(cfg.APIKeys))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	s.Routes(r)
	return r
}
