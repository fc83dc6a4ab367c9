package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with
// additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows which path patterns it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// RequestLogger logs every request at debug level.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// CallbackServer is the short-lived localhost server that receives the
// provider's authorization redirect during account linking.
type CallbackServer struct {
	handler *OAuthHandler
	server  *http.Server
	logger  *log.Logger
}

// NewCallbackServer creates a CallbackServer bound to addr, expecting the
// given state token on its callback route.
func NewCallbackServer(addr, state string, logger *log.Logger) *CallbackServer {
	handler := NewOAuthHandler(state)

	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(handler)

	return &CallbackServer{
		handler: handler,
		server:  &http.Server{Addr: addr, Handler: router},
		logger:  logger,
	}
}

// Start begins serving in the background.
func (s *CallbackServer) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server failed", "error", err)
		}
	}()
}

// Wait blocks until the callback delivers an authorization code, the
// callback reports an error, or the context expires.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-s.handler.Result():
		if err := result.Error(); err != nil {
			return "", err
		}
		return result.Code, nil
	}
}

// Shutdown gracefully stops the server.
func (s *CallbackServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
