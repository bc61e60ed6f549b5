package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RPCHandler dispatches a method call on behalf of caller.
type RPCHandler interface {
	Handle(ctx context.Context, caller common.Address, method string, params json.RawMessage) (any, error)
}

// Options configures the HTTP router.
type Options struct {
	// Auth resolves the /rpc caller; nil leaves every request anonymous.
	Auth func(http.Handler) http.Handler
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *zap.Logger
}

// Server wires HTTP handlers.
type Server struct {
	handler RPCHandler
	logger  *zap.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(handler RPCHandler, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	srv := &Server{handler: handler, logger: logger}

	r.Get("/health", srv.handleHealth)
	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Post("/rpc", srv.handleRPC)
	})
	// MCP verifies tokens per tool call in its own middleware.
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		if errors.Is(err, errParse) {
			WriteError(w, nil, ErrParseCode, "parse error", nil)
			return
		}
		WriteError(w, nil, ErrInvalidReq, "invalid request", nil)
		return
	}

	caller, _ := IdentityFromContext(r.Context())

	result, err := s.handler.Handle(r.Context(), caller, req.Method, req.Params)
	if err != nil {
		if WriteDomainError(w, req.ID, err) {
			return
		}
		s.logger.Error("rpc failed", zap.String("method", req.Method), zap.Error(err))
		WriteError(w, req.ID, ErrInternal, "internal error", nil)
		return
	}

	WriteResult(w, req.ID, result)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
