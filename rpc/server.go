package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/qorachain/internal/logging"
	"golang.org/x/time/rate"
)

const maxRequestBytes = 1 << 20

// ServerConfig configures a Server. Empty AuthToken disables auth; zero
// RequestsPerSecond disables rate limiting.
type ServerConfig struct {
	Addr              string
	AuthToken         string
	RequestsPerSecond float64
	Burst             int
	Log               logrus.FieldLogger
}

// Server is a JSON-RPC 2.0 HTTP server.
type Server struct {
	handler   *Handler
	authToken string
	limiter   *rate.Limiter
	log       logrus.FieldLogger
	srv       *http.Server
}

// NewServer creates a Server. If cfg.AuthToken is non-empty, every request
// must carry a matching "Authorization: Bearer <token>" header.
func NewServer(handler *Handler, cfg ServerConfig) *Server {
	s := &Server{
		handler:   handler,
		authToken: cfg.AuthToken,
		log:       logging.OrDiscard(cfg.Log),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.ServeHTTP)
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Serve binds the address and serves until ctx is done, then shuts down
// gracefully, waiting up to 5 seconds for in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.WithField("addr", ln.Addr().String()).Info("RPC server listening")

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.authToken != "" && r.Header.Get("Authorization") != "Bearer "+s.authToken {
		writeJSON(w, errResponse(nil, CodeUnauthorized, "unauthorized"))
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, errResponse(nil, CodeRateLimited, "rate limit exceeded"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, errResponse(nil, CodeParseError, err.Error()))
		return
	}
	if req.JSONRPC != "2.0" {
		writeJSON(w, errResponse(req.ID, CodeInvalidRequest, "jsonrpc must be '2.0'"))
		return
	}

	resp := s.handler.Dispatch(r.Context(), req)
	if resp.Error != nil && resp.Error.Code == CodeInternalError {
		s.log.WithFields(logrus.Fields{"method": req.Method, "error": resp.Error.Message}).Warn("RPC call failed")
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
