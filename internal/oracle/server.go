package oracle

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"
)

type Dependencies struct {
	Logger  *log.Logger
	Addr    string
	Service *Service
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	service    *Service
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:  d.Logger,
		service: d.Service,
	}

	mux.HandleFunc("GET /{token}/{group}/{machine}/{card}", s.handleAccess)
	mux.HandleFunc("GET /{token}/{group}", s.handleExtend)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           loggingMiddleware(d.Logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	req := AccessRequest{
		Token:     r.PathValue("token"),
		Group:     r.PathValue("group"),
		MachineID: r.PathValue("machine"),
		CardID:    r.PathValue("card"),
	}

	d, err := s.service.Decide(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnknownMachine):
			writeText(w, http.StatusForbidden, "false")
		case errors.Is(err, ErrInvalidGroup), errors.Is(err, ErrInvalidMachineID), errors.Is(err, ErrInvalidCardID):
			writeText(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Printf("access error: %v", err)
			writeText(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.logger.Printf("access machine=%s group=%s granted=%t reason=%s", req.MachineID, req.Group, d.Granted, d.Reason)
	if d.Granted {
		writeText(w, http.StatusOK, "true")
		return
	}
	writeText(w, http.StatusOK, "false")
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Extend(r.PathValue("token"), r.PathValue("group")); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			writeText(w, http.StatusForbidden, "false")
			return
		}
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// loggingMiddleware logs the matched route pattern rather than the path,
// which carries the token.
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		logger.Printf("%s route=%q from=%s dur=%s", r.Method, route, r.RemoteAddr, time.Since(start))
	})
}
