// Package httpapi serves the station's read-only status surface.
package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/service"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/store"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// StatusSource is satisfied by *service.Controller.
type StatusSource interface {
	Status() service.Status
}

// DropCounter is satisfied by *service.JournalRecorder.
type DropCounter interface {
	Dropped() uint64
}

type Dependencies struct {
	Logger      *log.Logger
	Addr        string
	Status      StatusSource
	Journal     store.Journal // nil disables /v1/events
	Drops       DropCounter   // optional
	MachineID   string
	Group       string
	RequireCard bool
	Now         func() time.Time
}

type Server struct {
	httpServer  *http.Server
	logger      *log.Logger
	status      StatusSource
	journal     store.Journal
	drops       DropCounter
	machineID   string
	group       string
	requireCard bool
	now         func() time.Time
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	if d.Now == nil {
		d.Now = time.Now
	}

	s := &Server{
		logger:      d.Logger,
		status:      d.Status,
		journal:     d.Journal,
		drops:       d.Drops,
		machineID:   d.MachineID,
		group:       d.Group,
		requireCard: d.RequireCard,
		now:         d.Now,
	}

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
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

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	resp := types.StatusResponse{
		OK:          true,
		MachineID:   s.machineID,
		Group:       s.group,
		State:       st.State.String(),
		Since:       st.Since.UTC().Format(time.RFC3339Nano),
		Outputs:     st.Outputs,
		RequireCard: s.requireCard,
		Ticks:       st.Ticks,
		ServerTime:  s.now().UTC().Format(time.RFC3339Nano),
	}
	if s.drops != nil {
		resp.JournalDropped = s.drops.Dropped()
	}

	if acceptsProtobuf(r) {
		msg, err := statusToProto(resp)
		if err != nil {
			s.logger.Printf("status encode error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal_disabled", "no journal configured")
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	recs, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("events error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	events := make([]types.EventView, 0, len(recs))
	for _, rec := range recs {
		events = append(events, types.EventView{
			Kind:       rec.Kind,
			From:       rec.From,
			To:         rec.To,
			CardIDHash: hex.EncodeToString(rec.CardIDHash),
			Decision:   rec.Decision,
			Reason:     rec.Reason,
			At:         rec.At.UTC().Format(time.RFC3339Nano),
		})
	}

	if acceptsProtobuf(r) {
		msg, err := eventsToProto(events)
		if err != nil {
			s.logger.Printf("events encode error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}
