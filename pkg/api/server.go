package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Mindburn-Labs/igcatalog/pkg/chain"
	"github.com/Mindburn-Labs/igcatalog/pkg/validator"
)

// MaxDocumentBytes bounds a candidate document.
const MaxDocumentBytes = 10 << 20

// Server routes validation requests.
type Server struct {
	validator *validator.Validator
	holder    *chain.Holder
	limiter   *RateLimiter
	logger    *slog.Logger
}

// NewServer creates a Server. A nil limiter disables rate limiting.
func NewServer(v *validator.Validator, holder *chain.Holder, limiter *RateLimiter) *Server {
	return &Server{
		validator: v,
		holder:    holder,
		limiter:   limiter,
		logger:    slog.Default().With("component", "api"),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/validate", s.handleValidate)
	mux.HandleFunc("/health", s.handleHealth)

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	return RequestIDMiddleware(h)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, "Payload Too Large", "The document exceeds the maximum size")
			return
		}
		WriteInternal(w, r, err)
		return
	}

	resp := s.validator.Validate(r.Context(), body)
	s.logger.DebugContext(r.Context(), "validated document",
		"request_id", GetRequestID(r.Context()),
		"successful", resp.Successful,
		"messages", len(resp.Messages),
	)
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
	Cached  int      `json:"cached"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	c := s.holder.Load()
	if c == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	resp := healthResponse{Status: "ok", Cached: c.Stats().Entries}
	for _, src := range c.Sources() {
		resp.Sources = append(resp.Sources, src.Name())
	}
	writeJSON(w, http.StatusOK, resp)
}
