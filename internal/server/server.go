package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/usecase"
)

// Server exposes the query path over HTTP. Capability failures surface as
// degraded 200 answers; only transport problems produce error statuses.
type Server struct {
	retrieval *usecase.Retrieval
	synthesis *usecase.Synthesis
	direct    *usecase.Direct
	inflight  chan struct{}
	logger    *slog.Logger
}

// New constructs the HTTP surface with a bounded in-flight request budget.
func New(retrieval *usecase.Retrieval, synthesis *usecase.Synthesis, direct *usecase.Direct, maxInFlight int, logger *slog.Logger) *Server {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	return &Server{
		retrieval: retrieval,
		synthesis: synthesis,
		direct:    direct,
		inflight:  make(chan struct{}, maxInFlight),
		logger:    logger,
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

type newsItem struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	SourceURL string    `json:"sourceUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query/grounded", s.limit(s.handleGrounded))
	mux.HandleFunc("POST /v1/query/direct", s.limit(s.handleDirect))
	mux.HandleFunc("GET /v1/news/latest", s.handleLatestNews)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// limit rejects requests above the in-flight budget instead of queueing
// them, keeping latency predictable under load.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.inflight <- struct{}{}:
			defer func() { <-s.inflight }()
			next(w, r)
		default:
			http.Error(w, "too many concurrent requests", http.StatusServiceUnavailable)
		}
	}
}

func (s *Server) handleGrounded(w http.ResponseWriter, r *http.Request) {
	query, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	qctx := s.retrieval.Retrieve(r.Context(), query)
	answer := s.synthesis.Synthesize(r.Context(), query, qctx)
	s.writeJSON(w, http.StatusOK, queryResponse{Answer: answer})
}

func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	query, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	answer := s.direct.Answer(r.Context(), query)
	s.writeJSON(w, http.StatusOK, queryResponse{Answer: answer})
}

func (s *Server) handleLatestNews(w http.ResponseWriter, r *http.Request) {
	n := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 50 {
			http.Error(w, "limit must be between 1 and 50", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	records, err := s.retrieval.LatestNews(r.Context(), n)
	if err != nil {
		s.logger.Error("latest news", "error", err)
		http.Error(w, "news listing unavailable", http.StatusInternalServerError)
		return
	}

	items := make([]newsItem, 0, len(records))
	for _, record := range records {
		items = append(items, newsRecordItem(record))
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return "", false
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		http.Error(w, "query must not be empty", http.StatusBadRequest)
		return "", false
	}
	return query, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func newsRecordItem(record domain.KnowledgeRecord) newsItem {
	return newsItem{
		Title:     record.Title,
		Text:      record.Text,
		SourceURL: record.SourceURL,
		CreatedAt: record.CreatedAt,
	}
}

// Run serves until the context is cancelled, then drains with a short
// shutdown grace period.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
