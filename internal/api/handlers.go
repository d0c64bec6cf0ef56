package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/check"
	"github.com/YumeNoTenshi/utilwatch/internal/notify"
)

// Runner runs the check on demand and remembers the last outcome.
type Runner interface {
	RunOnce(ctx context.Context) check.LastRun
	Last() (check.LastRun, bool)
}

// Previewer evaluates and renders without dispatching.
type Previewer interface {
	Preview(ctx context.Context) (check.Evaluation, notify.Rendered, error)
}

type Server struct {
	runner    Runner
	previewer Previewer
	registry  prometheus.Gatherer
	apiKey    string
	log       *zap.Logger
	now       func() time.Time
}

func NewServer(runner Runner, previewer Previewer, registry prometheus.Gatherer, apiKey string, logger *zap.Logger) *Server {
	return &Server{
		runner:    runner,
		previewer: previewer,
		registry:  registry,
		apiKey:    apiKey,
		log:       logger.With(zap.String("component", "api")),
		now:       time.Now,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(s.log))

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods("GET")

	protected := v1.NewRoute().Subrouter()
	protected.Use(AuthMiddleware(s.apiKey))
	protected.HandleFunc("/run", s.handleRun).Methods("POST")
	protected.HandleFunc("/status", s.handleStatus).Methods("GET")
	protected.HandleFunc("/preview", s.handlePreview).Methods("GET")

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run := s.runner.RunOnce(r.Context())
	code := http.StatusOK
	if run.Error != "" {
		code = http.StatusBadGateway
	}
	respondWithJSON(w, code, RunResponse{Status: status(run), Data: run})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner.Last()
	if !ok {
		respondWithError(w, http.StatusNotFound, "no run recorded yet")
		return
	}
	respondWithJSON(w, http.StatusOK, RunResponse{Status: status(run), Data: run})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "card"
	}
	if format != "card" && format != "email" && format != "text" {
		respondWithError(w, http.StatusBadRequest, "format must be card, email or text")
		return
	}

	ev, rendered, err := s.previewer.Preview(r.Context())
	if errors.Is(err, check.ErrDisabled) {
		respondWithError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch format {
	case "email":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rendered.Email.HTML))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rendered.Email.Text))
	default:
		respondWithJSON(w, http.StatusOK, PreviewResponse{
			Status:    "success",
			Instances: len(ev.Samples),
			Offenders: len(ev.Offenders),
			Subject:   rendered.Subject,
			Cards:     rendered.Cards,
		})
	}
}

func status(run check.LastRun) string {
	if run.Error != "" || !run.Summary.OK {
		return "error"
	}
	return "success"
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{
		Status:  "error",
		Message: message,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":"error","message":"Error marshaling JSON"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
