// Package webhook is the HTTP front door (spec.md §6): a POST handler
// that recognizes a tracker "comment created" event whose body is the
// trigger phrase and fires a fresh task asynchronously, plus a health
// endpoint and a Prometheus metrics endpoint.
//
// Grounded on internal/gateway/http_server.go (mux layout,
// /healthz, /metrics via promhttp.Handler) and webhook_handlers.go
// (payload-to-task dispatch shape), trimmed to a single trigger rather
// than a multi-channel routing table.
package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// TriggerPhrase is the comment body that starts a task (spec.md §6).
const TriggerPhrase = "/implement"

// Payload is the tracker-agnostic shape of a "comment created" webhook
// event. Concrete tracker integrations (GitHub, GitLab, ...) translate
// their own payload shape into this one before calling Handler.
type Payload struct {
	Event string `json:"event"`
	Repo  string `json:"repo"`
	Issue struct {
		Number string `json:"number"`
	} `json:"issue"`
	Comment struct {
		Body string `json:"body"`
	} `json:"comment"`
}

// Dispatcher runs a fresh agent task for (repo, issue) asynchronously.
// The webhook handler never blocks on it — it starts the dispatch in its
// own goroutine and returns immediately (spec.md §6, "fires a fresh task
// asynchronously").
type Dispatcher interface {
	DispatchTask(ctx context.Context, repo, issueNumber string)
}

// Config configures the HTTP front door.
type Config struct {
	Dispatcher  Dispatcher
	Service     string // reported by /healthz
	Architecture string // reported by /healthz
	StartTime   time.Time
}

// Server owns the webhook front door's HTTP handlers.
type Server struct {
	cfg Config
}

// NewServer builds a Server from cfg, defaulting StartTime to now.
func NewServer(cfg Config) *Server {
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	return &Server{cfg: cfg}
}

// Mux returns an http.ServeMux wired with the webhook, health, and
// metrics endpoints, ready to be served directly or mounted under a
// larger router.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/implement", s.handleImplement)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleImplement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(payload.Comment.Body) != TriggerPhrase {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ignored"})
		return
	}

	if payload.Repo == "" || payload.Issue.Number == "" {
		http.Error(w, "repo and issue number are required", http.StatusBadRequest)
		return
	}

	log.Info().
		Str("repo", payload.Repo).
		Str("issue", payload.Issue.Number).
		Msg("webhook trigger received, dispatching task")

	if s.cfg.Dispatcher != nil {
		repo, issue := payload.Repo, payload.Issue.Number
		go s.cfg.Dispatcher.DispatchTask(context.Background(), repo, issue)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "queued",
		"repo":   payload.Repo,
		"issue":  payload.Issue.Number,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"service":      s.cfg.Service,
		"architecture": s.cfg.Architecture,
		"uptime_s":     time.Since(s.cfg.StartTime).Seconds(),
	})
}
