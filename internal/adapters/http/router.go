package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const (
	companyIDHeader = "X-Company-Id"
	userIDHeader    = "X-User-Id"
)

// Services are the inbound ports the router exposes. Nil services answer 501.
type Services struct {
	Analyzer   ports.DocumentAnalyzer
	Duplicates ports.DuplicateDetector
	Ingestor   ports.DocumentIngestor
	Reader     ports.DocumentReader
	Reanalyzer ports.DocumentReanalyzer
}

// MetricsRecorder wraps handlers with request metrics and serves the
// scrape endpoint.
type MetricsRecorder interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  MetricsRecorder
}

func NewRouter(cfg config.Config, services Services, metrics MetricsRecorder) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	return &Router{cfg: cfg, services: services, metrics: metrics}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/analysis/quick", rt.quickAnalysis)
	api.HandleFunc("POST /v1/analysis", rt.analyzeDocument)
	api.HandleFunc("POST /v1/documents", rt.storeDocument)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("POST /v1/documents/{id}/reanalyze", rt.reanalyzeDocument)
	api.HandleFunc("POST /v1/duplicates/batch", rt.detectDuplicates)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
