package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/kirillkom/campus-assistant/internal/config"
	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
	"github.com/kirillkom/campus-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg       config.Config
	answerer  ports.QuestionAnswerer
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator
}

// NewRouter wires the ask endpoint and the operational endpoints. httpMetrics may be nil.
func NewRouter(cfg config.Config, answerer ports.QuestionAnswerer, httpMetrics *metrics.HTTPServerMetrics) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:       cfg,
		answerer:  answerer,
		metrics:   httpMetrics,
		validator: validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	mux.HandleFunc("/openapi.yaml", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	// Traffic control guards only the ask endpoint; health checks and scrapes stay cheap.
	var guards []middleware
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := max(rt.cfg.APIRateLimitBurst, 1)
		guards = append(guards, rateLimit(rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst), rt.recordRejected))
	}
	if rt.cfg.APIMaxInFlight > 0 {
		guards = append(guards, backpressure(rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.recordRejected))
	}
	guards = append(guards, rt.validator.middleware)
	mux.Handle("/v1/ask", chain(http.HandlerFunc(rt.ask), guards...))

	outer := []middleware{withRequestID, withAccessLog}
	if rt.metrics != nil {
		outer = append(outer, func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
	}
	return chain(mux, outer...)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, _ *http.Request) {
	if !rt.answerer.Ready() {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCode(domain.ErrNotReady), "indexes are not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req domain.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
		return
	}

	result, err := rt.answerer.Run(r.Context(), req.Question, req.History)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("ask_failed", "request_id", requestIDFromContext(r.Context()), "status", status, "error", err)
		}
		writeError(w, status, domain.ErrorCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, domain.NewAskResponse(result))
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]string{"error": message}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

