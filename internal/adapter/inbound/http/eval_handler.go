package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/promptgate/gateway/internal/domain/policy"
	"github.com/promptgate/gateway/internal/eval"
)

// EvalHandler serves POST /v1/eval: the core gateway operation that runs a
// single prompt or response text through the policy pipeline.
type EvalHandler struct {
	evaluator *eval.Evaluator
	metrics   *Metrics
	maxBody   int64
}

// NewEvalHandler builds the /v1/eval handler. maxBody is a coarse envelope
// size cap independent of the policy document's hot-reloadable
// pii.max_bytes (enforced by the evaluator's payload guard, which maps to
// the spec-mandated 413); 0 means no explicit cap beyond http.Server's own
// limits.
func NewEvalHandler(evaluator *eval.Evaluator, metrics *Metrics, maxBody int64) *EvalHandler {
	return &EvalHandler{evaluator: evaluator, metrics: metrics, maxBody: maxBody}
}

func (h *EvalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := r.Body
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
		body = r.Body
	}

	var req policy.EvalRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Kind != policy.KindPrompt && req.Kind != policy.KindResponse {
		writeJSONError(w, http.StatusBadRequest, "kind must be \"prompt\" or \"response\"")
		return
	}

	resp, err := h.evaluator.Evaluate(req)
	if err != nil {
		if errors.Is(err, eval.ErrPayloadTooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.EvaluationsTotal.WithLabelValues(string(req.Kind), string(resp.Action)).Inc()
		if len(resp.Pii) > 0 {
			for _, p := range resp.Pii {
				h.metrics.PiiFindingsTotal.WithLabelValues(p.EntityType).Inc()
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
