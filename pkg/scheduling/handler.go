package scheduling

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/austery/asr-runner/pkg/envconfig"
	"github.com/austery/asr-runner/pkg/inference/registry"
	"github.com/austery/asr-runner/pkg/logging"
)

// Handler wires the Scheduler into the OpenAI-compatible HTTP surface.
type Handler struct {
	log       *slog.Logger
	scheduler *Scheduler
	registry  *registry.Registry
}

// NewHandler returns a Handler; call RegisterRoutes to attach its endpoints.
func NewHandler(log *slog.Logger, scheduler *Scheduler, reg *registry.Registry) *Handler {
	h := &Handler{log: logging.WithComponent(log, "handler"), scheduler: scheduler, registry: reg}
	return h
}

// RegisterRoutes attaches this Handler's endpoints to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/audio/transcriptions", h.handleTranscribe)
	mux.HandleFunc("GET /v1/models", h.handleModels)
	mux.HandleFunc("GET /v1/models/current", h.handleCurrentModel)
	mux.HandleFunc("GET /health", h.handleHealth)
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	log := logging.WithRequest(h.log, requestID)

	maxUpload := envconfig.MaxUploadSizeMB()
	if err := r.ParseMultipartForm(int64(maxUpload) * 1024 * 1024); err != nil {
		writeError(w, log, newError(KindInvalidRequest, "failed to parse multipart upload", err), requestID)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, log, newError(KindInvalidRequest, "missing required 'file' field", err), requestID)
		return
	}
	defer file.Close()

	var model *string
	if m := r.FormValue("model"); m != "" {
		model = &m
	}

	req := Request{
		File:          file,
		FileHeader:    header,
		Model:         model,
		Language:      firstNonEmpty(r.FormValue("language"), "auto"),
		OutputFormat:  r.FormValue("output_format"),
		ResponseFmt:   r.FormValue("response_format"),
		WithTimestamp: ParseWithTimestamp(r.FormValue("with_timestamp")),
		MaxUploadMB:   maxUpload,
	}

	outcome, err := h.scheduler.Admit(req)
	if err != nil {
		writeError(w, log, err, requestID)
		return
	}
	if outcome.Err != nil {
		writeError(w, log, outcome.Err, requestID)
		return
	}

	h.writeOutcome(w, outcome)
}

func (h *Handler) writeOutcome(w http.ResponseWriter, outcome Outcome) {
	format := outcome.Format
	switch format {
	case FormatSRT:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(buildSRT(outcome.Result)))
	default:
		includeSegments := format == FormatJSON
		resp := buildJSONResponse(outcome, outcome.ReceivedAt, includeSegments)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.ListAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  specs,
		"current": h.scheduler.CurrentSpec().Alias,
	})
}

func (h *Handler) handleCurrentModel(w http.ResponseWriter, r *http.Request) {
	spec := h.scheduler.CurrentSpec()
	writeJSON(w, http.StatusOK, map[string]any{
		"alias":        spec.Alias,
		"model_id":     spec.ModelID,
		"engine_type":  spec.EngineType,
		"capabilities": spec.Capabilities,
		"queue_depth":  h.scheduler.QueueDepth(),
		"queue_cap":    h.scheduler.QueueCapacity(),
		"degraded":     h.scheduler.Degraded(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// writeError renders a scheduling.Error as its mapped HTTP status. Every
// Error's Message is a hand-authored, safe-to-expose phrase (never the raw
// Cause); 5xx kinds additionally log Cause at error level so the operator
// retains the internal detail that the client never sees.
func writeError(w http.ResponseWriter, log *slog.Logger, err error, requestID string) {
	se, ok := err.(*Error)
	if !ok {
		se = newError(KindBackendInternal, "internal error", err)
	}

	if !se.Exposed() {
		log.Error("request failed", "kind", se.Kind, "err", se.Cause, "request_id", requestID)
	}
	writeJSON(w, se.HTTPStatus(), map[string]any{"error": se.Message, "request_id": requestID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
