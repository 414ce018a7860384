package handlers

import (
	"errors"
	"net/http"
	"strings"

	"responseready/intel"
	"responseready/policy"
	"responseready/service"

	"github.com/rs/zerolog"
)

type IntelHandler struct {
	svc      *service.Service
	analyzer intel.Analyzer
	speech   intel.Synthesizer
	log      zerolog.Logger
}

func NewIntelHandler(svc *service.Service, analyzer intel.Analyzer, speech intel.Synthesizer, logger zerolog.Logger) *IntelHandler {
	return &IntelHandler{
		svc:      svc,
		analyzer: analyzer,
		speech:   speech,
		log:      logger.With().Str("handler", "intel").Logger(),
	}
}

type IntelRequest struct {
	Text string `json:"text"`
}

func (h *IntelHandler) readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := currentUser(w, r)
	if !ok {
		return "", false
	}
	if err := h.svc.Authorize(caller, policy.AnalyzeComms); err != nil {
		handleServiceError(w, h.log, err, "intel")
		return "", false
	}

	var req IntelRequest
	if !decodeJSON(w, r, &req) {
		return "", false
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, "Text is required", http.StatusBadRequest)
		return "", false
	}
	return text, true
}

func (h *IntelHandler) unavailable(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, intel.ErrUnavailable) {
		h.log.Warn().Err(err).Str("action", action).Msg("⚠️ Intel service unavailable")
		writeError(w, "Analysis is unavailable right now", http.StatusServiceUnavailable)
		return
	}
	handleServiceError(w, h.log, err, action)
}

// Summarize analyzes a radio transcript
func (h *IntelHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readText(w, r)
	if !ok {
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), text)
	if err != nil {
		h.unavailable(w, err, "summarize")
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// Speech synthesizes audio for a piece of text
func (h *IntelHandler) Speech(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readText(w, r)
	if !ok {
		return
	}

	speech, err := h.speech.Synthesize(r.Context(), text)
	if err != nil {
		h.unavailable(w, err, "speech")
		return
	}

	writeJSON(w, http.StatusOK, speech)
}
