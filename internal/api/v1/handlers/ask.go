package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/marginote/marginote/internal/llm"
	"github.com/marginote/marginote/internal/services/ask"
	"github.com/marginote/marginote/pkg/httpext"
)

type askRequest struct {
	Question string `json:"question" validate:"required"`
	SeriesID *int64 `json:"series_id,omitempty"`
	BookID   *int64 `json:"book_id,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// HandleAsk answers a question from the reader's notes. Classified client
// errors map onto their transport status with safe user-facing text; nothing
// upstream-internal leaks to the response.
func (h *Handlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed ask request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpext.JsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	resp, err := h.ask.Ask(r.Context(), req.Question, ask.Scope{
		SeriesID: req.SeriesID,
		BookID:   req.BookID,
	}, req.Locale)
	if err != nil {
		if cerr, ok := llm.AsError(err); ok {
			httpext.JsonError(w, cerr.UserMessage(), cerr.HTTPStatus())
			return
		}
		log.Error().Err(err).Msg("Ask failed outside the completion client")
		httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	httpext.JsonOK(w, http.StatusOK, resp)
}
