package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/marginote/marginote/pkg/httpext"
)

type createNoteRequest struct {
	ChapterID int64  `json:"chapter_id" validate:"required"`
	Content   string `json:"content" validate:"required,max=10000"`
}

func (h *Handlers) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpext.JsonError(w, "chapter_id and content are required", http.StatusBadRequest)
		return
	}

	note, err := h.store.CreateNote(r.Context(), req.ChapterID, req.Content)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusCreated, note)
}

func (h *Handlers) HandleGetNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	note, err := h.store.GetNote(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, note)
}

type updateNoteRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

func (h *Handlers) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpext.JsonError(w, "content is required", http.StatusBadRequest)
		return
	}

	note, err := h.store.UpdateNote(r.Context(), id, req.Content)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, note)
}

func (h *Handlers) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	chapterID, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	limit, offset := pageParams(r)
	items, total, err := h.store.ListNotes(r.Context(), chapterID, limit, offset)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handlers) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteNote(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
