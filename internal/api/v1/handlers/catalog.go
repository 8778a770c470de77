package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/marginote/marginote/pkg/httpext"
)

type createSeriesRequest struct {
	Title  string `json:"title" validate:"required,max=500"`
	Author string `json:"author" validate:"max=500"`
}

func (h *Handlers) HandleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req createSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpext.JsonError(w, "title is required", http.StatusBadRequest)
		return
	}

	series, err := h.store.CreateSeries(r.Context(), req.Title, req.Author)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create series")
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusCreated, series)
}

func (h *Handlers) HandleListSeries(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	items, total, err := h.store.ListSeries(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list series")
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handlers) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	series, err := h.store.GetSeries(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, series)
}

func (h *Handlers) HandleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteSeries(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBookRequest struct {
	SeriesID int64  `json:"series_id" validate:"required"`
	Title    string `json:"title" validate:"required,max=500"`
	Position int    `json:"position" validate:"gte=0"`
}

func (h *Handlers) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpext.JsonError(w, "series_id and title are required", http.StatusBadRequest)
		return
	}

	book, err := h.store.CreateBook(r.Context(), req.SeriesID, req.Title, req.Position)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusCreated, book)
}

func (h *Handlers) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	seriesID, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	limit, offset := pageParams(r)
	items, total, err := h.store.ListBooks(r.Context(), seriesID, limit, offset)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handlers) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	book, err := h.store.GetBook(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, book)
}

func (h *Handlers) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteBook(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createChapterRequest struct {
	BookID int64  `json:"book_id" validate:"required"`
	Title  string `json:"title" validate:"required,max=500"`
	Number int    `json:"number" validate:"gte=0"`
}

func (h *Handlers) HandleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var req createChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpext.JsonError(w, "book_id and title are required", http.StatusBadRequest)
		return
	}

	chapter, err := h.store.CreateChapter(r.Context(), req.BookID, req.Title, req.Number)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusCreated, chapter)
}

func (h *Handlers) HandleListChapters(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	limit, offset := pageParams(r)
	items, total, err := h.store.ListChapters(r.Context(), bookID, limit, offset)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handlers) HandleGetChapter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	chapter, err := h.store.GetChapter(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httpext.JsonOK(w, http.StatusOK, chapter)
}

func (h *Handlers) HandleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpext.JsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteChapter(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
