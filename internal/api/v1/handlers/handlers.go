// Package handlers implements the v1 API endpoints.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/marginote/marginote/internal/services/ask"
	"github.com/marginote/marginote/internal/services/session"
	"github.com/marginote/marginote/internal/store"
	"github.com/marginote/marginote/pkg/httpext"
)

// Handlers bundles the services the endpoints depend on. One validator
// instance is shared: it caches struct metadata.
type Handlers struct {
	store    *store.Store
	ask      *ask.Service
	sessions *session.Service
	validate *validator.Validate
}

func New(st *store.Store, askService *ask.Service, sessions *session.Service) *Handlers {
	return &Handlers{
		store:    st,
		ask:      askService,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// pathID extracts the numeric {id} route variable.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// pageParams reads limit/offset query parameters with defaults.
func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

// storeError maps store failures onto API statuses.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httpext.JsonError(w, "Not found", http.StatusNotFound)
		return
	}
	httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
}

// page is the envelope for list endpoints.
type page struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
