// Package routes wires the v1 endpoints onto the router.
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	v1handlers "github.com/marginote/marginote/internal/api/v1/handlers"
	v1mware "github.com/marginote/marginote/internal/api/v1/middleware"
	"github.com/marginote/marginote/internal/config"
	"github.com/marginote/marginote/internal/services/session"
)

// RegisterV1Routes mounts the v1 API under /api/v1. Token exchange is public,
// everything else requires a valid bearer token.
func RegisterV1Routes(router *mux.Router, cfg *config.Config, h *v1handlers.Handlers, sessions *session.Service) {
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Public v1 routes (no auth required)
	v1.Handle("/auth/token",
		v1mware.RateLimit(cfg.RateLimit("auth_token"), "auth_token")(http.HandlerFunc(h.HandleToken)),
	).Methods("POST")

	// Protected v1 routes (require auth)
	protected := v1.NewRoute().Subrouter()
	protected.Use(v1mware.RequireAuth(sessions))

	protected.Handle("/ask",
		v1mware.RateLimit(cfg.RateLimit("ask"), "ask")(http.HandlerFunc(h.HandleAsk)),
	).Methods("POST")

	crud := protected.NewRoute().Subrouter()
	crud.Use(v1mware.RateLimit(cfg.RateLimit("crud"), "crud"))

	crud.HandleFunc("/series", h.HandleListSeries).Methods("GET")
	crud.HandleFunc("/series", h.HandleCreateSeries).Methods("POST")
	crud.HandleFunc("/series/{id}", h.HandleGetSeries).Methods("GET")
	crud.HandleFunc("/series/{id}", h.HandleDeleteSeries).Methods("DELETE")
	crud.HandleFunc("/series/{id}/books", h.HandleListBooks).Methods("GET")

	crud.HandleFunc("/books", h.HandleCreateBook).Methods("POST")
	crud.HandleFunc("/books/{id}", h.HandleGetBook).Methods("GET")
	crud.HandleFunc("/books/{id}", h.HandleDeleteBook).Methods("DELETE")
	crud.HandleFunc("/books/{id}/chapters", h.HandleListChapters).Methods("GET")

	crud.HandleFunc("/chapters", h.HandleCreateChapter).Methods("POST")
	crud.HandleFunc("/chapters/{id}", h.HandleGetChapter).Methods("GET")
	crud.HandleFunc("/chapters/{id}", h.HandleDeleteChapter).Methods("DELETE")
	crud.HandleFunc("/chapters/{id}/notes", h.HandleListNotes).Methods("GET")

	crud.HandleFunc("/notes", h.HandleCreateNote).Methods("POST")
	crud.HandleFunc("/notes/{id}", h.HandleGetNote).Methods("GET")
	crud.HandleFunc("/notes/{id}", h.HandleUpdateNote).Methods("PUT")
	crud.HandleFunc("/notes/{id}", h.HandleDeleteNote).Methods("DELETE")
}
