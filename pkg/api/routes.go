package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sketchlab/streamsketch/pkg/keeper"
	"github.com/sketchlab/streamsketch/pkg/storage"
)

type JSON map[string]any

func RegisterRoutes(r *mux.Router, registry *keeper.Registry, store *storage.Store) {
	h := &Handler{registry: registry, store: store}

	// Core endpoints
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/sketches", h.PostCreateSketch).Methods(http.MethodPost)
	r.HandleFunc("/sketches", h.GetSketches).Methods(http.MethodGet)
	r.HandleFunc("/sketches/union", h.PostUnion).Methods(http.MethodPost)
	r.HandleFunc("/sketches/{name}", h.GetSketch).Methods(http.MethodGet)
	r.HandleFunc("/sketches/{name}", h.DeleteSketch).Methods(http.MethodDelete)
	r.HandleFunc("/sketches/{name}/update", h.PostUpdate).Methods(http.MethodPost)
	r.HandleFunc("/sketches/{name}/query", h.GetQuery).Methods(http.MethodGet)

	// Persistence endpoints
	r.HandleFunc("/sketches/{name}/save", h.PostSave).Methods(http.MethodPost)
	r.HandleFunc("/sketches/{name}/load", h.PostLoad).Methods(http.MethodPost)

	// Advisory endpoints
	r.HandleFunc("/advice/bloom", h.GetBloomAdvice).Methods(http.MethodGet)

	// Metrics
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

type Handler struct {
	registry *keeper.Registry
	store    *storage.Store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError tags the response with a request id so server logs and
// client reports can be correlated.
func writeError(w http.ResponseWriter, status int, err error) {
	id := uuid.NewString()
	log.Printf("request %s failed: %v", id, err)
	writeJSON(w, status, JSON{"error": err.Error(), "request_id": id})
}
