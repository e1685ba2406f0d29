// Package admin implements the thin REST collaborator in front of C1:
// GET/POST /admin/routes and DELETE /admin/routes/{id}, translating HTTP
// into Store calls and nothing more.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/neuragate/neuragate/internal/gatewayerr"
	"github.com/neuragate/neuragate/internal/routing"
)

// Store is the subset of routestore.Store the admin API needs.
type Store interface {
	Put(ctx context.Context, def routing.Definition) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) []routing.Definition
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/admin/routes")
	id = strings.Trim(id, "/")

	switch {
	case req.Method == http.MethodGet && id == "":
		h.list(w, req)
	case req.Method == http.MethodPost && id == "":
		h.put(w, req)
	case req.Method == http.MethodDelete && id != "":
		h.delete(w, req, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) list(w http.ResponseWriter, req *http.Request) {
	defs := h.store.LoadAll(req.Context())
	writeJSON(w, http.StatusOK, defs)
}

func (h *Handler) put(w http.ResponseWriter, req *http.Request) {
	var def routing.Definition
	if err := json.NewDecoder(req.Body).Decode(&def); err != nil {
		http.Error(w, "invalid route definition", http.StatusBadRequest)
		return
	}

	if err := h.store.Put(req.Context(), def); err != nil {
		writeError(w, err)
		return
	}
	log.WithField("route_id", def.ID).Info("route definition upserted")
	writeJSON(w, http.StatusOK, def)
}

func (h *Handler) delete(w http.ResponseWriter, req *http.Request, id string) {
	if err := h.store.Delete(req.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	log.WithField("route_id", id).Info("route definition deleted")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := gatewayerr.Status(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
