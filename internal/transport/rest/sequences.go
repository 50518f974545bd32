package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) issueSequence(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	if prefix == "" {
		ErrorBadRequest(w, "prefix is required")
		return
	}

	id, err := h.sequences.Issue(r.Context(), prefix)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "sequence issued", map[string]interface{}{"id": id})
}

func (h *Handler) previewSequence(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	if prefix == "" {
		ErrorBadRequest(w, "prefix is required")
		return
	}

	id, err := h.sequences.Preview(r.Context(), prefix)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", map[string]interface{}{"next_id": id})
}
