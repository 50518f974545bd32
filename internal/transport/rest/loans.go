package rest

import (
	"net/http"

	"loantrack/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) generateSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	entries, err := h.schedules.Generate(r.Context(), loanID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "schedule generated", entries)
}

func (h *Handler) regenerateSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	entries, err := h.schedules.Regenerate(r.Context(), loanID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "schedule regenerated", entries)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	entries, err := h.schedules.Get(r.Context(), loanID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", entries)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	balance, err := h.payments.GetBalance(r.Context(), loanID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", balance)
}

func (h *Handler) getTracking(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	tracking, err := h.tracking.Get(r.Context(), loanID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", tracking)
}

func (h *Handler) recalculateLoan(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	tracking, err := h.tracking.Recalculate(r.Context(), loanID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "tracking recalculated", tracking)
}

func (h *Handler) recalculateAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.tracking.RecalculateAll(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "recalculation complete", map[string]interface{}{"recalculated": count})
}

func (h *Handler) recalculateInconsistent(w http.ResponseWriter, r *http.Request) {
	count, err := h.tracking.RecalculateInconsistent(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "recalculation complete", map[string]interface{}{"repaired": count})
}

func (h *Handler) exportStatement(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportID, err := h.statements.StartStatementExport(r.Context(), loanID, userID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	SuccessAccepted(w, "statement export queued", map[string]interface{}{"export_id": exportID})
}
