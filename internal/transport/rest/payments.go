package rest

import (
	"net/http"

	"loantrack/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	req, err := ValidatePaymentRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	result, err := h.payments.Apply(r.Context(), service.PaymentInput{
		LoanID:      req.LoanID,
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
		Method:      req.Method,
		Reference:   req.Reference,
		Notes:       req.Notes,
	})
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "payment recorded", result)
}

func (h *Handler) reversePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "payment_id")
	if paymentID == "" {
		ErrorBadRequest(w, "payment_id is required")
		return
	}

	req, err := ValidateReverseRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	payment, err := h.payments.Reverse(r.Context(), paymentID, req.Reason)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "payment reversed", payment)
}
