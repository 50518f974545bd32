package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type PaymentRequest struct {
	LoanID      string          `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Method      string          `json:"method,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

type rawPaymentRequest struct {
	LoanID      interface{} `json:"loan_id"`
	Amount      interface{} `json:"amount"`
	PaymentDate interface{} `json:"payment_date"`
	Method      interface{} `json:"method"`
	Reference   interface{} `json:"reference"`
	Notes       interface{} `json:"notes"`
}

// ValidatePaymentRequest parses and coerces JSON input for a payment.
// Amounts arrive as numbers or strings depending on the caller, so both are
// accepted.
func ValidatePaymentRequest(r *http.Request) (*PaymentRequest, error) {
	var raw rawPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	loanID, err := toStringPtr(raw.LoanID)
	if err != nil || loanID == nil {
		return nil, &ValidationError{Field: "loan_id", Message: "loan_id is required"}
	}

	amount, err := toDecimal(raw.Amount)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Message: "amount must be a positive number"}
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "amount must be a positive number"}
	}

	paymentDate, err := toDatePtr(raw.PaymentDate)
	if err != nil || paymentDate == nil {
		return nil, &ValidationError{Field: "payment_date", Message: "payment_date must be YYYY-MM-DD"}
	}

	method, err := toStringPtr(raw.Method)
	if err != nil {
		return nil, &ValidationError{Field: "method", Message: "method must be string or empty"}
	}
	reference, err := toStringPtr(raw.Reference)
	if err != nil {
		return nil, &ValidationError{Field: "reference", Message: "reference must be string or empty"}
	}
	notes, err := toStringPtr(raw.Notes)
	if err != nil {
		return nil, &ValidationError{Field: "notes", Message: "notes must be string or empty"}
	}

	req := &PaymentRequest{
		LoanID:      *loanID,
		Amount:      amount,
		PaymentDate: *paymentDate,
	}
	if method != nil {
		req.Method = *method
	}
	if reference != nil {
		req.Reference = *reference
	}
	if notes != nil {
		req.Notes = *notes
	}
	return req, nil
}

type ReverseRequest struct {
	Reason string `json:"reason"`
}

func ValidateReverseRequest(r *http.Request) (*ReverseRequest, error) {
	var raw struct {
		Reason interface{} `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}
	reason, err := toStringPtr(raw.Reason)
	if err != nil || reason == nil {
		return nil, &ValidationError{Field: "reason", Message: "reason is required"}
	}
	return &ReverseRequest{Reason: *reason}, nil
}

func toStringPtr(v interface{}) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &t, nil
	case float64:
		i := int64(t)
		s := strconv.FormatInt(i, 10)
		return &s, nil
	default:
		return nil, &ValidationError{Message: "invalid type for string field"}
	}
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, &ValidationError{Message: "value is required"}
	case float64:
		return decimal.NewFromFloat(t), nil
	case string:
		if t == "" {
			return decimal.Zero, &ValidationError{Message: "value is required"}
		}
		return decimal.NewFromString(t)
	default:
		return decimal.Zero, &ValidationError{Message: "invalid type for numeric field"}
	}
}

func toDatePtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, err
			}
		}
		return &parsed, nil
	default:
		return nil, &ValidationError{Message: "invalid type for date field"}
	}
}
