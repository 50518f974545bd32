package rest

import (
	"context"
	"net/http"
	"time"

	"loantrack/internal/domain"
	"loantrack/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ScheduleService interface {
	Generate(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error)
	Regenerate(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error)
	Get(ctx context.Context, loanID string) ([]domain.ScheduleEntry, error)
}

type PaymentService interface {
	Apply(ctx context.Context, in service.PaymentInput) (*domain.AllocationResult, error)
	Reverse(ctx context.Context, paymentID, reason string) (*domain.Payment, error)
	GetBalance(ctx context.Context, loanID string) (*domain.LoanBalance, error)
}

type TrackingService interface {
	Get(ctx context.Context, loanID string) (*domain.LoanTracking, error)
	Recalculate(ctx context.Context, loanID string) (*domain.LoanTracking, error)
	RecalculateAll(ctx context.Context) (int, error)
	RecalculateInconsistent(ctx context.Context) (int, error)
}

type SequenceService interface {
	Issue(ctx context.Context, prefix string) (string, error)
	Preview(ctx context.Context, prefix string) (string, error)
}

type StatementExporter interface {
	StartStatementExport(ctx context.Context, loanID string, userID int64) (string, error)
}

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]interface{}, error)
	GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error)
}

type Handler struct {
	schedules  ScheduleService
	payments   PaymentService
	tracking   TrackingService
	sequences  SequenceService
	statements StatementExporter
	exportList ExportListService
}

func NewHandler(
	schedules ScheduleService,
	payments PaymentService,
	tracking TrackingService,
	sequences SequenceService,
	statements StatementExporter,
	exportList ExportListService,
) *Handler {
	return &Handler{
		schedules:  schedules,
		payments:   payments,
		tracking:   tracking,
		sequences:  sequences,
		statements: statements,
		exportList: exportList,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		Success(w, "ok", nil)
	})

	r.Route("/loans/{loan_id}", func(r chi.Router) {
		r.Post("/schedule", h.generateSchedule)
		r.Put("/schedule", h.regenerateSchedule)
		r.Get("/schedule", h.getSchedule)
		r.Get("/balance", h.getBalance)
		r.Get("/tracking", h.getTracking)
		r.Post("/tracking/recalculate", h.recalculateLoan)
		r.Post("/statement", h.exportStatement)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.applyPayment)
		r.Post("/{payment_id}/reverse", h.reversePayment)
	})

	r.Route("/tracking", func(r chi.Router) {
		r.Post("/recalculate-all", h.recalculateAll)
		r.Post("/recalculate-inconsistent", h.recalculateInconsistent)
	})

	r.Route("/sequences/{prefix}", func(r chi.Router) {
		r.Post("/next", h.issueSequence)
		r.Get("/preview", h.previewSequence)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
	})

	return r
}
