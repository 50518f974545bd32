package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"loantrack/internal/clients"
	"loantrack/internal/domain"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ExportStatus is the redis-backed record of a statement export job.
type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	LoanID   string    `json:"loan_id"`
	UserID   int64     `json:"user_id"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute
)

// ExportService builds xlsx loan statements (amortization schedule plus
// payment history) in the background, reporting progress over the hub and
// keeping job state in redis.
type ExportService struct {
	store Store
	redis *clients.RedisClient
	s3    *clients.S3Client
	files *clients.StorageClient
	ws    *clients.WebSocketClient
}

func NewExportService(
	store Store,
	redis *clients.RedisClient,
	s3 *clients.S3Client,
	files *clients.StorageClient,
	ws *clients.WebSocketClient,
) *ExportService {
	return &ExportService{store: store, redis: redis, s3: s3, files: files, ws: ws}
}

func (s *ExportService) saveExportStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

// StartStatementExport validates the loan, registers the job and kicks off
// the background build. Returns the export ID immediately.
func (s *ExportService) StartStatementExport(ctx context.Context, loanID string, userID int64) (string, error) {
	if _, err := s.store.GetLoanTerms(ctx, loanID); err != nil {
		return "", err
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:     exportID,
		Type:    "statement",
		LoanID:  loanID,
		UserID:  userID,
		Created: now,
	}
	_ = s.saveExportStatus(ctx, status)

	go s.runStatementExport(context.Background(), exportID, loanID, userID, now)

	return exportID, nil
}

func (s *ExportService) runStatementExport(ctx context.Context, exportID, loanID string, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:     exportID,
		Type:    "statement",
		LoanID:  loanID,
		UserID:  userID,
		Created: createdAt,
	}

	fail := func(err error) {
		errStr := err.Error()
		log.Printf("[export] %s: %v", exportID, err)
		status.Error = &errStr
		status.Progress = 100
		_ = s.saveExportStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
		}
	}

	terms, err := s.store.GetLoanTerms(ctx, loanID)
	if err != nil {
		fail(err)
		return
	}
	entries, err := s.store.ListSchedule(ctx, loanID)
	if err != nil {
		fail(err)
		return
	}
	payments, err := s.store.ListPayments(ctx, loanID)
	if err != nil {
		fail(err)
		return
	}

	status.Progress = 50
	_ = s.saveExportStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 50, "generating")
	}

	data, err := buildStatementWorkbook(terms, entries, payments)
	if err != nil {
		fail(err)
		return
	}

	status.Progress = 95
	_ = s.saveExportStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	fileName := fmt.Sprintf("statement_%s_%s.xlsx", terms.Number, time.Now().Format("20060102_150405"))
	url, err := s.saveStatement(ctx, fileName, data)
	if err != nil {
		fail(fmt.Errorf("save statement failed: %w", err))
		return
	}

	status.FileURL = &url
	status.Progress = 100
	_ = s.saveExportStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

// saveStatement prefers object storage with a presigned URL and falls back
// to the local file store when no s3 client is configured.
func (s *ExportService) saveStatement(ctx context.Context, fileName string, data []byte) (string, error) {
	if s.s3 != nil {
		key, err := s.s3.UploadXLSX(ctx, fileName, data)
		if err != nil {
			return "", err
		}
		return s.s3.GetTemporaryURL(ctx, key, exportTTL)
	}
	if s.files == nil {
		return "", errors.New("no statement storage configured")
	}
	saved, err := s.files.Save(ctx, fileName, data)
	if err != nil {
		return "", err
	}
	return s.files.GetURL(saved), nil
}

var scheduleHeaders = []string{
	"No", "Due Date", "Grace Expiry", "Principal Due", "Interest Due",
	"Fee Due", "Penalty Due", "Paid", "Outstanding", "Status", "Late",
}

var paymentHeaders = []string{
	"Payment Date", "Amount", "Principal", "Interest", "Fees", "Penalty",
	"Method", "Reference", "Status", "Late", "Days Late",
}

func buildStatementWorkbook(terms *domain.LoanTerms, entries []domain.ScheduleEntry, payments []domain.Payment) ([]byte, error) {
	f := excelize.NewFile()

	sheet := "Schedule"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: "loantrack", Title: terms.Number})

	for i, h := range scheduleHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for row, e := range entries {
		values := []any{
			e.Number,
			e.DueDate.Format("2006-01-02"),
			e.GraceExpiry.Format("2006-01-02"),
			e.PrincipalDue.String(),
			e.InterestDue.String(),
			e.FeeDue.String(),
			e.PenaltyDue.String(),
			e.PaidAmount.String(),
			e.Outstanding.String(),
			string(e.Status),
			e.IsLate,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	paySheet := "Payments"
	if _, err := f.NewSheet(paySheet); err != nil {
		return nil, err
	}
	for i, h := range paymentHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(paySheet, cell, h)
	}
	for row, p := range payments {
		values := []any{
			p.PaymentDate.Format("2006-01-02"),
			p.Amount.String(),
			p.PrincipalPaid.String(),
			p.InterestPaid.String(),
			p.FeesPaid.String(),
			p.PenaltyPaid.String(),
			p.Method,
			p.Reference,
			string(p.Status),
			p.IsLate,
			p.DaysLate,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(paySheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetExports lists the caller's export jobs, newest first.
func (s *ExportService) GetExports(ctx context.Context, userID int64) ([]interface{}, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		if status.UserID == userID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	exports := make([]interface{}, 0, len(statuses))
	for _, status := range statuses {
		exports = append(exports, exportView(status))
	}
	return exports, nil
}

func (s *ExportService) GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	if status.UserID != userID {
		return nil, domain.ErrNotFound
	}

	return exportView(status), nil
}

func exportView(status ExportStatus) map[string]interface{} {
	return map[string]interface{}{
		"key":        status.Key,
		"type":       status.Type,
		"loan_id":    status.LoanID,
		"user_id":    status.UserID,
		"progress":   status.Progress,
		"file_url":   status.FileURL,
		"error":      status.Error,
		"created_at": status.Created.Format(time.RFC3339),
	}
}
