package payrollhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"payslips/internal/domain/notifications"
	"payslips/internal/domain/payroll"
	"payslips/internal/domain/workbooks"
	"payslips/internal/platform/email"
	"payslips/internal/platform/jobs"
	"payslips/internal/platform/metrics"
	"payslips/internal/platform/spreadsheet"
	"payslips/internal/transport/http/api"
	"payslips/internal/transport/http/middleware"
	"payslips/internal/transport/http/shared"
)

// SessionDialer opens an authenticated relay session for one sender.
type SessionDialer interface {
	Open(ctx context.Context, creds email.Credentials) (payroll.Session, error)
}

type Handler struct {
	Workbooks      *workbooks.Service
	Pipeline       *payroll.Pipeline
	Orchestrator   *payroll.Orchestrator
	Jobs           *jobs.Service
	Dialer         SessionDialer
	Metrics        *metrics.Collector
	Notifier       *notifications.Service
	MaxUploadBytes int64
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workbooks", func(r chi.Router) {
		r.Post("/", h.handleUploadWorkbook)
		r.Get("/{workbookID}", h.handlePreviewWorkbook)
		r.Delete("/{workbookID}", h.handleDeleteWorkbook)
		r.Get("/{workbookID}/payslips/{row}.pdf", h.handleDownloadPayslip)
	})
	r.Route("/batches", func(r chi.Router) {
		r.Post("/", h.handleStartBatch)
		r.Post("/test", h.handleTestSend)
		r.Get("/{jobID}", h.handleGetBatch)
		r.Delete("/{jobID}", h.handleCancelBatch)
		r.Get("/{jobID}/report.csv", h.handleBatchReport)
	})
}

type workbookResponse struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	Records   int            `json:"records"`
	Months    []string       `json:"months"`
	Counts    map[string]int `json:"counts"`
	Columns   []string       `json:"columns"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

type lineView struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

type recordView struct {
	Row        int        `json:"row"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	EmployeeID string     `json:"employeeId,omitempty"`
	Department string     `json:"department,omitempty"`
	Position   string     `json:"position,omitempty"`
	Earnings   []lineView `json:"earnings"`
	Deductions []lineView `json:"deductions"`
	NetPay     string     `json:"netPay"`
	Warnings   []string   `json:"warnings,omitempty"`
	Issues     []string   `json:"issues,omitempty"`
	Filename   string     `json:"filename"`
}

func (h *Handler) handleUploadWorkbook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "expected a multipart upload within the size limit", middleware.GetRequestID(r.Context()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "file field is required", middleware.GetRequestID(r.Context()))
		return
	}
	defer file.Close()

	wb, err := h.Workbooks.Upload(file, header.Filename)
	if err != nil {
		failWorkbook(w, r, err)
		return
	}
	operator, _ := middleware.GetOperator(r.Context())
	slog.Info("workbook uploaded", "workbookId", wb.ID, "filename", wb.Filename, "records", wb.Sheet.Len(), "operator", operator)
	api.Created(w, toWorkbookResponse(wb), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreviewWorkbook(w http.ResponseWriter, r *http.Request) {
	workbookID := chi.URLParam(r, "workbookID")
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		wb, err := h.Workbooks.Get(workbookID)
		if err != nil {
			failWorkbook(w, r, err)
			return
		}
		api.Success(w, toWorkbookResponse(wb), middleware.GetRequestID(r.Context()))
		return
	}

	_, records, err := h.Workbooks.Records(workbookID, month)
	if err != nil {
		failWorkbook(w, r, err)
		return
	}
	page := shared.ParsePagination(r, 50, 500)
	start, end := page.Window(len(records))

	views := make([]recordView, 0, end-start)
	for _, rec := range records[start:end] {
		views = append(views, toRecordView(rec, month))
	}
	api.Success(w, map[string]any{
		"workbookId": workbookID,
		"month":      month,
		"total":      len(records),
		"limit":      page.Limit,
		"offset":     page.Offset,
		"records":    views,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteWorkbook(w http.ResponseWriter, r *http.Request) {
	h.Workbooks.Delete(chi.URLParam(r, "workbookID"))
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

// handleDownloadPayslip serves the same protected document an employee would
// receive. Unprotected bytes never leave the pipeline.
func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || month == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "row and month are required", middleware.GetRequestID(r.Context()))
		return
	}
	rec, err := h.Workbooks.Record(chi.URLParam(r, "workbookID"), month, row)
	if err != nil {
		failWorkbook(w, r, err)
		return
	}
	doc, err := h.Pipeline.Protected(rec, month)
	if err != nil {
		failPipeline(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+payroll.AttachmentName(rec.Name, month)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(doc.Len()))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(doc.Bytes()); err != nil {
		slog.Warn("payslip download write failed", "err", err)
	}
}

func toWorkbookResponse(wb workbooks.Workbook) workbookResponse {
	return workbookResponse{
		ID:        wb.ID,
		Filename:  wb.Filename,
		Records:   wb.Sheet.Len(),
		Months:    wb.Sheet.Months(),
		Counts:    wb.Sheet.MonthCounts(),
		Columns:   wb.Sheet.Columns,
		ExpiresAt: wb.ExpiresAt,
	}
}

func toRecordView(rec payroll.Record, month string) recordView {
	view := recordView{
		Row:        rec.Row,
		Name:       rec.Name,
		Email:      rec.Email,
		EmployeeID: rec.EmployeeID,
		Department: rec.Department,
		Position:   rec.Position,
		NetPay:     payroll.FormatCurrency(rec.NetSalary),
		Warnings:   rec.Warnings(),
		Filename:   payroll.AttachmentName(rec.Name, month),
	}
	for _, line := range rec.Earnings() {
		view.Earnings = append(view.Earnings, lineView{Label: line.Label, Amount: payroll.FormatCurrency(line.Amount)})
	}
	for _, line := range rec.DeductionLines() {
		view.Deductions = append(view.Deductions, lineView{Label: line.Label, Amount: payroll.FormatDeduction(line.Amount)})
	}
	if err := rec.Validate(); err != nil {
		view.Issues = strings.Split(err.Error(), "\n")
	}
	return view
}

func failWorkbook(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	var missing *payroll.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "missing_columns", err.Error(), map[string]any{"columns": missing.Columns}, reqID)
	case errors.Is(err, workbooks.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "workbook not found or expired", reqID)
	case errors.Is(err, payroll.ErrNoRecords):
		api.Fail(w, http.StatusNotFound, "no_records", err.Error(), reqID)
	case errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		api.Fail(w, http.StatusUnsupportedMediaType, "unsupported_format", "upload an .xlsx, .xls or .csv file", reqID)
	case errors.Is(err, spreadsheet.ErrEmptyWorkbook), errors.Is(err, payroll.ErrEmptySheet):
		api.Fail(w, http.StatusUnprocessableEntity, "empty_workbook", "the workbook has no header row", reqID)
	default:
		slog.Warn("workbook request failed", "err", err)
		api.Fail(w, http.StatusBadRequest, "invalid_workbook", "the workbook could not be read", reqID)
	}
}

func failPipeline(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	var stageErr *payroll.StageError
	stage := payroll.Stage("")
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}
	switch {
	case errors.Is(err, payroll.ErrMissingField), errors.Is(err, payroll.ErrInvalidField):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "invalid_record", err.Error(), map[string]any{"stage": stage}, reqID)
	case errors.Is(err, email.ErrSendFailed):
		api.FailWithDetails(w, http.StatusBadGateway, "send_failed", err.Error(), map[string]any{"stage": stage}, reqID)
	default:
		slog.Error("payslip pipeline failed", "stage", stage, "err", err)
		api.FailWithDetails(w, http.StatusInternalServerError, "payslip_failed", "failed to produce payslip", map[string]any{"stage": stage}, reqID)
	}
}
