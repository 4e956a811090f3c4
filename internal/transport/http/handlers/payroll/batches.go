package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"payslips/internal/domain/payroll"
	"payslips/internal/platform/email"
	"payslips/internal/platform/jobs"
	"payslips/internal/transport/http/api"
	"payslips/internal/transport/http/middleware"
	"payslips/internal/transport/http/shared"
)

const (
	jobTypeBatch    = "payslip_batch"
	jobTypeTestSend = "payslip_test_send"
)

type batchRequest struct {
	WorkbookID     string `json:"workbookId"`
	Month          string `json:"month"`
	SenderEmail    string `json:"senderEmail"`
	SenderPassword string `json:"senderPassword"`
}

func (h *Handler) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	run, creds, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	opener := h.opener(creds)

	id, err := h.Jobs.Enqueue(jobTypeBatch, func(ctx context.Context, update func(any)) (any, error) {
		if h.Metrics != nil {
			h.Metrics.BatchStarted()
		}
		report := h.Orchestrator.Run(ctx, run, opener, func(p payroll.Progress) { update(p) })
		if h.Metrics != nil {
			h.Metrics.BatchFinished(report.Sent, report.Failed, report.Skipped)
		}
		if err := h.Notifier.NotifyBatch(ctx, opener, report, run.From); err != nil {
			slog.Warn("batch summary email failed", "period", run.Period, "err", err)
		}
		return report, nil
	})
	if errors.Is(err, jobs.ErrQueueFull) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", "too many batches are waiting, try again later", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "batch_failed", "failed to start batch", middleware.GetRequestID(r.Context()))
		return
	}

	user, _ := middleware.GetOperator(r.Context())
	slog.Info("payslip batch queued", "jobId", id, "operator", user, "period", run.Period, "records", len(run.Records))
	api.Accepted(w, map[string]any{
		"id":     id,
		"status": jobs.StatusQueued,
		"total":  len(run.Records),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTestSend(w http.ResponseWriter, r *http.Request) {
	run, creds, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	opener := h.opener(creds)

	var sendErr error
	job, _ := h.Jobs.RunNow(r.Context(), jobTypeTestSend, func(ctx context.Context, _ func(any)) (any, error) {
		res, err := h.Orchestrator.SendTest(ctx, run, opener)
		sendErr = err
		return res, nil
	})
	slog.Info("test payslip requested", "jobId", job.ID, "period", run.Period)
	if sendErr != nil {
		failPipeline(w, r, sendErr)
		return
	}
	api.Success(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "batch not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Cancel(chi.URLParam(r, "jobID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "batch not found", middleware.GetRequestID(r.Context()))
		return
	}
	slog.Info("payslip batch cancel requested", "jobId", job.ID, "status", job.Status)
	api.Success(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBatchReport(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "batch not found", middleware.GetRequestID(r.Context()))
		return
	}
	report, ok := job.Result.(*payroll.BatchReport)
	if !job.Finished() || !ok {
		api.Fail(w, http.StatusConflict, "not_finished", "the batch has not produced a report yet", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="payslip-report-`+job.ID+`.csv"`)
	if err := report.WriteCSV(w); err != nil {
		slog.Warn("batch report write failed", "jobId", job.ID, "err", err)
	}
}

// decodeBatch validates the request and snapshots the selected records. The
// sender password stays in the returned credentials and is never logged.
func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) (payroll.BatchRun, email.Credentials, bool) {
	reqID := middleware.GetRequestID(r.Context())
	var payload batchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return payroll.BatchRun{}, email.Credentials{}, false
	}
	payload.SenderEmail = strings.TrimSpace(payload.SenderEmail)
	payload.Month = strings.TrimSpace(payload.Month)

	v := shared.NewValidator()
	v.Required("workbookId", payload.WorkbookID, "is required")
	v.Required("month", payload.Month, "is required")
	v.Required("senderEmail", payload.SenderEmail, "is required")
	v.Email("senderEmail", payload.SenderEmail)
	v.Required("senderPassword", payload.SenderPassword, "is required")
	if v.Reject(w, reqID) {
		return payroll.BatchRun{}, email.Credentials{}, false
	}

	_, records, err := h.Workbooks.Records(payload.WorkbookID, payload.Month)
	if err != nil {
		failWorkbook(w, r, err)
		return payroll.BatchRun{}, email.Credentials{}, false
	}
	run := payroll.BatchRun{
		Period:  payload.Month,
		From:    payload.SenderEmail,
		Records: append([]payroll.Record(nil), records...),
	}
	return run, email.Credentials{Username: payload.SenderEmail, Password: payload.SenderPassword}, true
}

func (h *Handler) opener(creds email.Credentials) payroll.SessionOpener {
	return payroll.SessionOpenerFunc(func(ctx context.Context) (payroll.Session, error) {
		return h.Dialer.Open(ctx, creds)
	})
}
