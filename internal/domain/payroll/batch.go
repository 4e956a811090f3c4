package payroll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

type SessionOpenerFunc func(ctx context.Context) (Session, error)

func (f SessionOpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}

// BatchRun is one send of a pay period to every selected record.
type BatchRun struct {
	Period  string
	From    string
	Records []Record
}

type RecordResult struct {
	Row      int      `json:"row"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Status   string   `json:"status"`
	Stage    Stage    `json:"stage,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type BatchReport struct {
	Period     string         `json:"period"`
	Total      int            `json:"total"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Cancelled  bool           `json:"cancelled"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Results    []RecordResult `json:"results"`
}

// WasCancelled reports whether the batch stopped before every record was
// attempted.
func (r *BatchReport) WasCancelled() bool {
	return r != nil && r.Cancelled
}

func (r *BatchReport) add(res RecordResult) {
	switch res.Status {
	case StatusSent:
		r.Sent++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
	r.Results = append(r.Results, res)
}

type reportRow struct {
	Row      int    `csv:"row"`
	Name     string `csv:"name"`
	Email    string `csv:"email"`
	Status   string `csv:"status"`
	Stage    string `csv:"stage"`
	Error    string `csv:"error"`
	Warnings string `csv:"warnings"`
}

// WriteCSV writes one line per record result.
func (r *BatchReport) WriteCSV(w io.Writer) error {
	rows := make([]*reportRow, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, &reportRow{
			Row:      res.Row,
			Name:     res.Name,
			Email:    res.Email,
			Status:   res.Status,
			Stage:    string(res.Stage),
			Error:    res.Error,
			Warnings: strings.Join(res.Warnings, ";"),
		})
	}
	return gocsv.Marshal(rows, w)
}

type Progress struct {
	Done    int           `json:"done"`
	Total   int           `json:"total"`
	Current string        `json:"current,omitempty"`
	Last    *RecordResult `json:"last,omitempty"`
}

type Observer func(Progress)

type Orchestrator struct {
	Pipeline *Pipeline
	Now      func() time.Time
}

func NewOrchestrator(pipeline *Pipeline) *Orchestrator {
	return &Orchestrator{Pipeline: pipeline, Now: time.Now}
}

// Run processes run.Records one at a time over a single relay session. A
// failed record is reported and the batch moves on. Cancelling ctx stops the
// batch before the next record; the rest are reported as skipped.
func (o *Orchestrator) Run(ctx context.Context, run BatchRun, opener SessionOpener, observe Observer) *BatchReport {
	if observe == nil {
		observe = func(Progress) {}
	}
	report := &BatchReport{
		Period:    run.Period,
		Total:     len(run.Records),
		StartedAt: o.now(),
		Results:   make([]RecordResult, 0, len(run.Records)),
	}
	slog.Info("payslip batch started", "period", run.Period, "records", report.Total)

	var sess Session
	defer func() {
		if sess != nil {
			if err := sess.Close(); err != nil {
				slog.Warn("closing smtp session failed", "err", err)
			}
		}
	}()

	for i, rec := range run.Records {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			for _, rest := range run.Records[i:] {
				report.add(skipped(rest, err))
			}
			break
		}
		observe(Progress{Done: i, Total: report.Total, Current: rec.Name})

		res := o.deliver(ctx, &sess, opener, rec, run)
		report.add(res)
		if res.Status == StatusFailed {
			slog.Warn("payslip not delivered", "row", rec.Row, "stage", res.Stage, "err", res.Error)
		}
		observe(Progress{Done: i + 1, Total: report.Total, Last: &res})
	}

	report.FinishedAt = o.now()
	slog.Info("payslip batch finished",
		"period", run.Period,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"cancelled", report.Cancelled,
	)
	return report
}

func (o *Orchestrator) deliver(ctx context.Context, sess *Session, opener SessionOpener, rec Record, run BatchRun) RecordResult {
	res := RecordResult{
		Row:      rec.Row,
		Name:     rec.Name,
		Email:    rec.Email,
		Warnings: rec.Warnings(),
	}

	reuse := func(ctx context.Context) (Session, error) {
		if *sess != nil && !(*sess).Healthy() {
			_ = (*sess).Close()
			*sess = nil
		}
		if *sess == nil {
			opened, err := opener.Open(ctx)
			if err != nil {
				return nil, err
			}
			*sess = opened
		}
		return *sess, nil
	}

	if err := o.Pipeline.Deliver(ctx, rec, run.Period, run.From, reuse); err != nil {
		return failed(res, err)
	}
	res.Status = StatusSent
	return res
}

// SendTest delivers the first record's payslip to run.From instead of the
// employee, so the operator can check the result before a full batch.
func (o *Orchestrator) SendTest(ctx context.Context, run BatchRun, opener SessionOpener) (RecordResult, error) {
	if len(run.Records) == 0 {
		return RecordResult{}, ErrNoRecords
	}
	rec := run.Records[0]
	res := RecordResult{Row: rec.Row, Name: rec.Name, Email: run.From, Warnings: rec.Warnings()}

	msg, err := o.Pipeline.Prepare(rec, run.Period, run.From)
	if err != nil {
		return failed(res, err), err
	}
	msg.To = run.From
	msg.ToName = ""
	msg.Subject = "[TEST] " + msg.Subject

	sess, err := opener.Open(ctx)
	if err != nil {
		err = &StageError{Stage: StageTransport, Err: err}
		return failed(res, err), err
	}
	defer sess.Close()

	if err := sess.Send(ctx, msg); err != nil {
		err = &StageError{Stage: StageTransport, Err: err}
		return failed(res, err), err
	}
	res.Status = StatusSent
	return res, nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func failed(res RecordResult, err error) RecordResult {
	res.Status = StatusFailed
	res.Stage = stageOf(err)
	res.Error = err.Error()
	return res
}

func skipped(rec Record, cause error) RecordResult {
	reason := "batch cancelled"
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = "batch deadline exceeded"
	}
	return RecordResult{
		Row:      rec.Row,
		Name:     rec.Name,
		Email:    rec.Email,
		Status:   StatusSkipped,
		Error:    reason,
		Warnings: rec.Warnings(),
	}
}
