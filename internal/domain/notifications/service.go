package notifications

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"payslips/internal/domain/payroll"
	"payslips/internal/platform/email"
)

const summaryTimeout = 30 * time.Second

// Service mails the operator a summary of each finished batch with the
// per-record report attached.
type Service struct {
	OrgName string
	Enabled bool
}

func New(orgName string, enabled bool) *Service {
	return &Service{OrgName: orgName, Enabled: enabled}
}

func (s *Service) BatchSummary(report *payroll.BatchReport, from string) (*email.Message, error) {
	var csv bytes.Buffer
	if err := report.WriteCSV(&csv); err != nil {
		return nil, fmt.Errorf("render batch report: %w", err)
	}

	outcome := "completed"
	if report.Cancelled {
		outcome = "was cancelled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The payslip run for %s %s.\n\n", report.Period, outcome)
	fmt.Fprintf(&b, "Total:   %d\n", report.Total)
	fmt.Fprintf(&b, "Sent:    %d\n", report.Sent)
	fmt.Fprintf(&b, "Failed:  %d\n", report.Failed)
	fmt.Fprintf(&b, "Skipped: %d\n\n", report.Skipped)
	for _, res := range report.Results {
		if res.Status == payroll.StatusFailed {
			fmt.Fprintf(&b, "Row %d %s <%s>: %s\n", res.Row, res.Name, res.Email, res.Error)
		}
	}
	b.WriteString("\nThe attached report lists every record.\n")

	return &email.Message{
		From:    from,
		To:      from,
		Subject: fmt.Sprintf("Payslip run summary for %s - %s", report.Period, s.OrgName),
		Body:    b.String(),
		Attachments: []email.Attachment{{
			Filename:    "payslip-report-" + strings.Join(strings.Fields(report.Period), "_") + ".csv",
			ContentType: "text/csv",
			Data:        csv.Bytes(),
		}},
	}, nil
}

// NotifyBatch sends the summary on a fresh session. It still runs when the
// batch itself was cancelled.
func (s *Service) NotifyBatch(ctx context.Context, opener payroll.SessionOpener, report *payroll.BatchReport, from string) error {
	if s == nil || !s.Enabled || report == nil || report.Total == 0 {
		return nil
	}
	msg, err := s.BatchSummary(report, from)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
	defer cancel()
	sess, err := opener.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Debug("summary session close failed", "err", err)
		}
	}()
	return sess.Send(ctx, msg)
}
