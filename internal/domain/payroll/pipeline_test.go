package payroll

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"payslips/internal/platform/crypto"
	"payslips/internal/platform/email"
)

type stubProtector struct {
	err  error
	pins []string
}

func (p *stubProtector) Protect(doc []byte, pin string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.pins = append(p.pins, pin)
	return append([]byte("LOCKED:"), doc[:8]...), nil
}

type fakeSession struct {
	relay  *fakeRelay
	broken bool
	closed bool
}

func (s *fakeSession) Send(ctx context.Context, msg *email.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := s.relay
	r.attempts = append(r.attempts, msg.To)
	if r.onSend != nil {
		r.onSend(msg)
	}
	if r.failFor[msg.To] {
		s.broken = true
		return &email.SendError{Stage: "rcpt", Err: errors.New("550 mailbox unavailable")}
	}
	r.delivered = append(r.delivered, msg)
	return nil
}

func (s *fakeSession) Healthy() bool { return !s.broken }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeRelay struct {
	opens     int
	openErr   error
	failFor   map[string]bool
	attempts  []string
	delivered []*email.Message
	sessions  []*fakeSession
	onSend    func(*email.Message)
}

func (r *fakeRelay) Open(ctx context.Context) (Session, error) {
	r.opens++
	if r.openErr != nil {
		return nil, r.openErr
	}
	s := &fakeSession{relay: r}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func testPipeline(p Protector) *Pipeline {
	tmpl := testTemplate(LayoutTwoColumn)
	return NewPipeline(NewRenderer(tmpl, WithClock(fixedClock)), p, Composer{Letterhead: tmpl.Letterhead})
}

func batchRecords(emails ...string) []Record {
	out := make([]Record, 0, len(emails))
	for i, addr := range emails {
		rec := sampleRecord()
		rec.Row = i + 2
		rec.Email = addr
		rec.Name = strings.Split(addr, "@")[0]
		out = append(out, rec)
	}
	return out
}

func TestPipelineProtectsWithRecordPIN(t *testing.T) {
	pipe := testPipeline(crypto.NewProtector())

	doc, err := pipe.Protected(sampleRecord(), "March 2024")
	if err != nil {
		t.Fatalf("protect error: %v", err)
	}
	if _, err := crypto.NewProtector().Unlock(doc.Bytes(), "0000"); !errors.Is(err, crypto.ErrWrongPIN) {
		t.Fatalf("expected wrong pin error, got %v", err)
	}
	plain, err := crypto.NewProtector().Unlock(doc.Bytes(), "4321")
	if err != nil {
		t.Fatalf("unlock error: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("%PDF-")) {
		t.Fatal("expected unlocked pdf")
	}
}

func TestPipelineDefaultPIN(t *testing.T) {
	protector := &stubProtector{}
	rec := sampleRecord()
	rec.PIN = ""
	if _, err := testPipeline(protector).Prepare(rec, "March 2024", "payroll@example.com"); err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	if len(protector.pins) != 1 || protector.pins[0] != DefaultPIN {
		t.Fatalf("expected default pin, got %v", protector.pins)
	}
}

func TestPipelinePrepareStages(t *testing.T) {
	badEmail := sampleRecord()
	badEmail.Email = "not-an-address"

	tests := []struct {
		name      string
		rec       Record
		protector *stubProtector
		stage     Stage
	}{
		{name: "validation", rec: badEmail, protector: &stubProtector{}, stage: StageValidate},
		{name: "protect", rec: sampleRecord(), protector: &stubProtector{err: crypto.ErrUnreadable}, stage: StageProtect},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := testPipeline(tc.protector).Prepare(tc.rec, "March 2024", "payroll@example.com")
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tc.stage {
				t.Fatalf("expected %s stage error, got %v", tc.stage, err)
			}
		})
	}
}

func TestPipelineAttachesProtectedBytes(t *testing.T) {
	msg, err := testPipeline(&stubProtector{}).Prepare(sampleRecord(), "March 2024", "payroll@example.com")
	if err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	if !bytes.HasPrefix(msg.Attachments[0].Data, []byte("LOCKED:")) {
		t.Fatal("expected attachment to be the protector output")
	}
}

func TestPipelineDeliver(t *testing.T) {
	badEmail := sampleRecord()
	badEmail.Email = "not-an-address"
	refused := sampleRecord()
	refused.Email = "gone@example.com"

	tests := []struct {
		name      string
		rec       Record
		openErr   error
		wantStage Stage
		wantOpens int
		wantSent  int
	}{
		{name: "sent", rec: sampleRecord(), wantOpens: 1, wantSent: 1},
		{name: "invalid record never dials", rec: badEmail, wantStage: StageValidate},
		{name: "dial failure", rec: sampleRecord(), openErr: errors.New("connection refused"), wantStage: StageTransport, wantOpens: 1},
		{name: "rejected recipient", rec: refused, wantStage: StageTransport, wantOpens: 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			relay := &fakeRelay{openErr: tc.openErr, failFor: map[string]bool{"gone@example.com": true}}
			err := testPipeline(&stubProtector{}).Deliver(context.Background(), tc.rec, "March 2024", "payroll@example.com", relay.Open)
			if tc.wantStage == "" {
				if err != nil {
					t.Fatalf("deliver error: %v", err)
				}
			} else {
				var se *StageError
				if !errors.As(err, &se) || se.Stage != tc.wantStage {
					t.Fatalf("expected %s stage error, got %v", tc.wantStage, err)
				}
			}
			if relay.opens != tc.wantOpens {
				t.Fatalf("expected %d opens, got %d", tc.wantOpens, relay.opens)
			}
			if len(relay.delivered) != tc.wantSent {
				t.Fatalf("expected %d delivered, got %d", tc.wantSent, len(relay.delivered))
			}
		})
	}
}

func TestOrchestratorContinuesAfterFailures(t *testing.T) {
	relay := &fakeRelay{failFor: map[string]bool{"b@example.com": true}}
	records := batchRecords("a@example.com", "b@example.com", "c@example.com", "d@example.com")
	records[2].Email = ""

	var progress []Progress
	report := NewOrchestrator(testPipeline(&stubProtector{})).Run(context.Background(),
		BatchRun{Period: "March 2024", From: "payroll@example.com", Records: records},
		relay, func(p Progress) { progress = append(progress, p) })

	if report.Total != 4 || report.Sent != 2 || report.Failed != 2 || report.Skipped != 0 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.Results[1].Stage != StageTransport || report.Results[2].Stage != StageValidate {
		t.Fatalf("unexpected stages %q %q", report.Results[1].Stage, report.Results[2].Stage)
	}
	if relay.opens != 2 {
		t.Fatalf("expected a re-dial after the broken session, got %d opens", relay.opens)
	}
	for _, s := range relay.sessions {
		if !s.closed {
			t.Fatal("expected every session to be closed")
		}
	}
	last := progress[len(progress)-1]
	if last.Done != 4 || last.Total != 4 {
		t.Fatalf("unexpected final progress %+v", last)
	}
}

func TestOrchestratorReusesSession(t *testing.T) {
	relay := &fakeRelay{}
	report := NewOrchestrator(testPipeline(&stubProtector{})).Run(context.Background(),
		BatchRun{Period: "March 2024", From: "payroll@example.com", Records: batchRecords("a@example.com", "b@example.com", "c@example.com")},
		relay, nil)

	if report.Sent != 3 {
		t.Fatalf("expected 3 sent, got %+v", report)
	}
	if relay.opens != 1 {
		t.Fatalf("expected one session for the batch, got %d", relay.opens)
	}
	if got := relay.delivered[1].Subject; got != "Payslip for March 2024 - ENA COACH LTD" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestOrchestratorDialFailure(t *testing.T) {
	relay := &fakeRelay{openErr: &email.SendError{Stage: "auth", Err: errors.New("535 bad credentials")}}
	report := NewOrchestrator(testPipeline(&stubProtector{})).Run(context.Background(),
		BatchRun{Period: "March 2024", From: "payroll@example.com", Records: batchRecords("a@example.com", "b@example.com")},
		relay, nil)

	if report.Failed != 2 || relay.opens != 2 {
		t.Fatalf("expected both records failed with a dial attempt each, got %+v opens=%d", report, relay.opens)
	}
	if !strings.Contains(report.Results[0].Error, "535") {
		t.Fatalf("expected relay reason in error, got %q", report.Results[0].Error)
	}
}

func TestOrchestratorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := &fakeRelay{}
	relay.onSend = func(*email.Message) {
		if len(relay.attempts) == 2 {
			cancel()
		}
	}
	report := NewOrchestrator(testPipeline(&stubProtector{})).Run(ctx,
		BatchRun{Period: "March 2024", From: "payroll@example.com", Records: batchRecords("a@example.com", "b@example.com", "c@example.com", "d@example.com")},
		relay, nil)

	if !report.Cancelled || !report.WasCancelled() {
		t.Fatal("expected cancelled report")
	}
	if report.Sent != 2 || report.Skipped != 2 {
		t.Fatalf("expected 2 sent and 2 skipped, got %+v", report)
	}
	if len(relay.attempts) != 2 {
		t.Fatalf("expected no sends after cancel, got %v", relay.attempts)
	}
	if report.Results[3].Status != StatusSkipped || report.Results[3].Error != "batch cancelled" {
		t.Fatalf("unexpected skipped result %+v", report.Results[3])
	}
}

func TestReportCancelledOnlyWhenRecordsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := &fakeRelay{}
	relay.onSend = func(*email.Message) {
		if len(relay.attempts) == 2 {
			cancel()
		}
	}
	report := NewOrchestrator(testPipeline(&stubProtector{})).Run(ctx,
		BatchRun{Period: "March 2024", From: "payroll@example.com", Records: batchRecords("a@example.com", "b@example.com")},
		relay, nil)
	if report.WasCancelled() || report.Sent != 2 {
		t.Fatalf("expected a complete batch, got %+v", report)
	}
	var none *BatchReport
	if none.WasCancelled() {
		t.Fatal("nil report must not read as cancelled")
	}
}

func TestOrchestratorSendTest(t *testing.T) {
	relay := &fakeRelay{}
	res, err := NewOrchestrator(testPipeline(&stubProtector{})).SendTest(context.Background(),
		BatchRun{Period: "March 2024", From: "payroll@example.com", Records: batchRecords("a@example.com", "b@example.com")},
		relay)
	if err != nil {
		t.Fatalf("send test error: %v", err)
	}
	if res.Status != StatusSent || len(relay.delivered) != 1 {
		t.Fatalf("expected one test delivery, got %+v", res)
	}
	msg := relay.delivered[0]
	if msg.To != "payroll@example.com" || !strings.HasPrefix(msg.Subject, "[TEST] ") {
		t.Fatalf("expected test send to sender, got %q %q", msg.To, msg.Subject)
	}
	if msg.Attachments[0].Filename != "Payslip_a_March 2024.pdf" {
		t.Fatalf("expected first employee's payslip, got %q", msg.Attachments[0].Filename)
	}

	if _, err := NewOrchestrator(testPipeline(&stubProtector{})).SendTest(context.Background(), BatchRun{}, relay); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected no records error, got %v", err)
	}
}

func TestReportCSV(t *testing.T) {
	report := &BatchReport{Results: []RecordResult{
		{Row: 2, Name: "Jane", Email: "jane@example.com", Status: StatusSent, Warnings: []string{WarningNetVariance}},
		{Row: 3, Name: "John", Email: "john@example.com", Status: StatusFailed, Stage: StageTransport, Error: "relay down"},
	}}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf); err != nil {
		t.Fatalf("csv error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "row,name,email,status,stage,error,warnings" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 3 || !strings.Contains(lines[2], "transport,relay down") {
		t.Fatalf("unexpected rows %q", lines)
	}
}
