package payroll

import (
	"context"
	"log/slog"

	"payslips/internal/platform/email"
)

type Protector interface {
	Protect(doc []byte, pin string) ([]byte, error)
}

// ProtectedDocument holds encrypted payslip bytes. It can only be built by
// Pipeline.Protected, so anything attached to an email has been through the
// protector.
type ProtectedDocument struct {
	data []byte
	pin  string
}

func (d ProtectedDocument) Bytes() []byte {
	return d.data
}

func (d ProtectedDocument) Len() int {
	return len(d.data)
}

// Session is an open delivery channel. *email.Session satisfies it.
type Session interface {
	Send(ctx context.Context, msg *email.Message) error
	Healthy() bool
	Close() error
}

type Pipeline struct {
	Renderer  *Renderer
	Protector Protector
	Composer  Composer
}

func NewPipeline(renderer *Renderer, protector Protector, composer Composer) *Pipeline {
	return &Pipeline{Renderer: renderer, Protector: protector, Composer: composer}
}

// Protected renders and encrypts the payslip for rec.
func (p *Pipeline) Protected(rec Record, period string) (ProtectedDocument, error) {
	doc, err := p.Renderer.Render(rec, period)
	if err != nil {
		return ProtectedDocument{}, &StageError{Stage: StageRender, Err: err}
	}
	pin := rec.PINOrDefault()
	locked, err := p.Protector.Protect(doc, pin)
	if err != nil {
		return ProtectedDocument{}, &StageError{Stage: StageProtect, Err: err}
	}
	return ProtectedDocument{data: locked, pin: pin}, nil
}

// Prepare runs validate, render, protect and compose for one record.
func (p *Pipeline) Prepare(rec Record, period, from string) (*email.Message, error) {
	if err := rec.Validate(); err != nil {
		return nil, &StageError{Stage: StageValidate, Err: err}
	}
	doc, err := p.Protected(rec, period)
	if err != nil {
		return nil, err
	}
	return p.Composer.Compose(rec, from, doc, period), nil
}

// Deliver prepares rec, then asks session for a channel and sends over it.
// session is only called once the message is ready, so a record that fails
// before transport never dials. Exactly one send is attempted.
func (p *Pipeline) Deliver(ctx context.Context, rec Record, period, from string, session SessionOpenerFunc) error {
	msg, err := p.Prepare(rec, period, from)
	if err != nil {
		return err
	}
	sess, err := session(ctx)
	if err != nil {
		return &StageError{Stage: StageTransport, Err: err}
	}
	if err := sess.Send(ctx, msg); err != nil {
		return &StageError{Stage: StageTransport, Err: err}
	}
	slog.Debug("payslip sent", "row", rec.Row, "period", period)
	return nil
}
