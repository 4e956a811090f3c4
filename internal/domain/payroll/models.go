package payroll

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Record is one employee's row for one pay period. It is read once from the
// spreadsheet and never modified afterwards.
type Record struct {
	Row        int    `json:"row"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	EmployeeID string `json:"employeeId,omitempty"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Month      string `json:"month"`
	PIN        string `json:"-"`

	BasicSalary decimal.Decimal `json:"basicSalary"`
	Overtime    decimal.Decimal `json:"overtime"`
	Allowance   decimal.Decimal `json:"allowance"`
	Bonus       decimal.Decimal `json:"bonus"`
	PAYETax     decimal.Decimal `json:"payeTax"`
	SHA         decimal.Decimal `json:"sha"`
	NSSF        decimal.Decimal `json:"nssf"`
	Penalties   decimal.Decimal `json:"penalties"`
	Deductions  decimal.Decimal `json:"deductions"`
	NetSalary   decimal.Decimal `json:"netSalary"`
}

type Line struct {
	Label  string
	Amount decimal.Decimal
}

func (r Record) Validate() error {
	trimmed := r
	trimmed.Name = strings.TrimSpace(r.Name)
	trimmed.Email = strings.TrimSpace(r.Email)

	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		cause := ErrInvalidField
		if fe.Tag() == "required" {
			cause = ErrMissingField
		}
		out = append(out, &FieldError{Field: fe.Field(), Err: cause})
	}
	return errors.Join(out...)
}

// requireIdentity is the renderer's check: it only needs a name and an address
// to print, not a deliverable one.
func (r Record) requireIdentity() error {
	var out []error
	if strings.TrimSpace(r.Name) == "" {
		out = append(out, &FieldError{Field: "Name", Err: ErrMissingField})
	}
	if strings.TrimSpace(r.Email) == "" {
		out = append(out, &FieldError{Field: "Email", Err: ErrMissingField})
	}
	return errors.Join(out...)
}

func (r Record) PINOrDefault() string {
	if pin := strings.TrimSpace(r.PIN); pin != "" {
		return pin
	}
	return DefaultPIN
}

func (r Record) Earnings() []Line {
	return []Line{
		{Label: "Basic Salary", Amount: r.BasicSalary},
		{Label: "Overtime Pay", Amount: r.Overtime},
		{Label: "Allowance", Amount: r.Allowance},
		{Label: "Bonus", Amount: r.Bonus},
	}
}

func (r Record) DeductionLines() []Line {
	return []Line{
		{Label: "PAYE Tax", Amount: r.PAYETax},
		{Label: "SHA", Amount: r.SHA},
		{Label: "NSSF", Amount: r.NSSF},
		{Label: "Penalties", Amount: r.Penalties},
		{Label: "Other Deductions", Amount: r.Deductions},
	}
}

// NetPayVariance compares the declared Net Salary with earnings minus
// deductions. Rendering always prints NetSalary as supplied; the variance is
// only reported.
func (r Record) NetPayVariance() (decimal.Decimal, bool) {
	expected := decimal.Zero
	for _, line := range r.Earnings() {
		expected = expected.Add(line.Amount)
	}
	for _, line := range r.DeductionLines() {
		expected = expected.Sub(line.Amount.Abs())
	}
	variance := r.NetSalary.Sub(expected).Round(2)
	return variance, variance.IsZero()
}

// Warnings lists non-fatal problems with the row. The payslip still shows
// every amount as a magnitude.
func (r Record) Warnings() []string {
	var warnings []string
	if _, ok := r.NetPayVariance(); !ok {
		warnings = append(warnings, WarningNetVariance)
	}
	if r.hasNegativeAmount() {
		warnings = append(warnings, WarningNegativeAmount)
	}
	return warnings
}

func (r Record) hasNegativeAmount() bool {
	if r.NetSalary.IsNegative() {
		return true
	}
	for _, line := range r.Earnings() {
		if line.Amount.IsNegative() {
			return true
		}
	}
	return false
}
