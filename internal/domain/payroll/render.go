package payroll

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type Layout string

type Letterhead struct {
	Name         string
	Address      string
	Phone        string
	Email        string
	SupportEmail string
}

// Template carries everything about a payslip that is not employee data.
type Template struct {
	Letterhead Letterhead
	Currency   string
	PayType    string
	Layout     Layout
}

type rgb struct{ r, g, b int }

var (
	headerColor    = rgb{51, 77, 178}
	textColor      = rgb{51, 51, 51}
	tableHeadColor = rgb{230, 230, 230}
	netPayColor    = rgb{242, 242, 255}
	gridColor      = rgb{128, 128, 128}
	white          = rgb{255, 255, 255}
)

const (
	pageWidth   = 210.0
	pageHeight  = 297.0
	margin      = 10.6
	headerBand  = 42.0
	rowHeight   = 6.5
	labelWidth  = 49.4
	amountWidth = 35.3
)

type Renderer struct {
	tmpl         Template
	now          func() time.Time
	uncompressed bool
}

type RendererOption func(*Renderer)

// WithClock pins the "Generated on" footer and the document creation date.
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// withoutCompression leaves page streams as plain text so their content can
// be searched.
func withoutCompression() RendererOption {
	return func(r *Renderer) {
		r.uncompressed = true
	}
}

func NewRenderer(tmpl Template, opts ...RendererOption) *Renderer {
	if tmpl.Layout == "" {
		tmpl.Layout = LayoutTwoColumn
	}
	if tmpl.Currency == "" {
		tmpl.Currency = "KES"
	}
	r := &Renderer{tmpl: tmpl, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Template() Template {
	return r.tmpl
}

// Render lays out a single A4 payslip for rec. Identical inputs and clock give
// identical bytes.
func (r *Renderer) Render(rec Record, period string) ([]byte, error) {
	if err := rec.requireIdentity(); err != nil {
		return nil, err
	}
	generated := r.now()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCompression(!r.uncompressed)
	pdf.SetCreationDate(generated)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(fmt.Sprintf("Payslip %s %s", rec.Name, period), true)
	pdf.SetAuthor(r.tmpl.Letterhead.Name, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	r.drawHeader(pdf, tr, period)
	r.drawEmployee(pdf, tr, rec)

	setText(pdf, textColor)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(margin, 85, "SALARY BREAKDOWN")

	var bottom float64
	switch r.tmpl.Layout {
	case LayoutSingle:
		bottom = r.drawSingleTable(pdf, tr, rec, 89)
	default:
		bottom = r.drawTwoTables(pdf, tr, rec, 89)
	}

	r.drawNetPay(pdf, rec, bottom+8)
	r.drawFooter(pdf, tr, generated)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawHeader(pdf *gofpdf.Fpdf, tr func(string) string, period string) {
	lh := r.tmpl.Letterhead

	setFill(pdf, headerColor)
	pdf.Rect(0, 0, pageWidth, headerBand, "F")

	setDraw(pdf, white)
	pdf.SetLineWidth(0.3)
	pdf.Rect(margin, 10.6, 21, 21, "D")

	setText(pdf, white)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.Text(35, 16, tr(lh.Name))
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(35, 21.2, tr(lh.Address))
	pdf.Text(35, 26.5, tr("Phone: "+lh.Phone))
	pdf.Text(35, 31.8, tr("Email: "+lh.Email))

	pdf.SetFont("Helvetica", "B", 12)
	right := pageWidth - margin
	textRight(pdf, right, 16, tr("PAY DATE: 20 "+period))
	textRight(pdf, right, 21.2, tr("PAY TYPE: "+r.tmpl.PayType))
	textRight(pdf, right, 26.5, tr("PERIOD: "+period))
}

func (r *Renderer) drawEmployee(pdf *gofpdf.Fpdf, tr func(string) string, rec Record) {
	setText(pdf, textColor)
	setDraw(pdf, textColor)
	pdf.SetLineWidth(0.3)
	pdf.Rect(margin, 48, pageWidth-2*margin, 28, "D")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(14, 55, "EMPLOYEE DETAILS")

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(14, 61, tr("Name: "+rec.Name))
	pdf.Text(14, 66, tr("Email: "+rec.Email))
	pdf.Text(14, 71, tr("Position: "+orNA(rec.Position)))
	pdf.Text(pageWidth/2, 61, tr("Employee ID: "+orNA(rec.EmployeeID)))
	pdf.Text(pageWidth/2, 66, tr("Department: "+orNA(rec.Department)))
}

func (r *Renderer) drawTwoTables(pdf *gofpdf.Fpdf, tr func(string) string, rec Record, top float64) float64 {
	amountHead := fmt.Sprintf("AMOUNT (%s)", r.tmpl.Currency)

	left := r.drawTable(pdf, tr, margin, top, labelWidth, amountWidth, "EARNINGS", amountHead, earningRows(rec))
	right := r.drawTable(pdf, tr, pageWidth/2+margin, top, labelWidth, amountWidth, "DEDUCTIONS", amountHead, deductionRows(rec))
	return max(left, right)
}

func (r *Renderer) drawSingleTable(pdf *gofpdf.Fpdf, tr func(string) string, rec Record, top float64) float64 {
	amountHead := fmt.Sprintf("AMOUNT (%s)", r.tmpl.Currency)
	labelW := pageWidth - 2*margin - 60

	y := r.drawTable(pdf, tr, margin, top, labelW, 60, "EARNINGS", amountHead, earningRows(rec))
	return r.drawTable(pdf, tr, margin, y, labelW, 60, "DEDUCTIONS", amountHead, deductionRows(rec))
}

func (r *Renderer) drawTable(pdf *gofpdf.Fpdf, tr func(string) string, x, y, labelW, amountW float64, title, amountHead string, rows [][2]string) float64 {
	setDraw(pdf, gridColor)
	pdf.SetLineWidth(0.1)
	setText(pdf, textColor)

	setFill(pdf, tableHeadColor)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(x, y)
	pdf.CellFormat(labelW, rowHeight+1, title, "1", 0, "L", true, 0, "")
	pdf.CellFormat(amountW, rowHeight+1, tr(amountHead), "1", 0, "R", true, 0, "")
	y += rowHeight + 1

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		pdf.SetXY(x, y)
		pdf.CellFormat(labelW, rowHeight, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(amountW, rowHeight, row[1], "1", 0, "R", false, 0, "")
		y += rowHeight
	}
	return y
}

func (r *Renderer) drawNetPay(pdf *gofpdf.Fpdf, rec Record, y float64) {
	setFill(pdf, netPayColor)
	setDraw(pdf, textColor)
	pdf.SetLineWidth(0.3)
	pdf.Rect(margin, y, pageWidth-2*margin, 14, "FD")

	setText(pdf, headerColor)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(14, y+9, "NET PAY:")
	pdf.SetFont("Helvetica", "B", 14)
	textRight(pdf, pageWidth-14, y+9, fmt.Sprintf("%s %s", r.tmpl.Currency, FormatCurrency(rec.NetSalary.Abs())))
}

func (r *Renderer) drawFooter(pdf *gofpdf.Fpdf, tr func(string) string, generated time.Time) {
	setText(pdf, textColor)
	pdf.SetFont("Helvetica", "", 8)
	lines := []string{
		"This is a computer generated payslip and does not require signature.",
		"Generated on: " + generated.Format("02-01-2006 15:04:05"),
		"For any queries, please contact HR department at " + r.tmpl.Letterhead.SupportEmail,
	}
	y := pageHeight - 18
	for _, line := range lines {
		line = tr(line)
		pdf.Text((pageWidth-pdf.GetStringWidth(line))/2, y, line)
		y += 5
	}
}

func earningRows(rec Record) [][2]string {
	lines := rec.Earnings()
	rows := make([][2]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, [2]string{line.Label, FormatCurrency(line.Amount.Abs())})
	}
	return rows
}

func deductionRows(rec Record) [][2]string {
	lines := rec.DeductionLines()
	rows := make([][2]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, [2]string{line.Label, FormatDeduction(line.Amount)})
	}
	return rows
}

func textRight(pdf *gofpdf.Fpdf, right, y float64, s string) {
	pdf.Text(right-pdf.GetStringWidth(s), y, s)
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}

func setFill(pdf *gofpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setDraw(pdf *gofpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }
func setText(pdf *gofpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
