package payroll

import (
	"fmt"
	"regexp"
	"strings"

	"payslips/internal/platform/email"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

type Composer struct {
	Letterhead Letterhead
	// IncludePIN puts the document PIN in the email body. The PIN then travels
	// next to the document it unlocks, so it is off unless configured.
	IncludePIN bool
}

func (c Composer) Subject(period string) string {
	return fmt.Sprintf("Payslip for %s - %s", period, c.Letterhead.Name)
}

// Compose builds the notification for one employee. Only a ProtectedDocument
// can be attached.
func (c Composer) Compose(rec Record, from string, doc ProtectedDocument, period string) *email.Message {
	return &email.Message{
		From:    from,
		To:      strings.TrimSpace(rec.Email),
		ToName:  strings.TrimSpace(rec.Name),
		Subject: c.Subject(period),
		Body:    c.body(rec, doc, period),
		Attachments: []email.Attachment{{
			Filename:    AttachmentName(rec.Name, period),
			ContentType: "application/pdf",
			Data:        doc.Bytes(),
		}},
	}
}

func (c Composer) body(rec Record, doc ProtectedDocument, period string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", strings.TrimSpace(rec.Name))
	fmt.Fprintf(&b, "Please find attached your payslip for %s.\n\n", period)
	if c.IncludePIN {
		fmt.Fprintf(&b, "To open the PDF, use your PIN: %s\n\n", doc.pin)
	} else {
		b.WriteString("The PDF is protected. Open it with your payslip PIN.\n\n")
	}
	b.WriteString("Note: This is an automated email. Please do not reply to this email address.\n")
	b.WriteString("For any queries regarding your payslip, please contact the HR department")
	if c.Letterhead.SupportEmail != "" {
		fmt.Fprintf(&b, " at %s", c.Letterhead.SupportEmail)
	}
	b.WriteString(".\n\nBest regards,\nHR Department\n")
	b.WriteString(c.Letterhead.Name)
	b.WriteString("\n")
	return b.String()
}

// AttachmentName is Payslip_<name>_<period>.pdf with whitespace runs in the
// name collapsed to "_". The result is always a single path element.
func AttachmentName(name, period string) string {
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	return safeFilename(fmt.Sprintf("Payslip_%s_%s.pdf", name, strings.TrimSpace(period)))
}

func safeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
}
