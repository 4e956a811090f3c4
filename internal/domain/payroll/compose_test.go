package payroll

import (
	"strings"
	"testing"
)

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		name   string
		person string
		period string
		want   string
	}{
		{name: "simple", person: "Jane Doe", period: "March 2024", want: "Payslip_Jane_Doe_March 2024.pdf"},
		{name: "whitespace runs", person: "  Jane \t Mary  Doe ", period: "March 2024", want: "Payslip_Jane_Mary_Doe_March 2024.pdf"},
		{name: "path separators", person: "A/B\\C", period: "03/2024", want: "Payslip_A-B-C_03-2024.pdf"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := AttachmentName(tc.person, tc.period); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	c := Composer{Letterhead: testTemplate(LayoutTwoColumn).Letterhead}
	doc := ProtectedDocument{data: []byte("locked"), pin: "4321"}

	msg := c.Compose(sampleRecord(), "payroll@enacoach.co.ke", doc, "March 2024")
	if msg.Subject != "Payslip for March 2024 - ENA COACH LTD" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.To != "jane@example.com" || msg.From != "payroll@enacoach.co.ke" {
		t.Fatalf("unexpected addresses %q -> %q", msg.From, msg.To)
	}
	if !strings.HasPrefix(msg.Body, "Dear Jane Doe,") || !strings.Contains(msg.Body, "March 2024") {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if strings.Contains(msg.Body, "4321") {
		t.Fatal("pin must not appear in the body unless enabled")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Filename != "Payslip_Jane_Doe_March 2024.pdf" || att.ContentType != "application/pdf" || string(att.Data) != "locked" {
		t.Fatalf("unexpected attachment %+v", att)
	}
}

func TestComposeIncludesPINWhenEnabled(t *testing.T) {
	c := Composer{Letterhead: testTemplate(LayoutTwoColumn).Letterhead, IncludePIN: true}
	msg := c.Compose(sampleRecord(), "payroll@enacoach.co.ke", ProtectedDocument{data: []byte("x"), pin: "4321"}, "March 2024")
	if !strings.Contains(msg.Body, "use your PIN: 4321") {
		t.Fatalf("expected pin in body, got %q", msg.Body)
	}
}
