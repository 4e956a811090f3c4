package email

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"
)

func TestMessageBytes(t *testing.T) {
	msg := testMessage("jane@example.com")
	msg.ToName = "Jane Doe"
	msg.Subject = "Payslip for März 2024"
	msg.Date = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("bytes error: %v", err)
	}
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil || subject != "Payslip for März 2024" {
		t.Fatalf("unexpected subject %q (%v)", subject, err)
	}
	to, err := parsed.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "jane@example.com" || to[0].Name != "Jane Doe" {
		t.Fatalf("unexpected recipient %v (%v)", to, err)
	}
	if !strings.HasSuffix(parsed.Header.Get("Message-ID"), "@example.com>") {
		t.Fatalf("unexpected message id %q", parsed.Header.Get("Message-ID"))
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("unexpected content type %q (%v)", mediaType, err)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])

	text, err := mr.NextPart()
	if err != nil {
		t.Fatalf("text part: %v", err)
	}
	body, _ := io.ReadAll(text)
	if !strings.Contains(string(body), "Dear Jane,") || !strings.Contains(string(body), "Please find attached") {
		t.Fatalf("unexpected body %q", body)
	}

	att, err := mr.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if att.FileName() != "Payslip_Jane_Doe_March 2024.pdf" {
		t.Fatalf("unexpected filename %q", att.FileName())
	}
	encoded, _ := io.ReadAll(att)
	decoded, err := decodeBase64(encoded)
	if err != nil || string(decoded) != "%PDF-1.4 protected" {
		t.Fatalf("attachment did not round trip: %q (%v)", decoded, err)
	}

	if _, err := mr.NextPart(); err != io.EOF {
		t.Fatalf("expected exactly two parts, got %v", err)
	}
}

func TestMessageBytesRequiresAddresses(t *testing.T) {
	msg := testMessage("")
	if _, err := msg.Bytes(); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func decodeBase64(encoded []byte) ([]byte, error) {
	clean := strings.NewReplacer("\r", "", "\n", "").Replace(string(encoded))
	return base64.StdEncoding.DecodeString(clean)
}
