package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrEmptyPIN     = errors.New("pdf pin must not be empty")
	ErrUnreadable   = errors.New("pdf document is unreadable")
	ErrWrongPIN     = errors.New("incorrect pdf pin")
	ErrNotProtected = errors.New("pdf document is not protected")
)

func init() {
	api.DisableConfigDir()
}

// Protector password-protects PDF documents. User and owner password are the
// same PIN, so whoever can open the file has full rights to it.
type Protector struct {
	KeyLength int
}

func NewProtector() *Protector {
	return &Protector{KeyLength: 256}
}

// Protect returns a new buffer holding doc encrypted with pin. doc is only read.
func (p *Protector) Protect(doc []byte, pin string) ([]byte, error) {
	if strings.TrimSpace(pin) == "" {
		return nil, ErrEmptyPIN
	}
	if !looksLikePDF(doc) {
		return nil, ErrUnreadable
	}

	conf := model.NewAESConfiguration(pin, pin, p.keyLength())
	var out bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(doc), &out, conf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return out.Bytes(), nil
}

// Unlock decrypts a document produced by Protect.
func (p *Protector) Unlock(doc []byte, pin string) ([]byte, error) {
	if !looksLikePDF(doc) {
		return nil, ErrUnreadable
	}

	conf := model.NewDefaultConfiguration()
	conf.UserPW = pin
	conf.OwnerPW = pin
	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(doc), &out, conf); err != nil {
		return nil, decryptError(err)
	}
	return out.Bytes(), nil
}

func decryptError(err error) error {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return ErrWrongPIN
	}
	// pdfcpu exports no value for these, so fall back to its message text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not encrypted"):
		return ErrNotProtected
	case strings.Contains(msg, "password"):
		return ErrWrongPIN
	default:
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
}

func (p *Protector) keyLength() int {
	switch p.KeyLength {
	case 40, 128, 256:
		return p.KeyLength
	default:
		return 256
	}
}

func looksLikePDF(doc []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(doc, "\r\n\t "), []byte("%PDF-"))
}
