package encryption

import (
	"bytes"
	"fmt"
	"io"
)

// plainHeader marks snapshots written by PlainEncryptor so they are never
// mistaken for raw SQLite files.
var plainHeader = []byte("REGSNAP\x00")

// PlainEncryptor frames snapshots without encrypting them. It backs the
// "none" encryption type and the test suites.
type PlainEncryptor struct {
	generated bool
}

var _ Encryptor = (*PlainEncryptor)(nil)

func NewPlainEncryptor() *PlainEncryptor {
	return &PlainEncryptor{}
}

func (e *PlainEncryptor) GenerateKeys(string) error {
	e.generated = true
	return nil
}

func (e *PlainEncryptor) Seal(r io.Reader, w io.Writer) error {
	if _, err := w.Write(plainHeader); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying snapshot: %w", err)
	}
	return nil
}

func (e *PlainEncryptor) Unlock(string) (Opener, error) {
	return plainOpener{}, nil
}

func (e *PlainEncryptor) Recipient() (string, error) {
	return "none", nil
}

func (e *PlainEncryptor) IsConfigured() bool {
	return true
}

type plainOpener struct{}

func (plainOpener) Open(r io.Reader, w io.Writer) error {
	header := make([]byte, len(plainHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading snapshot header: %w", err)
	}
	if !bytes.Equal(header, plainHeader) {
		return fmt.Errorf("invalid snapshot header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying snapshot: %w", err)
	}
	return nil
}
