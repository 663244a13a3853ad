package encryption

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"conduit-registry/internal/config"
)

func TestPlainEncryptor_RoundTrip(t *testing.T) {
	e := NewPlainEncryptor()
	input := []byte("SQLite format 3\x00rest")

	var sealed bytes.Buffer
	if err := e.Seal(bytes.NewReader(input), &sealed); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Equal(sealed.Bytes(), input) {
		t.Error("sealed output is identical to input")
	}

	opener, err := e.Unlock("ignored")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var opened bytes.Buffer
	if err := opener.Open(&sealed, &opened); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened.Bytes(), input) {
		t.Errorf("Open() = %q, want %q", opened.Bytes(), input)
	}
}

func TestPlainEncryptor_OpenRejectsForeignData(t *testing.T) {
	opener, _ := NewPlainEncryptor().Unlock("")
	var out bytes.Buffer

	for _, in := range []string{"", "short", "SQLite format 3\x00"} {
		if err := opener.Open(strings.NewReader(in), &out); err == nil {
			t.Errorf("Open(%q) error = nil, want error", in)
		}
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{"", "*encryption.AgeEncryptor", false},
		{"age", "*encryption.AgeEncryptor", false},
		{"none", "*encryption.PlainEncryptor", false},
		{"test", "*encryption.PlainEncryptor", false},
		{"rot13", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			e, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if tt.wantErr {
				if err == nil {
					t.Error("NewEncryptorFromConfig() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}
			if got := fmt.Sprintf("%T", e); got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
}
