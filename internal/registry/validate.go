package registry

import (
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ContentHashLength is the length of a hex-encoded SHA-256 digest.
const ContentHashLength = 64

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("contenthash", func(fl validator.FieldLevel) bool {
		return IsContentHash(fl.Field().String())
	}); err != nil {
		panic("registry: registering contenthash validation: " + err.Error())
	}
	// Unlike the built-in hexadecimal tag, no 0x prefix is accepted.
	if err := v.RegisterValidation("hexdigits", func(fl validator.FieldLevel) bool {
		return isHexDigits(fl.Field().String())
	}); err != nil {
		panic("registry: registering hexdigits validation: " + err.Error())
	}
	// Report JSON field names so error messages match what clients sent.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IsContentHash reports whether s is a lowercase hex SHA-256 digest.
func IsContentHash(s string) bool {
	if len(s) != ContentHashLength || strings.ToLower(s) != s {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func isHexDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// NormalizeHash trims and lowercases a hex identifier.
func NormalizeHash(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePubkey is NormalizeHash with any 0x prefix removed, so both
// spellings of a key name the same record.
func NormalizePubkey(s string) string {
	return strings.TrimPrefix(NormalizeHash(s), "0x")
}

// ParseContentHash normalizes s and checks that it is a content hash.
func ParseContentHash(s string) (string, error) {
	h := NormalizeHash(s)
	if h == "" {
		return "", fmt.Errorf("%w: content hash is required", ErrInvalidInput)
	}
	if !IsContentHash(h) {
		return "", fmt.Errorf("%w: content hash must be %d hex characters, got %q", ErrInvalidInput, ContentHashLength, s)
	}
	return h, nil
}

// normalizeListing applies defaults and canonical forms before validation.
func normalizeListing(l *Listing) {
	l.ContentHash = NormalizeHash(l.ContentHash)
	l.EncryptedHash = NormalizeHash(l.EncryptedHash)
	l.Title = strings.TrimSpace(l.Title)
	l.FileName = strings.TrimSpace(l.FileName)
	if l.Title == "" {
		l.Title = l.FileName
	}
	l.CreatorPubkey = strings.TrimSpace(l.CreatorPubkey)
	if l.PlaybackPolicy == "" {
		l.PlaybackPolicy = DefaultPlaybackPolicy
	}
}

func normalizeSeeder(a *SeederAnnouncement) {
	a.ContentHash = NormalizeHash(a.ContentHash)
	a.SeederPubkey = strings.TrimSpace(a.SeederPubkey)
	a.SeederAddress = strings.TrimSpace(a.SeederAddress)
}

func normalizeManufacturer(m *Manufacturer) {
	m.PKHex = NormalizePubkey(m.PKHex)
	m.Name = strings.TrimSpace(m.Name)
	m.Website = strings.TrimSpace(m.Website)
}

// validateRecord runs struct validation and converts failures into ErrInvalidInput.
func validateRecord(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s fails %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}
