package messaging

import (
	"strings"
	"unicode"
)

// chatSuffix is the WhatsApp user address suffix
const chatSuffix = "@c.us"

// Digits keeps only the ASCII digits of s
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeNumber converts a local or international number into the full
// international digit string: a leading trunk 0 is replaced by the country
// code, and the country code is prepended when absent.
func NormalizeNumber(raw, countryCode string) (string, error) {
	d := Digits(raw)
	if d == "" {
		return "", ErrInvalidRecipient
	}
	switch {
	case strings.HasPrefix(d, "0"):
		d = countryCode + strings.TrimPrefix(d, "0")
	case !strings.HasPrefix(d, countryCode):
		d = countryCode + d
	}
	return d, nil
}

// ChatID returns the provider address of a number, e.g. 94771461925@c.us
func ChatID(raw, countryCode string) (string, error) {
	d, err := NormalizeNumber(raw, countryCode)
	if err != nil {
		return "", err
	}
	return d + chatSuffix, nil
}
