package mpesa

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a phone number cannot be normalized
// to the 12-digit 254XXXXXXXXX form the provider requires.
var ErrInvalidPhone = errors.New("invalid phone number format")

// NormalizePhone converts a raw phone number into the provider's
// canonical 254XXXXXXXXX form. Spaces, dashes, and a leading plus are
// stripped; local forms 0XXXXXXXXX, 7XXXXXXXX, and 1XXXXXXXX are
// rewritten with the 254 country code.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(phone, "0"):
		phone = "254" + phone[1:]
	case strings.HasPrefix(phone, "7"), strings.HasPrefix(phone, "1"):
		phone = "254" + phone
	case strings.HasPrefix(phone, "254"):
	default:
		return "", ErrInvalidPhone
	}

	if len(phone) != 12 {
		return "", ErrInvalidPhone
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return "", ErrInvalidPhone
		}
	}
	return phone, nil
}
