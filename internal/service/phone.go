package service

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Accepted Kazakhstan operator/country prefixes on the 11-digit form.
var phonePrefixes = []string{"77", "87", "76", "70"}

// NormalizePhone validates a Kazakhstan mobile number and normalizes it to
// the +7XXXXXXXXXX form. The normalized value is what the duplicate check
// runs on, so "+77012345678" and "8 701 234 56 78" collide.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if len(number) != 11 {
		return "", ErrInvalidPhone
	}
	for _, prefix := range phonePrefixes {
		if strings.HasPrefix(number, prefix) {
			return "+7" + number[1:], nil
		}
	}
	return "", ErrInvalidPhone
}
