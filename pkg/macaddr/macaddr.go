// Package macaddr normalizes and validates hardware MAC addresses used as
// whitelist keys.
package macaddr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMACRequired indicates an empty MAC address field.
	ErrMACRequired = errors.New("mac address is required")
	// ErrInvalidMAC indicates a malformed MAC address.
	ErrInvalidMAC = errors.New("invalid mac address")
)

var macRe = regexp.MustCompile(`(?i)^[0-9a-f]{2}([:-][0-9a-f]{2}){5}$`)

// Normalize validates a reported MAC address and returns its canonical form:
// upper case, colon separated. Lookups are case-insensitive and accept
// hyphen separators, so AA-bb-cc-dd-ee-ff and aa:bb:cc:dd:ee:ff normalize
// to the same key.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrMACRequired
	}

	if !macRe.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, raw)
	}

	return strings.ToUpper(strings.ReplaceAll(trimmed, "-", ":")), nil
}

// IsValid reports whether raw parses as a MAC address.
func IsValid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
