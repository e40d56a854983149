// Package util provides utility functions shared across ReclaimBot components.
package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2; not suitable for cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateReportID generates a unique item report ID with "itm_" prefix.
func GenerateReportID() string {
	return GenerateRandomID("itm_", 12)
}

// GenerateTicketID generates a unique support ticket ID with "tkt_" prefix.
func GenerateTicketID() string {
	return GenerateRandomID("tkt_", 12)
}
