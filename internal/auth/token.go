package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// OpaqueTokenLength is the length of generated refresh/session token strings.
const OpaqueTokenLength = 24

// opaqueTokenBytes of random data encode to OpaqueTokenLength base64url chars.
const opaqueTokenBytes = 18

// GenerateOpaqueToken returns a random Base64URL token for refresh tokens and
// web sessions.
func GenerateOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateOTPCode returns a uniformly distributed 6-digit numeric code from a
// cryptographically secure source (offset into 100000-999999).
func GenerateOTPCode() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	value := binary.BigEndian.Uint32(buf[:])%900000 + 100000
	return fmt.Sprintf("%06d", value), nil
}

// MaskPhone masks a phone number for logging (e.g. 01******78)
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
