package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// GenerateReference generates a human-readable application reference
// such as LN-2026-48213907.
func GenerateReference(prefix string, digits int) (string, error) {
	if digits < 4 || digits > 16 {
		return "", fmt.Errorf("invalid reference length: %d", digits)
	}

	random := make([]byte, digits)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(prefix)
	builder.WriteString(fmt.Sprintf("-%d-", time.Now().UTC().Year()))
	for _, b := range random {
		builder.WriteByte(b%10 + '0')
	}
	return builder.String(), nil
}

// GenerateHMAC returns the hex HMAC-SHA256 of payload under secret
func GenerateHMAC(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC checks a hex signature in constant time
func VerifyHMAC(payload []byte, signature, secret string) bool {
	expected, err := hex.DecodeString(GenerateHMAC(payload, secret))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
