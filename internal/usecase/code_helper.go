package usecase

import (
	"crypto/rand"
	"io"
)

// generateActivationCode creates a secure, random, human-readable code.
// Format: XXXX-XXXX-XXXX, drawn from a set without ambiguous glyphs (O/0, I/1, l).
func generateActivationCode() (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLength = 12

	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}
	for i := 0; i < codeLength; i++ {
		buffer[i] = chars[int(buffer[i])%len(chars)]
	}
	return string(buffer[0:4]) + "-" + string(buffer[4:8]) + "-" + string(buffer[8:12]), nil
}
