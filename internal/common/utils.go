package common

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandByteArray returns size cryptographically random bytes.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return b
}

// MakeTextSalt builds a printable salt of exactly length characters from
// base64-encoded random bytes. The textual form is part of the vault file
// format, so the alphabet must stay stable.
func MakeTextSalt(length int) string {
	var out string
	for len(out) < length {
		out += base64.StdEncoding.EncodeToString(GenerateRandByteArray(3))
	}
	return out[:length]
}

// WipeByteArray overwrites the contents of the provided byte slice with
// zeros. Useful for passwords and derived keys after use. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
