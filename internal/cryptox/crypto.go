// Package cryptox holds the cipher primitives for the credential vault:
// the password KDF and AES-256-CBC with PKCS#7 padding. The parameters
// are fixed by the on-disk vault format and must not change, or existing
// files stop decrypting.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	derivationRounds = 200000
	cipherKeySize    = 32
	reservedKeySize  = 32

	// SaltLength is the size of the random text salt stored in new vaults.
	SaltLength = 12
)

var errBadPadding = errors.New("invalid padding")

// DeriveKey runs the password KDF. The scheme derives cipherKeySize +
// reservedKeySize bytes and uses only the first half as the cipher key;
// the second half is reserved by the vault format and currently unused.
func DeriveKey(password []byte, salt string) []byte {
	derived := pbkdf2.Key(password, []byte(salt), derivationRounds, cipherKeySize+reservedKeySize, sha256.New)
	return derived[:cipherKeySize]
}

// EncryptCBC pads plaintext with PKCS#7 and encrypts it with AES-256-CBC.
// iv must be aes.BlockSize bytes.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// DecryptCBC decrypts AES-256-CBC ciphertext and strips PKCS#7 padding.
// A wrong key usually surfaces here as a padding error, but padding can
// survive by chance; callers must validate the plaintext structure too.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errBadPadding
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}
