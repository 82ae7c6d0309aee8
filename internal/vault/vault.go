// Package vault implements the encrypted credential store: a single JSON
// file holding an initialization vector, a password-derivation salt, and an
// AES-256-CBC ciphertext of the serialized record set.
//
// Known weakness: the format carries no integrity tag, so tampered
// ciphertext decrypts to garbage (surfacing as ErrAuth) instead of failing
// cleanly. Authenticated encryption would break compatibility with existing
// files and is deliberately not added without a format version.
package vault

import (
	"crypto/aes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"standcheck/internal/common"
	"standcheck/internal/cryptox"
	"standcheck/internal/filex"
)

const ivSize = aes.BlockSize

// envelope is the on-disk structure. All three fields are mandatory.
type envelope struct {
	IV   string `json:"iv"`
	Salt string `json:"salt"`
	Data string `json:"data"`
}

// Vault is an encrypted key-value store of JSON records. Every mutation
// re-encrypts the whole record set and atomically rewrites the file, so
// mutations are serialized behind a single lock.
type Vault struct {
	mu      sync.Mutex
	path    string
	iv      []byte
	salt    string
	key     []byte
	records map[string]json.RawMessage
}

// Open loads the vault at path, creating it with a fresh random salt and IV
// if it does not exist yet. A structurally invalid file yields ErrCorrupt; a
// decryption failure yields ErrAuth and leaves the file untouched so the
// caller can retry with another password.
func Open(path string, password []byte) (*Vault, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewWithData(path, password, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading vault: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing vault envelope: %w", common.ErrCorrupt)
	}
	if env.IV == "" || env.Salt == "" || env.Data == "" {
		return nil, fmt.Errorf("missing envelope field: %w", common.ErrCorrupt)
	}

	iv, err := hex.DecodeString(env.IV)
	if err != nil || len(iv) != ivSize {
		return nil, fmt.Errorf("bad iv: %w", common.ErrCorrupt)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("bad ciphertext: %w", common.ErrCorrupt)
	}

	v := &Vault{
		path: path,
		iv:   iv,
		salt: env.Salt,
		key:  cryptox.DeriveKey(password, env.Salt),
	}

	records, err := v.decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	v.records = records
	return v, nil
}

// NewWithData creates a new vault file with a fresh salt and IV, seeded from
// an already-decrypted record set. This is the re-key path used when
// changing the password or converting from plaintext storage; the caller is
// responsible for removing any superseded file after this returns.
func NewWithData(path string, password []byte, records map[string]json.RawMessage) (*Vault, error) {
	v := &Vault{
		path:    path,
		iv:      common.GenerateRandByteArray(ivSize),
		salt:    common.MakeTextSalt(cryptox.SaltLength),
		records: make(map[string]json.RawMessage, len(records)),
	}
	v.key = cryptox.DeriveKey(password, v.salt)
	for k, r := range records {
		v.records[k] = r
	}
	if err := v.persistLocked(); err != nil {
		return nil, err
	}
	return v, nil
}

// Get returns the record stored under key.
func (v *Vault) Get(key string) (json.RawMessage, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.records[key]
	return r, ok
}

// Set stores a record and persists the whole set.
func (v *Vault) Set(key string, value json.RawMessage) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records[key] = value
	return v.persistLocked()
}

// Delete removes a record and persists. Deleting an absent key is a no-op.
func (v *Vault) Delete(key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.records[key]; !ok {
		return nil
	}
	delete(v.records, key)
	return v.persistLocked()
}

// DeleteAll clears the record set and persists.
func (v *Vault) DeleteAll() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = make(map[string]json.RawMessage)
	return v.persistLocked()
}

// All returns a copy of the record set.
func (v *Vault) All() map[string]json.RawMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]json.RawMessage, len(v.records))
	for k, r := range v.records {
		out[k] = r
	}
	return out
}

// Path returns the location of the vault file.
func (v *Vault) Path() string {
	return v.path
}

func (v *Vault) decrypt(ciphertext []byte) (map[string]json.RawMessage, error) {
	plaintext, err := cryptox.DecryptCBC(v.key, v.iv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrAuth)
	}

	records := make(map[string]json.RawMessage)
	if err := json.Unmarshal(plaintext, &records); err != nil {
		// Without an integrity tag a wrong key can still unpad cleanly;
		// the JSON layer is the last line that catches it.
		return nil, fmt.Errorf("decrypted data is not valid: %w", common.ErrAuth)
	}
	return records, nil
}

func (v *Vault) persistLocked() error {
	plaintext, err := json.Marshal(v.records)
	if err != nil {
		return err
	}

	ciphertext, err := cryptox.EncryptCBC(v.key, v.iv, plaintext)
	if err != nil {
		return err
	}

	out, err := json.Marshal(envelope{
		IV:   hex.EncodeToString(v.iv),
		Salt: v.salt,
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return err
	}
	return filex.WriteAtomic(v.path, out, 0o600)
}
