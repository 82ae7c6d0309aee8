package accounts

import (
	"encoding/json"
	"fmt"
	"sort"

	"standcheck/internal/common"
	"standcheck/internal/vault"
)

// Store persists account records in an encrypted vault keyed by login.
type Store struct {
	v *vault.Vault
}

func NewStore(v *vault.Vault) *Store {
	return &Store{v: v}
}

// Get loads the record for login. Returns common.ErrNotFound when absent.
func (s *Store) Get(login string) (*Record, error) {
	raw, ok := s.v.Get(login)
	if !ok {
		return nil, fmt.Errorf("account %q: %w", login, common.ErrNotFound)
	}
	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decoding account %q: %w", login, err)
	}
	rec.Login = login
	return rec, nil
}

// Put stores the record under its login and persists the vault.
func (s *Store) Put(rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding account %q: %w", rec.Login, err)
	}
	return s.v.Set(rec.Login, raw)
}

// Exists reports whether a record is stored under login.
func (s *Store) Exists(login string) bool {
	_, ok := s.v.Get(login)
	return ok
}

// Delete removes the record for login. Returns common.ErrNotFound when absent.
func (s *Store) Delete(login string) error {
	if !s.Exists(login) {
		return fmt.Errorf("account %q: %w", login, common.ErrNotFound)
	}
	return s.v.Delete(login)
}

// DeleteAll removes every record.
func (s *Store) DeleteAll() error {
	return s.v.DeleteAll()
}

// List loads every record, sorted by login.
func (s *Store) List() ([]*Record, error) {
	all := s.v.All()
	recs := make([]*Record, 0, len(all))
	for login, raw := range all {
		rec := &Record{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, fmt.Errorf("decoding account %q: %w", login, err)
		}
		rec.Login = login
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Login < recs[j].Login })
	return recs, nil
}
