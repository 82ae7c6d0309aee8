package accounts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"standcheck/internal/checker"
	"standcheck/internal/common"
	"standcheck/internal/logging"
	"standcheck/internal/platform"
	"standcheck/internal/secondfactor"
)

// runSession is swapped in tests.
var runSession = func(ctx context.Context, client platform.Client, cfg checker.Config) (*checker.Result, error) {
	return checker.NewSession(client, cfg).Run(ctx)
}

// Config assembles the collaborators of a Service.
type Config struct {
	Store *Store

	// Dial produces a fresh platform client per check.
	Dial platform.Dialer

	// Supervisor enforces one in-flight check per login. A private one is
	// created when nil.
	Supervisor *checker.Supervisor

	// Codes derives deterministic guard codes for accounts with a shared
	// secret. Optional.
	Codes *secondfactor.CodeGenerator

	// Guard is the interactive second-factor fallback. Optional.
	Guard secondfactor.Provider

	// Playtimes enables last-played enrichment. Optional.
	Playtimes *checker.PlaytimeFetcher

	AppID  uint32
	Timing checker.Timing

	// ImportStagger is the pause between scheduled checks in CheckMany.
	ImportStagger time.Duration

	// AfterCheck observes every completed check, successful or not. Optional;
	// used to feed the audit trail.
	AfterCheck func(ctx context.Context, login string, rec *Record, checkErr error)

	Logger logging.Logger
}

// Service owns the account roster and runs verification checks against it.
type Service struct {
	cfg Config
	sup *checker.Supervisor
	log logging.Logger

	now func() time.Time
}

func NewService(cfg Config) *Service {
	sup := cfg.Supervisor
	if sup == nil {
		sup = checker.NewSupervisor()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Service{cfg: cfg, sup: sup, log: log, now: time.Now}
}

// Add stores a new account. The login must not already exist.
func (s *Service) Add(login, password, sharedSecret string, tags []string) error {
	if login == "" || password == "" {
		return fmt.Errorf("login and password are required")
	}
	if s.cfg.Store.Exists(login) {
		return fmt.Errorf("account %q already exists", login)
	}
	return s.cfg.Store.Put(&Record{
		Login:        login,
		Password:     password,
		SharedSecret: sharedSecret,
		Tags:         tags,
	})
}

// Update replaces the password and shared secret of an existing account.
// Verification fields from the last check are kept.
func (s *Service) Update(login, password, sharedSecret string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	rec, err := s.cfg.Store.Get(login)
	if err != nil {
		return err
	}
	rec.Password = password
	rec.SharedSecret = sharedSecret
	return s.cfg.Store.Put(rec)
}

// SetTags replaces the tag list of an existing account.
func (s *Service) SetTags(login string, tags []string) error {
	rec, err := s.cfg.Store.Get(login)
	if err != nil {
		return err
	}
	rec.Tags = tags
	return s.cfg.Store.Put(rec)
}

// Delete removes one account.
func (s *Service) Delete(login string) error {
	return s.cfg.Store.Delete(login)
}

// DeleteAll removes every account.
func (s *Service) DeleteAll() error {
	return s.cfg.Store.DeleteAll()
}

// Get loads one account.
func (s *Service) Get(login string) (*Record, error) {
	return s.cfg.Store.Get(login)
}

// List returns every account sorted by login, marking those with a check in
// flight as pending.
func (s *Service) List() ([]*Record, error) {
	recs, err := s.cfg.Store.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		rec.Pending = s.sup.IsActive(rec.Login)
	}
	return recs, nil
}

// Check runs a full verification of one stored account. On success the
// record is updated with the result snapshot; on failure only the error
// message is recorded and the previous snapshot survives. At most one check
// per login runs at a time.
func (s *Service) Check(ctx context.Context, login string) (*Record, error) {
	rec, err := s.cfg.Store.Get(login)
	if err != nil {
		return nil, err
	}
	if s.sup.IsActive(login) {
		return nil, common.ErrCheckInProgress
	}

	client, err := s.cfg.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialing platform: %w", err)
	}

	res, err := runSession(ctx, client, checker.Config{
		Credentials:  platform.Credentials{Login: login, Password: rec.Password},
		SharedSecret: rec.SharedSecret,
		AppID:        s.cfg.AppID,
		Codes:        s.cfg.Codes,
		Guard:        s.cfg.Guard,
		Playtimes:    s.cfg.Playtimes,
		Supervisor:   s.sup,
		Timing:       s.cfg.Timing,
		Logger:       s.log,
	})
	if err != nil {
		// A lost admission race means another check for this login is still
		// running; its outcome owns the record, so nothing is persisted here.
		if errors.Is(err, common.ErrCheckInProgress) {
			return nil, err
		}
		rec.Error = err.Error()
		if putErr := s.cfg.Store.Put(rec); putErr != nil {
			s.log.Error(ctx, "persisting failed check", "login", login, "error", putErr)
		}
		s.afterCheck(ctx, login, rec, err)
		return nil, err
	}

	rec.ApplyResult(res, s.now())
	if err := s.cfg.Store.Put(rec); err != nil {
		return nil, fmt.Errorf("persisting check result: %w", err)
	}
	s.afterCheck(ctx, login, rec, nil)
	return rec, nil
}

// CheckMany checks the given logins sequentially with the configured stagger
// between them. Per-login failures are recorded on the records and do not
// stop the sweep; the sweep itself stops only on context cancellation.
func (s *Service) CheckMany(ctx context.Context, logins []string) {
	for i, login := range logins {
		if i > 0 && s.cfg.ImportStagger > 0 {
			select {
			case <-time.After(s.cfg.ImportStagger):
			case <-ctx.Done():
				return
			}
		}
		if _, err := s.Check(ctx, login); err != nil {
			s.log.Warn(ctx, "check failed", "login", login, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Service) afterCheck(ctx context.Context, login string, rec *Record, err error) {
	if s.cfg.AfterCheck != nil {
		s.cfg.AfterCheck(ctx, login, rec, err)
	}
}

// Import reads login:password lines, storing each previously unknown login,
// and returns the added logins in input order. Blank lines and lines without
// a separator are skipped; existing logins are left untouched.
func (s *Service) Import(r io.Reader) ([]string, error) {
	var added []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		login, password, ok := strings.Cut(line, ":")
		if !ok || login == "" || password == "" {
			continue
		}
		if s.cfg.Store.Exists(login) {
			continue
		}
		if err := s.cfg.Store.Put(&Record{Login: login, Password: password}); err != nil {
			return added, err
		}
		added = append(added, login)
	}
	if err := sc.Err(); err != nil {
		return added, fmt.Errorf("reading import list: %w", err)
	}
	return added, nil
}

// Export writes the roster as login:password lines, sorted by login.
func (s *Service) Export(w io.Writer) error {
	recs, err := s.cfg.Store.List()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if _, err := fmt.Fprintf(w, "%s:%s\n", rec.Login, rec.Password); err != nil {
			return err
		}
	}
	return nil
}
