// Package cli is the interactive front end: vault unlock, the command REPL
// and the wiring of all optional integrations.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"standcheck/internal/accounts"
	"standcheck/internal/backup"
	"standcheck/internal/checker"
	"standcheck/internal/common"
	"standcheck/internal/config"
	"standcheck/internal/filex"
	"standcheck/internal/history"
	"standcheck/internal/logging"
	"standcheck/internal/platform/gateway"
	"standcheck/internal/secondfactor"
	"standcheck/internal/vault"
)

const maxPasswordAttempts = 3

type App struct {
	cfg *config.Config
	log logging.Logger

	svc      *accounts.Service
	vlt      *vault.Vault
	uploader *backup.Uploader
	history  history.Repository

	reader *bufio.Reader
	out    io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}
	a := &App{
		cfg:    cfg,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	vlt, err := a.openVault()
	if err != nil {
		return nil, err
	}
	a.vlt = vlt

	if cfg.HistoryDSN != "" {
		repo, err := history.Open(ctx, cfg.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting check history: %w", err)
		}
		a.history = repo
	}

	if cfg.S3Bucket != "" {
		a.uploader = backup.NewUploader(backup.Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
		})
	}

	var playtimes *checker.PlaytimeFetcher
	if cfg.ProfileBaseURL != "" {
		playtimes = checker.NewPlaytimeFetcher(cfg.ProfileBaseURL, cfg.AppID, nil)
	}

	timing := checker.DefaultTiming()
	timing.StateTimeout = cfg.StateTimeout

	a.svc = accounts.NewService(accounts.Config{
		Store:         accounts.NewStore(vlt),
		Dial:          gateway.NewDialer(cfg.GatewayAddr, cfg.GatewayToken, log),
		Codes:         secondfactor.NewCodeGenerator(cfg.TimeEndpoint, nil),
		Guard:         a.guardProvider(),
		Playtimes:     playtimes,
		AppID:         cfg.AppID,
		Timing:        timing,
		ImportStagger: cfg.ImportStagger,
		AfterCheck:    a.afterCheck,
		Logger:        log,
	})

	return a, nil
}

// openVault prompts for the master password and unlocks (or creates) the
// vault, retrying on a wrong password.
func (a *App) openVault() (*vault.Vault, error) {
	if dir := filepath.Dir(a.cfg.VaultPath); dir != "." {
		if err := filex.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("creating vault directory: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		pw, err := GetPassword(a.out, "Enter vault password: ")
		if err != nil {
			return nil, err
		}

		vlt, err := vault.Open(a.cfg.VaultPath, pw)
		common.WipeByteArray(pw)
		if err == nil {
			return vlt, nil
		}
		if !errors.Is(err, common.ErrAuth) || attempt >= maxPasswordAttempts {
			return nil, err
		}
		fmt.Fprintln(a.out, "Wrong password, try again.")
	}
}

// guardProvider prompts for a second-factor code delivered out of band.
// Empty input cancels the check.
func (a *App) guardProvider() secondfactor.Provider {
	return secondfactor.ProviderFunc(func(ctx context.Context, login string) (string, error) {
		return GetSimpleText(a.reader,
			fmt.Sprintf("Enter guard code for %s (empty to cancel):", login), a.out)
	})
}

func (a *App) afterCheck(ctx context.Context, login string, rec *accounts.Record, checkErr error) {
	if a.history == nil {
		return
	}
	if err := a.history.Record(ctx, history.EntryFromCheck(login, rec, checkErr)); err != nil {
		a.log.Warn(ctx, "recording check history failed", "login", login, "error", err)
	}
}

func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "standcheck: type 'help' for commands")
	runREPL(ctx, a, bufio.NewScanner(os.Stdin))
}
