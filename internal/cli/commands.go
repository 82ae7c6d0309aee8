package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"standcheck/internal/accounts"
	"standcheck/internal/checker"
)

func (a *App) Help() {
	printlnFn("Available commands:")
	printlnFn("  (l)ist              show all accounts")
	printlnFn("  add                 add an account interactively")
	printlnFn("  check <login>       verify one account")
	printlnFn("  tag <login> [t...]  replace the account's tags")
	printlnFn("  delete <login>      remove one account")
	printlnFn("  deleteall           remove every account")
	printlnFn("  import <file>       add accounts from login:password lines")
	printlnFn("  export <file>       write accounts as login:password lines")
	printlnFn("  backup              snapshot the vault to object storage")
	printlnFn("  history [login]     show recent check history")
	printlnFn("  exit | quit         leave the program")
}

func (a *App) List(ctx context.Context) error {
	recs, err := a.svc.List()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No accounts stored.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOGIN\tPRIME\tRANK\tWINS\tLVL\tPENALTY\tTAGS\tSTATUS")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.Login,
			boolMark(rec.Prime),
			formatStat(rec.Rank),
			formatStat(rec.Wins),
			rec.Level,
			formatPenalty(rec),
			strings.Join(rec.Tags, ","),
			formatStatus(rec),
		)
	}
	return w.Flush()
}

func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatStat(v int32) string {
	if v == checker.BanSentinel {
		return "hidden"
	}
	return fmt.Sprintf("%d", v)
}

func formatPenalty(rec *accounts.Record) string {
	switch {
	case rec.PenaltyReason == "":
		return "-"
	case rec.PenaltySeconds == accounts.PenaltyPermanent:
		return rec.PenaltyReason + " (permanent)"
	case rec.PenaltySeconds > 0:
		return fmt.Sprintf("%s until %s", rec.PenaltyReason,
			time.Unix(rec.PenaltySeconds, 0).UTC().Format("2006-01-02 15:04"))
	default:
		return rec.PenaltyReason
	}
}

func formatStatus(rec *accounts.Record) string {
	switch {
	case rec.Pending:
		return "checking..."
	case rec.Error != "":
		return "error: " + rec.Error
	case rec.CheckedAt == 0:
		return "never checked"
	default:
		return "ok"
	}
}

func (a *App) Add(ctx context.Context) error {
	login, err := GetSimpleText(a.reader, "Login:", a.out)
	if err != nil {
		return err
	}
	password, err := GetSimpleText(a.reader, "Password:", a.out)
	if err != nil {
		return err
	}
	secret, err := GetSimpleText(a.reader, "Shared secret (optional):", a.out)
	if err != nil {
		return err
	}
	tagLine, err := GetSimpleText(a.reader, "Tags, comma separated (optional):", a.out)
	if err != nil {
		return err
	}

	if err := a.svc.Add(login, password, secret, splitTags(tagLine)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s.\n", login)
	return nil
}

func splitTags(line string) []string {
	var tags []string
	for _, t := range strings.Split(line, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (a *App) Check(ctx context.Context, login string) error {
	fmt.Fprintf(a.out, "Checking %s...\n", login)
	rec, err := a.svc.Check(ctx, login)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s (%s), level %d\n", rec.Login, rec.Name, rec.Level)
	fmt.Fprintf(a.out, "  prime:       %s\n", boolMark(rec.Prime))
	fmt.Fprintf(a.out, "  penalty:     %s\n", formatPenalty(rec))
	fmt.Fprintf(a.out, "  competitive: rank %s, wins %s\n", formatStat(rec.Rank), formatStat(rec.Wins))
	fmt.Fprintf(a.out, "  wingman:     rank %s, wins %s\n", formatStat(rec.RankWingman), formatStat(rec.WinsWingman))
	fmt.Fprintf(a.out, "  danger zone: rank %s, wins %s\n", formatStat(rec.RankDangerZone), formatStat(rec.WinsDangerZone))
	return nil
}

func (a *App) Tag(ctx context.Context, login string, tags []string) error {
	if err := a.svc.SetTags(login, tags); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tags of %s replaced.\n", login)
	return nil
}

func (a *App) Delete(ctx context.Context, login string) error {
	if err := a.svc.Delete(login); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s.\n", login)
	return nil
}

func (a *App) DeleteAll(ctx context.Context) error {
	confirm, err := GetSimpleText(a.reader, "Delete ALL accounts? Type 'yes' to confirm:", a.out)
	if err != nil {
		return err
	}
	if confirm != "yes" {
		fmt.Fprintln(a.out, "Aborted.")
		return nil
	}
	if err := a.svc.DeleteAll(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All accounts deleted.")
	return nil
}

func (a *App) Import(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	added, err := a.svc.Import(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d accounts.\n", len(added))

	if len(added) > 0 {
		// Checks run in the background; list shows their progress.
		go a.svc.CheckMany(ctx, added)
		fmt.Fprintln(a.out, "Scheduled checks for the imported accounts.")
	}
	return nil
}

func (a *App) Export(ctx context.Context, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := a.svc.Export(f); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s.\n", path)
	return nil
}

func (a *App) Backup(ctx context.Context) error {
	if a.uploader == nil {
		return fmt.Errorf("object storage is not configured")
	}
	key, err := a.uploader.Snapshot(ctx, a.vlt.Path())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Vault snapshot uploaded as %s.\n", key)
	return nil
}

func (a *App) History(ctx context.Context, login string) error {
	if a.history == nil {
		return fmt.Errorf("check history is not configured")
	}
	entries, err := a.history.Recent(ctx, login, 20)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No history.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLOGIN\tOUTCOME\tPRIME\tWINS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CheckedAt.UTC().Format("2006-01-02 15:04"),
			e.Login,
			e.Outcome,
			boolMark(e.Prime),
			formatStat(e.Wins),
		)
	}
	return w.Flush()
}
