package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls   []string
	listErr error
}

func (f *fakeExec) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeExec) Help()                          { f.record("help") }
func (f *fakeExec) List(ctx context.Context) error { f.record("list"); return f.listErr }
func (f *fakeExec) Add(ctx context.Context) error  { f.record("add"); return nil }
func (f *fakeExec) Check(ctx context.Context, login string) error {
	f.record("check %s", login)
	return nil
}
func (f *fakeExec) Tag(ctx context.Context, login string, tags []string) error {
	f.record("tag %s %s", login, strings.Join(tags, ","))
	return nil
}
func (f *fakeExec) Delete(ctx context.Context, login string) error {
	f.record("delete %s", login)
	return nil
}
func (f *fakeExec) DeleteAll(ctx context.Context) error { f.record("deleteall"); return nil }
func (f *fakeExec) Import(ctx context.Context, path string) error {
	f.record("import %s", path)
	return nil
}
func (f *fakeExec) Export(ctx context.Context, path string) error {
	f.record("export %s", path)
	return nil
}
func (f *fakeExec) Backup(ctx context.Context) error { f.record("backup"); return nil }
func (f *fakeExec) History(ctx context.Context, login string) error {
	f.record("history %s", login)
	return nil
}

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, fmt.Sprintln(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func runWithInput(t *testing.T, f *fakeExec, input string) {
	t.Helper()
	runREPL(context.Background(), f, bufio.NewScanner(strings.NewReader(input)))
}

func TestREPL_Dispatch(t *testing.T) {
	captureOutput(t)
	f := &fakeExec{}

	runWithInput(t, f, strings.Join([]string{
		"help",
		"list",
		"l",
		"add",
		"check alice",
		"tag alice prime main",
		"delete bob",
		"deleteall",
		"import in.txt",
		"export out.txt",
		"backup",
		"history",
		"history alice",
		"exit",
	}, "\n"))

	assert.Equal(t, []string{
		"help",
		"list",
		"list",
		"add",
		"check alice",
		"tag alice prime,main",
		"delete bob",
		"deleteall",
		"import in.txt",
		"export out.txt",
		"backup",
		"history ",
		"history alice",
	}, f.calls)
}

func TestREPL_UsageMessages(t *testing.T) {
	lines := captureOutput(t)
	f := &fakeExec{}

	runWithInput(t, f, "check\ntag\ndelete\nimport\nexport\nexit\n")

	assert.Empty(t, f.calls, "malformed commands must not dispatch")
	joined := strings.Join(*lines, "")
	assert.Contains(t, joined, "usage: check <login>")
	assert.Contains(t, joined, "usage: tag <login>")
	assert.Contains(t, joined, "usage: delete <login>")
	assert.Contains(t, joined, "usage: import <file>")
	assert.Contains(t, joined, "usage: export <file>")
}

func TestREPL_UnknownCommand(t *testing.T) {
	lines := captureOutput(t)

	runWithInput(t, &fakeExec{}, "frobnicate\nexit\n")
	assert.Contains(t, strings.Join(*lines, ""), "Unknown command: frobnicate")
}

func TestREPL_ReportsHandlerErrors(t *testing.T) {
	lines := captureOutput(t)
	f := &fakeExec{listErr: errors.New("vault unavailable")}

	runWithInput(t, f, "list\nexit\n")
	assert.Contains(t, strings.Join(*lines, ""), "Error: vault unavailable")
}

func TestREPL_ExitsOnEOF(t *testing.T) {
	captureOutput(t)
	f := &fakeExec{}

	runWithInput(t, f, "list\n") // no exit, scanner hits EOF
	assert.Equal(t, []string{"list"}, f.calls)
}

func TestREPL_SkipsBlankLines(t *testing.T) {
	captureOutput(t)
	f := &fakeExec{}

	runWithInput(t, f, "\n\nlist\n\nexit\n")
	assert.Equal(t, []string{"list"}, f.calls)
}
