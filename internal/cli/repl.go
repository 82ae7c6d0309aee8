package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests provide a stub.
type execIface interface {
	Help()
	List(ctx context.Context) error
	Add(ctx context.Context) error
	Check(ctx context.Context, login string) error
	Tag(ctx context.Context, login string, tags []string) error
	Delete(ctx context.Context, login string) error
	DeleteAll(ctx context.Context) error
	Import(ctx context.Context, path string) error
	Export(ctx context.Context, path string) error
	Backup(ctx context.Context) error
	History(ctx context.Context, login string) error
}

// runREPL reads commands line by line and dispatches to a. Handler errors
// are reported and the loop continues; it exits on EOF or exit/quit.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("standcheck> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			a.Help()

		case "l", "list":
			err = a.List(ctx)

		case "add":
			err = a.Add(ctx)

		case "check":
			if len(args) != 1 {
				printlnFn("usage: check <login>")
				continue
			}
			err = a.Check(ctx, args[0])

		case "tag":
			if len(args) < 1 {
				printlnFn("usage: tag <login> [tags...]")
				continue
			}
			err = a.Tag(ctx, args[0], args[1:])

		case "delete":
			if len(args) != 1 {
				printlnFn("usage: delete <login>")
				continue
			}
			err = a.Delete(ctx, args[0])

		case "deleteall":
			err = a.DeleteAll(ctx)

		case "import":
			if len(args) != 1 {
				printlnFn("usage: import <file>")
				continue
			}
			err = a.Import(ctx, args[0])

		case "export":
			if len(args) != 1 {
				printlnFn("usage: export <file>")
				continue
			}
			err = a.Export(ctx, args[0])

		case "backup":
			err = a.Backup(ctx)

		case "history":
			login := ""
			if len(args) > 0 {
				login = args[0]
			}
			err = a.History(ctx, login)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
