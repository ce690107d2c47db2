package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ShowTree(ctx context.Context) error
	ShowStats(ctx context.Context) error
	AddUtility(ctx context.Context) error
	SetUtilityStatus(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
	ShowAttachment(ctx context.Context, utilityID string) error
	Analyze(ctx context.Context) error
	ShowLink() error
}

// runREPL reads a line from the reader, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on EOF or when the user types "exit" or
// "quit". The reader is the same one the command handlers prompt through, so
// there is a single buffer on stdin and no typed input is swallowed between
// the loop and a handler.
//
// Errors returned by command handlers are ignored here; handlers print their
// own. This keeps the loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("mf %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		atEOF := err != nil
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if atEOF {
				return
			}
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: tree, stats, addutility, setstatus, profile, attachment <id>, analyze, link, logout, exit")
			} else {
				printlnFn("Available commands: register, login, tree, stats, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "t", "tree":
			_ = a.ShowTree(ctx)

		case "stats":
			_ = a.ShowStats(ctx)

		case "addutility":
			_ = a.AddUtility(ctx)

		case "setstatus":
			_ = a.SetUtilityStatus(ctx)

		case "profile":
			_ = a.UpdateProfile(ctx)

		case "attachment":
			if len(args) == 0 {
				printlnFn("Usage: attachment <utility id>")
				continue
			}
			_ = a.ShowAttachment(ctx, args[0])

		case "analyze":
			_ = a.Analyze(ctx)

		case "link":
			_ = a.ShowLink()

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if atEOF {
			return
		}
	}
}
