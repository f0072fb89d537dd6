package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	isAdmin() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Summary(ctx context.Context) error
	AddTask(ctx context.Context) error
	AddTransaction(ctx context.Context) error
	Tasks(ctx context.Context, filter string) error
	SetStatus(ctx context.Context, taskID, status string) error
	Transactions(ctx context.Context, account string) error
	Admin(ctx context.Context) error
	Toggle(ctx context.Context, userID string) error
	Export(ctx context.Context) error
}

// runREPL reads commands from reader, one per line, and dispatches them to a.
//
// Commands that need a session are refused while signed out, and admin
// commands are refused unless a reports an admin. Errors returned by
// handlers are ignored here; handlers report their own errors. The loop
// exits on end of input or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("lifedash%s> ", withSpace(statusFn())))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if needsSession(cmd) && !a.isLoggedIn() {
			printlnFn("Please log in first")
			continue
		}
		if needsAdmin(cmd) && !a.isAdmin() {
			printlnFn("Admin access required")
			continue
		}

		switch cmd {
		case "help":
			printlnFn(helpText(a))

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.Whoami(ctx)

		case "summary":
			_ = a.Summary(ctx)

		case "addtask":
			_ = a.AddTask(ctx)

		case "addtx":
			_ = a.AddTransaction(ctx)

		case "tasks":
			_ = a.Tasks(ctx, firstArg(args))

		case "status":
			if len(args) < 2 {
				printlnFn("Usage: status <task-id> <pending|in_progress|completed>")
				continue
			}
			_ = a.SetStatus(ctx, args[0], args[1])

		case "txs":
			_ = a.Transactions(ctx, firstArg(args))

		case "admin":
			_ = a.Admin(ctx)

		case "toggle":
			if len(args) == 0 {
				printlnFn("Usage: toggle <user-id>")
				continue
			}
			_ = a.Toggle(ctx, args[0])

		case "export":
			_ = a.Export(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func needsSession(cmd string) bool {
	switch cmd {
	case "logout", "whoami", "summary", "addtask", "addtx", "tasks", "status", "txs", "admin", "toggle", "export":
		return true
	}
	return false
}

func needsAdmin(cmd string) bool {
	switch cmd {
	case "admin", "toggle", "export":
		return true
	}
	return false
}

func helpText(a execIface) string {
	switch {
	case a.isAdmin():
		return "Available commands: whoami, summary, addtask, addtx, tasks [filter], status <task-id> <status>, txs [account], admin, toggle <user-id>, export, logout, exit"
	case a.isLoggedIn():
		return "Available commands: whoami, summary, addtask, addtx, tasks [filter], status <task-id> <status>, txs [account], logout, exit"
	}
	return "Available commands: register, login, exit"
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func withSpace(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}
