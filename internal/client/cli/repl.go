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
	Passwd(ctx context.Context) error
	Submit(ctx context.Context) error
	Show(ctx context.Context) error
	List(ctx context.Context) error
	Delete(ctx context.Context) error
	AdminDecrypt(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the CareVault CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Command handlers print their own errors; the loop itself never aborts on a
// failed command.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("cv> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: submit, show, (l)ist, delete, passwd, admin-decrypt, logout, exit")
			} else {
				printlnFn("Available commands: register, login, admin-decrypt, exit")
			}

		case "register":
			runCommand(a.Register, ctx)

		case "login":
			runCommand(a.Login, ctx)

		case "logout":
			runCommand(a.Logout, ctx)

		case "passwd":
			runCommand(a.Passwd, ctx)

		case "submit", "set":
			runCommand(a.Submit, ctx)

		case "show":
			runCommand(a.Show, ctx)

		case "l", "list":
			runCommand(a.List, ctx)

		case "delete":
			runCommand(a.Delete, ctx)

		case "admin-decrypt":
			runCommand(a.AdminDecrypt, ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func runCommand(fn func(ctx context.Context) error, ctx context.Context) {
	if err := fn(ctx); err != nil {
		printlnFn("Error:", err.Error())
	}
}
