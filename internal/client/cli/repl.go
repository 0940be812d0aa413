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
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Refresh(ctx context.Context) error
	Update(ctx context.Context) error
	Register(ctx context.Context) error
	Positions(ctx context.Context) error
	Status(ctx context.Context) error
	Stats(ctx context.Context) error
	Crew(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the crew CLI.
//
// It reads a line from in (the same reader the command prompts use), parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
//	Not signed in:
//	  - help           show available commands
//	  - login          sign in with crew id and password
//	  - register       request enrollment and confirm the emailed code
//	  - positions      list crew positions
//	  - status         session, connectivity and registration state
//	  - exit | quit     leave the program
//
//	Signed in, additionally:
//	  - whoami         show the profile, refreshed when online
//	  - update         change profile fields
//	  - refresh        rotate the session token
//	  - crew ...       list, show, add, edit or delete roster entries
//	  - logout         sign out
//
// Any errors returned by command handlers are ignored here; handlers print
// their own messages. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("crew %s> ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, update, refresh, crew, positions, status, stats, logout, exit")
			} else {
				printlnFn("Available commands: login, register, positions, status, stats, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami", "me":
			_ = a.WhoAmI(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "update":
			_ = a.Update(ctx)

		case "register":
			_ = a.Register(ctx)

		case "positions":
			_ = a.Positions(ctx)

		case "status":
			_ = a.Status(ctx)

		case "stats":
			_ = a.Stats(ctx)

		case "crew":
			_ = a.Crew(ctx, parts[1:])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
