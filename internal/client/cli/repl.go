package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/ipdash/internal/client/session"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	state() session.State
	status() string
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Me(ctx context.Context) error
	Lookup(ctx context.Context, ip string) error
	History(ctx context.Context) error
	Delete(ctx context.Context, ids []string) error
	Logins(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the ipdash CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF, on ctx cancellation
// or when the user types "exit" or "quit".
//
// Prompt & Commands
//
//	Not logged in:
//	  - help           - show available commands
//	  - register       - create an account
//	  - login          - authenticate
//	  - exit | quit    - leave the program
//
//	Logged in:
//	  - help           - show available commands
//	  - lookup [ip]    - geolocate ip, or your own address without one
//	  - history        - list saved lookups
//	  - delete <id...> - delete saved lookups
//	  - logins         - list your recent logins
//	  - me             - fetch your profile from the server
//	  - whoami         - show the local session and credential
//	  - logout         - log out
//	  - exit | quit    - leave the program
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "ipdash %s> ", a.status())

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.state() == session.Authenticated {
				fmt.Fprintln(out, "Available commands: lookup [ip], history, delete <id...>, logins, me, whoami, logout, exit")
			} else {
				fmt.Fprintln(out, "Available commands: register, login, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "me":
			cmdErr = a.Me(ctx)

		case "lookup":
			ip := ""
			if len(args) > 0 {
				ip = args[0]
			}
			cmdErr = a.Lookup(ctx, ip)

		case "history":
			cmdErr = a.History(ctx)

		case "delete":
			if len(args) == 0 {
				fmt.Fprintln(out, "Usage: delete <id...>")
				continue
			}
			cmdErr = a.Delete(ctx, args)

		case "logins":
			cmdErr = a.Logins(ctx)

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(out, "Error:", cmdErr)
		}
	}
}
