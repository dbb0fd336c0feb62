package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tacplus-go/tacgo/internal/tacacs"
)

// errShellNested is returned when `shell` is invoked from inside the shell.
var errShellNested = errors.New("already inside an interactive shell")

// The interactive shell holds one Connection open across commands, so that
// when the server grants single-connection mode consecutive exchanges
// multiplex on one TCP stream instead of redialing per command. shellConn
// is nil until the first command dials, and is dropped whenever a command
// fails so the next command gets a fresh stream.
var (
	shellActive bool
	shellConn   *tacacs.Connection
)

// acquireConn hands a command its Connection. Outside the shell every
// command dials its own connection and release closes it. Inside the shell
// the held connection is reused (dialing lazily on first use) and release
// is a no-op; the shell owns the close.
func acquireConn(ctx context.Context) (*tacacs.Connection, func(), error) {
	if !shellActive {
		conn, err := dialServer(ctx)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() { _ = conn.Close() }, nil
	}

	if shellConn == nil {
		conn, err := dialServer(ctx)
		if err != nil {
			return nil, nil, err
		}
		shellConn = conn
	}
	return shellConn, func() {}, nil
}

// closeShellConn drops the shell's held connection, if any.
func closeShellConn() {
	if shellConn != nil {
		_ = shellConn.Close()
		shellConn = nil
	}
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive tacgoctl shell",
		Long:  "Launches a REPL that accepts tacgoctl subcommands and keeps one connection to the server open across them, multiplexing sessions on it when the server grants single-connection mode. Type 'help', 'exit', or 'quit'.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if shellActive {
				return errShellNested
			}

			// Prefer single-connection mode for the held stream; a server
			// that refuses simply costs a redial per command.
			restoreSingle := singleConnection
			singleConnection = true
			shellActive = true
			defer func() {
				shellActive = false
				singleConnection = restoreSingle
				closeShellConn()
			}()

			printShellBanner()
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("tacgoctl> ")

			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())

				switch {
				case line == "exit" || line == "quit":
					return nil
				case line == "help" || line == "?":
					printShellHelp()
				case line != "":
					rootCmd.SetArgs(strings.Fields(line))

					if err := rootCmd.Execute(); err != nil {
						fmt.Fprintln(os.Stderr, "Error:", err)
						// The failure may have poisoned the held stream
						// (sequence violation, refused multiplexing, I/O
						// error); drop it so the next command redials.
						closeShellConn()
					}
				}

				fmt.Print("tacgoctl> ")
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			return nil
		},
	}
}

// printShellBanner prints a welcome message when the shell starts.
func printShellBanner() {
	fmt.Printf("Tacgo interactive shell, server %s.\n", serverAddr)
	fmt.Println("Type 'help' for available commands, 'exit' to quit.")
	fmt.Println()
}

// shellCommands lists the available commands for the interactive shell help output.
var shellCommands = []struct {
	name string
	desc string
}{
	{"authenticate --user <name>", "Run an authentication exchange"},
	{"authorize --user <name> [args]", "Run an authorization exchange"},
	{"account --user <name> [args]", "Send an accounting record"},
	{"monitor --user <name>", "Probe with periodic accounting watchdogs"},
	{"version", "Print build information"},
	{"help", "Show this help message"},
	{"exit / quit", "Leave the interactive shell"},
}

// printShellHelp prints a formatted list of available shell commands.
func printShellHelp() {
	fmt.Println("Available commands:")
	fmt.Println()

	for _, cmd := range shellCommands {
		fmt.Printf("  %-34s %s\n", cmd.name, cmd.desc)
	}

	fmt.Println()
}
