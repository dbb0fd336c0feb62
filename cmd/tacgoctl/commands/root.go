package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tacplus-go/tacgo/internal/tacacs"
)

// errInvalidArgument is returned when a positional argument string violates
// the name{=|*}value rule.
var errInvalidArgument = errors.New("invalid argument")

var (
	// serverAddr is the TACACS+ server address (host:port).
	serverAddr string

	// secret is the shared obfuscation key. Empty runs the exchange with
	// the UNENCRYPTED flag set.
	secret string

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// timeout bounds each exchange, dial included.
	timeout time.Duration

	// clientPort is the client port name carried on request bodies.
	clientPort string

	// remAddr is the remote address carried on request bodies.
	remAddr string

	// singleConnection requests single-connection multiplexing.
	singleConnection bool

	// allowClearText permits clear-text replies despite a configured secret.
	allowClearText bool
)

// rootCmd is the top-level cobra command for tacgoctl.
var rootCmd = &cobra.Command{
	Use:   "tacgoctl",
	Short: "CLI client for TACACS+ servers",
	Long:  "tacgoctl runs authentication, authorization, and accounting exchanges against a TACACS+ (RFC 8907) server.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverAddr, "server", "localhost:49", "TACACS+ server address (host:port)")
	pf.StringVar(&secret, "secret", "", "shared secret for body obfuscation (empty sends UNENCRYPTED)")
	pf.StringVar(&outputFormat, "format", "table", "output format: table, json")
	pf.DurationVar(&timeout, "timeout", 10*time.Second, "per-exchange timeout, dial included")
	pf.StringVar(&clientPort, "port", "tty0", "client port name reported to the server")
	pf.StringVar(&remAddr, "rem-addr", "localhost", "remote address reported to the server")
	pf.BoolVar(&singleConnection, "single-connection", false, "request single-connection multiplexing")
	pf.BoolVar(&allowClearText, "allow-clear-text", false, "accept clear-text replies despite a configured secret")

	rootCmd.AddCommand(authenticateCmd())
	rootCmd.AddCommand(authorizeCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// dialServer establishes the TCP stream and wraps it in a Connection using
// the persistent flags. ctx bounds the TCP dial only; the reader's lifetime
// is bound to the stream, so a Connection the shell holds open outlives any
// per-command timeout. The caller owns the returned Connection and must
// Close it.
func dialServer(ctx context.Context) (*tacacs.Connection, error) {
	var d net.Dialer
	stream, err := d.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverAddr, err)
	}

	conn, err := tacacs.Dial(context.Background(), stream,
		tacacs.WithSecret([]byte(secret)),
		tacacs.WithAllowClearTextReplies(allowClearText),
		tacacs.WithPreferSingleConnection(singleConnection),
	)
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("wrap connection: %w", err)
	}

	return conn, nil
}

// parseCLIArgs converts positional "name=value" / "name*value" strings into
// an argument list. The "*" separator marks an argument optional
// (RFC 8907 Section 3.7).
func parseCLIArgs(raw []string) (tacacs.Args, error) {
	args := make(tacacs.Args, 0, len(raw))
	for _, s := range raw {
		eq := strings.IndexByte(s, '=')
		star := strings.IndexByte(s, '*')

		var sepIdx int
		var optional bool
		switch {
		case eq == -1 && star == -1:
			return nil, fmt.Errorf("%w: %q has no '=' or '*' separator", errInvalidArgument, s)
		case eq == -1 || (star != -1 && star < eq):
			sepIdx, optional = star, true
		default:
			sepIdx, optional = eq, false
		}

		if sepIdx == 0 {
			return nil, fmt.Errorf("%w: %q has an empty name", errInvalidArgument, s)
		}

		args = append(args, tacacs.Argument{
			Name:     s[:sepIdx],
			Value:    s[sepIdx+1:],
			Optional: optional,
		})
	}
	return args, nil
}
