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

// Sentinel errors for CLI validation.
var (
	errUserRequired     = errors.New("--user flag is required")
	errPasswordRequired = errors.New("--password flag is required for PAP")
	errDataRequired     = errors.New("--data flag is required for CHAP (chap_id + challenge + response)")
	errUnknownAuthType  = errors.New("unknown authentication type, expected ascii, pap, or chap")
)

func authenticateCmd() *cobra.Command {
	var (
		user     string
		password string
		data     string
		authType string
		service  string
		privLvl  uint8
	)

	cmd := &cobra.Command{
		Use:   "authenticate",
		Short: "Run a TACACS+ authentication exchange",
		Long:  "Sends an authentication START and drives the exchange to a terminal status. ASCII logins prompt interactively for whatever the server asks (username, password).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			at, err := parseAuthenType(authType)
			if err != nil {
				return fmt.Errorf("parse authentication type: %w", err)
			}

			svc, err := parseService(service)
			if err != nil {
				return fmt.Errorf("parse service: %w", err)
			}

			start := tacacs.AuthenStart{
				Action:     tacacs.AuthenActionLogin,
				PrivLvl:    privLvl,
				AuthenType: at,
				Service:    svc,
				User:       []byte(user),
				Port:       []byte(clientPort),
				RemAddr:    []byte(remAddr),
			}

			switch at {
			case tacacs.AuthenTypePAP:
				if user == "" {
					return errUserRequired
				}
				if password == "" {
					return errPasswordRequired
				}
				start.Data = []byte(password)
			case tacacs.AuthenTypeCHAP:
				if user == "" {
					return errUserRequired
				}
				if data == "" {
					return errDataRequired
				}
				start.Data = []byte(data)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			conn, release, err := acquireConn(ctx)
			if err != nil {
				return err
			}
			defer release()

			sess, err := conn.OpenSession(tacacs.PacketAuthentication)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}

			outcome, err := sess.Authenticate(ctx, start)
			if err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}

			outcome, err = driveInteractive(ctx, sess, outcome)
			if err != nil {
				return err
			}

			out, err := formatAuthOutcome(outcome, outputFormat)
			if err != nil {
				return fmt.Errorf("format outcome: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&user, "user", "", "username (may be empty for ASCII, the server will prompt)")
	flags.StringVar(&password, "password", "", "password for PAP authentication")
	flags.StringVar(&data, "data", "", "raw data field for CHAP authentication")
	flags.StringVar(&authType, "type", "ascii", "authentication type: ascii, pap, chap")
	flags.StringVar(&service, "service", "login", "requesting service: login, enable, ppp, none")
	flags.Uint8Var(&privLvl, "priv-lvl", 1, "privilege level (0-15)")

	return cmd
}

// driveInteractive answers the server's GETUSER/GETPASS/GETDATA prompts from
// stdin until the exchange reaches a terminal status.
func driveInteractive(ctx context.Context, sess *tacacs.Session, outcome tacacs.AuthOutcome) (tacacs.AuthOutcome, error) {
	reader := bufio.NewReader(os.Stdin)

	for outcome.AwaitingInput() {
		prompt := string(outcome.ServerMsg)
		if prompt == "" {
			prompt = outcome.Status.String() + ": "
		}
		fmt.Print(prompt)

		line, err := reader.ReadString('\n')
		if err != nil {
			// Abort the sequence so the server is not left mid-exchange.
			_, _ = sess.Continue(ctx, nil, true)
			return tacacs.AuthOutcome{}, fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		outcome, err = sess.Continue(ctx, []byte(line), false)
		if err != nil {
			return tacacs.AuthOutcome{}, fmt.Errorf("continue: %w", err)
		}
	}

	return outcome, nil
}

// parseAuthenType converts a CLI string to the protocol AuthenType.
func parseAuthenType(s string) (tacacs.AuthenType, error) {
	switch s {
	case "ascii":
		return tacacs.AuthenTypeASCII, nil
	case "pap":
		return tacacs.AuthenTypePAP, nil
	case "chap":
		return tacacs.AuthenTypeCHAP, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownAuthType, s)
	}
}

// errUnknownService is returned for a service name outside the supported set.
var errUnknownService = errors.New("unknown service, expected login, enable, ppp, or none")

// parseService converts a CLI string to the protocol AuthenService.
func parseService(s string) (tacacs.AuthenService, error) {
	switch s {
	case "login":
		return tacacs.ServiceLogin, nil
	case "enable":
		return tacacs.ServiceEnable, nil
	case "ppp":
		return tacacs.ServicePPP, nil
	case "none":
		return tacacs.ServiceNone, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownService, s)
	}
}
