package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tacplus-go/tacgo/internal/tacacs"
)

// errUnknownRecordType is returned for a record type outside start, stop,
// and watchdog.
var errUnknownRecordType = errors.New("unknown record type, expected start, stop, or watchdog")

func accountCmd() *cobra.Command {
	var (
		user       string
		service    string
		privLvl    uint8
		recordType string
		argsPath   string
	)

	cmd := &cobra.Command{
		Use:   "account [name=value ...]",
		Short: "Send a TACACS+ accounting record",
		Long:  "Sends an accounting REQUEST (start, stop, or watchdog) carrying the given arguments and prints the server's acknowledgment.",
		RunE: func(_ *cobra.Command, positional []string) error {
			if user == "" {
				return errUserRequired
			}

			flagsVal, err := parseRecordType(recordType)
			if err != nil {
				return fmt.Errorf("parse record type: %w", err)
			}

			svc, err := parseService(service)
			if err != nil {
				return fmt.Errorf("parse service: %w", err)
			}

			args, err := collectArgs(positional, argsPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			conn, release, err := acquireConn(ctx)
			if err != nil {
				return err
			}
			defer release()

			sess, err := conn.OpenSession(tacacs.PacketAccounting)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}

			outcome, err := sess.Account(ctx, tacacs.AcctRequest{
				Flags:        flagsVal,
				AuthenMethod: tacacs.AuthenMethodTACACSPlus,
				PrivLvl:      privLvl,
				AuthenType:   tacacs.AuthenTypeASCII,
				Service:      svc,
				User:         []byte(user),
				Port:         []byte(clientPort),
				RemAddr:      []byte(remAddr),
				Args:         args,
			})
			if err != nil {
				return fmt.Errorf("account: %w", err)
			}

			out, err := formatAcctOutcome(outcome, outputFormat)
			if err != nil {
				return fmt.Errorf("format outcome: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&user, "user", "", "username the record is for (required)")
	flags.StringVar(&service, "service", "login", "requesting service: login, enable, ppp, none")
	flags.Uint8Var(&privLvl, "priv-lvl", 1, "privilege level (0-15)")
	flags.StringVar(&recordType, "type", "stop", "record type: start, stop, watchdog")
	flags.StringVarP(&argsPath, "args-file", "f", "", "YAML file holding an argument list")

	return cmd
}

// parseRecordType converts a CLI string to the accounting flags octet.
func parseRecordType(s string) (tacacs.AcctFlags, error) {
	switch s {
	case "start":
		return tacacs.AcctFlagStart, nil
	case "stop":
		return tacacs.AcctFlagStop, nil
	case "watchdog":
		return tacacs.AcctFlagWatchdog, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownRecordType, s)
	}
}
