package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tacplus-go/tacgo/internal/tacacs"
)

func monitorCmd() *cobra.Command {
	var (
		user     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Probe the server with periodic accounting watchdogs",
		Long:  "Sends an accounting WATCHDOG record on every tick and prints one result line per probe, until interrupted (Ctrl+C).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if user == "" {
				return errUserRequired
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case tick := <-ticker.C:
					line, err := probeWatchdog(ctx, user)
					if err != nil {
						// Context cancellation (Ctrl+C) is expected, not an error.
						if errors.Is(err, context.Canceled) {
							return nil
						}
						// Inside the shell the failure may have poisoned
						// the held stream; drop it so the next tick redials.
						closeShellConn()
						line = "error: " + err.Error()
					}
					fmt.Printf("[%s] %s\n", tick.Format(time.RFC3339), line)
				}
			}
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "username carried on the watchdog records (required)")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "time between probes")

	return cmd
}

// probeWatchdog runs one accounting WATCHDOG exchange on the connection
// acquireConn provides (a fresh one outside the shell, the shell's held one
// inside it) and renders the result as a single line.
func probeWatchdog(ctx context.Context, user string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, release, err := acquireConn(probeCtx)
	if err != nil {
		return "", err
	}
	defer release()

	sess, err := conn.OpenSession(tacacs.PacketAccounting)
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}

	outcome, err := sess.Account(probeCtx, tacacs.AcctRequest{
		Flags:        tacacs.AcctFlagWatchdog,
		AuthenMethod: tacacs.AuthenMethodTACACSPlus,
		PrivLvl:      1,
		AuthenType:   tacacs.AuthenTypeASCII,
		Service:      tacacs.ServiceLogin,
		User:         []byte(user),
		Port:         []byte(clientPort),
		RemAddr:      []byte(remAddr),
		Args: tacacs.Args{
			{Name: "service", Value: "tacgoctl-monitor"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("account: %w", err)
	}

	line := fmt.Sprintf("watchdog  server=%s  status=%s", serverAddr, outcome.Status)
	if len(outcome.ServerMsg) > 0 {
		line += "  msg=" + string(outcome.ServerMsg)
	}
	return line, nil
}
