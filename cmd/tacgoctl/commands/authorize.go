package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tacplus-go/tacgo/internal/tacacs"
)

// argFile is the YAML shape accepted by --args-file: a list of
// name/value/optional entries, richer than the positional name=value form.
type argFile struct {
	Args []struct {
		Name     string `yaml:"name"`
		Value    string `yaml:"value"`
		Optional bool   `yaml:"optional"`
	} `yaml:"args"`
}

func authorizeCmd() *cobra.Command {
	var (
		user     string
		service  string
		privLvl  uint8
		argsPath string
	)

	cmd := &cobra.Command{
		Use:   "authorize [name=value ...]",
		Short: "Run a TACACS+ authorization exchange",
		Long:  "Sends an authorization REQUEST carrying the given arguments and prints the server's decision. Arguments come from positional name=value pairs, an --args-file YAML list, or both.",
		RunE: func(_ *cobra.Command, positional []string) error {
			if user == "" {
				return errUserRequired
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

			sess, err := conn.OpenSession(tacacs.PacketAuthorization)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}

			outcome, err := sess.Authorize(ctx, tacacs.AuthorRequest{
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
				return fmt.Errorf("authorize: %w", err)
			}

			out, err := formatAuthorOutcome(outcome, outputFormat)
			if err != nil {
				return fmt.Errorf("format outcome: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&user, "user", "", "username the request is made for (required)")
	flags.StringVar(&service, "service", "login", "requesting service: login, enable, ppp, none")
	flags.Uint8Var(&privLvl, "priv-lvl", 1, "privilege level (0-15)")
	flags.StringVarP(&argsPath, "args-file", "f", "", "YAML file holding an argument list")

	return cmd
}

// collectArgs merges positional name=value pairs with the entries of an
// optional YAML argument file. File entries come first, positional pairs
// after, preserving order within each source.
func collectArgs(positional []string, argsPath string) (tacacs.Args, error) {
	var args tacacs.Args

	if argsPath != "" {
		fileArgs, err := loadArgsFile(argsPath)
		if err != nil {
			return nil, err
		}
		args = append(args, fileArgs...)
	}

	cliArgs, err := parseCLIArgs(positional)
	if err != nil {
		return nil, err
	}
	args = append(args, cliArgs...)

	return args, nil
}

// loadArgsFile reads a YAML argument list from path.
func loadArgsFile(path string) (tacacs.Args, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read args file %s: %w", path, err)
	}

	var f argFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse args file %s: %w", path, err)
	}

	args := make(tacacs.Args, 0, len(f.Args))
	for _, a := range f.Args {
		args = append(args, tacacs.Argument{Name: a.Name, Value: a.Value, Optional: a.Optional})
	}
	return args, nil
}
