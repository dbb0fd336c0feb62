// Package commands implements the tacgoctl CLI commands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/tacplus-go/tacgo/internal/tacacs"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatAuthOutcome renders an authentication outcome in the requested format.
func formatAuthOutcome(outcome tacacs.AuthOutcome, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(authOutcomeToView(outcome), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal auth outcome to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatAuthOutcomeTable(outcome)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatAuthorOutcome renders an authorization outcome in the requested format.
func formatAuthorOutcome(outcome tacacs.AuthorOutcome, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(authorOutcomeToView(outcome), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal author outcome to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatAuthorOutcomeTable(outcome)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatAcctOutcome renders an accounting outcome in the requested format.
func formatAcctOutcome(outcome tacacs.AcctOutcome, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(acctOutcomeToView(outcome), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal acct outcome to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatAcctOutcomeTable(outcome)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatAuthOutcomeTable(o tacacs.AuthOutcome) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Status:\t%s\n", o.Status)
	if len(o.ServerMsg) > 0 {
		fmt.Fprintf(w, "Server Message:\t%s\n", o.ServerMsg)
	}
	if len(o.Data) > 0 {
		fmt.Fprintf(w, "Data:\t%q\n", o.Data)
	}
	if o.NoEcho {
		fmt.Fprintf(w, "No Echo:\ttrue\n")
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush tabwriter: %w", err)
	}

	return buf.String(), nil
}

func formatAuthorOutcomeTable(o tacacs.AuthorOutcome) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Status:\t%s\n", o.Status)
	fmt.Fprintf(w, "Permitted:\t%v\n", o.Permitted())
	if len(o.ServerMsg) > 0 {
		fmt.Fprintf(w, "Server Message:\t%s\n", o.ServerMsg)
	}
	if len(o.Data) > 0 {
		fmt.Fprintf(w, "Data:\t%q\n", o.Data)
	}

	for _, arg := range o.Args {
		kind := "mandatory"
		if arg.Optional {
			kind = "optional"
		}
		fmt.Fprintf(w, "Arg (%s):\t%s\n", kind, arg)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush tabwriter: %w", err)
	}

	return buf.String(), nil
}

func formatAcctOutcomeTable(o tacacs.AcctOutcome) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Status:\t%s\n", o.Status)
	if len(o.ServerMsg) > 0 {
		fmt.Fprintf(w, "Server Message:\t%s\n", o.ServerMsg)
	}
	if len(o.Data) > 0 {
		fmt.Fprintf(w, "Data:\t%q\n", o.Data)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush tabwriter: %w", err)
	}

	return buf.String(), nil
}

// --- View types for clean JSON output ---

type authOutcomeView struct {
	Status    string `json:"status"`
	ServerMsg string `json:"server_msg,omitempty"`
	Data      string `json:"data,omitempty"`
	NoEcho    bool   `json:"no_echo,omitempty"`
}

type argView struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Optional bool   `json:"optional,omitempty"`
}

type authorOutcomeView struct {
	Status    string    `json:"status"`
	Permitted bool      `json:"permitted"`
	ServerMsg string    `json:"server_msg,omitempty"`
	Data      string    `json:"data,omitempty"`
	Args      []argView `json:"args,omitempty"`
}

type acctOutcomeView struct {
	Status    string `json:"status"`
	ServerMsg string `json:"server_msg,omitempty"`
	Data      string `json:"data,omitempty"`
}

func authOutcomeToView(o tacacs.AuthOutcome) authOutcomeView {
	return authOutcomeView{
		Status:    o.Status.String(),
		ServerMsg: string(o.ServerMsg),
		Data:      string(o.Data),
		NoEcho:    o.NoEcho,
	}
}

func authorOutcomeToView(o tacacs.AuthorOutcome) authorOutcomeView {
	args := make([]argView, 0, len(o.Args))
	for _, arg := range o.Args {
		args = append(args, argView{Name: arg.Name, Value: arg.Value, Optional: arg.Optional})
	}

	return authorOutcomeView{
		Status:    o.Status.String(),
		Permitted: o.Permitted(),
		ServerMsg: string(o.ServerMsg),
		Data:      string(o.Data),
		Args:      args,
	}
}

func acctOutcomeToView(o tacacs.AcctOutcome) acctOutcomeView {
	return acctOutcomeView{
		Status:    o.Status.String(),
		ServerMsg: string(o.ServerMsg),
		Data:      string(o.Data),
	}
}
