// Tacgoctl is an ad-hoc CLI for running TACACS+ (RFC 8907) exchanges
// against a server: authenticate, authorize, account, and monitor.
package main

import "github.com/tacplus-go/tacgo/cmd/tacgoctl/commands"

func main() {
	commands.Execute()
}
