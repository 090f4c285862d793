// divinequiz: the divine quiz funnel server.
//
// One binary serves the visitor funnel and admin API over HTTP, exposes
// operator tools over MCP stdio, and carries a few maintenance commands.
//
// Usage:
//
//	divinequiz serve                 # HTTP API
//	divinequiz mcp                   # MCP server (stdio transport)
//	divinequiz code --day 15 ...     # compute a divine code
//	divinequiz questions validate    # check the stored question bank
//	divinequiz admin hash-password   # bcrypt a password for admin.password_hash
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
