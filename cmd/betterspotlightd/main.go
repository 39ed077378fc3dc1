// Command betterspotlightd is the local content-aware desktop search
// daemon: it indexes configured roots, keeps a hybrid lexical/semantic
// index up to date, and serves queries over the MCP stdio transport or
// a Unix-socket daemon protocol for fast CLI round trips.
package main

import (
	"os"

	"github.com/theroutercompany/betterspotlight/cmd/betterspotlightd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
