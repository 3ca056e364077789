package main

import (
	"os"

	"github.com/odyssey-erp/ledgerline/cmd/ledgerctl/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
