package main

import (
	"os"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/cli"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/logging"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}
