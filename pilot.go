package main

import (
	"os"

	"github.com/joho/godotenv"

	cli "github.com/neboloop/pilot/cmd/pilot"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	if err := cli.SetupRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
