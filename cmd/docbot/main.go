package main

import (
	"os"

	"github.com/h2200080115/telegram-bot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
