package main

import (
	"fmt"
	"os"

	"github.com/alexanderramin/togglguard/internal/cli"
	"github.com/alexanderramin/togglguard/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rootCmd := cli.NewRootCmd(&cli.Runner{Config: cfg})
	return rootCmd.Execute()
}
