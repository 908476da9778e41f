package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/supportmind/memory-core/cmd/admin/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "memory-admin",
		Short: "Administration tool for the conversation memory service",
		Long:  "CLI tool for tenant retention settings, archival runs and queue checks",
	}

	rootCmd.AddCommand(commands.NewTenantCmd())
	rootCmd.AddCommand(commands.NewArchiveCmd())
	rootCmd.AddCommand(commands.NewQueueCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
