package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/studygenius/studygenius/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "studygenius-configure",
		Short: "Configuration tool for the StudyGenius API",
		Long:  "CLI tool for managing runtime configuration and entitlements",
	}

	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
