// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the finman CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finman",
		Short: "Finman - personal finance backend",
		Long: `Finman is the personal finance backend. This binary serves the
account authentication API and manages the underlying database schema.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
