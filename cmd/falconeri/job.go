package main

import (
	"github.com/spf13/cobra"
)

// jobCmd groups every "falconeri job <subcommand>" operation.
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage falconeri jobs",
}

func init() {
	rootCmd.AddCommand(jobCmd)
}

func clientFromFlags(cmd *cobra.Command) *client {
	apiURL, _ := cmd.Flags().GetString("api-url")
	password, _ := cmd.Flags().GetString("password")
	return newClient(apiURL, password)
}
