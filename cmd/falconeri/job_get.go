package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a single job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobGet,
}

func init() {
	jobCmd.AddCommand(jobGetCmd)
}

func runJobGet(cmd *cobra.Command, args []string) error {
	c := clientFromFlags(cmd)
	job, err := c.getJob(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting job %s: %w", args[0], err)
	}
	return printJSON(job)
}
