package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Retry a failed job's error datums as a new job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobRetry,
}

func init() {
	jobCmd.AddCommand(jobRetryCmd)
}

func runJobRetry(cmd *cobra.Command, args []string) error {
	c := clientFromFlags(cmd)
	job, err := c.retryJob(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("retrying job %s: %w", args[0], err)
	}
	return printJSON(job)
}
