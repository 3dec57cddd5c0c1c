package main

import (
	"github.com/spf13/cobra"
)

var jobListName string

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, optionally filtered by name",
	RunE:  runJobList,
}

func init() {
	jobListCmd.Flags().StringVar(&jobListName, "name", "", "filter by external job name")
	jobCmd.AddCommand(jobListCmd)
}

func runJobList(cmd *cobra.Command, args []string) error {
	c := clientFromFlags(cmd)
	jobs, err := c.listJobs(cmd.Context(), jobListName)
	if err != nil {
		return err
	}
	return printJSON(jobs)
}
