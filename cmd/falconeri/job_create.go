package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jobCreateFile string

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new job from a pipeline spec file",
	RunE:  runJobCreate,
}

func init() {
	jobCreateCmd.Flags().StringVarP(&jobCreateFile, "file", "f", "", "path to pipeline spec JSON file")
	jobCreateCmd.MarkFlagRequired("file")
	jobCmd.AddCommand(jobCreateCmd)
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	spec, err := os.ReadFile(jobCreateFile)
	if err != nil {
		return fmt.Errorf("reading pipeline spec: %w", err)
	}

	c := clientFromFlags(cmd)
	job, err := c.createJob(cmd.Context(), spec)
	if err != nil {
		return err
	}

	return printJSON(job)
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
