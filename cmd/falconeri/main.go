// Command falconeri is the operator CLI for the Control Service,
// thin by design: every subcommand is a single HTTP call (spec §6 is
// "deliberately out of scope" beyond the interface the core consumes).
// Grounded on cuemby-warren's cobra cmd/warren layout: a package-level
// rootCmd, one file per subcommand registering itself via init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "falconeri",
	Short: "falconeri is the CLI for the falconeri batch-job orchestrator",
}

func init() {
	rootCmd.PersistentFlags().String("api-url", envOrDefault("FALCONERI_API_URL", "http://localhost:8080"), "Control Service base URL")
	rootCmd.PersistentFlags().String("password", os.Getenv("FALCONERI_ADMIN_PASSWORD"), "Control Service admin password")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
