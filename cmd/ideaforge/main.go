package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "ideaforge",
		Short: "ideaforge - Turn an app idea into a published GitHub project",
		Long: `ideaforge drives a build pipeline that enhances a raw app idea,
generates a PRD, creates a GitHub repository, and implements and publishes
the selected features. Progress streams into a terminal dashboard with a
review gate before anything touches GitHub; when the backend is offline the
pipeline runs locally with deterministic fallback content.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
