package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the taskdeck application
var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "Multi-user task list backend with an MCP tool surface",
	Long: `taskdeck is a multi-user task list backend. Callers authenticate with
bearer tokens; each verified token maps to an isolated task list.

It can run as:
  - An MCP (Model Context Protocol) server over stdio (default)
  - An HTTP server exposing both a REST API and the MCP endpoint`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "taskdeck version %s\n" .Version}}`)

	// Development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
}
