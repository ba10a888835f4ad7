package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formsync-dev/formsync/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┬─┐┌┬┐┌─┐┬ ┬┌┐┌┌─┐
  ├┤ │ │├┬┘│││└─┐└┬┘││││
  ┴  └─┘┴└─┴ ┴└─┘ ┴ ┘└┘└─┘
`

// errDiffFound signals that a diff command found differences. It maps to
// exit code 1 without an error banner, like diff(1).
var errDiffFound = errors.New("differences found")

func main() {
	rootCmd := &cobra.Command{
		Use:   "formsync",
		Short: "Synchronize form snapshots between clients and servers",
		Long: `Formsync keeps HTML form state synchronized.

It models form data as a path-addressed graph, detects changes
with a structural diff, and ships snapshots upstream in the
encoding of your choice. Features include:

  • Scope paths for nested fields, arrays, and keyed groups
  • Structural diffs with per-path old/new values
  • JSON, url-encoded, multipart, and merge-patch submission
  • Snapshot persistence in memory, Redis, or S3
  • A sync server with WebSocket change streams`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		resolveCmd(),
		diffCmd(),
		submitCmd(),
		serveCmd(),
		initCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errDiffFound) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(2)
	}
}

// printBanner prints the formsync ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// loadProjectConfig loads formsync.json from the nearest project root,
// falling back to defaults when no config file exists up the tree.
func loadProjectConfig() (*config.Config, error) {
	dir := "."
	if root, err := config.FindProjectRoot("."); err == nil {
		dir = root
	}
	return config.LoadOrDefault(dir)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
