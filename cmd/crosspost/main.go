package main

import (
	"fmt"
	"os"

	"github.com/crosspostd/crosspost/server/config"
	"github.com/crosspostd/crosspost/server/version"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := createRootCmd()

	configManager := config.NewManager(rootCmd)

	rootCmd.AddCommand(createPrepareCmd(configManager))
	rootCmd.AddCommand(createServeCmd(configManager))
	rootCmd.AddCommand(createPostsCmd(configManager))
	rootCmd.AddCommand(createVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crosspost",
		Short: "crosspost schedules and publishes social media posts",
		Long: `
crosspost is the deferred publication server: it persists scheduled posts,
queues their publish jobs and pushes them to the configured platforms when
they come due.
`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a configuration file")

	return rootCmd
}

func createVersionCmd() *cobra.Command {
	var full bool
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			if full {
				version.PrintFull()
				return
			}
			version.Print()
		},
	}
	versionCmd.Flags().BoolVar(&full, "full", false, "Print full version information")
	return versionCmd
}

// initFatal prints an error message and exits with a non-zero status.
func initFatal(err error, message string) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", message, err)
	os.Exit(1)
}
