// Command sophia runs the Sophia voice assistant.
//
// Usage:
//
//	sophia serve                 HTTP and websocket API
//	sophia chat [-m message]     text turns on the terminal
//	sophia eval-batch [--json]   score the reference questions
//	sophia version
//
// Configuration comes from the environment, optionally seeded from a .env
// file (see --env).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var envFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sophia",
		Short:         "sophia - emotionally aware DeFi voice assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
	root.AddCommand(newServeCmd(), newChatCmd(), newEvalBatchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("sophia " + version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
