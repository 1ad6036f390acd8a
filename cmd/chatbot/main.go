// File: cmd/chatbot/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bedrock-chatbot/internal/config"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

var (
	cfgPath string
	devMode bool
)

var rootCmd = &cobra.Command{
	Use:           "chatbot",
	Short:         "Chatbot with a summarizing conversation memory",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "developer mode (console logs, unredacted text)")
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

// loadConfig tolerates a missing default config file; an explicit
// --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	return config.LoadConfig(path, devMode)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
