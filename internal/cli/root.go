// Package cli implements the vigil command tree.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/vigilcell/vigil/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"        _       _ _\n" +
		" __   _(_) __ _(_) |\n" +
		" \\ \\ / / |/ _` | | |\n" +
		"  \\ V /| | (_| | | |\n" +
		"   \\_/ |_|\\__, |_|_|\n" +
		"          |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil - market intelligence cell",
	Long:  color.CyanString(logo) + "\nAn always-on crypto intelligence harness: wallet and market monitors,\na durable message queue, and an LLM orchestrator on top.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(tasksCmd)
}
