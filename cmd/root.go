package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Small-group rooms with direct peer-to-peer media",
	Long: `Huddle coordinates small groups into shared rooms and connects their
members directly over WebRTC. The relay carries presence, chat, drawing
events, and connection signaling; media never touches the server.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
