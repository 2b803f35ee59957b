package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/BioHazard786/warpchat/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpchat",
	Short: "Anonymous one-to-one video chat with strangers from the terminal",
	Long: `warpchat pairs you with a random stranger, optionally preferring someone who
shares your interests, and sets up a direct WebRTC call between you. Text chat
and typing indicators travel through the relay. When the relay cannot be
reached, warpchat falls back to a local demo stranger.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	run(rootCmd)
}

// ExecuteServer runs the relay server as a standalone binary.
func ExecuteServer() {
	serve := newServeCmd()
	serve.Use = "warpchat-server"
	serve.Version = version.Version
	run(serve)
}

func run(c *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.SilenceErrors = true
	c.SilenceUsage = true

	if err := c.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
