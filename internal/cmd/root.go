package cmd

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hoppxi/glint/internal/manager"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Version = "0.1.0"

var verbose bool

// offline commands never need a running daemon.
var offline = []string{"start", "setup", "generate-config", "help", "completion", "glint"}

var rootCmd = &cobra.Command{
	Use:     "glint",
	Version: Version,
	Short:   "Glint controls display brightness through DDC/CI, backlight and gamma",
	Long:    "Glint is a brightness daemon for GNOME: hardware brightness where the monitor allows it, gamma dimming everywhere else",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if slices.Contains(offline, cmd.Name()) {
			return
		}

		conn, err := manager.Manage.ConnectIPC()
		if err != nil {
			fmt.Println("Error:", err)
			fmt.Println("Hint: run `glint start` first")
			os.Exit(1)
		}
		conn.Close()
	},
}

func setupLogging() {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(generateConfigCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(displayCmd)
}
