package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoppxi/glint/api"
	"github.com/hoppxi/glint/internal/manager"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the brightness daemon and its watchers",
	Run: func(cmd *cobra.Command, args []string) {
		if conn, err := manager.Manage.ConnectIPC(); err == nil {
			defer conn.Close()
			fmt.Println("Daemon already running. Sending start command...")
			if _, err := manager.Manage.SendIPCCommand("START"); err != nil {
				fmt.Printf("Failed to send start command: %v\n", err)
			}
			return
		}

		fmt.Println("Starting daemon...")

		go manager.Manage.StartIPCServer()

		time.Sleep(100 * time.Millisecond)

		response, err := manager.Manage.SendIPCCommand("START")
		if err != nil || !isOK(response) {
			fmt.Printf("Failed to initialize daemon: %v %s\n", err, response)
			manager.Manage.StopAll()
			return
		}

		cfg := manager.SettingsFrom(manager.Config.Load())
		if listen, _ := cmd.Flags().GetString("api"); listen != "" {
			cfg.APIListen = listen
		}
		var server *api.Server
		if cfg.APIListen != "" {
			server = api.NewServer(func() (api.Service, bool) {
				svc := manager.Manage.Service()
				return svc, svc != nil
			}, log.Logger)
			go func() {
				if err := server.Start(cfg.APIListen); err != nil {
					log.Error().Err(err).Msg("http api stopped")
				}
			}()
		}

		fmt.Println("Daemon started successfully. Press Ctrl+C to stop.")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		fmt.Println("\nReceived shutdown signal, restoring and stopping watchers...")
		if server != nil {
			server.Shutdown()
		}
		manager.Manage.StopAll()
	},
}

func init() {
	startCmd.Flags().String("api", "", "Serve the HTTP API on this address (overrides api.listen)")
}
