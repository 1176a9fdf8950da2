package cmd

import (
	"fmt"
	"time"

	"github.com/hoppxi/glint/internal/manager"
	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Restart the daemon, re-reading config and displays",
	Run: func(cmd *cobra.Command, args []string) {
		response, err := manager.Manage.SendIPCCommand("STOP")
		if err != nil {
			fmt.Printf("Error: %v (Is the daemon running?)\n", err)
			return
		}

		fmt.Printf("Server response: %s\n", response)

		// the old daemon exits shortly after acknowledging STOP
		for range 20 {
			conn, err := manager.Manage.ConnectIPC()
			if err != nil {
				break
			}
			conn.Close()
			time.Sleep(50 * time.Millisecond)
		}

		startCmd.Run(cmd, args) // restart in-place
	},
}

func init() {
	reloadCmd.Flags().String("api", "", "Serve the HTTP API on this address (overrides api.listen)")
}
