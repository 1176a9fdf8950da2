package cmd

import (
	"fmt"

	"github.com/hoppxi/glint/internal/manager"
	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Kill daemon and stop watchers.",
	Run: func(cmd *cobra.Command, args []string) {
		response, err := manager.Manage.SendIPCCommand("STOP")
		if err != nil {
			fmt.Printf("Error: %v (Is the daemon running?)\n", err)
			return
		}

		fmt.Printf("Server response: %s\n", response)

		if isOK(response) {
			fmt.Println("Glint daemon successfully shut down.")
		}
	},
}
