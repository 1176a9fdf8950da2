package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hoppxi/glint/internal/manager"
	"github.com/ncruces/zenity"
	"github.com/spf13/cobra"
)

var displayID string

func isOK(response string) bool {
	return strings.HasPrefix(response, "OK")
}

// send runs one IPC command and returns the payload after "OK: ".
func send(command string) (string, error) {
	response, err := manager.Manage.SendIPCCommand(command)
	if err != nil {
		return "", fmt.Errorf("%w (Is the daemon running?)", err)
	}
	if !isOK(response) {
		return "", errors.New(strings.TrimSpace(strings.TrimPrefix(response, "ERR:")))
	}
	return strings.TrimSpace(strings.TrimPrefix(response, "OK:")), nil
}

func run(command string, print func(string)) {
	payload, err := send(command)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	print(payload)
}

func printLevel(payload string) {
	level, err := manager.ParseLevel(payload)
	if err != nil {
		fmt.Println(payload)
		return
	}
	fmt.Printf("%d%%\n", int(level*100+0.5))
}

func printRaw(payload string) {
	fmt.Println(payload)
}

var displayCmd = &cobra.Command{
	Use:   "display",
	Short: "Control display brightness",
}

var displayListCmd = &cobra.Command{
	Use:   "list",
	Short: "List displays and their brightness",
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")
		run("LIST", func(payload string) {
			if asJSON {
				fmt.Println(payload)
				return
			}
			var list []manager.Status
			if err := json.Unmarshal([]byte(payload), &list); err != nil {
				fmt.Println("Error:", err)
				return
			}
			fmt.Printf("%-4s %-10s %-24s %-22s %5s  %s\n", "ID", "OUTPUT", "NAME", "MODE", "LEVEL", "FLAGS")
			for _, st := range list {
				fmt.Printf("%-4d %-10s %-24s %-22s %4d%%  %s\n", st.ID, st.Connector, st.Name, mode(st), st.Percent, flags(st))
			}
		})
	},
}

func mode(st manager.Status) string {
	if st.Hardware {
		return "hardware"
	}
	return "gamma"
}

func flags(st manager.Status) string {
	var out []string
	if !st.Enabled {
		out = append(out, "disabled")
	}
	if st.ForceSoftware {
		out = append(out, "force-sw")
	}
	if st.Builtin {
		out = append(out, "builtin")
	}
	if st.MirrorOf != 0 {
		out = append(out, fmt.Sprintf("mirrors %d", st.MirrorOf))
	}
	return strings.Join(out, ",")
}

var displayGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the brightness of a display",
	Run: func(cmd *cobra.Command, args []string) {
		run("GET "+displayID, printLevel)
	},
}

var displaySetCmd = &cobra.Command{
	Use:   "set <level>",
	Short: "Set brightness, as a fraction (0.4) or percentage (40%)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		command := fmt.Sprintf("SET %s %s", displayID, args[0])
		if smooth, _ := cmd.Flags().GetBool("smooth"); smooth {
			command += " smooth"
		}
		run(command, printLevel)
	},
}

var displayStepCmd = &cobra.Command{
	Use:       "step <up|down>",
	Short:     "Step brightness up or down",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	Run: func(cmd *cobra.Command, args []string) {
		command := fmt.Sprintf("STEP %s %s", displayID, args[0])
		if fine, _ := cmd.Flags().GetBool("fine"); fine {
			command += " fine"
		}
		run(command, printLevel)
	},
}

var displayResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the display's original gamma table",
	Run: func(cmd *cobra.Command, args []string) {
		run("RESET "+displayID, printRaw)
	},
}

var displayRenameCmd = &cobra.Command{
	Use:   "rename [name]",
	Short: "Give a display a friendly name",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		if usePrompt, _ := cmd.Flags().GetBool("prompt"); usePrompt || name == "" {
			entered, err := zenity.Entry("Display name", zenity.Title("Rename display"), zenity.EntryText(name))
			switch {
			case err == zenity.ErrCanceled:
				return
			case err != nil:
				fmt.Println("Error:", err)
				return
			}
			name = entered
		}
		name = strings.TrimSpace(name)
		if name == "" {
			fmt.Println("Error: empty name")
			return
		}
		run(fmt.Sprintf("RENAME %s %s", displayID, name), printRaw)
	},
}

func switchCmd(use, short, command string) *cobra.Command {
	return &cobra.Command{
		Use:       use + " <on|off>",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		Run: func(cmd *cobra.Command, args []string) {
			run(fmt.Sprintf("%s %s %s", command, displayID, args[0]), printRaw)
		},
	}
}

func init() {
	displayCmd.PersistentFlags().StringVarP(&displayID, "display", "d", manager.DefaultDisplay, "Display id, connector or name (default: first display)")

	displayListCmd.Flags().Bool("json", false, "Print raw JSON")
	displaySetCmd.Flags().Bool("smooth", false, "Ramp to the new level")
	displayStepCmd.Flags().Bool("fine", false, "Use a fine step")
	displayRenameCmd.Flags().Bool("prompt", false, "Ask for the name in a dialog")

	displayCmd.AddCommand(displayListCmd)
	displayCmd.AddCommand(displayGetCmd)
	displayCmd.AddCommand(displaySetCmd)
	displayCmd.AddCommand(displayStepCmd)
	displayCmd.AddCommand(displayResetCmd)
	displayCmd.AddCommand(displayRenameCmd)
	displayCmd.AddCommand(switchCmd("force-sw", "Drive a hardware display through gamma instead", "FORCESW"))
	displayCmd.AddCommand(switchCmd("enable", "Enable or disable brightness control for a display", "ENABLE"))
}
