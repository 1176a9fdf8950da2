package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hoppxi/glint/config"
	"github.com/hoppxi/glint/internal/manager"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Brightness struct {
		Smooth       bool    `yaml:"smooth"`
		LowThreshold float64 `yaml:"low_threshold"`
		StepDelayMs  int     `yaml:"step_delay_ms"`
	} `yaml:"brightness"`
	OSD struct {
		Backend   string `yaml:"backend"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"osd"`
	Prefs struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"prefs"`
	DDC struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"ddc"`
	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Full initialization (config + environment checks)",
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)
		confPath := manager.ConfigPath()

		if _, err := os.Stat(confPath); !os.IsNotExist(err) {
			fmt.Printf("Warning: Glint config already exists at %s\n", confPath)
			if !confirm(reader, "Continuing will overwrite your current config. Proceed?") {
				return
			}
		}

		if err := writeConfig(confPath, config.Default()); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Wrote default config to %s\n", confPath)

		fmt.Println("\nChecking environment...")
		checkEnvironment()

		fmt.Println("\nFull setup complete!")
	},
}

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Only generate/update the glint.yaml file",
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)
		confPath := manager.ConfigPath()

		if _, err := os.Stat(confPath); !os.IsNotExist(err) {
			if !confirm(reader, "glint.yaml already exists. Overwrite with new settings?") {
				return
			}
		}

		d, err := yaml.Marshal(askConfig(reader))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := writeConfig(confPath, d); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Config file updated.")
	},
}

func defaultConfig() Config {
	var conf Config
	// the embedded default is the single source of truth
	_ = yaml.Unmarshal(config.Default(), &conf)
	return conf
}

func askConfig(reader *bufio.Reader) Config {
	conf := defaultConfig()

	conf.Brightness.Smooth = promptBool(reader, "Smooth software transitions", conf.Brightness.Smooth)
	conf.Brightness.LowThreshold = promptFloat(reader, "Lowest software brightness (0-0.9)", conf.Brightness.LowThreshold)
	conf.OSD.Backend = prompt(reader, "OSD backend (eww, notify, none)", conf.OSD.Backend)
	conf.Prefs.Backend = prompt(reader, "Preference storage (file, sqlite)", conf.Prefs.Backend)
	conf.DDC.Enabled = promptBool(reader, "Control external monitors over DDC/CI", conf.DDC.Enabled)
	conf.API.Listen = prompt(reader, "HTTP API address (empty disables)", conf.API.Listen)

	return conf
}

func writeConfig(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func checkEnvironment() {
	for _, tool := range []string{"eww", "brightnessctl"} {
		if _, err := exec.LookPath(tool); err != nil {
			fmt.Printf("  %-14s missing (optional)\n", tool)
		} else {
			fmt.Printf("  %-14s ok\n", tool)
		}
	}

	buses, _ := filepath.Glob("/dev/i2c-*")
	switch {
	case len(buses) == 0:
		fmt.Println("  i2c-dev        no buses, load the i2c-dev module for DDC/CI")
	default:
		f, err := os.OpenFile(buses[0], os.O_RDWR, 0)
		if err != nil {
			fmt.Println("  i2c-dev        no access, add yourself to the i2c group")
			return
		}
		f.Close()
		fmt.Printf("  i2c-dev        ok (%d buses)\n", len(buses))
	}
}

func prompt(r *bufio.Reader, label, defaultValue string) string {
	fmt.Printf("%s [%s]: ", label, defaultValue)
	input, _ := r.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

func promptBool(r *bufio.Reader, label string, defaultValue bool) bool {
	def := "y"
	if !defaultValue {
		def = "n"
	}
	input := strings.ToLower(prompt(r, label+" (y/n)", def))
	return input == "y" || input == "yes"
}

func promptFloat(r *bufio.Reader, label string, defaultValue float64) float64 {
	input := prompt(r, label, strconv.FormatFloat(defaultValue, 'f', -1, 64))
	v, err := strconv.ParseFloat(input, 64)
	if err != nil {
		fmt.Println("Not a number, keeping", defaultValue)
		return defaultValue
	}
	return v
}

func confirm(r *bufio.Reader, message string) bool {
	fmt.Printf("%s (y/N): ", message)
	input, _ := r.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}
