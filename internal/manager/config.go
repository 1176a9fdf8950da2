package manager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once sync.Once
	v    *viper.Viper
)

// Settings is the typed view of glint.yaml the daemon runs with.
type Settings struct {
	Smooth       bool
	LowThreshold float64
	StepDelay    time.Duration
	OSDBackend   string
	OSDTimeout   time.Duration
	PrefsBackend string
	PrefsPath    string
	DDC          bool
	APIListen    string
}

type ConfigManager struct{}

var Config = &ConfigManager{}

func ConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	return filepath.Join(configDir, "glint")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "glint.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("brightness.smooth", true)
	v.SetDefault("brightness.low_threshold", 0.0)
	v.SetDefault("brightness.step_delay_ms", 1)
	v.SetDefault("osd.backend", "eww")
	v.SetDefault("osd.timeout_ms", 2000)
	v.SetDefault("prefs.backend", "file")
	v.SetDefault("prefs.path", "")
	v.SetDefault("ddc.enabled", true)
	v.SetDefault("api.listen", "")
}

// newViper reads path if it exists. A missing file leaves the defaults.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

func (c *ConfigManager) Load() *viper.Viper {
	once.Do(func() {
		var err error
		v, err = newViper(ConfigPath())
		if err != nil {
			panic(err)
		}
	})

	return v
}

func SettingsFrom(v *viper.Viper) Settings {
	s := Settings{
		Smooth:       v.GetBool("brightness.smooth"),
		LowThreshold: v.GetFloat64("brightness.low_threshold"),
		StepDelay:    time.Duration(v.GetInt("brightness.step_delay_ms")) * time.Millisecond,
		OSDBackend:   v.GetString("osd.backend"),
		OSDTimeout:   time.Duration(v.GetInt("osd.timeout_ms")) * time.Millisecond,
		PrefsBackend: v.GetString("prefs.backend"),
		PrefsPath:    v.GetString("prefs.path"),
		DDC:          v.GetBool("ddc.enabled"),
		APIListen:    v.GetString("api.listen"),
	}
	if s.LowThreshold < 0 || s.LowThreshold >= 1 {
		s.LowThreshold = 0
	}
	if s.PrefsPath == "" {
		name := "prefs.yaml"
		if s.PrefsBackend == "sqlite" {
			name = "prefs.db"
		}
		s.PrefsPath = filepath.Join(ConfigDir(), name)
	}
	return s
}
