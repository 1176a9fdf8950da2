package config

import (
	_ "embed"
)

//go:embed glint.yaml
var defaultConfig []byte

// Default returns the stock glint.yaml written by `glint setup`.
func Default() []byte {
	return defaultConfig
}
