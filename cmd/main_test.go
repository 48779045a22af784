package main

import (
	"github.com/evd-tools/eve/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite"},
		Log:   config.LogConfig{Level: "info", Format: "console"},
	}
}
