package server

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/voxelio/voxeld/storage"
	"github.com/voxelio/voxeld/voxel"
)

// Config holds the daemon's TOML-configurable settings.
type Config struct {
	Server  ServerConfig         `toml:"server"`
	Store   storage.BadgerConfig `toml:"store"`
	Logging voxel.LogConfig      `toml:"logging"`
}

// ServerConfig holds the HTTP front-end settings.
type ServerConfig struct {
	// HTTPAddress is the listen address, e.g. "localhost:8000".
	HTTPAddress string `toml:"http_address"`

	// ChunkSize bounds streamed transfer chunks in bytes.  Zero selects
	// the codec default.
	ChunkSize int `toml:"chunk_size"`
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no server configuration file specified")
	}
	var c Config
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = DefaultWebAddress
	}
	return &c, nil
}
