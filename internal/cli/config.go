package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/vasilvv/decor/internal/specialize"
)

// ConfigFileName is the config file looked up in the working directory when
// --config is not given.
const ConfigFileName = "decor.toml"

// Config holds the optional decor.toml settings. Flags override every field;
// the core packages never read configuration themselves and receive plain
// option values instead.
type Config struct {
	// SpecializationWarnThreshold is the distinct label-tuple count above
	// which a function earns an explosion warning.
	SpecializationWarnThreshold int `toml:"specialization_warn_threshold"`

	// Cache is the artifact database path. Empty disables the cache.
	Cache string `toml:"cache"`

	// Format is the default output format (text|json).
	Format string `toml:"format"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		SpecializationWarnThreshold: specialize.DefaultThreshold,
		Format:                      "text",
	}
}

// LoadConfig reads a decor.toml file. A missing file at the default location
// is not an error; an explicitly requested file must exist.
func LoadConfig(path string, explicit bool) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return cfg, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("reading %s: unknown key %q", path, undecoded[0].String())
	}
	if cfg.SpecializationWarnThreshold < 0 {
		return cfg, fmt.Errorf("reading %s: specialization_warn_threshold must not be negative", path)
	}
	return cfg, nil
}
