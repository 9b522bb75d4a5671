package config

import (
	"github.com/spf13/pflag"
)

// Load builds the effective configuration from defaults, the config file,
// the environment and the flags in fs. A missing default config file is
// not an error; a missing file named by --config is.
func Load(fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	path := DefaultPath()
	explicit := false
	if f := fs.Lookup(FlagConfig); f != nil && f.Changed {
		path = f.Value.String()
		explicit = true
	}

	if path != "" && (explicit || FileExists(path)) {
		if err := LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := ApplyFlags(&cfg, fs); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
