package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from an optional YAML file, then applies
// environment overrides. A missing file is not an error; env vars and
// defaults still apply.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
