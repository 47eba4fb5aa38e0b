package defaults

import (
	"os"

	e "github.com/pkg/errors"
	"github.com/sahib/config"
)

// CurrentVersion is the current version of fsh's config
const CurrentVersion = 0

// Defaults is the default validation for fsh
var Defaults = DefaultsV0

// OpenDefaultConfig returns a config with all keys at their default.
func OpenDefaultConfig() (*config.Config, error) {
	return config.Open(nil, Defaults, config.StrictnessPanic)
}

// OpenConfig loads the config.yml at `path`. A missing file is not
// an error; the defaults are used then.
func OpenConfig(path string) (*config.Config, error) {
	if path == "" {
		return OpenDefaultConfig()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return OpenDefaultConfig()
	}

	return OpenMigratedConfig(path)
}

// OpenMigratedConfig takes the config.yml at path and loads it.
// If required, it also migrates the config structure to the newest
// version - fsh can always rely on the latest config keys to be present.
func OpenMigratedConfig(path string) (*config.Config, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, e.Wrap(err, "failed to open config")
	}

	defer fd.Close()

	// Add here any migrations with mgr.Add if needed.
	mgr := config.NewMigrater(CurrentVersion, config.StrictnessPanic)
	mgr.Add(0, nil, DefaultsV0)

	cfg, err := mgr.Migrate(config.NewYamlDecoder(fd))
	if err != nil {
		return nil, e.Wrap(err, "failed to migrate")
	}

	return cfg, nil
}

// SaveConfig writes `cfg` to `path` as yaml.
func SaveConfig(path string, cfg *config.Config) error {
	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return e.Wrap(err, "failed to open config for writing")
	}

	if err := cfg.Save(config.NewYamlEncoder(fd)); err != nil {
		fd.Close()
		return e.Wrap(err, "failed to save config")
	}

	return fd.Close()
}
