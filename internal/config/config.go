// Package config resolves runtime configuration from flags, environment
// variables, and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/constants"
)

// Viper keys; persistent flags bind to the same names.
const (
	KeyDebug     = "debug"
	KeyBackupDir = "backup-dir"
)

const envPrefix = "USBLUKS"

// Config is the resolved runtime configuration, passed explicitly into the
// components that need it.
type Config struct {
	Debug     bool
	BackupDir string
}

// Init points viper at the environment (USBLUKS_ prefix) and the config
// file: an explicit path when given, otherwise ~/.config/usbluks/config.yaml
// if present. A missing default file is fine; an explicit file must parse.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "usbluks"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the current viper state into a Config, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Debug:     viper.GetBool(KeyDebug),
		BackupDir: viper.GetString(KeyBackupDir),
	}

	if cfg.BackupDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.BackupDir = filepath.Join(home, constants.BackupDirName)
	}

	return cfg, nil
}
