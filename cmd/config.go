package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const configName = "." + config.AppName

// initConfig reads the .env file, the config file and AGENTDECK_* variables
// into v. A missing config file is fine; an unreadable one is an error.
func initConfig(v *viper.Viper, cfgFile string) error {
	// A missing .env is not an error.
	_ = godotenv.Load()

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// loadSettings returns the settings for the current invocation. validate
// controls whether missing credentials fail the command.
func loadSettings(validate bool) (config.Settings, error) {
	s := config.LoadSettings(viper.GetViper())
	if !validate {
		return s, nil
	}
	if err := s.Validate(); err != nil {
		return s, &ExitError{Code: 1, Err: err}
	}
	return s, nil
}
