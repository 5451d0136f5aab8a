package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything main needs to wire the service. Values come from
// RACHACONTA_* environment variables, falling back to an optional YAML file
// and the defaults below.
type Config struct {
	ListenAddr  string
	DatabaseURL string
}

func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("database_url", "host=localhost port=5432 user=postgres password=postgres dbname=rachaconta sslmode=disable")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("rachaconta")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("RACHACONTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// only the implicit search may come up empty, an explicit file must exist
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return &Config{
		ListenAddr:  v.GetString("listen_addr"),
		DatabaseURL: v.GetString("database_url"),
	}, nil
}
