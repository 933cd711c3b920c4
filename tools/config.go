package tools

import (
	"github.com/spf13/viper"

	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/extract"
)

// Defaults read from the environment or from potree_extract.yaml. Command
// line flags take precedence.
type Config struct {
	Workers        int `mapstructure:"POTREE_EXTRACT_WORKERS"`
	DecodeAttempts int `mapstructure:"POTREE_EXTRACT_DECODE_ATTEMPTS"`
	MaxLevel       int `mapstructure:"POTREE_EXTRACT_MAX_LEVEL"`
}

func LoadConfig(paths ...string) (c Config, err error) {
	v := viper.New()

	v.SetDefault("POTREE_EXTRACT_WORKERS", 0)
	v.SetDefault("POTREE_EXTRACT_DECODE_ATTEMPTS", decoder.DefaultMaxDecodeAttempts)
	v.SetDefault("POTREE_EXTRACT_MAX_LEVEL", extract.DefaultMaxLevel)

	v.SetConfigName("potree_extract")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	// environment variables take precedence over the config file
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	err = v.Unmarshal(&c)
	return
}
