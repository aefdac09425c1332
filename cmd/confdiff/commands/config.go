package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/goliatone/go-confdiff/pkg/zaplog"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CONFDIFF_LOG_LEVEL.
const EnvPrefix = "CONFDIFF"

// Config holds the settings shared by every command.
type Config struct {
	Log     zaplog.Config `mapstructure:"log"`
	Guard   GuardConfig   `mapstructure:"guard"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// GuardConfig selects the rule engine and the rules applied to every
// removal delta, on top of --guard flags.
type GuardConfig struct {
	Engine string   `mapstructure:"engine" default:"expr"`
	Rules  []string `mapstructure:"rules"`
}

// MetricsConfig names a Prometheus textfile written after each run.
type MetricsConfig struct {
	File string `mapstructure:"file"`
}

var defaults = map[string]any{
	"log.level":  "warn",
	"log.format": "console",
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"guard-engine": "guard.engine",
	"metrics-file": "metrics.file",
}

// LoadConfig resolves the config from, weakest first: defaults, an optional
// YAML file, the dotenv file, the environment and changed flags. A missing
// dotenv file is ignored.
func LoadConfig(v *viper.Viper, flags *pflag.FlagSet, configFile, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	bindValues(v, Config{}, "")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, err
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// bindValues walks the mapstructure tags of iface and registers every key
// with its default tag, so AutomaticEnv can resolve keys viper never saw.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		if field.Type.Kind() == reflect.Slice {
			v.SetDefault(key, []string{})
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
