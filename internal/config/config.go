package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/internal/logging"
	"github.com/spf13/viper"
)

// Config holds the oxyanim command configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Animator AnimatorConfig `mapstructure:"animator"`
	Clips    ClipsConfig    `mapstructure:"clips"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AnimatorConfig holds worker pool settings. Zero values select the animator defaults.
type AnimatorConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
	BatchSize int `mapstructure:"batch_size"`
}

// ClipsConfig holds clip store settings.
type ClipsConfig struct {
	// DuplicatePolicy is "reject" or "replace".
	DuplicatePolicy string `mapstructure:"duplicate_policy"`

	// MatrixBlend is "linear" or "decomposed".
	MatrixBlend string `mapstructure:"matrix_blend"`
}

// MetricsConfig holds the Prometheus endpoint settings. An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from file and env. Env var overrides use prefix OXYANIM_,
// e.g. OXYANIM_ANIMATOR_WORKERS.
//
// Parameters:
//   - path: an explicit config file; when empty OXYANIM_CONFIG is consulted, then
//     oxyanim.yaml in the working directory and in $HOME/.config/oxyanim
//
// Returns:
//   - Config: the merged configuration
//   - error: error if an explicit file cannot be read or a value cannot be decoded
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("log.level", "info")
	v.SetDefault("animator.workers", 0)
	v.SetDefault("animator.queue_size", 256)
	v.SetDefault("animator.batch_size", 16)
	v.SetDefault("clips.duplicate_policy", "reject")
	v.SetDefault("clips.matrix_blend", "linear")
	v.SetDefault("metrics.addr", "")

	v.SetConfigType("yaml")

	explicit := path
	if explicit == "" {
		explicit = os.Getenv("OXYANIM_CONFIG")
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "oxyanim"))
		}
		v.SetConfigName("oxyanim")
	}

	v.SetEnvPrefix("OXYANIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file is only an error when one was asked for.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// LogLevel returns the configured slog level.
func (c Config) LogLevel() (slog.Level, error) {
	return logging.ParseLevel(c.Log.Level)
}

// AnimationOptions converts the clip settings to clip store options.
//
// Returns:
//   - []animation.AnimationBuilderOption: the duplicate policy and matrix blend options
//   - error: error if either setting is not a known value
func (c Config) AnimationOptions() ([]animation.AnimationBuilderOption, error) {
	var opts []animation.AnimationBuilderOption

	switch strings.ToLower(c.Clips.DuplicatePolicy) {
	case "", "reject":
		opts = append(opts, animation.WithDuplicatePolicy(animation.DuplicateReject))
	case "replace":
		opts = append(opts, animation.WithDuplicatePolicy(animation.DuplicateReplace))
	default:
		return nil, fmt.Errorf("unknown clips.duplicate_policy %q", c.Clips.DuplicatePolicy)
	}

	switch strings.ToLower(c.Clips.MatrixBlend) {
	case "", "linear":
		opts = append(opts, animation.WithMatrixBlend(animation.MatrixBlendLinear))
	case "decomposed":
		opts = append(opts, animation.WithMatrixBlend(animation.MatrixBlendDecomposed))
	default:
		return nil, fmt.Errorf("unknown clips.matrix_blend %q", c.Clips.MatrixBlend)
	}

	return opts, nil
}
