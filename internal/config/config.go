// Package config loads the duel server configuration from a YAML file,
// with DUEL_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mine-duel/duel-server-go/internal/game/stats"
	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
	Feed    FeedConfig    `mapstructure:"feed"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig controls how matches are played.
type GameConfig struct {
	DataPath     string         `mapstructure:"data_path"`
	WithBuffs    bool           `mapstructure:"with_buffs"`
	StatIDs      stats.Bindings `mapstructure:"stat_ids"`
	TurnInterval time.Duration  `mapstructure:"turn_interval"`
	MaxTurns     int            `mapstructure:"max_turns"`
	// Matches is the number of matches to play; 0 keeps playing until
	// shutdown.
	Matches int `mapstructure:"matches"`
	// Seed makes buff rolls reproducible. 0 picks a random seed.
	Seed uint64 `mapstructure:"seed"`
}

// Bindings returns the stat ids the rules read.
func (g GameConfig) Bindings() stats.Bindings {
	return g.StatIDs
}

// FeedConfig controls the websocket spectator feed and the replay
// endpoints served next to it.
type FeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	// Replays is the number of recent matches kept for /replays.
	Replays int `mapstructure:"replays"`
}

// Load reads the configuration at path. An empty path uses defaults and
// the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("game.data_path", "data/data.yaml")
	v.SetDefault("game.with_buffs", false)
	v.SetDefault("game.stat_ids.health", 0)
	v.SetDefault("game.stat_ids.armor", 1)
	v.SetDefault("game.stat_ids.damage", 2)
	v.SetDefault("game.stat_ids.lifesteal", 3)
	v.SetDefault("game.turn_interval", "500ms")
	v.SetDefault("game.max_turns", 200)
	v.SetDefault("game.matches", 1)
	v.SetDefault("game.seed", 0)

	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.address", ":8080")
	v.SetDefault("feed.replays", 8)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var problems []error

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Errorf("logging.format %q is not json or console", c.Logging.Format))
	}

	if c.Game.DataPath == "" {
		problems = append(problems, errors.New("game.data_path is required"))
	}
	if c.Game.TurnInterval < 0 {
		problems = append(problems, fmt.Errorf("game.turn_interval %s is negative", c.Game.TurnInterval))
	}
	if c.Game.MaxTurns < 1 {
		problems = append(problems, fmt.Errorf("game.max_turns %d must be at least 1", c.Game.MaxTurns))
	}
	if c.Game.Matches < 0 {
		problems = append(problems, fmt.Errorf("game.matches %d is negative", c.Game.Matches))
	}

	if c.Feed.Enabled && c.Feed.Address == "" {
		problems = append(problems, errors.New("feed.address is required when the feed is enabled"))
	}
	if c.Feed.Replays < 1 {
		problems = append(problems, fmt.Errorf("feed.replays %d must be at least 1", c.Feed.Replays))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(problems...))
	}
	return nil
}
