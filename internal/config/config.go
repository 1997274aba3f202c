// Package config loads the engine's configuration surface. godotenv loads a local .env
// file before viper binds environment variables; viper.SetDefault seeds the scalar
// fields and Default() the rest (interaction weights, strategies), so a config file is
// optional.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/evently-labs/recoengine/internal/domain"
)

// StrategyWeights holds the scoring knobs for one strategy; adding a strategy is
// adding a row to the Strategies map.
type StrategyWeights struct {
	FriendStep    float64 `mapstructure:"friend_step"`
	FriendCap     int     `mapstructure:"friend_cap"`
	DropNoFriends bool    `mapstructure:"drop_no_friends"`
	BaseSimWeight float64 `mapstructure:"base_sim_weight"`
}

// Config is the full configuration surface.
type Config struct {
	VectorStorePath string `mapstructure:"vector_store_path"`
	SQLitePath      string `mapstructure:"sqlite_path"`

	EmbeddingDim    int    `mapstructure:"embedding_dim"`
	EmbeddingDevice string `mapstructure:"embedding_device"`
	StrictEmbedding bool   `mapstructure:"strict_embedding"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	OpenAIModel     string `mapstructure:"openai_model"`

	MinEvents int `mapstructure:"min_events"`
	MinUsers  int `mapstructure:"min_users"`

	RetrainIntervalDays  int     `mapstructure:"retrain_interval_days"`
	RetrainDeltaFraction float64 `mapstructure:"retrain_delta_fraction"`

	RecencyHorizonDays int     `mapstructure:"recency_horizon_days"`
	ColdStartBlend     float64 `mapstructure:"cold_start_blend"`

	// InteractionWeights overrides the base per-kind weights used for user-vector
	// synthesis; unset kinds keep their defaults.
	InteractionWeights map[string]float64 `mapstructure:"interaction_weights"`

	UserSimTopK int `mapstructure:"user_sim_top_k"`

	EmbeddingBatchMax int `mapstructure:"embedding_batch_max"`

	Strategies map[string]StrategyWeights `mapstructure:"strategies"`

	ConnectorTimeout time.Duration `mapstructure:"connector_timeout"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`

	LogLevel string `mapstructure:"log_level"`
}

// Default returns the configuration surface populated with its defaults.
func Default() *Config {
	return &Config{
		VectorStorePath:      "vector_store",
		SQLitePath:           "recoengine.db",
		EmbeddingDim:         384,
		EmbeddingDevice:      "cpu",
		StrictEmbedding:      false,
		OpenAIModel:          "text-embedding-3-small",
		MinEvents:            5,
		MinUsers:             1,
		RetrainIntervalDays:  7,
		RetrainDeltaFraction: 0.10,
		RecencyHorizonDays:   30,
		ColdStartBlend:       0.25,
		InteractionWeights:   domain.DefaultInteractionWeights(),
		UserSimTopK:          20,
		EmbeddingBatchMax:    64,
		Strategies: map[string]StrategyWeights{
			"hybrid": {
				BaseSimWeight: 1.0,
				FriendStep:    0.10,
				FriendCap:     5,
				DropNoFriends: false,
			},
			"friends_boosted": {
				BaseSimWeight: 1.0,
				FriendStep:    0.30,
				FriendCap:     5,
				DropNoFriends: false,
			},
			"friends_only": {
				BaseSimWeight: 0.0,
				FriendStep:    0.30,
				FriendCap:     5,
				DropNoFriends: true,
			},
		},
		ConnectorTimeout: 2 * time.Second,
		SearchTimeout:    2 * time.Second,
		LogLevel:         "info",
	}
}

// Load reads configFile (if non-empty) plus RECOENGINE_-prefixed environment
// variables on top of Default(). A missing configFile is not an error — the defaults
// plus env/.env overrides are a complete configuration.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetEnvPrefix("RECOENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("vector_store_path", def.VectorStorePath)
	v.SetDefault("sqlite_path", def.SQLitePath)
	v.SetDefault("embedding_dim", def.EmbeddingDim)
	v.SetDefault("embedding_device", def.EmbeddingDevice)
	v.SetDefault("strict_embedding", def.StrictEmbedding)
	v.SetDefault("openai_model", def.OpenAIModel)
	v.SetDefault("min_events", def.MinEvents)
	v.SetDefault("min_users", def.MinUsers)
	v.SetDefault("retrain_interval_days", def.RetrainIntervalDays)
	v.SetDefault("retrain_delta_fraction", def.RetrainDeltaFraction)
	v.SetDefault("recency_horizon_days", def.RecencyHorizonDays)
	v.SetDefault("cold_start_blend", def.ColdStartBlend)
	v.SetDefault("user_sim_top_k", def.UserSimTopK)
	v.SetDefault("embedding_batch_max", def.EmbeddingBatchMax)
	v.SetDefault("connector_timeout", def.ConnectorTimeout)
	v.SetDefault("search_timeout", def.SearchTimeout)
	v.SetDefault("log_level", def.LogLevel)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := Default()
	cfg.VectorStorePath = v.GetString("vector_store_path")
	cfg.SQLitePath = v.GetString("sqlite_path")
	cfg.EmbeddingDim = v.GetInt("embedding_dim")
	cfg.EmbeddingDevice = v.GetString("embedding_device")
	cfg.StrictEmbedding = v.GetBool("strict_embedding")
	cfg.OpenAIAPIKey = v.GetString("openai_api_key")
	cfg.OpenAIModel = v.GetString("openai_model")
	cfg.MinEvents = v.GetInt("min_events")
	cfg.MinUsers = v.GetInt("min_users")
	cfg.RetrainIntervalDays = v.GetInt("retrain_interval_days")
	cfg.RetrainDeltaFraction = v.GetFloat64("retrain_delta_fraction")
	cfg.RecencyHorizonDays = v.GetInt("recency_horizon_days")
	cfg.ColdStartBlend = v.GetFloat64("cold_start_blend")
	cfg.UserSimTopK = v.GetInt("user_sim_top_k")
	cfg.EmbeddingBatchMax = v.GetInt("embedding_batch_max")
	cfg.ConnectorTimeout = v.GetDuration("connector_timeout")
	cfg.SearchTimeout = v.GetDuration("search_timeout")
	cfg.LogLevel = v.GetString("log_level")

	if v.IsSet("interaction_weights") {
		overrides := make(map[string]float64)
		if err := v.UnmarshalKey("interaction_weights", &overrides); err != nil {
			return nil, err
		}
		for kind, w := range overrides {
			cfg.InteractionWeights[kind] = w
		}
	}
	if v.IsSet("strategies") {
		overrides := make(map[string]StrategyWeights)
		if err := v.UnmarshalKey("strategies", &overrides); err != nil {
			return nil, err
		}
		for name, w := range overrides {
			cfg.Strategies[name] = w
		}
	}

	return cfg, nil
}

// InteractionWeight returns the configured weight for kind, falling back to the base
// table for kinds with no override.
func (c *Config) InteractionWeight(kind domain.InteractionKind) float64 {
	if w, ok := c.InteractionWeights[string(kind)]; ok {
		return w
	}
	return domain.InteractionWeight(kind)
}

// StrategyNames lists the closed enumeration of configured strategy names.
func (c *Config) StrategyNames() []string {
	names := make([]string, 0, len(c.Strategies))
	for name := range c.Strategies {
		names = append(names, name)
	}
	return names
}
