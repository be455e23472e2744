package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp" mapstructure:"whatsapp"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings. Each pipeline role can run a
// different model: vision analysis needs the stronger model, validation and
// narration run on the cheaper one.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	VisionModel    string `yaml:"vision_model" mapstructure:"vision_model"`
	ValidatorModel string `yaml:"validator_model" mapstructure:"validator_model"`
	NarratorModel  string `yaml:"narrator_model" mapstructure:"narrator_model"`
}

// JinaConfig holds Jina embeddings API settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// WhatsAppConfig holds WhatsApp Cloud API credentials and webhook settings.
type WhatsAppConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	PhoneNumberID string `yaml:"phone_number_id" mapstructure:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token" mapstructure:"verify_token"`
	AppSecret     string `yaml:"app_secret" mapstructure:"app_secret"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
}

// CatalogConfig optionally points at a YAML catalog override file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("THIRDEYE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so env-only deployments resolve
	// them without a config file.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("whatsapp.token", "")
	v.SetDefault("whatsapp.phone_number_id", "")
	v.SetDefault("whatsapp.verify_token", "")
	v.SetDefault("whatsapp.app_secret", "")
	v.SetDefault("catalog.path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "thirdeye.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.validator_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.narrator_model", "claude-haiku-4-5-20251001")
	v.SetDefault("jina.base_url", "https://api.jina.ai")
	v.SetDefault("jina.model", "jina-embeddings-v3")
	v.SetDefault("whatsapp.base_url", "https://graph.facebook.com/v21.0")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys a given mode requires are present. Modes:
// "pipeline" for analysis runs, "serve" additionally needs the WhatsApp
// webhook settings, "reports" only needs the store.
func (c *Config) Validate(mode string) error {
	if mode == "reports" {
		return nil
	}
	if c.Anthropic.Key == "" {
		return eris.New("config: THIRDEYE_ANTHROPIC_KEY is required")
	}
	if c.Jina.Key == "" {
		return eris.New("config: THIRDEYE_JINA_KEY is required")
	}
	if mode == "serve" {
		if c.WhatsApp.Token == "" || c.WhatsApp.PhoneNumberID == "" {
			return eris.New("config: whatsapp token and phone_number_id are required to serve")
		}
		if c.WhatsApp.VerifyToken == "" {
			return eris.New("config: THIRDEYE_WHATSAPP_VERIFY_TOKEN is required to serve")
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
