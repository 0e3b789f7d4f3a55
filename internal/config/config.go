package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	AIBaseURL   string `mapstructure:"AI_BASE_URL"`
	AIModel     string `mapstructure:"AI_MODEL"`
	AIAPIKey    string `mapstructure:"AI_API_KEY"`
	AIMaxTokens int    `mapstructure:"AI_MAX_TOKENS"`

	EmbedBaseURL string `mapstructure:"EMBED_BASE_URL"`
	EmbedModel   string `mapstructure:"EMBED_MODEL"`
	EmbedAPIKey  string `mapstructure:"EMBED_API_KEY"`
	EmbedDim     int    `mapstructure:"EMBED_DIM"`

	QdrantURL        string `mapstructure:"QDRANT_URL"`
	QdrantCollection string `mapstructure:"QDRANT_COLLECTION"`

	TicketIDPrefix   string `mapstructure:"TICKET_ID_PREFIX"`
	ChatHistoryLimit int    `mapstructure:"CHAT_HISTORY_LIMIT"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("AI_MAX_TOKENS", 1024)
	v.SetDefault("EMBED_DIM", 768)
	v.SetDefault("QDRANT_COLLECTION", "tickets")
	v.SetDefault("TICKET_ID_PREFIX", "def")
	v.SetDefault("CHAT_HISTORY_LIMIT", 5)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
