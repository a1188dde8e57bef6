// Package config provides configuration loading, validation, and management
// for the baraholka bot. It handles reading from YAML files, BOT_* environment
// variables, setting default values, and validating configuration parameters.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration indicates a fatal configuration problem. The process must
// refuse to start when Load returns an error wrapping it.
var ErrConfiguration = errors.New("configuration error")

// BotInfo holds the bot identity retrieved at startup via GetMe.
type BotInfo struct {
	ID       int64
	Username string
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TelegramConfig holds Telegram credentials and the admin identity that gates
// the command surface.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`

	// BotInfo is populated at runtime after GetMe, not from the config file.
	BotInfo BotInfo `mapstructure:"-"`
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// StorageConfig holds the object storage (MinIO/S3-compatible) settings used
// for listing images.
type StorageConfig struct {
	Endpoint      string `mapstructure:"endpoint"        validate:"required"`
	AccessKey     string `mapstructure:"access_key"      validate:"required"`
	SecretKey     string `mapstructure:"secret_key"      validate:"required"`
	Bucket        string `mapstructure:"bucket"          validate:"required"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`
}

// CategoryRule maps a keyword to a listing category. Rules are evaluated in
// slice order; the first keyword found in the text wins.
type CategoryRule struct {
	Keyword  string `mapstructure:"keyword"  validate:"required"`
	Category string `mapstructure:"category" validate:"required,oneof=clothing footwear accessories other"`
}

// ClassifierConfig holds the keyword lexicons used to recognize sale posts
// and sold-out inventory. Matching is case-insensitive substring containment.
type ClassifierConfig struct {
	SaleKeywords    []string `mapstructure:"sale_keywords"     validate:"required,min=1,dive,required"`
	SoldOutKeywords []string `mapstructure:"sold_out_keywords" validate:"required,min=1,dive,required"`
}

// ExtractorConfig holds field extraction settings.
type ExtractorConfig struct {
	TitleMaxLen int            `mapstructure:"title_max_len" validate:"required,gt=0"`
	PriceUnits  []string       `mapstructure:"price_units"   validate:"required,min=1,dive,required"`
	Categories  []CategoryRule `mapstructure:"categories"    validate:"required,min=1,dive"`
}

// PipelineConfig holds ingestion pipeline tuning.
type PipelineConfig struct {
	SeenCacheSize   int           `mapstructure:"seen_cache_size"  validate:"required,gt=0"`
	BackfillLimit   int           `mapstructure:"backfill_limit"   validate:"required,gt=0"`
	ExternalTimeout time.Duration `mapstructure:"external_timeout" validate:"required,min=1s,max=5m"`
}

// TaskConfig describes a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds user-visible reply texts.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"        validate:"required"`
	NotAuthorized string `mapstructure:"not_authorized" validate:"required"`
	BackfillBusy  string `mapstructure:"backfill_busy"  validate:"required"`
	BackfillDone  string `mapstructure:"backfill_done"  validate:"required"`
	GeneralError  string `mapstructure:"general_error"  validate:"required"`
}

// Config defines the application configuration for all components of the bot.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional)
// 3. BOT_* environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
		// Missing config file is fine; defaults plus env vars still apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.path", "baraholka.db")

	v.SetDefault("storage.bucket", "listing-images")
	v.SetDefault("storage.use_ssl", true)

	v.SetDefault("classifier.sale_keywords", []string{"продам", "продаж", "купити", "ціна", "грн", "$"})
	v.SetDefault("classifier.sold_out_keywords", []string{"продано", "sold out", "немає в наявності", "закінчилось"})

	v.SetDefault("extractor.title_max_len", 50)
	v.SetDefault("extractor.price_units", []string{"грн", "uah", "usd", "$"})
	v.SetDefault("extractor.categories", []map[string]any{
		{"keyword": "одяг", "category": "clothing"},
		{"keyword": "взуття", "category": "footwear"},
		{"keyword": "аксесуари", "category": "accessories"},
	})

	v.SetDefault("pipeline.seen_cache_size", 4096)
	v.SetDefault("pipeline.backfill_limit", 1000)
	v.SetDefault("pipeline.external_timeout", 30*time.Second)

	v.SetDefault("messages.welcome", "Привіт! Додай мене адміністратором у канал з оголошеннями, і я почну збирати товари.")
	v.SetDefault("messages.not_authorized", "You are not authorized to use this command.")
	v.SetDefault("messages.backfill_busy", "Backfill is already running, try again later.")
	v.SetDefault("messages.backfill_done", "Backfill finished: %d ingested, %d skipped, %d failed.")
	v.SetDefault("messages.general_error", "An error occurred. Please try again later.")
}
