package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/joblens/internal/cache"
	"github.com/spigell/joblens/internal/matching"
	"github.com/spigell/joblens/internal/services"
	"github.com/spigell/joblens/internal/supabase"
)

const (
	app = "joblens"
)

type Config struct {
	Services    *ServicesConfig `mapstructure:"services"`
	Supabase    *SupabaseConfig `mapstructure:"supabase"`
	Store       *StoreConfig    `mapstructure:"store"`
	Postgres    *PostgresConfig `mapstructure:"postgres"`
	Redis       *RedisConfig    `mapstructure:"redis"`
	Cache       *CacheConfig    `mapstructure:"cache"`
	Match       *MatchConfig    `mapstructure:"match"`
	Gemini      *GeminiConfig   `mapstructure:"gemini"`
	SessionFile string          `mapstructure:"session-file"`
	ExcludeFile string          `mapstructure:"exclude-file"`
}

type ServicesConfig struct {
	Scraper   services.Endpoint `mapstructure:"scraper"`
	Matcher   services.Endpoint `mapstructure:"matcher"`
	Embedder  EmbedderConfig    `mapstructure:"embedder"`
	UserAgent string            `mapstructure:"user-agent"`
}

type EmbedderConfig struct {
	services.Endpoint `mapstructure:",squash"`
	UploadTimeout     time.Duration `mapstructure:"upload-timeout"`
}

type SupabaseConfig struct {
	URL         string `mapstructure:"url"`
	AnonKey     string `mapstructure:"anon-key"`
	AnonKeyFile string `mapstructure:"anon-key-file"`
	Table       string `mapstructure:"table"`
}

type StoreConfig struct {
	// Backend is "supabase" or "postgres".
	Backend string `mapstructure:"backend"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type CacheConfig struct {
	Path string `mapstructure:"path"`
}

type MatchConfig struct {
	Limit  int  `mapstructure:"limit"`
	Rerank bool `mapstructure:"rerank"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "joblens is a cli for matching your CV against scraped job postings",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// envBindings keeps the variable names the web client used.
var envBindings = map[string]string{
	"supabase.url":           "SUPABASE_URL",
	"supabase.anon-key":      "SUPABASE_ANON_KEY",
	"supabase.anon-key-file": "SUPABASE_ANON_KEY_FILE",
	"services.scraper.url":   "SCRAPER_SERVICE_URL",
	"services.embedder.url":  "EMBEDDER_SERVICE_URL",
	"services.matcher.url":   "MATCHER_SERVICE_URL",
	"postgres.url":           "DATABASE_URL",
	"redis.url":              "REDIS_URL",
	"gemini.api-key-file":    "GEMINI_API_KEY_FILE",
	"session-file":           "JOBLENS_SESSION_FILE",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is joblens.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("services.scraper.url", services.DefaultScraper.URL)
	viper.SetDefault("services.scraper.timeout", services.DefaultScraper.Timeout)
	viper.SetDefault("services.matcher.url", services.DefaultMatcher.URL)
	viper.SetDefault("services.matcher.timeout", services.DefaultMatcher.Timeout)
	viper.SetDefault("services.embedder.url", services.DefaultEmbedder.URL)
	viper.SetDefault("services.embedder.timeout", services.DefaultEmbedder.Timeout)
	viper.SetDefault("services.embedder.upload-timeout", services.DefaultUploadTimeout)
	viper.SetDefault("supabase.table", supabase.DefaultTable)
	viper.SetDefault("store.backend", backendSupabase)
	viper.SetDefault("redis.ttl", cache.DefaultTTL)
	viper.SetDefault("match.limit", matching.DefaultLimit)
	viper.SetDefault("gemini.dimensions", matching.Dimensions)
}

func initConfig() {
	// A missing .env is fine, the variables may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		// We can't proceed if the given config file is unreadable.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
