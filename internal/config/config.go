// Package config loads runtime settings from the environment and the
// category catalogue from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultCategoriesPath = "configs/categories.yaml"
	DefaultSchedule       = "0 8 * * *"
)

// DefaultCategories is the topic list used when no catalogue file exists.
var DefaultCategories = []string{
	"arts", "business", "health", "nyregion", "politics", "realestate",
	"science", "sports", "technology", "travel", "us", "world",
}

// DefaultFeeds routes categories to RSS feeds instead of the topic API.
var DefaultFeeds = map[string]string{
	"sports": "https://theathletic.com/feeds/rss/news/",
}

type Config struct {
	// Headline sources
	NYTAPIKey     string
	TopStoriesURL string

	// Summarization
	AIProvider         string // gemini | openai
	GeminiAPIKey       string
	GeminiModel        string
	OpenAIAPIKey       string
	OpenAIModel        string
	MaxSummaryRequests int // 0 = unlimited
	SummaryCacheTTL    time.Duration

	// Extraction
	ExtractorProxyKey      string
	ExtractorProxyEndpoint string
	MinTextLength          int

	// Storage
	DatabaseURL     string
	SubscribersFile string

	// Delivery
	SendGridAPIKey     string
	MailFrom           string
	MailFromName       string
	UnsubscribeBaseURL string
	PreferencesBaseURL string
	DryRun             bool
	PruneUnvalidated   bool

	// Pipeline policy
	CategoriesPath  string
	ArticleCount    int
	PurgeThreshold  int
	RequestInterval time.Duration
	RequireImage    bool

	// App settings
	Debug          bool
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// Ops
	TelegramToken        string
	TelegramChatID       string
	Schedule             string
	EnableHTTPMonitoring bool
	MonitoringPort       int

	Catalog *Catalog
}

// Catalog is the YAML category catalogue.
type Catalog struct {
	Categories     []string          `yaml:"categories"`
	Labels         map[string]string `yaml:"labels"`
	Feeds          map[string]string `yaml:"feeds"`
	BlockedTitles  []string          `yaml:"blocked_titles"`
	BlockedPhrases []string          `yaml:"blocked_phrases"`
}

// Load reads the environment, then the catalogue, then validates the
// settings every command needs.
func Load() (*Config, error) {
	env := &envReader{}
	cfg := &Config{
		NYTAPIKey:     os.Getenv("NYT_API_KEY"),
		TopStoriesURL: getEnvOrDefault("TOP_STORIES_URL", "https://api.nytimes.com/svc/topstories/v2"),

		AIProvider:         strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini)),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		MaxSummaryRequests: env.getEnvIntOrDefault("MAX_SUMMARY_REQUESTS", 0),
		SummaryCacheTTL:    env.getEnvDurationOrDefault("SUMMARY_CACHE_TTL", 24*time.Hour),

		ExtractorProxyKey:      os.Getenv("EXTRACTOR_PROXY_KEY"),
		ExtractorProxyEndpoint: getEnvOrDefault("EXTRACTOR_PROXY_ENDPOINT", "https://api.scraperapi.com/"),
		MinTextLength:          env.getEnvIntOrDefault("MIN_TEXT_LENGTH", 200),

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SubscribersFile: os.Getenv("SUBSCRIBERS_FILE"),

		SendGridAPIKey:     os.Getenv("SENDGRID_API_KEY"),
		MailFrom:           getEnvOrDefault("MAIL_FROM", "yourdailyrundown@gmail.com"),
		MailFromName:       getEnvOrDefault("MAIL_FROM_NAME", "YourDailyRundown"),
		UnsubscribeBaseURL: getEnvOrDefault("UNSUBSCRIBE_BASE_URL", "https://yourdailyrundown.azurewebsites.net"),
		PreferencesBaseURL: getEnvOrDefault("PREFERENCES_BASE_URL", "https://giridharrnair.github.io/YourDailyRundown"),
		DryRun:             env.getEnvBoolOrDefault("DRY_RUN", false),
		PruneUnvalidated:   env.getEnvBoolOrDefault("PRUNE_UNVALIDATED", false),

		CategoriesPath:  getEnvOrDefault("CATEGORIES_CONFIG", DefaultCategoriesPath),
		ArticleCount:    env.getEnvIntOrDefault("ARTICLE_COUNT", 3),
		PurgeThreshold:  env.getEnvIntOrDefault("PURGE_THRESHOLD", 6),
		RequestInterval: env.getEnvDurationOrDefault("API_REQUEST_INTERVAL", 10*time.Second),
		RequireImage:    env.getEnvBoolOrDefault("REQUIRE_IMAGE", true),

		Debug:          env.getEnvBoolOrDefault("DEBUG", false),
		RequestTimeout: env.getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:  env.getEnvIntOrDefault("RETRY_ATTEMPTS", 3),
		RetryDelay:     env.getEnvDurationOrDefault("RETRY_DELAY", 5*time.Second),

		TelegramToken:        os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:       os.Getenv("TELEGRAM_CHAT_ID"),
		Schedule:             getEnvOrDefault("SCHEDULE", DefaultSchedule),
		EnableHTTPMonitoring: env.getEnvBoolOrDefault("ENABLE_HTTP_MONITORING", false),
		MonitoringPort:       env.getEnvIntOrDefault("MONITORING_PORT", 8080),
	}

	if err := env.err(); err != nil {
		return nil, err
	}

	catalog, err := LoadCatalog(cfg.CategoriesPath, os.Getenv("CATEGORIES_CONFIG") != "")
	if err != nil {
		return nil, err
	}
	cfg.Catalog = catalog

	return cfg, cfg.Validate()
}

// LoadCatalog reads the catalogue at path. A missing file falls back to the
// built-in defaults unless required is set.
func LoadCatalog(path string, required bool) (*Catalog, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return DefaultCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open categories config: %w", err)
	}
	defer f.Close()

	var c Catalog
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode categories config: %w", err)
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string(nil), DefaultCategories...)
	}
	if c.Feeds == nil {
		c.Feeds = map[string]string{}
		for k, v := range DefaultFeeds {
			c.Feeds[k] = v
		}
	}
	return &c, nil
}

func DefaultCatalog() *Catalog {
	feeds := make(map[string]string, len(DefaultFeeds))
	for k, v := range DefaultFeeds {
		feeds[k] = v
	}
	return &Catalog{
		Categories: append([]string(nil), DefaultCategories...),
		Labels:     map[string]string{},
		Feeds:      feeds,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed env values and remembers every malformed one.
type envReader struct {
	errs []error
}

func (r *envReader) invalid(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.invalid(key, value, err)
		return defaultValue
	}
	return intValue
}

func (r *envReader) getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.invalid(key, value, err)
		return defaultValue
	}
	return b
}

// getEnvDurationOrDefault accepts Go durations ("10s") or whole seconds.
func (r *envReader) getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	secs, err := strconv.Atoi(value)
	if err != nil {
		r.invalid(key, value, errors.New("want a duration like 10s or whole seconds"))
		return defaultValue
	}
	return time.Duration(secs) * time.Second
}

// IsPostgres reports whether DatabaseURL selects PostgreSQL.
func (c *Config) IsPostgres() bool {
	lower := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// Validate checks what the pipeline needs to run at all.
func (c *Config) Validate() error {
	if c.NYTAPIKey == "" {
		return fmt.Errorf("NYT_API_KEY is required")
	}
	switch c.AIProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be 'gemini' or 'openai'")
	}
	if c.ExtractorProxyKey == "" {
		return fmt.Errorf("EXTRACTOR_PROXY_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ArticleCount <= 0 {
		return fmt.Errorf("ARTICLE_COUNT must be positive")
	}
	if c.PurgeThreshold <= 0 {
		return fmt.Errorf("PURGE_THRESHOLD must be positive")
	}
	return nil
}

// ValidateDelivery checks the extra settings a sending run needs.
func (c *Config) ValidateDelivery() error {
	if c.SendGridAPIKey == "" && !c.DryRun {
		return fmt.Errorf("SENDGRID_API_KEY is required unless DRY_RUN=true")
	}
	if !c.IsPostgres() && c.SubscribersFile == "" {
		return fmt.Errorf("SUBSCRIBERS_FILE is required when DATABASE_URL is not PostgreSQL")
	}
	return nil
}

// TelegramEnabled reports whether run reports should be posted.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}
