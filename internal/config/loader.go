package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// geminiOpenAIEndpoint is Gemini's OpenAI-compatible chat completions URL,
// used when only the generic AI_API_KEY is configured.
const geminiOpenAIEndpoint = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"

// Load reads configuration from file, environment, and a .env file.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NEWSBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsbrief")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "newsbrief"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Sources decode as a whole list; a configured list replaces the defaults.
	cfg.Sources = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveAIFallback(cfg)
	return cfg, nil
}

// bindLegacyEnv maps the variable names the service has always read from
// .env onto config keys.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"ai.api_key":         {"NEWSBRIEF_AI_API_KEY", "OPENROUTER_API_KEY"},
		"ai.endpoint":        {"NEWSBRIEF_AI_ENDPOINT", "OPENROUTER_API_URL"},
		"ai.model":           {"NEWSBRIEF_AI_MODEL", "OPENROUTER_MODEL_NAME"},
		"payment.key_id":     {"NEWSBRIEF_PAYMENT_KEY_ID", "RAZORPAY_KEY_ID"},
		"payment.key_secret": {"NEWSBRIEF_PAYMENT_KEY_SECRET", "RAZORPAY_KEY_SECRET"},
		"server.secret_key":  {"NEWSBRIEF_SERVER_SECRET_KEY", "SECRET_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// resolveAIFallback switches to the generic AI_API_KEY (Gemini through its
// OpenAI-compatible endpoint) when no OpenRouter key is present.
func resolveAIFallback(cfg *Config) {
	if cfg.AI.APIKey != "" {
		return
	}
	key := os.Getenv("AI_API_KEY")
	if key == "" {
		return
	}
	cfg.AI.APIKey = key
	cfg.AI.Provider = "openai"
	cfg.AI.Endpoint = geminiOpenAIEndpoint
	cfg.AI.Model = os.Getenv("AI_MODEL_NAME")
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-pro"
	}
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("sources", cfg.Sources)

	v.SetDefault("scraper.listing_timeout", cfg.Scraper.ListingTimeout)
	v.SetDefault("scraper.article_timeout", cfg.Scraper.ArticleTimeout)
	v.SetDefault("scraper.max_headlines", cfg.Scraper.MaxHeadlines)
	v.SetDefault("scraper.source_delay", cfg.Scraper.SourceDelay)
	v.SetDefault("scraper.concurrency", cfg.Scraper.Concurrency)
	v.SetDefault("scraper.user_agents", cfg.Scraper.UserAgents)

	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.respect_robots", cfg.Fetcher.RespectRobots)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("extract.placeholder_image", cfg.Extract.PlaceholderImage)
	v.SetDefault("extract.snippet_min_length", cfg.Extract.SnippetMinLength)
	v.SetDefault("extract.snippet_max_length", cfg.Extract.SnippetMaxLength)
	v.SetDefault("extract.title_fallback_len", cfg.Extract.TitleFallbackLen)
	v.SetDefault("extract.min_image_size", cfg.Extract.MinImageSize)
	v.SetDefault("extract.min_lead_length", cfg.Extract.MinLeadLength)
	v.SetDefault("extract.readability", cfg.Extract.Readability)

	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.endpoint", cfg.AI.Endpoint)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)
	v.SetDefault("ai.temperature", cfg.AI.Temperature)
	v.SetDefault("ai.timeout", cfg.AI.Timeout)
	v.SetDefault("ai.max_input", cfg.AI.MaxInput)

	v.SetDefault("quota.free_summary_limit", cfg.Quota.FreeSummaryLimit)
	v.SetDefault("quota.free_chat_limit", cfg.Quota.FreeChatLimit)

	v.SetDefault("payment.endpoint", cfg.Payment.Endpoint)
	v.SetDefault("payment.default_amount", cfg.Payment.DefaultAmount)
	v.SetDefault("payment.currency", cfg.Payment.Currency)
	v.SetDefault("payment.timeout", cfg.Payment.Timeout)

	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.secret_key", cfg.Server.SecretKey)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
