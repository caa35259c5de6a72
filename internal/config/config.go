package config

import (
	"time"

	"github.com/newsbrief/newsbrief/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for newsbrief.
type Config struct {
	Sources  []types.Source `mapstructure:"sources"  yaml:"sources"`
	Scraper  ScraperConfig  `mapstructure:"scraper"  yaml:"scraper"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Proxy    ProxyConfig    `mapstructure:"proxy"    yaml:"proxy"`
	Extract  ExtractConfig  `mapstructure:"extract"  yaml:"extract"`
	AI       AIConfig       `mapstructure:"ai"       yaml:"ai"`
	Quota    QuotaConfig    `mapstructure:"quota"    yaml:"quota"`
	Payment  PaymentConfig  `mapstructure:"payment"  yaml:"payment"`
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// ScraperConfig controls the headline aggregation run.
type ScraperConfig struct {
	ListingTimeout  time.Duration `mapstructure:"listing_timeout"  yaml:"listing_timeout"`
	ArticleTimeout  time.Duration `mapstructure:"article_timeout"  yaml:"article_timeout"`
	MaxHeadlines    int           `mapstructure:"max_headlines"    yaml:"max_headlines"`
	SourceDelay     time.Duration `mapstructure:"source_delay"     yaml:"source_delay"`
	Concurrency     int           `mapstructure:"concurrency"      yaml:"concurrency"`
	IncludePatterns []string      `mapstructure:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns []string      `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	UserAgents      []string      `mapstructure:"user_agents"      yaml:"user_agents"`
}

// FetcherConfig controls the request fetcher.
type FetcherConfig struct {
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	BrowserStealth  bool          `mapstructure:"browser_stealth"   yaml:"browser_stealth"`
	RespectRobots   bool          `mapstructure:"respect_robots"    yaml:"respect_robots"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// ExtractConfig tunes the snippet, media, and content extractors.
type ExtractConfig struct {
	PlaceholderImage   string   `mapstructure:"placeholder_image"    yaml:"placeholder_image"`
	SnippetMinLength   int      `mapstructure:"snippet_min_length"   yaml:"snippet_min_length"`
	SnippetMaxLength   int      `mapstructure:"snippet_max_length"   yaml:"snippet_max_length"`
	TitleFallbackLen   int      `mapstructure:"title_fallback_len"   yaml:"title_fallback_len"`
	MinImageSize       int      `mapstructure:"min_image_size"       yaml:"min_image_size"`
	MinLeadLength      int      `mapstructure:"min_lead_length"      yaml:"min_lead_length"`
	RemoveSelectors    []string `mapstructure:"remove_selectors"     yaml:"remove_selectors"`
	BoilerplatePhrases []string `mapstructure:"boilerplate_phrases"  yaml:"boilerplate_phrases"`
	Readability        bool     `mapstructure:"readability"          yaml:"readability"`
}

// AIConfig controls the language-model client.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"    yaml:"provider"`
	Endpoint    string        `mapstructure:"endpoint"    yaml:"endpoint"`
	Model       string        `mapstructure:"model"       yaml:"model"`
	APIKey      string        `mapstructure:"api_key"     yaml:"api_key"`
	MaxTokens   int           `mapstructure:"max_tokens"  yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"     yaml:"timeout"`
	MaxInput    int           `mapstructure:"max_input"   yaml:"max_input"`
}

// QuotaConfig sets the free tier daily limits.
type QuotaConfig struct {
	FreeSummaryLimit int `mapstructure:"free_summary_limit" yaml:"free_summary_limit"`
	FreeChatLimit    int `mapstructure:"free_chat_limit"    yaml:"free_chat_limit"`
}

// PaymentConfig holds the Razorpay credentials.
type PaymentConfig struct {
	KeyID         string        `mapstructure:"key_id"         yaml:"key_id"`
	KeySecret     string        `mapstructure:"key_secret"     yaml:"key_secret"`
	Endpoint      string        `mapstructure:"endpoint"       yaml:"endpoint"`
	DefaultAmount int64         `mapstructure:"default_amount" yaml:"default_amount"`
	Currency      string        `mapstructure:"currency"       yaml:"currency"`
	Timeout       time.Duration `mapstructure:"timeout"        yaml:"timeout"`
}

// ServerConfig controls the REST API.
type ServerConfig struct {
	Port         int           `mapstructure:"port"          yaml:"port"`
	SecretKey    string        `mapstructure:"secret_key"    yaml:"secret_key"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultSources mirrors the publishers the service shipped with.
func DefaultSources() []types.Source {
	return []types.Source{
		{Name: "NDTV", ListingURL: "https://www.ndtv.com/latest"},
		{Name: "Hindustan Times", ListingURL: "https://www.hindustantimes.com/latest-news"},
		{Name: "Times of India", ListingURL: "https://timesofindia.indiatimes.com/"},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sources: DefaultSources(),
		Scraper: ScraperConfig{
			ListingTimeout: 10 * time.Second,
			ArticleTimeout: 15 * time.Second,
			MaxHeadlines:   40,
			SourceDelay:    1 * time.Second,
			Concurrency:    1,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    20,
		},
		Proxy: ProxyConfig{
			Rotation: "round_robin",
		},
		Extract: ExtractConfig{
			PlaceholderImage: "https://placehold.co/600x400?text=No+Image",
			SnippetMinLength: 20,
			SnippetMaxLength: 300,
			TitleFallbackLen: 150,
			MinImageSize:     50,
			MinLeadLength:    50,
			Readability:      true,
		},
		AI: AIConfig{
			Provider:    "openrouter",
			Endpoint:    "https://openrouter.ai/api/v1/chat/completions",
			Model:       "deepseek/deepseek-r1-0528:free",
			MaxTokens:   512,
			Temperature: 0.3,
			Timeout:     30 * time.Second,
			MaxInput:    12000,
		},
		Quota: QuotaConfig{
			FreeSummaryLimit: 1,
			FreeChatLimit:    1,
		},
		Payment: PaymentConfig{
			Endpoint:      "https://api.razorpay.com/v1",
			DefaultAmount: 50000, // paise
			Currency:      "INR",
			Timeout:       15 * time.Second,
		},
		Server: ServerConfig{
			Port:         5000,
			SecretKey:    "a_very_secret_key_for_dev",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
