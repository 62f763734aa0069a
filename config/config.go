package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dyike/cortexanalyst/internal/scoring"
)

var ErrInvalidConfig = errors.New("invalid config")

// Supported reasoning providers.
const (
	ProviderDeepSeek  = "deepseek"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`
	DatabasePath string `json:"database_path"`

	LLMProvider   string `json:"llm_provider"`
	DeepThinkLLM  string `json:"deep_think_llm"`
	QuickThinkLLM string `json:"quick_think_llm"`
	BackendURL    string `json:"backend_url"`
	MaxTokens     int    `json:"max_tokens"`

	// Timeouts in seconds.
	CallTimeout   int `json:"call_timeout"`
	SourceTimeout int `json:"source_timeout"`

	// Quality gate
	MaxIterations    int                `json:"max_iterations"`
	QualityThreshold float64            `json:"quality_threshold"`
	ScoreWeights     map[string]float64 `json:"score_weights,omitempty"`

	ConfirmInstrument bool   `json:"confirm_instrument"`
	ArchiveEnabled    bool   `json:"archive_enabled"`
	ExportMarkdown    bool   `json:"export_markdown"`
	NewsFeedURL       string `json:"news_feed_url"`
	NewsLimit         int    `json:"news_limit"`
	HistoryDays       int    `json:"history_days"`

	Debug        bool `json:"debug"`
	TraceEnabled bool `json:"trace_enabled"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	CacheEnabled bool `json:"cache_enabled"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// AI Model API Keys
	DeepSeekAPIKey  string `json:"deepseek_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key"`
	GeminiAPIKey    string `json:"gemini_api_key"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	return DefaultConfigWithRoot(currentDir)
}

// DefaultConfigWithRoot builds the defaults with every directory below root,
// then applies .env and environment overrides.
func DefaultConfigWithRoot(root string) *Config {
	cfg := &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),
		DatabasePath: filepath.Join(root, "data", "sessions.db"),

		LLMProvider:   ProviderDeepSeek,
		DeepThinkLLM:  "deepseek-chat",
		QuickThinkLLM: "deepseek-chat",
		MaxTokens:     4096,

		CallTimeout:   120,
		SourceTimeout: 15,

		MaxIterations:    3,
		QualityThreshold: 50,

		ArchiveEnabled: true,
		ExportMarkdown: true,
		NewsFeedURL:    "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US",
		NewsLimit:      5,
		HistoryDays:    30,

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		CacheEnabled: true,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

func (c *Config) loadFromEnv() {
	setString(&c.ProjectDir, "PROJECT_DIR")
	setString(&c.ResultsDir, "RESULTS_DIR")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.DataCacheDir, "DATA_CACHE_DIR")
	setString(&c.DatabasePath, "DATABASE_PATH")

	setString(&c.LLMProvider, "LLM_PROVIDER")
	setString(&c.DeepThinkLLM, "DEEP_THINK_LLM")
	setString(&c.QuickThinkLLM, "QUICK_THINK_LLM")
	setString(&c.BackendURL, "BACKEND_URL")
	setInt(&c.MaxTokens, "MAX_TOKENS")
	setInt(&c.CallTimeout, "CALL_TIMEOUT")
	setInt(&c.SourceTimeout, "SOURCE_TIMEOUT")

	setInt(&c.MaxIterations, "MAX_ITERATIONS")
	if val := os.Getenv("QUALITY_THRESHOLD"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.QualityThreshold = v
		}
	}
	setBool(&c.ConfirmInstrument, "CONFIRM_INSTRUMENT")
	setBool(&c.ArchiveEnabled, "ARCHIVE_ENABLED")
	setBool(&c.ExportMarkdown, "EXPORT_MARKDOWN")
	setString(&c.NewsFeedURL, "NEWS_FEED_URL")
	setInt(&c.NewsLimit, "NEWS_LIMIT")

	setBool(&c.CacheEnabled, "CACHE_ENABLED")
	setBool(&c.Debug, "CORTEX_DEBUG")
	setBool(&c.TraceEnabled, "TRACE_ENABLED")
	setBool(&c.EinoDebugEnabled, "EINO_DEBUG_ENABLED")
	setInt(&c.EinoDebugPort, "EINO_DEBUG_PORT")

	c.loadSecretsFromEnv(true)
}

// loadSecretsFromEnv copies credentials from the environment. With
// override false only empty fields are filled.
func (c *Config) loadSecretsFromEnv(override bool) {
	secrets := map[string]*string{
		"LONGPORT_APP_KEY":      &c.LongportAppKey,
		"LONGPORT_APP_SECRET":   &c.LongportAppSecret,
		"LONGPORT_ACCESS_TOKEN": &c.LongportAccessToken,
		"DEEPSEEK_API_KEY":      &c.DeepSeekAPIKey,
		"OPENAI_API_KEY":        &c.OpenAIAPIKey,
		"ANTHROPIC_API_KEY":     &c.AnthropicAPIKey,
		"GEMINI_API_KEY":        &c.GeminiAPIKey,
	}
	for env, field := range secrets {
		if !override && *field != "" {
			continue
		}
		setString(field, env)
	}
}

func setString(dst *string, env string) {
	if val := os.Getenv(env); val != "" {
		*dst = val
	}
}

func setInt(dst *int, env string) {
	if val := os.Getenv(env); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			*dst = v
		}
	}
}

func setBool(dst *bool, env string) {
	if val := os.Getenv(env); val != "" {
		if v, err := strconv.ParseBool(val); err == nil {
			*dst = v
		}
	}
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderDeepSeek, ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown llm_provider %q", ErrInvalidConfig, c.LLMProvider)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be at least 1, got %d", ErrInvalidConfig, c.MaxIterations)
	}
	if c.QualityThreshold <= 0 || c.QualityThreshold > 100 {
		return fmt.Errorf("%w: quality_threshold must be within (0,100], got %g", ErrInvalidConfig, c.QualityThreshold)
	}
	if c.CallTimeout <= 0 || c.SourceTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if _, err := scoring.FromMap(c.ScoreWeights); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Weights returns the validated scoring coefficients.
func (c Config) Weights() (scoring.Weights, error) {
	return scoring.FromMap(c.ScoreWeights)
}

func (c Config) CallTimeoutDuration() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

func (c Config) SourceTimeoutDuration() time.Duration {
	return time.Duration(c.SourceTimeout) * time.Second
}

// APIKey returns the credential of the configured provider.
func (c Config) APIKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return c.DeepSeekAPIKey
	}
}

func (c Config) HasLongport() bool {
	return c.LongportAppKey != "" && c.LongportAppSecret != "" && c.LongportAccessToken != ""
}

// Redacted is a copy safe to print.
func (c Config) Redacted() Config {
	for _, s := range []*string{
		&c.LongportAppKey, &c.LongportAppSecret, &c.LongportAccessToken,
		&c.DeepSeekAPIKey, &c.OpenAIAPIKey, &c.AnthropicAPIKey, &c.GeminiAPIKey,
	} {
		if *s != "" {
			*s = "****"
		}
	}
	return c
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	if c.DatabasePath != "" {
		dirs = append(dirs, filepath.Dir(c.DatabasePath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
