package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// UpstreamConfig describes the chat-completion provider. WriteTimeout on the
// server and ResponseHeaderTimeout here are the only deadlines: a whole-request
// client timeout would cut long streams short.
type UpstreamConfig struct {
	APIKey                string        `mapstructure:"api_key"`
	BaseURL               string        `mapstructure:"base_url"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
}

type ProxyConfig struct {
	Path               string   `mapstructure:"path"`
	Models             []string `mapstructure:"models"`
	DefaultTemperature float64  `mapstructure:"default_temperature"`
	DefaultMaxTokens   int      `mapstructure:"default_max_tokens"`
	HistoryWindow      int      `mapstructure:"history_window"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
}

type LimitsConfig struct {
	MaxMessages             int   `mapstructure:"max_messages"`
	MaxParts                int   `mapstructure:"max_parts"`
	MaxTextChars            int   `mapstructure:"max_text_chars"`
	MaxSystemPromptChars    int   `mapstructure:"max_system_prompt_chars"`
	MaxCharacterPromptChars int   `mapstructure:"max_character_prompt_chars"`
	MaxImageBytes           int   `mapstructure:"max_image_bytes"`
	MaxBodyBytes            int64 `mapstructure:"max_body_bytes"`
}

type CORSConfig struct {
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposedHeaders []string `mapstructure:"exposed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	WindowMS    int64 `mapstructure:"window_ms"`
	MaxRequests int   `mapstructure:"max_requests"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMS) * time.Millisecond
}

const (
	DefaultWindowMS    = 60000
	DefaultMaxRequests = 10
)

var (
	mu  sync.RWMutex
	cfg *Config
	v   *viper.Viper
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("upstream.base_url", "https://api.x.ai/v1/chat/completions")
	v.SetDefault("upstream.response_header_timeout", 60*time.Second)

	v.SetDefault("proxy.path", "/api/chat")
	v.SetDefault("proxy.models", []string{
		"grok-4-fast-reasoning",
		"grok-4-fast-non-reasoning",
		"grok-4",
		"grok-3-mini",
	})
	v.SetDefault("proxy.default_temperature", 0.7)
	v.SetDefault("proxy.default_max_tokens", 512)
	v.SetDefault("proxy.history_window", 20)
	v.SetDefault("proxy.allowed_origins", []string{})

	v.SetDefault("limits.max_messages", 50)
	v.SetDefault("limits.max_parts", 16)
	v.SetDefault("limits.max_text_chars", 8000)
	v.SetDefault("limits.max_system_prompt_chars", 8000)
	v.SetDefault("limits.max_character_prompt_chars", 4000)
	v.SetDefault("limits.max_image_bytes", 5*1024*1024)
	v.SetDefault("limits.max_body_bytes", 12*1024*1024)

	v.SetDefault("cors.allowed_methods", []string{"POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{
		"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After",
	})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.window_ms", DefaultWindowMS)
	v.SetDefault("rate_limit.max_requests", DefaultMaxRequests)
}

// Load reads configPath when it exists, then applies environment overrides.
// A missing file is not an error: defaults plus environment are enough to run.
func Load(configPath string) (*Config, error) {
	nv := viper.New()
	setDefaults(nv)

	nv.SetEnvPrefix("CHAT")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	// Names used by the edge deployment take precedence over the prefixed form.
	_ = nv.BindEnv("upstream.api_key", "XAI_API_KEY", "CHAT_UPSTREAM_API_KEY")
	_ = nv.BindEnv("rate_limit.window_ms", "RATE_LIMIT_WINDOW_MS", "CHAT_RATE_LIMIT_WINDOW_MS")
	_ = nv.BindEnv("rate_limit.max_requests", "RATE_LIMIT_MAX_REQUESTS", "CHAT_RATE_LIMIT_MAX_REQUESTS")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			nv.SetConfigFile(configPath)
			nv.SetConfigType("yaml")
			if err := nv.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config %s: %w", configPath, err)
		}
	}

	loaded, err := decode(nv)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	cfg = loaded
	v = nv
	mu.Unlock()

	return loaded, nil
}

// decode resolves nv into a Config. Unusable rate-limit values are replaced
// on a scratch copy, so nv keeps tracking the file across reloads.
func decode(nv *viper.Viper) (*Config, error) {
	scratch := viper.New()
	if err := scratch.MergeConfigMap(nv.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for key, def := range map[string]int64{
		"rate_limit.window_ms":    DefaultWindowMS,
		"rate_limit.max_requests": DefaultMaxRequests,
	} {
		n, err := strconv.ParseInt(strings.TrimSpace(nv.GetString(key)), 10, 64)
		if err != nil || n <= 0 {
			scratch.Set(key, def)
		}
	}

	c := &Config{}
	if err := scratch.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.normalize()
	return c, nil
}

// normalize replaces unusable values (typically unparsable environment
// variables, which viper decodes as zero) with their defaults.
func (c *Config) normalize() {
	if c.RateLimit.WindowMS <= 0 {
		c.RateLimit.WindowMS = DefaultWindowMS
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = DefaultMaxRequests
	}
	if c.Proxy.DefaultMaxTokens <= 0 {
		c.Proxy.DefaultMaxTokens = 512
	}
	if c.Proxy.HistoryWindow <= 0 {
		c.Proxy.HistoryWindow = 20
	}
	if !strings.HasPrefix(c.Proxy.Path, "/") {
		c.Proxy.Path = "/" + c.Proxy.Path
	}
	c.Upstream.APIKey = strings.TrimSpace(c.Upstream.APIKey)
}

// Watch reloads the configuration whenever the backing file changes and
// hands the fresh copy to onChange. It is a no-op without a config file.
func Watch(onChange func(*Config)) bool {
	mu.RLock()
	nv := v
	mu.RUnlock()

	if nv == nil || nv.ConfigFileUsed() == "" {
		return false
	}

	nv.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		reloaded, err := decode(nv)
		if err != nil {
			logger.Warnf("config reload %s: %v", e.Name, err)
			return
		}
		mu.Lock()
		cfg = reloaded
		mu.Unlock()
		onChange(reloaded)
	})
	nv.WatchConfig()
	return true
}

func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
