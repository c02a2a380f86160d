package model

import "time"

// Config is the full runtime configuration. Defaults reflect the fixed
// scoring design; the penalty algebra is not meant to be tuned per
// deployment, but keeping the constants here makes every deduction
// inspectable in `safelens config show`.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Redirect    RedirectConfig    `yaml:"redirect" mapstructure:"redirect"`
	Classifier  ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Content     ContentConfig     `yaml:"content" mapstructure:"content"`
	Cert        CertConfig        `yaml:"cert" mapstructure:"cert"`
	Trust       TrustConfig       `yaml:"trust" mapstructure:"trust"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	ThreatDB    ThreatDBConfig    `yaml:"threat_db" mapstructure:"threat_db"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	SMS         SMSConfig         `yaml:"sms" mapstructure:"sms"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
}

// HTTPConfig covers outbound page fetching.
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RatePerDomain float64       `yaml:"rate_per_domain" mapstructure:"rate_per_domain"`
	RateBurst     int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// RedirectConfig covers chain resolution and its penalty curve.
type RedirectConfig struct {
	HopCeiling     int           `yaml:"hop_ceiling" mapstructure:"hop_ceiling"`
	BasePenalty    int           `yaml:"base_penalty" mapstructure:"base_penalty"`
	ExtraPenalty   int           `yaml:"extra_penalty" mapstructure:"extra_penalty"`
	NavTimeout     time.Duration `yaml:"nav_timeout" mapstructure:"nav_timeout"`
	BlockPageHosts []string      `yaml:"block_page_hosts" mapstructure:"block_page_hosts"`
	Screenshot     bool          `yaml:"screenshot" mapstructure:"screenshot"`
	ScreenshotDir  string        `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
}

// ClassifierConfig covers the two-model URL ensemble.
type ClassifierConfig struct {
	WeightA         float64 `yaml:"weight_a" mapstructure:"weight_a"`
	WeightB         float64 `yaml:"weight_b" mapstructure:"weight_b"`
	HighThreshold   float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold" mapstructure:"medium_threshold"`
	ModelAPath      string  `yaml:"model_a_path" mapstructure:"model_a_path"`
	ModelBPath      string  `yaml:"model_b_path" mapstructure:"model_b_path"`
	ShortenerPath   string  `yaml:"shortener_path" mapstructure:"shortener_path"`
}

// ContentConfig covers the AI content risk stage.
type ContentConfig struct {
	MaxChars      int `yaml:"max_chars" mapstructure:"max_chars"`
	HighPenalty   int `yaml:"high_penalty" mapstructure:"high_penalty"`
	MediumPenalty int `yaml:"medium_penalty" mapstructure:"medium_penalty"`
}

// CertConfig covers the certificate stage penalties and bonuses.
type CertConfig struct {
	NoTLSPenalty   int           `yaml:"no_tls_penalty" mapstructure:"no_tls_penalty"`
	InvalidPenalty int           `yaml:"invalid_penalty" mapstructure:"invalid_penalty"`
	OVBonus        int           `yaml:"ov_bonus" mapstructure:"ov_bonus"`
	EVBonus        int           `yaml:"ev_bonus" mapstructure:"ev_bonus"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TrustConfig holds the final classification thresholds.
type TrustConfig struct {
	SafeThreshold       int `yaml:"safe_threshold" mapstructure:"safe_threshold"`
	SuspiciousThreshold int `yaml:"suspicious_threshold" mapstructure:"suspicious_threshold"`
}

// CacheConfig selects and parameterizes the result store backend.
type CacheConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"` // "disk", "redis", "memory"
	Dir       string `yaml:"dir" mapstructure:"dir"`
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB   int    `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// ThreatDBConfig points at the deny-list sources loaded once at startup.
type ThreatDBConfig struct {
	CSVPaths  []string `yaml:"csv_paths" mapstructure:"csv_paths"`
	ListPaths []string `yaml:"list_paths" mapstructure:"list_paths"`
}

// LLMConfig selects the generative classification provider.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SMSConfig covers the local text-classifier backend for the SMS channel.
type SMSConfig struct {
	ModelPathKo     string        `yaml:"model_path_ko" mapstructure:"model_path_ko"`
	ModelPathEn     string        `yaml:"model_path_en" mapstructure:"model_path_en"`
	OnnxLibraryPath string        `yaml:"onnx_library_path" mapstructure:"onnx_library_path"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	DangerPenalty   int           `yaml:"danger_penalty" mapstructure:"danger_penalty"`
	SuspectPenalty  int           `yaml:"suspect_penalty" mapstructure:"suspect_penalty"`
}

// ConcurrencyConfig bounds parallel work in adapters and batch scans.
type ConcurrencyConfig struct {
	URLWorkers   int `yaml:"url_workers" mapstructure:"url_workers"`
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// DefaultConfig returns the fixed-by-design scoring constants plus sensible
// operational defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       10 * time.Second,
			UserAgent:     "SafeLens/0.1 (+https://github.com/safelens/safelens)",
			MaxBodyBytes:  2 << 20,
			RespectRobots: false,
			RatePerDomain: 2.0,
			RateBurst:     5,
		},
		Redirect: RedirectConfig{
			HopCeiling:    20,
			BasePenalty:   15,
			ExtraPenalty:  5,
			NavTimeout:    15 * time.Second,
			Screenshot:    false,
			ScreenshotDir: "screenshots",
		},
		Classifier: ClassifierConfig{
			WeightA:         0.98,
			WeightB:         0.92,
			HighThreshold:   0.7,
			MediumThreshold: 0.4,
			ModelAPath:      "models/link/hosting.yaml",
			ModelBPath:      "models/link/markup.yaml",
			ShortenerPath:   "data/short/list.txt",
		},
		Content: ContentConfig{
			MaxChars:      8000,
			HighPenalty:   50,
			MediumPenalty: 30,
		},
		Cert: CertConfig{
			NoTLSPenalty:   30,
			InvalidPenalty: 30,
			OVBonus:        20,
			EVBonus:        30,
			Timeout:        5 * time.Second,
		},
		Trust: TrustConfig{
			SafeThreshold:       70,
			SuspiciousThreshold: 40,
		},
		Cache: CacheConfig{
			Backend:   "disk",
			Dir:       "cache",
			RedisAddr: "localhost:6379",
			KeyPrefix: "safelens:v1:",
		},
		ThreatDB: ThreatDBConfig{
			CSVPaths:  []string{"data/phishing/iscx_url.csv"},
			ListPaths: []string{"data/phishing/kisa_url.txt"},
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Timeout:   30,
			MaxTokens: 1000,
		},
		SMS: SMSConfig{
			ModelPathKo:    "models/sms/ko",
			ModelPathEn:    "models/sms/en",
			Timeout:        30 * time.Second,
			DangerPenalty:  50,
			SuspectPenalty: 20,
		},
		Concurrency: ConcurrencyConfig{
			URLWorkers:   4,
			BatchWorkers: 8,
		},
	}
}
