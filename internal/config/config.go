package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	Database      DatabaseConfig   `json:"database"`
	Index         IndexConfig      `json:"index"`
	Session       SessionConfig    `json:"session"`
	LogConfig     logger.LogConfig `json:"log_config"`
	AI            AIConfig         `json:"ai"`
	Ingest        IngestConfig     `json:"ingest"`
	Search        SearchConfig     `json:"search"`
	Quote         QuoteConfig      `json:"quote"`
	FileStore     FileStoreConfig  `json:"file_store"`
	Jobs          JobsConfig       `json:"jobs"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	RateLimit     RateLimitConfig  `json:"rate_limit"`
}

type RateLimitConfig struct {
	PerSecond float64 `json:"per_second"`
	Burst     int     `json:"burst"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type IndexConfig struct {
	// pgvector or memory
	Type       string `json:"type"`
	Dimensions int    `json:"dimensions"`
}

type SessionConfig struct {
	// db or memory
	Store      string `json:"store"`
	TTLHours   int    `json:"ttl_hours"`
	MaxEntries int    `json:"max_entries"`
}

type ProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Generators     []ProviderConfig `json:"generators"`
	Embedders      []ProviderConfig `json:"embedders"`
	Timeout        int              `json:"timeout"`
	MaxInputChars  int              `json:"max_input_chars"`
	EmbedCacheSize int              `json:"embed_cache_size"`
	EmbedCacheTTL  int              `json:"embed_cache_ttl"`
	EmbedDBCache   bool             `json:"embed_db_cache"`
	// keyword or model
	Classifier string `json:"classifier"`
}

type IngestConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	BatchSize    int `json:"batch_size"`
	TopK         int `json:"top_k"`
	MaxUploadMB  int `json:"max_upload_mb"`
	// seconds allowed for one document search
	RetrieveTimeout int `json:"retrieve_timeout"`
}

type SearchConfig struct {
	Endpoint   string  `json:"endpoint"`
	MaxResults int     `json:"max_results"`
	Timeout    int     `json:"timeout"`
	RatePerSec float64 `json:"rate_per_sec"`
}

type QuoteConfig struct {
	Endpoint   string            `json:"endpoint"`
	Timeout    int               `json:"timeout"`
	CacheTTL   int               `json:"cache_ttl"`
	RatePerSec float64           `json:"rate_per_sec"`
	Aliases    map[string]string `json:"aliases"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	EmbedCacheCleanupSpec string `json:"embed_cache_cleanup_spec"`
	EmbedCacheMaxAgeDays  int    `json:"embed_cache_max_age_days"`
	SessionCleanupSpec    string `json:"session_cleanup_spec"`
}

// Load reads the json config at path. A .env file next to the working
// directory, when present, is loaded first so secrets may be supplied
// through FINWISE_* variables instead of the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("FINWISE_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("FINWISE_DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	for i := range cfg.AI.Generators {
		injectAPIKey(&cfg.AI.Generators[i])
	}
	for i := range cfg.AI.Embedders {
		injectAPIKey(&cfg.AI.Embedders[i])
	}
}

// injectAPIKey fills data.api_key from FINWISE_<PROVIDER>_API_KEY when the
// config leaves it empty.
func injectAPIKey(p *ProviderConfig) {
	key := strings.TrimSpace(os.Getenv("FINWISE_" + strings.ToUpper(p.Provider) + "_API_KEY"))
	if key == "" {
		return
	}
	data, _ := p.Data.(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	if existing, _ := data["api_key"].(string); existing != "" {
		return
	}
	data["api_key"] = key
	p.Data = data
}

func applyDefaults(cfg *Config) {
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "pgvector"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "db"
	}
	if cfg.Session.TTLHours == 0 {
		cfg.Session.TTLHours = 24
	}
	if cfg.Session.MaxEntries == 0 {
		cfg.Session.MaxEntries = 10000
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.Classifier == "" {
		cfg.AI.Classifier = "keyword"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 150
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 5
	}
	if cfg.Ingest.TopK == 0 {
		cfg.Ingest.TopK = 5
	}
	if cfg.Ingest.MaxUploadMB == 0 {
		cfg.Ingest.MaxUploadMB = 20
	}
	if cfg.Ingest.RetrieveTimeout == 0 {
		cfg.Ingest.RetrieveTimeout = 90
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 8
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 20
	}
	if cfg.Quote.Timeout == 0 {
		cfg.Quote.Timeout = 10
	}
	if cfg.Quote.CacheTTL == 0 {
		cfg.Quote.CacheTTL = 60
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "none"
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.Jobs.EmbedCacheMaxAgeDays == 0 {
		cfg.Jobs.EmbedCacheMaxAgeDays = 30
	}
}

func (cfg *Config) Validate() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	switch cfg.Index.Type {
	case "pgvector":
		if !cfg.Database.Enabled() {
			return fmt.Errorf("database is required for pgvector index")
		}
	case "memory":
	default:
		return fmt.Errorf("index.type must be pgvector or memory")
	}
	switch cfg.Session.Store {
	case "db":
		if !cfg.Database.Enabled() {
			return fmt.Errorf("database is required for db session store")
		}
	case "memory":
	default:
		return fmt.Errorf("session.store must be db or memory")
	}
	if cfg.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if cfg.Ingest.ChunkOverlap < 0 || cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if cfg.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}
	if cfg.AI.Classifier != "keyword" && cfg.AI.Classifier != "model" {
		return fmt.Errorf("ai.classifier must be keyword or model")
	}
	if len(cfg.AI.Generators) == 0 {
		return fmt.Errorf("ai.generators is required")
	}
	if len(cfg.AI.Embedders) == 0 {
		return fmt.Errorf("ai.embedders is required")
	}
	return nil
}
