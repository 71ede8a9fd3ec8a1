package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	Database   Database   `mapstructure:"database" yaml:"database"`
	Auth       Auth       `mapstructure:"auth" yaml:"auth"`
	Translator Translator `mapstructure:"translator" yaml:"translator"`
	Limits     Limits     `mapstructure:"limits" yaml:"limits"`
}

// Database selects and configures the persistence backend.
type Database struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the database file for the sqlite driver.
	Path string `mapstructure:"path" yaml:"path"`
	// URL is the connection string for the postgres driver.
	URL string `mapstructure:"url" yaml:"url"`
}

// Auth configures validation of identity tokens presented on connect.
// Token issuance happens elsewhere; this process only verifies.
type Auth struct {
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
}

// Translator configures the external translation provider and its cache.
type Translator struct {
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	CacheSize      int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Limit is a fixed-window budget for one action kind.
type Limit struct {
	Max    int           `mapstructure:"max" yaml:"max"`
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// Limits holds per-action rate limit budgets. Budgets are independent so
// abuse of one action cannot starve another.
type Limits struct {
	Join        Limit `mapstructure:"join" yaml:"join"`
	CreateRoom  Limit `mapstructure:"create_room" yaml:"create_room"`
	SendMessage Limit `mapstructure:"send_message" yaml:"send_message"`
	Reaction    Limit `mapstructure:"reaction" yaml:"reaction"`
	Typing      Limit `mapstructure:"typing" yaml:"typing"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		Database: Database{
			Driver: "sqlite",
			Path:   "polyglot.db",
		},
		Auth: Auth{
			JWTIssuer:   "polyglot",
			JWTAudience: "polyglot-chat",
		},
		Translator: Translator{
			APIURL:         "https://engine.lingo.dev",
			RequestTimeout: 30 * time.Second,
			MaxConcurrent:  5,
			MaxRetries:     3,
			BackoffBase:    1500 * time.Millisecond,
			CacheSize:      1000,
			CacheTTL:       time.Hour,
		},
		Limits: Limits{
			Join:        Limit{Max: 20, Window: time.Minute},
			CreateRoom:  Limit{Max: 3, Window: time.Minute},
			SendMessage: Limit{Max: 20, Window: 10 * time.Second},
			Reaction:    Limit{Max: 60, Window: time.Minute},
			Typing:      Limit{Max: 120, Window: time.Minute},
		},
	}
}
