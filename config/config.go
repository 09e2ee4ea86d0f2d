package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes environment overrides, e.g. SUMMER_SERVER_ADDR
const EnvPrefix = "SUMMER"

// Config represents the summer.properties configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	App       AppConfig       `mapstructure:"app"`
	JDBC      JDBCConfig      `mapstructure:"jdbc"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ContextPath     string        `mapstructure:"context_path"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Compress        bool          `mapstructure:"compress"`
}

// AppConfig locates controllers, templates and static assets
type AppConfig struct {
	ControllerPath string `mapstructure:"controller_path"` // Go source scanned for @summer annotations
	WebRoot        string `mapstructure:"webroot"`         // holds the template and asset trees
	TemplatePath   string `mapstructure:"template_path"`   // below WebRoot
	AssetPath      string `mapstructure:"asset_path"`      // below WebRoot, served as-is
	TemplateReload bool   `mapstructure:"template_reload"`
}

// JDBCConfig describes the datasource. The key names follow the
// properties files this framework has always read.
type JDBCConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// CORSConfig contains global CORS settings
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig selects the rate limit store. An empty RedisAddr keeps
// counters in process memory.
type RateLimitConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ContextPath:     "",
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Compress:        true,
		},
		App: AppConfig{
			ControllerPath: "./examples/customer",
			WebRoot:        "./webapp",
			TemplatePath:   "/WEB-INF/view/",
			AssetPath:      "/asset/",
		},
		JDBC: JDBCConfig{
			Driver: "sqlite",
			URL:    "file:summer.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a properties file. An empty path looks for summer.properties
// in the working directory; a missing file yields the defaults. SUMMER_*
// environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("properties")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("summer")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Field: "file", Message: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Field: "file", Message: err.Error()}
	}

	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.context_path", d.Server.ContextPath)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.compress", d.Server.Compress)

	v.SetDefault("app.controller_path", d.App.ControllerPath)
	v.SetDefault("app.webroot", d.App.WebRoot)
	v.SetDefault("app.template_path", d.App.TemplatePath)
	v.SetDefault("app.asset_path", d.App.AssetPath)
	v.SetDefault("app.template_reload", d.App.TemplateReload)

	v.SetDefault("jdbc.driver", d.JDBC.Driver)
	v.SetDefault("jdbc.url", d.JDBC.URL)
	v.SetDefault("jdbc.username", d.JDBC.Username)
	v.SetDefault("jdbc.password", d.JDBC.Password)
	v.SetDefault("jdbc.max_conns", d.JDBC.MaxConns)

	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("log.level", d.Log.Level)
}

// normalize trims values that tolerate sloppy input
func (c *Config) normalize() {
	c.Server.ContextPath = strings.TrimSuffix(strings.TrimSpace(c.Server.ContextPath), "/")

	origins := c.CORS.AllowedOrigins[:0]
	for _, origin := range c.CORS.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.CORS.AllowedOrigins = origins
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return &Error{Field: "server.addr", Message: "must not be empty"}
	}
	if c.Server.ContextPath != "" && !strings.HasPrefix(c.Server.ContextPath, "/") {
		return &Error{Field: "server.context_path", Message: "must start with '/'"}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return &Error{Field: "server.max_body_bytes", Message: "must be positive"}
	}
	if c.App.TemplatePath == "" {
		return &Error{Field: "app.template_path", Message: "must not be empty"}
	}
	if c.App.AssetPath != "" && !strings.HasPrefix(c.App.AssetPath, "/") {
		return &Error{Field: "app.asset_path", Message: "must start with '/'"}
	}
	switch c.JDBC.Driver {
	case "pgx", "sqlite":
	default:
		return &Error{Field: "jdbc.driver", Message: "must be 'pgx' or 'sqlite', got '" + c.JDBC.Driver + "'"}
	}
	if c.JDBC.URL == "" {
		return &Error{Field: "jdbc.url", Message: "must not be empty"}
	}
	if c.JDBC.MaxConns < 0 {
		return &Error{Field: "jdbc.max_conns", Message: "must not be negative"}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return &Error{Field: "log.level", Message: err.Error()}
	}
	return nil
}

// Error represents a configuration error
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
