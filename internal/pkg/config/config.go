package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	CrimeFeed CrimeFeedConfig `mapstructure:"crimefeed"`
	Photos    PhotosConfig    `mapstructure:"photos"`
	Map       MapConfig       `mapstructure:"map"`
	Form      FormConfig      `mapstructure:"form"`
	Render    RenderConfig    `mapstructure:"render"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	OpenAPIPath  string `mapstructure:"openapi_path"`
}

type RoutingConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CrimeFeedConfig struct {
	URL        string        `mapstructure:"url"`
	Month      string        `mapstructure:"month"`
	Category   string        `mapstructure:"category"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type PhotosConfig struct {
	URL      string        `mapstructure:"url"`
	APIKey   string        `mapstructure:"api_key"`
	MaxWidth int           `mapstructure:"max_width"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Workers  int           `mapstructure:"workers"`
}

type MapConfig struct {
	Style       string  `mapstructure:"style"`
	AccessToken string  `mapstructure:"access_token"`
	CenterLng   float64 `mapstructure:"center_lng"`
	CenterLat   float64 `mapstructure:"center_lat"`
	Zoom        float64 `mapstructure:"zoom"`
}

type FormConfig struct {
	LockOrigin  bool    `mapstructure:"lock_origin"`
	MaxRadiusKm float64 `mapstructure:"max_radius_km"`
}

type RenderConfig struct {
	StrictGenerations bool    `mapstructure:"strict_generations"`
	LineColor         string  `mapstructure:"line_color"`
	LineWidth         float64 `mapstructure:"line_width"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	Enabled   bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, an optional config file and
// environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PINTFINDER_ROUTING_URL → routing.url
	v.SetEnvPrefix("PINTFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 40)
	v.SetDefault("server.openapi_path", "api/openapi.yaml")

	v.SetDefault("routing.url", "http://localhost:8000/route")
	v.SetDefault("routing.timeout", 30*time.Second)

	v.SetDefault("crimefeed.url", "https://data.police.uk/api")
	v.SetDefault("crimefeed.month", "2024-01")
	v.SetDefault("crimefeed.category", "all-crime")
	v.SetDefault("crimefeed.rate_per_sec", 15)
	v.SetDefault("crimefeed.timeout", 10*time.Second)
	v.SetDefault("crimefeed.cache_ttl", 6*time.Hour)

	v.SetDefault("photos.url", "https://maps.googleapis.com/maps/api/place/photo")
	v.SetDefault("photos.api_key", "")
	v.SetDefault("photos.max_width", 400)
	v.SetDefault("photos.timeout", 5*time.Second)
	v.SetDefault("photos.cache_ttl", 24*time.Hour)
	v.SetDefault("photos.workers", 4)

	v.SetDefault("map.style", "mapbox://styles/mapbox/streets-v11")
	v.SetDefault("map.access_token", "")
	v.SetDefault("map.center_lng", -0.5658080564214817)
	v.SetDefault("map.center_lat", 51.42583195427641)
	v.SetDefault("map.zoom", 15)

	v.SetDefault("form.lock_origin", false)
	v.SetDefault("form.max_radius_km", 8)

	v.SetDefault("render.strict_generations", false)
	v.SetDefault("render.line_color", "#888")
	v.SetDefault("render.line_width", 8)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "pintfinder-enrichment")
	v.SetDefault("temporal.enabled", false)

	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if !validURL(c.Routing.URL) {
		errs = append(errs, fmt.Sprintf("routing.url must be an absolute http(s) URL, got %q", c.Routing.URL))
	}
	if c.Routing.Timeout <= 0 {
		errs = append(errs, "routing.timeout must be positive")
	}
	if !validURL(c.CrimeFeed.URL) {
		errs = append(errs, fmt.Sprintf("crimefeed.url must be an absolute http(s) URL, got %q", c.CrimeFeed.URL))
	}
	if _, err := time.Parse("2006-01", c.CrimeFeed.Month); err != nil {
		errs = append(errs, fmt.Sprintf("crimefeed.month must be YYYY-MM, got %q", c.CrimeFeed.Month))
	}
	if c.CrimeFeed.Category == "" {
		errs = append(errs, "crimefeed.category is required")
	}
	if c.CrimeFeed.RatePerSec <= 0 {
		errs = append(errs, "crimefeed.rate_per_sec must be positive")
	}
	if !validURL(c.Photos.URL) {
		errs = append(errs, fmt.Sprintf("photos.url must be an absolute http(s) URL, got %q", c.Photos.URL))
	}
	if c.Photos.MaxWidth <= 0 {
		errs = append(errs, "photos.max_width must be positive")
	}
	if c.Photos.Workers <= 0 {
		errs = append(errs, "photos.workers must be positive")
	}
	if c.Map.Style == "" {
		errs = append(errs, "map.style is required")
	}
	if c.Map.CenterLng < -180 || c.Map.CenterLng > 180 || c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		errs = append(errs, fmt.Sprintf("map center (%v, %v) out of range", c.Map.CenterLng, c.Map.CenterLat))
	}
	if c.Form.MaxRadiusKm <= 0 {
		errs = append(errs, "form.max_radius_km must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Temporal.Enabled && (c.Temporal.HostPort == "" || c.Temporal.TaskQueue == "") {
		errs = append(errs, "temporal.host_port and temporal.task_queue are required when temporal is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
