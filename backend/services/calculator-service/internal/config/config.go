package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "gulfsolar/backend/libs/config"
)

// Config represents service configuration loaded from .env, YAML and the environment.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"CALC_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN     string `yaml:"dsn" env:"CALC_POSTGRES_DSN"`
		Migrate bool   `yaml:"migrate" env:"CALC_POSTGRES_MIGRATE"`
	} `yaml:"database"`
	Redis struct {
		Addr               string `yaml:"addr" env:"CALC_REDIS_ADDR"`
		Password           string `yaml:"password" env:"CALC_REDIS_PASSWORD"`
		DB                 int    `yaml:"db" env:"CALC_REDIS_DB"`
		SettingsTTLSeconds int    `yaml:"settingsTTLSeconds" env:"CALC_REDIS_SETTINGS_TTL_SECONDS"`
	} `yaml:"redis"`
	JWT struct {
		Secret           string `yaml:"secret" env:"CALC_JWT_SECRET"`
		ExpiresInMinutes int    `yaml:"expiresInMinutes" env:"CALC_JWT_EXPIRES_MINUTES"`
	} `yaml:"jwt"`
	Leads struct {
		WebhookURL             string `yaml:"webhookUrl" env:"CALC_LEADS_WEBHOOK_URL"`
		RateLimitPerMinute     int    `yaml:"rateLimitPerMinute" env:"CALC_LEADS_RATE_LIMIT_PER_MINUTE"`
		Workers                int    `yaml:"workers" env:"CALC_LEADS_WORKERS"`
		QueueSize              int    `yaml:"queueSize" env:"CALC_LEADS_QUEUE_SIZE"`
		DeliveryTimeoutSeconds int    `yaml:"deliveryTimeoutSeconds" env:"CALC_LEADS_DELIVERY_TIMEOUT_SECONDS"`
	} `yaml:"leads"`
	MQTT struct {
		Broker   string `yaml:"broker" env:"CALC_MQTT_BROKER"`
		ClientID string `yaml:"clientId" env:"CALC_MQTT_CLIENT_ID"`
		Username string `yaml:"username" env:"CALC_MQTT_USERNAME"`
		Password string `yaml:"password" env:"CALC_MQTT_PASSWORD"`
		Topic    string `yaml:"topic" env:"CALC_MQTT_TOPIC"`
	} `yaml:"mqtt"`
	WS struct {
		PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"CALC_WS_PING_INTERVAL_SECONDS"`
	} `yaml:"ws"`
}

// Defaults returns the configuration before any source is applied.
func Defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Database.Migrate = true
	cfg.Redis.SettingsTTLSeconds = 300
	cfg.JWT.ExpiresInMinutes = 60
	cfg.Leads.RateLimitPerMinute = 5
	cfg.Leads.Workers = 2
	cfg.Leads.QueueSize = 64
	cfg.Leads.DeliveryTimeoutSeconds = 10
	cfg.MQTT.ClientID = "gulfsolar-calculator"
	cfg.MQTT.Topic = "gulfsolar/leads"
	cfg.WS.PingIntervalSeconds = 30
	return cfg
}

// Load reads configuration using the shared config loader and validates it for the
// HTTP service.
func Load() (*Config, error) {
	cfg, err := LoadDatabaseOnly()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("config: jwt secret is required")
	}
	return cfg, nil
}

// LoadDatabaseOnly is Load without the checks that only the HTTP service needs.
// The operator CLI uses it.
func LoadDatabaseOnly() (*Config, error) {
	cfg := Defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database DSN is required")
	}
	if c.JWT.ExpiresInMinutes <= 0 {
		c.JWT.ExpiresInMinutes = 60
	}
	if c.Redis.SettingsTTLSeconds <= 0 {
		c.Redis.SettingsTTLSeconds = 300
	}
	if c.Leads.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: leads.rateLimitPerMinute must not be negative, got %d", c.Leads.RateLimitPerMinute)
	}
	if c.Leads.Workers <= 0 {
		c.Leads.Workers = 2
	}
	if c.Leads.QueueSize <= 0 {
		c.Leads.QueueSize = 64
	}
	if c.Leads.DeliveryTimeoutSeconds <= 0 {
		c.Leads.DeliveryTimeoutSeconds = 10
	}
	if strings.TrimSpace(c.MQTT.Topic) == "" {
		c.MQTT.Topic = "gulfsolar/leads"
	}
	if c.WS.PingIntervalSeconds <= 0 {
		c.WS.PingIntervalSeconds = 30
	}
	return nil
}

// HTTPAddress ensures we always return host:port formatted string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// JWTExpiration converts configured expiry to duration.
func (c *Config) JWTExpiration() time.Duration {
	if c.JWT.ExpiresInMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.JWT.ExpiresInMinutes) * time.Minute
}

// SettingsTTL is how long the settings cache entry lives.
func (c *Config) SettingsTTL() time.Duration {
	return time.Duration(c.Redis.SettingsTTLSeconds) * time.Second
}

// DeliveryTimeout bounds one lead delivery across all sinks.
func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.Leads.DeliveryTimeoutSeconds) * time.Second
}

// PingInterval is the websocket keepalive interval.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.WS.PingIntervalSeconds) * time.Second
}
