package config

import (
	"fmt"

	pkgconfig "github.com/Liwei1020T/appointmentSystem-sub002/pkg/config"
	"github.com/go-playground/validator/v10"
)

// ServiceName is the configuration file name and environment prefix (LEDGER_*)
const ServiceName = "ledger"

type Config struct {
	Service      ServiceConfig      `yaml:"service"`
	Database     DatabaseConfig     `yaml:"database"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	JWT          JWTConfig          `yaml:"jwt"`
	Redis        RedisConfig        `yaml:"redis"`
	SNS          SNSConfig          `yaml:"sns"`
	Notification NotificationConfig `yaml:"notification"`
	Automation   AutomationConfig   `yaml:"automation"`
	Points       PointsConfig       `yaml:"points"`
}

// LoadConfig reads configs/<env>/ledger.yaml (or CONFIG_PATH), applies
// LEDGER_* environment overrides, fills defaults and validates the result.
func LoadConfig() (*Config, error) {
	src, err := pkgconfig.Load(ServiceName)
	if err != nil {
		return nil, err
	}
	return Decode(src)
}

// Decode builds a Config from an already loaded source
func Decode(src pkgconfig.Config) (*Config, error) {
	var cfg Config
	if err := src.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults
func (c *Config) ApplyDefaults() {
	c.Service.applyDefaults()
	c.Database.applyDefaults()
	c.Server.applyDefaults()
	c.Log.applyDefaults()
	c.Notification.applyDefaults()
	c.Automation.applyDefaults()
	c.Points.applyDefaults()
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Notification.Driver == NotificationDriverSNS && c.SNS.TopicARN == "" {
		return fmt.Errorf("invalid config: sns.topic_arn is required for the sns notification driver")
	}
	if c.Notification.Driver == NotificationDriverRedis && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: redis.addr is required for the redis notification driver")
	}
	return nil
}
