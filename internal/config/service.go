package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

func (c *ServiceConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	if c.Env == "" {
		c.Env = "dev"
	}
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
	Output string `yaml:"output"`
}

func (c *LogConfig) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

type JWTConfig struct {
	Secret    string   `yaml:"secret" validate:"required,min=16"`
	SkipPaths []string `yaml:"skip_paths"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type SNSConfig struct {
	Region   string `yaml:"region"`
	TopicARN string `yaml:"topic_arn"`
	Endpoint string `yaml:"endpoint"`
}

const (
	NotificationDriverLog   = "log"
	NotificationDriverRedis = "redis"
	NotificationDriverSNS   = "sns"
)

// NotificationConfig selects how stored notifications are delivered after commit
type NotificationConfig struct {
	Driver        string        `yaml:"driver" validate:"oneof=log redis sns"`
	ChannelPrefix string        `yaml:"channel_prefix"`
	FlushTimeout  time.Duration `yaml:"flush_timeout"`
}

func (c *NotificationConfig) applyDefaults() {
	if c.Driver == "" {
		c.Driver = NotificationDriverLog
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "notifications"
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = 5 * time.Second
	}
}

// AutomationConfig holds order lifecycle thresholds
type AutomationConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	PendingTimeout time.Duration `yaml:"pending_timeout"`
	StallWarning   time.Duration `yaml:"stall_warning"`
	PickupReminder time.Duration `yaml:"pickup_reminder"`
	ReminderWindow time.Duration `yaml:"reminder_window"`
	BatchSize      int           `yaml:"batch_size"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	UseStoreLock   bool          `yaml:"use_store_lock"`
}

func (c *AutomationConfig) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = 5 * time.Minute
	}
	if c.PendingTimeout == 0 {
		c.PendingTimeout = 48 * time.Hour
	}
	if c.StallWarning == 0 {
		c.StallWarning = 72 * time.Hour
	}
	if c.PickupReminder == 0 {
		c.PickupReminder = 24 * time.Hour
	}
	if c.ReminderWindow == 0 {
		c.ReminderWindow = time.Hour
	}
	if c.BatchSize == 0 {
		c.BatchSize = 200
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = 5 * time.Minute
	}
}

// PointsConfig holds the points earn policy
type PointsConfig struct {
	// EarnRate is points per currency unit of a confirmed payment
	EarnRate decimal.Decimal `yaml:"earn_rate"`
}

func (c *PointsConfig) applyDefaults() {
	if c.EarnRate.IsZero() {
		c.EarnRate = decimal.NewFromInt(1)
	}
}
