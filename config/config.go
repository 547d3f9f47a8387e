package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SLOTBOT_BOOKING_MAX_HOURS.
const EnvPrefix = "SLOTBOT"

type Config struct {
	HTTP      HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	GRPC      GRPCConfig      `yaml:"grpc" envconfig:"GRPC"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Kafka     KafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
	Booking   BookingConfig   `yaml:"booking" envconfig:"BOOKING"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
	Chat      ChatConfig      `yaml:"chat" envconfig:"CHAT"`
}

type HTTPConfig struct {
	Address string `yaml:"address" envconfig:"ADDRESS"`
}

type GRPCConfig struct {
	Address string `yaml:"address" envconfig:"ADDRESS"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver     string `yaml:"driver" envconfig:"DRIVER"`
	Host       string `yaml:"host" envconfig:"HOST"`
	Port       int    `yaml:"port" envconfig:"PORT"`
	User       string `yaml:"user" envconfig:"USER"`
	Password   string `yaml:"password" envconfig:"PASSWORD"`
	Name       string `yaml:"name" envconfig:"NAME"`
	SSLMode    string `yaml:"ssl_mode" envconfig:"SSL_MODE"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" envconfig:"BROKERS"`
	BookingEventsTopic string   `yaml:"booking_events_topic" envconfig:"BOOKING_EVENTS_TOPIC"`
	NotificationsTopic string   `yaml:"notifications_topic" envconfig:"NOTIFICATIONS_TOPIC"`
	GroupID            string   `yaml:"group_id" envconfig:"GROUP_ID"`
}

type BookingConfig struct {
	Timezone             string `yaml:"timezone" envconfig:"TIMEZONE"`
	MaxHours             int    `yaml:"max_hours" envconfig:"MAX_HOURS"`
	ReminderLeadMinutes  int    `yaml:"reminder_lead_minutes" envconfig:"REMINDER_LEAD_MINUTES"`
	GraceMinutes         int    `yaml:"grace_minutes" envconfig:"GRACE_MINUTES"`
	SlotLockSeconds      int    `yaml:"slot_lock_seconds" envconfig:"SLOT_LOCK_SECONDS"`
	ScheduleCacheSeconds int    `yaml:"schedule_cache_seconds" envconfig:"SCHEDULE_CACHE_SECONDS"`
	SessionTTLMinutes    int    `yaml:"session_ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

func (b BookingConfig) MaxDuration() time.Duration {
	return time.Duration(b.MaxHours) * time.Hour
}

func (b BookingConfig) ReminderLead() time.Duration {
	return time.Duration(b.ReminderLeadMinutes) * time.Minute
}

func (b BookingConfig) Grace() time.Duration {
	return time.Duration(b.GraceMinutes) * time.Minute
}

type SchedulerConfig struct {
	TickSeconds int `yaml:"tick_seconds" envconfig:"TICK_SECONDS"`
	// Embedded runs the scheduler loop inside the API process instead of the worker.
	Embedded bool `yaml:"embedded" envconfig:"EMBEDDED"`
}

func (s SchedulerConfig) Tick() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

type ChatConfig struct {
	// GroupChatID receives freed-slot announcements. Required.
	GroupChatID int64 `yaml:"group_chat_id" envconfig:"GROUP_CHAT_ID"`
	// AdminIDs may act with the admin role on any booking.
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
}

// LoadConfig reads the YAML file at path, then applies .env and SLOTBOT_* overrides
// and the documented fallbacks. A missing file is not an error when the environment
// carries the whole configuration.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "slotbot.db"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "slotbot-notifier"
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Europe/Moscow"
	}
	if c.Booking.MaxHours == 0 {
		c.Booking.MaxHours = 2
	}
	if c.Booking.ReminderLeadMinutes == 0 {
		c.Booking.ReminderLeadMinutes = 5
	}
	if c.Booking.GraceMinutes == 0 {
		c.Booking.GraceMinutes = 5
	}
	if c.Booking.SlotLockSeconds == 0 {
		c.Booking.SlotLockSeconds = 10
	}
	if c.Booking.ScheduleCacheSeconds == 0 {
		c.Booking.ScheduleCacheSeconds = 30
	}
	if c.Booking.SessionTTLMinutes == 0 {
		c.Booking.SessionTTLMinutes = 15
	}
	if c.Scheduler.TickSeconds == 0 {
		c.Scheduler.TickSeconds = 60
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Booking.MaxHours < 0 || c.Booking.ReminderLeadMinutes < 0 || c.Booking.GraceMinutes < 0 {
		return errors.New("booking durations must not be negative")
	}
	if c.Chat.GroupChatID == 0 {
		return errors.New("chat.group_chat_id is required")
	}
	if c.Scheduler.TickSeconds < 0 {
		return errors.New("scheduler tick must not be negative")
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Booking.Timezone, err)
	}
	return nil
}
