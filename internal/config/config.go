package config

import (
	"fmt"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dadav/ticktick/internal/accounting"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TimerConfig are the accounting knobs; all must be positive.
type TimerConfig struct {
	WeeklyHours          float64 `mapstructure:"weekly_hours"`
	MaxDailyHours        float64 `mapstructure:"max_daily_hours"`
	LunchThresholdHours  float64 `mapstructure:"lunch_threshold_hours"`
	LunchDurationMinutes int     `mapstructure:"lunch_duration_minutes"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Timer    TimerConfig    `mapstructure:"timer"`
}

// Accounting converts the timer section into the accounting package's view.
func (c *Config) Accounting() accounting.Config {
	return accounting.Config{
		WeeklyHours:          c.Timer.WeeklyHours,
		MaxDailyHours:        c.Timer.MaxDailyHours,
		LunchThresholdHours:  c.Timer.LunchThresholdHours,
		LunchDurationMinutes: c.Timer.LunchDurationMinutes,
	}
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from the given file path (e.g. "config.yaml").
// An absent default file is fine: defaults plus TICKTICK_* environment
// variables (optionally from a .env file) are enough to run.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		// .env is optional; real env vars win over it.
		_ = godotenv.Load()

		v := viper.New()

		v.SetDefault("server.address", "0.0.0.0")
		v.SetDefault("server.port", 8000)
		v.SetDefault("server.mode", "release")
		v.SetDefault("database.path", "data/ticktick.db")
		v.SetDefault("database.log_mode", false)
		v.SetDefault("log.level", "info")
		v.SetDefault("timer.weekly_hours", 41)
		v.SetDefault("timer.max_daily_hours", 10)
		v.SetDefault("timer.lunch_threshold_hours", 6)
		v.SetDefault("timer.lunch_duration_minutes", 30)

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. TICKTICK_SERVER_PORT=9000
		v.SetEnvPrefix("TICKTICK")
		v.AutomaticEnv()

		if readErr := v.ReadInConfig(); readErr != nil {
			_, notFound := readErr.(viper.ConfigFileNotFoundError)
			if path != "" || !notFound {
				err = fmt.Errorf("read config: %w", readErr)
				return
			}
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}
		if err = c.Timer.validate(); err != nil {
			return
		}

		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}

func (t TimerConfig) validate() error {
	if t.WeeklyHours <= 0 {
		return fmt.Errorf("timer.weekly_hours must be positive, got %v", t.WeeklyHours)
	}
	if t.MaxDailyHours <= 0 {
		return fmt.Errorf("timer.max_daily_hours must be positive, got %v", t.MaxDailyHours)
	}
	if t.LunchThresholdHours <= 0 {
		return fmt.Errorf("timer.lunch_threshold_hours must be positive, got %v", t.LunchThresholdHours)
	}
	if t.LunchDurationMinutes <= 0 {
		return fmt.Errorf("timer.lunch_duration_minutes must be positive, got %v", t.LunchDurationMinutes)
	}
	return nil
}
