// Package config loads the service configuration from defaults, an optional yaml file, a
// .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	forecaster "github.com/aouyang1/grid-forecaster"
	"github.com/aouyang1/grid-forecaster/forecast/options"
)

var (
	ErrInvalidPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidDays      = errors.New("default days out of range")
	ErrInvalidModel     = errors.New("invalid model setting")
)

const (
	EnvPrefix      = "GRIDCAST"
	ConfigName     = "gridcast"
	RebaseKeyEnv   = "REBASE_KEY"
	DefaultEnvFile = ".env"

	MinHistoricalDays = 1
	MaxHistoricalDays = 14
	MinHorizonDays    = 1
	MaxHorizonDays    = 7

	BrusselsLatitude  = 50.85045
	BrusselsLongitude = 4.34878
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	Server    ServerConfig    `mapstructure:"server"`
	Elia      EliaConfig      `mapstructure:"elia"`
	Rebase    RebaseConfig    `mapstructure:"rebase"`
	Location  LocationConfig  `mapstructure:"location"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type EliaConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type RebaseConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type LocationConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// ForecastConfig holds request defaults and the model settings of every run
type ForecastConfig struct {
	HistoricalDays int     `mapstructure:"historical_days"`
	HorizonDays    int     `mapstructure:"horizon_days"`
	Regularization float64 `mapstructure:"regularization"`
	DailyOrders    int     `mapstructure:"daily_orders"`
	WeeklyOrders   int     `mapstructure:"weekly_orders"`
	Holidays       bool    `mapstructure:"holidays"`
	Weekends       bool    `mapstructure:"weekends"`
	OutlierPasses  int     `mapstructure:"outlier_passes"`
	ResidualWindow int     `mapstructure:"residual_window"`
	ResidualZscore float64 `mapstructure:"residual_zscore"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads the configuration. path may name a yaml file, otherwise gridcast.yaml is looked up
// in the working directory and ./configs. A missing file is not an error. Values from a .env
// file are exported to the environment first without overriding existing variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to load %s, %w", DefaultEnvFile, err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("rebase.api_key", RebaseKeyEnv, EnvPrefix+"_REBASE_API_KEY"); err != nil {
		return nil, fmt.Errorf("unable to bind %s, %w", RebaseKeyEnv, err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config, %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config, %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("elia.base_url", "https://opendata.elia.be/api/v2/catalog")
	v.SetDefault("rebase.base_url", "https://api.rebase.energy")
	v.SetDefault("rebase.api_key", "")

	v.SetDefault("location.latitude", BrusselsLatitude)
	v.SetDefault("location.longitude", BrusselsLongitude)

	v.SetDefault("forecast.historical_days", 7)
	v.SetDefault("forecast.horizon_days", 2)
	v.SetDefault("forecast.regularization", options.DefaultRegularization)
	v.SetDefault("forecast.daily_orders", 4)
	v.SetDefault("forecast.weekly_orders", 3)
	v.SetDefault("forecast.holidays", true)
	v.SetDefault("forecast.weekends", false)
	v.SetDefault("forecast.outlier_passes", 0)
	v.SetDefault("forecast.residual_window", forecaster.DefaultResidualWindow)
	v.SetDefault("forecast.residual_zscore", forecaster.DefaultResidualZscore)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "gridcast")
}

// Validate checks every setting is usable
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("got %d, %w", c.Server.Port, ErrInvalidPort)
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("got %f, %w", c.Location.Latitude, ErrInvalidLatitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("got %f, %w", c.Location.Longitude, ErrInvalidLongitude)
	}
	if c.Forecast.HistoricalDays < MinHistoricalDays || c.Forecast.HistoricalDays > MaxHistoricalDays {
		return fmt.Errorf("historical days %d, %w", c.Forecast.HistoricalDays, ErrInvalidDays)
	}
	if c.Forecast.HorizonDays < MinHorizonDays || c.Forecast.HorizonDays > MaxHorizonDays {
		return fmt.Errorf("horizon days %d, %w", c.Forecast.HorizonDays, ErrInvalidDays)
	}
	if c.Forecast.Regularization < 0 {
		return fmt.Errorf("negative regularization, %w", ErrInvalidModel)
	}
	if c.Forecast.DailyOrders < 0 || c.Forecast.WeeklyOrders < 0 || c.Forecast.OutlierPasses < 0 {
		return fmt.Errorf("negative orders or passes, %w", ErrInvalidModel)
	}
	if c.Forecast.ResidualZscore <= 0 {
		return fmt.Errorf("residual zscore must be positive, %w", ErrInvalidModel)
	}
	return nil
}

// ForecasterOptions builds the model options shared by every run
func (f ForecastConfig) ForecasterOptions() *forecaster.Options {
	opt := forecaster.NewDefaultOptions()

	var seas []options.SeasonalityConfig
	if f.DailyOrders > 0 {
		seas = append(seas, options.NewDailySeasonalityConfig(f.DailyOrders))
	}
	if f.WeeklyOrders > 0 {
		seas = append(seas, options.NewWeeklySeasonalityConfig(f.WeeklyOrders))
	}
	opt.SeriesOptions.SeasonalityOptions.SeasonalityConfigs = seas
	opt.SeriesOptions.Regularization = f.Regularization
	opt.SeriesOptions.HolidayOptions.Enabled = f.Holidays
	opt.SeriesOptions.WeekendOptions.Enabled = f.Weekends

	if f.OutlierPasses > 0 {
		opt.OutlierOptions = forecaster.NewOutlierOptions()
		opt.OutlierOptions.NumPasses = f.OutlierPasses
	}
	if f.ResidualWindow > 0 {
		opt.ResidualWindow = f.ResidualWindow
	}
	opt.ResidualZscore = f.ResidualZscore
	return opt
}
