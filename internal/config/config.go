package config

import (
	"os"
	"strconv"

	"codeberg.org/mutker/thermctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultConfigPath = "/etc"
	defaultConfigName = "thermctl"
	defaultDBPath     = "/var/lib/thermctl/metrics.db"

	defaultInterval    = 1
	defaultCooldown    = 5
	defaultLow         = 70.0
	defaultHigh        = 75.0
	defaultCritical    = 85.0
	defaultAmbient     = 30.0
	defaultResistance  = 1.0
	defaultCapacitance = 10.0
	defaultAlpha       = 5.0
	defaultReduction   = 0.7
	defaultUtilization = "0.7"
)

// Config holds the runtime configuration. Watermarks and model parameters
// are fixed for the lifetime of the process once loaded.
type Config struct {
	Device      string  // "cpu" (sysfs cpufreq) or "gpu" (NVML)
	Interval    int     // control period in seconds
	Cooldown    int     // minimum seconds between mitigation actions
	Low         float64 // restore watermark, °C
	High        float64 // mitigation watermark, °C
	Critical    float64 // escalation watermark, °C
	Ambient     float64 // ambient temperature, °C
	Resistance  float64 // thermal resistance R
	Capacitance float64 // thermal capacitance C
	Alpha       float64 // power model scaling constant
	Reduction   float64 // frequency cap factor, (0,1)
	Utilization string  // fixed fraction or "auto"
	Monitor     bool    // observe and report without actuating
	LogLevel    string  `mapstructure:"log_level"`
	Metrics     bool    // persist per-tick snapshots
	Database    string  // metrics database path
}

// Load reads configuration from flags, an optional TOML file
// (/etc/thermctl.toml, overridable via THERMCTL_CONFIG) and
// THERMCTL_* environment variables, then validates it.
func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	fs := pflag.NewFlagSet("thermctl", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.String("device", "cpu", "Device backend: cpu or gpu")
	fs.Int("interval", defaultInterval, "Seconds between control ticks")
	fs.Int("cooldown", defaultCooldown, "Minimum seconds between mitigation actions")
	fs.Float64("low", defaultLow, "Restore watermark in Celsius")
	fs.Float64("high", defaultHigh, "Mitigation watermark in Celsius")
	fs.Float64("critical", defaultCritical, "Critical watermark in Celsius")
	fs.Float64("ambient", defaultAmbient, "Ambient temperature in Celsius")
	fs.Float64("resistance", defaultResistance, "Thermal resistance of the RC model")
	fs.Float64("capacitance", defaultCapacitance, "Thermal capacitance of the RC model")
	fs.Float64("alpha", defaultAlpha, "Power model scaling constant")
	fs.Float64("reduction", defaultReduction, "Frequency reduction factor while mitigating")
	fs.String("utilization", defaultUtilization, "CPU utilization fraction, or \"auto\" to sample /proc/stat")
	fs.Bool("monitor", false, "Only monitor and report, never actuate")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.Bool("metrics", false, "Enable metrics collection")
	fs.String("database", defaultDBPath, "Path to the metrics database")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := v.BindPFlags(fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := v.BindPFlag("log_level", fs.Lookup("log-level")); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	v.SetEnvPrefix("THERMCTL")
	v.AutomaticEnv()

	if path := os.Getenv("THERMCTL_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(defaultConfigPath)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration invariants. A violation here is fatal
// at startup, never a runtime fault.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Device != "cpu" && c.Device != "gpu" {
		return errFactory.WithData(errors.ErrInvalidConfig, "device must be cpu or gpu")
	}
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.Cooldown <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "cooldown must be positive")
	}
	if !(c.Low < c.High && c.High < c.Critical) {
		return errFactory.WithData(errors.ErrInvalidThresholds, [3]float64{c.Low, c.High, c.Critical})
	}
	if c.Resistance <= 0 || c.Capacitance <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "thermal resistance and capacitance must be positive")
	}
	if c.Reduction <= 0 || c.Reduction >= 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "reduction factor must be in (0,1)")
	}
	if c.Utilization != "auto" {
		u, err := strconv.ParseFloat(c.Utilization, 64)
		if err != nil || u < 0 || u > 1 {
			return errFactory.WithData(errors.ErrInvalidConfig, "utilization must be \"auto\" or a fraction in [0,1]")
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Metrics && c.Database == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "metrics enabled without a database path")
	}

	return nil
}

// FixedUtilization returns the configured utilization fraction and whether
// it is fixed. The second return is false when sampling is requested.
func (c *Config) FixedUtilization() (float64, bool) {
	if c.Utilization == "auto" {
		return 0, false
	}
	u, err := strconv.ParseFloat(c.Utilization, 64)
	if err != nil {
		return 0, false
	}

	return u, true
}
