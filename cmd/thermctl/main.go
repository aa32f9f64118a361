package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/thermctl/internal/config"
	"codeberg.org/mutker/thermctl/internal/controller"
	"codeberg.org/mutker/thermctl/internal/logger"
	"codeberg.org/mutker/thermctl/internal/metrics"
	"codeberg.org/mutker/thermctl/internal/mitigation"
	"codeberg.org/mutker/thermctl/internal/pid"
	"codeberg.org/mutker/thermctl/internal/sensor"
	"codeberg.org/mutker/thermctl/internal/thermal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	port, err := openPort(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open device")
	}
	defer func() {
		if err := port.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close device")
		}
	}()

	metricsCfg := metrics.DefaultConfig()
	metricsCfg.DBPath = cfg.Database
	metricsCfg.Enabled = cfg.Metrics
	collector, err := metrics.NewService(metricsCfg, logger.Default())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close metrics collector")
		}
	}()

	interval := time.Duration(cfg.Interval) * time.Second
	mitigator := mitigation.New(port, cfg.Reduction, time.Duration(cfg.Cooldown)*time.Second)
	loop := controller.New(
		port,
		newUtilizationEstimator(cfg),
		thermal.PowerModel{Alpha: cfg.Alpha},
		thermal.NewModel(thermal.Params{
			Resistance:  cfg.Resistance,
			Capacitance: cfg.Capacitance,
			Ambient:     cfg.Ambient,
			Interval:    interval.Seconds(),
		}),
		controller.Thresholds{
			Low:      cfg.Low,
			High:     cfg.High,
			Critical: cfg.Critical,
		},
		mitigator,
		collector,
		interval,
		cfg.Monitor,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := loop.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	logger.Info().Msg("Exiting...")
}

func openPort(cfg *config.Config) (sensor.Port, error) {
	if cfg.Device == "gpu" {
		return sensor.NewNVML()
	}

	return sensor.NewSysfs(), nil
}

func newUtilizationEstimator(cfg *config.Config) thermal.UtilizationEstimator {
	if value, fixed := cfg.FixedUtilization(); fixed {
		return thermal.Fixed(value)
	}

	return sensor.NewProcStatUtilization()
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
