package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/config"
	"snowmelt-controller/internal/datadog"
	"snowmelt-controller/internal/engine"
	"snowmelt-controller/internal/env"
	"snowmelt-controller/internal/logging"
	"snowmelt-controller/internal/mqttbridge"
	"snowmelt-controller/internal/notifications"
	"snowmelt-controller/internal/relays"
	"snowmelt-controller/internal/sensors"
	"snowmelt-controller/internal/store"
	"snowmelt-controller/system/startup"
)

func main() {
	cfg := config.Load()
	env.Cfg = cfg
	logging.Init(cfg.LogLevel, cfg.LogFile)
	datadog.InitMetrics()
	notifications.Init()

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db_file", cfg.DBFile).
		Bool("safe_mode", cfg.SafeMode).
		Bool("mock_sensors", cfg.MockSensors).
		Msg("Starting snowmelt controller")

	if !cfg.MockSensors && !cfg.SafeMode {
		if err := startup.ValidatePins(cfg); err != nil {
			log.Fatal().Err(err).Msg("Relay pin preflight failed")
		}
	}
	if cfg.BootScriptPath != "" {
		if err := startup.WriteBootScript(cfg.BootScriptPath, cfg); err != nil {
			log.Error().Err(err).Msg("Failed to write relay boot script")
		}
	}

	db, err := store.Open(cfg.DBFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings database")
	}
	defer db.Close()

	settings, err := db.Load(cfg.DefaultSettings())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	var reader sensors.Reader
	if cfg.MockSensors {
		reader = sensors.NewMock()
	} else {
		svc := sensors.New(
			cfg.Sensors,
			time.Duration(cfg.PollIntervalSeconds)*time.Second,
			time.Duration(cfg.SensorGraceSeconds)*time.Second,
			cfg.SensorReadRetries,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Run(ctx)
		}()
		reader = svc
	}

	driver := relays.New(cfg.Relays, cfg.RelayActiveHigh, cfg.SafeMode)

	eng := engine.New(
		reader,
		driver,
		db,
		settings,
		time.Duration(cfg.CycleIntervalSeconds)*time.Second,
		cfg.BypassMinDeltaT,
	)

	var bridge *mqttbridge.Bridge
	if cfg.NoMQTT {
		log.Warn().Msg("MQTT bridge disabled")
	} else {
		bridge = mqttbridge.New(cfg.MQTT, eng)
		if err := bridge.Connect(); err != nil {
			// ConnectRetry keeps trying in the background; the engine
			// runs regardless so the slab never waits on the broker.
			log.Error().Err(err).Msg("Initial MQTT connect failed, retrying in background")
		}
		eng.SetPublisher(bridge.PublishState)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("Shutting down")

	cancel()
	wg.Wait()

	if bridge != nil {
		bridge.Close()
	}
	log.Info().Msg("Snowmelt controller stopped, relays hold last commanded state")
}
