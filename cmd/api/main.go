package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/worldgrean1/grean-world-sub001/internal/adapter/actor"
	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/actor"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/server"
	"github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/google/uuid"
	"github.com/reugn/go-quartz/quartz"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	eventStream := &eventstream.EventStream{}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, eventStream, modbusActorProvider(cfg, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("could not spawn master", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid, eventStream, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	logger.Info("listening", zap.String("addr", server.Addr))
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => GREAN_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("GREAN_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("grean")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if cfg.MQTT.HADiscoveryEnable && cfg.MQTT.HADiscoveryCron != "" {
		if _, err := quartz.NewCronTrigger(cfg.MQTT.HADiscoveryCron); err != nil {
			return nil, fmt.Errorf("config param mqtt.ha_discovery_cron: %w", err)
		}
	}

	// check bounds
	if err := config.CheckStageOffsets(cfg.EnergySystem); err != nil {
		return nil, err
	}
	if cfg.Simulation.TickIntervalMillis < 50 {
		return nil, errors.New("config param simulation.tick_interval_millis should be >= 50ms")
	}
	if cfg.Simulation.RandomFaultProbability < 0 || cfg.Simulation.RandomFaultProbability > 1 {
		return nil, errors.New("config param simulation.random_fault_probability must be within [0, 1]")
	}
	if cfg.Modbus.Enable && cfg.Modbus.MaxClients == 0 {
		return nil, errors.New("config param modbus.max_clients should be > 0")
	}

	// inverters
	if len(cfg.Inverters) == 0 {
		cfg.Inverters = []config.InverterConfig{{}}
	}
	for i := range cfg.Inverters {
		applyInverterDefaults(&cfg.Inverters[i])
		if _, err := domain.ParseInverterMode(cfg.Inverters[i].Mode); err != nil {
			return nil, fmt.Errorf("config param inverters[%d].mode: %w", i, err)
		}
	}
	if dup := lo.FindDuplicatesBy(cfg.Inverters, func(inv config.InverterConfig) string { return inv.Id }); len(dup) > 0 {
		return nil, fmt.Errorf("duplicated inverter id %q", dup[0].Id)
	}
	units := lo.Values(adactor.UnitIds(cfg.Inverters))
	if len(lo.Uniq(units)) != len(units) {
		return nil, errors.New("duplicated inverter modbus_unit_id")
	}

	return &cfg, nil
}

// applyInverterDefaults fills the unset values of an inverter entry with the
// initial telemetry of a freshly booted device; a missing id is generated.
func applyInverterDefaults(inv *config.InverterConfig) {
	if inv.Id == "" {
		inv.Id = uuid.NewString()[:8]
	}
	if inv.Mode == "" {
		inv.Mode = string(domain.InverterModeNormal)
	}
	inv.Temperature = lo.CoalesceOrEmpty(inv.Temperature, lo.ToPtr(35.0))
	inv.FanSpeed = lo.CoalesceOrEmpty(inv.FanSpeed, lo.ToPtr(20.0))
	inv.LoadPercentage = lo.CoalesceOrEmpty(inv.LoadPercentage, lo.ToPtr(50.0))
	inv.BatteryLevel = lo.CoalesceOrEmpty(inv.BatteryLevel, lo.ToPtr(75.0))
}

func modbusActorProvider(cfg *config.Config, logger *zap.Logger) actor.ModbusActorProvider {
	if !cfg.Modbus.Enable {
		return nil
	}
	return func(es *eventstream.EventStream) *adactor.ModbusActor {
		return adactor.NewModbusActor(cfg, es, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	if !cfg.MQTT.Enable {
		return nil
	}
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("energy_system.activate_after_millis", 2000)
	viper.SetDefault("energy_system.power_flow_after_millis", 3000)
	viper.SetDefault("energy_system.enable_switch_after_millis", 3500)
	viper.SetDefault("simulation.tick_interval_millis", 1000)
	viper.SetDefault("simulation.random_fault_clear_millis", 3000)
	viper.SetDefault("simulation.battery_fault_clear_millis", 5000)
	viper.SetDefault("simulation.random_fault_probability", 0.001)
	viper.SetDefault("simulation.seed", 0)
	viper.SetDefault("simulation.use_seed", false)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.base_topic", "grean")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.ha_discovery_cron", "0 0 * * * *")
	viper.SetDefault("modbus.enable", false)
	viper.SetDefault("modbus.host", "0.0.0.0")
	viper.SetDefault("modbus.port", 5502)
	viper.SetDefault("modbus.max_clients", 5)
	viper.SetDefault("metrics.enable", true)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
