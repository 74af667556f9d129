package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel     zapcore.Level
	EnergySystem EnergySystemConfig `mapstructure:"energy_system"`
	Simulation   SimulationConfig   `mapstructure:"simulation"`
	Inverters    []InverterConfig   `mapstructure:"inverters"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	Modbus       ModbusConfig       `mapstructure:"modbus"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Port         uint               `mapstructure:"port"`
	HttpLog      bool               `mapstructure:"http_log"`
}

// EnergySystemConfig holds the cumulative offsets of the activation
// sequence, measured from the start request.
type EnergySystemConfig struct {
	ActivateAfterMillis     uint32 `mapstructure:"activate_after_millis"`
	PowerFlowAfterMillis    uint32 `mapstructure:"power_flow_after_millis"`
	EnableSwitchAfterMillis uint32 `mapstructure:"enable_switch_after_millis"`
}

type SimulationConfig struct {
	TickIntervalMillis      uint32  `mapstructure:"tick_interval_millis"`
	RandomFaultClearMillis  uint32  `mapstructure:"random_fault_clear_millis"`
	BatteryFaultClearMillis uint32  `mapstructure:"battery_fault_clear_millis"`
	RandomFaultProbability  float64 `mapstructure:"random_fault_probability"`
	Seed                    uint64
	UseSeed                 bool `mapstructure:"use_seed"`
}

// InverterConfig holds the initial values of an inverter. Unset values are
// nil, so a configured zero is kept.
type InverterConfig struct {
	Id             string
	Name           string
	Mode           string
	Temperature    *float64
	FanSpeed       *float64 `mapstructure:"fan_speed"`
	LoadPercentage *float64 `mapstructure:"load_percentage"`
	BatteryLevel   *float64 `mapstructure:"battery_level"`
	ModbusUnitId   uint8    `mapstructure:"modbus_unit_id"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
	HADiscoveryCron   string `mapstructure:"ha_discovery_cron"`
}

type ModbusConfig struct {
	Enable     bool
	Host       string
	Port       uint
	MaxClients uint `mapstructure:"max_clients"`
}

type MetricsConfig struct {
	Enable bool
}

func (c EnergySystemConfig) ActivateAfter() time.Duration {
	return time.Duration(c.ActivateAfterMillis) * time.Millisecond
}

func (c EnergySystemConfig) PowerFlowAfter() time.Duration {
	return time.Duration(c.PowerFlowAfterMillis) * time.Millisecond
}

func (c EnergySystemConfig) EnableSwitchAfter() time.Duration {
	return time.Duration(c.EnableSwitchAfterMillis) * time.Millisecond
}

func (c SimulationConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMillis) * time.Millisecond
}

func (c SimulationConfig) RandomFaultClear() time.Duration {
	return time.Duration(c.RandomFaultClearMillis) * time.Millisecond
}

func (c SimulationConfig) BatteryFaultClear() time.Duration {
	return time.Duration(c.BatteryFaultClearMillis) * time.Millisecond
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// CheckStageOffsets verifies the activation stages are strictly ordered.
func CheckStageOffsets(c EnergySystemConfig) error {
	if c.ActivateAfterMillis == 0 {
		return errors.New("energy_system.activate_after_millis must be > 0")
	}
	if c.PowerFlowAfterMillis <= c.ActivateAfterMillis {
		return errors.New("energy_system.power_flow_after_millis must be > activate_after_millis")
	}
	if c.EnableSwitchAfterMillis <= c.PowerFlowAfterMillis {
		return errors.New("energy_system.enable_switch_after_millis must be > power_flow_after_millis")
	}
	return nil
}
