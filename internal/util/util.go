package util

import (
	"github.com/worldgrean1/grean-world-sub001/internal/config"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// LoadTestConfig returns a configuration with short stage offsets and a
// single inverter, suitable for actor tests.
func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		EnergySystem: config.EnergySystemConfig{
			ActivateAfterMillis:     200,
			PowerFlowAfterMillis:    300,
			EnableSwitchAfterMillis: 350,
		},
		Simulation: config.SimulationConfig{
			TickIntervalMillis:      50,
			RandomFaultClearMillis:  300,
			BatteryFaultClearMillis: 500,
			RandomFaultProbability:  0,
			Seed:                    42,
			UseSeed:                 true,
		},
		Inverters: []config.InverterConfig{
			{
				Id:             "inv1",
				Name:           "Test inverter",
				Mode:           "pv",
				Temperature:    lo.ToPtr(35.0),
				FanSpeed:       lo.ToPtr(20.0),
				LoadPercentage: lo.ToPtr(40.0),
				BatteryLevel:   lo.ToPtr(50.0),
				ModbusUnitId:   1,
			},
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "grean_test",
			HADiscoveryTopic: "homeassistant",
			HADiscoveryCron:  "0 0 * * * *",
		},
		Modbus: config.ModbusConfig{
			Host:       "127.0.0.1",
			Port:       15502,
			MaxClients: 2,
		},
		Port: 8080,
	}
}
