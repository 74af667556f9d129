package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("Grean_World")
	assert.NoError(err)
	assert.Equal("grean_world", topic, "topic is lowercased")

	_, err = CheckMQTTTopic("grean/world")
	assert.Error(err, "slashes are not allowed")

	_, err = CheckMQTTTopic("")
	assert.Error(err, "empty topic")
}

func TestCheckStageOffsets(t *testing.T) {

	assert := assert.New(t)

	assert.NoError(CheckStageOffsets(EnergySystemConfig{
		ActivateAfterMillis:     2000,
		PowerFlowAfterMillis:    3000,
		EnableSwitchAfterMillis: 3500,
	}))
	assert.Error(CheckStageOffsets(EnergySystemConfig{
		ActivateAfterMillis:     2000,
		PowerFlowAfterMillis:    2000,
		EnableSwitchAfterMillis: 3500,
	}), "stages must be strictly ordered")
	assert.Error(CheckStageOffsets(EnergySystemConfig{}), "zero activation delay")
}

func TestDurations(t *testing.T) {

	cfg := EnergySystemConfig{
		ActivateAfterMillis:     2000,
		PowerFlowAfterMillis:    3000,
		EnableSwitchAfterMillis: 3500,
	}
	assert.Equal(t, 2*time.Second, cfg.ActivateAfter())
	assert.Equal(t, 3*time.Second, cfg.PowerFlowAfter())
	assert.Equal(t, 3500*time.Millisecond, cfg.EnableSwitchAfter())

	sim := SimulationConfig{TickIntervalMillis: 1000, RandomFaultClearMillis: 3000, BatteryFaultClearMillis: 5000}
	assert.Equal(t, time.Second, sim.TickInterval())
	assert.Equal(t, 3*time.Second, sim.RandomFaultClear())
	assert.Equal(t, 5*time.Second, sim.BatteryFaultClear())
}
