package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInverterDefaults(t *testing.T) {

	assert := assert.New(t)

	inv := config.InverterConfig{}
	applyInverterDefaults(&inv)
	assert.Len(inv.Id, 8)
	assert.Equal(string(domain.InverterModeNormal), inv.Mode)
	assert.Equal(35.0, *inv.Temperature)
	assert.Equal(20.0, *inv.FanSpeed)
	assert.Equal(50.0, *inv.LoadPercentage)
	assert.Equal(75.0, *inv.BatteryLevel)

	// configured zeros are kept
	inv = config.InverterConfig{
		Id:             "inv1",
		Temperature:    lo.ToPtr(0.0),
		FanSpeed:       lo.ToPtr(0.0),
		LoadPercentage: lo.ToPtr(0.0),
		BatteryLevel:   lo.ToPtr(0.0),
	}
	applyInverterDefaults(&inv)
	assert.Equal("inv1", inv.Id)
	assert.Equal(0.0, *inv.Temperature)
	assert.Equal(0.0, *inv.FanSpeed)
	assert.Equal(0.0, *inv.LoadPercentage)
	assert.Equal(0.0, *inv.BatteryLevel)
}

func TestInitConfigKeepsZeroInitialValues(t *testing.T) {

	assert := assert.New(t)

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
inverters:
  - id: idle
    mode: battery
    load_percentage: 0
    battery_level: 0
  - id: warm
    temperature: 40
`), 0o600))
	t.Setenv("CONFIG_FILE", cfgFile)

	cfg, err := initConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Inverters, 2)

	idle := cfg.Inverters[0]
	assert.Equal(0.0, *idle.LoadPercentage)
	assert.Equal(0.0, *idle.BatteryLevel)
	assert.Equal(35.0, *idle.Temperature)

	warm := cfg.Inverters[1]
	assert.Equal(40.0, *warm.Temperature)
	assert.Equal(50.0, *warm.LoadPercentage)
	assert.Equal(string(domain.InverterModeNormal), warm.Mode)
}
