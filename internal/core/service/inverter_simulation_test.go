package service

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
)

// scriptedRandom replays values in order, repeating the last one.
type scriptedRandom struct {
	values []float64
	idx    int
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.values) == 0 {
		return 0.5
	}
	v := r.values[min(r.idx, len(r.values)-1)]
	r.idx++
	return v
}

func constRandom(v float64) *scriptedRandom {
	return &scriptedRandom{values: []float64{v}}
}

func pvTelemetry() domain.InverterTelemetry {
	return domain.InverterTelemetry{
		Temperature:    60,
		FanSpeed:       40,
		LoadPercentage: 50,
		BatteryLevel:   50,
		Mode:           domain.InverterModePV,
		SelectedMode:   domain.InverterModePV.Index(),
		Connections: domain.Connections{
			SolarConnected:   true,
			BatteryConnected: true,
		},
	}
}

func TestHeatTickScenario(t *testing.T) {

	require := require.New(t)

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := pvTelemetry()

	res := sim.HeatTick(&tel)

	// target is 35 + 0.5*30 = 50, cooling by 40/100*2.5
	require.InDelta(59.0, tel.Temperature, 1e-9)
	require.GreaterOrEqual(tel.FanSpeed, 80.0)
	require.LessOrEqual(tel.FanSpeed, 85.0)
	require.InDelta(0.001, tel.TotalEnergyGenerated, 1e-9)
	require.True(tel.BatteryCharging)
	require.InDelta(50+0.01*(1-50.0/150), tel.BatteryLevel, 1e-9)
	require.Zero(tel.InputFrequency, "no grid in pv mode")
	require.False(res.FaultRaised)
	require.False(tel.FaultCondition)
}

func TestHeatTickNeverOvershootsTarget(t *testing.T) {

	assert := assert.New(t)

	sim := NewDefaultInverterSimulation(constRandom(0.5))

	// heating: load 100 targets 65
	tel := domain.InverterTelemetry{Temperature: 64.5, LoadPercentage: 100, Mode: domain.InverterModeNormal}
	sim.HeatTick(&tel)
	assert.InDelta(65.0, tel.Temperature, 1e-9, "heating is clamped at the target")

	// cooling: load 0 targets 35, full fan
	tel = domain.InverterTelemetry{Temperature: 36, FanSpeed: 100, Mode: domain.InverterModeNormal}
	sim.HeatTick(&tel)
	assert.InDelta(35.0, tel.Temperature, 1e-9, "cooling is clamped at the target")

	// heating from ambient
	tel = domain.InverterTelemetry{Temperature: 35, LoadPercentage: 100, Mode: domain.InverterModeNormal}
	sim.HeatTick(&tel)
	assert.InDelta(36.5, tel.Temperature, 1e-9)
}

func TestFanSpeedBanding(t *testing.T) {

	assert := assert.New(t)

	bands := []struct {
		temperature float64
		low, high   float64
	}{
		{70, 100, 100},
		{65.5, 100, 100},
		{60, 80, 85},
		{50, 60, 65},
		{42, 40, 45},
		{40, 20, 25},
		{30, 20, 25},
	}

	for _, r := range []float64{0, 0.25, 0.5, 0.999} {
		sim := NewDefaultInverterSimulation(constRandom(r))
		for _, band := range bands {
			fan := sim.FanSpeedFor(band.temperature)
			assert.GreaterOrEqual(fan, band.low, "T=%v r=%v", band.temperature, r)
			assert.LessOrEqual(fan, band.high, "T=%v r=%v", band.temperature, r)
		}
	}

	sim := NewDefaultInverterSimulation(constRandom(0.7))
	assert.Equal(100.0, sim.FanSpeedFor(70), "above 65 is exactly 100")
}

func TestCoolDownNeverBelowAmbient(t *testing.T) {

	assert := assert.New(t)

	sim := NewDefaultInverterSimulation(constRandom(0.5))

	for _, initial := range []float64{90, 60, 35.5, 35, 20} {
		tel := domain.InverterTelemetry{Temperature: initial, FanSpeed: 55, LoadPercentage: 30}
		prev := tel.Temperature
		for i := 0; i < 200; i++ {
			sim.CoolDownTick(&tel)
			assert.GreaterOrEqual(tel.Temperature, AMBIENT_TEMPERATURE)
			if initial >= AMBIENT_TEMPERATURE {
				assert.LessOrEqual(tel.Temperature, prev, "cool down only decreases")
			}
			prev = tel.Temperature
		}
		assert.Equal(55.0, tel.FanSpeed, "cool down only touches the temperature")
		assert.Equal(30.0, tel.LoadPercentage)
	}

	tel := domain.InverterTelemetry{Temperature: 45}
	sim.CoolDownTick(&tel)
	assert.InDelta(44.0, tel.Temperature, 1e-9)
}

func TestEnergyIsMonotonicInPVMode(t *testing.T) {

	require := require.New(t)

	sim := NewDefaultInverterSimulation(rand.New(rand.NewPCG(1, 2)))
	sim.RandomFaultProbability = 0
	tel := pvTelemetry()
	initial := tel.TotalEnergyGenerated

	prev := initial
	for i := 0; i < 500; i++ {
		sim.HeatTick(&tel)
		require.GreaterOrEqual(tel.TotalEnergyGenerated, prev)
		prev = tel.TotalEnergyGenerated
	}
	require.Greater(tel.TotalEnergyGenerated, initial)
	require.InDelta(0.5, tel.TotalEnergyGenerated, 0.05)
}

func TestEnergyIncrementBounds(t *testing.T) {

	for _, r := range []float64{0, 0.999} {
		sim := NewDefaultInverterSimulation(constRandom(r))
		tel := pvTelemetry()
		sim.HeatTick(&tel)
		assert.GreaterOrEqual(t, tel.TotalEnergyGenerated, 0.0009-1e-12)
		assert.LessOrEqual(t, tel.TotalEnergyGenerated, 0.0011+1e-12)
	}
}

func TestNoEnergyOutsidePVMode(t *testing.T) {

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{
		Temperature:    40,
		LoadPercentage: 20,
		Mode:           domain.InverterModeNormal,
		Connections:    DeriveConnections(true, domain.InverterModeNormal),
	}
	sim.HeatTick(&tel)
	assert.Zero(t, tel.TotalEnergyGenerated)
}

func TestBatteryDischargeRaisesLowBatteryFault(t *testing.T) {

	require := require.New(t)

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{
		Temperature:    40,
		LoadPercentage: 60,
		BatteryLevel:   10.01,
		Mode:           domain.InverterModeBattery,
		Connections:    DeriveConnections(true, domain.InverterModeBattery),
	}

	res := sim.HeatTick(&tel)
	require.InDelta(10.01-0.02*1.2, tel.BatteryLevel, 1e-9)
	require.False(tel.BatteryCharging)
	require.True(tel.FaultCondition)
	require.True(res.FaultRaised)
	require.Equal(domain.FaultCauseLowBattery, res.FaultCause)
	require.Equal(DEFAULT_BATTERY_FAULT_CLEAR, res.FaultClearAfter)

	// an active fault is not raised again
	res = sim.HeatTick(&tel)
	require.False(res.FaultRaised)
}

func TestBatteryNeverBelowZero(t *testing.T) {

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{
		Temperature:    40,
		LoadPercentage: 100,
		BatteryLevel:   0.01,
		Mode:           domain.InverterModeBattery,
		Connections:    DeriveConnections(true, domain.InverterModeBattery),
	}
	sim.HeatTick(&tel)
	assert.Equal(t, 0.0, tel.BatteryLevel)
}

func TestBatteryIdleWithoutLoad(t *testing.T) {

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{
		Temperature:     40,
		BatteryLevel:    50,
		BatteryCharging: true,
		Mode:            domain.InverterModeBattery,
		Connections:     DeriveConnections(true, domain.InverterModeBattery),
	}
	sim.HeatTick(&tel)
	assert.Equal(t, 50.0, tel.BatteryLevel)
	assert.False(t, tel.BatteryCharging)
}

func TestBatteryChargeNeverAboveFull(t *testing.T) {

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := pvTelemetry()
	tel.BatteryLevel = 99.999
	for i := 0; i < 10; i++ {
		sim.HeatTick(&tel)
	}
	assert.Equal(t, 100.0, tel.BatteryLevel)
}

func TestRandomFault(t *testing.T) {

	require := require.New(t)

	sim := NewDefaultInverterSimulation(constRandom(0))
	tel := domain.InverterTelemetry{Temperature: 40, Mode: domain.InverterModeNormal}

	res := sim.HeatTick(&tel)
	require.True(res.FaultRaised)
	require.Equal(domain.FaultCauseRandom, res.FaultCause)
	require.Equal(DEFAULT_RANDOM_FAULT_CLEAR, res.FaultClearAfter)
	require.True(tel.FaultCondition)

	sim = NewDefaultInverterSimulation(constRandom(0.5))
	tel = domain.InverterTelemetry{Temperature: 40, Mode: domain.InverterModeNormal}
	res = sim.HeatTick(&tel)
	require.False(res.FaultRaised)
}

func TestFrequencies(t *testing.T) {

	assert := assert.New(t)

	for _, r := range []float64{0, 0.5, 0.999} {
		sim := NewDefaultInverterSimulation(constRandom(r))
		sim.RandomFaultProbability = 0
		tel := domain.InverterTelemetry{
			Temperature:     40,
			OutputFrequency: 50,
			Mode:            domain.InverterModeNormal,
			Connections:     DeriveConnections(true, domain.InverterModeNormal),
		}
		sim.HeatTick(&tel)
		assert.GreaterOrEqual(tel.InputFrequency, 49.8)
		assert.LessOrEqual(tel.InputFrequency, 50.2)
		assert.GreaterOrEqual(tel.OutputFrequency, 49.9)
		assert.LessOrEqual(tel.OutputFrequency, 50.1)
	}

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{Temperature: 40, InputFrequency: 50, Mode: domain.InverterModeBattery}
	sim.HeatTick(&tel)
	assert.Zero(tel.InputFrequency, "no grid input outside normal mode")
	assert.Zero(tel.OutputFrequency, "a stopped output stays stopped")
}

func TestDeriveConnections(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(domain.Connections{SolarConnected: true, BatteryConnected: true}, DeriveConnections(true, domain.InverterModePV))
	assert.Equal(domain.Connections{GridConnected: true}, DeriveConnections(true, domain.InverterModeNormal))
	assert.Equal(domain.Connections{BatteryConnected: true}, DeriveConnections(true, domain.InverterModeBattery))

	for _, mode := range domain.InverterModes {
		assert.Equal(domain.Connections{}, DeriveConnections(false, mode), "mode %s while off", mode)
	}
}

func TestCycleMode(t *testing.T) {

	assert := assert.New(t)

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{Mode: domain.InverterModeNormal}

	sim.CycleMode(&tel, true)
	assert.Equal(domain.InverterModePV, tel.Mode)
	assert.Equal(1, tel.SelectedMode)
	assert.True(tel.SolarConnected)

	sim.CycleMode(&tel, true)
	assert.Equal(domain.InverterModeBattery, tel.Mode)
	assert.Equal(2, tel.SelectedMode)
	assert.Equal(domain.Connections{BatteryConnected: true}, tel.Connections)

	sim.CycleMode(&tel, false)
	assert.Equal(domain.InverterModeNormal, tel.Mode)
	assert.Equal(0, tel.SelectedMode)
	assert.Equal(domain.Connections{}, tel.Connections, "off inverter has no connections")
}

func TestCycleDisplayOption(t *testing.T) {

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{}

	seen := []domain.DisplayOption{}
	for i := 0; i < domain.DisplayOptionCount+1; i++ {
		sim.CycleDisplayOption(&tel)
		seen = append(seen, tel.DisplayOption)
	}
	assert.Equal(t, []domain.DisplayOption{
		domain.DisplayTemperature,
		domain.DisplayBattery,
		domain.DisplayFrequency,
		domain.DisplayOverview,
		domain.DisplayTemperature,
	}, seen)
}

func TestSetLoadPercentage(t *testing.T) {

	sim := NewDefaultInverterSimulation(constRandom(0.5))
	tel := domain.InverterTelemetry{}

	sim.SetLoadPercentage(&tel, 140)
	assert.Equal(t, 100.0, tel.LoadPercentage)
	sim.SetLoadPercentage(&tel, -3)
	assert.Equal(t, 0.0, tel.LoadPercentage)
	sim.SetLoadPercentage(&tel, 42.5)
	assert.Equal(t, 42.5, tel.LoadPercentage)
}
