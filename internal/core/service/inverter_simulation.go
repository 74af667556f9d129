package service

import (
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/port"
)

const (
	AMBIENT_TEMPERATURE          = 35.0
	DEFAULT_RANDOM_FAULT_CHANCE  = 0.001
	DEFAULT_RANDOM_FAULT_CLEAR   = 3000 * time.Millisecond
	DEFAULT_BATTERY_FAULT_CLEAR  = 5000 * time.Millisecond
	LOW_BATTERY_FAULT_THRESHOLD  = 10.0
	CHARGE_LOAD_LIMIT_PERCENTAGE = 80.0
	ENERGY_PER_TICK              = 0.001
)

type DefaultInverterSimulation struct {
	Random                 port.RandomSource
	RandomFaultProbability float64
	RandomFaultClear       time.Duration
	BatteryFaultClear      time.Duration
}

var _ port.InverterSimulationLogic = (*DefaultInverterSimulation)(nil)

func NewDefaultInverterSimulation(random port.RandomSource) *DefaultInverterSimulation {
	return &DefaultInverterSimulation{
		Random:                 random,
		RandomFaultProbability: DEFAULT_RANDOM_FAULT_CHANCE,
		RandomFaultClear:       DEFAULT_RANDOM_FAULT_CLEAR,
		BatteryFaultClear:      DEFAULT_BATTERY_FAULT_CLEAR,
	}
}

// CoolDownTick decays the temperature towards ambient while the inverter is off.
func (sim *DefaultInverterSimulation) CoolDownTick(t *domain.InverterTelemetry) {
	t.Temperature = math.Max(t.Temperature-(t.Temperature-AMBIENT_TEMPERATURE)/10, AMBIENT_TEMPERATURE)
}

// HeatTick runs one operating update. The order of the steps matters: the fan
// speed is derived from the updated temperature.
func (sim *DefaultInverterSimulation) HeatTick(t *domain.InverterTelemetry) domain.TickResult {
	var result domain.TickResult

	// temperature
	loadFactor := t.LoadPercentage / 100
	targetTemp := AMBIENT_TEMPERATURE + loadFactor*30 + sim.uniform(-1, 1)
	if t.Temperature < targetTemp {
		t.Temperature = math.Min(t.Temperature+loadFactor*1.5, targetTemp)
	} else if t.Temperature > targetTemp {
		coolingEffect := t.FanSpeed / 100
		t.Temperature = math.Max(t.Temperature-coolingEffect*2.5, targetTemp)
	}

	// fan
	t.FanSpeed = sim.FanSpeedFor(t.Temperature)

	// generated energy
	if t.SolarConnected && t.Mode == domain.InverterModePV {
		t.TotalEnergyGenerated += ENERGY_PER_TICK * (1 + sim.uniform(-0.1, 0.1))
	}

	// battery
	if t.BatteryConnected {
		if t.SolarConnected && t.LoadPercentage < CHARGE_LOAD_LIMIT_PERCENTAGE {
			t.BatteryLevel = lo.Clamp(t.BatteryLevel+0.01*(1-t.BatteryLevel/150), 0, 100)
			t.BatteryCharging = true
		} else if t.LoadPercentage > 0 {
			t.BatteryLevel = lo.Clamp(t.BatteryLevel-0.02*(t.LoadPercentage/50), 0, 100)
			t.BatteryCharging = false
			if t.BatteryLevel < LOW_BATTERY_FAULT_THRESHOLD && t.Mode == domain.InverterModeBattery && !t.FaultCondition {
				result = sim.raiseFault(t, domain.FaultCauseLowBattery, sim.BatteryFaultClear)
			}
		} else {
			t.BatteryCharging = false
		}
	}

	// frequencies
	t.InputFrequency = lo.Ternary(t.Mode == domain.InverterModeNormal && t.GridConnected, 49.8+sim.uniform(0, 0.4), 0)
	if t.OutputFrequency != 0 {
		t.OutputFrequency = 49.9 + sim.uniform(0, 0.2)
	}

	// random fault
	if !t.FaultCondition && sim.Random.Float64() < sim.RandomFaultProbability {
		result = sim.raiseFault(t, domain.FaultCauseRandom, sim.RandomFaultClear)
	}

	return result
}

// FanSpeedFor maps a temperature to its fan band.
func (sim *DefaultInverterSimulation) FanSpeedFor(temperature float64) float64 {
	switch {
	case temperature > 65:
		return 100
	case temperature > 55:
		return 80 + sim.uniform(0, 5)
	case temperature > 45:
		return 60 + sim.uniform(0, 5)
	case temperature > 40:
		return 40 + sim.uniform(0, 5)
	default:
		return 20 + sim.uniform(0, 5)
	}
}

func (sim *DefaultInverterSimulation) DeriveConnections(t *domain.InverterTelemetry, inverterOn bool) {
	t.Connections = DeriveConnections(inverterOn, t.Mode)
}

func (sim *DefaultInverterSimulation) CycleMode(t *domain.InverterTelemetry, inverterOn bool) {
	next := (t.Mode.Index() + 1) % len(domain.InverterModes)
	t.Mode = domain.InverterModes[next]
	t.SelectedMode = next
	sim.DeriveConnections(t, inverterOn)
}

func (sim *DefaultInverterSimulation) CycleDisplayOption(t *domain.InverterTelemetry) {
	t.DisplayOption = domain.DisplayOption((int(t.DisplayOption) + 1) % domain.DisplayOptionCount)
}

func (sim *DefaultInverterSimulation) SetLoadPercentage(t *domain.InverterTelemetry, percentage float64) {
	t.LoadPercentage = lo.Clamp(percentage, 0, 100)
}

func (sim *DefaultInverterSimulation) raiseFault(t *domain.InverterTelemetry, cause domain.FaultCause, clearAfter time.Duration) domain.TickResult {
	t.FaultCondition = true
	return domain.TickResult{
		FaultRaised:     true,
		FaultCause:      cause,
		FaultClearAfter: clearAfter,
	}
}

func (sim *DefaultInverterSimulation) uniform(low, high float64) float64 {
	return low + sim.Random.Float64()*(high-low)
}

// DeriveConnections is the connection table of an inverter: nothing is
// connected while it is off, otherwise the mode decides.
func DeriveConnections(inverterOn bool, mode domain.InverterMode) domain.Connections {
	if !inverterOn {
		return domain.Connections{}
	}
	switch mode {
	case domain.InverterModePV:
		return domain.Connections{SolarConnected: true, BatteryConnected: true}
	case domain.InverterModeNormal:
		return domain.Connections{GridConnected: true}
	case domain.InverterModeBattery:
		return domain.Connections{BatteryConnected: true}
	default:
		return domain.Connections{}
	}
}
