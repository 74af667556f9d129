package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	. "github.com/worldgrean1/grean-world-sub001/internal/core/domain"
)

func TestEnergyStateToUpdateEvents(t *testing.T) {

	events := EnergyStateToUpdateEvents(EnergySystemState{Booting: true})

	byId := map[string]any{}
	for _, e := range events {
		byId[e.(SensorUpdateEvent).SensorId()] = e
	}

	require.Contains(t, byId, SENSOR_ID_ENERGY_PHASE)
	assert.Equal(t, string(PhaseBooting), byId[SENSOR_ID_ENERGY_PHASE].(TextSensorUpdateEvent).Value)
	assert.True(t, byId[SWITCH_ID_ENERGY_SYSTEM].(SwitchSensorUpdateEvent).Value, "booting reads as on")
	assert.False(t, byId[SWITCH_ID_INVERTER].(SwitchSensorUpdateEvent).Value)
}

func TestInverterTelemetryToUpdateEvents(t *testing.T) {

	snapshot := InverterSnapshot{
		Id: "inv1",
		On: true,
		Telemetry: InverterTelemetry{
			Connections:    Connections{SolarConnected: true, BatteryConnected: true},
			Temperature:    42.5,
			Mode:           InverterModePV,
			DisplayOption:  DisplayBattery,
			LoadPercentage: 55,
		},
	}

	events := InverterTelemetryToUpdateEvents(snapshot)
	byId := map[string]any{}
	for _, e := range events {
		byId[e.(SensorUpdateEvent).SensorId()] = e
	}

	assert.Len(t, events, len(InverterSensors(Device{}, "inv1"))+len(InverterInputNumbers(Device{}, "inv1")))
	assert.Equal(t, 42.5, byId["inv1_temperature"].(FloatSensorUpdateEvent).Value)
	assert.Equal(t, "pv", byId["inv1_mode"].(TextSensorUpdateEvent).Value)
	assert.Equal(t, "battery", byId["inv1_display"].(TextSensorUpdateEvent).Value)
	assert.True(t, byId["inv1_solar_connected"].(BinarySensorUpdateEvent).Value)
	assert.False(t, byId["inv1_grid_connected"].(BinarySensorUpdateEvent).Value)
	assert.Equal(t, 55.0, byId["inv1_load"].(InputNumberSensorUpdateEvent).Value)
}

func TestSensorDescriptorsAreUnique(t *testing.T) {

	device := InverterDevice("inv1", "")
	assert.Equal(t, "Inverter inv1", device.Name)

	seen := map[string]bool{}
	for _, s := range InverterSensors(device, "inv1") {
		assert.False(t, seen[s.UniqueId], s.UniqueId)
		seen[s.UniqueId] = true
	}
	for _, b := range InverterButtons(device, "inv1") {
		assert.False(t, seen[b.UniqueId], b.UniqueId)
		seen[b.UniqueId] = true
	}
	assert.NotEqual(t, InverterDevice("inv1", "").Id, InverterDevice("inv2", "").Id)
}
