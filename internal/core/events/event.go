package events

import (
	. "github.com/worldgrean1/grean-world-sub001/internal/core/domain"
)

func EnergyStateToUpdateEvents(state EnergySystemState) []any {
	var events []any

	// Phase
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ENERGY_PHASE,
		},
		Value: string(state.Phase()),
	})
	// Booting
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ENERGY_BOOTING,
		},
		Value: state.Booting,
	})
	// Power flow
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ENERGY_POWER_FLOW,
		},
		Value: state.PowerFlowActive,
	})
	// Switch enabled
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ENERGY_SWITCH_ENABLED,
		},
		Value: state.SwitchEnabled,
	})

	return append(events, EnergySwitchesUpdateEvents(state)...)
}

func EnergySwitchesUpdateEvents(state EnergySystemState) []any {
	var events []any

	// the system switch reads on as soon as the sequence starts
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_ENERGY_SYSTEM,
		},
		Value: state.Booting || state.InverterActive,
	})
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_INVERTER,
		},
		Value: state.InverterActive,
	})
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_POWER_SWITCH,
		},
		Value: state.SwitchActive,
	})
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_ANIMATIONS_PAUSED,
		},
		Value: state.AnimationsPaused,
	})

	return events
}

func InverterTelemetryToUpdateEvents(snapshot InverterSnapshot) []any {
	var events []any

	id := func(suffix string) SensorUpdateEventMixIn {
		return SensorUpdateEventMixIn{Id: InverterSensorId(snapshot.Id, suffix)}
	}
	t := snapshot.Telemetry

	// Temperature
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_TEMPERATURE),
		Value:                  t.Temperature,
		Decimals:               1,
	})
	// Fan
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_FAN_SPEED),
		Value:                  t.FanSpeed,
		Decimals:               0,
	})
	// Battery
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_BATTERY_LEVEL),
		Value:                  t.BatteryLevel,
		Decimals:               2,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_BATTERY_CHARGING),
		Value:                  t.BatteryCharging,
	})
	// Energy
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_ENERGY_GENERATED),
		Value:                  t.TotalEnergyGenerated,
		Decimals:               3,
	})
	// Frequencies
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_INPUT_FREQUENCY),
		Value:                  t.InputFrequency,
		Decimals:               2,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_OUTPUT_FREQUENCY),
		Value:                  t.OutputFrequency,
		Decimals:               2,
	})
	// Fault
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_FAULT),
		Value:                  t.FaultCondition,
	})
	// Mode and display
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_MODE),
		Value:                  string(t.Mode),
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_DISPLAY),
		Value:                  t.DisplayOption.String(),
	})
	// Connections
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_GRID_CONNECTED),
		Value:                  t.GridConnected,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_SOLAR_CONNECTED),
		Value:                  t.SolarConnected,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: id(SENSOR_SUFFIX_BATTERY_CONNECTED),
		Value:                  t.BatteryConnected,
	})
	// Load
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: id(INPUT_NUMBER_SUFFIX_LOAD),
		Value:                  t.LoadPercentage,
		Decimals:               0,
	})

	return events
}

func BridgeStateUpdateEvents(connected bool) []any {
	return []any{
		BridgeStateUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BRIDGE_STATE,
			},
			Value: connected,
		},
	}
}
