package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/worldgrean1/grean-world-sub001/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE          = "bridge"
	SENSOR_ID_ENERGY_PHASE          = "energy_phase"
	SENSOR_ID_ENERGY_BOOTING        = "energy_booting"
	SENSOR_ID_ENERGY_POWER_FLOW     = "energy_power_flow"
	SENSOR_ID_ENERGY_SWITCH_ENABLED = "energy_switch_enabled"
	SWITCH_ID_ENERGY_SYSTEM         = "energy_system"
	SWITCH_ID_INVERTER              = "inverter"
	SWITCH_ID_POWER_SWITCH          = "power_switch"
	SWITCH_ID_ANIMATIONS_PAUSED     = "animations_paused"
	SENSOR_SUFFIX_TEMPERATURE       = "temperature"
	SENSOR_SUFFIX_FAN_SPEED         = "fan_speed"
	SENSOR_SUFFIX_BATTERY_LEVEL     = "battery_level"
	SENSOR_SUFFIX_BATTERY_CHARGING  = "battery_charging"
	SENSOR_SUFFIX_ENERGY_GENERATED  = "energy_generated"
	SENSOR_SUFFIX_INPUT_FREQUENCY   = "input_frequency"
	SENSOR_SUFFIX_OUTPUT_FREQUENCY  = "output_frequency"
	SENSOR_SUFFIX_FAULT             = "fault"
	SENSOR_SUFFIX_MODE              = "mode"
	SENSOR_SUFFIX_DISPLAY           = "display"
	SENSOR_SUFFIX_GRID_CONNECTED    = "grid_connected"
	SENSOR_SUFFIX_SOLAR_CONNECTED   = "solar_connected"
	SENSOR_SUFFIX_BATTERY_CONNECTED = "battery_connected"
	INPUT_NUMBER_SUFFIX_LOAD        = "load"
	BUTTON_SUFFIX_CYCLE_MODE        = "cycle_mode"
	BUTTON_SUFFIX_CYCLE_DISPLAY     = "cycle_display"
	STATE_CLASS_MEASUREMENT         = "measurement"
	STATE_CLASS_TOTAL_INCREASING    = "total_increasing"
	DEVICE_CLASS_BATTERY            = "battery"
	DEVICE_CLASS_BATTERY_CHARGING   = "battery_charging"
	DEVICE_CLASS_ENERGY             = "energy"
	DEVICE_CLASS_FREQUENCY          = "frequency"
	DEVICE_CLASS_TEMPERATURE        = "temperature"
	DEVICE_CLASS_CONNECTIVITY       = "connectivity"
	DEVICE_CLASS_PROBLEM            = "problem"
	DEVICE_CLASS_POWER              = "power"
	DEVICE_CLASS_RUNNING            = "running"
	ENTITY_CLASS_DIAGNOSTIC         = "diagnostic"
	ENTITY_CLASS_CONFIG             = "config"
	SENSOR_TYPE_SENSOR              = "sensor"
	SENSOR_TYPE_BINARY              = "binary_sensor"
	INPUT_NUMBER_MODE_BOX           = "box"
	INPUT_NUMBER_MODE_SLIDER        = "slider"
	DEVICE_MANUFACTURER             = "Grean World"
	DEVICE_MODEL_ENERGY_SYSTEM      = "Energy system"
	DEVICE_MODEL_SIMULATED_INVERTER = "Simulated hybrid inverter"
	DEVICE_MODEL_BRIDGE             = "Grean World bridge"
	DEVICE_ID_PREFIX_BRIDGE         = "grean_bridge"
	DEVICE_ID_PREFIX_ENERGY_SYSTEM  = "grean_energy"
	DEVICE_ID_PREFIX_INVERTER       = "grean_inverter"
)

// InverterSensorId namespaces a per-inverter sensor.
func InverterSensorId(inverterId, suffix string) string {
	return fmt.Sprintf("%s_%s", inverterId, suffix)
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("%s_%s", DEVICE_ID_PREFIX_BRIDGE, md5HashShort(baseTopic)),
		Manufacturer: DEVICE_MANUFACTURER,
		Model:        DEVICE_MODEL_BRIDGE,
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Grean World %s", md5HashShort(baseTopic)),
	}
}

func EnergySystemDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("%s_%s", DEVICE_ID_PREFIX_ENERGY_SYSTEM, md5HashShort(baseTopic)),
		Manufacturer: DEVICE_MANUFACTURER,
		Model:        DEVICE_MODEL_ENERGY_SYSTEM,
		Version:      versioninfo.Short(),
		Name:         "Energy system",
	}
}

func InverterDevice(inverterId, name string) Device {
	if name == "" {
		name = fmt.Sprintf("Inverter %s", inverterId)
	}
	return Device{
		Id:           fmt.Sprintf("%s_%s", DEVICE_ID_PREFIX_INVERTER, md5HashShort(inverterId)),
		Manufacturer: DEVICE_MANUFACTURER,
		Model:        DEVICE_MODEL_SIMULATED_INVERTER,
		Version:      versioninfo.Short(),
		Name:         name,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func EnergySystemSensors(device Device) []GenericSensor {

	var sensors []GenericSensor

	// Phase
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_ENERGY_PHASE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Phase",
		Icon:       "mdi:state-machine",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_ENERGY_PHASE),
	})

	// Booting
	sensors = append(sensors, GenericSensor{
		Device:      device,
		Id:          SENSOR_ID_ENERGY_BOOTING,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Booting",
		DeviceClass: DEVICE_CLASS_RUNNING,
		UniqueId:    uniqueId(device.Id, SENSOR_ID_ENERGY_BOOTING),
	})

	// Power flow
	sensors = append(sensors, GenericSensor{
		Device:      device,
		Id:          SENSOR_ID_ENERGY_POWER_FLOW,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Power flow",
		DeviceClass: DEVICE_CLASS_POWER,
		Icon:        "mdi:transmission-tower-export",
		UniqueId:    uniqueId(device.Id, SENSOR_ID_ENERGY_POWER_FLOW),
	})

	// Switch enabled
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_ENERGY_SWITCH_ENABLED,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Switch enabled",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_ENERGY_SWITCH_ENABLED),
	})

	return sensors
}

func EnergySystemSwitches(device Device) []GenericSwitch {

	var switches []GenericSwitch

	// Whole system: on starts the activation sequence, off tears it down
	switches = append(switches, GenericSwitch{
		Device:   device,
		Id:       SWITCH_ID_ENERGY_SYSTEM,
		Name:     "Energy system",
		UniqueId: uniqueId(device.Id, SWITCH_ID_ENERGY_SYSTEM),
		Icon:     "mdi:power",
	})
	// Inverter
	switches = append(switches, GenericSwitch{
		Device:   device,
		Id:       SWITCH_ID_INVERTER,
		Name:     "Inverter",
		UniqueId: uniqueId(device.Id, SWITCH_ID_INVERTER),
		Icon:     "mdi:solar-power",
	})
	// Wall switch
	switches = append(switches, GenericSwitch{
		Device:   device,
		Id:       SWITCH_ID_POWER_SWITCH,
		Name:     "Power switch",
		UniqueId: uniqueId(device.Id, SWITCH_ID_POWER_SWITCH),
		Icon:     "mdi:light-switch",
	})
	// Animations
	switches = append(switches, GenericSwitch{
		Device:   device,
		Id:       SWITCH_ID_ANIMATIONS_PAUSED,
		Name:     "Animations paused",
		UniqueId: uniqueId(device.Id, SWITCH_ID_ANIMATIONS_PAUSED),
		Icon:     "mdi:motion-pause",
	})

	return switches
}

func InverterSensors(device Device, inverterId string) []GenericSensor {

	var sensors []GenericSensor

	measurement := func(suffix, name, deviceClass, unit, icon string) GenericSensor {
		id := InverterSensorId(inverterId, suffix)
		return GenericSensor{
			Device:            device,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass,
			UnitOfMeasurement: unit,
			Icon:              icon,
			UniqueId:          uniqueId(device.Id, id),
		}
	}
	binary := func(suffix, name, deviceClass string) GenericSensor {
		id := InverterSensorId(inverterId, suffix)
		return GenericSensor{
			Device:      device,
			Id:          id,
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        name,
			DeviceClass: deviceClass,
			UniqueId:    uniqueId(device.Id, id),
		}
	}

	sensors = append(sensors, measurement(SENSOR_SUFFIX_TEMPERATURE, "Temperature", DEVICE_CLASS_TEMPERATURE, "°C", ""))
	sensors = append(sensors, measurement(SENSOR_SUFFIX_FAN_SPEED, "Fan speed", "", "%", "mdi:fan"))
	sensors = append(sensors, measurement(SENSOR_SUFFIX_BATTERY_LEVEL, "Battery level", DEVICE_CLASS_BATTERY, "%", ""))
	sensors = append(sensors, measurement(SENSOR_SUFFIX_INPUT_FREQUENCY, "Input frequency", DEVICE_CLASS_FREQUENCY, "Hz", "mdi:sine-wave"))
	sensors = append(sensors, measurement(SENSOR_SUFFIX_OUTPUT_FREQUENCY, "Output frequency", DEVICE_CLASS_FREQUENCY, "Hz", "mdi:sine-wave"))

	// Energy generated
	energyId := InverterSensorId(inverterId, SENSOR_SUFFIX_ENERGY_GENERATED)
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                energyId,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total energy generated",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(device.Id, energyId),
	})

	// Mode and display
	modeId := InverterSensorId(inverterId, SENSOR_SUFFIX_MODE)
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         modeId,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Mode",
		Icon:       "mdi:swap-horizontal",
		UniqueId:   uniqueId(device.Id, modeId),
	})
	displayId := InverterSensorId(inverterId, SENSOR_SUFFIX_DISPLAY)
	sensors = append(sensors, GenericSensor{
		Device:           device,
		Id:               displayId,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Display",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(device.Id, displayId),
	})

	sensors = append(sensors, binary(SENSOR_SUFFIX_BATTERY_CHARGING, "Battery charging", DEVICE_CLASS_BATTERY_CHARGING))
	sensors = append(sensors, binary(SENSOR_SUFFIX_FAULT, "Fault", DEVICE_CLASS_PROBLEM))
	sensors = append(sensors, binary(SENSOR_SUFFIX_GRID_CONNECTED, "Grid connected", DEVICE_CLASS_CONNECTIVITY))
	sensors = append(sensors, binary(SENSOR_SUFFIX_SOLAR_CONNECTED, "Solar connected", DEVICE_CLASS_CONNECTIVITY))
	sensors = append(sensors, binary(SENSOR_SUFFIX_BATTERY_CONNECTED, "Battery connected", DEVICE_CLASS_CONNECTIVITY))

	return sensors
}

func InverterInputNumbers(device Device, inverterId string) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	// Load percentage
	id := InverterSensorId(inverterId, INPUT_NUMBER_SUFFIX_LOAD)
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:       device,
		Id:           id,
		Name:         "Load",
		UniqueId:     uniqueId(device.Id, id),
		Icon:         "mdi:gauge",
		Max:          100,
		Min:          0,
		Step:         5,
		Mode:         INPUT_NUMBER_MODE_SLIDER,
		InitialValue: 50,
	})

	return inputNumbers
}

func InverterButtons(device Device, inverterId string) []GenericButton {

	var buttons []GenericButton

	modeId := InverterSensorId(inverterId, BUTTON_SUFFIX_CYCLE_MODE)
	buttons = append(buttons, GenericButton{
		Device:   device,
		Id:       modeId,
		Name:     "Next mode",
		UniqueId: uniqueId(device.Id, modeId),
		Icon:     "mdi:swap-horizontal",
	})
	displayId := InverterSensorId(inverterId, BUTTON_SUFFIX_CYCLE_DISPLAY)
	buttons = append(buttons, GenericButton{
		Device:   device,
		Id:       displayId,
		Name:     "Next display",
		UniqueId: uniqueId(device.Id, displayId),
		Icon:     "mdi:monitor-dashboard",
	})

	return buttons
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
