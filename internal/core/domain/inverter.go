package domain

import (
	"fmt"
	"time"
)

type InverterMode string

const (
	InverterModeNormal  InverterMode = "normal"
	InverterModePV      InverterMode = "pv"
	InverterModeBattery InverterMode = "battery"
)

// InverterModes is the cycling order; the position is the selected mode index.
var InverterModes = []InverterMode{InverterModeNormal, InverterModePV, InverterModeBattery}

func ParseInverterMode(s string) (InverterMode, error) {
	for _, m := range InverterModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown inverter mode %q", s)
}

func (m InverterMode) Index() int {
	for i, mode := range InverterModes {
		if mode == m {
			return i
		}
	}
	return 0
}

type DisplayOption int

const (
	DisplayOverview DisplayOption = iota
	DisplayTemperature
	DisplayBattery
	DisplayFrequency
	displayOptionCount
)

const DisplayOptionCount = int(displayOptionCount)

func (d DisplayOption) String() string {
	switch d {
	case DisplayOverview:
		return "overview"
	case DisplayTemperature:
		return "temperature"
	case DisplayBattery:
		return "battery"
	case DisplayFrequency:
		return "frequency"
	default:
		return fmt.Sprintf("display(%d)", int(d))
	}
}

func (d DisplayOption) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DisplayOption) UnmarshalText(text []byte) error {
	for i := 0; i < DisplayOptionCount; i++ {
		if DisplayOption(i).String() == string(text) {
			*d = DisplayOption(i)
			return nil
		}
	}
	return fmt.Errorf("unknown display option %q", text)
}

type Connections struct {
	GridConnected    bool `json:"gridConnected"`
	SolarConnected   bool `json:"solarConnected"`
	BatteryConnected bool `json:"batteryConnected"`
}

type InverterTelemetry struct {
	Connections
	Temperature          float64       `json:"temperature"`
	FanSpeed             float64       `json:"fanSpeed"`
	LoadPercentage       float64       `json:"loadPercentage"`
	BatteryLevel         float64       `json:"batteryLevel"`
	BatteryCharging      bool          `json:"batteryCharging"`
	TotalEnergyGenerated float64       `json:"totalEnergyGenerated"`
	InputFrequency       float64       `json:"inputFrequency"`
	OutputFrequency      float64       `json:"outputFrequency"`
	FaultCondition       bool          `json:"faultCondition"`
	Mode                 InverterMode  `json:"mode"`
	SelectedMode         int           `json:"selectedMode"`
	DisplayOption        DisplayOption `json:"displayOption"`
}

type FaultCause string

const (
	FaultCauseRandom     FaultCause = "random"
	FaultCauseLowBattery FaultCause = "low_battery"
)

// TickResult reports side effects of a telemetry tick that need a timer.
type TickResult struct {
	FaultRaised     bool
	FaultCause      FaultCause
	FaultClearAfter time.Duration
}

type InverterSnapshot struct {
	Id        string            `json:"id"`
	Name      string            `json:"name"`
	On        bool              `json:"on"`
	Telemetry InverterTelemetry `json:"telemetry"`
}
